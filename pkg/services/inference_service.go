package services

import (
	"context"
	"fmt"
	"math"

	"churn-predict-api/pkg/models"
)

// InferenceService は読み込み済みモデルで推論を行う。入力行の順序を保つ。
type InferenceService struct {
	provider *ModelProvider
}

// NewInferenceService creates an InferenceService backed by provider.
func NewInferenceService(provider *ModelProvider) *InferenceService {
	return &InferenceService{provider: provider}
}

// Predict returns one prediction per matrix row, in row order.
func (s *InferenceService) Predict(ctx context.Context, matrix *models.FeatureMatrix) ([]models.Prediction, error) {
	bundle, err := s.provider.Get()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := sameColumns(matrix.Columns, bundle.Artifact.Columns); err != nil {
		return nil, err
	}

	X := matrix.Values
	if bundle.Preprocessor != nil {
		X = bundle.Preprocessor.Transform(X)
	}

	proba := bundle.Classifier.PredictProba(X)
	if len(proba) != len(matrix.Values) {
		return nil, fmt.Errorf("classifier returned %d scores for %d rows", len(proba), len(matrix.Values))
	}

	threshold := bundle.Artifact.Threshold()
	labels := bundle.Artifact.Labels()
	out := make([]models.Prediction, len(proba))
	for i, p := range proba {
		if math.IsNaN(p) {
			return nil, fmt.Errorf("classifier returned NaN for row %d", i+1)
		}
		class := 0
		if p >= threshold {
			class = 1
		}
		out[i] = models.Prediction{Class: class, Label: labels[class], Probability: p}
	}
	return out, nil
}

func sameColumns(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("feature matrix has %d columns, model expects %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("feature column %d is %q, model expects %q", i, got[i], want[i])
		}
	}
	return nil
}
