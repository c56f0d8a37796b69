package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"churn-predict-api/pkg/models"
)

// 対応する分類器の種類
const (
	ModelTypeLogistic     = "logistic_regression"
	ModelTypeRandomForest = "random_forest"
)

const defaultThreshold = 0.5

// ModelArtifact は学習済み分類器と、学習時の特徴量列リストを保持する成果物ファイルの構造
type ModelArtifact struct {
	Name      string         `json:"name"`
	Version   string         `json:"version"`
	TrainedAt string         `json:"trained_at,omitempty"`
	Columns   []string       `json:"columns"`
	Model     ClassifierSpec `json:"model"`
}

// ClassifierSpec is the serialized classifier.
type ClassifierSpec struct {
	Type        string     `json:"type"`
	Weights     []float64  `json:"weights,omitempty"`
	Intercept   float64    `json:"intercept,omitempty"`
	Trees       []TreeSpec `json:"trees,omitempty"`
	Threshold   float64    `json:"threshold,omitempty"`
	ClassLabels []string   `json:"class_labels,omitempty"` // [陰性, 陽性]
}

// TreeSpec は配列表現の二分木。Nodes[0] が根。
type TreeSpec struct {
	Nodes []TreeNode `json:"nodes"`
}

// TreeNode: Feature < 0 なら葉。x[Feature] <= Threshold なら Left へ進む。
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Value     float64 `json:"value,omitempty"` // 葉での陽性確率
}

// Classifier scores a feature matrix whose columns match the artifact.
type Classifier interface {
	PredictProba(X [][]float64) []float64
}

// StandardScaler は学習時に保存された前処理（標準化）
type StandardScaler struct {
	Columns []string  `json:"columns"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
}

// ModelBundle は読み込み済みの成果物一式（読み取り専用）
type ModelBundle struct {
	Artifact     *ModelArtifact
	Classifier   Classifier
	Preprocessor *StandardScaler
}

// LoadModelArtifact はJSON成果物を読み込み、分類器を構築する
func LoadModelArtifact(path string) (*ModelArtifact, Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("モデルファイルの読み込みに失敗: %w", err)
	}
	var artifact ModelArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, nil, fmt.Errorf("モデルファイルのパースに失敗: %w", err)
	}
	clf, err := NewClassifier(&artifact)
	if err != nil {
		return nil, nil, err
	}
	return &artifact, clf, nil
}

// LoadPreprocessor は標準化パラメータを読み込む
func LoadPreprocessor(path string) (*StandardScaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("前処理ファイルの読み込みに失敗: %w", err)
	}
	var scaler StandardScaler
	if err := json.Unmarshal(data, &scaler); err != nil {
		return nil, fmt.Errorf("前処理ファイルのパースに失敗: %w", err)
	}
	if len(scaler.Columns) != len(scaler.Mean) || len(scaler.Columns) != len(scaler.Scale) {
		return nil, fmt.Errorf("preprocessor: columns/mean/scale length mismatch (%d/%d/%d)",
			len(scaler.Columns), len(scaler.Mean), len(scaler.Scale))
	}
	return &scaler, nil
}

// NewClassifier validates the model section against the artifact columns and builds it.
func NewClassifier(a *ModelArtifact) (Classifier, error) {
	if len(a.Columns) == 0 {
		return nil, errors.New("model artifact has no feature columns")
	}
	if err := checkUniqueColumns(a.Columns); err != nil {
		return nil, fmt.Errorf("model artifact: %w", err)
	}
	if l := len(a.Model.ClassLabels); l != 0 && l != 2 {
		return nil, fmt.Errorf("model artifact: class_labels must have 2 entries, got %d", l)
	}
	if t := a.Model.Threshold; t < 0 || t >= 1 {
		return nil, fmt.Errorf("model artifact: threshold %v out of range [0,1)", t)
	}

	switch a.Model.Type {
	case ModelTypeLogistic:
		if len(a.Model.Weights) != len(a.Columns) {
			return nil, fmt.Errorf("logistic model: %d weights for %d columns", len(a.Model.Weights), len(a.Columns))
		}
		return &LogisticClassifier{Weights: a.Model.Weights, Intercept: a.Model.Intercept}, nil
	case ModelTypeRandomForest:
		if len(a.Model.Trees) == 0 {
			return nil, errors.New("random forest model has no trees")
		}
		for i, tree := range a.Model.Trees {
			if err := tree.validate(len(a.Columns)); err != nil {
				return nil, fmt.Errorf("tree %d: %w", i, err)
			}
		}
		return &ForestClassifier{Trees: a.Model.Trees}, nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", a.Model.Type)
	}
}

// Threshold は陽性判定のしきい値（未設定なら0.5）
func (a *ModelArtifact) Threshold() float64 {
	if a.Model.Threshold == 0 {
		return defaultThreshold
	}
	return a.Model.Threshold
}

// Labels returns the negative/positive class labels.
func (a *ModelArtifact) Labels() []string {
	if len(a.Model.ClassLabels) == 2 {
		return a.Model.ClassLabels
	}
	return []string{"0", "1"}
}

// Info はAPI表示用のメタデータ
func (b *ModelBundle) Info() models.ModelInfo {
	return models.ModelInfo{
		Name:            b.Artifact.Name,
		Version:         b.Artifact.Version,
		Type:            b.Artifact.Model.Type,
		TrainedAt:       b.Artifact.TrainedAt,
		Columns:         b.Artifact.Columns,
		ClassLabels:     b.Artifact.Labels(),
		Threshold:       b.Artifact.Threshold(),
		HasPreprocessor: b.Preprocessor != nil,
	}
}

// LogisticClassifier is a binary logistic regression.
type LogisticClassifier struct {
	Weights   []float64
	Intercept float64
}

// PredictProba returns p(y=1) per row.
func (m *LogisticClassifier) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		sum := m.Intercept
		for j, v := range row {
			sum += m.Weights[j] * v
		}
		out[i] = sigmoid(sum)
	}
	return out
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// ForestClassifier は各木の陽性確率を平均する
type ForestClassifier struct {
	Trees []TreeSpec
}

// PredictProba returns the mean leaf probability across trees.
func (f *ForestClassifier) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		var sum float64
		for _, tree := range f.Trees {
			sum += tree.predict(row)
		}
		out[i] = sum / float64(len(f.Trees))
	}
	return out
}

func (t TreeSpec) predict(x []float64) float64 {
	node := t.Nodes[0]
	for node.Feature >= 0 {
		if x[node.Feature] <= node.Threshold {
			node = t.Nodes[node.Left]
		} else {
			node = t.Nodes[node.Right]
		}
	}
	return node.Value
}

// validate は子インデックスが範囲内で、根から前方にしか進まない（循環しない）ことを確認する
func (t TreeSpec) validate(nFeatures int) error {
	if len(t.Nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Feature < 0 {
			if n.Value < 0 || n.Value > 1 {
				return fmt.Errorf("node %d: leaf value %v out of [0,1]", i, n.Value)
			}
			continue
		}
		if n.Feature >= nFeatures {
			return fmt.Errorf("node %d: feature index %d out of range", i, n.Feature)
		}
		for _, child := range []int{n.Left, n.Right} {
			if child <= i || child >= len(t.Nodes) {
				return fmt.Errorf("node %d: invalid child index %d", i, child)
			}
		}
	}
	return nil
}

// Transform は (x - mean) / scale を適用した新しい行列を返す
func (s *StandardScaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scale := s.Scale[j]
			if scale == 0 {
				scale = 1
			}
			scaled[j] = (v - s.Mean[j]) / scale
		}
		out[i] = scaled
	}
	return out
}

// Compatible は前処理の列がモデルの列と一致するかを確認する
func (s *StandardScaler) Compatible(columns []string) error {
	if len(s.Columns) != len(columns) {
		return fmt.Errorf("preprocessor has %d columns, model expects %d", len(s.Columns), len(columns))
	}
	for i := range columns {
		if s.Columns[i] != columns[i] {
			return fmt.Errorf("preprocessor column %d is %q, model expects %q", i, s.Columns[i], columns[i])
		}
	}
	return nil
}
