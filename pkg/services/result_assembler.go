package services

import (
	"fmt"
	"strconv"

	config "churn-predict-api/configs"
	"churn-predict-api/pkg/models"
)

// AssembleOptions controls the trailing prediction columns.
type AssembleOptions struct {
	IncludeProbability bool
}

// AssembleResults は予約列（プロファイル順）→ 元の特徴量列（アップロード順）→ 予測列 の順で出力表を組み立てる。
// 行数・行順はアップロードと同一。
func AssembleResults(rs *models.RecordSet, profile *config.ColumnProfile, predictions []models.Prediction, opts AssembleOptions) (*models.ResultTable, error) {
	if len(predictions) != len(rs.Rows) {
		return nil, fmt.Errorf("prediction count %d does not match row count %d", len(predictions), len(rs.Rows))
	}

	var cols []int
	for _, name := range profile.ReservedColumns {
		if idx := rs.ColumnIndex(name); idx != -1 {
			cols = append(cols, idx)
		}
	}
	for i, h := range rs.Header {
		// 既存の予測列は新しい値で置き換える
		if profile.IsReserved(h) || h == profile.PredictionColumn || (opts.IncludeProbability && h == profile.ProbabilityColumn) {
			continue
		}
		cols = append(cols, i)
	}

	header := make([]string, 0, len(cols)+2)
	for _, idx := range cols {
		header = append(header, rs.Header[idx])
	}
	header = append(header, profile.PredictionColumn)
	if opts.IncludeProbability {
		header = append(header, profile.ProbabilityColumn)
	}

	rows := make([][]string, len(rs.Rows))
	for r, src := range rs.Rows {
		row := make([]string, 0, len(header))
		for _, idx := range cols {
			row = append(row, src[idx])
		}
		row = append(row, predictions[r].Label)
		if opts.IncludeProbability {
			row = append(row, strconv.FormatFloat(predictions[r].Probability, 'f', 4, 64))
		}
		rows[r] = row
	}

	return &models.ResultTable{Header: header, Rows: rows}, nil
}

// PredictionRows は識別子と予測だけの簡易版（初期リビジョンの出力形式）
func PredictionRows(rs *models.RecordSet, profile *config.ColumnProfile, predictions []models.Prediction) ([]models.PredictionRow, error) {
	ids, ok := rs.Column(profile.IdentifierColumn)
	if !ok {
		return nil, fmt.Errorf("%w: identifier column %q missing", ErrValidation, profile.IdentifierColumn)
	}
	if len(ids) != len(predictions) {
		return nil, fmt.Errorf("prediction count %d does not match row count %d", len(predictions), len(ids))
	}
	out := make([]models.PredictionRow, len(ids))
	for i, id := range ids {
		out[i] = models.PredictionRow{CustomerID: id, Prediction: predictions[i].Label}
	}
	return out, nil
}
