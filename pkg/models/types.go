package models

import "time"

// RecordSet はアップロードされた表データ（1行=1顧客）。リクエスト内でのみ保持される。
type RecordSet struct {
	FileName string     `json:"file_name"`
	Header   []string   `json:"header"`
	Rows     [][]string `json:"rows"`
}

// ColumnIndex returns the position of name in the header, or -1.
// Matching is exact and case-sensitive.
func (rs *RecordSet) ColumnIndex(name string) int {
	for i, h := range rs.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column's cells in row order.
func (rs *RecordSet) Column(name string) ([]string, bool) {
	idx := rs.ColumnIndex(name)
	if idx == -1 {
		return nil, false
	}
	out := make([]string, len(rs.Rows))
	for i, row := range rs.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// Head は先頭n行のプレビューを返す
func (rs *RecordSet) Head(n int) *RecordSet {
	if n > len(rs.Rows) {
		n = len(rs.Rows)
	}
	return &RecordSet{FileName: rs.FileName, Header: rs.Header, Rows: rs.Rows[:n]}
}

// FeatureMatrix はモデル入力。Columns は学習時の列リストと完全に一致する。
type FeatureMatrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// Prediction は1顧客分の推論結果（アップロード行と位置で対応）
type Prediction struct {
	Class       int     `json:"class"`
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// ResultTable は識別子列・元の特徴量列・予測列を結合した出力表
type ResultTable struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// PredictionRow is the compact identifier/prediction export.
type PredictionRow struct {
	CustomerID string `csv:"Customer ID" json:"customer_id"`
	Prediction string `csv:"Prediction" json:"prediction"`
}

// ReconcileReport は列整合処理の内訳
type ReconcileReport struct {
	ReservedColumns    []string `json:"reserved_columns"`
	FeatureColumns     []string `json:"feature_columns"`
	NumericColumns     []string `json:"numeric_columns"`
	CategoricalColumns []string `json:"categorical_columns"`
	FilledCells        int      `json:"filled_cells"`
	UnmatchedColumns   []string `json:"unmatched_columns,omitempty"`
	ZeroFilledColumns  []string `json:"zero_filled_columns,omitempty"`
}

// SyncStatus はGoogle Sheets同期の結果（失敗しても他の結果には影響しない）
type SyncStatus struct {
	Attempted   bool   `json:"attempted"`
	Success     bool   `json:"success"`
	SheetID     string `json:"sheet_id,omitempty"`
	SheetURL    string `json:"sheet_url,omitempty"`
	Created     bool   `json:"created,omitempty"`
	RowsWritten int    `json:"rows_written,omitempty"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}

// RunSummary は実行履歴の1件
type RunSummary struct {
	RunID      string    `json:"run_id"`
	CreatedAt  time.Time `json:"created_at"`
	FileName   string    `json:"file_name"`
	Profile    string    `json:"profile"`
	RowCount   int       `json:"row_count"`
	Status     string    `json:"status"`
	SyncStatus string    `json:"sync_status"`
	Message    string    `json:"message,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// 実行ステータス
const (
	RunStatusSucceeded = "succeeded"
	RunStatusRejected  = "rejected"
	RunStatusFailed    = "failed"
)

// ModelInfo は読み込まれたモデル成果物のメタデータ
type ModelInfo struct {
	Name            string   `json:"name"`
	Version         string   `json:"version"`
	Type            string   `json:"type"`
	TrainedAt       string   `json:"trained_at,omitempty"`
	Columns         []string `json:"columns"`
	ClassLabels     []string `json:"class_labels"`
	Threshold       float64  `json:"threshold"`
	HasPreprocessor bool     `json:"has_preprocessor"`
}

// PredictResponse は /api/v1/predict のレスポンス
type PredictResponse struct {
	Success    bool             `json:"success"`
	RunID      string           `json:"run_id"`
	Profile    string           `json:"profile"`
	RowCount   int              `json:"row_count"`
	Preview    *RecordSet       `json:"preview"`
	Results    *ResultTable     `json:"results"`
	Reconcile  *ReconcileReport `json:"reconcile"`
	Sync       *SyncStatus      `json:"sync"`
	DurationMs int64            `json:"duration_ms"`
}
