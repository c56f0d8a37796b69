package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"churn-predict-api/pkg/models"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	created_at  TEXT NOT NULL,
	file_name   TEXT NOT NULL,
	profile     TEXT NOT NULL,
	row_count   INTEGER NOT NULL,
	status      TEXT NOT NULL,
	sync_status TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// 文字列比較で時刻順に並ぶよう固定長にする
const historyTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// HistoryService は予測実行の履歴（アップロード内容そのものは保存しない）をSQLiteに記録する
type HistoryService struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryService はデータベースを開き、テーブルがなければ作成する。":memory:" も可。
func NewHistoryService(path string, logger *zap.Logger) (*HistoryService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("履歴DBのオープンに失敗: %w", err)
	}
	// SQLite は単一接続で使う（:memory: は接続ごとに別DBになるため）
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("履歴テーブルの作成に失敗: %w", err)
	}
	logger.Info("run history ready", zap.String("path", path))
	return &HistoryService{db: db, logger: logger}, nil
}

// Record は1件の実行結果を保存する
func (h *HistoryService) Record(ctx context.Context, run models.RunSummary) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_at, file_name, profile, row_count, status, sync_status, message, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.CreatedAt.UTC().Format(historyTimeFormat),
		run.FileName,
		run.Profile,
		run.RowCount,
		run.Status,
		run.SyncStatus,
		run.Message,
		run.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("履歴の保存に失敗 (run=%s): %w", run.RunID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (h *HistoryService) Recent(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT run_id, created_at, file_name, profile, row_count, status, sync_status, message, duration_ms
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("履歴の取得に失敗: %w", err)
	}
	defer rows.Close()

	runs := make([]models.RunSummary, 0)
	for rows.Next() {
		var (
			run       models.RunSummary
			createdAt string
		)
		if err := rows.Scan(&run.RunID, &createdAt, &run.FileName, &run.Profile, &run.RowCount,
			&run.Status, &run.SyncStatus, &run.Message, &run.DurationMs); err != nil {
			return nil, fmt.Errorf("履歴の読み込みに失敗: %w", err)
		}
		run.CreatedAt, err = time.Parse(historyTimeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("run %s: invalid created_at %q: %w", run.RunID, createdAt, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close closes the database.
func (h *HistoryService) Close() error {
	return h.db.Close()
}
