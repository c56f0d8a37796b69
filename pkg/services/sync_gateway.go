package services

import (
	"context"
	"errors"
	"fmt"

	"churn-predict-api/pkg/models"

	"go.uber.org/zap"
)

var (
	// ErrSheetNotFound は Open で対象のスプレッドシートが存在しない場合に返す
	ErrSheetNotFound = errors.New("spreadsheet not found")
	// ErrSyncDisabled は認証情報の初期化に失敗し、同期が無効化されていることを示す
	ErrSyncDisabled = errors.New("spreadsheet sync is disabled")
)

// SheetStore はリモートの表リソースを名前で開く/作成する能力
type SheetStore interface {
	Open(ctx context.Context, name string) (SheetHandle, error)
	Create(ctx context.Context, name string) (SheetHandle, error)
}

// SheetHandle is an opened remote spreadsheet.
type SheetHandle interface {
	ID() string
	URL() string
	// Overwrite replaces all existing content with header + rows.
	Overwrite(ctx context.Context, header []string, rows [][]string) error
}

// 同期の失敗箇所
const (
	SyncStageOpen   = "open"
	SyncStageCreate = "create"
	SyncStageWrite  = "write"
)

// SyncError wraps a failure at one stage of a sync.
type SyncError struct {
	Stage string
	Name  string
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s %q failed: %v", e.Stage, e.Name, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// SyncResult describes a completed sync.
type SyncResult struct {
	Name        string
	SheetID     string
	SheetURL    string
	Created     bool
	RowsWritten int
}

// SyncGateway は結果表をリモートのスプレッドシートへ全上書きで送る。
// 再試行やタイムアウトは行わず、失敗は呼び出し元へ返すだけ。
type SyncGateway struct {
	store       SheetStore
	disabledErr error
	logger      *zap.Logger
}

// NewSyncGateway creates an enabled gateway.
func NewSyncGateway(store SheetStore, logger *zap.Logger) *SyncGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncGateway{store: store, logger: logger}
}

// NewDisabledSyncGateway は認証失敗などで同期できない場合のゲートウェイ。reason はユーザーへそのまま表示される。
func NewDisabledSyncGateway(reason error, logger *zap.Logger) *SyncGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reason == nil {
		reason = errors.New("no spreadsheet backend configured")
	}
	return &SyncGateway{disabledErr: reason, logger: logger}
}

// Enabled reports whether Sync can reach a store.
func (g *SyncGateway) Enabled() bool {
	return g.store != nil && g.disabledErr == nil
}

// DisabledReason returns why sync is unavailable, or nil.
func (g *SyncGateway) DisabledReason() error {
	if g.Enabled() {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrSyncDisabled, g.disabledErr)
}

// Sync は name のスプレッドシートを開き、なければ作成し、ヘッダーと全行で上書きする
func (g *SyncGateway) Sync(ctx context.Context, table *models.ResultTable, name string) (*SyncResult, error) {
	if !g.Enabled() {
		return nil, g.DisabledReason()
	}

	result := &SyncResult{Name: name}

	handle, err := g.store.Open(ctx, name)
	if errors.Is(err, ErrSheetNotFound) {
		g.logger.Info("spreadsheet not found, creating", zap.String("name", name))
		handle, err = g.store.Create(ctx, name)
		if err != nil {
			return nil, &SyncError{Stage: SyncStageCreate, Name: name, Err: err}
		}
		result.Created = true
	} else if err != nil {
		return nil, &SyncError{Stage: SyncStageOpen, Name: name, Err: err}
	}

	if err := handle.Overwrite(ctx, table.Header, table.Rows); err != nil {
		return nil, &SyncError{Stage: SyncStageWrite, Name: name, Err: err}
	}

	result.SheetID = handle.ID()
	result.SheetURL = handle.URL()
	result.RowsWritten = len(table.Rows)
	g.logger.Info("spreadsheet synced",
		zap.String("name", name),
		zap.String("sheet_id", result.SheetID),
		zap.Bool("created", result.Created),
		zap.Int("rows", result.RowsWritten),
	)
	return result, nil
}
