package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	config "churn-predict-api/configs"
	"churn-predict-api/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultPreviewRows = 5

// PipelineOptions は起動時に決まるパイプラインの設定
type PipelineOptions struct {
	IncludeProbability bool
	SheetTarget        string // 同期先（タイトルまたはスプレッドシートID）
	PreviewRows        int
}

// PipelineRequest is one upload to score.
type PipelineRequest struct {
	Records     *models.RecordSet
	ProfileName string // 空ならデフォルトプロファイル
	Sync        bool
	SheetName   string // 空なら PipelineOptions.SheetTarget
}

// PipelineOutcome は1回の実行結果
type PipelineOutcome struct {
	RunID       string
	Profile     *config.ColumnProfile
	Records     *models.RecordSet
	Preview     *models.RecordSet
	Predictions []models.Prediction
	Results     *models.ResultTable
	Report      *models.ReconcileReport
	Sync        *models.SyncStatus
	Duration    time.Duration
}

// PipelineService は 検証 → 列整合 → 推論 → 結果組み立て → 同期 を順に同期実行する。
// 同期の失敗は結果に記録するだけで、表示・ダウンロードは妨げない。
type PipelineService struct {
	profiles  *config.ColumnProfiles
	provider  *ModelProvider
	inference *InferenceService
	gateway   *SyncGateway
	history   *HistoryService
	opts      PipelineOptions
	logger    *zap.Logger
}

// NewPipelineService wires the stages. history may be nil.
func NewPipelineService(
	profiles *config.ColumnProfiles,
	provider *ModelProvider,
	gateway *SyncGateway,
	history *HistoryService,
	opts PipelineOptions,
	logger *zap.Logger,
) *PipelineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gateway == nil {
		gateway = NewDisabledSyncGateway(nil, logger)
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = defaultPreviewRows
	}
	return &PipelineService{
		profiles:  profiles,
		provider:  provider,
		inference: NewInferenceService(provider),
		gateway:   gateway,
		history:   history,
		opts:      opts,
		logger:    logger,
	}
}

// Profiles returns the configured column profiles.
func (p *PipelineService) Profiles() *config.ColumnProfiles { return p.profiles }

// Model はモデルのメタデータを返す（読み込み失敗時はそのエラー）
func (p *PipelineService) Model() (*ModelBundle, error) { return p.provider.Get() }

// SyncGateway returns the configured gateway.
func (p *PipelineService) SyncGateway() *SyncGateway { return p.gateway }

// Run executes the pipeline for one upload.
func (p *PipelineService) Run(ctx context.Context, req PipelineRequest) (*PipelineOutcome, error) {
	start := time.Now()
	runID := uuid.New().String()
	log := p.logger.With(zap.String("run_id", runID))

	if req.Records == nil {
		return nil, &ValidationError{Reason: "No se recibió ningún archivo."}
	}

	profile, err := p.profiles.Get(req.ProfileName)
	if err != nil {
		err = &ValidationError{Reason: fmt.Sprintf("Perfil de columnas desconocido: %q (disponibles: %s).", req.ProfileName, strings.Join(p.profiles.Names(), ", "))}
		p.record(ctx, runID, req, req.ProfileName, start, models.RunStatusRejected, nil, err)
		return nil, err
	}
	log = log.With(zap.String("profile", profile.Name), zap.String("file", req.Records.FileName))

	// 1. スキーマ検証
	if err := ValidateSchema(req.Records, profile); err != nil {
		log.Info("upload rejected", zap.Error(err))
		p.record(ctx, runID, req, profile.Name, start, models.RunStatusRejected, nil, err)
		return nil, err
	}

	// モデルが読めなければ計算に入らない
	bundle, err := p.provider.Get()
	if err != nil {
		p.record(ctx, runID, req, profile.Name, start, models.RunStatusFailed, nil, err)
		return nil, err
	}

	// 2. 列整合
	matrix, report, err := Reconcile(req.Records, profile, bundle.Artifact.Columns)
	if errors.Is(err, ErrValidation) {
		log.Info("upload rejected", zap.Error(err))
		p.record(ctx, runID, req, profile.Name, start, models.RunStatusRejected, nil, err)
		return nil, err
	}
	if err != nil {
		p.record(ctx, runID, req, profile.Name, start, models.RunStatusFailed, nil, err)
		return nil, fmt.Errorf("列整合に失敗: %w", err)
	}
	log.Debug("reconciled",
		zap.Int("rows", len(matrix.Values)),
		zap.Strings("categorical", report.CategoricalColumns),
		zap.Strings("zero_filled", report.ZeroFilledColumns),
		zap.Strings("unmatched", report.UnmatchedColumns),
	)

	// 3. 推論
	predictions, err := p.inference.Predict(ctx, matrix)
	if err != nil {
		p.record(ctx, runID, req, profile.Name, start, models.RunStatusFailed, nil, err)
		return nil, fmt.Errorf("推論に失敗: %w", err)
	}

	// 4. 結果の組み立て
	results, err := AssembleResults(req.Records, profile, predictions, AssembleOptions{IncludeProbability: p.opts.IncludeProbability})
	if err != nil {
		p.record(ctx, runID, req, profile.Name, start, models.RunStatusFailed, nil, err)
		return nil, err
	}

	// 5. 同期（失敗はここで閉じ込める）
	status := p.syncResults(ctx, log, req, results)

	outcome := &PipelineOutcome{
		RunID:       runID,
		Profile:     profile,
		Records:     req.Records,
		Preview:     req.Records.Head(p.opts.PreviewRows),
		Predictions: predictions,
		Results:     results,
		Report:      report,
		Sync:        status,
		Duration:    time.Since(start),
	}
	p.record(ctx, runID, req, profile.Name, start, models.RunStatusSucceeded, status, nil)
	log.Info("pipeline completed",
		zap.Int("rows", len(results.Rows)),
		zap.Bool("synced", status.Success),
		zap.Duration("duration", outcome.Duration),
	)
	return outcome, nil
}

func (p *PipelineService) syncResults(ctx context.Context, log *zap.Logger, req PipelineRequest, results *models.ResultTable) *models.SyncStatus {
	if !req.Sync {
		return &models.SyncStatus{Message: "No se solicitó la sincronización con Google Sheets."}
	}
	if !p.gateway.Enabled() {
		reason := p.gateway.DisabledReason()
		return &models.SyncStatus{Error: reason.Error()}
	}

	name := req.SheetName
	if name == "" {
		name = p.opts.SheetTarget
	}

	status := &models.SyncStatus{Attempted: true}
	res, err := p.gateway.Sync(ctx, results, name)
	if err != nil {
		log.Warn("spreadsheet sync failed", zap.String("sheet", name), zap.Error(err))
		status.Error = err.Error()
		var syncErr *SyncError
		if errors.As(err, &syncErr) {
			status.Message = fmt.Sprintf("No se pudo %s la hoja de cálculo", stageLabel(syncErr.Stage))
		}
		return status
	}

	status.Success = true
	status.SheetID = res.SheetID
	status.SheetURL = res.SheetURL
	status.Created = res.Created
	status.RowsWritten = res.RowsWritten
	status.Message = fmt.Sprintf("Se escribieron %d predicciones en la hoja de cálculo «%s».", res.RowsWritten, name)
	return status
}

func stageLabel(stage string) string {
	switch stage {
	case SyncStageOpen:
		return "abrir"
	case SyncStageCreate:
		return "crear"
	case SyncStageWrite:
		return "escribir"
	default:
		return stage
	}
}

// record は履歴が有効なときだけ保存する。保存失敗はログのみ。
func (p *PipelineService) record(ctx context.Context, runID string, req PipelineRequest, profile string, start time.Time, status string, sync *models.SyncStatus, runErr error) {
	if p.history == nil {
		return
	}
	run := models.RunSummary{
		RunID:      runID,
		CreatedAt:  start,
		Profile:    profile,
		Status:     status,
		SyncStatus: syncLabel(sync),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if req.Records != nil {
		run.FileName = req.Records.FileName
		run.RowCount = len(req.Records.Rows)
	}
	if runErr != nil {
		run.Message = runErr.Error()
	}
	if err := p.history.Record(context.WithoutCancel(ctx), run); err != nil {
		p.logger.Warn("run history not recorded", zap.String("run_id", runID), zap.Error(err))
	}
}

func syncLabel(s *models.SyncStatus) string {
	switch {
	case s == nil, !s.Attempted && s.Error == "":
		return "skipped"
	case s.Success:
		return "synced"
	case !s.Attempted:
		return "disabled"
	default:
		return "failed"
	}
}
