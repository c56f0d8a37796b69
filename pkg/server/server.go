// Package server は設定からパイプラインとGinルーターを組み立てます。
// cmd/server（常駐サーバー）と api/index.go（サーバーレス）の両方から使われます。
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	config "churn-predict-api/configs"
	"churn-predict-api/pkg/gsheets"
	"churn-predict-api/pkg/handlers"
	"churn-predict-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 同期先の種類
const (
	SheetsBackendGoogle = "google"
	SheetsBackendMemory = "memory"
	SheetsBackendNone   = "none"
)

// App は組み立て済みのアプリケーション
type App struct {
	Engine   *gin.Engine
	Logger   *zap.Logger
	Pipeline *services.PipelineService
	History  *services.HistoryService
}

// NewLogger は環境に応じたzapロガーを作ります（production ならJSON）。
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.Environment == "production" {
		zcfg = zap.NewProductionConfig()
	}
	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}

// NewSyncGateway は SHEETS_BACKEND に従って同期ゲートウェイを作ります。
// 認証情報の初期化に失敗した場合は無効化されたゲートウェイを返し、予測自体は継続できます。
func NewSyncGateway(ctx context.Context, cfg *config.Config, logger *zap.Logger) *services.SyncGateway {
	switch cfg.SheetsBackend {
	case SheetsBackendMemory:
		log.Printf("📝 [同期] メモリ上のスプレッドシートを使用します（開発用）")
		return services.NewSyncGateway(services.NewMemorySheetStore(), logger)
	case SheetsBackendNone:
		return services.NewDisabledSyncGateway(fmt.Errorf("SHEETS_BACKEND=none"), logger)
	case SheetsBackendGoogle, "":
	default:
		return services.NewDisabledSyncGateway(fmt.Errorf("unknown SHEETS_BACKEND %q", cfg.SheetsBackend), logger)
	}

	creds, err := gsheets.CredentialsJSON(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
	if err == nil {
		var client *gsheets.Client
		client, err = gsheets.NewClient(ctx, creds, cfg.SheetsShareWith)
		if err == nil {
			if cfg.SheetsSpreadsheetID != "" {
				log.Printf("🔗 [同期] Google Sheets (ID固定: %s)", cfg.SheetsSpreadsheetID)
				return services.NewSyncGateway(services.NewGoogleSheetStoreByID(client), logger)
			}
			log.Printf("🔗 [同期] Google Sheets (タイトル: %s)", cfg.SheetsTitle)
			return services.NewSyncGateway(services.NewGoogleSheetStore(client), logger)
		}
	}

	log.Printf("⚠️ [同期] Google Sheetsの認証に失敗したため同期を無効化します: %v", err)
	return services.NewDisabledSyncGateway(err, logger)
}

// NewPipeline はプロファイル・モデル・同期・履歴を組み立てます。history は HISTORY_DB_PATH 未設定なら nil。
func NewPipeline(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*services.PipelineService, *services.HistoryService, error) {
	profiles, err := config.LoadColumnProfiles(cfg.ColumnProfilesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("列プロファイルの読み込みに失敗: %w", err)
	}
	if cfg.ColumnProfile != "" {
		if _, err := profiles.Get(cfg.ColumnProfile); err != nil {
			return nil, nil, err
		}
		profiles.Default = cfg.ColumnProfile
	}

	provider := services.NewModelProvider(cfg.ModelPath, cfg.PreprocessorPath, logger)
	// 起動時に一度読み込んでおく。失敗はキャッシュされ、予測時に 503 として返る。
	if _, err := provider.Get(); err != nil {
		log.Printf("⚠️ [モデル] 読み込みに失敗しました: %v", err)
	}

	var history *services.HistoryService
	if cfg.HistoryDBPath != "" {
		history, err = services.NewHistoryService(cfg.HistoryDBPath, logger)
		if err != nil {
			return nil, nil, err
		}
	}

	pipeline := services.NewPipelineService(
		profiles,
		provider,
		NewSyncGateway(ctx, cfg, logger),
		history,
		services.PipelineOptions{
			IncludeProbability: cfg.IncludeProbability,
			SheetTarget:        cfg.SheetTarget(),
		},
		logger,
	)
	return pipeline, history, nil
}

// NewRouter はルーティングとミドルウェアを登録したGinエンジンを返します。
func NewRouter(cfg *config.Config, pipeline *services.PipelineService, history *services.HistoryService, logger *zap.Logger) (*gin.Engine, error) {
	tmpl, err := handlers.LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("テンプレートの読み込みに失敗: %w", err)
	}

	r := gin.Default()
	r.SetHTMLTemplate(tmpl)
	r.MaxMultipartMemory = cfg.MaxUploadMB << 20

	// サービスの初期化
	monitoringService := services.NewMonitoringService(0, logger)

	// ハンドラーの初期化
	predictionHandler := handlers.NewPredictionHandler(pipeline, history, cfg.MaxUploadMB)
	pageHandler := handlers.NewPageHandler(predictionHandler, cfg.DashboardURL)
	adminHandler := handlers.NewAdminHandler(cfg, pipeline)
	monitoringHandler := handlers.NewMonitoringHandler(monitoringService)

	// ミドルウェアの登録
	r.Use(monitoringService.LoggingMiddleware())
	r.Use(cors.Default())

	// ヘルスチェックエンドポイント
	r.GET("/health", adminHandler.HealthCheck)

	// HTMLフォーム
	r.GET("/", pageHandler.Index)
	r.POST("/predict", adminHandler.MaintenanceGuard(), pageHandler.Predict)

	// APIバージョン1のルートグループ
	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg.APIKey))
	{
		predict := v1.Group("/predict", adminHandler.MaintenanceGuard())
		{
			predict.POST("", predictionHandler.PredictJSON)
			predict.POST("/download", predictionHandler.Download)
		}
		v1.GET("/model", predictionHandler.GetModelInfo)
		v1.GET("/profiles", predictionHandler.GetProfiles)
		v1.GET("/runs", predictionHandler.ListRuns)

		// 管理者向けAPI
		admin := v1.Group("/admin")
		{
			admin.GET("/health-status", adminHandler.GetHealthStatus)
			admin.POST("/maintenance/start", adminHandler.StartMaintenance)
			admin.POST("/maintenance/stop", adminHandler.StopMaintenance)
		}

		// モニタリングAPI
		v1.GET("/monitoring/logs", monitoringHandler.GetLogs)
	}

	return r, nil
}

// AuthMiddleware は X-API-KEY ヘッダーを検証します。apiKey が空なら認証なし。
func AuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-KEY") != apiKey {
			log.Printf("❌ [認証] 無効なAPI Key: %s %s", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// New は設定からアプリケーション全体を組み立てます。
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	pipeline, history, err := NewPipeline(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	engine, err := NewRouter(cfg, pipeline, history, logger)
	if err != nil {
		if history != nil {
			history.Close()
		}
		return nil, err
	}
	return &App{Engine: engine, Logger: logger, Pipeline: pipeline, History: history}, nil
}

// Close は履歴DBを閉じ、ログをフラッシュします。
func (a *App) Close() error {
	var err error
	if a.History != nil {
		err = a.History.Close()
	}
	_ = a.Logger.Sync()
	return err
}
