package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	config "churn-predict-api/configs"
	"churn-predict-api/pkg/server"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = `{
  "name": "churn-logit",
  "version": "test",
  "columns": ["Tenure in Months", "Monthly Charge"],
  "model": {"type": "logistic_regression", "weights": [-0.05, 0.02], "intercept": 0.1, "class_labels": ["Stayed", "Churned"]}
}`

func TestMain(m *testing.M) {
	// テスト環境の設定
	gin.SetMode(gin.TestMode)

	// .envファイルを読み込み（テスト環境では無視される可能性がある）
	godotenv.Load("../../.env")

	os.Exit(m.Run())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "modelo_entrenado.json")
	require.NoError(t, os.WriteFile(modelPath, []byte(testModel), 0o600))

	return &config.Config{
		Port:          "0",
		Environment:   "test",
		ModelPath:     modelPath,
		ColumnProfile: config.DefaultProfileName,
		SheetsBackend: server.SheetsBackendMemory,
		SheetsTitle:   "Predicciones Churn",
		HistoryDBPath: filepath.Join(dir, "history.db"),
		MaxUploadMB:   10,
		LogLevel:      "error",
	}
}

func TestApplicationSetup(t *testing.T) {
	app, err := server.New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Engine, "Engine should not be nil")
	assert.NotNil(t, app.History, "History should be enabled when HISTORY_DB_PATH is set")
	assert.True(t, app.Pipeline.SyncGateway().Enabled())

	bundle, err := app.Pipeline.Model()
	require.NoError(t, err)
	assert.Equal(t, "churn-logit", bundle.Artifact.Name)
}

func TestApplicationSetupRejectsUnknownProfile(t *testing.T) {
	cfg := testConfig(t)
	cfg.ColumnProfile = "v99"
	_, err := server.New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestGoogleBackendWithoutCredentialsDisablesSync(t *testing.T) {
	cfg := testConfig(t)
	cfg.SheetsBackend = server.SheetsBackendGoogle
	cfg.HistoryDBPath = ""

	gw := server.NewSyncGateway(context.Background(), cfg, nil)
	assert.False(t, gw.Enabled())
	assert.Error(t, gw.DisabledReason())
}

func TestRouterSetup(t *testing.T) {
	app, err := server.New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer app.Close()

	// ヘルスチェックのテスト
	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	app.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")

	// トップページ
	req, _ = http.NewRequest("GET", "/", nil)
	w = httptest.NewRecorder()
	app.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// 実行履歴（まだ空）
	req, _ = http.NewRequest("GET", "/api/v1/runs", nil)
	w = httptest.NewRecorder()
	app.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"enabled":true`)
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIKey = "s3cret"
	app, err := server.New(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	req, _ := http.NewRequest("GET", "/api/v1/profiles", nil)
	w := httptest.NewRecorder()
	app.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req, _ = http.NewRequest("GET", "/api/v1/profiles", nil)
	req.Header.Set("X-API-KEY", "s3cret")
	w = httptest.NewRecorder()
	app.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// ヘルスチェックは認証不要
	req, _ = http.NewRequest("GET", "/health", nil)
	w = httptest.NewRecorder()
	app.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
