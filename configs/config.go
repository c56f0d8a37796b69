package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration
type Config struct {
	Port          string
	Environment   string
	APIKey        string
	AdminUsername string
	AdminPassword string

	// モデル成果物
	ModelPath        string
	PreprocessorPath string

	// 予約列プロファイル
	ColumnProfilesPath string
	ColumnProfile      string

	// Google Sheets 同期
	SheetsBackend            string // "google", "memory", "none"
	SheetsSpreadsheetID      string
	SheetsTitle              string
	SheetsShareWith          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	DashboardURL       string
	HistoryDBPath      string
	MaxUploadMB        int64
	IncludeProbability bool
	LogLevel           string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Port:                     getEnv("PORT", "8080"),
		Environment:              getEnv("ENVIRONMENT", "development"),
		APIKey:                   getEnv("API_KEY", ""),
		AdminUsername:            getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:            getEnv("ADMIN_PASSWORD", ""),
		ModelPath:                getEnv("MODEL_PATH", "artifacts/modelo_entrenado.json"),
		PreprocessorPath:         getEnv("PREPROCESSOR_PATH", ""),
		ColumnProfilesPath:       getEnv("COLUMN_PROFILES_PATH", ""),
		ColumnProfile:            getEnv("COLUMN_PROFILE", DefaultProfileName),
		SheetsBackend:            strings.ToLower(getEnv("SHEETS_BACKEND", "google")),
		SheetsSpreadsheetID:      getEnv("SHEETS_SPREADSHEET_ID", ""),
		SheetsTitle:              getEnv("SHEETS_TITLE", "Predicciones Churn"),
		SheetsShareWith:          getEnv("SHEETS_SHARE_WITH", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		DashboardURL:             getEnv("DASHBOARD_URL", ""),
		HistoryDBPath:            getEnv("HISTORY_DB_PATH", ""),
		MaxUploadMB:              getEnvInt64("MAX_UPLOAD_MB", 10),
		IncludeProbability:       getEnvBool("INCLUDE_PROBABILITY", false),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
	}
}

// SheetTarget は同期先の名前を返す。固定IDが設定されていればそれを優先する。
func (c *Config) SheetTarget() string {
	if c.SheetsSpreadsheetID != "" {
		return c.SheetsSpreadsheetID
	}
	return c.SheetsTitle
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
