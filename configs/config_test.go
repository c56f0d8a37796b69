package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// テスト用の環境変数を設定
	testCases := map[string]string{
		"PORT":                  "9090",
		"ENVIRONMENT":           "test",
		"MODEL_PATH":            "/tmp/model.json",
		"COLUMN_PROFILE":        "v2",
		"SHEETS_BACKEND":        "MEMORY",
		"SHEETS_SPREADSHEET_ID": "sheet-123",
		"MAX_UPLOAD_MB":         "25",
		"INCLUDE_PROBABILITY":   "true",
	}

	for key, value := range testCases {
		t.Setenv(key, value)
	}

	cfg := LoadConfig()

	if cfg.Port != "9090" {
		t.Errorf("Expected Port to be '9090', got '%s'", cfg.Port)
	}
	if cfg.Environment != "test" {
		t.Errorf("Expected Environment to be 'test', got '%s'", cfg.Environment)
	}
	if cfg.ModelPath != "/tmp/model.json" {
		t.Errorf("Expected ModelPath to be '/tmp/model.json', got '%s'", cfg.ModelPath)
	}
	if cfg.ColumnProfile != "v2" {
		t.Errorf("Expected ColumnProfile to be 'v2', got '%s'", cfg.ColumnProfile)
	}
	if cfg.SheetsBackend != "memory" {
		t.Errorf("Expected SheetsBackend to be 'memory', got '%s'", cfg.SheetsBackend)
	}
	if cfg.MaxUploadMB != 25 {
		t.Errorf("Expected MaxUploadMB to be 25, got %d", cfg.MaxUploadMB)
	}
	if !cfg.IncludeProbability {
		t.Error("Expected IncludeProbability to be true")
	}
	// 固定IDはタイトルより優先される
	if cfg.SheetTarget() != "sheet-123" {
		t.Errorf("Expected SheetTarget to be 'sheet-123', got '%s'", cfg.SheetTarget())
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	// 環境変数をクリア
	vars := []string{
		"PORT", "ENVIRONMENT", "MODEL_PATH", "COLUMN_PROFILE", "SHEETS_BACKEND",
		"SHEETS_SPREADSHEET_ID", "SHEETS_TITLE", "MAX_UPLOAD_MB", "INCLUDE_PROBABILITY",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}

	cfg := LoadConfig()

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port to be '8080', got '%s'", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Errorf("Expected default Environment to be 'development', got '%s'", cfg.Environment)
	}
	if cfg.ColumnProfile != DefaultProfileName {
		t.Errorf("Expected default ColumnProfile to be '%s', got '%s'", DefaultProfileName, cfg.ColumnProfile)
	}
	if cfg.MaxUploadMB != 10 {
		t.Errorf("Expected default MaxUploadMB to be 10, got %d", cfg.MaxUploadMB)
	}
	if cfg.SheetTarget() != "Predicciones Churn" {
		t.Errorf("Expected default SheetTarget to be the title, got '%s'", cfg.SheetTarget())
	}
}

func TestDefaultColumnProfiles(t *testing.T) {
	profiles := DefaultColumnProfiles()
	assert.Equal(t, []string{"v1", "v2"}, profiles.Names())

	v1, err := profiles.Get("")
	require.NoError(t, err)
	assert.Equal(t, "v1", v1.Name)
	assert.Equal(t, []string{"Customer ID"}, v1.RequiredColumns())
	assert.True(t, v1.IsReserved("Churn Reason"))
	assert.Equal(t, "3", v1.FillDefaults["Customer Satisfaction"])
	assert.Equal(t, "Prediction", v1.PredictionColumn)

	v2, err := profiles.Get("v2")
	require.NoError(t, err)
	assert.Equal(t, ValidationReserved, v2.ValidationMode)
	assert.Len(t, v2.RequiredColumns(), 9)
	assert.True(t, v2.IsReserved("Offer"))

	_, err = profiles.Get("v9")
	assert.Error(t, err)
}

func TestLoadColumnProfilesFromYAML(t *testing.T) {
	profiles, err := LoadColumnProfiles("column_profiles.yaml")
	require.NoError(t, err)
	assert.Equal(t, "v1", profiles.Default)
	assert.Equal(t, DefaultColumnProfiles().All(), profiles.All())
}

func TestLoadColumnProfilesRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown mode": `
profiles:
  - name: bad
    identifier_column: id
    reserved_columns: [id]
    validation_mode: strict
`,
		"identifier not reserved": `
profiles:
  - name: bad
    identifier_column: id
    reserved_columns: [other]
`,
		"missing default": `
default: nope
profiles:
  - name: ok
    reserved_columns: [id]
`,
		"duplicate reserved": `
profiles:
  - name: bad
    reserved_columns: [id, id]
`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "profiles.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadColumnProfiles(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadColumnProfilesIdentifierDefaultsToFirstReserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	body := `
profiles:
  - name: minimal
    reserved_columns: [Account, Region]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	profiles, err := LoadColumnProfiles(path)
	require.NoError(t, err)
	p, err := profiles.Get("")
	require.NoError(t, err)
	assert.Equal(t, "Account", p.IdentifierColumn)
	assert.Equal(t, ValidationIdentifier, p.ValidationMode)
}
