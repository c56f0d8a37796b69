package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	config "churn-predict-api/configs"
	"churn-predict-api/pkg/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

// 学習時の列スキーマ（テスト用）
var testColumns = []string{
	"Tenure in Months",
	"Monthly Charge",
	"Contract_One Year",
	"Contract_Two Year",
	"Customer Satisfaction",
}

func testArtifact() *ModelArtifact {
	return &ModelArtifact{
		Name:    "churn-logit",
		Version: "test",
		Columns: append([]string{}, testColumns...),
		Model: ClassifierSpec{
			Type:        ModelTypeLogistic,
			Weights:     []float64{-0.05, 0.02, -1, -2, -0.2},
			Intercept:   0.5,
			ClassLabels: []string{"Stayed", "Churned"},
		},
	}
}

func testBundle(t *testing.T) *ModelBundle {
	t.Helper()
	a := testArtifact()
	clf, err := NewClassifier(a)
	require.NoError(t, err)
	return &ModelBundle{Artifact: a, Classifier: clf}
}

func writeJSON(t *testing.T, name string, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func testProfile(t *testing.T, name string) *config.ColumnProfile {
	t.Helper()
	p, err := config.DefaultColumnProfiles().Get(name)
	require.NoError(t, err)
	return p
}

func csvRecords(t *testing.T, text string) *models.RecordSet {
	t.Helper()
	rs, err := ReadCSV("clientes.csv", strings.NewReader(text))
	require.NoError(t, err)
	return rs
}

// 3顧客・特徴量列あり
const sampleCSV = `Customer ID,City,Tenure in Months,Contract,Monthly Charge,Customer Satisfaction
C1,Los Angeles,10,Month-to-Month,50,4
C2,San Diego,20,One Year,70,
C3,Los Angeles,30,Two Year,90,NA
`

// 予約列のみ（学習時スキーマに一致する特徴量なし）
const reservedOnlyCSV = `Customer ID,City,Zip Code,Latitude,Longitude,Churn Reason,Churn Category
C1,Los Angeles,90022,34.02,-118.15,,
C2,San Diego,92101,32.71,-117.16,Competitor,Price
C3,Fresno,93650,36.83,-119.79,,
`
