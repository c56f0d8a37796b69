package services

import (
	"testing"

	"churn-predict-api/pkg/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileEncodesAndAligns(t *testing.T) {
	rs := csvRecords(t, sampleCSV)

	matrix, report, err := Reconcile(rs, testProfile(t, "v1"), testColumns)
	require.NoError(t, err)

	want := &models.FeatureMatrix{
		Columns: testColumns,
		Values: [][]float64{
			{10, 50, 0, 0, 4},
			{20, 70, 1, 0, 3}, // 満足度は既定値3で補完
			{30, 90, 0, 1, 3},
		},
	}
	if diff := cmp.Diff(want, matrix); diff != "" {
		t.Errorf("feature matrix mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []string{"Customer ID", "City"}, report.ReservedColumns)
	assert.Equal(t, []string{"Tenure in Months", "Contract", "Monthly Charge", "Customer Satisfaction"}, report.FeatureColumns)
	assert.Equal(t, []string{"Contract"}, report.CategoricalColumns)
	assert.Equal(t, []string{"Tenure in Months", "Monthly Charge", "Customer Satisfaction"}, report.NumericColumns)
	assert.Equal(t, 2, report.FilledCells)
	assert.Empty(t, report.UnmatchedColumns)
	assert.Empty(t, report.ZeroFilledColumns)
}

func TestReconcileUnseenCategoryIsAllZero(t *testing.T) {
	rs := csvRecords(t, `Customer ID,Contract
C1,Month-to-Month
C2,Three Year
`)

	matrix, report, err := Reconcile(rs, testProfile(t, "v1"), testColumns)
	require.NoError(t, err)

	for _, row := range matrix.Values {
		assert.Equal(t, 0.0, row[2], "Contract_One Year")
		assert.Equal(t, 0.0, row[3], "Contract_Two Year")
	}
	assert.Equal(t, []string{"Contract_Three Year"}, report.UnmatchedColumns)
	assert.Contains(t, report.ZeroFilledColumns, "Contract_One Year")
	assert.Contains(t, report.ZeroFilledColumns, "Contract_Two Year")
}

func TestReconcileOutputColumnsMatchTargetSchema(t *testing.T) {
	uploads := []string{
		sampleCSV,
		reservedOnlyCSV,
		"Customer ID,Foo,Monthly Charge\nC1,x,10\nC2,y,\n",
		"Customer ID,Contract_One Year,Tenure in Months\nC1,1,5\n",
	}
	for _, text := range uploads {
		rs := csvRecords(t, text)
		matrix, _, err := Reconcile(rs, testProfile(t, "v1"), testColumns)
		require.NoError(t, err)
		assert.Equal(t, testColumns, matrix.Columns)
		require.Len(t, matrix.Values, len(rs.Rows))
		for _, row := range matrix.Values {
			assert.Len(t, row, len(testColumns))
		}

		// 同じ入力なら同じ結果
		again, _, err := Reconcile(rs, testProfile(t, "v1"), testColumns)
		require.NoError(t, err)
		assert.Equal(t, matrix, again)
	}
}

func TestReconcileReservedOnlyUploadIsZeroBaseline(t *testing.T) {
	rs := csvRecords(t, reservedOnlyCSV)

	matrix, report, err := Reconcile(rs, testProfile(t, "v1"), testColumns)
	require.NoError(t, err)

	require.Len(t, matrix.Values, 3)
	for _, row := range matrix.Values {
		assert.Equal(t, make([]float64, len(testColumns)), row)
	}
	assert.Equal(t, testColumns, report.ZeroFilledColumns)
	assert.Empty(t, report.FeatureColumns)
}

func TestReconcileNumericHandling(t *testing.T) {
	rs := csvRecords(t, `Customer ID,Paperless Billing,Monthly Charge
C1,True,12.5
C2,False,N/A
C3,,null
`)
	target := []string{"Paperless Billing", "Monthly Charge"}

	matrix, report, err := Reconcile(rs, testProfile(t, "v1"), target)
	require.NoError(t, err)

	want := [][]float64{{1, 12.5}, {0, 0}, {0, 0}}
	if diff := cmp.Diff(want, matrix.Values); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, target, report.NumericColumns)
	assert.Empty(t, report.CategoricalColumns)
}

func TestReconcileMissingCategoricalCell(t *testing.T) {
	rs := csvRecords(t, `Customer ID,Internet Type
C1,Cable
C2,
C3,Fiber Optic
C4,DSL
`)
	target := []string{"Internet Type_DSL", "Internet Type_Fiber Optic"}

	matrix, _, err := Reconcile(rs, testProfile(t, "v1"), target)
	require.NoError(t, err)

	// 水準: Cable, DSL, Fiber Optic → Cable を落とす
	want := [][]float64{{0, 0}, {0, 0}, {0, 1}, {1, 0}}
	if diff := cmp.Diff(want, matrix.Values); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileRejectsBadTarget(t *testing.T) {
	rs := csvRecords(t, sampleCSV)

	_, _, err := Reconcile(rs, testProfile(t, "v1"), nil)
	assert.Error(t, err)

	_, _, err = Reconcile(rs, testProfile(t, "v1"), []string{"A", "B", "A"})
	assert.Error(t, err)
}

func TestIsMissing(t *testing.T) {
	missing := []string{
		"", " ", " NA ", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
		"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None", "n/a", "nan", "null",
		"NAN", "nAn",
	}
	for _, cell := range missing {
		assert.True(t, IsMissing(cell), "%q", cell)
	}
	for _, cell := range []string{"0", "-", "none", "inf", "Infinity", "Nancy"} {
		assert.False(t, IsMissing(cell), "%q", cell)
	}
}

func TestReconcileNullTokensKeepColumnsNumeric(t *testing.T) {
	rs := csvRecords(t, `Customer ID,Customer Satisfaction,Monthly Charge
C1,5,50
C2,NULL,n/a
C3,None,70
C4,NAN,#N/A
`)

	matrix, report, err := Reconcile(rs, testProfile(t, "v1"), testColumns)
	require.NoError(t, err)

	assert.Equal(t, []string{"Customer Satisfaction", "Monthly Charge"}, report.NumericColumns)
	assert.Empty(t, report.CategoricalColumns)
	assert.Equal(t, 3, report.FilledCells)

	want := [][]float64{
		{0, 50, 0, 0, 5},
		{0, 0, 0, 0, 3},
		{0, 70, 0, 0, 3},
		{0, 0, 0, 0, 3},
	}
	if diff := cmp.Diff(want, matrix.Values); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileRejectsInfinity(t *testing.T) {
	for _, cell := range []string{"inf", "-Infinity", "+INF"} {
		rs := csvRecords(t, "Customer ID,Monthly Charge\nC1,50\nC2,"+cell+"\n")

		_, _, err := Reconcile(rs, testProfile(t, "v1"), testColumns)
		require.Error(t, err, cell)
		assert.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), "'Monthly Charge'")
		assert.Contains(t, err.Error(), "fila de datos 2")
	}
}
