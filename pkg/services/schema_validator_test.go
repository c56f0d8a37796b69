package services

import (
	"errors"
	"testing"

	"churn-predict-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSchema(t *testing.T) {
	v1 := testProfile(t, "v1")
	v2 := testProfile(t, "v2")

	testCases := []struct {
		name        string
		rs          *models.RecordSet
		profile     string
		wantMissing []string
		wantErr     bool
	}{
		{
			name:    "identifier mode accepts identifier only",
			rs:      &models.RecordSet{Header: []string{"Customer ID", "Tenure in Months"}, Rows: [][]string{{"C1", "3"}}},
			profile: "v1",
		},
		{
			name:        "identifier mode rejects missing identifier",
			rs:          &models.RecordSet{Header: []string{"City", "Tenure in Months"}, Rows: [][]string{{"LA", "3"}}},
			profile:     "v1",
			wantMissing: []string{"Customer ID"},
			wantErr:     true,
		},
		{
			name:        "names are case sensitive",
			rs:          &models.RecordSet{Header: []string{"customer id"}, Rows: [][]string{{"C1"}}},
			profile:     "v1",
			wantMissing: []string{"Customer ID"},
			wantErr:     true,
		},
		{
			name:        "reserved mode lists every missing column in profile order",
			rs:          &models.RecordSet{Header: []string{"Customer ID", "City", "Gender"}, Rows: [][]string{{"C1", "LA", "F"}}},
			profile:     "v2",
			wantMissing: []string{"Zip Code", "Latitude", "Longitude", "Phone Service", "Internet Type", "Offer"},
			wantErr:     true,
		},
		{
			name: "reserved mode accepts all reserved columns",
			rs: &models.RecordSet{
				Header: append(append([]string{}, v2.ReservedColumns...), "Age"),
				Rows:   [][]string{make([]string, len(v2.ReservedColumns)+1)},
			},
			profile: "v2",
		},
		{
			name:    "header without data rows",
			rs:      &models.RecordSet{Header: []string{"Customer ID"}},
			profile: "v1",
			wantErr: true,
		},
		{
			name:    "duplicate header",
			rs:      &models.RecordSet{Header: []string{"Customer ID", "Age", "Age"}, Rows: [][]string{{"C1", "1", "2"}}},
			profile: "v1",
			wantErr: true,
		},
		{
			name:    "no header",
			rs:      &models.RecordSet{},
			profile: "v1",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			profile := v1
			if tc.profile == "v2" {
				profile = v2
			}
			err := ValidateSchema(tc.rs, profile)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.wantMissing, verr.Missing)
		})
	}
}

func TestValidateSchemaDoesNotMutate(t *testing.T) {
	rs := csvRecords(t, sampleCSV)
	header := append([]string{}, rs.Header...)
	first := append([]string{}, rs.Rows[0]...)

	require.NoError(t, ValidateSchema(rs, testProfile(t, "v1")))
	assert.Equal(t, header, rs.Header)
	assert.Equal(t, first, rs.Rows[0])
	assert.Len(t, rs.Rows, 3)
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Missing: []string{"Customer ID"}}
	assert.Contains(t, err.Error(), "'Customer ID'")
	assert.Equal(t, ErrValidation.Error(), (&ValidationError{}).Error())
}
