package services

import (
	"context"
	"errors"
	"testing"

	"churn-predict-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubStore は各段階で任意のエラーを返す SheetStore
type stubStore struct {
	openErr   error
	createErr error
	writeErr  error
	creates   int
}

func (s *stubStore) Open(_ context.Context, name string) (SheetHandle, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &stubHandle{err: s.writeErr}, nil
}

func (s *stubStore) Create(_ context.Context, name string) (SheetHandle, error) {
	s.creates++
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &stubHandle{err: s.writeErr}, nil
}

type stubHandle struct{ err error }

func (h *stubHandle) ID() string  { return "stub" }
func (h *stubHandle) URL() string { return "https://example.invalid/stub" }
func (h *stubHandle) Overwrite(context.Context, []string, [][]string) error {
	return h.err
}

func testTable() *models.ResultTable {
	return &models.ResultTable{
		Header: []string{"Customer ID", "Prediction"},
		Rows:   [][]string{{"C1", "Churned"}, {"C2", "Stayed"}},
	}
}

func TestSyncCreatesThenOverwrites(t *testing.T) {
	store := NewMemorySheetStore()
	gw := NewSyncGateway(store, zap.NewNop())
	ctx := context.Background()

	first, err := gw.Sync(ctx, testTable(), "Predicciones Churn")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, 2, first.RowsWritten)

	second := &models.ResultTable{
		Header: []string{"Customer ID", "Prediction"},
		Rows:   [][]string{{"C9", "Stayed"}},
	}
	res, err := gw.Sync(ctx, second, "Predicciones Churn")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, first.SheetID, res.SheetID)
	assert.Equal(t, 1, store.Len())

	// 追記ではなく全置換
	values, ok := store.Values("Predicciones Churn")
	require.True(t, ok)
	assert.Equal(t, [][]string{{"Customer ID", "Prediction"}, {"C9", "Stayed"}}, values)
}

func TestSyncErrorStages(t *testing.T) {
	boom := errors.New("boom")
	testCases := []struct {
		name  string
		store *stubStore
		stage string
	}{
		{"open", &stubStore{openErr: boom}, SyncStageOpen},
		{"create", &stubStore{openErr: ErrSheetNotFound, createErr: boom}, SyncStageCreate},
		{"write", &stubStore{writeErr: boom}, SyncStageWrite},
		{"write after create", &stubStore{openErr: ErrSheetNotFound, writeErr: boom}, SyncStageWrite},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gw := NewSyncGateway(tc.store, nil)
			_, err := gw.Sync(context.Background(), testTable(), "sheet")
			require.Error(t, err)

			var syncErr *SyncError
			require.True(t, errors.As(err, &syncErr))
			assert.Equal(t, tc.stage, syncErr.Stage)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestSyncOpenFailureDoesNotCreate(t *testing.T) {
	store := &stubStore{openErr: errors.New("permission denied")}
	_, err := NewSyncGateway(store, nil).Sync(context.Background(), testTable(), "sheet")
	require.Error(t, err)
	assert.Equal(t, 0, store.creates)
}

func TestDisabledSyncGateway(t *testing.T) {
	gw := NewDisabledSyncGateway(errors.New("invalid_grant: bad key"), nil)
	assert.False(t, gw.Enabled())

	_, err := gw.Sync(context.Background(), testTable(), "sheet")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSyncDisabled)
	assert.Contains(t, err.Error(), "invalid_grant: bad key")

	assert.NoError(t, NewSyncGateway(NewMemorySheetStore(), nil).DisabledReason())
}

func TestMemorySheetStore(t *testing.T) {
	store := NewMemorySheetStore()
	ctx := context.Background()

	_, err := store.Open(ctx, "a")
	assert.ErrorIs(t, err, ErrSheetNotFound)

	h, err := store.Create(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "memory://"+h.ID(), h.URL())

	_, err = store.Create(ctx, "a")
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, h.Overwrite(cancelled, []string{"x"}, nil))

	require.NoError(t, h.Overwrite(ctx, []string{"x"}, [][]string{{"1"}}))
	values, _ := store.Values("a")
	values[1][0] = "changed"
	again, _ := store.Values("a")
	assert.Equal(t, "1", again[1][0], "Values must return a copy")
}
