package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemorySheetStore はプロセス内にスプレッドシートを保持する SheetStore。
// ローカル開発（SHEETS_BACKEND=memory）とテストで使う。
type MemorySheetStore struct {
	mu     sync.RWMutex
	sheets map[string]*memorySheet // name -> sheet
}

type memorySheet struct {
	store  *MemorySheetStore
	name   string
	id     string
	values [][]string // store.mu で保護
}

// NewMemorySheetStore creates an empty store.
func NewMemorySheetStore() *MemorySheetStore {
	return &MemorySheetStore{sheets: make(map[string]*memorySheet)}
}

// Open returns ErrSheetNotFound when no sheet with name exists.
func (s *MemorySheetStore) Open(_ context.Context, name string) (SheetHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.sheets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, name)
	}
	return sh, nil
}

// Create adds an empty sheet; creating an existing name is an error.
func (s *MemorySheetStore) Create(_ context.Context, name string) (SheetHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sheets[name]; exists {
		return nil, fmt.Errorf("spreadsheet %q already exists", name)
	}
	sh := &memorySheet{store: s, name: name, id: uuid.New().String()}
	s.sheets[name] = sh
	return sh, nil
}

// Values returns a copy of the sheet's current cells (header first).
func (s *MemorySheetStore) Values(name string) ([][]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.sheets[name]
	if !ok {
		return nil, false
	}
	out := make([][]string, len(sh.values))
	for i, row := range sh.values {
		out[i] = append([]string{}, row...)
	}
	return out, true
}

// Len returns the number of sheets.
func (s *MemorySheetStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sheets)
}

func (m *memorySheet) ID() string  { return m.id }
func (m *memorySheet) URL() string { return "memory://" + m.id }

// Overwrite は既存の内容をすべて破棄して差し替える（追記しない）
func (m *memorySheet) Overwrite(ctx context.Context, header []string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	values := make([][]string, 0, len(rows)+1)
	values = append(values, append([]string{}, header...))
	for _, row := range rows {
		values = append(values, append([]string{}, row...))
	}

	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.values = values
	return nil
}
