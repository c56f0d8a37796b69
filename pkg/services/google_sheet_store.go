package services

import (
	"context"
	"errors"
	"fmt"

	"churn-predict-api/pkg/gsheets"
)

// sheetsAPI は gsheets.Client のうち SheetStore が使う操作
type sheetsAPI interface {
	OpenByID(ctx context.Context, id string) (*gsheets.Spreadsheet, error)
	OpenByTitle(ctx context.Context, title string) (*gsheets.Spreadsheet, error)
	Create(ctx context.Context, title string) (*gsheets.Spreadsheet, error)
	Overwrite(ctx context.Context, sp *gsheets.Spreadsheet, values [][]interface{}) error
}

// GoogleSheetStore は Google Sheets 上のスプレッドシートを SheetStore として扱う。
// byID が true の場合、name はスプレッドシートIDとして解釈され、新規作成はできない。
type GoogleSheetStore struct {
	client sheetsAPI
	byID   bool
}

// NewGoogleSheetStore は名前（タイトル）で検索するストアを作る
func NewGoogleSheetStore(client *gsheets.Client) *GoogleSheetStore {
	return &GoogleSheetStore{client: client}
}

// NewGoogleSheetStoreByID は固定IDで開くストアを作る
func NewGoogleSheetStoreByID(client *gsheets.Client) *GoogleSheetStore {
	return &GoogleSheetStore{client: client, byID: true}
}

// Open implements SheetStore.
func (s *GoogleSheetStore) Open(ctx context.Context, name string) (SheetHandle, error) {
	var (
		sp  *gsheets.Spreadsheet
		err error
	)
	if s.byID {
		sp, err = s.client.OpenByID(ctx, name)
	} else {
		sp, err = s.client.OpenByTitle(ctx, name)
	}
	if errors.Is(err, gsheets.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrSheetNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	return &googleSheet{client: s.client, sp: sp}, nil
}

// Create implements SheetStore.
func (s *GoogleSheetStore) Create(ctx context.Context, name string) (SheetHandle, error) {
	if s.byID {
		return nil, fmt.Errorf("spreadsheet id %q does not exist and cannot be created by id", name)
	}
	sp, err := s.client.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &googleSheet{client: s.client, sp: sp}, nil
}

type googleSheet struct {
	client sheetsAPI
	sp     *gsheets.Spreadsheet
}

func (g *googleSheet) ID() string  { return g.sp.ID }
func (g *googleSheet) URL() string { return g.sp.URL }

// Overwrite はヘッダーと全行を1回の書き込みで送る
func (g *googleSheet) Overwrite(ctx context.Context, header []string, rows [][]string) error {
	values := make([][]interface{}, 0, len(rows)+1)
	values = append(values, toCells(header))
	for _, row := range rows {
		values = append(values, toCells(row))
	}
	return g.client.Overwrite(ctx, g.sp, values)
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}
