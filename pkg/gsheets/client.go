package gsheets

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ErrNotFound はスプレッドシートが存在しない（またはサービスアカウントから見えない）場合に返される
var ErrNotFound = errors.New("spreadsheet not found")

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// Client はGoogle Sheets / Drive APIへのリクエストを管理します。
// サービスアカウントの認証情報で、スプレッドシートの読み書きとDrive上の検索を行います。
type Client struct {
	sheets    *sheets.Service
	drive     *drive.Service
	shareWith string
}

// Spreadsheet は開いた（または作成した）スプレッドシートの情報
type Spreadsheet struct {
	ID         string
	Title      string
	URL        string
	FirstSheet string // 書き込み対象のワークシート名（先頭シート）
}

// CredentialsJSON はシークレット（インラインJSON）を優先し、なければファイルから認証情報を読み込む
func CredentialsJSON(inline, file string) ([]byte, error) {
	if strings.TrimSpace(inline) != "" {
		return []byte(inline), nil
	}
	if file == "" {
		return nil, errors.New("service account credentials not configured (GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("サービスアカウントファイルの読み込みに失敗: %w", err)
	}
	return data, nil
}

// NewClient は新しいGoogle Sheetsクライアントを作成します。
// shareWith が指定されていれば、新規作成したスプレッドシートをそのアドレスに共有します。
func NewClient(ctx context.Context, credentialsJSON []byte, shareWith string) (*Client, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, sheets.SpreadsheetsScope, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("サービスアカウント認証情報の解析に失敗: %w", err)
	}

	sheetsSvc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("Sheets APIクライアントの作成に失敗: %w", err)
	}
	driveSvc, err := drive.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("Drive APIクライアントの作成に失敗: %w", err)
	}

	return &Client{sheets: sheetsSvc, drive: driveSvc, shareWith: shareWith}, nil
}

// OpenByID は固定IDでスプレッドシートを開く
func (c *Client) OpenByID(ctx context.Context, id string) (*Spreadsheet, error) {
	resp, err := c.sheets.Spreadsheets.Get(id).
		Fields("spreadsheetId", "spreadsheetUrl", "properties.title", "sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: id=%s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("スプレッドシートの取得に失敗 (id=%s): %w", id, err)
	}
	return fromAPI(resp), nil
}

// OpenByTitle はDrive上でタイトルが一致するスプレッドシートを探して開く（最終更新が新しいもの）
func (c *Client) OpenByTitle(ctx context.Context, title string) (*Spreadsheet, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(title), spreadsheetMimeType)
	list, err := c.drive.Files.List().
		Q(q).
		OrderBy("modifiedTime desc").
		PageSize(1).
		Fields("files(id, name)").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("Driveの検索に失敗 (title=%s): %w", title, err)
	}
	if len(list.Files) == 0 {
		return nil, fmt.Errorf("%w: title=%s", ErrNotFound, title)
	}
	return c.OpenByID(ctx, list.Files[0].Id)
}

// Create は新しいスプレッドシートを作成する
func (c *Client) Create(ctx context.Context, title string) (*Spreadsheet, error) {
	resp, err := c.sheets.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("スプレッドシートの作成に失敗 (title=%s): %w", title, err)
	}
	sp := fromAPI(resp)

	if c.shareWith != "" {
		_, err := c.drive.Permissions.Create(sp.ID, &drive.Permission{
			Type:         "user",
			Role:         "writer",
			EmailAddress: c.shareWith,
		}).SendNotificationEmail(false).Context(ctx).Do()
		if err != nil {
			// 作成自体は成功しているので共有失敗はログのみ
			log.Printf("⚠️ [gsheets] %s への共有に失敗: %v", c.shareWith, err)
		}
	}
	return sp, nil
}

// Overwrite は先頭シートの内容を消去してから、A1から values を書き込む
func (c *Client) Overwrite(ctx context.Context, sp *Spreadsheet, values [][]interface{}) error {
	sheetRange := quoteSheetName(sp.FirstSheet)

	if _, err := c.sheets.Spreadsheets.Values.Clear(sp.ID, sheetRange, &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("シートの消去に失敗: %w", err)
	}

	_, err := c.sheets.Spreadsheets.Values.Update(sp.ID, sheetRange+"!A1", &sheets.ValueRange{
		MajorDimension: "ROWS",
		Values:         values,
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("シートへの書き込みに失敗: %w", err)
	}
	return nil
}

func fromAPI(resp *sheets.Spreadsheet) *Spreadsheet {
	sp := &Spreadsheet{ID: resp.SpreadsheetId, URL: resp.SpreadsheetUrl, FirstSheet: "Sheet1"}
	if resp.Properties != nil {
		sp.Title = resp.Properties.Title
	}
	if len(resp.Sheets) > 0 && resp.Sheets[0].Properties != nil {
		sp.FirstSheet = resp.Sheets[0].Properties.Title
	}
	if sp.URL == "" {
		sp.URL = SpreadsheetURL(sp.ID)
	}
	return sp
}

// SpreadsheetURL builds the browser URL for a spreadsheet ID.
func SpreadsheetURL(id string) string {
	return "https://docs.google.com/spreadsheets/d/" + id
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// Drive検索クエリ用のエスケープ
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// A1表記のシート名はシングルクォートで囲み、内部のクォートは二重にする
func quoteSheetName(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
