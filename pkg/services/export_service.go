package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"churn-predict-api/pkg/models"

	"github.com/jszwec/csvutil"
	"github.com/xuri/excelize/v2"
)

// ダウンロード形式
const (
	ExportFormatCSV  = "csv"
	ExportFormatXLSX = "xlsx"
	// 識別子と予測だけのCSV
	ExportFormatPredictions = "predictions"

	CSVFileName   = "predicciones.csv"
	XLSXFileName  = "predicciones.xlsx"
	XLSXSheetName = "predicciones"

	CSVContentType  = "text/csv; charset=utf-8"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExportTarget はダウンロード形式からファイル名とContent-Typeを返す
func ExportTarget(format string) (fileName, contentType string, err error) {
	switch strings.ToLower(format) {
	case "", ExportFormatCSV, ExportFormatPredictions:
		return CSVFileName, CSVContentType, nil
	case ExportFormatXLSX:
		return XLSXFileName, XLSXContentType, nil
	default:
		return "", "", fmt.Errorf("%w: unsupported export format %q", ErrValidation, format)
	}
}

// Export writes table in the given format.
func Export(w io.Writer, table *models.ResultTable, format string) error {
	switch strings.ToLower(format) {
	case "", ExportFormatCSV:
		return WriteCSV(w, table)
	case ExportFormatXLSX:
		return WriteXLSX(w, table)
	default:
		return fmt.Errorf("%w: unsupported export format %q", ErrValidation, format)
	}
}

// WriteCSV はヘッダー行付き・インデックス列なし・カンマ区切りで書き出す
func WriteCSV(w io.Writer, table *models.ResultTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Header); err != nil {
		return fmt.Errorf("CSVヘッダーの書き込みに失敗: %w", err)
	}
	if err := cw.WriteAll(table.Rows); err != nil {
		return fmt.Errorf("CSVの書き込みに失敗: %w", err)
	}
	return nil
}

// EncodeCSV returns the CSV export as bytes.
func EncodeCSV(table *models.ResultTable) ([]byte, error) {
	var b bytes.Buffer
	if err := WriteCSV(&b, table); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// WriteXLSX は結果表を "predicciones" シートに書き出す。数値として往復できるセルは数値で保存する。
func WriteXLSX(w io.Writer, table *models.ResultTable) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", XLSXSheetName); err != nil {
		return fmt.Errorf("シート名の設定に失敗: %w", err)
	}

	sw, err := f.NewStreamWriter(XLSXSheetName)
	if err != nil {
		return fmt.Errorf("ストリームライターの作成に失敗: %w", err)
	}

	header := make([]interface{}, len(table.Header))
	for i, h := range table.Header {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("XLSXヘッダーの書き込みに失敗: %w", err)
	}

	for r, row := range table.Rows {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = xlsxCell(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("XLSX行%dの書き込みに失敗: %w", r+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("XLSXのフラッシュに失敗: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("XLSXの出力に失敗: %w", err)
	}
	return nil
}

// 先頭ゼロの郵便番号などを壊さないよう、文字列に戻して同一になる場合だけ数値にする
func xlsxCell(v string) interface{} {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || strconv.FormatFloat(f, 'f', -1, 64) != v {
		return v
	}
	return f
}

// WritePredictionsCSV は "Customer ID,Prediction" の2列だけを書き出す
func WritePredictionsCSV(w io.Writer, rows []models.PredictionRow) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(models.PredictionRow{}); err != nil {
		return fmt.Errorf("CSVヘッダーの書き込みに失敗: %w", err)
	}
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("CSVの書き込みに失敗: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// PredictionTable は識別子と予測の2列を ResultTable にする（XLSX 出力用）
func PredictionTable(rows []models.PredictionRow) (*models.ResultTable, error) {
	header, err := csvutil.Header(models.PredictionRow{}, "csv")
	if err != nil {
		return nil, err
	}
	table := &models.ResultTable{Header: header, Rows: make([][]string, len(rows))}
	for i, row := range rows {
		table.Rows[i] = []string{row.CustomerID, row.Prediction}
	}
	return table, nil
}

// ExportPredictions は識別子と予測だけを format（csv / predictions / xlsx）で書き出す
func ExportPredictions(w io.Writer, rows []models.PredictionRow, format string) error {
	switch strings.ToLower(format) {
	case ExportFormatCSV, ExportFormatPredictions:
		return WritePredictionsCSV(w, rows)
	case ExportFormatXLSX:
		table, err := PredictionTable(rows)
		if err != nil {
			return err
		}
		return WriteXLSX(w, table)
	default:
		return fmt.Errorf("%w: unsupported export format %q", ErrValidation, format)
	}
}
