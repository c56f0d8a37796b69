package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"churn-predict-api/pkg/models"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat はCSV/XLSX以外のファイルが渡された場合に返される
var ErrUnsupportedFormat = errors.New("unsupported file format")

const utf8BOM = "\ufeff"

// ReadTable はアップロードされたファイルを拡張子に応じて読み込む（.csv / .xlsx）
func ReadTable(fileName string, r io.Reader) (*models.RecordSet, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return ReadCSV(fileName, r)
	case ".xlsx":
		return ReadXLSX(fileName, r)
	default:
		return nil, fmt.Errorf("%w: %s (.csv または .xlsx をアップロードしてください)", ErrUnsupportedFormat, fileName)
	}
}

// ReadCSV parses a comma-delimited file whose first row is the header.
func ReadCSV(fileName string, r io.Reader) (*models.RecordSet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("No se pudo leer el CSV: %v", err)}
	}
	return buildRecordSet(fileName, rows)
}

// ReadXLSX は先頭シートを表として読み込む
func ReadXLSX(fileName string, r io.Reader) (*models.RecordSet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("No se pudo abrir el archivo Excel: %v", err)}
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("No se pudieron leer las filas de la hoja Excel: %v", err)}
	}
	return buildRecordSet(fileName, rows)
}

// buildRecordSet は行データを矩形に揃える。短い行は空セル（欠損）で補い、長い行はエラーにする。
func buildRecordSet(fileName string, rows [][]string) (*models.RecordSet, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, &ValidationError{Reason: "El archivo no tiene fila de encabezado."}
	}

	header := append([]string{}, rows[0]...)
	header[0] = strings.TrimPrefix(header[0], utf8BOM)

	data := make([][]string, 0, len(rows)-1)
	for i, row := range rows[1:] {
		// セルを持たない行（XLSXの空行）だけを飛ばす。",,," のような全欠損行は1件の入力として残す
		if len(row) == 0 {
			continue
		}
		if len(row) > len(header) {
			return nil, &ValidationError{
				Reason: fmt.Sprintf("La fila %d tiene %d columnas, más que las %d del encabezado.", i+2, len(row), len(header)),
			}
		}
		cells := make([]string, len(header))
		copy(cells, row)
		data = append(data, cells)
	}

	return &models.RecordSet{FileName: fileName, Header: header, Rows: data}, nil
}
