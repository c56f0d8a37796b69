package services

import (
	"errors"
	"fmt"
	"strings"

	config "churn-predict-api/configs"
	"churn-predict-api/pkg/models"
)

// ErrValidation はスキーマ検証エラーの番兵。これが返った場合、推論・同期は一切行われない。
var ErrValidation = errors.New("schema validation failed")

// ValidationError describes why an upload was rejected.
type ValidationError struct {
	Missing    []string
	Duplicates []string
	Reason     string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		quoted := make([]string, len(e.Missing))
		for i, m := range e.Missing {
			quoted[i] = fmt.Sprintf("'%s'", m)
		}
		parts = append(parts, fmt.Sprintf("Faltan columnas obligatorias: %s. Agréguelas al archivo e inténtelo de nuevo.", strings.Join(quoted, ", ")))
	}
	if len(e.Duplicates) > 0 {
		parts = append(parts, fmt.Sprintf("Hay columnas duplicadas: %s.", strings.Join(e.Duplicates, ", ")))
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	if len(parts) == 0 {
		return ErrValidation.Error()
	}
	return strings.Join(parts, " ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ValidateSchema はアップロード表がプロファイルの必須列を含むかを確認する。
// 列名は完全一致（大文字小文字を区別）。副作用はない。
func ValidateSchema(rs *models.RecordSet, profile *config.ColumnProfile) error {
	if rs == nil || len(rs.Header) == 0 {
		return &ValidationError{Reason: "El archivo no tiene fila de encabezado."}
	}

	verr := &ValidationError{}

	seen := make(map[string]int, len(rs.Header))
	for _, h := range rs.Header {
		seen[h]++
		if seen[h] == 2 {
			verr.Duplicates = append(verr.Duplicates, h)
		}
	}

	for _, col := range profile.RequiredColumns() {
		if seen[col] == 0 {
			verr.Missing = append(verr.Missing, col)
		}
	}

	if len(verr.Missing) == 0 && len(verr.Duplicates) == 0 && len(rs.Rows) == 0 {
		verr.Reason = "El archivo debe tener una fila de encabezado y al menos una fila de datos."
	}

	if len(verr.Missing) > 0 || len(verr.Duplicates) > 0 || verr.Reason != "" {
		return verr
	}
	return nil
}
