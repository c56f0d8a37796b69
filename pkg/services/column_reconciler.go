package services

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	config "churn-predict-api/configs"
	"churn-predict-api/pkg/models"
)

// missingTokens は欠損とみなすセル値（pandas の read_csv 既定の na_values と同じ集合）
var missingTokens = map[string]bool{
	"":         true,
	"#N/A":     true,
	"#N/A N/A": true,
	"#NA":      true,
	"-1.#IND":  true,
	"-1.#QNAN": true,
	"-NaN":     true,
	"-nan":     true,
	"1.#IND":   true,
	"1.#QNAN":  true,
	"<NA>":     true,
	"N/A":      true,
	"NA":       true,
	"NULL":     true,
	"NaN":      true,
	"None":     true,
	"n/a":      true,
	"nan":      true,
	"null":     true,
}

// IsMissing reports whether a raw cell counts as a missing value.
// Any spelling that parses as NaN is missing too.
func IsMissing(cell string) bool {
	s := strings.TrimSpace(cell)
	if missingTokens[s] {
		return true
	}
	v, err := strconv.ParseFloat(s, 64)
	return err == nil && math.IsNaN(v)
}

// Reconcile は検証済みの表を学習時の列スキーマ（targetColumns）に揃えた特徴量行列へ変換する。
//
//  1. 予約列を取り分ける
//  2. 予約列を特徴量フレームから除外する
//  3. プロファイルの既定値で欠損セルを補完する
//  4. カテゴリ列をワンホット化（水準を辞書順に並べ、先頭水準を落とす）
//  5. targetColumns の列集合・順序へ再索引し、存在しない列は 0 で埋める
//
// 学習時に見なかったカテゴリ値は対応する列が存在しないため、そのカテゴリのダミー列はすべて 0 になる。
func Reconcile(rs *models.RecordSet, profile *config.ColumnProfile, targetColumns []string) (*models.FeatureMatrix, *models.ReconcileReport, error) {
	if len(targetColumns) == 0 {
		return nil, nil, fmt.Errorf("target schema is empty")
	}
	if err := checkUniqueColumns(targetColumns); err != nil {
		return nil, nil, err
	}

	report := &models.ReconcileReport{}

	// 1-2. 予約列を取り分け、残りを特徴量列とする
	var featureIdx []int
	for i, h := range rs.Header {
		if profile.IsReserved(h) {
			report.ReservedColumns = append(report.ReservedColumns, h)
			continue
		}
		featureIdx = append(featureIdx, i)
		report.FeatureColumns = append(report.FeatureColumns, h)
	}

	// 生成される列名 -> 行ごとの値
	generated := make(map[string][]float64)
	var generatedOrder []string
	addColumn := func(name string, values []float64) {
		if _, exists := generated[name]; !exists {
			generatedOrder = append(generatedOrder, name)
		}
		generated[name] = values
	}

	nRows := len(rs.Rows)
	for _, idx := range featureIdx {
		name := rs.Header[idx]

		// 3. 欠損値補完
		cells := make([]string, nRows)
		fill, hasFill := profile.FillDefaults[name]
		for r, row := range rs.Rows {
			cell := row[idx]
			if hasFill && IsMissing(cell) {
				cell = fill
				report.FilledCells++
			}
			cells[r] = cell
		}

		values, ok, err := parseNumericColumn(name, cells)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			report.NumericColumns = append(report.NumericColumns, name)
			addColumn(name, values)
			continue
		}

		// 4. ワンホット化（drop_first）
		report.CategoricalColumns = append(report.CategoricalColumns, name)
		for _, dummy := range oneHotDropFirst(name, cells) {
			addColumn(dummy.name, dummy.values)
		}
	}

	// 5. 学習時スキーマへ再索引
	target := make(map[string]bool, len(targetColumns))
	for _, c := range targetColumns {
		target[c] = true
	}
	for _, name := range generatedOrder {
		if !target[name] {
			report.UnmatchedColumns = append(report.UnmatchedColumns, name)
		}
	}

	matrix := &models.FeatureMatrix{
		Columns: append([]string{}, targetColumns...),
		Values:  make([][]float64, nRows),
	}
	for r := 0; r < nRows; r++ {
		matrix.Values[r] = make([]float64, len(targetColumns))
	}
	for j, col := range targetColumns {
		values, ok := generated[col]
		if !ok {
			report.ZeroFilledColumns = append(report.ZeroFilledColumns, col)
			continue
		}
		for r := 0; r < nRows; r++ {
			matrix.Values[r][j] = values[r]
		}
	}

	return matrix, report, nil
}

// parseNumericColumn は欠損以外のすべてのセルが数値（または真偽値）なら数値列として返す。
// 残った欠損セルは 0 になる。全セル欠損の列も数値列扱い。無限大は検証エラー。
func parseNumericColumn(name string, cells []string) ([]float64, bool, error) {
	values := make([]float64, len(cells))
	for i, cell := range cells {
		if IsMissing(cell) {
			continue
		}
		v, ok := parseNumber(cell)
		if !ok {
			return nil, false, nil
		}
		if math.IsInf(v, 0) {
			return nil, false, &ValidationError{
				Reason: fmt.Sprintf("La columna '%s' contiene un valor infinito (%q) en la fila de datos %d.", name, strings.TrimSpace(cell), i+1),
			}
		}
		values[i] = v
	}
	return values, true, nil
}

func parseNumber(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	switch s {
	case "True", "TRUE", "true":
		return 1, true
	case "False", "FALSE", "false":
		return 0, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

type dummyColumn struct {
	name   string
	values []float64
}

// oneHotDropFirst は観測された水準ごとにダミー列を作り、辞書順で先頭の水準を落とす。
// 欠損セルはすべてのダミーが 0 になる。
func oneHotDropFirst(name string, cells []string) []dummyColumn {
	levelSet := make(map[string]bool)
	for _, cell := range cells {
		if !IsMissing(cell) {
			levelSet[cell] = true
		}
	}
	levels := make([]string, 0, len(levelSet))
	for l := range levelSet {
		levels = append(levels, l)
	}
	sort.Strings(levels)
	if len(levels) <= 1 {
		return nil
	}

	out := make([]dummyColumn, 0, len(levels)-1)
	for _, level := range levels[1:] {
		values := make([]float64, len(cells))
		for i, cell := range cells {
			if cell == level {
				values[i] = 1
			}
		}
		out = append(out, dummyColumn{name: name + "_" + level, values: values})
	}
	return out
}

func checkUniqueColumns(cols []string) error {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if seen[c] {
			return fmt.Errorf("target schema lists column %q twice", c)
		}
		seen[c] = true
	}
	return nil
}
