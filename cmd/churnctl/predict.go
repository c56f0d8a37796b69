package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"churn-predict-api/pkg/models"
	"churn-predict-api/pkg/server"
	"churn-predict-api/pkg/services"

	"github.com/spf13/cobra"
)

var (
	inputFile       string
	outputFile      string
	profileName     string
	syncResults     bool
	sheetName       string
	predictionsOnly bool
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score a customer file and write the predictions",
	Long:  "Score a customer CSV/XLSX file and write predicciones.csv (or .xlsx by output extension)",
	RunE:  runPredict,
}

func init() {
	predictCmd.Flags().StringVarP(&inputFile, "input", "i", "", "CSV or XLSX file to score (required)")
	predictCmd.Flags().StringVarP(&outputFile, "output", "o", services.CSVFileName, "output file (.csv or .xlsx)")
	predictCmd.Flags().StringVarP(&profileName, "profile", "p", "", "column profile (default from COLUMN_PROFILE)")
	predictCmd.Flags().BoolVar(&syncResults, "sync", false, "overwrite the configured Google Sheet with the results")
	predictCmd.Flags().StringVar(&sheetName, "sheet", "", "sheet title or ID (default from SHEETS_SPREADSHEET_ID / SHEETS_TITLE)")
	predictCmd.Flags().BoolVar(&predictionsOnly, "predictions-only", false, "write only Customer ID and Prediction")

	predictCmd.MarkFlagRequired("input")
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := server.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pipeline, history, err := server.NewPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	f, err := os.Open(inputFile)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	rs, err := services.ReadTable(filepath.Base(inputFile), f)
	f.Close()
	if err != nil {
		return err
	}
	log.Printf("Read %d rows (%d columns) from %s", len(rs.Rows), len(rs.Header), inputFile)

	outcome, err := pipeline.Run(ctx, services.PipelineRequest{
		Records:     rs,
		ProfileName: profileName,
		Sync:        syncResults,
		SheetName:   sheetName,
	})
	if err != nil {
		return err
	}

	if err := writeOutput(outputFile, outcome, predictionsOnly); err != nil {
		return err
	}
	log.Printf("Wrote %d predictions to %s (run %s)", len(outcome.Results.Rows), outputFile, outcome.RunID)

	if len(outcome.Report.UnmatchedColumns) > 0 {
		log.Printf("Warning: values not seen in training were ignored: %s", strings.Join(outcome.Report.UnmatchedColumns, ", "))
	}
	switch {
	case outcome.Sync.Success:
		log.Printf("Synced to %s", outcome.Sync.SheetURL)
	case outcome.Sync.Error != "":
		// 予測結果は書き出し済みなので、同期失敗はエラー終了にしない
		log.Printf("Warning: sync failed: %s", outcome.Sync.Error)
	}
	return nil
}

// outputFormat は出力ファイルの拡張子から形式を決める（.xlsx 以外はCSV）
func outputFormat(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return services.ExportFormatXLSX
	}
	return services.ExportFormatCSV
}

func writeOutput(path string, outcome *services.PipelineOutcome, onlyPredictions bool) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer out.Close()

	format := outputFormat(path)
	if onlyPredictions {
		var rows []models.PredictionRow
		rows, err = services.PredictionRows(outcome.Records, outcome.Profile, outcome.Predictions)
		if err != nil {
			return err
		}
		err = services.ExportPredictions(out, rows, format)
	} else {
		err = services.Export(out, outcome.Results, format)
	}
	if err != nil {
		return err
	}
	return out.Close()
}
