// churnctl はサーバーを立てずにCSV/XLSXファイルを一括採点するCLIです。
package main

import (
	"log"

	config "churn-predict-api/configs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfg       *config.Config
	modelPath string
)

var rootCmd = &cobra.Command{
	Use:   "churnctl",
	Short: "Batch churn scoring for customer CSV/XLSX files",
	Long: `churnctl runs the same validation, reconciliation and inference pipeline
as the web service against a local file, and optionally syncs the results
to Google Sheets.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&modelPath, "model", "m", "", "model artifact path (overrides MODEL_PATH)")
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(inspectModelCmd)
}

func initConfig() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it: %v", err)
	}

	cfg = config.LoadConfig()
	if modelPath != "" {
		cfg.ModelPath = modelPath
	}
}
