//go:build ignore

package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	"churn-predict-api/pkg/services"
)

// 学習済みモデルの代わりに使うデモ用ロジスティック回帰。
// 列名は Telco 顧客データを drop_first でワンホット化した後のもの。
var demoWeights = []struct {
	column string
	weight float64
}{
	{"Age", 0.012},
	{"Number of Dependents", -0.35},
	{"Number of Referrals", -0.22},
	{"Tenure in Months", -0.045},
	{"Avg Monthly Long Distance Charges", 0.002},
	{"Avg Monthly GB Download", 0.004},
	{"Monthly Charge", 0.018},
	{"Total Charges", -0.0002},
	{"Total Refunds", -0.01},
	{"Total Extra Data Charges", 0.003},
	{"Total Long Distance Charges", -0.0001},
	{"Total Revenue", -0.0001},
	{"Customer Satisfaction", -0.9},
	{"Gender_Male", 0.02},
	{"Married_Yes", -0.15},
	{"Multiple Lines_Yes", 0.1},
	{"Internet Service_Yes", 0.2},
	{"Online Security_Yes", -0.4},
	{"Online Backup_Yes", -0.15},
	{"Device Protection Plan_Yes", -0.1},
	{"Premium Tech Support_Yes", -0.45},
	{"Streaming TV_Yes", 0.05},
	{"Streaming Movies_Yes", 0.05},
	{"Streaming Music_Yes", 0.03},
	{"Unlimited Data_Yes", 0.12},
	{"Contract_One Year", -1.1},
	{"Contract_Two Year", -2.3},
	{"Paperless Billing_Yes", 0.3},
	{"Payment Method_Credit Card", -0.35},
	{"Payment Method_Mailed Check", 0.15},
}

func main() {
	log.Println("🚀 デモ用モデル成果物を生成します...")

	artifact := &services.ModelArtifact{
		Name:      "churn-logit-demo",
		Version:   "1.0.0",
		TrainedAt: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
		Model: services.ClassifierSpec{
			Type:        services.ModelTypeLogistic,
			Intercept:   2.1,
			Threshold:   0.5,
			ClassLabels: []string{"Stayed", "Churned"},
		},
	}
	for _, w := range demoWeights {
		artifact.Columns = append(artifact.Columns, w.column)
		artifact.Model.Weights = append(artifact.Model.Weights, w.weight)
	}

	if _, err := services.NewClassifier(artifact); err != nil {
		log.Fatalf("❌ 成果物が不正です: %v", err)
	}

	path := filepath.Join("artifacts", "modelo_entrenado.json")
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Fatalf("❌ ディレクトリの作成に失敗: %v", err)
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		log.Fatalf("❌ JSONの生成に失敗: %v", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		log.Fatalf("❌ 書き込みに失敗: %v", err)
	}
	log.Printf("✅ %s に %d 列のモデルを書き出しました", path, len(artifact.Columns))
}
