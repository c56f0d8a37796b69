package handlers

import (
	"embed"
	"encoding/base64"
	"errors"
	"html/template"
	"log"
	"net/http"

	"churn-predict-api/pkg/models"
	"churn-predict-api/pkg/services"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

// LoadTemplates は埋め込みのHTMLテンプレートを読み込みます。
func LoadTemplates() (*template.Template, error) {
	return template.New("").ParseFS(templateFS, "templates/*.html")
}

// PageHandler はアップロードフォームと結果ページを返します。
type PageHandler struct {
	predictions  *PredictionHandler
	dashboardURL string
}

// NewPageHandler は新しいPageHandlerを生成します。
func NewPageHandler(predictions *PredictionHandler, dashboardURL string) *PageHandler {
	return &PageHandler{predictions: predictions, dashboardURL: dashboardURL}
}

type pageData struct {
	Profiles        []string
	SelectedProfile string
	SyncEnabled     bool
	SyncDisabledMsg string
	DashboardURL    string
	Error           string
	MissingColumns  []string
	Result          *pageResult
}

type pageResult struct {
	RunID        string
	FileName     string
	RowCount     int
	Preview      *models.RecordSet
	Table        *models.ResultTable
	Report       *models.ReconcileReport
	Sync         *models.SyncStatus
	DownloadURI  template.URL
	DownloadName string
}

// Index はアップロードフォームを表示します。
func (h *PageHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", h.baseData(""))
}

// Predict はフォームから送られたファイルを採点し、結果ページを表示します。
func (h *PageHandler) Predict(c *gin.Context) {
	outcome, err := h.predictions.execute(c, false)
	if err != nil {
		data := h.baseData(c.PostForm("profile"))
		data.Error = userMessage(err)
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			data.MissingColumns = verr.Missing
		}
		log.Printf("⚠️ [ページ] 予測に失敗: %v", err)
		c.HTML(statusFor(err), "index.html", data)
		return
	}

	csvBytes, err := services.EncodeCSV(outcome.Results)
	if err != nil {
		log.Printf("❌ [ページ] CSVの生成に失敗: %v", err)
	}

	data := h.baseData(outcome.Profile.Name)
	data.Result = &pageResult{
		RunID:        outcome.RunID,
		FileName:     outcome.Records.FileName,
		RowCount:     len(outcome.Results.Rows),
		Preview:      outcome.Preview,
		Table:        outcome.Results,
		Report:       outcome.Report,
		Sync:         outcome.Sync,
		DownloadName: services.CSVFileName,
	}
	if csvBytes != nil {
		// サーバーに状態を持たないよう、ダウンロードはデータURIで埋め込む
		data.Result.DownloadURI = template.URL("data:text/csv;charset=utf-8;base64," + base64.StdEncoding.EncodeToString(csvBytes))
	}
	c.HTML(http.StatusOK, "index.html", data)
}

func (h *PageHandler) baseData(selected string) pageData {
	pipeline := h.predictions.pipeline
	if selected == "" {
		selected = pipeline.Profiles().Default
	}
	data := pageData{
		Profiles:        pipeline.Profiles().Names(),
		SelectedProfile: selected,
		SyncEnabled:     pipeline.SyncGateway().Enabled(),
		DashboardURL:    h.dashboardURL,
	}
	if reason := pipeline.SyncGateway().DisabledReason(); reason != nil {
		data.SyncDisabledMsg = reason.Error()
	}
	return data
}
