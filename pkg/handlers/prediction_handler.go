package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"churn-predict-api/pkg/models"
	"churn-predict-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// PredictionHandler はチャーン予測APIのハンドラです。
type PredictionHandler struct {
	pipeline       *services.PipelineService
	history        *services.HistoryService
	maxUploadBytes int64
}

// NewPredictionHandler は新しいPredictionHandlerを生成します。history は nil でもよい。
func NewPredictionHandler(pipeline *services.PipelineService, history *services.HistoryService, maxUploadMB int64) *PredictionHandler {
	return &PredictionHandler{
		pipeline:       pipeline,
		history:        history,
		maxUploadBytes: maxUploadMB << 20,
	}
}

// PredictJSON はアップロードされたCSV/XLSXを採点し、結果と同期状況をJSONで返します。
func (h *PredictionHandler) PredictJSON(c *gin.Context) {
	outcome, ok := h.run(c, true)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, models.PredictResponse{
		Success:    true,
		RunID:      outcome.RunID,
		Profile:    outcome.Profile.Name,
		RowCount:   len(outcome.Results.Rows),
		Preview:    outcome.Preview,
		Results:    outcome.Results,
		Reconcile:  outcome.Report,
		Sync:       outcome.Sync,
		DurationMs: outcome.Duration.Milliseconds(),
	})
}

// Download は採点結果をファイルとして返します（?format=csv|xlsx|predictions）。
func (h *PredictionHandler) Download(c *gin.Context) {
	format := c.DefaultQuery("format", services.ExportFormatCSV)
	fileName, contentType, err := services.ExportTarget(format)
	if err != nil {
		respondError(c, err)
		return
	}

	outcome, ok := h.run(c, false)
	if !ok {
		return
	}

	// 識別子＋予測のみの形式は書き出し前に組み立てておく
	var rows []models.PredictionRow
	if strings.EqualFold(format, services.ExportFormatPredictions) {
		rows, err = services.PredictionRows(outcome.Records, outcome.Profile, outcome.Predictions)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Header("X-Run-ID", outcome.RunID)
	c.Status(http.StatusOK)

	if rows != nil {
		err = services.ExportPredictions(c.Writer, rows, services.ExportFormatCSV)
	} else {
		err = services.Export(c.Writer, outcome.Results, format)
	}
	if err != nil {
		log.Printf("❌ [ダウンロード] 書き出しに失敗: %v", err)
	}
}

// GetModelInfo は読み込まれたモデルのメタデータを返します。
func (h *PredictionHandler) GetModelInfo(c *gin.Context) {
	bundle, err := h.pipeline.Model()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "model": bundle.Info()})
}

// GetProfiles は利用可能な列プロファイルを返します。
func (h *PredictionHandler) GetProfiles(c *gin.Context) {
	profiles := h.pipeline.Profiles()
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"default":  profiles.Default,
		"profiles": profiles.All(),
	})
}

// ListRuns は直近の実行履歴を返します。
func (h *PredictionHandler) ListRuns(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "enabled": false, "runs": []models.RunSummary{}})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 200 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "limit debe ser un entero entre 1 y 200."})
		return
	}
	runs, err := h.history.Recent(c.Request.Context(), limit)
	if err != nil {
		log.Printf("❌ [履歴] 取得に失敗: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "No se pudo obtener el historial de ejecuciones."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "enabled": true, "runs": runs})
}

// run はアップロードを読み込んでパイプラインを実行する。失敗時はレスポンスを書いて false を返す。
func (h *PredictionHandler) run(c *gin.Context, defaultSync bool) (*services.PipelineOutcome, bool) {
	outcome, err := h.execute(c, defaultSync)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return outcome, true
}

// execute はJSON APIとHTMLページで共通の実行部分。
// フォーム値はアップロード上限を設定した後で読む。
func (h *PredictionHandler) execute(c *gin.Context, defaultSync bool) (*services.PipelineOutcome, error) {
	rs, err := readUpload(c, h.maxUploadBytes)
	if err != nil {
		return nil, err
	}
	log.Printf("📊 [予測] ファイル受信: %s (%d行, %d列)", rs.FileName, len(rs.Rows), len(rs.Header))

	outcome, err := h.pipeline.Run(c.Request.Context(), services.PipelineRequest{
		Records:     rs,
		ProfileName: c.PostForm("profile"),
		Sync:        formBool(c, "sync", defaultSync),
		SheetName:   c.PostForm("sheet"),
	})
	if err != nil {
		return nil, err
	}
	log.Printf("✅ [予測] run=%s 完了: %d件 (%dms)", outcome.RunID, len(outcome.Results.Rows), outcome.Duration.Milliseconds())
	if outcome.Sync.Error != "" {
		log.Printf("⚠️ [同期] run=%s: %s", outcome.RunID, outcome.Sync.Error)
	}
	return outcome, nil
}
