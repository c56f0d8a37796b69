package handlers

import (
	"crypto/subtle"
	"log"
	"net/http"
	"sync/atomic"

	config "churn-predict-api/configs"
	"churn-predict-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler は管理者向け操作のハンドラです。
// メンテナンス中は予測エンドポイントが 503 を返します。
type AdminHandler struct {
	AdminUsername string
	AdminPassword string

	pipeline    *services.PipelineService
	maintenance atomic.Bool
}

// NewAdminHandler は新しいAdminHandlerを生成します。
func NewAdminHandler(cfg *config.Config, pipeline *services.PipelineService) *AdminHandler {
	return &AdminHandler{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		pipeline:      pipeline,
	}
}

// AdminCredentials は管理者認証のためのリクエストボディです。
type AdminCredentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// StartMaintenance はメンテナンスモードを開始します。
func (h *AdminHandler) StartMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	h.maintenance.Store(true)
	log.Printf("🛠️ [管理] メンテナンスモード開始")
	c.JSON(http.StatusOK, gin.H{"message": "Maintenance mode started"})
}

// StopMaintenance はメンテナンスモードを停止します。
func (h *AdminHandler) StopMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	h.maintenance.Store(false)
	log.Printf("🛠️ [管理] メンテナンスモード終了")
	c.JSON(http.StatusOK, gin.H{"message": "Maintenance mode stopped"})
}

func (h *AdminHandler) authorize(c *gin.Context) bool {
	var input AdminCredentials
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return false
	}
	// 管理者情報が未設定なら常に拒否
	if h.AdminUsername == "" || h.AdminPassword == "" ||
		subtle.ConstantTimeCompare([]byte(input.Username), []byte(h.AdminUsername)) != 1 ||
		subtle.ConstantTimeCompare([]byte(input.Password), []byte(h.AdminPassword)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return false
	}
	return true
}

// GetHealthStatus はメンテナンス状態・モデルの読み込み状態・同期の可否を返します。
func (h *AdminHandler) GetHealthStatus(c *gin.Context) {
	status := gin.H{
		"isMaintenanceMode": h.maintenance.Load(),
		"syncEnabled":       h.pipeline.SyncGateway().Enabled(),
	}
	if reason := h.pipeline.SyncGateway().DisabledReason(); reason != nil {
		status["syncError"] = reason.Error()
	}
	if bundle, err := h.pipeline.Model(); err != nil {
		status["model"] = gin.H{"loaded": false, "error": err.Error()}
	} else {
		status["model"] = gin.H{"loaded": true, "name": bundle.Artifact.Name, "version": bundle.Artifact.Version}
	}
	c.JSON(http.StatusOK, status)
}

// HealthCheck は外部のヘルスチェッカー（例: ロードバランサー）からのリクエストに応答します。
func (h *AdminHandler) HealthCheck(c *gin.Context) {
	if h.maintenance.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": "Server is in maintenance mode"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "churn-predict-api"})
}

// MaintenanceGuard はメンテナンス中のリクエストを 503 で止めるミドルウェアです。
func (h *AdminHandler) MaintenanceGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.maintenance.Load() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error":   "El servicio está en mantenimiento. Inténtelo de nuevo más tarde.",
			})
			return
		}
		c.Next()
	}
}
