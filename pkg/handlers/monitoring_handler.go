package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"churn-predict-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// MonitoringHandler はモニタリング関連の操作のハンドラです。
type MonitoringHandler struct {
	Service *services.MonitoringService
}

// NewMonitoringHandler は新しいMonitoringHandlerを生成します。
func NewMonitoringHandler(service *services.MonitoringService) *MonitoringHandler {
	return &MonitoringHandler{Service: service}
}

// GetLogs は集計されたログデータを返します。period は "6h" や "7d" の形式（既定 24h、最大 7d）。
func (h *MonitoringHandler) GetLogs(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.GetDashboardData(periodHours(c.DefaultQuery("period", "24h"))))
}

func periodHours(period string) int {
	const def, max = 24, 24 * 7

	unit := 1
	switch {
	case strings.HasSuffix(period, "h"):
		period = strings.TrimSuffix(period, "h")
	case strings.HasSuffix(period, "d"):
		period = strings.TrimSuffix(period, "d")
		unit = 24
	default:
		return def
	}
	n, err := strconv.Atoi(period)
	if err != nil || n <= 0 {
		return def
	}
	if n*unit > max {
		return max
	}
	return n * unit
}
