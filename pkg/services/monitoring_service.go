package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultMaxLogEntries = 1000

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"status_code"`
	ResponseTime time.Duration `json:"response_time"`
}

// MonitoringService はリクエストログを直近 maxEntries 件だけ保持し、集計を提供します。
type MonitoringService struct {
	mu         sync.RWMutex
	logs       []LogEntry
	maxEntries int
	logger     *zap.Logger
	now        func() time.Time
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
func NewMonitoringService(maxEntries int, logger *zap.Logger) *MonitoringService {
	if maxEntries <= 0 {
		maxEntries = defaultMaxLogEntries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MonitoringService{
		logs:       make([]LogEntry, 0),
		maxEntries: maxEntries,
		logger:     logger,
		now:        time.Now,
	}
}

// LogRequest はリクエストを記録します。上限を超えたら古いものから捨てます。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	if over := len(s.logs) - s.maxEntries; over > 0 {
		s.logs = append(s.logs[:0:0], s.logs[over:]...)
	}
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.now()

		c.Next()

		// 管理系・モニタリング系・静的ファイルは集計しない
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/v1/admin") || strings.HasPrefix(path, "/api/v1/monitoring") || strings.HasPrefix(path, "/static") {
			return
		}

		entry := LogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: s.now().Sub(start),
		}
		s.LogRequest(entry)

		fields := []zap.Field{
			zap.String("method", entry.Method),
			zap.String("path", entry.Path),
			zap.Int("status", entry.StatusCode),
			zap.Duration("latency", entry.ResponseTime),
		}
		if entry.StatusCode >= 500 {
			s.logger.Error("request failed", fields...)
		} else {
			s.logger.Debug("request", fields...)
		}
	}
}

// EndpointStats はエンドポイントごとの集計
type EndpointStats struct {
	Endpoint      string `json:"endpoint"`
	Requests      int    `json:"requests"`
	AvgResponseMs int64  `json:"avg_response_ms"`
}

// DashboardData はダッシュボードに表示するための集計済みデータです。
type DashboardData struct {
	PeriodHours  int             `json:"period_hours"`
	Total        int             `json:"total"`
	StatusCodes  map[string]int  `json:"status_codes"`
	Endpoints    []EndpointStats `json:"endpoints"`
	RecentErrors []LogEntry      `json:"recent_errors"`
}

// GetDashboardData は直近 periodHours 時間のログを集計します。
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	since := s.now().Add(-time.Duration(periodHours) * time.Hour)

	data := DashboardData{
		PeriodHours: periodHours,
		StatusCodes: map[string]int{
			"2xx Success":      0,
			"4xx Client Error": 0,
			"5xx Server Error": 0,
		},
		Endpoints:    make([]EndpointStats, 0),
		RecentErrors: make([]LogEntry, 0),
	}

	byPath := make(map[string]*EndpointStats)
	totalTime := make(map[string]time.Duration)
	for _, entry := range s.logs {
		if entry.Timestamp.Before(since) {
			continue
		}
		data.Total++

		switch {
		case entry.StatusCode >= 200 && entry.StatusCode < 300:
			data.StatusCodes["2xx Success"]++
		case entry.StatusCode >= 400 && entry.StatusCode < 500:
			data.StatusCodes["4xx Client Error"]++
		case entry.StatusCode >= 500:
			data.StatusCodes["5xx Server Error"]++
		}

		st, ok := byPath[entry.Path]
		if !ok {
			st = &EndpointStats{Endpoint: entry.Path}
			byPath[entry.Path] = st
		}
		st.Requests++
		totalTime[entry.Path] += entry.ResponseTime
	}

	for path, st := range byPath {
		st.AvgResponseMs = totalTime[path].Milliseconds() / int64(st.Requests)
		data.Endpoints = append(data.Endpoints, *st)
	}
	sort.Slice(data.Endpoints, func(i, j int) bool {
		if data.Endpoints[i].Requests != data.Endpoints[j].Requests {
			return data.Endpoints[i].Requests > data.Endpoints[j].Requests
		}
		return data.Endpoints[i].Endpoint < data.Endpoints[j].Endpoint
	})

	// 新しい順に最大10件
	for i := len(s.logs) - 1; i >= 0 && len(data.RecentErrors) < 10; i-- {
		if s.logs[i].StatusCode >= 500 && !s.logs[i].Timestamp.Before(since) {
			data.RecentErrors = append(data.RecentErrors, s.logs[i])
		}
	}

	return data
}
