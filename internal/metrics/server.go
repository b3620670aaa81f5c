package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fachebot/holehe-bot/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus /health 的返回内容
type HealthStatus struct {
	Status    string `json:"status"`
	Tool      string `json:"tool"`
	Timestamp int64  `json:"timestamp"`
}

// Server 暴露 /metrics 与 /health
type Server struct {
	metrics *Metrics
	engine  *gin.Engine
	http    *http.Server
}

func NewServer(addr string, m *Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		metrics: m,
		engine:  engine,
		http: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	handler := promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})
	engine.GET("/metrics", gin.WrapH(handler))
	engine.GET("/health", s.health)
	return s
}

// Handler 返回 HTTP 处理器
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start 在后台启动 HTTP 服务
func (s *Server) Start() {
	go func() {
		logger.Infof("[Metrics] 指标服务已启动: %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("[Metrics] 指标服务异常退出: %v", err)
		}
	}()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	status := HealthStatus{
		Status:    StatusHealthy,
		Tool:      "available",
		Timestamp: time.Now().Unix(),
	}
	code := http.StatusOK
	if !s.metrics.ToolAvailable() {
		status.Status = StatusUnhealthy
		status.Tool = "missing"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
