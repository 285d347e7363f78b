// Package server 提供 HTTP Server 功能
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KodaTao/DayPlanner/pkg/observability"
	"github.com/KodaTao/DayPlanner/pkg/types"
)

// Server HTTP 服务器
type Server struct {
	planner types.Planner
	engine  *gin.Engine
	config  *ServerConfig
	httpSrv *http.Server
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string
	Port int
	Mode string // debug, release, test

	// CORSOrigins 为空时允许所有来源
	CORSOrigins []string

	// MetricsEnabled 是否暴露 Prometheus 指标
	MetricsEnabled bool
	MetricsPath    string
}

// NewServer 创建 HTTP 服务器
func NewServer(planner types.Planner, config *ServerConfig) *Server {
	// 设置 Gin 模式
	switch config.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()

	// 添加中间件
	engine.Use(RecoveryMiddleware())
	engine.Use(RequestIDMiddleware())
	engine.Use(LoggerMiddleware())
	engine.Use(CORSMiddleware(config.CORSOrigins))

	server := &Server{
		planner: planner,
		engine:  engine,
		config:  config,
	}

	// 注册路由
	server.setupRoutes()

	return server
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// 页面与静态资源
	s.engine.GET("/", s.index)
	s.engine.StaticFS("/static", staticFS())

	// 健康检查
	s.engine.GET("/health", s.healthCheck)

	// 日程生成
	s.engine.POST("/generate-schedule", s.generateSchedule)
	s.engine.POST("/generate-schedule/stream", s.generateScheduleStream)

	if s.config.MetricsEnabled {
		path := s.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.engine.GET(path, gin.WrapH(promhttp.Handler()))
	}
}

// Addr 返回监听地址
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Run 启动服务器，阻塞直到 Shutdown 被调用或监听失败
func (s *Server) Run() error {
	s.httpSrv = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	observability.Info("Starting HTTP server", "address", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭，等待进行中的请求完成
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// GetEngine 获取 Gin 引擎（用于测试）
func (s *Server) GetEngine() *gin.Engine {
	return s.engine
}

// CORSMiddleware 跨域中间件
func CORSMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", observability.RequestIDHeader)
	cfg.ExposeHeaders = []string{observability.RequestIDHeader}
	return cors.New(cfg)
}
