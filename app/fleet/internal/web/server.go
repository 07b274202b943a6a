// Package web 提供编队的 HTTP 控制接口。
// 所有业务端点挂在 /api/v1 下，凭 X-Api-Key 访问。
package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/lk2023060901/steamfleet/app/fleet/internal/fleet"
	"github.com/lk2023060901/steamfleet/app/fleet/internal/metrics"
	"github.com/lk2023060901/steamfleet/pkg/logger"
)

// Server 控制接口服务
type Server struct {
	cfg      *Config
	logger   logger.Logger
	registry *fleet.Registry
	metrics  *metrics.FleetMetrics
	keys     *KeyStore

	engine     *gin.Engine
	httpServer *http.Server
}

// NewServer 创建控制接口服务并注册路由
func NewServer(cfg *Config, registry *fleet.Registry, m *metrics.FleetMetrics, keys *KeyStore, l logger.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		cfg:      cfg,
		logger:   l.Named("web"),
		registry: registry,
		metrics:  m,
		keys:     keys,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), loggingMiddleware(s.logger), metricsMiddleware(m))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if m != nil {
		engine.GET("/metrics", gin.WrapH(m.Handler()))
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	api := engine.Group("/api/v1", rateLimitMiddleware(limiter), authMiddleware(keys))

	api.GET("/status", s.getStatus)

	api.GET("/bots", s.listBots)
	api.POST("/bots", s.addBot)
	api.GET("/bots/:id", s.getBot)
	api.DELETE("/bots/:id", s.removeBot)
	api.POST("/bots/:id/reconnect", s.reconnectBot)
	api.POST("/bots/:id/confirmations", s.queueConfirmations)
	api.POST("/bots/:id/otp", s.sendOTP)
	api.GET("/bots/:id/apikey", s.getAPIKey)
	api.GET("/bots/:id/offer-token", s.getOfferToken)

	api.GET("/bots/:id/inventory", s.getInventory)
	api.GET("/bots/:id/inventory-context", s.getInventoryContext)

	api.GET("/bots/:id/offers", s.listOffers)
	api.POST("/bots/:id/offers", s.createOffer)
	api.GET("/bots/:id/offers/:offerID", s.getOffer)
	api.POST("/bots/:id/offers/:offerID/accept", s.acceptOffer)
	api.DELETE("/bots/:id/offers/:offerID", s.cancelOffer)

	api.GET("/bots/:id/gc/:app/info", s.getGameInfo)
	api.GET("/bots/:id/gc/:app/inventory", s.getGameInventory)
	api.POST("/bots/:id/gc/:app/play", s.playGame)
	api.POST("/bots/:id/gc/:app/inspect", s.inspectItem)
	api.DELETE("/bots/:id/gc/:app/play", s.closeGame)

	s.engine = engine
	s.httpServer = &http.Server{Addr: cfg.Addr, Handler: engine}
	return s
}

// Handler 返回 HTTP 处理器，供测试直接调用
func (s *Server) Handler() http.Handler { return s.engine }

// Start 在后台启动监听
func (s *Server) Start() {
	s.logger.Info("control api listening", "addr", s.cfg.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control api server exited", "error", err)
		}
	}()
}

// Shutdown 优雅停机
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("control api shutting down")
	return s.httpServer.Shutdown(ctx)
}
