package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/lk2023060901/steamfleet/app/fleet/internal/metrics"
	"github.com/lk2023060901/steamfleet/pkg/logger"
)

// apiKeyHeader 访问密钥所在的请求头
const apiKeyHeader = "X-Api-Key"

// authMiddleware 校验访问密钥
func authMiddleware(keys *KeyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !keys.Valid(c.GetHeader(apiKeyHeader)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
				Error:   http.StatusText(http.StatusUnauthorized),
				Message: "missing or invalid api key",
			})
			return
		}
		c.Next()
	}
}

// rateLimitMiddleware 全局限流
func rateLimitMiddleware(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
				Error:   http.StatusText(http.StatusTooManyRequests),
				Message: "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// metricsMiddleware 记录请求指标
func metricsMiddleware(m *metrics.FleetMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if m != nil {
			m.ObserveRequest(c.Request.Method, c.Writer.Status())
		}
	}
}

// loggingMiddleware 记录访问日志
func loggingMiddleware(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client", c.ClientIP(),
		)
	}
}
