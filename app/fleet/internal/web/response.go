package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/steamfleet/app/fleet/internal/bot"
	"github.com/lk2023060901/steamfleet/app/fleet/internal/fleet"
)

// errorResponse 统一的错误响应体
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// statusByError 业务错误到 HTTP 状态码的映射
var statusByError = []struct {
	err  error
	code int
}{
	{fleet.ErrBotNotFound, http.StatusNotFound},
	{fleet.ErrBotExists, http.StatusConflict},
	{fleet.ErrLoginWithID, http.StatusBadRequest},
	{fleet.ErrMissingPassword, http.StatusBadRequest},
	{bot.ErrConnectPending, http.StatusConflict},
	{bot.ErrNoWebSession, http.StatusConflict},
	{bot.ErrWebRefreshCooldown, http.StatusTooManyRequests},
	{bot.ErrSwitchCooldown, http.StatusTooManyRequests},
	{bot.ErrConnectTimeout, http.StatusGatewayTimeout},
	{bot.ErrReadyTimeout, http.StatusGatewayTimeout},
	{bot.ErrInspectTimeout, http.StatusGatewayTimeout},
	{bot.ErrMissingInventoryApp, http.StatusBadRequest},
	{bot.ErrUnsupportedApp, http.StatusBadRequest},
}

// abortError 按业务错误写出响应并中止处理链
func abortError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			code = m.code
			break
		}
	}
	c.AbortWithStatusJSON(code, errorResponse{
		Error:   http.StatusText(code),
		Message: err.Error(),
	})
}

// abortBadRequest 请求体或参数非法
func abortBadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Error:   http.StatusText(http.StatusBadRequest),
		Message: err.Error(),
	})
}
