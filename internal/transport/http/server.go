// Package http provides the HTTP server for the swarm API.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	v1 "github.com/Nasti98RS/swarm-db-api/internal/transport/http/v1"
	"github.com/Nasti98RS/swarm-db-api/internal/transport/ws"
)

// NewServer creates the echo server with the chat API and, when wsServer is
// non-nil, the WebSocket endpoint.
func NewServer(h *v1.Handler, wsServer *ws.Server, logger *zap.Logger) *echo.Echo {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(requestLogger(logger.With(zap.String("component", "access"))))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Register Routes
	h.RegisterRoutes(e)
	if wsServer != nil {
		wsServer.RegisterRoutes(e)
	}

	return e
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,

		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				logger.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	})
}
