package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/DCbrown/interview-ai-app/internal/config"
)

// Server bundles the echo instance and the handler to mount.
type Server struct {
	Echo   *echo.Echo
	Router http.Handler
}

// New constructs the HTTP server with routes.
func New(cfg config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestLogger())
	if cfg.MaxUploadBytes > 0 {
		// multipart framing on top of the largest accepted file
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dK", (cfg.MaxUploadBytes+1<<20)/1024)))
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	h := NewHandlers(deps, cfg.MaxUploadBytes)
	h.Register(e)

	return &Server{Echo: e, Router: e}
}

// requestLogger routes echo's access log through zerolog.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("component", "http").
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remoteIp", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
