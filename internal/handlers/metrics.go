package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// MetricsHandler exposes a Prometheus handler at GET /metrics.
type MetricsHandler struct {
	handler http.Handler
}

// NewMetricsHandler wraps h, typically metrics.Recorder.Handler().
func NewMetricsHandler(h http.Handler) *MetricsHandler {
	return &MetricsHandler{handler: h}
}

// Register mounts GET /metrics.
func (h *MetricsHandler) Register(e *echo.Echo) {
	e.GET("/metrics", echo.WrapHandler(h.handler))
}
