package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/immich-bridge/internal/immich"
	"github.com/memohai/immich-bridge/internal/version"
)

// ImmichChecker reports connectivity to the asset server. *immich.Client implements it.
type ImmichChecker interface {
	Check(ctx context.Context) immich.Report
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Immich  struct {
		Reachable bool   `json:"reachable"`
		Detail    string `json:"detail"`
		User      string `json:"user"`
	} `json:"immich"`
}

// HealthHandler serves GET /health: 200 when Immich answers, 503 otherwise.
type HealthHandler struct {
	checker ImmichChecker
	logger  *slog.Logger
}

// NewHealthHandler creates a readiness handler backed by checker.
func NewHealthHandler(log *slog.Logger, checker ImmichChecker) *HealthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &HealthHandler{
		checker: checker,
		logger:  log.With(slog.String("handler", "health")),
	}
}

// Register mounts GET /health.
func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
}

// Health pings Immich and reports the result.
func (h *HealthHandler) Health(c echo.Context) error {
	report := h.checker.Check(c.Request().Context())

	var resp HealthResponse
	resp.Version = version.GetInfo()
	resp.Immich.Reachable = report.Status.Reachable
	resp.Immich.Detail = report.Status.Detail
	resp.Immich.User = report.Identity.Name
	if !report.Status.Reachable {
		h.logger.Warn("immich unreachable", slog.String("detail", report.Status.Detail))
		resp.Status = "degraded"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	resp.Status = "ok"
	return c.JSON(http.StatusOK, resp)
}
