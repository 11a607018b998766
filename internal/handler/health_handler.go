package handler

import (
	"context"
	"net/http"
	"time"

	"catalog-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const dependencyCheckTimeout = 2 * time.Second

// HealthHandler reports service health
type HealthHandler struct {
	service  string
	dbPing   func(ctx context.Context) error
	searcher Searcher
}

// NewHealthHandler creates a health handler. dbPing and searcher may be nil.
func NewHealthHandler(service string, dbPing func(ctx context.Context) error, searcher Searcher) *HealthHandler {
	return &HealthHandler{service: service, dbPing: dbPing, searcher: searcher}
}

// HealthCheck handles GET /health. With check=deps the database and the
// search index are probed too; a failed database makes the service unhealthy,
// an unhealthy index only degrades it.
func (h *HealthHandler) HealthCheck(c echo.Context) error {
	if c.QueryParam("check") != "deps" {
		return c.JSON(http.StatusOK, echo.Map{
			"status":  "healthy",
			"service": h.service,
		})
	}

	log := logger.FromEcho(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), dependencyCheckTimeout)
	defer cancel()

	status := "healthy"
	code := http.StatusOK

	database := "ok"
	if h.dbPing != nil {
		if err := h.dbPing(ctx); err != nil {
			log.Error("Database health check failed", zap.Error(err))
			database = "unavailable"
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	index := "unavailable"
	if h.searcher != nil && h.searcher.IndexHealthy(ctx) {
		index = "ok"
	} else if status == "healthy" {
		status = "degraded"
	}

	return c.JSON(code, echo.Map{
		"status":  status,
		"service": h.service,
		"checks": echo.Map{
			"database": database,
			"search":   index,
		},
	})
}
