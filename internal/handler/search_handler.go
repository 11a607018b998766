package handler

import (
	"net/http"
	"strconv"
	"strings"

	"catalog-service/internal/middleware"
	"catalog-service/internal/search"
	"catalog-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SearchHandler exposes catalog search over HTTP
type SearchHandler struct {
	searcher Searcher
}

// NewSearchHandler creates a search handler
func NewSearchHandler(searcher Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// Search handles GET /api/search. The response is always 200 with a
// structurally valid body; failures are reported inside it.
func (h *SearchHandler) Search(c echo.Context) error {
	log := logger.FromEcho(c)

	params := search.Params{
		Query:  strings.TrimSpace(c.QueryParam("q")),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", search.DefaultLimit),
		CityID: int64(max(1, queryInt(c, "city_id", 1))),
		Sort:   c.QueryParam("sort"),
		UserID: middleware.GetUserIDFromContext(c),
		Brand:  firstParam(c, "brand_name", "brand"),
		Series: firstParam(c, "series_name", "series"),
	}

	resp := h.searcher.Search(c.Request().Context(), params)

	if params.Query != "" {
		fields := []zap.Field{
			zap.String("query", params.Query),
			zap.Int64("total", resp.Data.Total),
			zap.String("source", resp.Data.Source),
			zap.Int64("city_id", params.CityID),
		}
		if resp.Success {
			log.Info("Search completed", fields...)
		} else {
			log.Warn("Search served without results", append(fields, zap.String("error_code", resp.ErrorCode))...)
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// Autocomplete handles GET /api/autocomplete
func (h *SearchHandler) Autocomplete(c echo.Context) error {
	prefix := strings.TrimSpace(c.QueryParam("q"))
	limit := queryInt(c, "limit", search.DefaultSuggestLimit)

	suggestions := h.searcher.Autocomplete(c.Request().Context(), prefix, limit)

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"suggestions": suggestions,
		},
	})
}

// queryInt reads an integer query parameter, falling back on absent or
// malformed values
func queryInt(c echo.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func firstParam(c echo.Context, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(c.QueryParam(name)); v != "" {
			return v
		}
	}
	return ""
}
