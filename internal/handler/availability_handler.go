package handler

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"catalog-service/internal/dynamic"
	"catalog-service/internal/middleware"
	"catalog-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	maxCityID    = 999999
	maxProductID = 999999999
)

// AvailabilityMeta describes an availability response
type AvailabilityMeta struct {
	RequestedCount int     `json:"requested_count"`
	ReturnedCount  int     `json:"returned_count"`
	CityID         int64   `json:"city_id"`
	QueryTimeMS    float64 `json:"query_time_ms"`
}

// AvailabilityResponse is the body of a successful availability request
type AvailabilityResponse struct {
	Success bool                                  `json:"success"`
	Data    map[int64]dynamic.ProductDynamicState `json:"data"`
	Meta    AvailabilityMeta                      `json:"meta"`
}

// AvailabilityHandler exposes price, stock and delivery data over HTTP
type AvailabilityHandler struct {
	resolver DynamicResolver
}

// NewAvailabilityHandler creates an availability handler
func NewAvailabilityHandler(resolver DynamicResolver) *AvailabilityHandler {
	return &AvailabilityHandler{resolver: resolver}
}

// Availability handles GET /api/availability?city_id=&product_ids=1,2,3
func (h *AvailabilityHandler) Availability(c echo.Context) error {
	start := time.Now()
	log := logger.FromEcho(c)

	cityID := int64(queryInt(c, "city_id", 1))
	if cityID < 1 || cityID > maxCityID {
		log.Warn("Invalid city_id provided", zap.String("city_id", c.QueryParam("city_id")))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "city_id must be between 1 and 999999",
		})
	}

	raw := strings.TrimSpace(c.QueryParam("product_ids"))
	if raw == "" {
		log.Warn("Empty product_ids provided")
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "product_ids is required",
		})
	}

	ids := parseProductIDs(raw)
	if len(ids) == 0 {
		log.Warn("No valid product_ids after parsing", zap.String("product_ids", raw))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "no valid product_ids",
		})
	}
	if maxBatch := h.resolver.MaxBatch(); len(ids) > maxBatch {
		log.Warn("Too many product_ids requested", zap.Int("count", len(ids)))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"error":   "too many product_ids, maximum is " + strconv.Itoa(maxBatch),
		})
	}

	userID := middleware.GetUserIDFromContext(c)
	log.Debug("Fetching dynamic data",
		zap.Int("product_count", len(ids)),
		zap.Int64("city_id", cityID))

	states := h.resolver.Resolve(c.Request().Context(), ids, cityID, userID)

	data := make(map[int64]dynamic.ProductDynamicState, len(ids))
	for _, id := range ids {
		state, ok := states[id]
		if !ok {
			state = dynamic.DefaultState()
		}
		data[id] = state
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000
	return c.JSON(http.StatusOK, AvailabilityResponse{
		Success: true,
		Data:    data,
		Meta: AvailabilityMeta{
			RequestedCount: len(ids),
			ReturnedCount:  len(data),
			CityID:         cityID,
			QueryTimeMS:    math.Round(elapsed*100) / 100,
		},
	})
}

// parseProductIDs splits a comma separated id list, keeping unique ids in
// range and dropping anything else
func parseProductIDs(raw string) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 || id >= maxProductID || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
