package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestMiddlewareCountsRequests(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	before := testutil.ToFloat64(RequestCounter.WithLabelValues(http.MethodGet, "/ping", "200"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	after := testutil.ToFloat64(RequestCounter.WithLabelValues(http.MethodGet, "/ping", "200"))
	assert.Equal(t, before+1, after)
}

func TestTrackDBOperation(t *testing.T) {
	TrackDBOperation("price_lookup")(time.Now().Add(-10 * time.Millisecond))

	count := testutil.CollectAndCount(DbOperationDuration)
	assert.GreaterOrEqual(t, count, 1)
}

func TestPrometheusHandlerExposesCollectors(t *testing.T) {
	Register()
	SearchFallbacks.Inc()

	rec := httptest.NewRecorder()
	GetPrometheusHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "catalog_search_index_fallbacks_total"))
}
