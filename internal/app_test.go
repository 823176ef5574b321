package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"threadmark/internal/controllers"
	"threadmark/internal/providers"
	"threadmark/internal/services"
	"threadmark/internal/structures"
	"threadmark/internal/testutil"
	"threadmark/internal/tracker"
	"time"

	"github.com/stretchr/testify/assert"
)

func testHandler(t *testing.T, conf *structures.Config, limiters *providers.LimiterPool) (http.Handler, *testutil.MockMetrics) {
	t.Helper()
	metrics := testutil.NewMockMetrics()
	svc := services.NewProgressService(conf, testutil.NewMockStore())
	registry := tracker.NewRegistry(conf, svc, testutil.NewFakeClock(time.Unix(0, 0)), &testutil.MockLogger{}, metrics)
	health := controllers.NewHealthController(svc, registry)
	return NewHandler(health, conf, testRouter(t), metrics, limiters), metrics
}

func handlerConfig(metricsEnabled bool) *structures.Config {
	return &structures.Config{
		Storage: structures.StorageConfig{Driver: "memory", Key: "threadsById"},
		Metrics: structures.MetricsConfig{Enabled: metricsEnabled},
	}
}

func TestNewHandler_Health(t *testing.T) {
	h, _ := testHandler(t, handlerConfig(false), nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}

func TestNewHandler_MetricsEndpoint(t *testing.T) {
	h, _ := testHandler(t, handlerConfig(true), nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	h, _ = testHandler(t, handlerConfig(false), nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNewHandler_RateLimitsAPI(t *testing.T) {
	h, _ := testHandler(t, handlerConfig(false), providers.NewLimiterPool(0.001, 2))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/threads", nil))
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// infrastructure endpoints are not limited
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
