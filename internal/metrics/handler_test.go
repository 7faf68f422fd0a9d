package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestMetricsHandler_ReturnsPrometheusFormat はハンドラーがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCacheHit(CacheSession)
	c.RecordCacheMiss(CacheUser)
	c.RecordValidation(OutcomeValid)
	c.RecordStoreLatency("insert", 5*time.Millisecond)
	c.RecordHTTPStatus(200)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	body, _ := io.ReadAll(w.Result().Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		`eduadmin_cache_hits_total{cache="session"} 1`,
		`eduadmin_cache_misses_total{cache="user"} 1`,
		`eduadmin_session_validations_total{outcome="valid"} 1`,
		"eduadmin_store_latency_seconds",
		"eduadmin_http_status_total",
	}
	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMetricsHandler_ContentType はテキスト形式のContent-Typeで返すことを検証する。
func TestMetricsHandler_ContentType(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg).RecordSessionCreated()

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	if !strings.Contains(w.Body.String(), "eduadmin_sessions_created_total 1") {
		t.Error("response should contain eduadmin_sessions_created_total metric")
	}
}
