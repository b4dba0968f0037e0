package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_ObserveCheck(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.ObserveCheck(true, 2*time.Millisecond)
	metrics.ObserveCheck(false, time.Millisecond)
	metrics.ObserveCheck(false, time.Millisecond)

	allowed := testutil.ToFloat64(metrics.AuthzChecksTotal.WithLabelValues("allowed"))
	denied := testutil.ToFloat64(metrics.AuthzChecksTotal.WithLabelValues("denied"))
	if allowed != 1 {
		t.Errorf("Expected 1 allowed check, got %v", allowed)
	}
	if denied != 2 {
		t.Errorf("Expected 2 denied checks, got %v", denied)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/authz/roles/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/authz/roles/editor", nil))

	// The path label carries the route template, not the raw path
	count := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/authz/roles/{name}", "404"))
	if count != 1 {
		t.Errorf("Expected 1 request counted under the route template, got %v", count)
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.ObserveCheck(true, time.Millisecond)

	router := mux.NewRouter()
	RegisterMetricsEndpoint(router, registry)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /metrics, got %d", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, "grantor_authz_checks_total") {
		t.Error("Expected authz check metric in scrape output")
	}
}
