package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func scrape(t *testing.T) []byte {
	t.Helper()
	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if mrr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", mrr.Code)
	}
	return mrr.Body.Bytes()
}

func TestMetricsMiddleware_EmitsRequestCounters(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rr := httptest.NewRecorder()
	MetricsMiddleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status 418, got %d", rr.Code)
	}
	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/test", "GET", "418"))
	if got < 1 {
		t.Fatalf("expected request counter for /test 418, got %v", got)
	}
	if !bytes.Contains(scrape(t), []byte("poemd_http_requests_total")) {
		t.Fatalf("expected poemd_http_requests_total in metrics")
	}
}

// Inside the router the label is the route pattern, not the raw path.
func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/poems/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/poems/42", nil))
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/poems/{id}", "GET", "200")); got < 1 {
		t.Fatalf("expected route pattern label, got %v", got)
	}
}

func TestStatusRecorder_Flushes(t *testing.T) {
	rr := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rr, status: http.StatusOK}
	var w http.ResponseWriter = sr
	f, ok := w.(http.Flusher)
	if !ok {
		t.Fatalf("statusRecorder must implement http.Flusher")
	}
	f.Flush()
	if !rr.Flushed {
		t.Fatalf("flush not forwarded")
	}
}

func TestIncrementDropped(t *testing.T) {
	before := testutil.ToFloat64(generateDroppedTotal.WithLabelValues("running"))
	IncrementDropped("running")
	if got := testutil.ToFloat64(generateDroppedTotal.WithLabelValues("running")); got < before+1 {
		t.Fatalf("expected counter to increase: before=%v after=%v", before, got)
	}
	before = testutil.ToFloat64(generateDroppedTotal.WithLabelValues("unspecified"))
	IncrementDropped("")
	if got := testutil.ToFloat64(generateDroppedTotal.WithLabelValues("unspecified")); got < before+1 {
		t.Fatalf("empty reason should count as unspecified")
	}
}
