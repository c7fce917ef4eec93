package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestMiddleware_RecordsAndExports(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/districts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", m.Handler())

	req := httptest.NewRequest("GET", "/districts/abc123", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("request status = %d", rec.Code)
	}

	req = httptest.NewRequest("GET", "/metrics", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "intorehub_http_requests_total") {
		t.Error("expected requests counter in exposition")
	}
	// Route label must be the pattern, not the concrete path.
	if !strings.Contains(body, `route="/districts/{id}"`) {
		t.Errorf("expected route pattern label, got:\n%s", body)
	}
	if strings.Contains(body, "abc123") {
		t.Error("raw path leaked into metric labels")
	}
}
