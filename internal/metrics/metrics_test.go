package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/rolodex/internal/search"
)

var _ search.Observer = (*Metrics)(nil)

func TestMiddleware_RecordsDurationAndCount(t *testing.T) {
	m := New(false)
	r := chi.NewRouter()
	r.Use(m.Middleware())
	r.Get("/v1/users/{user}/search", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/users/alice/search", http.NoBody))
	require.Equal(t, http.StatusOK, rr.Code)

	// the route pattern is the label, not the concrete path
	got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/v1/users/{user}/search", "200"))
	assert.Equal(t, 1.0, got)
	assert.Positive(t, testutil.CollectAndCount(m.httpRequestDuration))
}

func TestMiddleware_StatusCodes(t *testing.T) {
	m := New(false)
	r := chi.NewRouter()
	r.Use(m.Middleware())
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/missing", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) })
	r.Get("/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		path   string
		status string
	}{
		{"/ok", "200"},
		{"/missing", "404"},
		{"/broken", "500"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", tt.path, tt.status)))
		})
	}
}

func TestObserveSearch(t *testing.T) {
	m := New(false)

	m.ObserveSearch("tier1", false, false, 3, 2*time.Millisecond)
	m.ObserveSearch("tier1", false, false, 0, time.Millisecond)
	m.ObserveSearch("cached", true, false, 3, time.Microsecond)
	m.ObserveSearch("tier2", false, true, 1, 30*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.searchesTotal.WithLabelValues("tier1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searchesTotal.WithLabelValues("cached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.zeroResults))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.degradedTotal))
}

func TestObserveIndex(t *testing.T) {
	m := New(false)
	m.ObserveIndex("upsert", 60)
	m.ObserveIndex("delete", 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.indexBuilds.WithLabelValues("upsert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.indexBuilds.WithLabelValues("delete")))
}

func TestHandler_ExposesRegistry(t *testing.T) {
	m := New(true)
	m.ObserveSearch("tier1", false, false, 1, time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `rolodex_searches_total{tier="tier1"} 1`), text)
	assert.Contains(t, text, "go_goroutines")
}
