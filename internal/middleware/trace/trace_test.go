package trace

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensia/internal/log"
)

type observation struct {
	method, route string
	status        int
}

type recordingObserver struct{ got []observation }

func (o *recordingObserver) ObserveHTTPRequest(method, route string, status int, _ time.Duration) {
	o.got = append(o.got, observation{method, route, status})
}

func newTraced(buf *bytes.Buffer, obs Observer, status int) http.Handler {
	logger := log.New(log.Config{Level: slog.LevelDebug, Format: "json", Output: buf})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).InfoContext(r.Context(), "inside handler")
		w.WriteHeader(status)
	})
	return NewMiddleware(logger, func(*http.Request) string { return "203.0.113.9" }, obs).Middleware(mux)
}

func TestMiddleware_LogsAndObserves(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"ok", http.StatusOK, "INFO"},
		{"client error", http.StatusUnprocessableEntity, "WARN"},
		{"server error", http.StatusBadGateway, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			obs := &recordingObserver{}
			h := newTraced(&buf, obs, tt.status)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/7", nil))

			require.Len(t, obs.got, 1)
			assert.Equal(t, observation{"GET", "GET /items/{id}", tt.status}, obs.got[0])

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			require.Len(t, lines, 3)

			var inside, last map[string]any
			require.NoError(t, json.Unmarshal([]byte(lines[1]), &inside))
			require.NoError(t, json.Unmarshal([]byte(lines[2]), &last))

			reqID := rec.Header().Get(RequestIDHeader)
			assert.NotEmpty(t, reqID)
			assert.Equal(t, reqID, inside[log.FieldRequestID], "handler logs carry the request id")
			assert.Equal(t, tt.wantLevel, last["level"])
			assert.EqualValues(t, tt.status, last[log.FieldStatusCode])
		})
	}
}

func TestMiddleware_RequestIDHeader(t *testing.T) {
	var buf bytes.Buffer
	h := newTraced(&buf, nil, http.StatusOK)

	req := httptest.NewRequest(http.MethodGet, "/items/1", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/items/1", nil)
	req.Header.Set(RequestIDHeader, "bad id\nwith newline")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.True(t, strings.HasPrefix(rec.Header().Get(RequestIDHeader), "req_"))
}

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, len("req_")+16)
}
