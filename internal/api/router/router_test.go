package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wvdi-ph/drivebot/internal/conversation"
	"github.com/wvdi-ph/drivebot/internal/knowledge"
	"github.com/wvdi-ph/drivebot/internal/leads"
)

// newTestRouter wires the full route tree against a fake Ollama upstream.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/chat/completions":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": map[string]any{"content": `{"response": "Hello from DriveBot!"}`}},
				},
			})
		case "/api/tags":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"models": []map[string]any{{"name": "llama3.2:latest"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(upstream.Close)

	provider := conversation.NewFallbackProvider([]conversation.Provider{
		conversation.NewOllamaProvider(upstream.URL, "llama3.2"),
	}, nil, nil)
	service := conversation.NewService(conversation.NewMemoryStore(0), provider, knowledge.Load(nil), nil)

	reg := prometheus.NewRegistry()
	return New(&Config{
		ConversationHandler: conversation.NewHandler(service, nil, nil),
		LeadsHandler:        leads.NewHandler(leads.NewInMemoryRepository(), nil, nil),
		MetricsHandler:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
}

func TestRouter_Chat(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"messages": [{"role": "user", "content": "hi"}]}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var out conversation.ChatOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Hello from DriveBot!", out.Response)
	assert.Equal(t, "ollama", out.Provider)
	assert.NotEmpty(t, out.SessionID)
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouter_Leads(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/leads",
		strings.NewReader(`{"sessionId": "s1", "lead": {"name": "Maria", "phone": "09171234567"}}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Lead saved successfully")
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_Preflight(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://wvdi-ph.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Metrics(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
