package conversation

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(provider ChatProvider) *Handler {
	svc := NewService(NewMemoryStore(0), provider, stubPrompts{prompt: "You are DriveBot."}, nil)
	return NewHandler(svc, nil, nil)
}

func postChat(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)
	return rec
}

func TestChatEndpoint_Success(t *testing.T) {
	h := newTestHandler(&stubChatProvider{reply: "Hello! How can I help you today?"})

	rec := postChat(h, `{"messages": [{"role": "user", "content": "hi, I'm Maria"}]}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var out ChatOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Hello! How can I help you today?", out.Response)
	assert.NotEmpty(t, out.SessionID)
	assert.True(t, out.LeadCaptured)
	assert.Equal(t, "Maria", out.Lead.Name)
}

func TestChatEndpoint_MissingMessages(t *testing.T) {
	h := newTestHandler(&stubChatProvider{reply: "unused"})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{broken`},
		{"no messages field", `{"language": "en"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(h, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "Messages array is required", resp["error"])
		})
	}
}

func TestChatEndpoint_EmptyMessagesArrayAccepted(t *testing.T) {
	h := newTestHandler(&stubChatProvider{reply: "Hello!"})

	rec := postChat(h, `{"messages": []}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatEndpoint_ProvidersUnavailable(t *testing.T) {
	h := newTestHandler(&stubChatProvider{
		err: &AllProvidersError{Attempts: []ProviderAttempt{
			{Provider: "gemini", Err: errors.New("quota")},
			{Provider: "ollama", Err: errors.New("refused")},
		}},
	})

	rec := postChat(h, `{"messages": [{"role": "user", "content": "hi"}]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "AI service temporarily unavailable", resp["error"])
	assert.Equal(t, "The AI backend is not responding. Please try again later.", resp["details"])
}

func TestChatEndpoint_InternalError(t *testing.T) {
	h := newTestHandler(&stubChatProvider{err: errors.New("marshaling blew up")})

	rec := postChat(h, `{"messages": [{"role": "user", "content": "hi"}]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "An error occurred while processing your request", resp["error"])
	assert.Contains(t, resp["details"], "marshaling blew up")
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		health     HealthStatus
		wantStatus string
		wantError  string
	}{
		{
			name:       "available",
			health:     HealthStatus{Available: true, Provider: "gemini", Model: "gemini-2.0-flash", Error: "stale error"},
			wantStatus: "ok",
			wantError:  "",
		},
		{
			name:       "unavailable",
			health:     HealthStatus{Available: false, Provider: "ollama", Error: "connection refused"},
			wantStatus: "unavailable",
			wantError:  "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&stubChatProvider{health: tt.health})

			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			rec := httptest.NewRecorder()
			h.Health(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code, "health never fails the request")

			var resp healthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.NotEmpty(t, resp.Timestamp)
		})
	}
}
