package conversation

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/wvdi-ph/drivebot/internal/observability/metrics"
	"github.com/wvdi-ph/drivebot/pkg/logging"
)

// Handler exposes the chat and health endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
	metrics *metrics.PipelineMetrics
}

// NewHandler creates the conversation HTTP handler. metrics may be nil.
func NewHandler(service *Service, logger *logging.Logger, m *metrics.PipelineMetrics) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger, metrics: m}
}

type chatRequest struct {
	Messages  []ChatMessage `json:"messages"`
	Language  string        `json:"language"`
	SessionID string        `json:"sessionId"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Chat handles POST /api/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Messages array is required"})
		return
	}
	if req.Messages == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Messages array is required"})
		return
	}

	output, err := h.service.Respond(r.Context(), ChatInput{
		Messages:  req.Messages,
		Language:  req.Language,
		SessionID: req.SessionID,
	})
	if err != nil {
		h.logger.Error("chat request failed", "error", err)

		if IsProviderUnavailable(err) {
			h.metrics.ObserveChat("", "unavailable", time.Since(start).Seconds())
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{
				Error:   "AI service temporarily unavailable",
				Details: "The AI backend is not responding. Please try again later.",
			})
			return
		}

		h.metrics.ObserveChat("", "error", time.Since(start).Seconds())
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "An error occurred while processing your request",
			Details: err.Error(),
		})
		return
	}

	h.metrics.ObserveChat(output.Provider, "ok", time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, output)
}

type healthResponse struct {
	Status    string `json:"status"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Health handles GET /api/health. Failures are reported as data, never as an
// HTTP error, so the widget can poll without special-casing.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.service.Health(r.Context())

	body := healthResponse{
		Status:    "unavailable",
		Provider:  status.Provider,
		Model:     status.Model,
		Error:     status.Error,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if status.Available {
		body.Status = "ok"
		body.Error = ""
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
