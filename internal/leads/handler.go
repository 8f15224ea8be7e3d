package leads

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/wvdi-ph/drivebot/internal/observability/metrics"
	"github.com/wvdi-ph/drivebot/pkg/logging"
)

// Handler handles lead submissions from the chat widget.
type Handler struct {
	repo    Repository
	logger  *logging.Logger
	metrics *metrics.PipelineMetrics
}

// NewHandler creates a leads handler. metrics may be nil.
func NewHandler(repo Repository, logger *logging.Logger, m *metrics.PipelineMetrics) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger, metrics: m}
}

// SubmitRequest is the POST /api/leads body. The lead payload accepts both
// the accumulated plural fields the chat endpoint returns and the singular
// fields older widget builds send.
type SubmitRequest struct {
	SessionID           string     `json:"sessionId"`
	Lead                *LeadInput `json:"lead"`
	FullConversation    string     `json:"fullConversation"`
	ConversationSummary string     `json:"conversationSummary"`
}

// LeadInput is the wire shape of a submitted lead.
type LeadInput struct {
	Name             string   `json:"name"`
	Phones           []string `json:"phones"`
	Phone            string   `json:"phone"`
	Emails           []string `json:"emails"`
	Email            string   `json:"email"`
	Services         []string `json:"services"`
	PreferredBranch  string   `json:"preferredBranch"`
	CallbackTime     string   `json:"callbackTime"`
	NeedsDescription string   `json:"needsDescription"`
}

func (in *LeadInput) toLead() Lead {
	lead := Lead{
		Name:             in.Name,
		Phones:           in.Phones,
		Emails:           in.Emails,
		Services:         in.Services,
		PreferredBranch:  in.PreferredBranch,
		CallbackTime:     in.CallbackTime,
		NeedsDescription: in.NeedsDescription,
	}
	if len(lead.Phones) == 0 && strings.TrimSpace(in.Phone) != "" {
		lead.Phones = []string{in.Phone}
	}
	if len(lead.Emails) == 0 && strings.TrimSpace(in.Email) != "" {
		lead.Emails = []string{in.Email}
	}
	return lead
}

// SubmitResponse is the POST /api/leads success body.
type SubmitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Submit handles POST /api/leads: validates the submission, skips the store
// entirely when there is no contact information, and upserts otherwise.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	if req.Lead == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Lead data is required"})
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Session ID is required"})
		return
	}

	lead := req.Lead.toLead()
	if !HasContact(lead) {
		writeJSON(w, http.StatusOK, SubmitResponse{
			Success: false,
			Message: "No contact information to save",
		})
		return
	}

	conversation := req.FullConversation
	if conversation == "" {
		conversation = req.ConversationSummary
	}
	record := NewRecord(req.SessionID, lead, conversation)

	if err := h.repo.Upsert(r.Context(), record); err != nil {
		h.logger.Error("failed to save lead", "error", err, "session_id", req.SessionID)
		h.metrics.ObserveUpsert("error")

		if errors.Is(err, ErrNotConfigured) {
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error:   "Lead store not configured",
				Details: "Service account credentials are missing",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to save lead",
			Details: err.Error(),
		})
		return
	}

	h.logger.Info("lead saved", "session_id", req.SessionID, "has_name", lead.Name != "")
	h.metrics.ObserveUpsert("ok")

	writeJSON(w, http.StatusOK, SubmitResponse{
		Success: true,
		Message: "Lead saved successfully",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
