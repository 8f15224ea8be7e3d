package conversation

import (
	"encoding/json"
	"strings"

	"github.com/wvdi-ph/drivebot/internal/leads"
)

// structuredReply is the JSON envelope the model is instructed to emit in
// JSON mode: the user-facing answer plus whatever lead fields it spotted.
type structuredReply struct {
	Response      string         `json:"response"`
	ExtractedLead *extractedLead `json:"extractedLead"`
}

// extractedLead tolerates both singular and plural contact fields, since
// models do not reliably stick to one shape.
type extractedLead struct {
	Name             string   `json:"name"`
	Phone            string   `json:"phone"`
	Phones           []string `json:"phones"`
	Email            string   `json:"email"`
	Emails           []string `json:"emails"`
	Services         []string `json:"services"`
	PreferredBranch  string   `json:"preferredBranch"`
	CallbackTime     string   `json:"callbackTime"`
	NeedsDescription string   `json:"needsDescription"`
}

func (e *extractedLead) toLead() leads.Lead {
	lead := leads.Lead{
		Name:             strings.TrimSpace(e.Name),
		Phones:           e.Phones,
		Emails:           e.Emails,
		Services:         e.Services,
		PreferredBranch:  strings.TrimSpace(e.PreferredBranch),
		CallbackTime:     strings.TrimSpace(e.CallbackTime),
		NeedsDescription: strings.TrimSpace(e.NeedsDescription),
	}
	if len(lead.Phones) == 0 && strings.TrimSpace(e.Phone) != "" {
		lead.Phones = []string{strings.TrimSpace(e.Phone)}
	}
	if len(lead.Emails) == 0 && strings.TrimSpace(e.Email) != "" {
		lead.Emails = []string{strings.ToLower(strings.TrimSpace(e.Email))}
	}
	return lead
}

// parseStructuredReply attempts to read the model's JSON-mode output. Code
// fences are stripped first. Returns ok=false when the text is not the
// expected envelope, in which case the caller falls back to the raw reply.
func parseStructuredReply(raw string) (*structuredReply, bool) {
	cleaned := stripCodeFences(raw)

	var reply structuredReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return nil, false
	}
	if strings.TrimSpace(reply.Response) == "" {
		return nil, false
	}
	return &reply, true
}

// stripCodeFences removes a leading ```json (or bare ```) fence and the
// matching trailing fence, if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
