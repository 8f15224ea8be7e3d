package leads

import (
	"strings"
	"time"
)

// Lead accumulates what we believe about a prospective student over one
// conversation. Set-valued fields only ever grow; scalar fields are replaced
// by newer non-empty values and never cleared.
type Lead struct {
	Name             string   `json:"name,omitempty"`
	Phones           []string `json:"phones"`
	Emails           []string `json:"emails"`
	Services         []string `json:"services"`
	PreferredBranch  string   `json:"preferredBranch,omitempty"`
	CallbackTime     string   `json:"callbackTime,omitempty"`
	NeedsDescription string   `json:"needsDescription,omitempty"`
}

// NewLead returns an empty lead with non-nil slices so JSON encodes [] not null.
func NewLead() Lead {
	return Lead{
		Phones:   []string{},
		Emails:   []string{},
		Services: []string{},
	}
}

// Merge combines an incoming partial lead into an existing one. Phones, emails,
// and services are unioned preserving first-seen order; the incoming name wins
// when present, otherwise the existing name is kept.
func Merge(existing, incoming Lead) Lead {
	merged := Lead{
		Phones:   unionStrings(existing.Phones, incoming.Phones),
		Emails:   unionStrings(existing.Emails, incoming.Emails),
		Services: unionStrings(existing.Services, incoming.Services),
	}

	merged.Name = firstNonEmpty(incoming.Name, existing.Name)
	merged.PreferredBranch = firstNonEmpty(incoming.PreferredBranch, existing.PreferredBranch)
	merged.CallbackTime = firstNonEmpty(incoming.CallbackTime, existing.CallbackTime)
	merged.NeedsDescription = firstNonEmpty(incoming.NeedsDescription, existing.NeedsDescription)

	return merged
}

// Clone returns a deep copy, so callers can mutate the result without
// touching the original's slices. Nil and empty slices are preserved as-is.
func (l Lead) Clone() Lead {
	l.Phones = cloneStrings(l.Phones)
	l.Emails = cloneStrings(l.Emails)
	l.Services = cloneStrings(l.Services)
	return l
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// HasContact reports whether the lead carries anything worth following up on.
// Service interest alone does not count; we need a name, phone, or email.
func HasContact(lead Lead) bool {
	return len(lead.Phones) > 0 || len(lead.Emails) > 0 || strings.TrimSpace(lead.Name) != ""
}

// Record is the row shape written to the external lead store, one row per
// thread. Repeated submissions for the same ThreadID overwrite in place.
type Record struct {
	ThreadID     string
	Timestamp    string
	Name         string
	Email        string
	Phone        string
	Services     string
	Summary      string
	Conversation string
}

// maxConversationChars bounds the transcript cell so a long chat cannot blow
// past spreadsheet cell limits.
const maxConversationChars = 5000

// NewRecord flattens an accumulated lead into a storable row. Array fields are
// joined with ", ", the scalar preferences fold into the summary cell, and the
// conversation text is truncated.
func NewRecord(threadID string, lead Lead, conversation string) *Record {
	if len(conversation) > maxConversationChars {
		conversation = conversation[:maxConversationChars]
	}
	return &Record{
		ThreadID:     threadID,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Name:         lead.Name,
		Email:        strings.Join(lead.Emails, ", "),
		Phone:        strings.Join(lead.Phones, ", "),
		Services:     strings.Join(lead.Services, ", "),
		Summary:      summarize(lead),
		Conversation: conversation,
	}
}

// summarize combines the free-text need with the branch and callback
// preferences, which have no column of their own in the eight-column row.
func summarize(lead Lead) string {
	var parts []string
	if s := strings.TrimSpace(lead.NeedsDescription); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(lead.PreferredBranch); s != "" {
		parts = append(parts, "Preferred branch: "+s)
	}
	if s := strings.TrimSpace(lead.CallbackTime); s != "" {
		parts = append(parts, "Callback: "+s)
	}
	return strings.Join(parts, "; ")
}

func unionStrings(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, items := range [][]string{a, b} {
		for _, item := range items {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
