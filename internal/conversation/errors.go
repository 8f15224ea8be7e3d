package conversation

import (
	"errors"
	"fmt"
	"strings"
)

// ProviderError is an AI backend rejecting or failing a chat call. It carries
// the upstream HTTP status and raw error body for the logs; the fallback
// router absorbs it unless every provider fails.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("conversation: %s chat failed (%d): %s", e.Provider, e.StatusCode, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("conversation: %s chat failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("conversation: %s chat failed", e.Provider)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// MalformedResponseError is a success response whose body lacked the expected
// reply field. Treated like ProviderError for fallback purposes.
type MalformedResponseError struct {
	Provider string
	Reason   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("conversation: %s returned malformed response: %s", e.Provider, e.Reason)
}

// ProviderAttempt records one failed provider during fallback.
type ProviderAttempt struct {
	Provider string
	Err      error
}

// AllProvidersError means every configured backend failed. This is the only
// path where a chat call fails as a whole.
type AllProvidersError struct {
	Attempts []ProviderAttempt
}

func (e *AllProvidersError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", attempt.Provider, attempt.Err))
	}
	return "conversation: all providers failed: " + strings.Join(parts, "; ")
}

// IsProviderUnavailable reports whether err is the error class the chat
// endpoint maps to 503 instead of a generic 500.
func IsProviderUnavailable(err error) bool {
	var all *AllProvidersError
	if errors.As(err, &all) {
		return true
	}
	var provider *ProviderError
	return errors.As(err, &provider)
}
