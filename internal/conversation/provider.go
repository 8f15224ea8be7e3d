package conversation

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one conversation turn as exchanged with the widget and the
// AI backends.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the backend-agnostic chat call. SystemPrompt is attached
// ahead of the message history in whatever wire format the backend expects.
type ChatRequest struct {
	SystemPrompt string
	Messages     []ChatMessage
	Temperature  float32
	MaxTokens    int
	JSONMode     bool
}

// HealthStatus reports a backend liveness probe. Probes never fail hard; an
// unreachable backend shows up as Available=false with an optional reason.
type HealthStatus struct {
	Available bool     `json:"available"`
	Provider  string   `json:"provider,omitempty"`
	Model     string   `json:"model,omitempty"`
	Order     []string `json:"fallbackOrder,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Provider is one interchangeable AI chat backend.
type Provider interface {
	Name() string
	Model() string
	Chat(ctx context.Context, req ChatRequest) (string, error)
	HealthCheck(ctx context.Context) HealthStatus
}

// ChatResult is a completed chat call annotated with the backend that
// actually served it.
type ChatResult struct {
	Content  string
	Provider string
	Model    string
}

// ChatProvider is the logical provider surface the orchestrator talks to;
// implemented by FallbackProvider.
type ChatProvider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResult, error)
	HealthCheck(ctx context.Context) HealthStatus
}
