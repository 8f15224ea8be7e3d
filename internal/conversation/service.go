package conversation

import (
	"context"

	"github.com/wvdi-ph/drivebot/internal/leads"
	"github.com/wvdi-ph/drivebot/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	chatTemperature = 0.7
	chatMaxTokens   = 500
)

// PromptBuilder produces the system prompt for a chat turn.
type PromptBuilder interface {
	SystemPrompt(language string) string
}

// ChatInput is one chat turn from the widget.
type ChatInput struct {
	Messages  []ChatMessage
	Language  string
	SessionID string
}

// ChatOutput is what the widget gets back: the reply plus the session's
// accumulated lead state.
type ChatOutput struct {
	Response     string     `json:"response"`
	SessionID    string     `json:"sessionId"`
	LeadCaptured bool       `json:"leadCaptured"`
	Lead         leads.Lead `json:"lead"`
	Provider     string     `json:"provider,omitempty"`
	Model        string     `json:"model,omitempty"`
}

// Service orchestrates one chat turn: session resolution, heuristic lead
// extraction, the provider call, structured-output merging, and session
// bookkeeping.
type Service struct {
	store    SessionStore
	provider ChatProvider
	prompts  PromptBuilder
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewService wires the chat orchestrator.
func NewService(store SessionStore, provider ChatProvider, prompts PromptBuilder, logger *logging.Logger) *Service {
	if store == nil {
		panic("conversation: session store required")
	}
	if provider == nil {
		panic("conversation: chat provider required")
	}
	if prompts == nil {
		panic("conversation: prompt builder required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:    store,
		provider: provider,
		prompts:  prompts,
		logger:   logger,
		tracer:   otel.Tracer("drivebot.internal.conversation"),
	}
}

// Respond runs one request through the pipeline. Only provider exhaustion (or
// a store failure) surfaces as an error; a reply that fails structured
// parsing degrades to raw text.
func (s *Service) Respond(ctx context.Context, input ChatInput) (*ChatOutput, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.respond")
	defer span.End()

	session, err := s.store.GetOrCreate(ctx, input.SessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("drivebot.session_id", session.ID))

	// Heuristic pass over the newest user message.
	if msg, ok := lastUserMessage(input.Messages); ok {
		session.Lead = leads.Merge(session.Lead, leads.ExtractLead(msg.Content))
	}

	language := input.Language
	if language == "" {
		language = "en"
	}

	result, err := s.provider.Chat(ctx, ChatRequest{
		SystemPrompt: s.prompts.SystemPrompt(language),
		Messages:     input.Messages,
		Temperature:  chatTemperature,
		MaxTokens:    chatMaxTokens,
		JSONMode:     true,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("drivebot.provider", result.Provider))

	responseText := result.Content
	if reply, ok := parseStructuredReply(result.Content); ok {
		responseText = reply.Response
		if reply.ExtractedLead != nil {
			session.Lead = leads.Merge(session.Lead, reply.ExtractedLead.toLead())
		}
	} else {
		// Model ignored JSON mode; serve the raw text rather than failing.
		s.logger.Debug("structured reply parse failed, using raw text",
			"provider", result.Provider,
			"session_id", session.ID,
		)
	}

	session.RecentMessages = truncateHistory(input.Messages)
	if err := s.store.Put(ctx, session); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &ChatOutput{
		Response:     responseText,
		SessionID:    session.ID,
		LeadCaptured: leads.HasContact(session.Lead),
		Lead:         session.Lead,
		Provider:     result.Provider,
		Model:        result.Model,
	}, nil
}

// Health reports the logical provider's availability.
func (s *Service) Health(ctx context.Context) HealthStatus {
	return s.provider.HealthCheck(ctx)
}

func lastUserMessage(messages []ChatMessage) (ChatMessage, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == ChatRoleUser {
			return messages[i], true
		}
	}
	return ChatMessage{}, false
}
