package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const geminiHealthTimeout = 5 * time.Second

// GeminiProvider implements Provider on Google's Gemini API.
type GeminiProvider struct {
	client  *genai.Client
	modelID string
}

// NewGeminiProvider creates a Gemini-backed provider. The API key is required.
func NewGeminiProvider(ctx context.Context, apiKey, modelID string) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to create gemini client: %w", err)
	}

	return &GeminiProvider{client: client, modelID: modelID}, nil
}

func (p *GeminiProvider) Name() string  { return "gemini" }
func (p *GeminiProvider) Model() string { return p.modelID }

// Chat sends the conversation to Gemini. The system prompt becomes the system
// instruction, history maps assistant turns to the "model" role, and JSON mode
// constrains the response MIME type.
func (p *GeminiProvider) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", &ProviderError{Provider: p.Name(), Err: errors.New("at least one message required")}
	}

	model := p.client.GenerativeModel(p.modelID)
	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	model.SetTopP(0.95)
	if req.JSONMode {
		model.ResponseMIMEType = "application/json"
	}
	if strings.TrimSpace(req.SystemPrompt) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.SystemPrompt))
	}

	cs := model.StartChat()
	for _, msg := range req.Messages[:len(req.Messages)-1] {
		content := strings.TrimSpace(msg.Content)
		if content == "" || msg.Role == ChatRoleSystem {
			continue
		}
		role := "user"
		if msg.Role == ChatRoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(content)},
		})
	}

	lastMsg := req.Messages[len(req.Messages)-1]
	resp, err := cs.SendMessage(ctx, genai.Text(lastMsg.Content))
	if err != nil {
		provErr := &ProviderError{Provider: p.Name(), Err: err}
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			provErr.StatusCode = apiErr.Code
			provErr.Body = apiErr.Body
		}
		return "", provErr
	}

	if len(resp.Candidates) == 0 {
		return "", &MalformedResponseError{Provider: p.Name(), Reason: "no candidates"}
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", &MalformedResponseError{Provider: p.Name(), Reason: "empty candidate content"}
	}

	var out strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}
	reply := strings.TrimSpace(out.String())
	if reply == "" {
		return "", &MalformedResponseError{Provider: p.Name(), Reason: "no text parts in candidate"}
	}
	return reply, nil
}

// HealthCheck lists models with a hard timeout and reports whether the
// configured model (or any model) is visible to the API key.
func (p *GeminiProvider) HealthCheck(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, geminiHealthTimeout)
	defer cancel()

	status := HealthStatus{Provider: p.Name(), Model: p.modelID}

	it := p.client.ListModels(ctx)
	seenAny := false
	for {
		info, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			status.Error = err.Error()
			return status
		}
		seenAny = true
		if strings.Contains(info.Name, p.modelID) {
			status.Available = true
			return status
		}
	}

	// The key works even if our exact model id is not enumerated.
	status.Available = seenAny
	return status
}

// Close releases the underlying API client.
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
