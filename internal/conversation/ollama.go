package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	ollamaChatTimeout   = 30 * time.Second
	ollamaHealthTimeout = 5 * time.Second
)

// OllamaProvider talks to a self-hosted Ollama instance through its
// OpenAI-compatible chat completions endpoint.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaProvider creates an adapter for the given Ollama base URL.
func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "http://localhost:11434"
	}
	if strings.TrimSpace(model) == "" {
		model = "llama3.2"
	}
	return &OllamaProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: ollamaChatTimeout},
	}
}

func (p *OllamaProvider) Name() string  { return "ollama" }
func (p *OllamaProvider) Model() string { return p.model }

type ollamaChatPayload struct {
	Model          string            `json:"model"`
	Messages       []ChatMessage     `json:"messages"`
	Temperature    float32           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	Stream         bool              `json:"stream"`
	ResponseFormat *ollamaRespFormat `json:"response_format,omitempty"`
}

type ollamaRespFormat struct {
	Type string `json:"type"`
}

type ollamaChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat prepends the system prompt to the supplied history and requests one
// completion. JSON mode uses the endpoint's response_format parameter.
func (p *OllamaProvider) Chat(ctx context.Context, req ChatRequest) (string, error) {
	messages := make([]ChatMessage, 0, len(req.Messages)+1)
	messages = append(messages, ChatMessage{Role: ChatRoleSystem, Content: req.SystemPrompt})
	messages = append(messages, req.Messages...)

	payload := ollamaChatPayload{
		Model:       p.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      false,
	}
	if req.JSONMode {
		payload.ResponseFormat = &ollamaRespFormat{Type: "json_object"}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{Provider: p.Name(), StatusCode: resp.StatusCode, Body: string(body)}
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", &MalformedResponseError{Provider: p.Name(), Reason: fmt.Sprintf("invalid JSON body: %v", err)}
	}
	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return "", &MalformedResponseError{Provider: p.Name(), Reason: "missing choices[0].message.content"}
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// HealthCheck probes GET /api/tags with a hard timeout and reports whether
// the configured model is loaded. It never returns an error.
func (p *OllamaProvider) HealthCheck(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, ollamaHealthTimeout)
	defer cancel()

	status := HealthStatus{Provider: p.Name(), Model: p.model}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status.Error = fmt.Sprintf("tags probe returned %d", resp.StatusCode)
		return status
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		status.Error = err.Error()
		return status
	}

	for _, m := range tags.Models {
		// Ollama reports names like "llama3.2:latest".
		if m.Name == p.model || strings.HasPrefix(m.Name, p.model+":") {
			status.Available = true
			return status
		}
	}
	return status
}
