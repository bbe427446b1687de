package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// AnthropicRuntime adapts the Messages API to the shared chat types. System
// messages are folded into the request's system prompt.
type AnthropicRuntime struct {
	client *anthropic.Client
	apiKey string
	logger *zap.Logger
}

// NewAnthropicRuntime builds a go-anthropic backed runtime.
func NewAnthropicRuntime(c RuntimeConfig) *AnthropicRuntime {
	opts := []anthropic.ClientOption{anthropic.WithHTTPClient(&http.Client{Timeout: c.HTTPTimeout})}
	if c.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(c.BaseURL, "/")))
	}
	logger := zap.NewNop()
	if c.Logger != nil {
		logger = c.Logger.Named("anthropic")
	}
	return &AnthropicRuntime{client: anthropic.NewClient(c.APIKey, opts...), apiKey: c.APIKey, logger: logger}
}

func (r *AnthropicRuntime) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if r.apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is missing")
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	var system []string
	var msgs []anthropic.Message
	for _, m := range req.Messages {
		text := m.Content
		switch m.Role {
		case RoleSystem:
			system = append(system, text)
		case RoleAssistant:
			msgs = append(msgs, anthropic.Message{Role: anthropic.RoleAssistant, Content: []anthropic.MessageContent{{Type: "text", Text: &text}}})
		default:
			msgs = append(msgs, anthropic.Message{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{{Type: "text", Text: &text}}})
		}
	}
	if len(msgs) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	var temp *float32
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		temp = &t
	}
	resp, err := r.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(req.Model),
		System:      strings.Join(system, "\n\n"),
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: temp,
	})
	if err != nil {
		return nil, classifyAnthropicError(err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			text.WriteString(*block.Text)
		}
	}
	r.logger.Debug("messages call",
		zap.String("model", req.Model),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens))
	return &GenerateResponse{
		ID:      resp.ID,
		Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: text.String()}}},
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		RequestID: resp.ID,
	}, nil
}

func classifyAnthropicError(err error) error {
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		return classify(&APIError{StatusCode: reqErr.StatusCode, Message: err.Error()}, 0)
	}
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		status := 0
		switch string(apiErr.Type) {
		case "rate_limit_error":
			status = http.StatusTooManyRequests
		case "authentication_error", "permission_error":
			status = http.StatusUnauthorized
		case "not_found_error":
			status = http.StatusNotFound
		case "invalid_request_error":
			status = http.StatusBadRequest
		case "api_error", "overloaded_error":
			status = http.StatusServiceUnavailable
		}
		return classify(&APIError{StatusCode: status, Code: string(apiErr.Type), Message: apiErr.Message}, 0)
	}
	return err
}
