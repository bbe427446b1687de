package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIRuntime serves chat and embeddings through the official OpenAI API, or
// any compatible endpoint when BaseURL is set.
type OpenAIRuntime struct {
	client *openai.Client
	apiKey string
	logger *zap.Logger
}

// NewOpenAIRuntime builds a go-openai backed runtime.
func NewOpenAIRuntime(c RuntimeConfig) *OpenAIRuntime {
	cfg := openai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: c.HTTPTimeout}
	logger := zap.NewNop()
	if c.Logger != nil {
		logger = c.Logger.Named("openai")
	}
	return &OpenAIRuntime{client: openai.NewClientWithConfig(cfg), apiKey: c.APIKey, logger: logger}
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func (r *OpenAIRuntime) request(req GenerateRequest) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  toOpenAIMessages(req.Messages),
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		out.Temperature = float32(*req.Temperature)
		// the client omits a zero temperature from the payload
		if out.Temperature == 0 {
			out.Temperature = math.SmallestNonzeroFloat32
		}
	}
	return out
}

func (r *OpenAIRuntime) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if r.apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is missing")
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	resp, err := r.client.CreateChatCompletion(ctx, r.request(req))
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	r.logger.Debug("chat completion",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	out := &GenerateResponse{
		ID: resp.ID,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		RequestID: resp.ID,
	}
	for _, ch := range resp.Choices {
		out.Choices = append(out.Choices, Choice{Message: Message{Role: ch.Message.Role, Content: ch.Message.Content}})
	}
	return out, nil
}

func (r *OpenAIRuntime) GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error {
	if r.apiKey == "" {
		return errors.New("OPENAI_API_KEY is missing")
	}
	creq := r.request(req)
	creq.Stream = true
	stream, err := r.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return classifyOpenAIError(err)
	}
	defer stream.Close()
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream read: %w", classifyOpenAIError(err))
		}
		if len(resp.Choices) > 0 {
			onDelta(resp.Choices[0].Delta.Content)
		}
	}
}

func (r *OpenAIRuntime) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	if r.apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is missing")
	}
	if len(inputs) == 0 {
		return nil, errors.New("inputs cannot be empty")
	}
	resp, err := r.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	out := make([][]float32, len(inputs))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		out[idx] = d.Embedding
	}
	return out, nil
}

// classifyOpenAIError maps go-openai errors onto the shared typed errors.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		return classify(&APIError{StatusCode: apiErr.HTTPStatusCode, Code: code, Message: apiErr.Message}, 0)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return classify(&APIError{StatusCode: reqErr.HTTPStatusCode, Message: msg}, 0)
	}
	return err
}
