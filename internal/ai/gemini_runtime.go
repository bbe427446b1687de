package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiRuntime calls the Gemini API through the genai SDK. The SDK client is
// created on first use because construction needs a context.
type GeminiRuntime struct {
	cfg    RuntimeConfig
	logger *zap.Logger

	once   sync.Once
	client *genai.Client
	err    error
}

// NewGeminiRuntime returns a lazily initialized Gemini runtime.
func NewGeminiRuntime(c RuntimeConfig) *GeminiRuntime {
	logger := zap.NewNop()
	if c.Logger != nil {
		logger = c.Logger.Named("gemini")
	}
	return &GeminiRuntime{cfg: c, logger: logger}
}

func (r *GeminiRuntime) init(ctx context.Context) (*genai.Client, error) {
	r.once.Do(func() {
		cc := &genai.ClientConfig{
			APIKey:     r.cfg.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: &http.Client{Timeout: r.cfg.HTTPTimeout},
		}
		if r.cfg.BaseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: r.cfg.BaseURL}
		}
		r.client, r.err = genai.NewClient(ctx, cc)
		if r.err != nil {
			r.err = fmt.Errorf("create gemini client: %w", r.err)
		}
	})
	return r.client, r.err
}

func (r *GeminiRuntime) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if r.cfg.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is missing")
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	client, err := r.init(ctx)
	if err != nil {
		return nil, err
	}
	var system []string
	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	gcfg := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		gcfg.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		gcfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(system) > 0 {
		gcfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, gcfg)
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	out := &GenerateResponse{
		Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: resp.Text()}}},
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	r.logger.Debug("generate content", zap.String("model", req.Model), zap.Int("total_tokens", out.Usage.TotalTokens))
	return out, nil
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classify(&APIError{StatusCode: apiErr.Code, Code: apiErr.Status, Message: apiErr.Message}, 0)
	}
	return err
}
