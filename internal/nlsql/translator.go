package nlsql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/sqlquest-cli/internal/ai"
	"github.com/KaramelBytes/sqlquest-cli/internal/datasource"
	"github.com/KaramelBytes/sqlquest-cli/internal/logging"
	"github.com/KaramelBytes/sqlquest-cli/internal/sqlguard"
)

// Options tune the LLM call and the post-processing.
type Options struct {
	Model     string
	MaxTokens int
	// Temperature defaults to 0.1 when nil. Zero is sent as zero.
	Temperature *float64
	// AllowUnsafe skips the injection screen on string literals.
	AllowUnsafe bool
	Logger      *zap.Logger
}

// Translation is the outcome of one question. Raw and Prompt are set even when
// sanitization fails so callers can show what the model produced.
type Translation struct {
	SQL    string   `json:"sql"`
	Raw    string   `json:"raw"`
	Prompt string   `json:"-"`
	Usage  ai.Usage `json:"usage"`
}

// Translator converts questions to SQL through an ai.Runtime.
type Translator struct {
	rt     ai.Runtime
	opts   Options
	logger *zap.Logger
}

// NewTranslator applies defaults (2048 max tokens, temperature 0.1).
func NewTranslator(rt ai.Runtime, opts Options) *Translator {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2048
	}
	if opts.Temperature == nil {
		opts.Temperature = ai.Temp(0.1)
	}
	return &Translator{rt: rt, opts: opts, logger: logging.OrNop(opts.Logger).Named("nlsql")}
}

// Translate asks the model for SQL answering question against schema.
func (t *Translator) Translate(ctx context.Context, question string, schema *datasource.Schema) (Translation, error) {
	if strings.TrimSpace(question) == "" {
		return Translation{}, errors.New("question is empty")
	}
	prompt := BuildPrompt(question, schema)
	tr := Translation{Prompt: prompt}
	resp, err := t.rt.Generate(ctx, ai.GenerateRequest{
		Model: t.opts.Model,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: SystemMessage},
			{Role: ai.RoleUser, Content: prompt},
		},
		MaxTokens:   t.opts.MaxTokens,
		Temperature: t.opts.Temperature,
	})
	if err != nil {
		return tr, fmt.Errorf("generate sql: %w", err)
	}
	tr.Raw = resp.Text()
	tr.Usage = resp.Usage
	t.logger.Debug("completion received",
		zap.String("model", t.opts.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	q, err := Sanitize(tr.Raw)
	if err != nil {
		t.logger.Debug("completion rejected", zap.String("raw", logging.SanitizeQuery(tr.Raw)), zap.Error(err))
		return tr, err
	}
	if !t.opts.AllowUnsafe {
		if err := sqlguard.CheckLiterals(q); err != nil {
			return tr, err
		}
	}
	tr.SQL = q
	return tr, nil
}
