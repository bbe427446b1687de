// Package narrative asks an LLM to explain query results in prose.
package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/sqlquest-cli/internal/ai"
	"github.com/KaramelBytes/sqlquest-cli/internal/analysis"
	"github.com/KaramelBytes/sqlquest-cli/internal/datasource"
	"github.com/KaramelBytes/sqlquest-cli/internal/logging"
	"github.com/KaramelBytes/sqlquest-cli/internal/render"
	"github.com/KaramelBytes/sqlquest-cli/internal/utils"
)

// Tone selects the register of the narrative.
type Tone string

const (
	ToneFormal Tone = "formal"
	ToneCasual Tone = "casual"
)

// SystemMessage is sent ahead of every narrative prompt.
const SystemMessage = "You are a data analyst that provides insightful narratives from query results."

// SampleRows is how many result rows are quoted in the prompt.
const SampleRows = 5

// MaxAnalysisTokens caps the analysis JSON quoted in the prompt.
const MaxAnalysisTokens = 6000

// ErrUnknownTone is returned by ParseTone.
var ErrUnknownTone = errors.New("unknown tone (use formal or casual)")

// ParseTone validates a user-supplied tone.
func ParseTone(s string) (Tone, error) {
	switch Tone(strings.ToLower(strings.TrimSpace(s))) {
	case ToneFormal:
		return ToneFormal, nil
	case ToneCasual:
		return ToneCasual, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTone, s)
}

// Instructions returns the tone directive placed in the prompt.
func (t Tone) Instructions() string {
	if t == ToneCasual {
		return "Use a conversational, friendly, and easy-to-understand tone."
	}
	return "Use a professional, concise, and formal tone with precise language."
}

// FallbackText is what the CLI shows when generation fails.
func FallbackText(err error) string {
	return fmt.Sprintf("Unable to generate insights due to an error: %v", err)
}

// Input bundles everything the prompt is built from.
type Input struct {
	Question string
	SQL      string
	Result   *datasource.ResultSet
	Analysis *analysis.Analysis
	Tone     Tone
}

// BuildPrompt assembles the narrative prompt.
func BuildPrompt(in Input) (string, error) {
	rows, cols := 0, 0
	var colNames []string
	if in.Result != nil {
		rows, cols = len(in.Result.Rows), len(in.Result.Columns)
		colNames = in.Result.Columns
	}
	analysisJSON, err := json.MarshalIndent(in.Analysis, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal analysis: %w", err)
	}
	analysisText := string(analysisJSON)
	if utils.CountTokens(analysisText) > MaxAnalysisTokens {
		analysisText = utils.TruncateToTokenLimit(analysisText, MaxAnalysisTokens) + "\n  ... (truncated)"
	}
	sample := "(no rows)"
	if rows > 0 {
		sample = strings.TrimRight(render.PlainString(colNames, render.ResultRows(in.Result, SampleRows)), "\n")
	}

	var b strings.Builder
	b.WriteString("You are a data analyst creating insights from SQL query results.\n\n")
	fmt.Fprintf(&b, "Original question: %s\n", in.Question)
	fmt.Fprintf(&b, "SQL query: %s\n\n", in.SQL)
	b.WriteString("Data summary:\n")
	fmt.Fprintf(&b, "Data shape: %d rows, %d columns\n", rows, cols)
	fmt.Fprintf(&b, "Columns: %s\n\n\n", strings.Join(colNames, ", "))
	fmt.Fprintf(&b, "Sample data:\n%s\n\n", sample)
	fmt.Fprintf(&b, "Analysis:\n%s\n\n", analysisText)
	b.WriteString("Generate a narrative that explains the key insights from this data in response to the original question.\n")
	b.WriteString(in.Tone.Instructions() + "\n")
	b.WriteString("The narrative should be 3-5 paragraphs, highlighting important patterns, trends, or anomalies.\n")
	b.WriteString("Make specific references to actual values in the data.\n")
	b.WriteString("Do not mention that you are an AI or assistant. Simply provide the insights directly.\n")
	b.WriteString("Format the response with appropriate Markdown headings, lists, and emphasis where helpful.\n")
	return b.String(), nil
}

// Options tune the LLM call.
type Options struct {
	Model     string
	MaxTokens int
	// Temperature defaults to 0.1 when nil. Zero is sent as zero.
	Temperature *float64
	Logger      *zap.Logger
}

// Generator produces narratives through an ai.Runtime.
type Generator struct {
	rt     ai.Runtime
	opts   Options
	logger *zap.Logger
}

// NewGenerator applies defaults (2048 max tokens, temperature 0.1).
func NewGenerator(rt ai.Runtime, opts Options) *Generator {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2048
	}
	if opts.Temperature == nil {
		opts.Temperature = ai.Temp(0.1)
	}
	return &Generator{rt: rt, opts: opts, logger: logging.OrNop(opts.Logger).Named("narrative")}
}

// Result is the generated narrative and its token usage.
type Result struct {
	Text  string   `json:"text"`
	Usage ai.Usage `json:"usage"`
}

func (g *Generator) request(prompt string) ai.GenerateRequest {
	return ai.GenerateRequest{
		Model: g.opts.Model,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: SystemMessage},
			{Role: ai.RoleUser, Content: prompt},
		},
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
	}
}

// Generate returns the trimmed narrative. Errors are returned to the caller.
func (g *Generator) Generate(ctx context.Context, in Input) (Result, error) {
	prompt, err := BuildPrompt(in)
	if err != nil {
		return Result{}, err
	}
	resp, err := g.rt.Generate(ctx, g.request(prompt))
	if err != nil {
		return Result{}, fmt.Errorf("generate narrative: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return Result{Usage: resp.Usage}, errors.New("generate narrative: empty response")
	}
	g.logger.Debug("narrative generated", zap.Int("chars", len(text)), zap.Int("total_tokens", resp.Usage.TotalTokens))
	return Result{Text: text, Usage: resp.Usage}, nil
}

// Stream emits deltas through onDelta when the runtime supports streaming and
// falls back to Generate otherwise. The full text is returned either way.
func (g *Generator) Stream(ctx context.Context, in Input, onDelta func(string)) (Result, error) {
	sr, ok := g.rt.(ai.StreamRuntime)
	if !ok {
		res, err := g.Generate(ctx, in)
		if err == nil && onDelta != nil {
			onDelta(res.Text)
		}
		return res, err
	}
	prompt, err := BuildPrompt(in)
	if err != nil {
		return Result{}, err
	}
	var b strings.Builder
	err = sr.GenerateStream(ctx, g.request(prompt), func(d string) {
		b.WriteString(d)
		if onDelta != nil {
			onDelta(d)
		}
	})
	if err != nil {
		return Result{Text: b.String()}, fmt.Errorf("stream narrative: %w", err)
	}
	text := strings.TrimSpace(b.String())
	// streams carry no usage block; estimate from text length
	pt, ct := utils.CountTokens(SystemMessage+prompt), utils.CountTokens(text)
	return Result{Text: text, Usage: ai.Usage{PromptTokens: pt, CompletionTokens: ct, TotalTokens: pt + ct}}, nil
}
