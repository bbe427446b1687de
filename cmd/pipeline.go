package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/sqlquest-cli/internal/ai"
	"github.com/KaramelBytes/sqlquest-cli/internal/analysis"
	"github.com/KaramelBytes/sqlquest-cli/internal/datasource"
	"github.com/KaramelBytes/sqlquest-cli/internal/history"
	"github.com/KaramelBytes/sqlquest-cli/internal/narrative"
	"github.com/KaramelBytes/sqlquest-cli/internal/nlsql"
	"github.com/KaramelBytes/sqlquest-cli/internal/render"
	"github.com/KaramelBytes/sqlquest-cli/internal/retrieval"
	"github.com/KaramelBytes/sqlquest-cli/internal/utils"
	"github.com/KaramelBytes/sqlquest-cli/internal/viz"
)

// runResult is one pass through the pipeline, printed as text or JSON and
// persisted to history.
type runResult struct {
	Question  string                `json:"question,omitempty"`
	SQL       string                `json:"sql"`
	RawSQL    string                `json:"raw_sql,omitempty"`
	Result    *datasource.ResultSet `json:"result,omitempty"`
	Analysis  *analysis.Analysis    `json:"analysis,omitempty"`
	Narrative string                `json:"narrative,omitempty"`
	Chart     *viz.Figure           `json:"chart,omitempty"`
	ChartPath string                `json:"chart_path,omitempty"`
	Tables    []string              `json:"tables,omitempty"`
	Usage     ai.Usage              `json:"usage"`
	HistoryID string                `json:"history_id,omitempty"`
	Error     string                `json:"error,omitempty"`
}

type pipelineOptions struct {
	Model       string
	Provider    string
	MaxTokens   int
	Temperature float64
	Tone        narrative.Tone
	AllowUnsafe bool
	NoNarrative bool
	// Stream writes narrative deltas to StreamTo as they arrive.
	Stream   bool
	StreamTo io.Writer
	ChartOut string
	// OnResult runs after analysis and before the narrative is requested.
	OnResult func(*runResult)

	SchemaTopK    int
	Embedder      ai.Embedder
	EmbedProvider string
	EmbedModel    string
}

// pipeline wires translator, executor, analyzer, narrator and chart selector.
type pipeline struct {
	ds      *datasource.DataSource
	schema  *datasource.Schema
	rt      ai.Runtime
	opts    pipelineOptions
	history *history.Store
	logger  *zap.Logger
}

func newPipeline(ds *datasource.DataSource, schema *datasource.Schema, rt ai.Runtime, opts pipelineOptions, store *history.Store) *pipeline {
	return &pipeline{ds: ds, schema: schema, rt: rt, opts: opts, history: store, logger: logger.Named("pipeline")}
}

// schemaFor narrows the schema for question when --schema-top-k is in effect.
func (p *pipeline) schemaFor(ctx context.Context, question string) (*datasource.Schema, error) {
	if p.opts.SchemaTopK <= 0 || p.opts.Embedder == nil {
		return p.schema, nil
	}
	s, err := retrieval.Narrow(ctx, p.opts.Embedder, p.schema, question, p.opts.SchemaTopK, retrieval.BuildOptions{
		CacheDir:      cacheDir(),
		EmbedProvider: p.opts.EmbedProvider,
		EmbedModel:    p.opts.EmbedModel,
	})
	if err != nil {
		return nil, fmt.Errorf("narrow schema: %w", friendlyError(err, p.opts.EmbedProvider, p.opts.EmbedModel))
	}
	return s, nil
}

// ask translates question and runs the result through the rest of the pipeline.
func (p *pipeline) ask(ctx context.Context, question string) (*runResult, error) {
	res := &runResult{Question: question}
	schema, err := p.schemaFor(ctx, question)
	if err != nil {
		return res, err
	}
	for _, t := range schema.Tables {
		res.Tables = append(res.Tables, t.Name)
	}
	tr := nlsql.NewTranslator(p.rt, nlsql.Options{
		Model:       p.opts.Model,
		MaxTokens:   p.opts.MaxTokens,
		Temperature: ai.Temp(p.opts.Temperature),
		AllowUnsafe: p.opts.AllowUnsafe,
		Logger:      p.logger,
	})
	t, err := tr.Translate(ctx, question, schema)
	res.Usage = addUsage(res.Usage, t.Usage)
	if err != nil {
		res.RawSQL = t.Raw
		res.Error = err.Error()
		return res, friendlyError(err, p.opts.Provider, p.opts.Model)
	}
	res.SQL = t.SQL
	return res, p.execute(ctx, res)
}

// runSQL runs a hand-written query through the pipeline.
func (p *pipeline) runSQL(ctx context.Context, query, question string) (*runResult, error) {
	res := &runResult{Question: question, SQL: strings.TrimSpace(query)}
	return res, p.execute(ctx, res)
}

// execute runs res.SQL. An empty result skips analysis, narrative and chart.
func (p *pipeline) execute(ctx context.Context, res *runResult) error {
	rs, err := p.ds.Execute(ctx, res.SQL)
	if err != nil {
		res.Error = err.Error()
		return err
	}
	res.Result = rs
	if rs.Len() == 0 {
		if p.opts.OnResult != nil {
			p.opts.OnResult(res)
		}
		return nil
	}
	res.Analysis = analysis.Analyze(&analysis.Frame{Columns: rs.Columns, Rows: rs.Rows})
	if p.opts.OnResult != nil {
		p.opts.OnResult(res)
	}

	if p.rt != nil && !p.opts.NoNarrative {
		gen := narrative.NewGenerator(p.rt, narrative.Options{
			Model:       p.opts.Model,
			MaxTokens:   p.opts.MaxTokens,
			Temperature: ai.Temp(p.opts.Temperature),
			Logger:      p.logger,
		})
		in := narrative.Input{Question: res.Question, SQL: res.SQL, Result: rs, Analysis: res.Analysis, Tone: p.opts.Tone}
		var out narrative.Result
		if p.opts.Stream && p.opts.StreamTo != nil {
			out, err = gen.Stream(ctx, in, func(d string) { fmt.Fprint(p.opts.StreamTo, d) })
			fmt.Fprintln(p.opts.StreamTo)
		} else {
			out, err = gen.Generate(ctx, in)
		}
		res.Usage = addUsage(res.Usage, out.Usage)
		if err != nil {
			p.logger.Warn("narrative failed", zap.Error(err))
			res.Narrative = narrative.FallbackText(friendlyError(err, p.opts.Provider, p.opts.Model))
		} else {
			res.Narrative = out.Text
		}
	}

	res.Chart = viz.Select(res.Question, rs)
	if p.opts.ChartOut != "" && res.Chart.Kind != viz.KindMessage {
		if err := writeChart(p.opts.ChartOut, res.Chart); err != nil {
			return err
		}
		res.ChartPath = p.opts.ChartOut
	}
	return nil
}

func writeChart(path string, fig *viz.Figure) error {
	var b strings.Builder
	if err := viz.RenderHTML(&b, fig); err != nil {
		return err
	}
	if err := utils.SafeWriteFile(path, []byte(b.String())); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}

func addUsage(a, b ai.Usage) ai.Usage {
	return ai.Usage{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
	}
}

// save records res in history. Failures are logged, not returned.
func (p *pipeline) save(command string, res *runResult) {
	if p.history == nil {
		return
	}
	rec := &history.Record{
		Command:   command,
		Question:  res.Question,
		SQL:       res.SQL,
		Driver:    p.ds.Dialect().Name(),
		Provider:  p.opts.Provider,
		Narrative: res.Narrative,
		ChartPath: res.ChartPath,
		Usage:     res.Usage,
		Error:     res.Error,
	}
	if p.rt != nil {
		rec.Model = p.opts.Model
		rec.Tone = string(p.opts.Tone)
	}
	if res.Result != nil {
		rec.Columns = res.Result.Columns
		rec.RowCount = res.Result.Len()
		rec.Truncated = res.Result.Truncated
	}
	if res.Chart != nil {
		rec.Chart = string(res.Chart.Kind)
	}
	if err := rec.SetAnalysis(res.Analysis); err != nil {
		p.logger.Warn("history analysis", zap.Error(err))
	}
	if err := p.history.Save(rec); err != nil {
		p.logger.Warn("history not saved", zap.Error(err))
		return
	}
	res.HistoryID = rec.ID
}

const noResultsMessage = "The query returned no results."

// printResult writes the SQL, a result preview and the insights.
func printResult(w io.Writer, res *runResult, maxRows int) {
	if res.SQL != "" {
		fmt.Fprintf(w, "SQL:\n  %s\n\n", strings.ReplaceAll(res.SQL, "\n", "\n  "))
	}
	if res.Result != nil {
		if res.Result.Len() == 0 {
			fmt.Fprintln(w, noResultsMessage)
		} else {
			render.ResultTable(w, res.Result, maxRows)
			shown := res.Result.Len()
			if maxRows > 0 && shown > maxRows {
				fmt.Fprintf(w, "… showing %d of %d rows\n", maxRows, shown)
			}
			if res.Result.Truncated {
				fmt.Fprintln(w, "⚠ Result truncated at the configured row limit.")
			}
		}
		fmt.Fprintln(w)
	}
	if res.Analysis != nil && len(res.Analysis.Insights) > 0 {
		fmt.Fprintln(w, "Insights:")
		fmt.Fprint(w, render.Bullets(res.Analysis.Insights))
		fmt.Fprintln(w)
	}
}

// printTail writes the narrative (unless it was streamed), chart and history ID.
func printTail(w io.Writer, res *runResult, narrativeStreamed bool) {
	if res.Narrative != "" && !narrativeStreamed {
		out, err := render.Markdown(res.Narrative, 100)
		if err != nil {
			logger.Debug("markdown render failed", zap.Error(err))
		}
		fmt.Fprintln(w, out)
	}
	if res.Chart != nil {
		fmt.Fprintf(w, "Chart: %s (%s)\n", res.Chart.Kind, res.Chart.Title())
	}
	if res.ChartPath != "" {
		fmt.Fprintf(w, "💾 Saved chart to %s\n", res.ChartPath)
	}
	if res.HistoryID != "" {
		fmt.Fprintf(w, "History ID: %s\n", res.HistoryID)
	}
}
