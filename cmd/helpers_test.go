package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/KaramelBytes/sqlquest-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/sqlquest-cli/internal/config"
	"github.com/KaramelBytes/sqlquest-cli/internal/datasource"
	"github.com/KaramelBytes/sqlquest-cli/internal/history"
	"github.com/KaramelBytes/sqlquest-cli/internal/narrative"
	"github.com/KaramelBytes/sqlquest-cli/internal/viz"
)

type stubRuntime struct {
	sql  string
	text string
	err  error
}

func (s stubRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	reply := s.text
	if req.Messages[0].Content != narrative.SystemMessage {
		reply = s.sql
	}
	return &ai.GenerateResponse{
		Choices: []ai.Choice{{Message: ai.Message{Role: ai.RoleAssistant, Content: reply}}},
		Usage:   ai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

type stubStreamRuntime struct {
	stubRuntime
	called int
}

func (s *stubStreamRuntime) GenerateStream(ctx context.Context, req ai.GenerateRequest, onDelta func(string)) error {
	s.called++
	onDelta("chunk")
	return nil
}

// countingRuntime records how many requests of each kind it served.
type countingRuntime struct {
	stubRuntime
	translations int
	narratives   int
	temps        []*float64
}

func (c *countingRuntime) Generate(ctx context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	c.temps = append(c.temps, req.Temperature)
	if req.Messages[0].Content == narrative.SystemMessage {
		c.narratives++
	} else {
		c.translations++
	}
	return c.stubRuntime.Generate(ctx, req)
}

func sampleDB(t *testing.T) (*datasource.DataSource, *datasource.Schema) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.db")
	ctx := context.Background()
	if err := datasource.CreateSample(ctx, path, true); err != nil {
		t.Fatalf("create sample: %v", err)
	}
	ds, err := datasource.Open(ctx, datasource.Config{Driver: "sqlite", DSN: path, RowLimit: 100}, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { ds.Close() })
	s, err := ds.Introspect(ctx)
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}
	return ds, s
}

func TestSelectModelPrecedence(t *testing.T) {
	cfg := &cfgpkg.Global{DefaultProvider: "mistral", DefaultModel: "cfg-model"}

	if got := selectModel(cfg, "mistral", "cli-model"); got != "cli-model" {
		t.Fatalf("expected CLI model, got %q", got)
	}
	if got := selectModel(cfg, "mistral", ""); got != "cfg-model" {
		t.Fatalf("expected config model, got %q", got)
	}
	if got := selectModel(cfg, "openai", ""); got != "gpt-4o-mini" {
		t.Fatalf("config model must not leak to another provider, got %q", got)
	}
}

func TestEnforceBudget(t *testing.T) {
	if err := enforceBudget(0.0, 1.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := enforceBudget(2.0, 0); err != nil {
		t.Fatalf("zero limit disables the check: %v", err)
	}
	if err := enforceBudget(2.0, 1.0); err == nil {
		t.Fatal("expected error when cost exceeds budget")
	}
}

func TestBuildRuntimeDefaults(t *testing.T) {
	cfg := &cfgpkg.Global{DefaultProvider: "local", OllamaHost: "http://example"}
	client, provider, err := buildRuntime(cfg, runtimeOptions{})
	if err != nil {
		t.Fatalf("buildRuntime error: %v", err)
	}
	if provider != ai.ProviderOllama {
		t.Fatalf("expected ollama provider, got %q", provider)
	}
	if client == nil {
		t.Fatal("expected runtime client")
	}
	if _, _, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: "nope"}); err == nil {
		t.Fatal("expected unknown provider to fail")
	}
}

func TestResolveTone(t *testing.T) {
	if got, err := resolveTone(nil, ""); err != nil || got != narrative.ToneFormal {
		t.Fatalf("default tone = %q, %v", got, err)
	}
	if got, err := resolveTone(&cfgpkg.Global{Tone: "casual"}, ""); err != nil || got != narrative.ToneCasual {
		t.Fatalf("config tone = %q, %v", got, err)
	}
	if got, _ := resolveTone(&cfgpkg.Global{Tone: "casual"}, "formal"); got != narrative.ToneFormal {
		t.Fatalf("flag should win, got %q", got)
	}
	if _, err := resolveTone(nil, "snarky"); !errors.Is(err, narrative.ErrUnknownTone) {
		t.Fatalf("expected ErrUnknownTone, got %v", err)
	}
}

func TestEstimateRunNarrationDoublesCost(t *testing.T) {
	_, s := sampleDB(t)
	tokens, one := estimateRun("mistral-large-latest", "total sales by region", s, 512, false)
	_, two := estimateRun("mistral-large-latest", "total sales by region", s, 512, true)
	if tokens == 0 || one <= 0 {
		t.Fatalf("expected a priced estimate, got tokens=%d cost=%f", tokens, one)
	}
	if diff := two - 2*one; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("narration should double the estimate: %f vs %f", two, one)
	}
	if _, cost := estimateRun("unknown-model", "q", s, 512, true); cost != 0 {
		t.Fatalf("unknown models are unpriced, got %f", cost)
	}
}

func TestFriendlyErrorWrapsTypedErrors(t *testing.T) {
	auth := &ai.AuthError{APIError: &ai.APIError{StatusCode: 401}}
	err := friendlyError(auth, ai.ProviderOpenAI, "gpt-4o")
	if !errors.As(err, new(*ai.AuthError)) || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("unexpected auth message: %v", err)
	}
	un := &ai.UnreachableError{Host: "http://127.0.0.1:1", Err: errors.New("refused")}
	if err := friendlyError(un, ai.ProviderOllama, "llama"); !strings.Contains(err.Error(), "SQLQUEST_OLLAMA_HOST") {
		t.Fatalf("unexpected ollama message: %v", err)
	}
	plain := errors.New("boom")
	if friendlyError(plain, "", "") != plain {
		t.Fatal("untyped errors pass through")
	}
}

func TestReadQuestionsSkipsCommentsAndBlanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.txt")
	if err := os.WriteFile(path, []byte("# header\n\n  first?  \nsecond?\n#skip\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	qs, err := readQuestions(path)
	if err != nil {
		t.Fatalf("readQuestions: %v", err)
	}
	if len(qs) != 2 || qs[0] != "first?" || qs[1] != "second?" {
		t.Fatalf("unexpected questions: %q", qs)
	}
}

func TestExpandFilesDedupesAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.csv", "a.csv"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x\n1\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := expandFiles([]string{filepath.Join(dir, "*.csv"), filepath.Join(dir, "a.csv")})
	if err != nil {
		t.Fatalf("expandFiles: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "a.csv" {
		t.Fatalf("unexpected files: %v", files)
	}
	if _, err := expandFiles([]string{filepath.Join(dir, "*.tsv")}); err == nil {
		t.Fatal("expected no-match error")
	}
}

func TestSetConfigValue(t *testing.T) {
	c := &cfgpkg.Global{}
	if err := setConfigValue(c, "db_driver", "PostgreSQL"); err != nil || c.DBDriver != "postgres" {
		t.Fatalf("db_driver = %q, %v", c.DBDriver, err)
	}
	if err := setConfigValue(c, "default_provider", "google"); err != nil || c.DefaultProvider != ai.ProviderGemini {
		t.Fatalf("default_provider = %q, %v", c.DefaultProvider, err)
	}
	if err := setConfigValue(c, "row_limit", "-1"); err == nil {
		t.Fatal("negative row_limit should fail")
	}
	if err := setConfigValue(c, "temperature", "3"); err == nil {
		t.Fatal("temperature above 2 should fail")
	}
	if err := setConfigValue(c, "nope", "1"); err == nil {
		t.Fatal("unknown key should fail")
	}
}

func TestMaskAndTruncate(t *testing.T) {
	if got := mask("sk-1234567890"); got != "sk-****890" {
		t.Fatalf("mask = %q", got)
	}
	if got := mask("abc"); got != "******" {
		t.Fatalf("short mask = %q", got)
	}
	if got := truncate("SELECT   *\n  FROM sales", 100); got != "SELECT * FROM sales" {
		t.Fatalf("truncate collapses whitespace, got %q", got)
	}
	if got := truncate(strings.Repeat("x", 20), 10); got != "xxxxxxx..." {
		t.Fatalf("truncate = %q", got)
	}
}

func TestPipelineAskRunsEveryStage(t *testing.T) {
	ds, s := sampleDB(t)
	store := history.NewStore(t.TempDir())
	chart := filepath.Join(t.TempDir(), "chart.html")
	rt := stubRuntime{
		sql:  "SELECT region, SUM(total_amount) AS revenue FROM sales GROUP BY region",
		text: "North leads.",
	}
	p := newPipeline(ds, s, rt, pipelineOptions{Model: "m", Provider: "mistral", Tone: narrative.ToneCasual, ChartOut: chart}, store)

	res, err := p.ask(context.Background(), "total revenue by region")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if res.Result.Len() != 4 || res.Analysis == nil {
		t.Fatalf("unexpected result: %+v", res.Result)
	}
	if res.Narrative != "North leads." {
		t.Fatalf("narrative = %q", res.Narrative)
	}
	if res.Usage.TotalTokens != 30 {
		t.Fatalf("usage should add both calls, got %d", res.Usage.TotalTokens)
	}
	if res.Chart == nil || res.Chart.Kind == viz.KindMessage || res.ChartPath != chart {
		t.Fatalf("chart not produced: %+v", res.Chart)
	}
	if len(res.Tables) != 3 {
		t.Fatalf("expected the full schema, got %v", res.Tables)
	}

	p.save("ask", res)
	rec, err := store.Get(res.HistoryID)
	if err != nil {
		t.Fatalf("history get: %v", err)
	}
	if rec.RowCount != 4 || rec.Tone != "casual" || rec.Driver != "sqlite" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestPipelineEmptyResultSkipsNarrative(t *testing.T) {
	ds, s := sampleDB(t)
	chart := filepath.Join(t.TempDir(), "chart.html")
	rt := &countingRuntime{stubRuntime: stubRuntime{
		sql:  "SELECT * FROM employees WHERE salary < 0",
		text: "should not be used",
	}}
	p := newPipeline(ds, s, rt, pipelineOptions{Model: "m", ChartOut: chart}, nil)

	res, err := p.ask(context.Background(), "who earns a negative salary")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if rt.translations != 1 || rt.narratives != 0 {
		t.Fatalf("expected 1 translation and no narrative, got %d and %d", rt.translations, rt.narratives)
	}
	if res.Result == nil || res.Result.Len() != 0 {
		t.Fatalf("expected an empty result, got %+v", res.Result)
	}
	if res.Narrative != "" || res.Analysis != nil || res.Chart != nil || res.ChartPath != "" {
		t.Fatalf("empty result should stop after execution: %+v", res)
	}
	if _, err := os.Stat(chart); !os.IsNotExist(err) {
		t.Fatalf("no chart file expected, stat err = %v", err)
	}

	var buf bytes.Buffer
	printResult(&buf, res, 20)
	if !strings.Contains(buf.String(), "The query returned no results.") {
		t.Fatalf("missing no-results message:\n%s", buf.String())
	}
}

func TestPipelineSendsZeroTemperature(t *testing.T) {
	ds, s := sampleDB(t)
	rt := &countingRuntime{stubRuntime: stubRuntime{
		sql:  "SELECT department, AVG(salary) AS avg_salary FROM employees GROUP BY department",
		text: "Engineering pays most.",
	}}
	p := newPipeline(ds, s, rt, pipelineOptions{Model: "m", Temperature: 0}, nil)
	if _, err := p.ask(context.Background(), "average salary by department"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if len(rt.temps) != 2 {
		t.Fatalf("expected translation and narrative calls, got %d", len(rt.temps))
	}
	for i, temp := range rt.temps {
		if temp == nil || *temp != 0 {
			t.Fatalf("call %d: temperature should be 0, got %v", i, temp)
		}
	}
}

func TestPipelineNarrativeFailureFallsBack(t *testing.T) {
	ds, s := sampleDB(t)
	p := newPipeline(ds, s, stubRuntime{err: errors.New("offline")}, pipelineOptions{Model: "m"}, nil)
	res, err := p.runSQL(context.Background(), "SELECT name, salary FROM employees", "")
	if err != nil {
		t.Fatalf("runSQL: %v", err)
	}
	if !strings.HasPrefix(res.Narrative, "Unable to generate insights") {
		t.Fatalf("expected fallback narrative, got %q", res.Narrative)
	}
}

func TestPipelineRejectsWrites(t *testing.T) {
	ds, s := sampleDB(t)
	p := newPipeline(ds, s, nil, pipelineOptions{}, nil)
	res, err := p.runSQL(context.Background(), "UPDATE employees SET salary = 0", "")
	if err == nil || res.Error == "" {
		t.Fatalf("expected write to be rejected, got %v", err)
	}
}

func TestPipelineStreamsNarrative(t *testing.T) {
	ds, s := sampleDB(t)
	rt := &stubStreamRuntime{}
	var out bytes.Buffer
	seen := false
	p := newPipeline(ds, s, rt, pipelineOptions{
		Model:    "m",
		Stream:   true,
		StreamTo: &out,
		OnResult: func(*runResult) { seen = true },
	}, nil)
	res, err := p.runSQL(context.Background(), "SELECT category, COUNT(*) AS n FROM products GROUP BY category", "")
	if err != nil {
		t.Fatalf("runSQL: %v", err)
	}
	if rt.called != 1 || !seen {
		t.Fatalf("stream called %d times, OnResult seen=%v", rt.called, seen)
	}
	if !strings.Contains(out.String(), "chunk") || res.Narrative != "chunk" {
		t.Fatalf("unexpected stream output %q / narrative %q", out.String(), res.Narrative)
	}
}

func TestAskFlagResetsCoverEveryFlag(t *testing.T) {
	resets := askFlagResets()
	askCmd.Flags().VisitAll(func(fl *pflag.Flag) {
		if _, ok := resets[fl.Name]; !ok && fl.Name != "help" {
			t.Errorf("flag --%s has no reset and would leak into the next run", fl.Name)
		}
	})
}

func TestResetUnsetFlagsKeepsProvided(t *testing.T) {
	defer resetFlags(askCmd)
	askTemp, askStream, askNoNarrative, askAllowUnsafe = 0.7, true, true, true
	askSchemaTopK, askNoHistory, askMaxRows, askModel = 3, true, 5, "stale"

	fs := pflag.NewFlagSet("ask", pflag.ContinueOnError)
	fs.Int("max-rows", 20, "")
	if err := fs.Parse([]string{"--max-rows", "5"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	resetUnsetFlags(fs, askFlagResets())

	if askTemp != 0 || askStream || askNoNarrative || askAllowUnsafe || askSchemaTopK != 0 || askNoHistory || askModel != "" {
		t.Fatalf("unset flags kept stale values: temp=%v stream=%v no-narrative=%v allow-unsafe=%v top-k=%d no-history=%v model=%q",
			askTemp, askStream, askNoNarrative, askAllowUnsafe, askSchemaTopK, askNoHistory, askModel)
	}
	if askMaxRows != 5 {
		t.Fatalf("provided --max-rows was reset to %d", askMaxRows)
	}
}
