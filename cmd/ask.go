package cmd

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/sqlquest-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/sqlquest-cli/internal/config"
	"github.com/KaramelBytes/sqlquest-cli/internal/datasource"
	"github.com/KaramelBytes/sqlquest-cli/internal/history"
	"github.com/KaramelBytes/sqlquest-cli/internal/narrative"
	"github.com/KaramelBytes/sqlquest-cli/internal/nlsql"
	"github.com/KaramelBytes/sqlquest-cli/internal/utils"
)

var (
	askProvider    string
	askModel       string
	askTone        string
	askMaxTokens   int
	askTemp        float64
	askDryRun      bool
	askJSON        bool
	askChartOut    string
	askStream      bool
	askBudgetLimit float64
	askSchemaTopK  int
	askAllowUnsafe bool
	askExamples    bool
	askNoNarrative bool
	askNoHistory   bool
	askMaxRows     int
	askOllamaHost  string
	askTimeoutSec  int
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Translate a question to SQL, run it and explain the result",
	Example: `  sqlquest ask "What are the total sales by region?"
  sqlquest ask "Show monthly sales trends" --chart-out trends.html
  sqlquest ask "Top products by revenue" --tone casual --stream
  sqlquest ask "How many employees per department?" --dry-run
  sqlquest ask --examples`,
	Args: func(cmd *cobra.Command, args []string) error {
		if askExamples {
			return nil
		}
		if len(args) == 0 || strings.TrimSpace(strings.Join(args, " ")) == "" {
			return fmt.Errorf("a question is required (try --examples)")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		resetUnsetFlags(cmd.Flags(), askFlagResets())
		if askExamples {
			fmt.Println("Example questions:")
			for _, q := range nlsql.ExampleQuestions {
				fmt.Printf("  - %s\n", q)
			}
			return nil
		}
		question := strings.TrimSpace(strings.Join(args, " "))

		c, err := currentConfig()
		if err != nil {
			return err
		}
		tone, err := resolveTone(c, askTone)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout(askTimeoutSec))
		defer cancel()

		ds, err := openDataSource(ctx, c)
		if err != nil {
			return err
		}
		defer ds.Close()
		schema, err := ds.Introspect(ctx)
		if err != nil {
			return err
		}
		if len(schema.Tables) == 0 {
			return fmt.Errorf("the database has no tables; run 'sqlquest db init --seed' or import a CSV")
		}

		provider := resolveProvider(c, askProvider)
		model := selectModel(c, provider, askModel)
		maxTokens := askMaxTokens
		if maxTokens <= 0 {
			maxTokens = c.MaxTokens
		}
		temp := c.Temperature
		if cmd.Flags().Changed("temp") {
			temp = askTemp
		}

		prompt := nlsql.SystemMessage + nlsql.BuildPrompt(question, schema)
		tokens, estCost := estimateRun(model, question, schema, maxTokens, !askNoNarrative)
		if !askJSON {
			fmt.Printf("Tokens: prompt≈%d, model=%s (%s)\n", tokens, model, provider)
			if mi, ok := ai.LookupModel(model); ok && mi.InputPerK > 0 {
				fmt.Printf("Estimated max cost: ~$%.4f (in %.4f/out %.4f per 1K tokens)\n", estCost, mi.InputPerK, mi.OutputPerK)
			}
		}
		if err := enforceBudget(estCost, askBudgetLimit); err != nil {
			return err
		}

		if askDryRun {
			sum := sha1.Sum([]byte(prompt))
			fmt.Println("\n--dry-run: no API call will be made. Prompt preview below --")
			fmt.Printf("Request ID (dry-run): sim_%x\n", sum[:6])
			parts := []utils.Section{
				{Name: "system", Text: nlsql.SystemMessage},
				{Name: "schema", Text: nlsql.SchemaText(schema)},
				{Name: "question", Text: question},
			}
			total := utils.TokenBreakdown(parts)
			fmt.Print("Prompt breakdown:")
			for _, sec := range parts {
				fmt.Printf(" %s≈%d", sec.Name, sec.Tokens)
			}
			fmt.Printf(" (sections %d)\n\n", total)
			fmt.Println(nlsql.BuildPrompt(question, schema))
			return nil
		}

		rt, provider, err := buildRuntime(c, runtimeOptions{ProviderFlag: askProvider, OllamaHost: askOllamaHost})
		if err != nil {
			return err
		}
		opts := pipelineOptions{
			Model:       model,
			Provider:    provider,
			MaxTokens:   maxTokens,
			Temperature: temp,
			Tone:        tone,
			AllowUnsafe: askAllowUnsafe,
			NoNarrative: askNoNarrative,
			ChartOut:    askChartOut,
			SchemaTopK:  schemaTopK(c, askSchemaTopK),
		}
		if opts.SchemaTopK > 0 && opts.SchemaTopK < len(schema.Tables) {
			emb, ep, em, err := buildEmbedder(c, runtimeOptions{OllamaHost: askOllamaHost})
			if err != nil {
				return err
			}
			opts.Embedder, opts.EmbedProvider, opts.EmbedModel = emb, ep, em
		}
		streamed := askStream && !askJSON && !askNoNarrative
		if streamed {
			opts.Stream, opts.StreamTo = true, os.Stdout
			opts.OnResult = func(r *runResult) {
				printResult(os.Stdout, r, askMaxRows)
				if r.Result.Len() > 0 {
					fmt.Println("(streaming)")
				}
			}
		}
		if !askJSON {
			fmt.Printf("⚙ Translating with model=%s ...\n", model)
		}

		var store *history.Store
		if !askNoHistory {
			store = history.NewStore(c.HistoryDir)
		}
		p := newPipeline(ds, schema, rt, opts, store)
		res, runErr := p.ask(ctx, question)
		p.save("ask", res)

		if askJSON {
			if err := writeJSON(res); err != nil {
				return err
			}
			return runErr
		}
		if runErr != nil {
			if res.RawSQL != "" {
				fmt.Fprintf(os.Stderr, "Model output:\n%s\n", res.RawSQL)
			} else if res.SQL != "" {
				fmt.Fprintf(os.Stderr, "SQL:\n%s\n", res.SQL)
			}
			return runErr
		}
		if !streamed {
			printResult(os.Stdout, res, askMaxRows)
		}
		printTail(os.Stdout, res, streamed)
		if res.Usage.TotalTokens > 0 {
			cost, _ := ai.EstimateCostUSD(model, res.Usage.PromptTokens, res.Usage.CompletionTokens)
			fmt.Printf("Usage: %d tokens (~$%.4f)\n", res.Usage.TotalTokens, cost)
		}
		return nil
	},
}

func resolveTone(c *cfgpkg.Global, flag string) (narrative.Tone, error) {
	v := flag
	if v == "" && c != nil {
		v = c.Tone
	}
	if v == "" {
		return narrative.ToneFormal, nil
	}
	return narrative.ParseTone(v)
}

func schemaTopK(c *cfgpkg.Global, flag int) int {
	if flag > 0 || c == nil {
		return flag
	}
	return c.SchemaTopK
}

// estimateRun approximates prompt tokens and worst-case cost: the translation
// call plus, when narrate is set, a narrative call of similar size.
func estimateRun(model, question string, schema *datasource.Schema, maxTokens int, narrate bool) (int, float64) {
	tokens := utils.CountTokens(nlsql.SystemMessage + nlsql.BuildPrompt(question, schema))
	calls := 1
	if narrate {
		calls = 2
	}
	cost, _ := ai.EstimateCostUSD(model, tokens*calls, maxTokens*calls)
	return tokens, cost
}

func commandTimeout(sec int) time.Duration {
	if sec <= 0 {
		sec = 300
	}
	return time.Duration(sec) * time.Second
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// askFlagResets maps every ask flag to the reset of its default.
func askFlagResets() map[string]func() {
	return map[string]func(){
		"provider":     func() { askProvider = "" },
		"model":        func() { askModel = "" },
		"tone":         func() { askTone = "" },
		"max-tokens":   func() { askMaxTokens = 0 },
		"temp":         func() { askTemp = 0 },
		"dry-run":      func() { askDryRun = false },
		"json":         func() { askJSON = false },
		"chart-out":    func() { askChartOut = "" },
		"stream":       func() { askStream = false },
		"budget-limit": func() { askBudgetLimit = 0 },
		"schema-top-k": func() { askSchemaTopK = 0 },
		"allow-unsafe": func() { askAllowUnsafe = false },
		"examples":     func() { askExamples = false },
		"no-narrative": func() { askNoNarrative = false },
		"no-history":   func() { askNoHistory = false },
		"max-rows":     func() { askMaxRows = 20 },
		"ollama-host":  func() { askOllamaHost = "" },
		"timeout-sec":  func() { askTimeoutSec = 300 },
	}
}

// resetUnsetFlags restores defaults for flags not provided in this parse, so
// values do not carry over between invocations in the same process.
func resetUnsetFlags(fs *pflag.FlagSet, resets map[string]func()) {
	provided := map[string]bool{}
	fs.Visit(func(fl *pflag.Flag) { provided[fl.Name] = true })
	for name, reset := range resets {
		if !provided[name] {
			reset()
		}
	}
}

func init() {
	rootCmd.AddCommand(askCmd)
	f := askCmd.Flags()
	f.StringVar(&askProvider, "provider", "", "LLM provider: mistral|openai|anthropic|gemini|ollama (default from config)")
	f.StringVar(&askModel, "model", "", "override model (default from config or provider)")
	f.StringVar(&askTone, "tone", "", "narrative tone: formal|casual (default from config)")
	f.IntVar(&askMaxTokens, "max-tokens", 0, "max tokens per LLM call")
	f.Float64Var(&askTemp, "temp", 0, "sampling temperature")
	f.BoolVar(&askDryRun, "dry-run", false, "print the translation prompt and cost estimate without calling the API")
	f.BoolVar(&askJSON, "json", false, "emit the run as JSON to stdout")
	f.StringVar(&askChartOut, "chart-out", "", "write the chart as a standalone HTML page")
	f.BoolVar(&askStream, "stream", false, "stream the narrative if supported by the provider")
	f.Float64Var(&askBudgetLimit, "budget-limit", 0, "fail if estimated max cost (USD) exceeds this budget")
	f.IntVar(&askSchemaTopK, "schema-top-k", 0, "send only the K tables most similar to the question (0 = all)")
	f.BoolVar(&askAllowUnsafe, "allow-unsafe", false, "skip the injection check on SQL string literals")
	f.BoolVar(&askExamples, "examples", false, "list example questions and exit")
	f.BoolVar(&askNoNarrative, "no-narrative", false, "skip the LLM narrative")
	f.BoolVar(&askNoHistory, "no-history", false, "do not record this run in history")
	f.IntVar(&askMaxRows, "max-rows", 20, "rows shown in the result preview")
	f.StringVar(&askOllamaHost, "ollama-host", "", "override Ollama host (e.g., http://127.0.0.1:11434)")
	f.IntVar(&askTimeoutSec, "timeout-sec", 300, "overall timeout in seconds")
}
