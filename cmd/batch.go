package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/sqlquest-cli/internal/history"
	"github.com/KaramelBytes/sqlquest-cli/internal/utils"
)

var (
	batchWorkers     int
	batchOutDir      string
	batchProvider    string
	batchModel       string
	batchTone        string
	batchNoNarrative bool
	batchQuiet       bool
	batchBudgetLimit float64
	batchNoHistory   bool
)

var askBatchCmd = &cobra.Command{
	Use:   "ask-batch <file>",
	Short: "Answer one question per line concurrently and write one JSON run per question",
	Example: `  sqlquest ask-batch questions.txt --out-dir runs/
  sqlquest ask-batch questions.txt --workers 2 --no-narrative`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		questions, err := readQuestions(args[0])
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			return fmt.Errorf("no questions found in %s", args[0])
		}
		c, err := currentConfig()
		if err != nil {
			return err
		}
		tone, err := resolveTone(c, batchTone)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ds, err := openDataSource(ctx, c)
		if err != nil {
			return err
		}
		defer ds.Close()
		schema, err := ds.Introspect(ctx)
		if err != nil {
			return err
		}
		rt, provider, err := buildRuntime(c, runtimeOptions{ProviderFlag: batchProvider})
		if err != nil {
			return err
		}
		model := selectModel(c, provider, batchModel)
		if batchBudgetLimit > 0 {
			var total float64
			for _, q := range questions {
				_, cost := estimateRun(model, q, schema, c.MaxTokens, !batchNoNarrative)
				total += cost
			}
			if err := enforceBudget(total, batchBudgetLimit); err != nil {
				return err
			}
		}
		var store *history.Store
		if !batchNoHistory {
			store = history.NewStore(c.HistoryDir)
		}
		p := newPipeline(ds, schema, rt, pipelineOptions{
			Model:       model,
			Provider:    provider,
			MaxTokens:   c.MaxTokens,
			Temperature: c.Temperature,
			Tone:        tone,
			NoNarrative: batchNoNarrative,
		}, store)

		workers := batchWorkers
		if workers <= 0 {
			workers = 1
		}
		results := make([]*runResult, len(questions))
		var mu sync.Mutex
		done := 0
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, q := range questions {
			g.Go(func() error {
				res, err := p.ask(gctx, q)
				if err != nil {
					logger.Warn("question failed", zap.Int("index", i+1), zap.Error(err))
					if res.Error == "" {
						res.Error = err.Error()
					}
				}
				p.save("ask", res)
				results[i] = res
				mu.Lock()
				done++
				if !batchQuiet {
					status := "✓"
					if res.Error != "" {
						status = "✗"
					}
					fmt.Fprintf(os.Stderr, "[%d/%d] %s %s\n", done, len(questions), status, q)
				}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		failed := 0
		for i, res := range results {
			if res.Error != "" {
				failed++
			}
			if batchOutDir == "" {
				if err := writeJSON(res); err != nil {
					return err
				}
				continue
			}
			data, err := utils.PrettyJSON(res)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(filepath.Join(batchOutDir, fmt.Sprintf("%03d.json", i+1)), data); err != nil {
				return err
			}
		}
		if batchOutDir != "" && !batchQuiet {
			fmt.Printf("✓ Wrote %d runs to %s\n", len(results), batchOutDir)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d questions failed", failed, len(questions))
		}
		return nil
	},
}

// readQuestions returns non-empty lines, skipping '#' comments.
func readQuestions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open questions: %w", err)
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(askBatchCmd)
	f := askBatchCmd.Flags()
	f.IntVar(&batchWorkers, "workers", 4, "number of questions answered concurrently")
	f.StringVar(&batchOutDir, "out-dir", "", "directory for one JSON file per question (default: JSON to stdout)")
	f.StringVar(&batchProvider, "provider", "", "LLM provider (default from config)")
	f.StringVar(&batchModel, "model", "", "override model")
	f.StringVar(&batchTone, "tone", "", "narrative tone: formal|casual")
	f.BoolVar(&batchNoNarrative, "no-narrative", false, "skip the LLM narrative")
	f.BoolVar(&batchQuiet, "quiet", false, "suppress progress output")
	f.Float64Var(&batchBudgetLimit, "budget-limit", 0, "fail before starting if the estimated max cost (USD) exceeds this budget")
	f.BoolVar(&batchNoHistory, "no-history", false, "do not record runs in history")
}
