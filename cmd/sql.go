package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sqlquest-cli/internal/ai"
	"github.com/KaramelBytes/sqlquest-cli/internal/history"
)

var (
	sqlQuestion  string
	sqlNarrate   bool
	sqlProvider  string
	sqlModel     string
	sqlTone      string
	sqlJSON      bool
	sqlChartOut  string
	sqlMaxRows   int
	sqlNoHistory bool
)

var sqlCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Run a read-only SQL query and analyze the result",
	Example: `  sqlquest sql "SELECT region, SUM(total_amount) AS revenue FROM sales GROUP BY region"
  sqlquest sql "SELECT * FROM employees" --question "salary by department" --chart-out emp.html
  sqlquest sql "SELECT category, COUNT(*) FROM products GROUP BY category" --narrate --tone casual`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.TrimSpace(strings.Join(args, " "))
		c, err := currentConfig()
		if err != nil {
			return err
		}
		tone, err := resolveTone(c, sqlTone)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout(0))
		defer cancel()
		ds, err := openDataSource(ctx, c)
		if err != nil {
			return err
		}
		defer ds.Close()

		opts := pipelineOptions{Tone: tone, ChartOut: sqlChartOut, MaxTokens: c.MaxTokens, Temperature: c.Temperature}
		var rt ai.Runtime
		if sqlNarrate {
			var provider string
			rt, provider, err = buildRuntime(c, runtimeOptions{ProviderFlag: sqlProvider})
			if err != nil {
				return err
			}
			opts.Provider = provider
			opts.Model = selectModel(c, provider, sqlModel)
		}
		var store *history.Store
		if !sqlNoHistory {
			store = history.NewStore(c.HistoryDir)
		}
		p := newPipeline(ds, nil, rt, opts, store)
		question := sqlQuestion
		if question == "" {
			question = query
		}
		res, runErr := p.runSQL(ctx, query, question)
		p.save("sql", res)
		if sqlJSON {
			if err := writeJSON(res); err != nil {
				return err
			}
			return runErr
		}
		if runErr != nil {
			return runErr
		}
		printResult(os.Stdout, res, sqlMaxRows)
		printTail(os.Stdout, res, false)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sqlCmd)
	f := sqlCmd.Flags()
	f.StringVar(&sqlQuestion, "question", "", "question text used for chart selection and the narrative")
	f.BoolVar(&sqlNarrate, "narrate", false, "ask the LLM for a narrative of the result")
	f.StringVar(&sqlProvider, "provider", "", "LLM provider for --narrate")
	f.StringVar(&sqlModel, "model", "", "model for --narrate")
	f.StringVar(&sqlTone, "tone", "", "narrative tone: formal|casual")
	f.BoolVar(&sqlJSON, "json", false, "emit the run as JSON to stdout")
	f.StringVar(&sqlChartOut, "chart-out", "", "write the chart as a standalone HTML page")
	f.IntVar(&sqlMaxRows, "max-rows", 20, "rows shown in the result preview")
	f.BoolVar(&sqlNoHistory, "no-history", false, "do not record this run in history")
}
