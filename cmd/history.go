package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sqlquest-cli/internal/history"
	"github.com/KaramelBytes/sqlquest-cli/internal/render"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List, show or remove recorded runs",
}

var historyLimit int

func historyStore() (*history.Store, error) {
	c, err := currentConfig()
	if err != nil {
		return nil, err
	}
	return history.NewStore(c.HistoryDir), nil
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := historyStore()
		if err != nil {
			return err
		}
		recs, err := s.List()
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}
		if historyLimit > 0 && len(recs) > historyLimit {
			recs = recs[:historyLimit]
		}
		rows := make([][]string, 0, len(recs))
		for _, r := range recs {
			text := r.Question
			if text == "" {
				text = r.SQL
			}
			status := fmt.Sprintf("%d rows", r.RowCount)
			if r.Error != "" {
				status = "error"
			}
			rows = append(rows, []string{r.ID[:8], r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Command, truncate(text, 60), status, r.Chart})
		}
		render.Table(os.Stdout, []string{"ID", "When", "Cmd", "Question / SQL", "Result", "Chart"}, rows)
		return nil
	},
}

var historyShowJSON bool

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a recorded run (full ID or unique prefix)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := historyStore()
		if err != nil {
			return err
		}
		r, err := s.Get(args[0])
		if err != nil {
			return err
		}
		if historyShowJSON {
			return writeJSON(r)
		}
		fmt.Printf("ID:        %s\n", r.ID)
		fmt.Printf("When:      %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Command:   %s (%s)\n", r.Command, r.Driver)
		if r.Model != "" {
			fmt.Printf("Model:     %s/%s, tone %s\n", r.Provider, r.Model, r.Tone)
		}
		if r.Question != "" {
			fmt.Printf("Question:  %s\n", r.Question)
		}
		fmt.Printf("SQL:       %s\n", r.SQL)
		fmt.Printf("Rows:      %d (columns: %s)\n", r.RowCount, strings.Join(r.Columns, ", "))
		if r.Chart != "" {
			fmt.Printf("Chart:     %s %s\n", r.Chart, r.ChartPath)
		}
		if r.Error != "" {
			fmt.Printf("Error:     %s\n", r.Error)
		}
		var a struct {
			Insights []string `json:"insights"`
		}
		if len(r.Analysis) > 0 && json.Unmarshal(r.Analysis, &a) == nil && len(a.Insights) > 0 {
			fmt.Println("\nInsights:")
			for _, in := range a.Insights {
				fmt.Printf("  - %s\n", in)
			}
		}
		if r.Narrative != "" {
			fmt.Println("\nNarrative:")
			fmt.Println(r.Narrative)
		}
		return nil
	},
}

var historyRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Remove a recorded run",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := historyStore()
		if err != nil {
			return err
		}
		id, err := s.Delete(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✓ Removed %s\n", id)
		return nil
	},
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyRmCmd)
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum runs to list (0 = all)")
	historyShowCmd.Flags().BoolVar(&historyShowJSON, "json", false, "print the raw record")
}
