package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sqlquest-cli/internal/analysis"
	"github.com/KaramelBytes/sqlquest-cli/internal/render"
)

var (
	anaOutputPath string
	anaDelimiter  string
	anaSampleRows int
	anaMaxRows    int
	anaDecimal    string
	anaThousands  string
	anaJSON       bool
	anaQuiet      bool
	anaRender     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <files...>",
	Short: "Run the statistical analyzer on CSV/TSV files and print a report",
	Example: `  sqlquest analyze sales.csv
  sqlquest analyze "exports/*.csv" --delimiter ';' --decimal comma
  sqlquest analyze metrics.tsv --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandFiles(args)
		if err != nil {
			return err
		}
		opt, err := csvOptions(anaDelimiter, anaDecimal, anaThousands, anaMaxRows)
		if err != nil {
			return err
		}
		if anaOutputPath != "" && len(files) > 1 {
			return fmt.Errorf("--output accepts a single input file (got %d)", len(files))
		}

		results := map[string]*analysis.Analysis{}
		total := len(files)
		for i, path := range files {
			if total > 1 && !anaQuiet && !anaJSON {
				fmt.Printf("[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			fr, err := analysis.LoadCSVFile(path, opt)
			if err != nil {
				return err
			}
			rep := analysis.NewCSVReport(fr, anaSampleRows)
			if anaJSON {
				results[path] = rep.Analysis
				continue
			}
			md := rep.Markdown()
			if anaOutputPath != "" {
				if err := os.WriteFile(anaOutputPath, []byte(md), 0o644); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				fmt.Printf("✓ Wrote analysis to %s\n", anaOutputPath)
				continue
			}
			if anaRender {
				out, _ := render.Markdown(md, 100)
				fmt.Println(out)
			} else {
				fmt.Println(md)
			}
		}
		if anaJSON {
			return writeJSON(results)
		}
		return nil
	},
}

// expandFiles resolves globs and literal paths, deduplicated and sorted.
func expandFiles(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

func csvOptions(delimiter, decimal, thousands string, maxRows int) (analysis.CSVOptions, error) {
	opt := analysis.CSVOptions{MaxRows: maxRows}
	switch delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	case "|", "pipe":
		opt.Delimiter = '|'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", delimiter)
	}
	switch strings.ToLower(strings.TrimSpace(decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", decimal)
	}
	switch strings.ToLower(strings.TrimSpace(thousands)) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", thousands)
	}
	return opt, nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	f := analyzeCmd.Flags()
	f.StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the report (Markdown)")
	f.StringVar(&anaDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (sniffed if omitted)")
	f.StringVar(&anaDecimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	f.StringVar(&anaThousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	f.IntVar(&anaSampleRows, "sample-rows", 5, "number of sample rows to include")
	f.IntVar(&anaMaxRows, "max-rows", 100000, "maximum rows to process (0 = unlimited)")
	f.BoolVar(&anaJSON, "json", false, "emit the analysis JSON instead of Markdown")
	f.BoolVar(&anaQuiet, "quiet", false, "suppress progress output")
	f.BoolVar(&anaRender, "render", false, "render the Markdown report for the terminal")
}
