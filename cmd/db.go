package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sqlquest-cli/internal/datasource"
	"github.com/KaramelBytes/sqlquest-cli/internal/render"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Create the sample database, import CSV files or list drivers",
}

var (
	dbInitPath string
	dbInitSeed bool
)

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the SQLite sample database (employees, products, sales)",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := dbInitPath
		if path == "" {
			path = datasource.DefaultSamplePath
		}
		if err := datasource.CreateSample(cmd.Context(), path, dbInitSeed); err != nil {
			return err
		}
		if dbInitSeed {
			fmt.Printf("✓ Sample database ready with demo rows: %s\n", path)
		} else {
			fmt.Printf("✓ Sample schema created: %s\n", path)
		}
		return nil
	},
}

var (
	dbImportTable     string
	dbImportDelimiter string
	dbImportReplace   bool
)

var dbImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Load a CSV file into a new table, inferring INTEGER, REAL or TEXT columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		table := dbImportTable
		if table == "" {
			base := filepath.Base(path)
			table = strings.TrimSuffix(base, filepath.Ext(base))
		}
		opt, err := csvOptions(dbImportDelimiter, "", "", 0)
		if err != nil {
			return err
		}
		if opt.Delimiter == 0 && strings.HasSuffix(strings.ToLower(path), ".tsv") {
			opt.Delimiter = '\t'
		}
		c, err := currentConfig()
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
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()
		res, err := ds.ImportCSV(ctx, f, datasource.ImportOptions{Table: table, Delimiter: opt.Delimiter, Replace: dbImportReplace})
		if err != nil {
			return err
		}
		fmt.Printf("✓ Imported %d rows into %s\n", res.Rows, res.Table)
		rows := make([][]string, len(res.Columns))
		for i := range res.Columns {
			rows[i] = []string{res.Columns[i], res.Types[i]}
		}
		render.Table(os.Stdout, []string{"Column", "Type"}, rows)
		return nil
	},
}

var dbDriversCmd = &cobra.Command{
	Use:   "drivers",
	Short: "List supported database drivers",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := [][]string{}
		for _, name := range datasource.Dialects() {
			d, _ := datasource.LookupDialect(name)
			rows = append(rows, []string{name, d.DisplayName(), d.DriverName()})
		}
		render.Table(os.Stdout, []string{"Driver", "Database", "database/sql name"}, rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbInitCmd, dbImportCmd, dbDriversCmd)
	dbInitCmd.Flags().StringVar(&dbInitPath, "path", "", "SQLite file to create (default data/sample.db)")
	dbInitCmd.Flags().BoolVar(&dbInitSeed, "seed", false, "insert deterministic demo rows")
	dbImportCmd.Flags().StringVar(&dbImportTable, "table", "", "target table (default: file name)")
	dbImportCmd.Flags().StringVar(&dbImportDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|'")
	dbImportCmd.Flags().BoolVar(&dbImportReplace, "replace", false, "drop the table first if it exists")
}
