package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sqlquest-cli/internal/datasource"
	"github.com/KaramelBytes/sqlquest-cli/internal/nlsql"
	"github.com/KaramelBytes/sqlquest-cli/internal/render"
)

var (
	schemaJSON   bool
	schemaPrompt bool
)

var schemaCmd = &cobra.Command{
	Use:   "schema [table...]",
	Short: "Show the tables and columns of the connected database",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout(60))
		defer cancel()
		ds, err := openDataSource(ctx, c)
		if err != nil {
			return err
		}
		defer ds.Close()
		s, err := ds.Introspect(ctx)
		if err != nil {
			return err
		}
		if len(args) > 0 {
			for _, name := range args {
				if _, ok := s.Table(name); !ok {
					return fmt.Errorf("table not found: %s", name)
				}
			}
			s = s.Subset(args)
		}
		switch {
		case schemaJSON:
			return writeJSON(s)
		case schemaPrompt:
			fmt.Print(nlsql.SchemaText(s))
			return nil
		}
		if len(s.Tables) == 0 {
			fmt.Println("No tables found.")
			return nil
		}
		fmt.Printf("Database: %s (%d tables)\n\n", s.Dialect, len(s.Tables))
		for _, t := range s.Tables {
			fmt.Printf("Table: %s\n", t.Name)
			render.Table(os.Stdout, []string{"Column", "Type", "PK", "Nullable", "References"}, schemaRows(t))
			fmt.Println()
		}
		return nil
	},
}

func schemaRows(t datasource.Table) [][]string {
	rows := make([][]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		pk, null, ref := "", "no", ""
		if col.PrimaryKey {
			pk = "✓"
		}
		if col.Nullable {
			null = "yes"
		}
		if col.References != nil {
			ref = col.References.Table + "." + col.References.Column
		}
		rows = append(rows, []string{col.Name, col.Type, pk, null, ref})
	}
	return rows
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().BoolVar(&schemaJSON, "json", false, "emit the schema as JSON")
	schemaCmd.Flags().BoolVar(&schemaPrompt, "prompt", false, "print the schema exactly as sent to the model")
}
