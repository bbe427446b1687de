// Package nlsql turns natural-language questions into a single read-only SQL
// statement by prompting an LLM with the database schema.
package nlsql

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/sqlquest-cli/internal/datasource"
)

// SystemMessage is sent ahead of every translation prompt.
const SystemMessage = "You are an assistant that converts natural language to SQL queries."

// ExampleQuestions are suggestions for first-time users of the sample database.
var ExampleQuestions = []string{
	"What are the top 10 most expensive products?",
	"Show me the average sales by region",
	"Which employees have been with the company the longest?",
	"Compare revenue across different departments",
	"How did monthly sales revenue trend over time?",
	"Is there a relationship between quantity and total amount?",
}

// SchemaText renders the schema in the layout the prompt expects.
func SchemaText(s *datasource.Schema) string {
	var b strings.Builder
	b.WriteString("Database Schema:\n")
	if s == nil {
		return b.String()
	}
	for _, t := range s.Tables {
		fmt.Fprintf(&b, "Table: %s\n", t.Name)
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  - %s (%s)", c.Name, c.Type)
			if c.PrimaryKey {
				b.WriteString(" (PRIMARY KEY)")
			}
			if c.References != nil {
				fmt.Fprintf(&b, " (FOREIGN KEY to %s.%s)", c.References.Table, c.References.Column)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// BuildPrompt assembles the user prompt for a question against a schema.
func BuildPrompt(question string, s *datasource.Schema) string {
	dialect := "SQLite"
	if s != nil && s.Dialect != "" {
		dialect = s.Dialect
	}
	var b strings.Builder
	b.WriteString("You are an expert SQL query generator. Your task is to convert a natural language question into a valid SQL query.\n\n")
	b.WriteString(SchemaText(s))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Question: %s\n\n", strings.TrimSpace(question))
	fmt.Fprintf(&b, "Generate a valid SQL query for %s that answers this question. Only return the SQL query itself without any explanations, comments, or markdown formatting.\n", dialect)
	fmt.Fprintf(&b, "The query should be optimized, follow best practices, and be compatible with %s syntax.\n", dialect)
	return b.String()
}
