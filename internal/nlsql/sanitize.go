package nlsql

import (
	"errors"
	"regexp"
	"strings"

	"github.com/KaramelBytes/sqlquest-cli/internal/sqlguard"
)

var (
	// ErrNotSQL is returned when the completion does not start with SELECT or WITH.
	ErrNotSQL = errors.New("the generated output does not appear to be a valid SQL query")
	// ErrEmptyOutput is returned when nothing is left after cleanup.
	ErrEmptyOutput = errors.New("the model returned an empty response")

	ErrMultipleStatements = sqlguard.ErrMultipleStatements
	ErrUnsafeLiteral      = sqlguard.ErrUnsafeLiteral
)

var (
	fenceRe    = regexp.MustCompile("(?s)^```[A-Za-z0-9_-]*[ \\t]*\\r?\\n?(.*?)\\r?\\n?```\\s*$")
	sqlLabelRe = regexp.MustCompile(`(?i)^sql\s*:\s*`)
)

// Sanitize strips the decoration models like to add around SQL and returns a
// single statement without a trailing semicolon.
func Sanitize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	s = strings.TrimSpace(sqlLabelRe.ReplaceAllString(s, ""))
	s = stripLeadingComments(s)
	if s == "" {
		return "", ErrEmptyOutput
	}
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return "", ErrNotSQL
	}
	q, err := sqlguard.Normalize(s)
	if errors.Is(err, sqlguard.ErrEmpty) {
		return "", ErrEmptyOutput
	}
	return q, err
}

func stripLeadingComments(s string) string {
	lines := strings.Split(s, "\n")
	i := 0
	for i < len(lines) {
		l := strings.TrimSpace(lines[i])
		if l != "" && !strings.HasPrefix(l, "--") {
			break
		}
		i++
	}
	return strings.TrimSpace(strings.Join(lines[i:], "\n"))
}
