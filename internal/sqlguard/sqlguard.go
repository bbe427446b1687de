// Package sqlguard normalizes and vets SQL text before it reaches a database:
// single-statement enforcement, read-only checks and injection screening of
// string literals.
package sqlguard

import (
	"errors"
	"fmt"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

var (
	// ErrEmpty indicates there is no SQL left after normalization.
	ErrEmpty = errors.New("empty SQL statement")
	// ErrMultipleStatements indicates the query contains more than one statement.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
	// ErrNotReadOnly indicates the statement is not a SELECT/WITH query or modifies data.
	ErrNotReadOnly = errors.New("only read-only SELECT queries are allowed")
	// ErrUnsafeLiteral indicates a string literal matched a SQL injection fingerprint.
	ErrUnsafeLiteral = errors.New("string literal looks like a SQL injection payload")
)

// writeKeywords are statement keywords that modify data or schema, or escape
// the query sandbox. REPLACE is absent on purpose: it is also a string function.
var writeKeywords = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "MERGE": {}, "UPSERT": {},
	"DROP": {}, "ALTER": {}, "CREATE": {}, "TRUNCATE": {}, "RENAME": {},
	"GRANT": {}, "REVOKE": {}, "ATTACH": {}, "DETACH": {}, "PRAGMA": {},
	"VACUUM": {}, "REINDEX": {}, "EXEC": {}, "EXECUTE": {}, "CALL": {},
	"INTO": {}, "LOCK": {}, "SHUTDOWN": {}, "BACKUP": {},
}

// Normalize trims whitespace, strips one trailing semicolon and rejects text
// that still contains a semicolon outside string literals and comments.
func Normalize(query string) (string, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimRight(q, " \t\r\n")
	if strings.HasSuffix(q, ";") {
		q = strings.TrimRight(strings.TrimSuffix(q, ";"), " \t\r\n")
	}
	if q == "" {
		return "", ErrEmpty
	}
	for _, toks := range readings(q) {
		for _, tok := range toks {
			if tok.kind == tokSemicolon {
				return "", ErrMultipleStatements
			}
		}
	}
	return q, nil
}

// FirstKeyword returns the upper-cased first word of the statement, skipping comments.
func FirstKeyword(query string) string {
	for _, tok := range tokenize(query, false) {
		if tok.kind == tokWord {
			return strings.ToUpper(tok.text)
		}
		if tok.kind != tokPunct {
			return ""
		}
		if tok.text != "(" {
			return ""
		}
	}
	return ""
}

// EnsureReadOnly accepts a single SELECT or WITH statement that contains no
// data-modifying keyword outside literals, quoted identifiers and comments,
// under both standard and backslash-escaped string rules.
func EnsureReadOnly(query string) error {
	switch FirstKeyword(query) {
	case "SELECT", "WITH":
	default:
		return ErrNotReadOnly
	}
	for _, toks := range readings(query) {
		for _, tok := range toks {
			switch tok.kind {
			case tokSemicolon:
				return ErrMultipleStatements
			case tokWord:
				if _, bad := writeKeywords[strings.ToUpper(tok.text)]; bad {
					return fmt.Errorf("%w: found %s", ErrNotReadOnly, strings.ToUpper(tok.text))
				}
			}
		}
	}
	return nil
}

// StringLiterals returns the unquoted contents of every single-quoted literal,
// reading backslashes as ordinary characters.
func StringLiterals(query string) []string {
	return literals(tokenize(query, false))
}

func literals(toks []token) []string {
	var out []string
	for _, tok := range toks {
		if tok.kind == tokString {
			out = append(out, tok.text)
		}
	}
	return out
}

// CheckLiterals screens every string literal with libinjection. A literal that
// itself parses as an injection payload (e.g. `x' OR '1'='1`) is rejected.
func CheckLiterals(query string) error {
	r := readings(query)
	for _, lit := range append(literals(r[0]), literals(r[1])...) {
		if lit == "" {
			continue
		}
		if isSQLi, fp := libinjection.IsSQLi(lit); isSQLi {
			return fmt.Errorf("%w: %q (fingerprint %s)", ErrUnsafeLiteral, lit, fp)
		}
	}
	return nil
}
