package sqlguard

import "strings"

type tokKind int

const (
	tokWord tokKind = iota
	tokString
	tokQuotedIdent
	tokNumber
	tokPunct
	tokSemicolon
)

type token struct {
	kind tokKind
	text string
}

// readings lexes q once per string-escaping convention: standard SQL, where a
// backslash is an ordinary character (SQLite, PostgreSQL, SQL Server), and
// MySQL, where it escapes the next character. A query is only as safe as the
// worse of the two.
func readings(q string) [2][]token {
	return [2][]token{tokenize(q, false), tokenize(q, true)}
}

// tokenize is a small lexer that understands single-quoted strings (doubled
// quotes, plus backslash escapes when backslashEscapes is set), quoted
// identifiers in double quotes, backticks or brackets, and line and block
// comments. Comments and whitespace are dropped.
func tokenize(q string, backslashEscapes bool) []token {
	var out []token
	rs := []rune(q)
	n := len(rs)
	for i := 0; i < n; {
		c := rs[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '-' && i+1 < n && rs[i+1] == '-':
			for i < n && rs[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && rs[i+1] == '*':
			i += 2
			for i < n && !(rs[i] == '*' && i+1 < n && rs[i+1] == '/') {
				i++
			}
			i += 2
		case c == '\'':
			var b strings.Builder
			i++
			for i < n {
				if backslashEscapes && rs[i] == '\\' && i+1 < n {
					b.WriteRune(rs[i+1])
					i += 2
					continue
				}
				if rs[i] == '\'' {
					if i+1 < n && rs[i+1] == '\'' {
						b.WriteRune('\'')
						i += 2
						continue
					}
					i++
					break
				}
				b.WriteRune(rs[i])
				i++
			}
			out = append(out, token{kind: tokString, text: b.String()})
		case c == '"' || c == '`' || c == '[':
			closer := c
			if c == '[' {
				closer = ']'
			}
			start := i + 1
			i++
			for i < n && rs[i] != closer {
				i++
			}
			out = append(out, token{kind: tokQuotedIdent, text: string(rs[start:min(i, n)])})
			i++
		case c == ';':
			out = append(out, token{kind: tokSemicolon, text: ";"})
			i++
		case isWordStart(c):
			start := i
			for i < n && isWordPart(rs[i]) {
				i++
			}
			out = append(out, token{kind: tokWord, text: string(rs[start:i])})
		case c >= '0' && c <= '9':
			start := i
			for i < n && (rs[i] >= '0' && rs[i] <= '9' || rs[i] == '.') {
				i++
			}
			out = append(out, token{kind: tokNumber, text: string(rs[start:i])})
		default:
			out = append(out, token{kind: tokPunct, text: string(c)})
			i++
		}
	}
	return out
}

func isWordStart(c rune) bool {
	return c == '_' || c == '@' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c > 127
}

func isWordPart(c rune) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}
