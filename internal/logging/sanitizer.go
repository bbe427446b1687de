package logging

import (
	"regexp"
	"strings"
)

const (
	// MaxQueryLogLength caps SQL text written to logs.
	MaxQueryLogLength = 200
	// RedactedText replaces sensitive values.
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx up to the next delimiter
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)
	bearerPattern   = regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._~+/=-]+`)
	apiKeyPattern   = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9._-]{16,}`)
	// user:pass@host in URL-style DSNs
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@`)
	// user:pass@tcp(host) in MySQL DSNs
	mysqlDSNPattern = regexp.MustCompile(`^([^:/\s]+):[^@\s]+@`)
)

// SanitizeDSN removes credentials from a database connection string.
func SanitizeDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	s := passwordPattern.ReplaceAllString(dsn, "${1}="+RedactedText)
	if strings.Contains(s, "://") {
		return connStringPattern.ReplaceAllString(s, "://"+RedactedText+"@")
	}
	return mysqlDSNPattern.ReplaceAllString(s, "${1}:"+RedactedText+"@")
}

// SanitizeError returns the error text with secrets removed.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return Sanitize(err.Error())
}

// Sanitize redacts passwords, bearer tokens, API keys and DSN credentials in s.
func Sanitize(s string) string {
	s = passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	s = apiKeyPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = connStringPattern.ReplaceAllString(s, "://"+RedactedText+"@")
	return s
}

// SanitizeQuery truncates SQL for logging.
func SanitizeQuery(query string) string {
	if len(query) > MaxQueryLogLength {
		query = query[:MaxQueryLogLength] + "..."
	}
	return passwordPattern.ReplaceAllString(query, "${1}="+RedactedText)
}
