package database

import (
	"fmt"
	"regexp"
	"strings"
)

// dangerousKeywords must never appear as whole words in a query. Substring
// occurrences inside identifiers (created_at, updated_by) are allowed.
var dangerousKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE", "TRUNCATE",
	"REPLACE", "ATTACH", "DETACH", "PRAGMA",
}

var dangerousPatterns = compileDangerousPatterns()

func compileDangerousPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(dangerousKeywords))
	for _, kw := range dangerousKeywords {
		patterns[kw] = regexp.MustCompile(`(?i)\b` + kw + `\b`)
	}
	return patterns
}

// Validate checks a candidate statement against the safety rules, in order:
// no dangerous keyword as a whole word, SELECT-only, at most one statement.
// A failure is returned as a QueryError with KindValidation.
func Validate(sql string) error {
	for _, kw := range dangerousKeywords {
		if dangerousPatterns[kw].MatchString(sql) {
			return NewValidationError(fmt.Sprintf("dangerous keyword detected: %s", kw))
		}
	}

	trimmed := strings.TrimSpace(sql)
	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return NewValidationError("only SELECT queries are allowed")
	}

	if strings.Count(sql, ";") > 1 {
		return NewValidationError("multiple statements not allowed")
	}

	return nil
}
