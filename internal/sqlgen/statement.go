// Package sqlgen converts natural-language questions into safe SQL, either
// through the external completion service or a deterministic fallback.
package sqlgen

import (
	"strings"
)

// SelectStatement is a clause-level representation of a SELECT query. Guard
// rewrites mutate clause fields instead of splicing text, so clause ordering
// can never be corrupted.
type SelectStatement struct {
	Columns string // text between SELECT and FROM
	From    string
	Where   string
	GroupBy string
	Having  string
	OrderBy string
	Limit   string
}

// clauseMarkers in the order they may appear after FROM.
var clauseMarkers = []struct {
	name     string
	keywords []string
}{
	{"where", []string{"WHERE"}},
	{"group by", []string{"GROUP", "BY"}},
	{"having", []string{"HAVING"}},
	{"order by", []string{"ORDER", "BY"}},
	{"limit", []string{"LIMIT"}},
}

// ParseSelect splits a SELECT statement into its clauses. Keyword matching
// skips quoted regions. Returns false for statements it cannot shape.
func ParseSelect(sql string) (*SelectStatement, bool) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	tokens := lexTokens(trimmed)
	if len(tokens) == 0 || !strings.EqualFold(tokens[0].text, "SELECT") {
		return nil, false
	}

	fromIdx := findKeyword(tokens, 1, "FROM")
	if fromIdx < 0 {
		return nil, false
	}

	// Locate each trailing clause by its first top-level keyword occurrence.
	boundaries := []int{}
	names := []string{}
	searchFrom := fromIdx + 1
	for _, marker := range clauseMarkers {
		idx := findKeywordSeq(tokens, searchFrom, marker.keywords)
		if idx >= 0 {
			boundaries = append(boundaries, idx)
			names = append(names, marker.name)
			searchFrom = idx + len(marker.keywords)
		}
	}

	stmt := &SelectStatement{}
	stmt.Columns = sliceText(trimmed, tokens, 1, fromIdx)

	fromEnd := len(tokens)
	if len(boundaries) > 0 {
		fromEnd = boundaries[0]
	}
	stmt.From = sliceText(trimmed, tokens, fromIdx+1, fromEnd)
	if stmt.Columns == "" || stmt.From == "" {
		return nil, false
	}

	for i, name := range names {
		start := boundaries[i]
		end := len(tokens)
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		}
		skip := 1
		if name == "group by" || name == "order by" {
			skip = 2
		}
		body := sliceText(trimmed, tokens, start+skip, end)

		switch name {
		case "where":
			stmt.Where = body
		case "group by":
			stmt.GroupBy = body
		case "having":
			stmt.Having = body
		case "order by":
			stmt.OrderBy = body
		case "limit":
			stmt.Limit = body
		}
	}

	return stmt, true
}

// String renders the statement with clauses in canonical order.
func (s *SelectStatement) String() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(s.Columns)
	b.WriteString(" FROM ")
	b.WriteString(s.From)
	if s.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(s.Where)
	}
	if s.GroupBy != "" {
		b.WriteString(" GROUP BY ")
		b.WriteString(s.GroupBy)
	}
	if s.Having != "" {
		b.WriteString(" HAVING ")
		b.WriteString(s.Having)
	}
	if s.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(s.OrderBy)
	}
	if s.Limit != "" {
		b.WriteString(" LIMIT ")
		b.WriteString(s.Limit)
	}
	return b.String()
}

// token is a whitespace-delimited word with its source offsets. Quoted
// regions are kept whole so clause keywords inside strings are never split
// out as tokens.
type token struct {
	text  string
	start int
	end   int
}

func lexTokens(sql string) []token {
	var tokens []token
	i := 0
	n := len(sql)
	for i < n {
		c := sql[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}

		start := i
		if c == '\'' || c == '"' {
			quote := c
			i++
			for i < n && sql[i] != quote {
				i++
			}
			if i < n {
				i++
			}
			// Absorb any identifier characters glued to the quote.
			for i < n && !isSpace(sql[i]) {
				i++
			}
		} else {
			for i < n && !isSpace(sql[i]) && sql[i] != '\'' && sql[i] != '"' {
				i++
			}
			// A quote opening mid-token (e.g. table."col name") belongs to it.
			if i < n && (sql[i] == '\'' || sql[i] == '"') {
				quote := sql[i]
				i++
				for i < n && sql[i] != quote {
					i++
				}
				if i < n {
					i++
				}
				for i < n && !isSpace(sql[i]) {
					i++
				}
			}
		}
		tokens = append(tokens, token{text: sql[start:i], start: start, end: i})
	}
	return tokens
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// findKeyword returns the index of the first bare keyword token at or after
// the given position.
func findKeyword(tokens []token, from int, keyword string) int {
	for i := from; i < len(tokens); i++ {
		if strings.EqualFold(tokens[i].text, keyword) {
			return i
		}
	}
	return -1
}

// findKeywordSeq matches a multi-word keyword sequence (GROUP BY, ORDER BY).
func findKeywordSeq(tokens []token, from int, keywords []string) int {
	for i := from; i+len(keywords) <= len(tokens); i++ {
		match := true
		for j, kw := range keywords {
			if !strings.EqualFold(tokens[i+j].text, kw) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func sliceText(sql string, tokens []token, from, to int) string {
	if from >= to || from >= len(tokens) {
		return ""
	}
	if to > len(tokens) {
		to = len(tokens)
	}
	return strings.TrimSpace(sql[tokens[from].start:tokens[to-1].end])
}
