package sqlgen

import (
	"regexp"
	"strings"
)

// Guards enforce business invariants on generated SQL before it reaches the
// safety gate. They operate on the clause representation, so an injected
// condition can never land in the wrong clause.

const transporterColumn = "trip_transporter_name"

const transporterNotNullFilter = transporterColumn + " IS NOT NULL AND " + transporterColumn + " != ''"

// minTransporterTrips is the minimum group size for transporter rankings.
const minTransporterTrips = 5

var transporterNotNullPattern = regexp.MustCompile(`(?i)transporter_name\s+IS\s+NOT\s+NULL`)

// ApplyGuards rewrites a query to satisfy the transporter invariants:
// a not-null/not-empty filter whenever the transporter-name column is
// referenced, and a minimum group size when grouping by transporter.
// Queries that cannot be parsed into clause form are returned unchanged.
func ApplyGuards(sql string) string {
	if !strings.Contains(strings.ToLower(sql), transporterColumn) {
		return sql
	}

	stmt, ok := ParseSelect(sql)
	if !ok {
		return sql
	}

	if !transporterNotNullPattern.MatchString(sql) {
		if stmt.Where == "" {
			stmt.Where = transporterNotNullFilter
		} else {
			stmt.Where = transporterNotNullFilter + " AND " + stmt.Where
		}
	}

	if stmt.GroupBy != "" && stmt.Having == "" {
		stmt.Having = "COUNT(*) >= 5"
	}

	return stmt.String()
}
