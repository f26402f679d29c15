package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelect_AllClauses(t *testing.T) {
	stmt, ok := ParseSelect(`SELECT a, COUNT(*) as n FROM trips_full WHERE a > 1 GROUP BY a HAVING COUNT(*) >= 5 ORDER BY n DESC LIMIT 10`)
	require.True(t, ok)

	assert.Equal(t, "a, COUNT(*) as n", stmt.Columns)
	assert.Equal(t, "trips_full", stmt.From)
	assert.Equal(t, "a > 1", stmt.Where)
	assert.Equal(t, "a", stmt.GroupBy)
	assert.Equal(t, "COUNT(*) >= 5", stmt.Having)
	assert.Equal(t, "n DESC", stmt.OrderBy)
	assert.Equal(t, "10", stmt.Limit)
}

func TestParseSelect_MinimalStatement(t *testing.T) {
	stmt, ok := ParseSelect("SELECT COUNT(*) FROM trips_full;")
	require.True(t, ok)

	assert.Equal(t, "COUNT(*)", stmt.Columns)
	assert.Equal(t, "trips_full", stmt.From)
	assert.Empty(t, stmt.Where)
	assert.Empty(t, stmt.Limit)
}

func TestParseSelect_KeywordsInsideQuotesIgnored(t *testing.T) {
	stmt, ok := ParseSelect(`SELECT name FROM trips_full WHERE note = 'GROUP BY mistake' LIMIT 5`)
	require.True(t, ok)

	assert.Equal(t, "note = 'GROUP BY mistake'", stmt.Where)
	assert.Empty(t, stmt.GroupBy)
	assert.Equal(t, "5", stmt.Limit)
}

func TestParseSelect_QuotedColumnNames(t *testing.T) {
	stmt, ok := ParseSelect(`SELECT "Total Long Stoppage Alerts" FROM trips_full WHERE "Total Long Stoppage Alerts" > 0`)
	require.True(t, ok)

	assert.Equal(t, `"Total Long Stoppage Alerts"`, stmt.Columns)
	assert.Equal(t, `"Total Long Stoppage Alerts" > 0`, stmt.Where)
}

func TestParseSelect_RejectsNonSelect(t *testing.T) {
	_, ok := ParseSelect("UPDATE trips_full SET x = 1")
	assert.False(t, ok)

	_, ok = ParseSelect("SELECT no_from_clause")
	assert.False(t, ok)
}

func TestSelectStatement_String_CanonicalOrder(t *testing.T) {
	stmt := &SelectStatement{
		Columns: "a, COUNT(*) as n",
		From:    "trips_full",
		Where:   "a IS NOT NULL",
		GroupBy: "a",
		Having:  "COUNT(*) >= 5",
		OrderBy: "n DESC",
		Limit:   "10",
	}

	assert.Equal(t,
		"SELECT a, COUNT(*) as n FROM trips_full WHERE a IS NOT NULL GROUP BY a HAVING COUNT(*) >= 5 ORDER BY n DESC LIMIT 10",
		stmt.String())
}

func TestParseSelect_RoundTrip(t *testing.T) {
	original := "SELECT a FROM t WHERE a > 1 GROUP BY a ORDER BY a LIMIT 5"
	stmt, ok := ParseSelect(original)
	require.True(t, ok)
	assert.Equal(t, original, stmt.String())
}
