// Package catalog provides the read-only column catalog and analytics
// knowledge base used to ground SQL generation.
package catalog

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/Avinash-blip/Final-AI-CoPilot/internal/observability"
)

// ColumnContext describes one column of the trips dataset.
type ColumnContext struct {
	Column      string
	Type        string
	Example     string
	Nullable    string
	Description string
}

// Catalog is the process-wide column catalog. It is loaded at most once and
// read-only afterwards; concurrent first reads are guarded by sync.Once.
type Catalog struct {
	logger *observability.Logger
	path   string

	once    sync.Once
	columns []ColumnContext
}

// NewCatalog creates a catalog backed by a tab-separated source file.
// The file is not read until the first access.
func NewCatalog(logger *observability.Logger, path string) *Catalog {
	return &Catalog{logger: logger, path: path}
}

// Columns returns the full column catalog. A load failure degrades to an
// empty catalog; it is logged, not fatal.
func (c *Catalog) Columns() []ColumnContext {
	c.once.Do(c.load)
	return c.columns
}

func (c *Catalog) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", c.path).Msg("Failed to load column catalog, continuing with empty catalog")
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Sno") {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 6 {
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		// Column names arrive with escaped underscores from the markdown source.
		column := strings.ReplaceAll(parts[1], `\_`, "_")

		c.columns = append(c.columns, ColumnContext{
			Column:      column,
			Type:        parts[2],
			Example:     parts[3],
			Nullable:    parts[4],
			Description: parts[5],
		})
	}

	c.logger.Info().Int("columns", len(c.columns)).Msg("Column catalog loaded")
}

// ColumnNames returns the names of all catalogued columns.
func (c *Catalog) ColumnNames() []string {
	cols := c.Columns()
	names := make([]string, 0, len(cols))
	for _, col := range cols {
		names = append(names, col.Column)
	}
	return names
}

// Snippet returns a question-relevant slice of the catalog for prompt
// building. Columns are scored by keyword hits against name and description.
func (c *Catalog) Snippet(question string, maxEntries int) string {
	columns := c.Columns()
	if len(columns) == 0 {
		return "No additional column context available."
	}
	if maxEntries <= 0 {
		maxEntries = 18
	}

	keywords := splitKeywords(question)

	type scored struct {
		col   ColumnContext
		score int
	}
	entries := make([]scored, 0, len(columns))
	for _, col := range columns {
		haystack := strings.ToLower(col.Column + " " + col.Description)
		score := 0
		for _, word := range keywords {
			if strings.Contains(haystack, word) {
				score++
			}
		}
		entries = append(entries, scored{col: col, score: score})
	}

	// Stable sort by score descending; ties keep catalog order.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].score > entries[j-1].score; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}

	selected := make([]scored, 0, maxEntries)
	for _, e := range entries {
		if e.score > 0 {
			selected = append(selected, e)
		}
		if len(selected) >= maxEntries {
			break
		}
	}
	if len(selected) == 0 {
		if len(entries) > maxEntries {
			entries = entries[:maxEntries]
		}
		selected = entries
	}

	lines := make([]string, 0, len(selected))
	for _, e := range selected {
		lines = append(lines, fmt.Sprintf("- %s (%s, nullable: %s) - %s",
			e.col.Column, e.col.Type, e.col.Nullable, e.col.Description))
	}
	return strings.Join(lines, "\n")
}

// BusinessRules returns the fixed business-rules summary embedded into
// generation prompts.
func (c *Catalog) BusinessRules() string {
	return `Key business rules:
1. On-time trips = sta_breached_alert = 0 AND "Total Long Stoppage Alerts" = 0.
2. Transporter analyses must exclude NULL or blank trip_transporter_name and require at least 5 trips for ranking.
3. Route fields: indent_ROUTE / route_name_derived hold canonical lane IDs; route_name is human-readable.
4. Alert metrics come from "Total Long Stoppage Alerts", "Total Route Deviation Alerts", and sta_breached_alert.
5. Trip lifecycle timestamps: trip_created_at, trip_closed_at, epod_created_at; use these for date filters.`
}

func splitKeywords(question string) []string {
	var keywords []string
	var current strings.Builder
	for _, r := range strings.ToLower(question) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			keywords = append(keywords, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		keywords = append(keywords, current.String())
	}
	return keywords
}
