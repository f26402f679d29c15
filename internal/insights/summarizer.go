// Package insights derives a compact fact sheet from query results. The
// output is consumed both by the narrative prompt and directly by clients.
package insights

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Insights is a line-oriented summary plus a bounded raw preview.
type Insights struct {
	SummaryText string           `json:"summary_text"`
	RawPreview  []map[string]any `json:"raw_preview"`
}

// metricPreference orders candidate metric columns, most meaningful first.
var metricPreference = []string{
	"total_trips", "total", "count", "COUNT(*)", "delay_pct", "ontime_pct", "delayed",
}

// entityPreference orders candidate entity columns.
var entityPreference = []string{
	"trip_transporter_name", "transporter_name", "indent_transporter_name", "route_name", "indent_route",
}

// Summarize builds the fact sheet. Each sub-fact is emitted only when its
// preconditions hold; missing ones are omitted without comment. An empty
// result set yields a fixed three-line sheet with ROWS_RETURNED: 0.
func Summarize(question string, rows []map[string]any, sqlExplanation string) Insights {
	if len(rows) == 0 {
		return Insights{
			SummaryText: fmt.Sprintf("QUESTION: %s\nROWS_RETURNED: 0\nINSIGHT: No matching records were found. Ask the user to adjust filters or date ranges.", question),
			RawPreview:  []map[string]any{},
		}
	}

	firstRow := rows[0]
	columns := sortedKeys(firstRow)
	metricColumn := pickMetricColumn(firstRow, columns)
	entityColumn := pickEntityColumn(firstRow, columns, metricColumn)

	parts := []string{
		fmt.Sprintf("QUESTION: %s", question),
		fmt.Sprintf("ENTITY_TYPE: %s%s", inferEntityType(entityColumn), parenthesized(entityColumn)),
		fmt.Sprintf("METRIC: %s%s", inferMetricLabel(metricColumn), parenthesized(metricColumn)),
		fmt.Sprintf("ROWS_RETURNED: %d", len(rows)),
		fmt.Sprintf("COLUMNS_SAMPLED: %s", strings.Join(headStrings(columns, 6), ", ")),
	}

	if window := extractTimeWindow(rows, columns); window != "" {
		parts = append(parts, window)
	}
	if top := summarizeTopEntities(rows, metricColumn, entityColumn); top != "" {
		parts = append(parts, top)
	}
	if nulls := summarizeNulls(rows, entityColumn); nulls != "" {
		parts = append(parts, nulls)
	}
	if spread := summarizeNumericSpread(rows, metricColumn); spread != "" {
		parts = append(parts, spread)
	}
	if sqlExplanation != "" {
		parts = append(parts, fmt.Sprintf("SQL intent: %s", sqlExplanation))
	}

	preview := rows
	if len(preview) > 20 {
		preview = preview[:20]
	}

	return Insights{SummaryText: strings.Join(parts, "\n"), RawPreview: preview}
}

func pickMetricColumn(row map[string]any, columns []string) string {
	for _, pref := range metricPreference {
		for _, col := range columns {
			if strings.EqualFold(col, pref) {
				if _, ok := asNumber(row[col]); ok {
					return col
				}
			}
		}
	}
	for _, col := range columns {
		if _, ok := asNumber(row[col]); ok {
			return col
		}
	}
	return ""
}

func pickEntityColumn(row map[string]any, columns []string, metricColumn string) string {
	for _, pref := range entityPreference {
		for _, col := range columns {
			if strings.EqualFold(col, pref) && col != metricColumn {
				if _, ok := row[col].(string); ok {
					return col
				}
			}
		}
	}
	for _, col := range columns {
		if col == metricColumn {
			continue
		}
		if _, ok := row[col].(string); ok {
			return col
		}
	}
	return ""
}

func normalizeEntity(v any) string {
	if v == nil {
		return ""
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	if s == "" || strings.EqualFold(s, "null") {
		return ""
	}
	return s
}

func summarizeTopEntities(rows []map[string]any, metricColumn, entityColumn string) string {
	if metricColumn == "" || entityColumn == "" {
		return ""
	}

	type scored struct {
		entity string
		metric float64
	}
	var cleaned []scored
	for _, row := range rows {
		metric, ok := asNumber(row[metricColumn])
		if !ok {
			continue
		}
		entity := normalizeEntity(row[entityColumn])
		if entity == "" {
			continue
		}
		cleaned = append(cleaned, scored{entity: entity, metric: metric})
	}
	if len(cleaned) == 0 {
		return ""
	}

	sort.SliceStable(cleaned, func(i, j int) bool { return cleaned[i].metric > cleaned[j].metric })
	if len(cleaned) > 5 {
		cleaned = cleaned[:5]
	}

	bullets := make([]string, len(cleaned))
	for i, row := range cleaned {
		bullets[i] = fmt.Sprintf("%d. %s: %s", i+1, row.entity, formatNumber(row.metric))
	}
	return fmt.Sprintf("Top performers (%s by %s): %s.", entityColumn, metricColumn, strings.Join(bullets, "; "))
}

func summarizeNulls(rows []map[string]any, entityColumn string) string {
	if entityColumn == "" {
		return ""
	}
	nullCount := 0
	for _, row := range rows {
		if normalizeEntity(row[entityColumn]) == "" {
			nullCount++
		}
	}
	if nullCount == 0 {
		return ""
	}
	percent := float64(nullCount) / float64(len(rows)) * 100
	return fmt.Sprintf("%d rows (~%.1f%%) missing %s.", nullCount, percent, entityColumn)
}

func summarizeNumericSpread(rows []map[string]any, metricColumn string) string {
	if metricColumn == "" {
		return ""
	}
	var metrics []float64
	for _, row := range rows {
		if v, ok := asNumber(row[metricColumn]); ok {
			metrics = append(metrics, v)
		}
	}
	if len(metrics) < 2 {
		return ""
	}

	min, max := metrics[0], metrics[0]
	for _, v := range metrics[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min == max {
		return ""
	}

	divisor := min
	if divisor == 0 {
		divisor = 1
	}
	return fmt.Sprintf("%s ranges from %s to %s, a %.1fx spread.", metricColumn, formatNumber(min), formatNumber(max), max/divisor)
}

func inferEntityType(entityColumn string) string {
	if entityColumn == "" {
		return "entity"
	}
	col := strings.ToLower(entityColumn)
	switch {
	case strings.Contains(col, "transporter"):
		return "transporter"
	case strings.Contains(col, "route"):
		return "route"
	case strings.Contains(col, "consignor"):
		return "consignor"
	case strings.Contains(col, "vehicle"):
		return "vehicle"
	}
	return "entity"
}

func inferMetricLabel(metricColumn string) string {
	if metricColumn == "" {
		return "value"
	}
	col := strings.ToLower(metricColumn)
	switch {
	case strings.Contains(col, "delay"):
		return "delayed trips"
	case strings.Contains(col, "ontime"), strings.Contains(col, "on_time"):
		return "on-time performance"
	case strings.Contains(col, "trip"), strings.Contains(col, "total"):
		return "trip volume"
	case strings.Contains(col, "avg"), strings.Contains(col, "average"), strings.Contains(col, "transit_time"):
		return "average transit time"
	}
	return metricColumn
}

func extractTimeWindow(rows []map[string]any, columns []string) string {
	var dateCol string
	for _, col := range columns {
		lower := strings.ToLower(col)
		if strings.Contains(lower, "date") || strings.HasSuffix(lower, "_at") {
			dateCol = col
			break
		}
	}
	if dateCol == "" {
		return ""
	}

	var values []string
	for _, row := range rows {
		if s, ok := row[dateCol].(string); ok && len(s) >= 10 {
			values = append(values, s)
		}
	}
	if len(values) == 0 {
		return ""
	}
	sort.Strings(values)

	from := values[0][:10]
	to := values[len(values)-1][:10]
	if from == to {
		return fmt.Sprintf("TIME_WINDOW: %s", from)
	}
	return fmt.Sprintf("TIME_WINDOW: %s → %s", from, to)
}

// formatNumber renders metrics for the fact sheet: values at or above 100
// round to whole numbers with Indian-style digit grouping, smaller values
// keep two decimals.
func formatNumber(value float64) string {
	if math.IsNaN(value) {
		return "0"
	}
	if math.Abs(value) >= 100 {
		return groupIndian(int64(math.Round(value)))
	}
	return fmt.Sprintf("%.2f", value)
}

// groupIndian formats an integer with the en-IN grouping scheme: the last
// three digits stand alone, every group before that has two.
func groupIndian(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}

	digits := fmt.Sprintf("%d", n)
	if len(digits) <= 3 {
		return sign + digits
	}

	head := digits[:len(digits)-3]
	tail := digits[len(digits)-3:]

	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return sign + strings.Join(groups, ",") + "," + tail
}

func parenthesized(column string) string {
	if column == "" {
		return ""
	}
	return fmt.Sprintf(" (%s)", column)
}

func sortedKeys(row map[string]any) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func headStrings(values []string, n int) []string {
	if len(values) <= n {
		return values
	}
	return values[:n]
}

func asNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	}
	return 0, false
}
