package answer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Avinash-blip/Final-AI-CoPilot/internal/insights"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/llm"
)

// generateNarrative turns a result set into a conversational answer. The
// completion service gets one question-focused attempt plus one minimal-prompt
// retry; anything else falls back to the deterministic narrative.
func (s *Service) generateNarrative(ctx context.Context, question string, ins insights.Insights) string {
	rawRows := ins.RawPreview
	if s.completer == nil {
		return fallbackNarrative(question, rawRows)
	}

	topResults := extractTopResults(rawRows, 5)
	prompt := buildNarrativePrompt(question, topResults, s.examples.Find(question), s.knowledgeExcerpt(question, ins.SummaryText))
	opts := llm.Options{Temperature: 0.5, MaxTokens: 400}

	response, err := s.completer.Complete(ctx, "", prompt, opts)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Narrative generation failed, using fallback")
		return fallbackNarrative(question, rawRows)
	}

	if strings.TrimSpace(response) == "" {
		s.logger.Warn().Msg("Empty narrative response, retrying with minimal prompt")
		minimal := fmt.Sprintf("Question: %s\n\nData: %s\n\nWrite a 2-sentence answer to the question using the data above:", question, topResults)
		response, err = s.completer.Complete(ctx, "", minimal, opts)
		if err != nil {
			response = ""
		}
	}

	if strings.TrimSpace(response) == "" {
		return fallbackNarrative(question, rawRows)
	}
	return strings.TrimSpace(response)
}

// knowledgeExcerpt pulls the metric definitions and business rules relevant
// to this question for the narrative prompt.
func (s *Service) knowledgeExcerpt(question, insightSummary string) string {
	if s.knowledge == nil {
		return ""
	}
	metrics, rules := s.knowledge.NarrativeContext(question, insightSummary)
	if metrics == "" && rules == "" {
		return ""
	}
	return fmt.Sprintf("\nRELEVANT DEFINITIONS:\n%s\n%s", metrics, rules)
}

func buildNarrativePrompt(question, topResults string, example *Example, knowledgeExcerpt string) string {
	exampleStyle := ""
	if example != nil {
		answer := example.ExampleAnswer
		if len(answer) > 100 {
			answer = answer[:100]
		}
		exampleStyle = fmt.Sprintf("\nExample answer style: %q...", answer)
	}

	return fmt.Sprintf(`Answer this question about logistics data:

QUESTION: %s

DATA:
%s
%s%s

Instructions:
- Answer the QUESTION directly in 2-3 sentences
- Use specific numbers from the DATA
- Be conversational, like a helpful analyst
- Do NOT mention SQL, databases, or technical terms

Answer:`, question, topResults, exampleStyle, knowledgeExcerpt)
}

// extractTopResults renders up to limit rows as a numbered list for the
// narrative prompt.
func extractTopResults(rawRows []map[string]any, limit int) string {
	if len(rawRows) == 0 {
		return "No data found."
	}

	rows := rawRows
	if len(rows) > limit {
		rows = rows[:limit]
	}
	columns := sortedColumns(rows[0])

	if len(rows) == 1 && len(columns) == 1 {
		return fmt.Sprintf("Result: %s", formatValue(rows[0][columns[0]]))
	}

	lines := make([]string, 0, len(rows))
	for i, row := range rows {
		var parts []string
		for _, col := range columns {
			v := row[col]
			if v == nil {
				continue
			}
			label := strings.ReplaceAll(col, "_", " ")
			parts = append(parts, fmt.Sprintf("%s: %s", label, formatValue(v)))
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, strings.Join(parts, ", ")))
	}

	result := strings.Join(lines, "\n")
	if len(rawRows) > limit {
		result += fmt.Sprintf("\n(%d more rows...)", len(rawRows)-limit)
	}
	return result
}

// fallbackNarrative builds an answer from the result shape alone. Branches
// mirror the common query families: counts, alert breakdowns, performance
// rankings, grouped totals, lists, and single records.
func fallbackNarrative(question string, rows []map[string]any) string {
	if len(rows) == 0 {
		return "I couldn't find any trips that match this question in the current dataset. Try widening the date range or relaxing one of the filters (for example, remove a specific transporter or route constraint)."
	}

	firstRow := rows[0]
	columns := sortedColumns(firstRow)
	lowerQuestion := strings.ToLower(question)

	if len(columns) == 1 && columns[0] == "COUNT(*)" {
		return fmt.Sprintf("There are %s matching trips for this question in the sample. If you'd like, I can break this down further by transporter, route, or time period.",
			formatValue(firstRow["COUNT(*)"]))
	}

	if hasColumn(columns, "stoppage_alerts") || hasColumn(columns, "deviation_alerts") {
		return alertNarrative(firstRow)
	}

	if hasColumn(columns, "ontime_pct") || hasColumn(columns, "total_trips") {
		return rankingNarrative(rows, columns)
	}

	if hasColumn(columns, "total") && len(rows) > 1 {
		return groupedTotalsNarrative(rows, columns)
	}

	if strings.Contains(lowerQuestion, "delay") && anyColumnContains(columns, "alert") {
		return fmt.Sprintf("I found %s trips with delay indicators (stoppage alerts or STA breaches). These trips experienced significant delays during their journey.",
			formatValue(int64(len(rows))))
	}

	if len(rows) >= 10 {
		return listNarrative(rows, columns)
	}

	if len(rows) == 1 {
		return singleRowNarrative(firstRow, columns)
	}

	if len(rows) > 1 && len(rows) <= 5 {
		return smallSetNarrative(rows, columns)
	}

	sampleCols := columns
	if len(sampleCols) > 3 {
		sampleCols = sampleCols[:3]
	}
	return fmt.Sprintf("I found %d results. The data includes %s and more.", len(rows), strings.Join(sampleCols, ", "))
}

func alertNarrative(row map[string]any) string {
	stoppage := numberOr(row["stoppage_alerts"], 0)
	deviation := numberOr(row["deviation_alerts"], 0)
	overspeed := numberOr(row["overspeed_alerts"], 0)
	unloading := numberOr(row["unloading_alerts"], 0)
	totalTrips := numberOr(row["total_trips"], 0)
	totalAlerts := stoppage + deviation + overspeed + unloading

	var b strings.Builder
	b.WriteString("Here's your alert analysis:\n\n")
	fmt.Fprintf(&b, "Over %s trips analyzed, I found %s total alerts:\n", formatNumber(totalTrips), formatNumber(totalAlerts))
	fmt.Fprintf(&b, "- Long Stoppage Alerts: %s\n", formatNumber(stoppage))
	fmt.Fprintf(&b, "- Route Deviation Alerts: %s\n", formatNumber(deviation))
	fmt.Fprintf(&b, "- Overspeed Alerts: %s\n", formatNumber(overspeed))
	fmt.Fprintf(&b, "- Unloading Delay Alerts: %s\n\n", formatNumber(unloading))

	type alertType struct {
		name  string
		count float64
	}
	alertTypes := []alertType{
		{"Long Stoppage", stoppage},
		{"Route Deviation", deviation},
		{"Overspeed", overspeed},
		{"Unloading Delay", unloading},
	}
	sort.SliceStable(alertTypes, func(i, j int) bool { return alertTypes[i].count > alertTypes[j].count })

	if alertTypes[0].count > 0 {
		fmt.Fprintf(&b, "%s alerts are the most frequent (%.1f%% of all alerts).",
			alertTypes[0].name, alertTypes[0].count/totalAlerts*100)
	}
	return b.String()
}

func rankingNarrative(rows []map[string]any, columns []string) string {
	top := rows
	if len(top) > 5 {
		top = top[:5]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here's the transporter performance ranking (top %d shown):\n\n", len(top))
	for i, row := range top {
		entity := entityLabel(row, columns)
		total := numberOr(row["total_trips"], numberOr(row["total"], 0))
		ontime := numberOr(row["ontime_pct"], 0)
		fmt.Fprintf(&b, "%d. %s\n", i+1, entity)
		fmt.Fprintf(&b, "   %s trips | On-Time: %.1f%%\n\n", formatNumber(total), ontime)
	}
	if len(rows) > 5 {
		fmt.Fprintf(&b, "...and %d more transporters analyzed.", len(rows)-5)
	}
	return b.String()
}

func groupedTotalsNarrative(rows []map[string]any, columns []string) string {
	top := rows
	if len(top) > 3 {
		top = top[:3]
	}

	var b strings.Builder
	b.WriteString("Here are the top results:\n\n")
	for i, row := range top {
		entity := entityLabel(row, columns)
		total := numberOr(row["total"], numberOr(row["total_trips"], 0))
		fmt.Fprintf(&b, "%d. %s: %s trips\n", i+1, entity, formatNumber(total))
	}
	if len(rows) > 3 {
		fmt.Fprintf(&b, "\n...and %d more results.", len(rows)-3)
	}
	return b.String()
}

func listNarrative(rows []map[string]any, columns []string) string {
	var keyColumn string
	for _, col := range columns {
		lower := strings.ToLower(col)
		if strings.Contains(lower, "name") || strings.Contains(lower, "id") || strings.Contains(lower, "route") {
			keyColumn = col
			break
		}
	}
	if keyColumn == "" {
		return fmt.Sprintf("I found %d matching records for your query.", len(rows))
	}

	var samples []string
	for _, row := range rows[:3] {
		if s := strings.TrimSpace(fmt.Sprintf("%v", row[keyColumn])); s != "" && s != "<nil>" {
			samples = append(samples, s)
		}
	}
	suffix := ""
	if len(rows) > 3 {
		suffix = ", and more"
	}
	return fmt.Sprintf("I found %d matching records. Here are a few examples: %s%s.", len(rows), strings.Join(samples, ", "), suffix)
}

func singleRowNarrative(row map[string]any, columns []string) string {
	if len(columns) == 1 {
		return fmt.Sprintf("The answer is %s.", formatValue(row[columns[0]]))
	}

	var details []string
	for _, col := range columns {
		v := row[col]
		if v == nil {
			continue
		}
		details = append(details, fmt.Sprintf("- %s: %s", titleCase(col), formatValue(v)))
	}
	return fmt.Sprintf("Here is the result:\n%s", strings.Join(details, "\n"))
}

func smallSetNarrative(rows []map[string]any, columns []string) string {
	var nameCol string
	for _, col := range columns {
		lower := strings.ToLower(col)
		if strings.Contains(lower, "name") || strings.Contains(lower, "id") || strings.Contains(lower, "route") {
			nameCol = col
			break
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I found %d results:\n\n", len(rows))
	for i, row := range rows {
		if nameCol != "" {
			var others []string
			for _, col := range columns {
				if col == nameCol {
					continue
				}
				others = append(others, fmt.Sprintf("%s: %v", strings.ReplaceAll(col, "_", " "), row[col]))
			}
			fmt.Fprintf(&b, "%d. %v (%s)\n", i+1, row[nameCol], strings.Join(others, ", "))
		} else {
			var vals []string
			for _, col := range columns {
				vals = append(vals, fmt.Sprintf("%s: %v", col, row[col]))
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, strings.Join(vals, ", "))
		}
	}
	return b.String()
}

// entityLabel picks a display name for a ranked row, preferring the
// transporter column, then any string-valued column.
func entityLabel(row map[string]any, columns []string) string {
	if s, ok := row["trip_transporter_name"].(string); ok && s != "" {
		return s
	}
	for _, col := range columns {
		if s, ok := row[col].(string); ok && s != "" {
			return s
		}
	}
	return "Unknown"
}

func titleCase(col string) string {
	words := strings.Split(strings.ReplaceAll(col, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func hasColumn(columns []string, name string) bool {
	for _, col := range columns {
		if col == name {
			return true
		}
	}
	return false
}

func anyColumnContains(columns []string, sub string) bool {
	for _, col := range columns {
		if strings.Contains(strings.ToLower(col), sub) {
			return true
		}
	}
	return false
}

func sortedColumns(row map[string]any) []string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func formatValue(v any) string {
	if n, ok := asNumber(v); ok {
		return formatNumber(n)
	}
	return fmt.Sprintf("%v", v)
}

// formatNumber renders integral values with thousands separators and keeps
// fractional values as-is.
func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return groupThousands(int64(n))
	}
	return fmt.Sprintf("%g", n)
}

func groupThousands(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := fmt.Sprintf("%d", n)
	var parts []string
	for len(digits) > 3 {
		parts = append([]string{digits[len(digits)-3:]}, parts...)
		digits = digits[:len(digits)-3]
	}
	parts = append([]string{digits}, parts...)
	return sign + strings.Join(parts, ",")
}

func numberOr(v any, fallback float64) float64 {
	if n, ok := asNumber(v); ok {
		return n
	}
	return fallback
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
