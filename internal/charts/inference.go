// Package charts recommends visualizations for query results using a
// deterministic rule table over column shapes and question intent.
package charts

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ColumnType classifies a result column for chart selection.
type ColumnType string

const (
	TypeString  ColumnType = "string"
	TypeNumber  ColumnType = "number"
	TypeDate    ColumnType = "date"
	TypeBoolean ColumnType = "boolean"
)

// ColumnMeta is a result column with its inferred type.
type ColumnMeta struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Recommendation is one chart suggestion. Every recommendation carries a
// reason naming the structural trigger that produced it.
type Recommendation struct {
	ChartType string   `json:"chart_type"`
	X         string   `json:"x,omitempty"`
	Y         string   `json:"y,omitempty"`
	YColumns  []string `json:"y_columns,omitempty"`
	GroupBy   string   `json:"group_by,omitempty"`
	Reason    string   `json:"reason"`
}

// Result is the full set of recommendations, best first.
type Result struct {
	RecommendedCharts []Recommendation `json:"recommended_charts"`
}

var isoDatePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// InferColumnTypes classifies the columns of a result set. Name-based date
// detection runs first, then the first non-null value of up to ten sampled
// rows decides the type. Columns are returned in sorted-name order so the
// outcome does not depend on map iteration.
func InferColumnTypes(rows []map[string]any) []ColumnMeta {
	if len(rows) == 0 {
		return nil
	}

	names := make([]string, 0, len(rows[0]))
	for name := range rows[0] {
		names = append(names, name)
	}
	sort.Strings(names)

	metas := make([]ColumnMeta, 0, len(names))
	for _, name := range names {
		metas = append(metas, ColumnMeta{Name: name, Type: inferType(name, rows)})
	}
	return metas
}

func inferType(name string, rows []map[string]any) ColumnType {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "date") || strings.Contains(lower, "_at") || strings.Contains(lower, "time") {
		return TypeDate
	}

	sample := rows
	if len(sample) > 10 {
		sample = sample[:10]
	}
	for _, row := range sample {
		v, ok := row[name]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case float64, int64, int, float32:
			return TypeNumber
		case bool:
			return TypeBoolean
		case string:
			if isoDatePrefix.MatchString(val) {
				return TypeDate
			}
			return TypeString
		default:
			return TypeString
		}
	}
	return TypeString
}

func countDistinct(rows []map[string]any, column string) int {
	seen := make(map[any]struct{}, len(rows))
	for _, row := range rows {
		seen[row[column]] = struct{}{}
	}
	return len(seen)
}

// detectIntent extracts chart-intent tags from question keywords.
func detectIntent(question string) []string {
	lower := strings.ToLower(question)
	var intents []string

	if containsAny(lower, "trend", "over time", "across days", "daily", "weekly") {
		intents = append(intents, "time_series")
	}
	if containsAny(lower, "share", "distribution", "split", "percentage of", "breakdown") {
		intents = append(intents, "distribution")
	}
	if containsAny(lower, "ranking", "top", "compare", "highest", "most") {
		intents = append(intents, "ranking")
	}
	if containsAny(lower, "correlation", "relationship", "vs") {
		intents = append(intents, "correlation")
	}
	if containsAny(lower, "heatmap", "matrix", "grid") {
		intents = append(intents, "heatmap")
	}
	return intents
}

// Infer recommends charts for a result set. Purely rule-based: the same
// question and rows always produce the same recommendations.
func Infer(question string, rows []map[string]any) Result {
	if len(rows) == 0 {
		return Result{RecommendedCharts: []Recommendation{{
			ChartType: "table_only",
			Reason:    "No data available to visualize.",
		}}}
	}

	columns := InferColumnTypes(rows)
	intents := detectIntent(question)

	var categoricalCols, numericCols, dateCols []ColumnMeta
	for _, c := range columns {
		switch c.Type {
		case TypeString:
			categoricalCols = append(categoricalCols, c)
		case TypeNumber:
			numericCols = append(numericCols, c)
		case TypeDate:
			dateCols = append(dateCols, c)
		}
	}

	var recs []Recommendation

	// Single row, single numeric value.
	if len(rows) == 1 && len(numericCols) == 1 && len(categoricalCols) == 0 {
		return Result{RecommendedCharts: []Recommendation{{
			ChartType: "metric_card",
			Y:         numericCols[0].Name,
			Reason:    "Single numeric value - best displayed as a metric card.",
		}}}
	}

	// Single row, several metrics.
	if len(rows) == 1 && len(numericCols) > 1 {
		return Result{RecommendedCharts: []Recommendation{{
			ChartType: "multi_metric_card",
			YColumns:  columnNames(numericCols),
			Reason:    "Single row with multiple metrics - displayed as metric cards.",
		}}}
	}

	// Time dimension with numeric metric.
	if len(dateCols) >= 1 && len(numericCols) >= 1 {
		if hasIntent(intents, "time_series") || len(intents) == 0 {
			if len(numericCols) == 1 {
				recs = append(recs, Recommendation{
					ChartType: "line",
					X:         dateCols[0].Name,
					Y:         numericCols[0].Name,
					Reason:    "Time dimension with numeric metric - line chart shows trend.",
				})
			} else {
				recs = append(recs, Recommendation{
					ChartType: "line",
					X:         dateCols[0].Name,
					YColumns:  columnNames(numericCols),
					Reason:    "Time dimension with multiple metrics - multi-line chart.",
				})
			}
		}
	}

	// One categorical dimension, at least one metric, no dates.
	if len(categoricalCols) == 1 && len(numericCols) >= 1 && len(dateCols) == 0 {
		cardinality := countDistinct(rows, categoricalCols[0].Name)

		var pctCol *ColumnMeta
		for i, c := range numericCols {
			lower := strings.ToLower(c.Name)
			if strings.Contains(lower, "percent") || strings.Contains(lower, "pct") || strings.Contains(lower, "percentage") {
				pctCol = &numericCols[i]
				break
			}
		}

		if pctCol != nil && cardinality <= 8 && hasIntent(intents, "distribution") {
			recs = append(recs, Recommendation{
				ChartType: "donut",
				X:         categoricalCols[0].Name,
				Y:         pctCol.Name,
				Reason:    "Percentage data with few categories - donut chart shows distribution.",
			})
		}

		if cardinality > 8 {
			recs = append(recs, Recommendation{
				ChartType: "horizontal_bar",
				X:         categoricalCols[0].Name,
				Y:         numericCols[0].Name,
				Reason:    fmt.Sprintf("%d categories - horizontal bar is more readable.", cardinality),
			})
		} else {
			recs = append(recs, Recommendation{
				ChartType: "bar",
				X:         categoricalCols[0].Name,
				Y:         numericCols[0].Name,
				Reason:    "Categorical dimension with numeric metric - bar chart for comparison.",
			})
		}
	}

	// One categorical dimension, several metrics.
	if len(categoricalCols) == 1 && len(numericCols) > 1 && len(dateCols) == 0 {
		recs = append(recs, Recommendation{
			ChartType: "stacked_bar",
			X:         categoricalCols[0].Name,
			YColumns:  columnNames(numericCols),
			Reason:    "Multiple metrics per category - stacked bar shows composition.",
		})
	}

	// Two categorical dimensions with one metric.
	if len(categoricalCols) == 2 && len(numericCols) == 1 {
		card1 := countDistinct(rows, categoricalCols[0].Name)
		card2 := countDistinct(rows, categoricalCols[1].Name)

		if card1*card2 <= 50 && hasIntent(intents, "heatmap") {
			recs = append(recs, Recommendation{
				ChartType: "heatmap",
				X:         categoricalCols[0].Name,
				Y:         categoricalCols[1].Name,
				GroupBy:   numericCols[0].Name,
				Reason:    "Two categorical dimensions - heatmap shows matrix comparison.",
			})
		} else {
			recs = append(recs, Recommendation{
				ChartType: "horizontal_bar",
				X:         categoricalCols[0].Name,
				Y:         numericCols[0].Name,
				GroupBy:   categoricalCols[1].Name,
				Reason:    "Two categorical dimensions - grouped bar chart.",
			})
		}
	}

	// Two metrics with nothing else.
	if len(numericCols) == 2 && len(categoricalCols) == 0 && len(dateCols) == 0 {
		if hasIntent(intents, "correlation") {
			recs = append(recs, Recommendation{
				ChartType: "scatter",
				X:         numericCols[0].Name,
				Y:         numericCols[1].Name,
				Reason:    "Two numeric dimensions - scatter plot shows relationship.",
			})
		}
	}

	if len(recs) == 0 {
		recs = append(recs, Recommendation{
			ChartType: "table_only",
			Reason:    "Data structure doesn't fit standard chart patterns - showing as table.",
		})
	}

	return Result{RecommendedCharts: recs}
}

func columnNames(cols []ColumnMeta) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func hasIntent(intents []string, want string) bool {
	for _, intent := range intents {
		if intent == want {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
