// Package answer orchestrates a chat question end to end: curated fixtures,
// clarification, SQL generation, execution, insights, charts, and narrative.
package answer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Avinash-blip/Final-AI-CoPilot/internal/catalog"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/charts"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/insights"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/observability"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/questionbank"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/sqlgen"
)

// TimeRange bounds the dates observed in a result set.
type TimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Metric is one per-entity aggregation line extracted from grouped results.
type Metric struct {
	Entity   string  `json:"entity"`
	Total    float64 `json:"total"`
	Delayed  float64 `json:"delayed"`
	DelayPct float64 `json:"delay_pct"`
}

// Response is the schema every answered question resolves to, whatever path
// produced it.
type Response struct {
	Summary        string                 `json:"summary"`
	TimeRange      TimeRange              `json:"time_range"`
	Grouping       string                 `json:"grouping"`
	Metrics        []Metric               `json:"metrics"`
	RawAnswer      string                 `json:"raw_answer"`
	InsightSummary string                 `json:"insight_summary"`
	RawRows        []map[string]any       `json:"raw_rows"`
	Chart          *charts.Recommendation `json:"chart,omitempty"`
}

// QueryExecutor runs validated SQL and returns column-keyed rows.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) ([]map[string]any, error)
}

// Service wires the full answer pipeline together.
type Service struct {
	logger    *observability.Logger
	bank      *questionbank.Bank
	generator *sqlgen.Generator
	executor  QueryExecutor
	completer sqlgen.Completer
	examples  *ExampleStore
	knowledge *catalog.Knowledge

	matchThreshold      float64
	confidenceThreshold float64
}

// NewService assembles the pipeline. completer may be nil, in which case
// narratives come from the deterministic fallback only.
func NewService(
	logger *observability.Logger,
	bank *questionbank.Bank,
	generator *sqlgen.Generator,
	executor QueryExecutor,
	completer sqlgen.Completer,
	examples *ExampleStore,
	knowledge *catalog.Knowledge,
	matchThreshold, confidenceThreshold float64,
) *Service {
	if matchThreshold <= 0 {
		matchThreshold = questionbank.DefaultThreshold
	}
	if confidenceThreshold <= 0 {
		confidenceThreshold = 0.6
	}
	if examples == nil {
		examples = NewStaticExampleStore(logger, nil)
	}
	return &Service{
		logger:              logger,
		bank:                bank,
		generator:           generator,
		executor:            executor,
		completer:           completer,
		examples:            examples,
		knowledge:           knowledge,
		matchThreshold:      matchThreshold,
		confidenceThreshold: confidenceThreshold,
	}
}

// Answer resolves a question to a Response. Errors cross this boundary only
// for validation failures, execution failures, and exhausted SQL generation;
// clarifications and low-confidence replies are ordinary responses.
func (s *Service) Answer(ctx context.Context, question string, history []sqlgen.HistoryItem) (*Response, error) {
	history = sanitizeHistory(history)

	// Curated fixtures first. Their SQL is trusted and skips generation
	// entirely; an execution failure here falls through to the pipeline.
	if match := s.bank.MatchWithThreshold(question, s.matchThreshold); match != nil {
		s.logger.Info().
			Str("fixture_id", match.Fixture.ID).
			Float64("score", match.Score).
			Msg("Question bank match")

		results, err := s.executor.Execute(ctx, match.Fixture.SQL)
		if err != nil {
			s.logger.Warn().Err(err).Str("fixture_id", match.Fixture.ID).Msg("Curated SQL failed, falling through")
		} else if len(results) > 0 {
			summary := questionbank.RenderTemplate(match.Fixture.Template, results[0])
			ins := insights.Summarize(question, results, "")
			if summary == "" {
				summary = ins.SummaryText
			}
			chart := firstChart(charts.Infer(question, results))
			return formatResults(results, summary, ins, chart), nil
		}
	}

	if c := sqlgen.NeedsClarification(question); c.Needed {
		return &Response{
			Summary:   c.Suggestion,
			Grouping:  "none",
			Metrics:   []Metric{},
			RawAnswer: "Please provide more details to help me understand your question better.",
			RawRows:   []map[string]any{},
		}, nil
	}

	query, err := s.generator.ConvertToSQL(ctx, question, history)
	if err != nil {
		return nil, err
	}

	if query.Confidence < s.confidenceThreshold {
		return &Response{
			Summary:   fmt.Sprintf("I'm not very confident about this query (%.0f%% confidence). Could you rephrase?", query.Confidence*100),
			Grouping:  "uncertain",
			Metrics:   []Metric{},
			RawAnswer: query.Explanation,
			RawRows:   []map[string]any{},
		}, nil
	}

	results, err := s.executor.Execute(ctx, query.SQL)
	if err != nil {
		return nil, err
	}

	ins := insights.Summarize(question, results, query.Explanation)
	narrative := s.generateNarrative(ctx, question, ins)
	chart := firstChart(charts.Infer(question, results))

	s.logger.Info().Int("rows", len(results)).Msg("Question answered")
	return formatResults(results, narrative, ins, chart), nil
}

func sanitizeHistory(history []sqlgen.HistoryItem) []sqlgen.HistoryItem {
	cleaned := make([]sqlgen.HistoryItem, 0, len(history))
	for _, item := range history {
		if item.Content == "" {
			continue
		}
		if item.Role != "user" && item.Role != "assistant" {
			continue
		}
		cleaned = append(cleaned, item)
	}
	if len(cleaned) > 10 {
		cleaned = cleaned[len(cleaned)-10:]
	}
	return cleaned
}

func firstChart(result charts.Result) *charts.Recommendation {
	if len(result.RecommendedCharts) == 0 {
		return nil
	}
	rec := result.RecommendedCharts[0]
	return &rec
}

// formatResults shapes rows into the response schema: per-entity metrics for
// grouped aggregations (top 10, "Unknown" for missing entity names) and a
// time range from the first date-like column.
func formatResults(results []map[string]any, naturalSummary string, ins insights.Insights, chart *charts.Recommendation) *Response {
	if len(results) == 0 {
		return &Response{
			Summary:        naturalSummary,
			Grouping:       "none",
			Metrics:        []Metric{},
			RawAnswer:      naturalSummary,
			InsightSummary: ins.SummaryText,
			RawRows:        []map[string]any{},
			Chart:          chart,
		}
	}

	firstRow := results[0]
	columns := sortedColumns(firstRow)
	entityColumn := pickEntityColumn(firstRow, columns)

	hasDelayMetrics := hasColumn(columns, "delayed_trips") && hasColumn(columns, "total_trips")
	aggregated := hasDelayMetrics || hasColumn(columns, "COUNT(*)")
	if !aggregated {
		for _, col := range columns {
			if strings.Contains(strings.ToLower(col), "total") {
				aggregated = true
				break
			}
		}
	}

	var metrics []Metric
	if aggregated {
		top := results
		if len(top) > 10 {
			top = top[:10]
		}
		for _, row := range top {
			entity := "Unknown"
			if entityColumn != "" {
				if v := strings.TrimSpace(fmt.Sprintf("%v", row[entityColumn])); v != "" && !strings.EqualFold(v, "null") && v != "<nil>" {
					entity = v
				}
			}

			total := numberOr(row["total_trips"], numberOr(row["total"], numberOr(row["COUNT(*)"], 0)))
			delayed := numberOr(row["delayed_trips"], numberOr(row["delayed"], 0))
			var delayPct float64
			if hasDelayMetrics {
				delayPct = numberOr(row["delayed_percentage"], 0)
			} else if total > 0 {
				delayPct = delayed / total * 100
			}

			metrics = append(metrics, Metric{
				Entity:   entity,
				Total:    total,
				Delayed:  delayed,
				DelayPct: round2(delayPct),
			})
		}
	}

	grouping := "none"
	if len(metrics) > 0 && entityColumn != "" {
		grouping = entityColumn
	}

	return &Response{
		Summary:        naturalSummary,
		TimeRange:      extractTimeRange(results, columns),
		Grouping:       grouping,
		Metrics:        metrics,
		RawAnswer:      naturalSummary,
		InsightSummary: ins.SummaryText,
		RawRows:        ins.RawPreview,
		Chart:          chart,
	}
}

// pickEntityColumn chooses the grouping column: a known entity column when
// present, otherwise the first string-valued column.
func pickEntityColumn(row map[string]any, columns []string) string {
	preferred := []string{"trip_transporter_name", "transporter_name", "indent_transporter_name", "route_name", "indent_route", "indent_ROUTE"}
	for _, pref := range preferred {
		for _, col := range columns {
			if strings.EqualFold(col, pref) {
				return col
			}
		}
	}
	for _, col := range columns {
		if _, ok := row[col].(string); ok {
			return col
		}
	}
	return ""
}

func extractTimeRange(results []map[string]any, columns []string) TimeRange {
	var dateCol string
	for _, col := range columns {
		lower := strings.ToLower(col)
		if strings.Contains(lower, "date") || strings.Contains(lower, "_at") {
			dateCol = col
			break
		}
	}
	if dateCol == "" {
		return TimeRange{}
	}

	var dates []string
	for _, row := range results {
		v := row[dateCol]
		if v == nil {
			continue
		}
		if s := fmt.Sprintf("%v", v); len(s) >= 10 {
			dates = append(dates, s)
		}
	}
	if len(dates) == 0 {
		return TimeRange{}
	}
	sort.Strings(dates)

	return TimeRange{
		From: dates[0][:10],
		To:   dates[len(dates)-1][:10],
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
