package answer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Avinash-blip/Final-AI-CoPilot/internal/database"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/insights"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/llm"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/observability"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/questionbank"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/sqlgen"
)

// fakeExecutor returns canned rows or an error and records executed SQL.
type fakeExecutor struct {
	rows     []map[string]any
	err      error
	executed []string
}

func (f *fakeExecutor) Execute(ctx context.Context, query string) ([]map[string]any, error) {
	f.executed = append(f.executed, query)
	return f.rows, f.err
}

// cannedCompleter returns a fixed completion.
type cannedCompleter struct {
	response string
	err      error
}

func (c cannedCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, opts llm.Options) (string, error) {
	return c.response, c.err
}

func insightsFor(rows []map[string]any) insights.Insights {
	return insights.Summarize("test question", rows, "")
}

func testFixtures() []questionbank.Fixture {
	return []questionbank.Fixture{
		{
			ID:       "1",
			Question: "What is the delayed percentage of trips by transporter?",
			SQL:      "SELECT trip_transporter_name, COUNT(*) AS total_trips FROM trips_full GROUP BY trip_transporter_name",
			Template: "{trip_transporter_name} handled {total_trips} trips.",
		},
	}
}

func newTestService(executor QueryExecutor, completer sqlgen.Completer, fixtures []questionbank.Fixture) *Service {
	logger := observability.Nop()
	bank := questionbank.NewStaticBank(logger, fixtures)
	generator := sqlgen.NewGenerator(logger, completer, nil, nil, nil, "trips_full")
	return NewService(logger, bank, generator, executor, completer, nil, nil, 0, 0)
}

func TestService_Answer_FixtureMatch(t *testing.T) {
	executor := &fakeExecutor{rows: []map[string]any{
		{"trip_transporter_name": "Acme Logistics", "total_trips": int64(120)},
		{"trip_transporter_name": "Beta Freight", "total_trips": int64(95)},
	}}
	svc := newTestService(executor, nil, testFixtures())

	resp, err := svc.Answer(context.Background(), "What is the delayed percentage of trips by transporter?", nil)
	require.NoError(t, err)

	// Curated SQL runs untouched, no generation involved.
	require.Len(t, executor.executed, 1)
	assert.Equal(t, testFixtures()[0].SQL, executor.executed[0])

	assert.Equal(t, "Acme Logistics handled 120 trips.", resp.Summary)
	assert.Equal(t, "trip_transporter_name", resp.Grouping)
	require.Len(t, resp.Metrics, 2)
	assert.Equal(t, Metric{Entity: "Acme Logistics", Total: 120}, resp.Metrics[0])
	assert.NotNil(t, resp.Chart)
}

func TestService_Answer_FixtureExecFailureFallsThrough(t *testing.T) {
	executor := &fakeExecutor{err: errors.New("boom")}
	svc := newTestService(executor, nil, testFixtures())

	// Fixture SQL fails, the pipeline takes over, the fallback template
	// for this question also executes against the failing executor.
	_, err := svc.Answer(context.Background(), "What is the delayed percentage of trips by transporter?", nil)
	require.Error(t, err)
	assert.Len(t, executor.executed, 2)
}

func TestService_Answer_Clarification(t *testing.T) {
	executor := &fakeExecutor{}
	svc := newTestService(executor, nil, nil)

	resp, err := svc.Answer(context.Background(), "show me something", nil)
	require.NoError(t, err)

	assert.Contains(t, resp.Summary, "more specific")
	assert.Equal(t, "none", resp.Grouping)
	assert.Empty(t, executor.executed)
	assert.Equal(t, "Please provide more details to help me understand your question better.", resp.RawAnswer)
}

func TestService_Answer_LowConfidenceAsksToRephrase(t *testing.T) {
	executor := &fakeExecutor{}
	completer := cannedCompleter{response: `{"sql": "SELECT 1 FROM trips_full", "explanation": "a guess", "confidence": 0.3}`}
	svc := newTestService(executor, completer, nil)

	resp, err := svc.Answer(context.Background(), "obscure question with enough words", nil)
	require.NoError(t, err)

	assert.Equal(t, "I'm not very confident about this query (30% confidence). Could you rephrase?", resp.Summary)
	assert.Equal(t, "uncertain", resp.Grouping)
	assert.Equal(t, "a guess", resp.RawAnswer)
	assert.Empty(t, executor.executed)
}

func TestService_Answer_GeneratedPath(t *testing.T) {
	executor := &fakeExecutor{rows: []map[string]any{{"total_trips": int64(4521)}}}
	completer := cannedCompleter{response: `{"sql": "SELECT COUNT(*) as total_trips FROM trips_full", "explanation": "counts all trips", "confidence": 0.9}`}
	svc := newTestService(executor, completer, nil)

	resp, err := svc.Answer(context.Background(), "how many trips ran last month", nil)
	require.NoError(t, err)

	require.Len(t, executor.executed, 1)
	assert.Contains(t, resp.InsightSummary, "ROWS_RETURNED: 1")
	assert.Contains(t, resp.InsightSummary, "SQL intent: counts all trips")
	require.NotNil(t, resp.Chart)
	assert.Equal(t, "metric_card", resp.Chart.ChartType)
	// The narrative is the completion response when one is available.
	assert.Equal(t, resp.Summary, resp.RawAnswer)
}

func TestService_Answer_ExecutionErrorPropagates(t *testing.T) {
	executor := &fakeExecutor{err: database.NewExecutionError("query failed", errors.New("no such table"))}
	completer := cannedCompleter{response: `{"sql": "SELECT 1 FROM missing", "explanation": "x", "confidence": 0.9}`}
	svc := newTestService(executor, completer, nil)

	_, err := svc.Answer(context.Background(), "question about a missing table", nil)
	require.Error(t, err)

	var qerr *database.QueryError
	assert.ErrorAs(t, err, &qerr)
}

func TestService_Answer_NoGenerationPathLeft(t *testing.T) {
	executor := &fakeExecutor{}
	svc := newTestService(executor, nil, nil)

	_, err := svc.Answer(context.Background(), "please write me a long poem", nil)
	assert.ErrorIs(t, err, sqlgen.ErrNoFallback)
}

func TestSanitizeHistory(t *testing.T) {
	history := []sqlgen.HistoryItem{
		{Role: "user", Content: "keep"},
		{Role: "system", Content: "drop role"},
		{Role: "assistant", Content: ""},
		{Role: "assistant", Content: "keep too"},
	}

	cleaned := sanitizeHistory(history)
	require.Len(t, cleaned, 2)
	assert.Equal(t, "keep", cleaned[0].Content)
	assert.Equal(t, "keep too", cleaned[1].Content)
}

func TestSanitizeHistory_CapsAtTen(t *testing.T) {
	var history []sqlgen.HistoryItem
	for i := 0; i < 15; i++ {
		history = append(history, sqlgen.HistoryItem{Role: "user", Content: "turn"})
	}

	assert.Len(t, sanitizeHistory(history), 10)
}

func TestFormatResults_GroupedMetrics(t *testing.T) {
	rows := []map[string]any{
		{"trip_transporter_name": "Acme Logistics", "total_trips": int64(100), "delayed_trips": int64(20), "delayed_percentage": float64(20)},
		{"trip_transporter_name": nil, "total_trips": int64(50), "delayed_trips": int64(5), "delayed_percentage": float64(10)},
	}

	resp := formatResults(rows, "summary", insightsFor(rows), nil)

	require.Len(t, resp.Metrics, 2)
	assert.Equal(t, Metric{Entity: "Acme Logistics", Total: 100, Delayed: 20, DelayPct: 20}, resp.Metrics[0])
	assert.Equal(t, "Unknown", resp.Metrics[1].Entity)
	assert.Equal(t, "trip_transporter_name", resp.Grouping)
}

func TestFormatResults_ComputesDelayPctWhenAbsent(t *testing.T) {
	rows := []map[string]any{
		{"route_name": "BLR-DEL", "total": int64(80), "delayed": int64(20)},
	}

	resp := formatResults(rows, "summary", insightsFor(rows), nil)

	require.Len(t, resp.Metrics, 1)
	assert.Equal(t, 25.0, resp.Metrics[0].DelayPct)
	assert.Equal(t, "route_name", resp.Grouping)
}

func TestFormatResults_MetricsCappedAtTen(t *testing.T) {
	var rows []map[string]any
	for i := 0; i < 14; i++ {
		rows = append(rows, map[string]any{"trip_transporter_name": "T", "total_trips": int64(i)})
	}

	resp := formatResults(rows, "summary", insightsFor(rows), nil)
	assert.Len(t, resp.Metrics, 10)
}

func TestFormatResults_NonAggregatedHasNoMetrics(t *testing.T) {
	rows := []map[string]any{
		{"trip_id": "t-1", "vehicle": "KA01"},
		{"trip_id": "t-2", "vehicle": "KA02"},
	}

	resp := formatResults(rows, "summary", insightsFor(rows), nil)

	assert.Empty(t, resp.Metrics)
	assert.Equal(t, "none", resp.Grouping)
}

func TestExtractTimeRange(t *testing.T) {
	rows := []map[string]any{
		{"trip_closed_at": "2025-06-10 09:00:00", "total_trips": int64(1)},
		{"trip_closed_at": "2025-06-01 12:00:00", "total_trips": int64(2)},
		{"trip_closed_at": nil, "total_trips": int64(3)},
	}

	tr := extractTimeRange(rows, sortedColumns(rows[0]))
	assert.Equal(t, TimeRange{From: "2025-06-01", To: "2025-06-10"}, tr)
}

func TestExtractTimeRange_NoDateColumn(t *testing.T) {
	rows := []map[string]any{{"total_trips": int64(1)}}

	assert.Equal(t, TimeRange{}, extractTimeRange(rows, sortedColumns(rows[0])))
}
