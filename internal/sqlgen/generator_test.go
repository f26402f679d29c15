package sqlgen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Avinash-blip/Final-AI-CoPilot/internal/llm"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/observability"
)

// stubCompleter returns a canned response or error and records the prompts.
type stubCompleter struct {
	response string
	err      error

	systemPrompt string
	userPrompt   string
}

func (s *stubCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, opts llm.Options) (string, error) {
	s.systemPrompt = systemPrompt
	s.userPrompt = userPrompt
	return s.response, s.err
}

type stubSchema struct{}

func (stubSchema) Schema(ctx context.Context) (map[string][]string, error) {
	return map[string][]string{
		"trips_full": {"trip_transporter_name", "trip_closed_at", "sta_breached_alert"},
	}, nil
}

func newTestGenerator(completer Completer) *Generator {
	return NewGenerator(observability.Nop(), completer, stubSchema{}, nil, nil, "trips_full")
}

func TestGenerator_ConvertToSQL_ParsesCompletionJSON(t *testing.T) {
	stub := &stubCompleter{response: `{"sql": "SELECT COUNT(*) FROM trips_full", "explanation": "counts trips", "confidence": 0.92}`}
	g := newTestGenerator(stub)

	query, err := g.ConvertToSQL(context.Background(), "how many trips are there", nil)
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(*) FROM trips_full", query.SQL)
	assert.Equal(t, "counts trips", query.Explanation)
	assert.Equal(t, 0.92, query.Confidence)
}

func TestGenerator_ConvertToSQL_StripsMarkdownFences(t *testing.T) {
	stub := &stubCompleter{response: "```json\n{\"sql\": \"SELECT 1 FROM trips_full\", \"explanation\": \"x\", \"confidence\": 0.8}\n```"}
	g := newTestGenerator(stub)

	query, err := g.ConvertToSQL(context.Background(), "arbitrary question about trips", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 FROM trips_full", query.SQL)
}

func TestGenerator_ConvertToSQL_AppliesGuardsToCompletionPath(t *testing.T) {
	stub := &stubCompleter{response: `{"sql": "SELECT trip_transporter_name, COUNT(*) as n FROM trips_full GROUP BY trip_transporter_name", "explanation": "x", "confidence": 0.9}`}
	g := newTestGenerator(stub)

	query, err := g.ConvertToSQL(context.Background(), "trips grouped by transporter name", nil)
	require.NoError(t, err)
	assert.Contains(t, query.SQL, "trip_transporter_name IS NOT NULL AND trip_transporter_name != ''")
	assert.Contains(t, query.SQL, "HAVING COUNT(*) >= 5")
}

func TestGenerator_ConvertToSQL_DefaultConfidence(t *testing.T) {
	stub := &stubCompleter{response: `{"sql": "SELECT 1 FROM trips_full", "explanation": "x"}`}
	g := newTestGenerator(stub)

	query, err := g.ConvertToSQL(context.Background(), "some odd question about trips", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.5, query.Confidence)
}

func TestGenerator_ConvertToSQL_ConfidenceClamped(t *testing.T) {
	stub := &stubCompleter{response: `{"sql": "SELECT 1 FROM trips_full", "explanation": "x", "confidence": 3.2}`}
	g := newTestGenerator(stub)

	query, err := g.ConvertToSQL(context.Background(), "some odd question about trips", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, query.Confidence)
}

func TestGenerator_ConvertToSQL_CompletionErrorFallsBack(t *testing.T) {
	stub := &stubCompleter{err: errors.New("upstream down")}
	g := newTestGenerator(stub)

	query, err := g.ConvertToSQL(context.Background(), "What is the total count of trips?", nil)
	require.NoError(t, err)
	assert.Contains(t, query.SQL, "SELECT COUNT(*)")
	assert.Equal(t, 0.95, query.Confidence)
}

func TestGenerator_ConvertToSQL_BlockedResponseFallsBack(t *testing.T) {
	stub := &stubCompleter{err: llm.ErrBlocked}
	g := newTestGenerator(stub)

	query, err := g.ConvertToSQL(context.Background(), "How many trips were delayed?", nil)
	require.NoError(t, err)
	assert.Contains(t, query.SQL, `"Total Long Stoppage Alerts" > 0`)
}

func TestGenerator_ConvertToSQL_UnparseableResponseFallsBack(t *testing.T) {
	stub := &stubCompleter{response: "sorry, I cannot help with that"}
	g := newTestGenerator(stub)

	query, err := g.ConvertToSQL(context.Background(), "What is the total count of trips?", nil)
	require.NoError(t, err)
	assert.Contains(t, query.SQL, "SELECT COUNT(*)")
}

func TestGenerator_ConvertToSQL_MissingFieldsFallsBack(t *testing.T) {
	stub := &stubCompleter{response: `{"confidence": 0.9}`}
	g := newTestGenerator(stub)

	query, err := g.ConvertToSQL(context.Background(), "What is the total count of trips?", nil)
	require.NoError(t, err)
	assert.Contains(t, query.SQL, "SELECT COUNT(*)")
}

func TestGenerator_ConvertToSQL_NoFallbackError(t *testing.T) {
	stub := &stubCompleter{err: errors.New("upstream down")}
	g := newTestGenerator(stub)

	_, err := g.ConvertToSQL(context.Background(), "tell me a joke about penguins", nil)
	assert.ErrorIs(t, err, ErrNoFallback)
}

func TestGenerator_ConvertToSQL_NilCompleterUsesFallback(t *testing.T) {
	g := newTestGenerator(nil)

	query, err := g.ConvertToSQL(context.Background(), "What is the total count of trips?", nil)
	require.NoError(t, err)
	assert.Contains(t, query.SQL, "SELECT COUNT(*)")
}

func TestGenerator_ConvertToSQL_PromptIncludesSchemaAndHistory(t *testing.T) {
	stub := &stubCompleter{response: `{"sql": "SELECT 1 FROM trips_full", "explanation": "x", "confidence": 0.9}`}
	g := newTestGenerator(stub)

	history := []HistoryItem{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	_, err := g.ConvertToSQL(context.Background(), "follow-up question about trips", history)
	require.NoError(t, err)

	assert.Contains(t, stub.systemPrompt, "trips_full")
	assert.Contains(t, stub.systemPrompt, "trip_transporter_name")
	assert.Contains(t, stub.userPrompt, "User: earlier question")
	assert.Contains(t, stub.userPrompt, "Assistant: earlier answer")
	assert.Contains(t, stub.userPrompt, "follow-up question about trips")
}

func TestHistoryContext_KeepsLastSixTurns(t *testing.T) {
	var history []HistoryItem
	for i := 0; i < 8; i++ {
		history = append(history, HistoryItem{Role: "user", Content: string(rune('a' + i))})
	}

	rendered := historyContext(history)
	assert.NotContains(t, rendered, "User: a")
	assert.NotContains(t, rendered, "User: b")
	assert.Contains(t, rendered, "User: c")
	assert.Contains(t, rendered, "User: h")
}

func TestHistoryContext_Empty(t *testing.T) {
	assert.Equal(t, "No prior conversation.", historyContext(nil))
}
