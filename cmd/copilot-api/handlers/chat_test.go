package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Avinash-blip/Final-AI-CoPilot/internal/answer"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/database"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/observability"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/questionbank"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/sqlgen"
)

type fakeExecutor struct {
	rows []map[string]any
	err  error
}

func (f *fakeExecutor) Execute(ctx context.Context, query string) ([]map[string]any, error) {
	return f.rows, f.err
}

func newTestHandler(executor answer.QueryExecutor) *ChatHandler {
	logger := observability.Nop()
	bank := questionbank.NewStaticBank(logger, []questionbank.Fixture{{
		ID:       "1",
		Question: "How many trips are in the dataset?",
		SQL:      "SELECT COUNT(*) as total_trips FROM trips_full",
		Template: "The dataset contains {total_trips} trips.",
	}})
	generator := sqlgen.NewGenerator(logger, nil, nil, nil, nil, "trips_full")
	service := answer.NewService(logger, bank, generator, executor, nil, nil, nil, 0, 0)
	return NewChatHandler(logger, service)
}

func postChat(t *testing.T, handler *ChatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Chat(rec, req)
	return rec
}

func TestChatHandler_AnswersFixtureQuestion(t *testing.T) {
	executor := &fakeExecutor{rows: []map[string]any{{"total_trips": int64(4521)}}}
	handler := newTestHandler(executor)

	rec := postChat(t, handler, `{"message": "How many trips are in the dataset?"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp answer.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "The dataset contains 4,521 trips.", resp.Summary)
}

func TestChatHandler_InvalidBody(t *testing.T) {
	handler := newTestHandler(&fakeExecutor{})

	rec := postChat(t, handler, `{not json`)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "Invalid request body", errResp.Error)
}

func TestChatHandler_EmptyMessage(t *testing.T) {
	handler := newTestHandler(&fakeExecutor{})

	rec := postChat(t, handler, `{"message": "   "}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "Message cannot be empty", errResp.Error)
}

func TestChatHandler_UnanswerableQuestion(t *testing.T) {
	handler := newTestHandler(&fakeExecutor{})

	rec := postChat(t, handler, `{"message": "please write me a long poem"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var errResp ErrorDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "Failed to understand the question", errResp.Error)
}

func TestChatHandler_QueryErrorCarriesKind(t *testing.T) {
	executor := &fakeExecutor{err: database.NewExecutionError("query failed", assert.AnError)}
	handler := newTestHandler(executor)

	rec := postChat(t, handler, `{"message": "How many trips are in the dataset?"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var errResp ErrorDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "Query execution failed", errResp.Error)
	assert.Equal(t, "EXECUTION_FAILED", errResp.Kind)
}
