package sqlgen

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Avinash-blip/Final-AI-CoPilot/internal/catalog"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/llm"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/observability"
)

// SQLQuery is the result of question-to-SQL conversion.
type SQLQuery struct {
	SQL         string  `json:"sql"`
	Explanation string  `json:"explanation"`
	Confidence  float64 `json:"confidence"`
}

// HistoryItem is a single prior conversation turn.
type HistoryItem struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Completer abstracts the completion service so generation can be tested
// without network access.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts llm.Options) (string, error)
}

// SchemaProvider supplies a live table-to-columns snapshot for the prompt.
type SchemaProvider interface {
	Schema(ctx context.Context) (map[string][]string, error)
}

// Generator converts natural-language questions to SQL. The completion
// service is the primary path; every failure there downgrades once to the
// deterministic template library and is never surfaced to the caller.
type Generator struct {
	logger    *observability.Logger
	completer Completer
	schema    SchemaProvider
	catalog   *catalog.Catalog
	knowledge *catalog.Knowledge
	table     string
}

// NewGenerator assembles a generator from its collaborators. completer and
// schema may be nil, in which case only the fallback path is available.
func NewGenerator(logger *observability.Logger, completer Completer, schema SchemaProvider, cat *catalog.Catalog, knowledge *catalog.Knowledge, table string) *Generator {
	if table == "" {
		table = "trips_full"
	}
	return &Generator{
		logger:    logger,
		completer: completer,
		schema:    schema,
		catalog:   cat,
		knowledge: knowledge,
		table:     table,
	}
}

var fencePatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```"),
	regexp.MustCompile("(?s)```\\s*(.*?)\\s*```"),
}

// ConvertToSQL turns a question into a guarded SQLQuery. The only error it
// returns is ErrNoFallback, when the completion path failed and no template
// matched either.
func (g *Generator) ConvertToSQL(ctx context.Context, question string, history []HistoryItem) (SQLQuery, error) {
	query, err := g.convertViaCompletion(ctx, question, history)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Completion path failed, using fallback templates")
		query, rule, fbErr := GenerateFallback(question)
		if fbErr != nil {
			return SQLQuery{}, fbErr
		}
		g.logger.Info().Str("rule", rule).Float64("confidence", query.Confidence).Msg("Fallback SQL generated")
		query.SQL = ApplyGuards(query.SQL)
		return query, nil
	}

	query.SQL = ApplyGuards(query.SQL)
	return query, nil
}

func (g *Generator) convertViaCompletion(ctx context.Context, question string, history []HistoryItem) (SQLQuery, error) {
	if g.completer == nil {
		return SQLQuery{}, fmt.Errorf("no completion service configured")
	}

	systemPrompt := g.buildSystemPrompt(ctx, question)
	userPrompt := fmt.Sprintf("CONVERSATION CONTEXT:\n%s\n\nLATEST USER QUESTION:\n%s\n\nConvert the latest question to SQL following the rules above.",
		historyContext(history), question)

	response, err := g.completer.Complete(ctx, systemPrompt, userPrompt, llm.Options{Temperature: 0, MaxTokens: 1024})
	if err != nil {
		return SQLQuery{}, err
	}
	if strings.TrimSpace(response) == "" {
		return SQLQuery{}, fmt.Errorf("empty completion response")
	}

	jsonStr := strings.TrimSpace(response)
	for _, pattern := range fencePatterns {
		if m := pattern.FindStringSubmatch(jsonStr); m != nil {
			jsonStr = strings.TrimSpace(m[1])
			break
		}
	}

	var parsed SQLQuery
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return SQLQuery{}, fmt.Errorf("parse completion response: %w", err)
	}
	if parsed.SQL == "" || parsed.Explanation == "" {
		return SQLQuery{}, fmt.Errorf("completion response missing required fields")
	}

	if parsed.Confidence == 0 {
		parsed.Confidence = 0.5
	}
	parsed.Confidence = clamp(parsed.Confidence, 0, 1)

	g.logger.Debug().
		Float64("confidence", parsed.Confidence).
		Str("sql", parsed.SQL).
		Msg("SQL generated via completion service")

	return parsed, nil
}

func (g *Generator) buildSystemPrompt(ctx context.Context, question string) string {
	schemaJSON := "{}"
	if g.schema != nil {
		if schema, err := g.schema.Schema(ctx); err == nil {
			snapshot := map[string]any{
				"table":   g.table,
				"columns": schema[g.table],
			}
			if encoded, err := json.MarshalIndent(snapshot, "", "  "); err == nil {
				schemaJSON = string(encoded)
			}
		} else {
			g.logger.Warn().Err(err).Msg("Schema snapshot unavailable for prompt")
		}
	}

	knowledgePrompt := ""
	if g.knowledge != nil {
		knowledgePrompt = g.knowledge.Prompt()
	}
	contextSnippet := ""
	if g.catalog != nil {
		contextSnippet = g.catalog.Snippet(question, 18) + "\n\n" + g.catalog.BusinessRules()
	}

	return fmt.Sprintf(`You are an expert SQL query generator for a logistics database.

The ONLY table you should query is %q.
Do NOT use "trips", "logistics_data", or any other table name.

LIVE DATABASE SCHEMA (from SQLite, %s only):
%s

ANALYTICS KNOWLEDGE BASE (schema + metrics + business rules):
%s

COLUMN CONTEXT (Relevant to this specific question):
%s

IMPORTANT RULES:
1. Generate ONLY valid SELECT queries using SQLite syntax.
2. Use ONLY columns defined in the SCHEMA section above.
3. The table name is %q.
4. Use the METRIC DEFINITIONS for calculations (e.g., On-Time %%, Late PODs).
5. Use SQLite date functions (e.g., date('now', '-7 days')).
6. Always LIMIT results to 100 rows unless specified otherwise.
7. Return JSON with:
   {
     "sql": "the SQL query",
     "explanation": "plain English explanation of logic",
     "confidence": 0.0-1.0
   }
`, g.table, g.table, schemaJSON, knowledgePrompt, contextSnippet, g.table)
}

// historyContext renders the last six turns for the user prompt.
func historyContext(history []HistoryItem) string {
	if len(history) == 0 {
		return "No prior conversation."
	}
	if len(history) > 6 {
		history = history[len(history)-6:]
	}

	lines := make([]string, 0, len(history))
	for _, turn := range history {
		role := "Assistant"
		if turn.Role == "user" {
			role = "User"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, turn.Content))
	}
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
