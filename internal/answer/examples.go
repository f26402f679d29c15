package answer

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/Avinash-blip/Final-AI-CoPilot/internal/observability"
)

// Example is a curated question/answer pair used to steer narrative tone.
type Example struct {
	ID             string   `json:"id"`
	MatchKeywords  []string `json:"match_keywords"`
	ExampleInsight string   `json:"example_insight"`
	ExampleAnswer  string   `json:"example_answer"`
}

// ExampleStore lazily loads curated narrative examples from a JSON file.
// A missing or malformed file degrades to an empty store.
type ExampleStore struct {
	logger *observability.Logger
	path   string

	once     sync.Once
	examples []Example
}

func NewExampleStore(logger *observability.Logger, path string) *ExampleStore {
	return &ExampleStore{logger: logger, path: path}
}

// NewStaticExampleStore builds a store from in-memory examples. Used in tests.
func NewStaticExampleStore(logger *observability.Logger, examples []Example) *ExampleStore {
	s := &ExampleStore{logger: logger, examples: examples}
	s.once.Do(func() {})
	return s
}

func (s *ExampleStore) load() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to load narrative examples")
		return
	}
	var parsed []Example
	if err := json.Unmarshal(raw, &parsed); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to parse narrative examples")
		return
	}
	s.examples = parsed
	s.logger.Info().Int("examples", len(parsed)).Msg("Narrative examples loaded")
}

// Find returns the example whose keywords best match the question, or nil
// when no example reaches a 50% keyword hit ratio.
func (s *ExampleStore) Find(question string) *Example {
	s.once.Do(s.load)
	if len(s.examples) == 0 {
		return nil
	}

	q := strings.ToLower(question)
	var best *Example
	bestScore := 0.0

	for i := range s.examples {
		ex := &s.examples[i]
		if len(ex.MatchKeywords) == 0 {
			continue
		}
		hits := 0
		for _, kw := range ex.MatchKeywords {
			if strings.Contains(q, strings.ToLower(kw)) {
				hits++
			}
		}
		score := float64(hits) / float64(len(ex.MatchKeywords))
		if best == nil || score > bestScore {
			best = ex
			bestScore = score
		}
	}

	if best == nil || bestScore < 0.5 {
		return nil
	}
	return best
}
