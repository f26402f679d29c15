// Package questionbank matches user questions against curated fixtures so
// that known questions bypass SQL generation entirely.
package questionbank

import (
	"encoding/csv"
	"os"
	"sync"

	"github.com/Avinash-blip/Final-AI-CoPilot/internal/observability"
)

// Fixture is a curated, human-vetted (question, SQL, narrative template)
// triple. Fixture SQL is pre-approved by a curator and trusted at match time.
type Fixture struct {
	ID       string
	Question string
	SQL      string
	Template string
}

// Bank is the process-wide fixture bank. Loaded at most once; read-only
// afterwards. Concurrent first reads are guarded by sync.Once.
type Bank struct {
	logger *observability.Logger
	path   string

	once     sync.Once
	fixtures []Fixture
}

// NewBank creates a bank backed by a CSV source with columns
// Sno, Question, SQL Query, NL Template. The file is read lazily.
func NewBank(logger *observability.Logger, path string) *Bank {
	return &Bank{logger: logger, path: path}
}

// NewStaticBank creates a bank from in-memory fixtures. Used in tests.
func NewStaticBank(logger *observability.Logger, fixtures []Fixture) *Bank {
	b := &Bank{logger: logger}
	b.once.Do(func() {})
	b.fixtures = fixtures
	return b
}

// Fixtures returns all fixtures in declared order. A load failure degrades
// to an empty bank; it is logged, not fatal.
func (b *Bank) Fixtures() []Fixture {
	b.once.Do(b.load)
	return b.fixtures
}

func (b *Bank) load() {
	f, err := os.Open(b.path)
	if err != nil {
		b.logger.Warn().Err(err).Str("path", b.path).Msg("Failed to load question bank, continuing with empty bank")
		return
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		b.logger.Warn().Err(err).Str("path", b.path).Msg("Failed to parse question bank CSV")
		return
	}
	if len(records) == 0 {
		return
	}

	// Header row maps field names to positions.
	header := map[string]int{}
	for i, name := range records[0] {
		header[name] = i
	}

	field := func(row []string, name string) string {
		idx, ok := header[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	for _, row := range records[1:] {
		b.fixtures = append(b.fixtures, Fixture{
			ID:       field(row, "Sno"),
			Question: field(row, "Question"),
			SQL:      field(row, "SQL Query"),
			Template: field(row, "NL Template"),
		})
	}

	b.logger.Info().Int("fixtures", len(b.fixtures)).Msg("Question bank loaded")
}
