package catalog

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/Avinash-blip/Final-AI-CoPilot/internal/observability"
)

// Knowledge bundles the analytics knowledge base: the schema reference,
// metric formulas, and business rules used to enrich prompts.
type Knowledge struct {
	logger      *observability.Logger
	schemaPath  string
	metricsPath string
	rulesPath   string

	once    sync.Once
	schema  string
	metrics string
	rules   string
}

// NewKnowledge creates a knowledge base backed by the given source files.
func NewKnowledge(logger *observability.Logger, schemaPath, metricsPath, rulesPath string) *Knowledge {
	return &Knowledge{
		logger:      logger,
		schemaPath:  schemaPath,
		metricsPath: metricsPath,
		rulesPath:   rulesPath,
	}
}

func (k *Knowledge) load() {
	k.schema = k.readFile(k.schemaPath)
	k.metrics = k.readFile(k.metricsPath)
	k.rules = k.readFile(k.rulesPath)
}

func (k *Knowledge) readFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		k.logger.Warn().Err(err).Str("path", path).Msg("Failed to load knowledge base file")
		return ""
	}
	return string(data)
}

// Prompt returns the full knowledge excerpt for SQL generation prompts.
func (k *Knowledge) Prompt() string {
	k.once.Do(k.load)

	return fmt.Sprintf(`SEMANTIC KNOWLEDGE BASE:

1. DATABASE SCHEMA (Use these columns ONLY):
%s

2. METRIC DEFINITIONS (Use these formulas):
%s

3. BUSINESS RULES (Logic for delays, exceptions, and risks):
%s`, k.schema, k.metrics, k.rules)
}

// NarrativeContext returns a smaller, question-targeted slice of the metric
// definitions and business rules for narrative prompts. Selection is plain
// keyword bucketing against the question and the insight summary.
func (k *Knowledge) NarrativeContext(question, insightSummary string) (metrics, rules string) {
	k.once.Do(k.load)

	haystack := strings.ToLower(question + "\n" + insightSummary)

	metricLines := strings.Split(k.metrics, "\n")
	ruleLines := strings.Split(k.rules, "\n")

	pick := func(lines []string) []string {
		var out []string
		for _, line := range lines {
			l := strings.ToLower(strings.TrimSpace(line))
			if l == "" {
				continue
			}
			if strings.HasPrefix(l, "#") {
				// Keep headings for structure.
				out = append(out, line)
				continue
			}
			if matchesBucket(haystack, l, "delay", "sla", "sta") ||
				matchesBucket(haystack, l, "epod", "pod") ||
				matchesBucket(haystack, l, "route") ||
				matchesBucket(haystack, l, "transporter", "carrier") {
				out = append(out, line)
			}
		}
		return out
	}

	selectedMetrics := pick(metricLines)
	selectedRules := pick(ruleLines)

	if len(selectedMetrics) == 0 {
		selectedMetrics = head(metricLines, 20)
	}
	if len(selectedRules) == 0 {
		selectedRules = head(ruleLines, 30)
	}

	return strings.Join(selectedMetrics, "\n"), strings.Join(selectedRules, "\n")
}

// matchesBucket reports whether the haystack and the candidate line share any
// keyword from the bucket. "carrier" in the question still selects
// "transporter" lines because buckets are matched as a unit.
func matchesBucket(haystack, line string, bucket ...string) bool {
	inQuestion := false
	for _, kw := range bucket {
		if strings.Contains(haystack, kw) {
			inQuestion = true
			break
		}
	}
	if !inQuestion {
		return false
	}
	for _, kw := range bucket {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}

func head(lines []string, n int) []string {
	if len(lines) < n {
		return lines
	}
	return lines[:n]
}
