package questionbank

import (
	"strings"
)

// Scoring constants. The boost, bonus, and threshold values are empirically
// chosen; they have not been calibrated against a labeled corpus.
const (
	// DefaultThreshold is the minimum combined score for a match.
	DefaultThreshold = 0.55
	// intentBoostWeight scales the intent-tag overlap boost.
	intentBoostWeight = 0.4
	// comboBonus rewards a matching (entity, metric) pair in both questions.
	comboBonus = 0.25
)

// MatchResult pairs a matched fixture with its confidence score.
type MatchResult struct {
	Fixture Fixture
	Score   float64
}

var stopWords = map[string]struct{}{
	"what": {}, "is": {}, "the": {}, "a": {}, "an": {}, "of": {}, "for": {},
	"in": {}, "on": {}, "to": {}, "by": {}, "how": {}, "many": {}, "much": {},
	"are": {}, "was": {}, "were": {}, "do": {}, "does": {}, "did": {},
	"show": {}, "me": {}, "list": {}, "give": {}, "can": {}, "you": {},
	"please": {}, "get": {}, "tell": {},
}

var synonyms = map[string]string{
	"sender":    "consignor",
	"senders":   "consignors",
	"customer":  "consignor",
	"customers": "consignors",
	"carrier":   "transporter",
	"carriers":  "transporters",
	"lane":      "route",
	"lanes":     "routes",
	"%":         "percentage",
	"pct":       "percentage",
	"percent":   "percentage",
	"delay":     "delayed",
	"delays":    "delayed",
	"late":      "delayed",
	"breach":    "breached",
	"breaches":  "breached",
	"sta":       "breached",
	"sla":       "breached",
	"stoppage":  "stoppages",
	"stop":      "stoppages",
	"deviation": "deviations",
	"deviate":   "deviations",
	"top":       "highest",
	"most":      "highest",
	"maximum":   "highest",
	"max":       "highest",
	"bottom":    "lowest",
	"least":     "lowest",
	"minimum":   "lowest",
	"min":       "lowest",
	"count":     "total",
	"number":    "total",
	"volume":    "total",
	"dataset":   "trips",
	"data":      "trips",
}

// phrasePattern maps literal substrings of very short queries to the intent
// keywords a matching fixture question must mention.
type phrasePattern struct {
	patterns []string
	keywords []string
}

var phrasePatterns = []phrasePattern{
	{patterns: []string{"% delay", "delay %", "percent delay", "delayed percentage"}, keywords: []string{"percentage", "delayed"}},
	{patterns: []string{"% by transporter", "transporter delay", "delay transporter"}, keywords: []string{"percentage", "delayed", "transporter"}},
	{patterns: []string{"% by route", "route delay", "delay route"}, keywords: []string{"percentage", "delayed", "route"}},
	{patterns: []string{"top route", "busiest route", "most trips route"}, keywords: []string{"top", "route", "trips"}},
	{patterns: []string{"top transporter", "busiest transporter"}, keywords: []string{"top", "transporter", "trips"}},
	{patterns: []string{"sta breach", "breach sta", "breached"}, keywords: []string{"breached", "sta"}},
	{patterns: []string{"long stoppage", "stoppages"}, keywords: []string{"long", "stoppage"}},
	{patterns: []string{"route deviation", "deviations"}, keywords: []string{"route", "deviation"}},
	{patterns: []string{"total trips", "trip count", "how many trips"}, keywords: []string{"total", "trips"}},
}

// entityMetricCombo pairs entity and metric keyword groups whose joint
// presence in both questions earns the combo bonus.
type entityMetricCombo struct {
	entity []string
	metric []string
}

var combos = []entityMetricCombo{
	{entity: []string{"transporter", "carrier"}, metric: []string{"delay", "percent", "%"}},
	{entity: []string{"route", "lane"}, metric: []string{"delay", "percent", "%"}},
	{entity: []string{"consignor", "sender"}, metric: []string{"delay", "percent", "%"}},
	{entity: []string{"route", "lane"}, metric: []string{"stoppage", "stop"}},
	{entity: []string{"transporter", "carrier"}, metric: []string{"stoppage", "stop"}},
}

// Match scores the question against every fixture using the default
// threshold. Returns nil when nothing clears it.
func (b *Bank) Match(question string) *MatchResult {
	return b.MatchWithThreshold(question, DefaultThreshold)
}

// MatchWithThreshold scores the question against every fixture. An exact
// normalized match short-circuits with score 1.0. Otherwise the combined
// score is token overlap plus intent boost plus combo bonus, capped at 1.0.
// Ties keep the first fixture encountered.
func (b *Bank) MatchWithThreshold(question string, threshold float64) *MatchResult {
	fixtures := b.Fixtures()
	if len(fixtures) == 0 {
		return nil
	}

	normalizedUser := normalizeQuestion(question)

	for _, fixture := range fixtures {
		if normalizedUser != "" && normalizedUser == normalizeQuestion(fixture.Question) {
			return &MatchResult{Fixture: fixture, Score: 1.0}
		}
	}

	userTokens := tokenize(question)

	// Very short queries carry too little signal for token overlap.
	if len(userTokens) <= 2 {
		return fuzzyPhraseMatch(normalizedUser, fixtures, threshold)
	}

	userIntent := extractIntentTags(question)

	var best *MatchResult
	for _, fixture := range fixtures {
		fixtureTokens := tokenize(fixture.Question)
		score := overlapScore(userTokens, fixtureTokens)

		if len(userIntent) > 0 {
			fixtureIntent := extractIntentTags(fixture.Question)
			overlap := 0
			for _, tag := range userIntent {
				if containsString(fixtureIntent, tag) {
					overlap++
				}
			}
			boost := float64(overlap) / float64(len(userIntent)) * intentBoostWeight
			score = capScore(score + boost)
		}

		score = capScore(score + entityMetricBonus(normalizedUser, strings.ToLower(fixture.Question)))

		if best == nil || score > best.Score {
			best = &MatchResult{Fixture: fixture, Score: score}
		}
	}

	if best == nil || best.Score < threshold {
		return nil
	}
	return best
}

// fuzzyPhraseMatch handles short queries like "% delay" or "top routes" by
// mapping literal phrases to intent keyword sets and scoring fixtures on
// keyword coverage.
func fuzzyPhraseMatch(userPhrase string, fixtures []Fixture, threshold float64) *MatchResult {
	lower := strings.ToLower(userPhrase)

	var matched []string
	for _, pp := range phrasePatterns {
		for _, p := range pp.patterns {
			if strings.Contains(lower, p) {
				matched = pp.keywords
				break
			}
		}
		if matched != nil {
			break
		}
	}

	if len(matched) == 0 {
		matched = extractIntentTags(userPhrase)
	}
	if len(matched) == 0 {
		return nil
	}

	var best *MatchResult
	for _, fixture := range fixtures {
		fixtureLower := strings.ToLower(fixture.Question)
		hits := 0
		for _, kw := range matched {
			if strings.Contains(fixtureLower, kw) {
				hits++
			}
		}
		score := float64(hits) / float64(len(matched))
		if best == nil || score > best.Score {
			best = &MatchResult{Fixture: fixture, Score: score}
		}
	}

	if best == nil || best.Score < threshold {
		return nil
	}
	return best
}

// normalizeQuestion lowercases, strips terminal punctuation, and collapses
// whitespace.
func normalizeQuestion(text string) string {
	lower := strings.ToLower(text)
	var b strings.Builder
	for _, r := range lower {
		switch r {
		case '?', '.', '!':
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// tokenize splits on non-alphanumeric runes, folds synonyms, and drops stop
// words and tokens of length <= 2.
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})

	var tokens []string
	for _, tok := range raw {
		if mapped, ok := synonyms[tok]; ok {
			tok = mapped
		}
		if len(tok) <= 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// overlapScore is asymmetric: it penalizes fixtures that miss user terms but
// not fixtures that mention extra terms.
func overlapScore(userTokens, fixtureTokens []string) float64 {
	if len(userTokens) == 0 || len(fixtureTokens) == 0 {
		return 0
	}

	userSet := map[string]struct{}{}
	for _, t := range userTokens {
		userSet[t] = struct{}{}
	}
	fixtureSet := map[string]struct{}{}
	for _, t := range fixtureTokens {
		fixtureSet[t] = struct{}{}
	}

	intersection := 0
	for t := range fixtureSet {
		if _, ok := userSet[t]; ok {
			intersection++
		}
	}
	return float64(intersection) / float64(len(userSet))
}

// extractIntentTags derives coarse intent categories from keyword presence.
func extractIntentTags(text string) []string {
	lower := strings.ToLower(text)
	var tags []string

	// Delay / performance intent
	if containsAny(lower, "delay", "late", "breach") {
		tags = append(tags, "delayed")
	}
	if containsAny(lower, "%", "percent", "pct") {
		tags = append(tags, "percentage")
	}

	// Entity intent
	if containsAny(lower, "transport", "carrier") {
		tags = append(tags, "transporter")
	}
	if containsAny(lower, "route", "lane") {
		tags = append(tags, "route")
	}
	if containsAny(lower, "consign", "sender", "customer") {
		tags = append(tags, "consignor")
	}
	if strings.Contains(lower, "vehicle") {
		tags = append(tags, "vehicle")
	}

	// Aggregation intent
	if containsAny(lower, "top", "most", "highest", "max") {
		tags = append(tags, "highest")
	}
	if containsAny(lower, "count", "total", "number", "how many") {
		tags = append(tags, "total")
	}

	// Alert types
	if containsAny(lower, "stoppage", "stop") {
		tags = append(tags, "stoppages")
	}
	if containsAny(lower, "deviation", "deviate") {
		tags = append(tags, "deviations")
	}

	return tags
}

// entityMetricBonus returns the combo bonus when both questions mention a
// matching entity group and metric group.
func entityMetricBonus(userQ, fixtureQ string) float64 {
	for _, combo := range combos {
		userEntity := containsAnyOf(userQ, combo.entity)
		userMetric := containsAnyOf(userQ, combo.metric)
		fixtureEntity := containsAnyOf(fixtureQ, combo.entity)
		fixtureMetric := containsAnyOf(fixtureQ, combo.metric)

		if userEntity && userMetric && fixtureEntity && fixtureMetric {
			return comboBonus
		}
	}
	return 0
}

func capScore(score float64) float64 {
	if score > 1 {
		return 1
	}
	return score
}

func containsAny(haystack string, needles ...string) bool {
	return containsAnyOf(haystack, needles)
}

func containsAnyOf(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
