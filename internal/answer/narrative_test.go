package answer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Avinash-blip/Final-AI-CoPilot/internal/observability"
)

func TestGenerateNarrative_UsesCompletion(t *testing.T) {
	svc := newTestService(&fakeExecutor{}, cannedCompleter{response: "  Acme leads with 120 trips.  "}, nil)

	got := svc.generateNarrative(context.Background(), "top transporters", insightsFor([]map[string]any{
		{"trip_transporter_name": "Acme Logistics", "total_trips": int64(120)},
	}))

	assert.Equal(t, "Acme leads with 120 trips.", got)
}

func TestGenerateNarrative_CompletionErrorFallsBack(t *testing.T) {
	svc := newTestService(&fakeExecutor{}, cannedCompleter{err: errors.New("upstream down")}, nil)

	got := svc.generateNarrative(context.Background(), "how many trips", insightsFor([]map[string]any{
		{"COUNT(*)": int64(4521)},
	}))

	assert.Contains(t, got, "There are 4,521 matching trips")
}

func TestGenerateNarrative_NilCompleterFallsBack(t *testing.T) {
	svc := newTestService(&fakeExecutor{}, nil, nil)

	got := svc.generateNarrative(context.Background(), "how many trips", insightsFor([]map[string]any{
		{"COUNT(*)": int64(10)},
	}))

	assert.Contains(t, got, "matching trips")
}

func TestFallbackNarrative_EmptyRows(t *testing.T) {
	got := fallbackNarrative("anything", nil)

	assert.Contains(t, got, "couldn't find any trips")
}

func TestFallbackNarrative_AlertBreakdown(t *testing.T) {
	rows := []map[string]any{{
		"stoppage_alerts":  int64(60),
		"deviation_alerts": int64(25),
		"overspeed_alerts": int64(10),
		"unloading_alerts": int64(5),
		"total_trips":      int64(900),
	}}

	got := fallbackNarrative("alert analysis", rows)

	assert.Contains(t, got, "Over 900 trips analyzed, I found 100 total alerts:")
	assert.Contains(t, got, "- Long Stoppage Alerts: 60")
	assert.Contains(t, got, "Long Stoppage alerts are the most frequent (60.0% of all alerts).")
}

func TestFallbackNarrative_Ranking(t *testing.T) {
	rows := []map[string]any{
		{"trip_transporter_name": "Acme Logistics", "total_trips": int64(120), "ontime_pct": float64(92.5)},
		{"trip_transporter_name": "Beta Freight", "total_trips": int64(95), "ontime_pct": float64(88.1)},
	}

	got := fallbackNarrative("transporter performance", rows)

	assert.Contains(t, got, "Here's the transporter performance ranking (top 2 shown):")
	assert.Contains(t, got, "1. Acme Logistics")
	assert.Contains(t, got, "120 trips | On-Time: 92.5%")
	assert.NotContains(t, got, "more transporters analyzed")
}

func TestFallbackNarrative_RankingTruncates(t *testing.T) {
	var rows []map[string]any
	for i := 0; i < 8; i++ {
		rows = append(rows, map[string]any{
			"trip_transporter_name": "T",
			"total_trips":           int64(100 - i),
			"ontime_pct":            float64(90),
		})
	}

	got := fallbackNarrative("ranking", rows)

	assert.Contains(t, got, "...and 3 more transporters analyzed.")
}

func TestFallbackNarrative_GroupedTotals(t *testing.T) {
	rows := []map[string]any{
		{"route_name": "BLR-DEL", "total": int64(300)},
		{"route_name": "BLR-HYD", "total": int64(220)},
		{"route_name": "DEL-PUN", "total": int64(180)},
		{"route_name": "HYD-CHN", "total": int64(90)},
	}

	got := fallbackNarrative("trips by route", rows)

	assert.Contains(t, got, "Here are the top results:")
	assert.Contains(t, got, "1. BLR-DEL: 300 trips")
	assert.Contains(t, got, "...and 1 more results.")
}

func TestFallbackNarrative_SingleRowBulletList(t *testing.T) {
	rows := []map[string]any{{
		"trip_id":      "t-1",
		"vehicle_code": "KA01AB1234",
	}}

	got := fallbackNarrative("details for trip t-1", rows)

	assert.Contains(t, got, "Here is the result:")
	assert.Contains(t, got, "- Trip Id: t-1")
	assert.Contains(t, got, "- Vehicle Code: KA01AB1234")
}

func TestFallbackNarrative_SmallSet(t *testing.T) {
	rows := []map[string]any{
		{"route_name": "BLR-DEL", "distance": int64(2100)},
		{"route_name": "BLR-HYD", "distance": int64(570)},
	}

	got := fallbackNarrative("routes", rows)

	assert.Contains(t, got, "I found 2 results:")
	assert.Contains(t, got, "1. BLR-DEL (distance: 2100)")
}

func TestFallbackNarrative_LargeList(t *testing.T) {
	var rows []map[string]any
	for i := 0; i < 12; i++ {
		rows = append(rows, map[string]any{"vehicle_id": "v-" + string(rune('a'+i))})
	}

	got := fallbackNarrative("list vehicles", rows)

	assert.Contains(t, got, "I found 12 matching records.")
	assert.Contains(t, got, "v-a, v-b, v-c, and more.")
}

func TestExtractTopResults(t *testing.T) {
	rows := []map[string]any{
		{"trip_transporter_name": "Acme Logistics", "total_trips": int64(120)},
		{"trip_transporter_name": "Beta Freight", "total_trips": int64(95)},
	}

	got := extractTopResults(rows, 5)

	assert.Contains(t, got, "1. total trips: 120, trip transporter name: Acme Logistics")
	assert.Contains(t, got, "2. total trips: 95, trip transporter name: Beta Freight")
}

func TestExtractTopResults_SingleValue(t *testing.T) {
	got := extractTopResults([]map[string]any{{"COUNT(*)": int64(4521)}}, 5)

	assert.Equal(t, "Result: 4,521", got)
}

func TestExtractTopResults_TruncationNote(t *testing.T) {
	var rows []map[string]any
	for i := 0; i < 9; i++ {
		rows = append(rows, map[string]any{"n": int64(i), "name": "x"})
	}

	got := extractTopResults(rows, 5)

	assert.Contains(t, got, "(4 more rows...)")
}

func TestExtractTopResults_Empty(t *testing.T) {
	assert.Equal(t, "No data found.", extractTopResults(nil, 5))
}

func TestBuildNarrativePrompt_IncludesExampleStyle(t *testing.T) {
	example := &Example{ExampleAnswer: "Acme handled the most trips this month."}

	prompt := buildNarrativePrompt("top transporters", "1. Acme: 120", example, "")

	assert.Contains(t, prompt, "QUESTION: top transporters")
	assert.Contains(t, prompt, `Example answer style: "Acme handled the most trips this month."...`)
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Trip Transporter Name", titleCase("trip_transporter_name"))
	assert.Equal(t, "Total", titleCase("total"))
}

func TestFormatNumberGrouping(t *testing.T) {
	assert.Equal(t, "4,521", formatNumber(4521))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
	assert.Equal(t, "12.5", formatNumber(12.5))
	assert.Equal(t, "-1,000", formatNumber(-1000))
}

func TestExampleStore_Find(t *testing.T) {
	store := NewStaticExampleStore(observability.Nop(), []Example{
		{ID: "delays", MatchKeywords: []string{"delay", "transporter"}, ExampleAnswer: "a"},
		{ID: "alerts", MatchKeywords: []string{"alert", "summary"}, ExampleAnswer: "b"},
	})

	found := store.Find("which transporter has the worst delay record")
	require.NotNil(t, found)
	assert.Equal(t, "delays", found.ID)

	assert.Nil(t, store.Find("completely unrelated question"))
}

func TestExampleStore_EmptyStore(t *testing.T) {
	store := NewStaticExampleStore(observability.Nop(), nil)

	assert.Nil(t, store.Find("anything"))
}
