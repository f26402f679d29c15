package sqlgen

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoFallback is returned when no deterministic template matches the
// question. This is the only generation failure surfaced to the caller.
var ErrNoFallback = errors.New("could not generate SQL for this question")

// fallbackRule pairs a keyword predicate with a template builder. Rules are
// evaluated in declared order; the first match wins.
type fallbackRule struct {
	name    string
	matches func(q string) bool
	build   func(q string) SQLQuery
}

var (
	daysPattern = regexp.MustCompile(`(\d+)\s*days?`)
	topNPattern = regexp.MustCompile(`top\s+(\d+)`)
	cityPattern = regexp.MustCompile(`(?i)from\s+([a-zA-Z]+)`)
)

// fallbackRules is the deterministic template library. Intent-derived rules
// come first so precise shapes (explicit top-N, group-by dimension) win over
// the broader keyword templates.
var fallbackRules = []fallbackRule{
	{
		name: "count-total",
		matches: func(q string) bool {
			return hasAny(q, "how many", "total", "count") &&
				hasAny(q, "trip", "shipment") &&
				!hasAny(q, " by ", " per ", "top", "delay", "late")
		},
		build: func(q string) SQLQuery {
			return SQLQuery{
				SQL:         "SELECT COUNT(*) as total_trips FROM trips_full WHERE trip_closed_at >= date('now', '-30 days')",
				Explanation: "Counting total trips from the last 30 days.",
				Confidence:  0.95,
			}
		},
	},
	{
		name: "top-ranking",
		matches: func(q string) bool {
			return hasAny(q, "top", "busiest", "highest") &&
				!hasAny(q, "delay", "late", "percent", "%")
		},
		build: func(q string) SQLQuery {
			limit := "5"
			if m := topNPattern.FindStringSubmatch(q); m != nil {
				limit = m[1]
			}

			groupCol := "trip_transporter_name"
			switch {
			case hasAny(q, "route", "lane"):
				groupCol = "indent_ROUTE"
			case strings.Contains(q, "vehicle"):
				groupCol = "VEHICLE_LABEL"
			case hasAny(q, "origin", "from"):
				groupCol = "consignor_branch_name"
			}

			return SQLQuery{
				SQL: fmt.Sprintf(`SELECT %q, COUNT(*) as total_trips FROM trips_full WHERE trip_closed_at >= date('now', '-30 days') AND %q IS NOT NULL GROUP BY %q ORDER BY total_trips DESC LIMIT %s`,
					groupCol, groupCol, groupCol, limit),
				Explanation: fmt.Sprintf("Ranking top %s %s by volume (last 30 days).", limit, strings.ReplaceAll(groupCol, "_", " ")),
				Confidence:  0.9,
			}
		},
	},
	{
		name: "group-by-dimension",
		matches: func(q string) bool {
			if !hasAny(q, " per ", " by ") || hasAny(q, "delay", "late", "percent", "%") {
				return false
			}
			return groupDimension(q) != ""
		},
		build: func(q string) SQLQuery {
			groupCol := groupDimension(q)
			return SQLQuery{
				SQL: fmt.Sprintf(`SELECT %q, COUNT(*) as total_trips FROM trips_full WHERE trip_closed_at >= date('now', '-30 days') AND %q IS NOT NULL GROUP BY %q ORDER BY total_trips DESC LIMIT 20`,
					groupCol, groupCol, groupCol),
				Explanation: fmt.Sprintf("Breaking down trip volume by %s (last 30 days).", strings.ReplaceAll(groupCol, "_", " ")),
				Confidence:  0.9,
			}
		},
	},
	{
		name: "origin-city-count",
		matches: func(q string) bool {
			if !hasAny(q, "from", "origin") || hasAny(q, "delay", "late") {
				return false
			}
			return originCity(q) != ""
		},
		build: func(q string) SQLQuery {
			city := originCity(q)
			return SQLQuery{
				SQL: fmt.Sprintf(`SELECT COUNT(*) as total_trips FROM trips_full WHERE "Loading Point Address" LIKE '%%%s%%' AND trip_closed_at >= date('now', '-30 days')`,
					city),
				Explanation: fmt.Sprintf("Counting trips originating from %s (last 30 days).", city),
				Confidence:  0.85,
			}
		},
	},
	{
		name: "alert-summary",
		matches: func(q string) bool {
			return strings.Contains(q, "alert") && hasAny(q, "analysis", "summary")
		},
		build: func(q string) SQLQuery {
			days := extractDays(q, "30")
			return SQLQuery{
				SQL: fmt.Sprintf(`SELECT SUM("Total Long Stoppage Alerts") as stoppage_alerts, SUM("Total Route Deviation Alerts") as deviation_alerts, SUM("Total Overspeed Alerts") as overspeed_alerts, SUM("Total Unloading Delay Alerts") as unloading_alerts, COUNT(*) as total_trips FROM trips_full WHERE trip_closed_at >= date('now', '-%s days')`, days),
				Explanation: fmt.Sprintf("Analyzing all alert types from the last %s days", days),
				Confidence:  0.8,
			}
		},
	},
	{
		name: "delay-count",
		matches: func(q string) bool {
			return hasAny(q, "delay", "late") &&
				!hasAny(q, "percent", "percentage", "%") &&
				!hasAny(q, "transporter", "carrier", "route")
		},
		build: func(q string) SQLQuery {
			days := extractDays(q, "7")
			return SQLQuery{
				SQL:         fmt.Sprintf(`SELECT COUNT(*) FROM trips_full WHERE "Total Long Stoppage Alerts" > 0 AND trip_closed_at >= date('now', '-%s days')`, days),
				Explanation: fmt.Sprintf("Counting delayed trips from the last %s days", days),
				Confidence:  0.85,
			}
		},
	},
	{
		name: "route-delay-ranking",
		matches: func(q string) bool {
			return strings.Contains(q, "route") && hasAny(q, "delay", "performance")
		},
		build: func(q string) SQLQuery {
			return SQLQuery{
				SQL:         `SELECT indent_ROUTE as route_name, COUNT(*) as total_trips, SUM(CASE WHEN sta_breached_alert = 0 AND "Total Long Stoppage Alerts" = 0 THEN 1 ELSE 0 END) as ontime_trips, SUM(CASE WHEN sta_breached_alert = 1 OR "Total Long Stoppage Alerts" > 0 THEN 1 ELSE 0 END) as delayed_trips, ROUND(SUM(CASE WHEN sta_breached_alert = 1 OR "Total Long Stoppage Alerts" > 0 THEN 1 ELSE 0 END) * 100.0 / COUNT(*), 2) as delay_pct FROM trips_full WHERE indent_ROUTE IS NOT NULL GROUP BY indent_ROUTE HAVING COUNT(*) >= 5 ORDER BY delay_pct DESC LIMIT 10`,
				Explanation: "Analyzing route-wise delays (top 10 routes with highest delay %)",
				Confidence:  0.9,
			}
		},
	},
	{
		name: "transporter-delay-percentage",
		matches: func(q string) bool {
			return hasAny(q, "transporter", "carrier") &&
				hasAny(q, "delay", "late") &&
				hasAny(q, "%", "percent", "percentage")
		},
		build: func(q string) SQLQuery {
			return SQLQuery{
				SQL:         `SELECT trip_transporter_name, COUNT(*) AS total_trips, SUM(CASE WHEN sta_breached_alert = 1 THEN 1 ELSE 0 END) AS delayed_trips, ROUND(SUM(CASE WHEN sta_breached_alert = 1 THEN 1 ELSE 0 END) * 100.0 / COUNT(*), 2) AS delayed_percentage FROM trips_full WHERE trip_transporter_name IS NOT NULL AND DATE(trip_created_at) >= DATE('now', '-30 day') GROUP BY trip_transporter_name HAVING COUNT(*) >= 5 ORDER BY delayed_percentage DESC LIMIT 20`,
				Explanation: "Calculating delay percentage by transporter. delayed_percentage = (delayed_trips / total_trips) x 100. Filtered to transporters with at least 5 trips.",
				Confidence:  0.9,
			}
		},
	},
	{
		name: "transporter-ontime-ranking",
		matches: func(q string) bool {
			return hasAny(q, "transporter", "carrier") &&
				hasAny(q, "performance", "ranking", "ontime", "on-time", "on time")
		},
		build: func(q string) SQLQuery {
			return SQLQuery{
				SQL:         `SELECT trip_transporter_name, COUNT(*) AS total_trips, SUM(CASE WHEN sta_breached_alert = 0 AND "Total Long Stoppage Alerts" = 0 THEN 1 ELSE 0 END) AS ontime_trips, ROUND(SUM(CASE WHEN sta_breached_alert = 0 AND "Total Long Stoppage Alerts" = 0 THEN 1 ELSE 0 END) * 100.0 / COUNT(*), 2) AS ontime_pct FROM trips_full WHERE trip_transporter_name IS NOT NULL GROUP BY trip_transporter_name HAVING COUNT(*) >= 10 ORDER BY ontime_pct DESC LIMIT 10`,
				Explanation: "Ranking transporters by on-time performance with minimum 10 trips and null names removed",
				Confidence:  0.9,
			}
		},
	},
	{
		name: "transporter-count",
		matches: func(q string) bool {
			return hasAny(q, "transporter", "carrier")
		},
		build: func(q string) SQLQuery {
			return SQLQuery{
				SQL:         `SELECT trip_transporter_name, COUNT(*) as total FROM trips_full WHERE trip_transporter_name IS NOT NULL GROUP BY trip_transporter_name ORDER BY total DESC LIMIT 10`,
				Explanation: "Finding top transporters by trip count (null names removed)",
				Confidence:  0.8,
			}
		},
	},
}

// GenerateFallback walks the template decision list and builds SQL for the
// first matching rule. ErrNoFallback when nothing matches.
func GenerateFallback(question string) (SQLQuery, string, error) {
	q := strings.ToLower(question)
	for _, rule := range fallbackRules {
		if rule.matches(q) {
			return rule.build(q), rule.name, nil
		}
	}
	return SQLQuery{}, "", ErrNoFallback
}

func groupDimension(q string) string {
	switch {
	case strings.Contains(q, "transporter"):
		return "trip_transporter_name"
	case hasAny(q, "route", "lane"):
		return "indent_ROUTE"
	case strings.Contains(q, "vehicle"):
		return "VEHICLE_LABEL"
	case strings.Contains(q, "status"):
		return "Trip Status"
	case strings.Contains(q, "origin"):
		return "consignor_branch_name"
	}
	return ""
}

func originCity(q string) string {
	m := cityPattern.FindStringSubmatch(q)
	if m == nil {
		return ""
	}
	city := m[1]
	// "from the last 30 days" is a time phrase, not an origin.
	switch strings.ToLower(city) {
	case "the", "last", "a", "an":
		return ""
	}
	return city
}

func extractDays(q, fallback string) string {
	if m := daysPattern.FindStringSubmatch(q); m != nil {
		return m[1]
	}
	return fallback
}

func hasAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
