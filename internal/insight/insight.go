// Package insight looks for cross-domain patterns across the tool
// results a single agent run collected — a calendar event whose
// location changed, a pile of unread email from one sender, rain in
// the forecast over an outdoor event — and turns a match into a single
// proactive observation. It never blocks synthesis: Engine.Generate is
// expected to run under a short caller-owned timeout, and finding
// nothing is not an error.
package insight

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nexuscore/orcruntime/pkg/models"
)

// Rule inspects the full results map from one DAGExecutor run and
// reports a single cross-domain observation, if its pattern matches.
type Rule struct {
	Name   string
	Detect func(results map[string]any) (*models.InsightPayload, bool)
}

// Engine satisfies agent.InsightEngine by running a fixed, ordered set
// of declarative rules over a completed run's results and returning
// the first match. Rules are deliberately simple pattern checks rather
// than an LLM call: the teacher's own insight module never reached for
// a model either, and a declarative pass is cheap enough to run on
// every turn without its own failure mode.
type Engine struct {
	rules []Rule
}

// New builds an Engine with the default rule set.
func New() *Engine {
	return &Engine{rules: defaultRules}
}

// NewWithRules builds an Engine over a caller-supplied rule set, for
// tests and hosts that want to add or replace detection patterns.
func NewWithRules(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Generate satisfies agent.InsightEngine. It returns the first rule
// match in order; ctx cancellation between rule checks stops the scan
// early and reports no insight rather than a partial one.
func (e *Engine) Generate(ctx context.Context, results map[string]any) (*models.InsightPayload, bool) {
	for _, rule := range e.rules {
		select {
		case <-ctx.Done():
			return nil, false
		default:
		}
		if payload, ok := rule.Detect(results); ok {
			return payload, true
		}
	}
	return nil, false
}

var defaultRules = []Rule{
	{Name: "calendar_location_change", Detect: calendarLocationChange},
	{Name: "unread_email_pattern", Detect: unreadEmailPattern},
	{Name: "weather_outdoor_event", Detect: weatherOutdoorEvent},
}

// calendarLocationChange looks for calendar entries flagged as having
// moved since they were last seen, e.g. {"location_changed": true,
// "title": "...", "location": "...", "start_time": "..."}.
func calendarLocationChange(results map[string]any) (*models.InsightPayload, bool) {
	for _, key := range []string{"get_upcoming_events", "list_calendar_events"} {
		events, ok := asMapList(results[key])
		if !ok {
			continue
		}
		for _, event := range events {
			if !truthy(event["location_changed"]) {
				continue
			}
			title := stringOr(event["title"], "an upcoming event")
			location := stringOr(event["location"], "a new location")
			start := stringOr(event["start_time"], "")
			summary := fmt.Sprintf("Heads up: %s moved to %s", title, location)
			if start != "" {
				summary = fmt.Sprintf("Heads up: %s (%s) moved to %s", title, start, location)
			}
			return &models.InsightPayload{
				Summary:    summary,
				Confidence: 0.9,
				Sources:    []string{key},
				Detail:     map[string]any{"title": title, "location": location, "start_time": start},
			}, true
		}
	}
	return nil, false
}

// unreadEmailPattern looks for search_emails results clustering three
// or more unread messages under the same sender.
func unreadEmailPattern(results map[string]any) (*models.InsightPayload, bool) {
	emails, ok := asMapList(results["search_emails"])
	if !ok {
		return nil, false
	}

	counts := map[string]int{}
	for _, e := range emails {
		if !truthy(e["unread"]) {
			continue
		}
		from := stringOr(e["from"], "")
		if from == "" {
			continue
		}
		counts[from]++
	}

	type senderCount struct {
		sender string
		count  int
	}
	var ranked []senderCount
	for sender, count := range counts {
		if count >= 3 {
			ranked = append(ranked, senderCount{sender, count})
		}
	}
	if len(ranked) == 0 {
		return nil, false
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].count > ranked[j].count })
	top := ranked[0]

	return &models.InsightPayload{
		Summary:    fmt.Sprintf("You have %d unread emails from %s", top.count, top.sender),
		Confidence: 0.75,
		Sources:    []string{"search_emails"},
		Detail:     map[string]any{"sender": top.sender, "unread_count": top.count},
	}, true
}

// weatherOutdoorEvent cross-references a weather lookup against
// upcoming outdoor events on the same date.
func weatherOutdoorEvent(results map[string]any) (*models.InsightPayload, bool) {
	weather, ok := results["get_weather"].(map[string]any)
	if !ok {
		return nil, false
	}
	if !rainLikely(weather) {
		return nil, false
	}
	events, ok := asMapList(results["get_upcoming_events"])
	if !ok {
		return nil, false
	}

	forecastDate := stringOr(weather["date"], "")
	for _, event := range events {
		if !truthy(event["outdoor"]) {
			continue
		}
		eventDate := stringOr(event["date"], stringOr(event["start_time"], ""))
		if forecastDate != "" && eventDate != "" && !strings.HasPrefix(eventDate, forecastDate) {
			continue
		}
		title := stringOr(event["title"], "your outdoor event")
		when := stringOr(event["start_time"], stringOr(event["date"], "soon"))
		return &models.InsightPayload{
			Summary:    fmt.Sprintf("Weather alert: rain expected during %s (%s)", title, when),
			Confidence: 0.8,
			Sources:    []string{"get_weather", "get_upcoming_events"},
			Detail:     map[string]any{"event": title, "forecast": weather["condition"]},
		}, true
	}
	return nil, false
}

func rainLikely(weather map[string]any) bool {
	condition := strings.ToLower(stringOr(weather["condition"], ""))
	if strings.Contains(condition, "rain") || strings.Contains(condition, "storm") || strings.Contains(condition, "shower") {
		return true
	}
	switch v := weather["precipitation_chance"].(type) {
	case float64:
		return v >= 50
	case int:
		return v >= 50
	}
	return false
}

func asMapList(v any) ([]map[string]any, bool) {
	switch t := v.(type) {
	case []map[string]any:
		return t, true
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func truthy(v any) bool {
	b, _ := v.(bool)
	return b
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}
