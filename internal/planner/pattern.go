package planner

import (
	"regexp"

	"github.com/nexuscore/orcruntime/pkg/models"
)

// rule is a single L1 pattern: a case-insensitive regex mapped to a
// precomputed plan. Rules are evaluated in declaration order; the
// first match wins.
type rule struct {
	name string
	re   *regexp.Regexp
	plan models.ToolPlan
}

// PatternMatcher is the L1 tier: a small fixed set of regexes checked
// in order. Match cost is a handful of regex evaluations, well under
// the 1ms amortized budget for realistic query volumes.
type PatternMatcher struct {
	rules []rule
}

// NewPatternMatcher builds the default rule set from spec.md's
// representative patterns (day overview, email search, calendar,
// weather).
func NewPatternMatcher() *PatternMatcher {
	return &PatternMatcher{rules: defaultRules()}
}

// Match returns the first rule whose pattern matches query, if any.
func (p *PatternMatcher) Match(query string) (models.ToolPlan, bool) {
	for _, r := range p.rules {
		if r.re.MatchString(query) {
			return r.plan, true
		}
	}
	return models.ToolPlan{}, false
}

func defaultRules() []rule {
	return []rule{
		{
			name: "day_overview",
			re:   regexp.MustCompile(`(?i)(what'?s my day|how'?s my day looking|today'?s schedule)`),
			plan: models.ToolPlan{
				Tools:             []string{"get_calendar_events", "get_weather"},
				ParallelGroups:    [][]string{{"get_calendar_events", "get_weather"}},
				Reasoning:         "day overview pattern: calendar and weather in parallel",
				ExpectedSynthesis: "Summarize today's schedule alongside current weather.",
			},
		},
		{
			name: "email_search",
			re:   regexp.MustCompile(`(?i)(search|find).*email|did .* email`),
			plan: models.ToolPlan{
				Tools:             []string{"search_emails"},
				ParallelGroups:    [][]string{{"search_emails"}},
				Reasoning:         "email search pattern",
				ExpectedSynthesis: "Report matching emails.",
			},
		},
		{
			name: "calendar_free",
			re:   regexp.MustCompile(`(?i)(am i free|upcoming events)`),
			plan: models.ToolPlan{
				Tools:             []string{"get_calendar_events"},
				ParallelGroups:    [][]string{{"get_calendar_events"}},
				Reasoning:         "calendar availability pattern",
				ExpectedSynthesis: "Report free/busy status from calendar events.",
			},
		},
		{
			name: "weather",
			re:   regexp.MustCompile(`(?i)(weather|forecast)`),
			plan: models.ToolPlan{
				Tools:             []string{"get_weather"},
				ParallelGroups:    [][]string{{"get_weather"}},
				Reasoning:         "weather pattern",
				ExpectedSynthesis: "Report the current forecast.",
			},
		},
	}
}
