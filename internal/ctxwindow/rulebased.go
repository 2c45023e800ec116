package ctxwindow

import (
	"fmt"
	"strings"

	"github.com/nexuscore/orcruntime/pkg/models"
)

// actionVerbs are the assistant-message verbs the rule-based
// summarizer looks for when digesting what was done.
var actionVerbs = []string{
	"created", "drafted", "scheduled", "sent", "updated",
	"found", "searched", "analyzed", "checked",
}

// ruleBasedSummary is the non-LLM compaction fallback: it extracts a
// first-sentence topic per user message and the action verbs present
// in assistant messages, and emits a structured digest. Used when no
// summarizer is configured, or when the LLM summarizer errors.
func ruleBasedSummary(messages []models.MessageEntry) string {
	var userTopics []string
	actionCounts := make(map[string]int)
	var userCount, assistantCount int

	for _, m := range messages {
		switch m.Role {
		case models.RoleUser:
			userCount++
			if topic := firstSentence(m.Content); topic != "" {
				userTopics = append(userTopics, topic)
			}
		case models.RoleAssistant:
			assistantCount++
			lower := strings.ToLower(m.Content)
			for _, verb := range actionVerbs {
				if strings.Contains(lower, verb) {
					actionCounts[verb]++
				}
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[Conversation summary: %d previous messages]\n\n", len(messages))
	fmt.Fprintf(&b, "Exchanges: %d user, %d assistant\n", userCount, assistantCount)

	if len(userTopics) > 0 {
		b.WriteString("\nTopics discussed:\n")
		limit := len(userTopics)
		if limit > 5 {
			limit = 5
		}
		for _, t := range userTopics[len(userTopics)-limit:] {
			fmt.Fprintf(&b, "  - %s\n", t)
		}
	}

	if len(actionCounts) > 0 {
		b.WriteString("\nActions taken:\n")
		for _, verb := range actionVerbs {
			if n, ok := actionCounts[verb]; ok {
				fmt.Fprintf(&b, "  - %s (%d)\n", verb, n)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// firstSentence returns the text up to the first '.', '!', or '?',
// truncated to 100 characters.
func firstSentence(content string) string {
	end := len(content)
	for i, r := range content {
		if r == '.' || r == '!' || r == '?' {
			end = i
			break
		}
	}
	s := strings.TrimSpace(content[:end])
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
