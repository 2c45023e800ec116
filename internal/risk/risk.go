// Package risk scores a proposed tool invocation 0-100 across four
// weighted factors (reversibility, impact, sensitivity, approval
// history) so EnhancedAgent can auto-approve low-risk tool calls
// instead of blocking every RequiresApproval tool on a human.
package risk

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nexuscore/orcruntime/pkg/models"
)

// actionProfile holds the base component scores for a known action
// type before payload-specific adjustments are applied.
type actionProfile struct {
	baseReversibility int
	baseSensitivity   int
	baseImpact        int
}

var defaultProfile = actionProfile{baseReversibility: 10, baseSensitivity: 10, baseImpact: 10}

// actionProfiles carries over the teacher's per-action base scores for
// the handful of action types the original system knew about by name;
// anything else falls back to defaultProfile.
var actionProfiles = map[string]actionProfile{
	"create_email_draft":    {baseReversibility: 5, baseSensitivity: 10, baseImpact: 5},
	"send_email":            {baseReversibility: 18, baseSensitivity: 15, baseImpact: 20},
	"create_calendar_event": {baseReversibility: 5, baseSensitivity: 8, baseImpact: 12},
	"delete_email":          {baseReversibility: 15, baseSensitivity: 10, baseImpact: 5},
	"update_preferences":    {baseReversibility: 5, baseSensitivity: 5, baseImpact: 5},
	"search_emails":         {baseReversibility: 0, baseSensitivity: 8, baseImpact: 0},
	"query_knowledge_base":  {baseReversibility: 0, baseSensitivity: 5, baseImpact: 0},
}

var readOnlyActions = map[string]bool{
	"search_emails":        true,
	"query_knowledge_base": true,
	"get_upcoming_events":  true,
}

var sensitiveKeywords = []string{
	"password", "confidential", "secret", "private", "salary",
	"credit card", "ssn", "financial", "legal", "contract",
	"termination", "layoff",
}

var externalDomains = []string{"gmail.com", "yahoo.com", "hotmail.com", "outlook.com"}

var urgentKeywords = []string{"urgent", "asap", "immediately", "emergency", "critical"}

// AutoApproveThreshold is the default score below which an action is
// considered low risk. EnhancedAgent carries its own configurable
// threshold (agent.Config.ApprovalThreshold); this is only the
// default used by Score.AutoApprove.
const AutoApproveThreshold = 30

// Assessment is the full component breakdown behind a score, kept for
// callers that want more than the three values agent.RiskAssessor
// requires (e.g. a CLI that prints the breakdown).
type Assessment struct {
	TotalScore         int
	ReversibilityScore int
	ImpactScore        int
	SensitivityScore   int
	HistoryScore       int
	TimeScore          int
	AutoApprove        bool
	Confidence         float64
	Reasoning          string
}

func (a Assessment) Level() models.RiskLevel {
	switch {
	case a.TotalScore < AutoApproveThreshold:
		return models.RiskLow
	case a.TotalScore < 70:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

type decisionRecord struct {
	approved bool
}

// Assessor implements agent.RiskAssessor. It is safe for concurrent
// use; a single process-wide instance is expected to back every
// session, tracking approval history per tool name (the teacher's
// Python assessor keyed history by user id, which orcruntime's
// interface has no notion of; tool name is the closest grounded
// substitute since DecisionMemory's own history already tracks a
// different concern, tool-loop detection, not approval outcomes).
type Assessor struct {
	mu      sync.Mutex
	history map[string][]decisionRecord
}

func New() *Assessor {
	return &Assessor{history: make(map[string][]decisionRecord)}
}

// Assess satisfies agent.RiskAssessor.
func (a *Assessor) Assess(ctx context.Context, toolName string, args map[string]any) (int, models.RiskLevel, string) {
	assessment := a.Score(toolName, args)
	return assessment.TotalScore, assessment.Level(), assessment.Reasoning
}

// Score computes the full breakdown for toolName/args.
func (a *Assessor) Score(toolName string, args map[string]any) Assessment {
	profile, ok := actionProfiles[toolName]
	if !ok {
		profile = defaultProfile
	}

	reversibility := a.reversibility(toolName, profile)
	impact := a.impact(args, profile)
	sensitivity := a.sensitivity(args, profile)
	approvals, rejections := a.historyCounts(toolName)
	history := historyScore(approvals, rejections)
	timeScore := timeSensitivity(args)

	total := reversibility + impact + sensitivity + history + timeScore
	if total > 100 {
		total = 100
	}
	autoApprove := total < AutoApproveThreshold

	return Assessment{
		TotalScore:         total,
		ReversibilityScore: reversibility,
		ImpactScore:        impact,
		SensitivityScore:   sensitivity,
		HistoryScore:       history,
		TimeScore:          timeScore,
		AutoApprove:        autoApprove,
		Confidence:         confidence(toolName, approvals, rejections, total),
		Reasoning:          reasoning(total, reversibility, impact, sensitivity, history),
	}
}

// RecordDecision remembers a human's approve/deny decision for
// toolName so future Score calls for the same tool weigh history.
func (a *Assessor) RecordDecision(toolName string, approved bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	records := append(a.history[toolName], decisionRecord{approved: approved})
	if len(records) > 100 {
		records = records[len(records)-100:]
	}
	a.history[toolName] = records
}

func (a *Assessor) historyCounts(toolName string) (approvals, rejections int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.history[toolName] {
		if r.approved {
			approvals++
		} else {
			rejections++
		}
	}
	return approvals, rejections
}

func (a *Assessor) reversibility(toolName string, profile actionProfile) int {
	if readOnlyActions[toolName] {
		return 0
	}
	base := profile.baseReversibility
	switch {
	case strings.Contains(toolName, "draft"), strings.Contains(toolName, "create"):
		return minInt(base, 8)
	case strings.Contains(toolName, "send"), strings.Contains(toolName, "delete"):
		return maxInt(base, 12)
	default:
		return base
	}
}

func (a *Assessor) impact(args map[string]any, profile actionProfile) int {
	base := profile.baseImpact
	recipients := stringList(args["to"])
	if len(recipients) == 0 {
		recipients = stringList(args["attendees"])
	}
	if len(recipients) == 0 {
		return base
	}
	switch n := len(recipients); {
	case n == 1:
		return base
	case n <= 5:
		return base + 5
	case n <= 20:
		return base + 10
	default:
		return minInt(base+15, 30)
	}
}

func (a *Assessor) sensitivity(args map[string]any, profile actionProfile) int {
	base := profile.baseSensitivity
	content := strings.ToLower(stringField(args, "body") + " " + stringField(args, "subject"))

	count := 0
	for _, kw := range sensitiveKeywords {
		if strings.Contains(content, kw) {
			count++
		}
	}
	switch {
	case count >= 3:
		return minInt(base+10, 25)
	case count >= 1:
		return minInt(base+5, 25)
	}

	recipients := stringList(args["to"])
	for _, r := range recipients {
		rl := strings.ToLower(r)
		for _, domain := range externalDomains {
			if strings.Contains(rl, domain) {
				return minInt(base+3, 25)
			}
		}
	}
	return base
}

func historyScore(approvals, rejections int) int {
	total := approvals + rejections
	if total == 0 {
		return 10
	}
	rate := float64(approvals) / float64(total)
	switch {
	case rate > 0.8 && total >= 3:
		return 0
	case rate > 0.5:
		return 5
	default:
		return 12
	}
}

func timeSensitivity(args map[string]any) int {
	content := strings.ToLower(stringField(args, "subject") + " " + stringField(args, "body") + " " + stringField(args, "title"))
	for _, kw := range urgentKeywords {
		if strings.Contains(content, kw) {
			return 3
		}
	}

	if raw, ok := args["start_time"].(string); ok {
		if start, err := time.Parse(time.RFC3339, raw); err == nil {
			until := time.Until(start)
			switch {
			case until < time.Hour:
				return 2
			case until < 24*time.Hour:
				return 4
			}
		}
	}
	return 5
}

func confidence(toolName string, approvals, rejections, total int) float64 {
	c := 0.7
	similar := approvals + rejections
	switch {
	case similar >= 5:
		c += 0.15
	case similar >= 2:
		c += 0.1
	}
	if _, known := actionProfiles[toolName]; known {
		c += 0.1
	}
	if total < 20 || total > 70 {
		c += 0.05
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}

func reasoning(total, rev, impact, sens, hist int) string {
	var level, recommendation string
	switch {
	case total < AutoApproveThreshold:
		level, recommendation = "low risk", "safe to auto-approve"
	case total < 70:
		level, recommendation = "medium risk", "requesting approval"
	default:
		level, recommendation = "high risk", "requires careful review"
	}

	var components []string
	if rev > 10 {
		components = append(components, fmt.Sprintf("difficult to reverse (%d)", rev))
	}
	if impact > 15 {
		components = append(components, fmt.Sprintf("significant impact (%d)", impact))
	}
	if sens > 15 {
		components = append(components, fmt.Sprintf("sensitive data (%d)", sens))
	}
	if hist > 10 {
		components = append(components, fmt.Sprintf("limited history (%d)", hist))
	}

	msg := fmt.Sprintf("%s (total: %d/100). %s.", level, total, recommendation)
	if len(components) > 0 {
		msg += " " + strings.Join(components, ", ")
	}
	return msg
}

func stringField(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func stringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			default:
				out = append(out, strconv.Quote(fmt.Sprint(s)))
			}
		}
		return out
	default:
		return nil
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
