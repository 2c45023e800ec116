package risk

import (
	"context"
	"testing"

	"github.com/nexuscore/orcruntime/pkg/models"
)

func TestAssessReadOnlyToolIsLowRisk(t *testing.T) {
	a := New()
	score, level, _ := a.Assess(context.Background(), "search_emails", map[string]any{})
	if level != models.RiskLow {
		t.Fatalf("expected low risk, got %v (score=%d)", level, score)
	}
}

func TestAssessSendEmailToManyRecipientsIsHighImpact(t *testing.T) {
	a := New()
	recipients := make([]any, 25)
	for i := range recipients {
		recipients[i] = "user@example.com"
	}
	score, _, _ := a.Assess(context.Background(), "send_email", map[string]any{"to": recipients})

	baselineScore, _, _ := a.Assess(context.Background(), "send_email", map[string]any{"to": []any{"user@example.com"}})
	if score <= baselineScore {
		t.Fatalf("expected more recipients to score higher risk: many=%d one=%d", score, baselineScore)
	}
}

func TestAssessSensitiveContentRaisesScore(t *testing.T) {
	a := New()
	plain, _, _ := a.Assess(context.Background(), "send_email", map[string]any{"to": "user@example.com", "body": "see you at lunch"})
	sensitive, _, _ := a.Assess(context.Background(), "send_email", map[string]any{"to": "user@example.com", "body": "here is the confidential contract with the termination clause and ssn"})
	if sensitive <= plain {
		t.Fatalf("expected sensitive content to score higher: sensitive=%d plain=%d", sensitive, plain)
	}
}

func TestAssessUrgentContentLowersTimeScore(t *testing.T) {
	a := New()
	normal := a.Score("send_email", map[string]any{"to": "user@example.com", "subject": "weekly update"})
	urgent := a.Score("send_email", map[string]any{"to": "user@example.com", "subject": "URGENT: respond asap"})
	if urgent.TimeScore >= normal.TimeScore {
		t.Fatalf("expected urgent content to lower the time score: urgent=%d normal=%d", urgent.TimeScore, normal.TimeScore)
	}
}

func TestRecordDecisionImprovesHistoryAfterRepeatedApprovals(t *testing.T) {
	a := New()
	before := a.Score("delete_email", map[string]any{})
	for i := 0; i < 5; i++ {
		a.RecordDecision("delete_email", true)
	}
	after := a.Score("delete_email", map[string]any{})
	if after.HistoryScore >= before.HistoryScore {
		t.Fatalf("expected a strong approval history to lower the history score: before=%d after=%d", before.HistoryScore, after.HistoryScore)
	}
}

func TestRecordDecisionWorsensHistoryAfterRepeatedRejections(t *testing.T) {
	a := New()
	before := a.Score("delete_email", map[string]any{})
	for i := 0; i < 5; i++ {
		a.RecordDecision("delete_email", false)
	}
	after := a.Score("delete_email", map[string]any{})
	if after.HistoryScore <= before.HistoryScore {
		t.Fatalf("expected repeated rejections to raise the history score: before=%d after=%d", before.HistoryScore, after.HistoryScore)
	}
}

func TestUnknownActionUsesDefaultProfile(t *testing.T) {
	a := New()
	assessment := a.Score("some_unregistered_tool", map[string]any{})
	if assessment.TotalScore == 0 {
		t.Fatal("expected the default profile to produce a non-zero baseline score")
	}
}

func TestLevelThresholds(t *testing.T) {
	cases := []struct {
		score int
		want  models.RiskLevel
	}{
		{0, models.RiskLow},
		{29, models.RiskLow},
		{30, models.RiskMedium},
		{69, models.RiskMedium},
		{70, models.RiskHigh},
		{100, models.RiskHigh},
	}
	for _, c := range cases {
		a := Assessment{TotalScore: c.score}
		if got := a.Level(); got != c.want {
			t.Fatalf("score=%d: got %v, want %v", c.score, got, c.want)
		}
	}
}
