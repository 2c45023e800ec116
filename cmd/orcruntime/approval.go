package main

import (
	"context"
	"log/slog"

	"github.com/nexuscore/orcruntime/pkg/models"
)

// autoApprovalGate satisfies agent.ApprovalGate for the demo CLI: a
// real deployment would wait on a human decision delivered over a
// websocket or a chat reply, but this binary has no such channel, so
// it logs the pending action and approves anything scored below
// belowThreshold, matching the agent's own auto-approve rule.
type autoApprovalGate struct {
	logger         *slog.Logger
	belowThreshold int
}

func newAutoApprovalGate(logger *slog.Logger, belowThreshold int) *autoApprovalGate {
	return &autoApprovalGate{logger: logger, belowThreshold: belowThreshold}
}

func (g *autoApprovalGate) RequestApproval(_ context.Context, payload models.ApprovalRequiredPayload) (bool, error) {
	approved := payload.Score < g.belowThreshold
	g.logger.Info("approval requested",
		"tool", payload.ToolName,
		"score", payload.Score,
		"level", payload.Level,
		"reasoning", payload.Reasoning,
		"approved", approved,
	)
	return approved, nil
}
