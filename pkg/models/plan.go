package models

// ToolPlan is an ordered list of parallel groups. Group k+1 depends on
// completion of every member of groups 0..k. The union of tools across
// all groups must equal Tools, and the groups must form a valid
// topological layering of the implicit dependency graph.
type ToolPlan struct {
	ParallelGroups    [][]string `json:"parallel_groups"`
	Tools             []string   `json:"tools"`
	Reasoning         string     `json:"reasoning"`
	ExpectedSynthesis string     `json:"expected_synthesis"`
}

// Empty reports whether the plan selects no tools at all, which is a
// legal plan meaning "answer conversationally without tools."
func (p ToolPlan) Empty() bool {
	return len(p.Tools) == 0
}

// StepStatus is the runtime lifecycle state of an ExecutionStep.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepReady     StepStatus = "ready"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// FromPlan converts a ToolPlan into the ExecutionSteps the DAGExecutor
// schedules. Each tool in parallel group k becomes a step depending on
// the union of all tools in groups 0..k-1, with priority 10-k (floored
// at 1). Tools present in the registry are supplied by resolve; a tool
// absent from it is still included as a step (the executor is
// responsible for skipping unregistered tools with a warning).
func (p ToolPlan) ToExecutionSteps(defaultTimeoutMS int, defaultRetries int) []*ExecutionStep {
	var steps []*ExecutionStep
	seen := map[string]bool{}
	for k, group := range p.ParallelGroups {
		deps := map[string]bool{}
		for prior := 0; prior < k; prior++ {
			for _, name := range p.ParallelGroups[prior] {
				deps[name] = true
			}
		}
		priority := 10 - k
		if priority < 1 {
			priority = 1
		}
		for _, name := range group {
			if seen[name] {
				continue
			}
			seen[name] = true
			steps = append(steps, &ExecutionStep{
				ToolName:     name,
				Args:         map[string]any{},
				Dependencies: depSet(deps),
				Priority:     priority,
				RetryCount:   defaultRetries,
				Timeout:      defaultTimeoutMS,
				Status:       StepPending,
			})
		}
	}
	return steps
}

func depSet(deps map[string]bool) []string {
	out := make([]string, 0, len(deps))
	for name := range deps {
		out = append(out, name)
	}
	return out
}
