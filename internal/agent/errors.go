package agent

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for agent-level failures (spec.md §7's taxonomy of
// kinds, not type names).
var (
	ErrNoProvider  = errors.New("no language model provider configured")
	ErrNoPlan      = errors.New("planner produced no plan")
	ErrSynthesis   = errors.New("synthesis failed")
	ErrEarlyExit   = errors.New("decision memory circuit breaker is open")
	ErrApprovalDenied = errors.New("required approval was denied or timed out")
)

// ToolErrorType categorizes a tool failure for retry logic, exactly
// mirroring the classification the teacher's agent.ToolError performs
// for its own executor.
type ToolErrorType string

const (
	ToolErrorTimeout      ToolErrorType = "timeout"
	ToolErrorNetwork      ToolErrorType = "network"
	ToolErrorRateLimit    ToolErrorType = "rate_limit"
	ToolErrorPermission   ToolErrorType = "permission"
	ToolErrorInvalidInput ToolErrorType = "invalid_input"
	ToolErrorExecution    ToolErrorType = "execution"
	ToolErrorUnknown      ToolErrorType = "unknown"
)

// IsRetryable reports whether this error type suggests retrying may
// succeed. Timeout, network, and rate-limit errors are retryable.
func (t ToolErrorType) IsRetryable() bool {
	switch t {
	case ToolErrorTimeout, ToolErrorNetwork, ToolErrorRateLimit:
		return true
	default:
		return false
	}
}

// ToolError is a structured, classified tool failure. DAGExecutor's
// retry loop does not need to see this type directly (it retries
// unconditionally up to RetryCount), but the synthesis prompt and any
// host-side error reporting use it to decide what to tell the user.
type ToolError struct {
	Type       ToolErrorType
	ToolName   string
	Message    string
	Cause      error
	Retryable  bool
	Attempts   int
}

func (e *ToolError) Error() string {
	parts := []string{fmt.Sprintf("[tool:%s]", e.Type)}
	if e.ToolName != "" {
		parts = append(parts, e.ToolName)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	if e.Attempts > 1 {
		parts = append(parts, fmt.Sprintf("(attempts=%d)", e.Attempts))
	}
	return strings.Join(parts, " ")
}

func (e *ToolError) Unwrap() error { return e.Cause }

// NewToolError classifies cause's message into a ToolErrorType and
// builds a ToolError around it.
func NewToolError(toolName string, cause error, attempts int) *ToolError {
	t := classifyToolError(cause)
	return &ToolError{
		Type:      t,
		ToolName:  toolName,
		Message:   cause.Error(),
		Cause:     cause,
		Retryable: t.IsRetryable(),
		Attempts:  attempts,
	}
}

func classifyToolError(err error) ToolErrorType {
	if err == nil {
		return ToolErrorUnknown
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout"), strings.Contains(s, "deadline exceeded"):
		return ToolErrorTimeout
	case strings.Contains(s, "connection"), strings.Contains(s, "network"), strings.Contains(s, "refused"), strings.Contains(s, "unreachable"):
		return ToolErrorNetwork
	case strings.Contains(s, "rate limit"), strings.Contains(s, "rate_limit"), strings.Contains(s, "too many requests"), strings.Contains(s, "429"):
		return ToolErrorRateLimit
	case strings.Contains(s, "permission"), strings.Contains(s, "forbidden"), strings.Contains(s, "unauthorized"):
		return ToolErrorPermission
	case strings.Contains(s, "invalid"), strings.Contains(s, "validation"), strings.Contains(s, "required"), strings.Contains(s, "missing"):
		return ToolErrorInvalidInput
	default:
		return ToolErrorExecution
	}
}

// GetToolError extracts a *ToolError from err's chain, if any.
func GetToolError(err error) (*ToolError, bool) {
	var toolErr *ToolError
	ok := errors.As(err, &toolErr)
	return toolErr, ok
}
