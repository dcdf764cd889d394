package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProbe            = errors.New("probe error")
	ErrCapability       = errors.New("capability error")
	ErrPlan             = errors.New("plan error")
	ErrInfeasibleTarget = fmt.Errorf("%w: infeasible target", ErrPlan)
	ErrExecution        = errors.New("execution error")
	ErrCancelled        = errors.New("cancelled")
	ErrExternalTool     = errors.New("external tool error")
	ErrValidation       = errors.New("validation error")
	ErrConfiguration    = errors.New("configuration error")
	ErrNotFound         = errors.New("not found")
	ErrTimeout          = errors.New("timeout")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExecution
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTerminalFailure reports whether err represents a per-file failure rather
// than a user-initiated cancellation.
func IsTerminalFailure(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrCancelled)
}

// Stage maps a wrapped error back to the pipeline stage that produced it.
// Unknown errors report as "execution" since that is the only stage allowed
// to fail for reasons outside the taxonomy.
func Stage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProbe):
		return "probe"
	case errors.Is(err, ErrCapability):
		return "capability"
	case errors.Is(err, ErrPlan):
		return "plan"
	case errors.Is(err, ErrCancelled):
		return "cancel"
	case errors.Is(err, ErrValidation):
		return "validate"
	case errors.Is(err, ErrConfiguration):
		return "config"
	default:
		return "execution"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
