package health

import (
	"context"
	"time"
)

// CheckType represents the type of health check
type CheckType string

const (
	CheckTypeTCP CheckType = "tcp"
	CheckTypeAPI CheckType = "api"
)

// DefaultTimeout bounds a check when none is set
const DefaultTimeout = 5 * time.Second

// Result represents the outcome of a health check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Check performs the health check and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of health check
	Type() CheckType
}

// Report is the outcome of every check of one controller
type Report struct {
	Target  string
	Results map[CheckType]Result
}

// Healthy reports whether every check passed
func (r Report) Healthy() bool {
	for _, result := range r.Results {
		if !result.Healthy {
			return false
		}
	}
	return len(r.Results) > 0
}

// Run performs checks in order and stops at the first failure
func Run(ctx context.Context, target string, checks ...Checker) Report {
	report := Report{Target: target, Results: make(map[CheckType]Result, len(checks))}
	for _, check := range checks {
		result := check.Check(ctx)
		report.Results[check.Type()] = result
		if !result.Healthy {
			break
		}
	}
	return report
}
