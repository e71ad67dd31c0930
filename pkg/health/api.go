package health

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// SitesPath is read by the API check; every controller has at least one site
const SitesPath = "/infra/sites"

// Getter reads a policy API path. *transport.Client implements it.
type Getter interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
}

// APIChecker checks that the controller answers authenticated API calls
type APIChecker struct {
	api     Getter
	Path    string
	Timeout time.Duration
}

// NewAPIChecker creates a checker reading SitesPath
func NewAPIChecker(api Getter) *APIChecker {
	return &APIChecker{
		api:     api,
		Path:    SitesPath,
		Timeout: DefaultTimeout,
	}
}

// Check performs the API health check
func (a *APIChecker) Check(ctx context.Context) Result {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	var sites struct {
		ResultCount int64 `json:"result_count"`
	}
	if err := a.api.Get(ctx, a.Path, nil, &sites); err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("API call failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("API reachable, %d sites", sites.ResultCount),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type
func (a *APIChecker) Type() CheckType {
	return CheckTypeAPI
}

// WithTimeout sets the call timeout
func (a *APIChecker) WithTimeout(timeout time.Duration) *APIChecker {
	a.Timeout = timeout
	return a
}
