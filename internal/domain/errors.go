package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrRateLimited         = errors.New("rate limited")
	ErrStepFailed          = errors.New("step failed")
	ErrPlanFailed          = errors.New("plan failed")
	ErrPlanTimeout         = errors.New("plan timed out")
	ErrRouting             = errors.New("unknown service/action")
	ErrExternalService     = errors.New("external service error")
	ErrPlanNotFound        = errors.New("plan not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrUnresolvedReference = errors.New("unresolved step reference")
)

// UnauthorizedError is returned when the authorizer denies an intent.
type UnauthorizedError struct {
	UserID string
	Intent Intent
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("user %q is not allowed to execute %s", e.UserID, e.Intent)
}

func (*UnauthorizedError) Unwrap() error {
	return ErrUnauthorized
}

// RateLimitedError carries the moment the user's window frees a slot.
type RateLimitedError struct {
	UserID  string
	Intent  Intent
	ResetAt time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Intent, e.ResetAt.Format(time.RFC3339))
}

func (*RateLimitedError) Unwrap() error {
	return ErrRateLimited
}

// RetryAfter is the whole number of seconds until the window resets, never below one.
func (e *RateLimitedError) RetryAfter(now time.Time) int {
	secs := int(e.ResetAt.Sub(now).Seconds() + 0.999)
	if secs < 1 {
		return 1
	}
	return secs
}

// StepError records a capability failure. A failure of a required step also
// matches ErrPlanFailed.
type StepError struct {
	StepID   string
	Service  Service
	Action   Action
	Required bool
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s (%s.%s): %v", e.StepID, e.Service, e.Action, e.Err)
}

func (e *StepError) Unwrap() []error {
	kind := ErrStepFailed
	if e.Required {
		kind = ErrPlanFailed
	}
	return []error{kind, e.Err}
}

// RoutingError means no capability is bound to a (service, action) pair.
type RoutingError struct {
	Service Service
	Action  Action
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("unknown service/action: %s.%s", e.Service, e.Action)
}

func (*RoutingError) Unwrap() error {
	return ErrRouting
}

// ExternalServiceError wraps a failed call to a remote capability backend.
type ExternalServiceError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() []error {
	return []error{ErrExternalService, e.Err}
}
