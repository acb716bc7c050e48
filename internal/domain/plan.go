package domain

import (
	"fmt"
	"sync"
	"time"
)

// StepStatus moves pending -> running -> completed | failed.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// canMove holds the only legal step transitions; a step never goes back.
func (s StepStatus) canMove(to StepStatus) bool {
	switch s {
	case StepPending:
		return to == StepRunning
	case StepRunning:
		return to == StepCompleted || to == StepFailed
	}
	return false
}

func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepFailed
}

// PlanStatus moves planning -> executing -> completed | failed | timeout.
type PlanStatus string

const (
	PlanPlanning  PlanStatus = "planning"
	PlanExecuting PlanStatus = "executing"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
	PlanTimeout   PlanStatus = "timeout"
)

func (s PlanStatus) canMove(to PlanStatus) bool {
	switch s {
	case PlanPlanning:
		return to == PlanExecuting || to == PlanFailed
	case PlanExecuting:
		return to == PlanCompleted || to == PlanFailed || to == PlanTimeout
	}
	return false
}

func (s PlanStatus) Terminal() bool {
	return s == PlanCompleted || s == PlanFailed || s == PlanTimeout
}

// ActionStep is one unit of work inside a plan. Identity and parameters are
// fixed at construction; execution state only changes through the owning plan.
type ActionStep struct {
	ID       string
	Service  Service
	Action   Action
	Params   StepParams
	Timeout  time.Duration
	Required bool

	status     StepStatus
	result     any
	err        error
	startedAt  time.Time
	finishedAt time.Time
}

// NewActionStep returns a pending step.
func NewActionStep(id string, c Capability, params StepParams, timeout time.Duration, required bool) *ActionStep {
	if params == nil {
		params = StepParams{}
	}
	return &ActionStep{
		ID:       id,
		Service:  c.Service,
		Action:   c.Action,
		Params:   params,
		Timeout:  timeout,
		Required: required,
		status:   StepPending,
	}
}

func (s *ActionStep) Capability() Capability {
	return Capability{Service: s.Service, Action: s.Action}
}

func (s *ActionStep) transition(to StepStatus) error {
	if !s.status.canMove(to) {
		return fmt.Errorf("step %s %s -> %s: %w", s.ID, s.status, to, ErrInvalidTransition)
	}
	s.status = to
	return nil
}

type StepSnapshot struct {
	StepID     string     `json:"step_id"`
	Service    Service    `json:"service"`
	Action     Action     `json:"action"`
	Params     StepParams `json:"params,omitempty"`
	TimeoutMS  int64      `json:"timeout_ms"`
	Required   bool       `json:"required"`
	Status     StepStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (s *ActionStep) snapshot() StepSnapshot {
	out := StepSnapshot{
		StepID:    s.ID,
		Service:   s.Service,
		Action:    s.Action,
		Params:    s.Params.Clone(),
		TimeoutMS: s.Timeout.Milliseconds(),
		Required:  s.Required,
		Status:    s.status,
	}
	if s.err != nil {
		out.Error = s.err.Error()
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		out.StartedAt = &t
	}
	if !s.finishedAt.IsZero() {
		t := s.finishedAt
		out.FinishedAt = &t
	}
	return out
}

// ActionPlan is an ordered, time-budgeted list of steps for one classified
// intent. It is safe for concurrent readers while its owner executes it.
type ActionPlan struct {
	ID         string
	Intent     Intent
	UserID     string
	TimeBudget time.Duration
	CreatedAt  time.Time

	mu       sync.RWMutex
	status   PlanStatus
	steps    []*ActionStep
	results  map[string]any
	stepTime time.Duration
}

// NewActionPlan returns an empty plan in planning status. Its budget starts now.
func NewActionPlan(id string, intent Intent, userID string, budget time.Duration) *ActionPlan {
	return &ActionPlan{
		ID:         id,
		Intent:     intent,
		UserID:     userID,
		TimeBudget: budget,
		CreatedAt:  time.Now(),
		status:     PlanPlanning,
		results:    make(map[string]any),
	}
}

// AddStep appends a step. Steps can only be added while planning.
func (p *ActionPlan) AddStep(step *ActionStep) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != PlanPlanning {
		return fmt.Errorf("plan %s: add step while %s: %w", p.ID, p.status, ErrInvalidTransition)
	}
	p.steps = append(p.steps, step)
	return nil
}

func (p *ActionPlan) Status() PlanStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *ActionPlan) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.steps)
}

// Elapsed is wall-clock time since the plan was created.
func (p *ActionPlan) Elapsed() time.Duration {
	return time.Since(p.CreatedAt)
}

// Deadline is the creation time plus the budget.
func (p *ActionPlan) Deadline() time.Time {
	return p.CreatedAt.Add(p.TimeBudget)
}

// OverBudget reports whether the budget has elapsed.
func (p *ActionPlan) OverBudget() bool {
	return p.Elapsed() > p.TimeBudget
}

// SetStatus moves the plan to status to, or returns ErrInvalidTransition.
func (p *ActionPlan) SetStatus(to PlanStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setStatus(to)
}

func (p *ActionPlan) setStatus(to PlanStatus) error {
	if !p.status.canMove(to) {
		return fmt.Errorf("plan %s %s -> %s: %w", p.ID, p.status, to, ErrInvalidTransition)
	}
	p.status = to
	return nil
}

// NextPending returns the first pending step in list order, or nil.
func (p *ActionPlan) NextPending() *ActionStep {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, s := range p.steps {
		if s.status == StepPending {
			return s
		}
	}
	return nil
}

func (p *ActionPlan) StartStep(step *ActionStep) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := step.transition(StepRunning); err != nil {
		return err
	}
	step.startedAt = time.Now()
	return nil
}

func (p *ActionPlan) CompleteStep(step *ActionStep, result any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := step.transition(StepCompleted); err != nil {
		return err
	}
	step.finishedAt = time.Now()
	step.result = result
	p.results[step.ID] = result
	p.stepTime += step.finishedAt.Sub(step.startedAt)
	return nil
}

// FailStep records a failure. A required step also fails the plan.
func (p *ActionPlan) FailStep(step *ActionStep, cause error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := step.transition(StepFailed); err != nil {
		return err
	}
	step.finishedAt = time.Now()
	step.err = cause
	p.stepTime += step.finishedAt.Sub(step.startedAt)
	if step.Required {
		return p.setStatus(PlanFailed)
	}
	return nil
}

// ResolveParams replaces StepRef values with results of completed steps.
func (p *ActionPlan) ResolveParams(params StepParams) (StepParams, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(StepParams, len(params))
	for k, v := range params {
		ref, ok := v.(StepRef)
		if !ok {
			out[k] = v
			continue
		}
		res, ok := p.results[ref.StepID]
		if !ok {
			return nil, fmt.Errorf("param %q -> %s: %w", k, ref.StepID, ErrUnresolvedReference)
		}
		if ref.AsText {
			text, ok := TextOf(res)
			if !ok {
				return nil, fmt.Errorf("param %q -> %s has no text: %w", k, ref.StepID, ErrUnresolvedReference)
			}
			out[k] = text
			continue
		}
		out[k] = res
	}
	return out, nil
}

// Results returns a copy of the step id -> result map.
func (p *ActionPlan) Results() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]any, len(p.results))
	for k, v := range p.results {
		out[k] = v
	}
	return out
}

// LastResult is the result of the latest completed step in list order.
func (p *ActionPlan) LastResult() (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for i := len(p.steps) - 1; i >= 0; i-- {
		if s := p.steps[i]; s.status == StepCompleted {
			return s.result, true
		}
	}
	return nil, false
}

// StepTime is the accumulated duration of finished steps.
func (p *ActionPlan) StepTime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stepTime
}

func (p *ActionPlan) Counts() (completed, failed int) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, s := range p.steps {
		switch s.status {
		case StepCompleted:
			completed++
		case StepFailed:
			failed++
		}
	}
	return completed, failed
}

type PlanSnapshot struct {
	PlanID       string         `json:"plan_id"`
	Intent       Intent         `json:"intent"`
	UserID       string         `json:"user_id"`
	Status       PlanStatus     `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	TimeBudgetMS int64          `json:"time_budget_ms"`
	StepTimeMS   float64        `json:"step_time_ms"`
	Steps        []StepSnapshot `json:"steps"`
	Results      map[string]any `json:"results"`
}

// Snapshot copies the plan for callers outside the executor.
func (p *ActionPlan) Snapshot() PlanSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	steps := make([]StepSnapshot, 0, len(p.steps))
	for _, s := range p.steps {
		steps = append(steps, s.snapshot())
	}
	results := make(map[string]any, len(p.results))
	for k, v := range p.results {
		results[k] = v
	}

	return PlanSnapshot{
		PlanID:       p.ID,
		Intent:       p.Intent,
		UserID:       p.UserID,
		Status:       p.status,
		CreatedAt:    p.CreatedAt,
		TimeBudgetMS: p.TimeBudget.Milliseconds(),
		StepTimeMS:   float64(p.stepTime.Microseconds()) / 1000,
		Steps:        steps,
		Results:      results,
	}
}

// PlanResult summarizes a finished plan.
type PlanResult struct {
	PlanID          string         `json:"plan_id"`
	Intent          Intent         `json:"intent"`
	Status          PlanStatus     `json:"status"`
	ExecutionTimeMS float64        `json:"execution_time_ms"`
	StepsCompleted  int            `json:"steps_completed"`
	StepsFailed     int            `json:"steps_failed"`
	Results         map[string]any `json:"results"`
	Response        string         `json:"response"`
}

// Err maps a non-successful terminal status to its sentinel.
func (r *PlanResult) Err() error {
	switch r.Status {
	case PlanFailed:
		return ErrPlanFailed
	case PlanTimeout:
		return ErrPlanTimeout
	}
	return nil
}
