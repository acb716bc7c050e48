package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/observability/telemetry"
	"github.com/seu-repo/ai-maga/internal/ports"
)

const eventPublishTimeout = 2 * time.Second

// Config bounds plan size and runtime.
type Config struct {
	MaxSteps             int           `mapstructure:"max_steps"`
	TimeBudget           time.Duration `mapstructure:"time_budget"`
	PlanRetention        time.Duration `mapstructure:"plan_retention"`
	CleanupInterval      time.Duration `mapstructure:"cleanup_interval"`
	DefaultTranslateLang string        `mapstructure:"default_translate_lang"`
}

func (c Config) withDefaults() Config {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 6
	}
	if c.TimeBudget <= 0 {
		c.TimeBudget = 15 * time.Second
	}
	if c.PlanRetention <= 0 {
		c.PlanRetention = 10 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.DefaultTranslateLang == "" {
		c.DefaultTranslateLang = "en"
	}
	return c
}

// Orchestrator turns classified intents into plans and runs them step by step
// under a wall-clock budget.
type Orchestrator struct {
	cfg      Config
	router   *Router
	authz    ports.Authorizer
	limiter  ports.RateLimiter
	events   ports.EventPublisher
	registry *planRegistry
	log      *zap.Logger
}

// New builds an orchestrator. authz, limiter and events may be nil, which
// allows everything and publishes nothing.
func New(cfg Config, router *Router, authz ports.Authorizer, limiter ports.RateLimiter, events ports.EventPublisher, log *zap.Logger) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		cfg:      cfg,
		router:   router,
		authz:    authz,
		limiter:  limiter,
		events:   events,
		registry: newPlanRegistry(cfg.PlanRetention, cfg.CleanupInterval, log),
		log:      log,
	}
}

// Close stops the registry sweeper.
func (o *Orchestrator) Close() {
	o.registry.close()
}

// OrchestrateIntent checks permission and rate limit, builds the plan and runs it.
// Failed and timed-out plans are returned as results; only precondition and
// routing errors are returned as errors.
func (o *Orchestrator) OrchestrateIntent(ctx context.Context, intent domain.IntentResult, userID string) (*domain.PlanResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator.OrchestrateIntent")
	defer span.End()
	span.SetAttributes(attribute.String("intent", string(intent.Intent)))

	if err := o.checkPreconditions(ctx, userID, intent.Intent); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "precondition failed")
		return nil, err
	}

	plan, err := buildPlan(uuid.NewString(), planInput{
		intent:      intent,
		userID:      userID,
		defaultLang: o.cfg.DefaultTranslateLang,
	}, o.cfg.TimeBudget, o.cfg.MaxSteps)
	if err != nil {
		return nil, fmt.Errorf("build plan: %w", err)
	}
	o.registry.put(plan)
	span.SetAttributes(attribute.String("plan_id", plan.ID), attribute.Int("steps", plan.Len()))

	if err := plan.SetStatus(domain.PlanExecuting); err != nil {
		return nil, err
	}

	telemetry.ActivePlans.Inc()
	err = o.execute(ctx, plan)
	telemetry.ActivePlans.Dec()

	result := o.result(plan)
	telemetry.PlansTotal.WithLabelValues(string(plan.Intent), string(result.Status)).Inc()
	telemetry.PlanDuration.WithLabelValues(string(plan.Intent)).Observe(plan.Elapsed().Seconds())
	o.publishFinished(ctx, plan, result)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.log.Error("Plan aborted",
			zap.String("plan_id", plan.ID),
			zap.String("intent", string(plan.Intent)),
			zap.Error(err),
		)
		return nil, err
	}

	o.log.Info("Plan finished",
		zap.String("plan_id", plan.ID),
		zap.String("intent", string(plan.Intent)),
		zap.String("user_id", userID),
		zap.String("status", string(result.Status)),
		zap.Int("steps_completed", result.StepsCompleted),
		zap.Int("steps_failed", result.StepsFailed),
		zap.Float64("execution_time_ms", result.ExecutionTimeMS),
	)
	return result, nil
}

// PlanStatus returns a snapshot of a plan still held by the registry.
func (o *Orchestrator) PlanStatus(planID string) (domain.PlanSnapshot, error) {
	plan, ok := o.registry.get(planID)
	if !ok {
		return domain.PlanSnapshot{}, fmt.Errorf("plan %s: %w", planID, domain.ErrPlanNotFound)
	}
	return plan.Snapshot(), nil
}

func (o *Orchestrator) checkPreconditions(ctx context.Context, userID string, intent domain.Intent) error {
	if o.authz != nil {
		ok, err := o.authz.CanExecute(ctx, userID, intent)
		if err != nil {
			return fmt.Errorf("authorization check: %w", err)
		}
		if !ok {
			telemetry.AuthorizationDenialsTotal.WithLabelValues(string(intent)).Inc()
			return &domain.UnauthorizedError{UserID: userID, Intent: intent}
		}
	}

	if o.limiter != nil {
		decision, err := o.limiter.Check(ctx, userID, intent)
		if err != nil {
			return fmt.Errorf("rate limit check: %w", err)
		}
		if !decision.Allowed {
			return &domain.RateLimitedError{UserID: userID, Intent: intent, ResetAt: decision.ResetAt}
		}
	}
	return nil
}

type stepOutcome struct {
	result any
	err    error
}

// execute runs pending steps in order until none remain, a required step
// fails, or the budget runs out. Only a routing defect is returned as an error.
func (o *Orchestrator) execute(ctx context.Context, plan *domain.ActionPlan) error {
	deadline := plan.Deadline()

	for {
		if plan.OverBudget() {
			o.markTimeout(plan, nil)
			return nil
		}

		step := plan.NextPending()
		if step == nil {
			break
		}

		fn, err := o.router.Resolve(step.Capability())
		if err != nil {
			_ = plan.SetStatus(domain.PlanFailed)
			return err
		}

		if err := plan.StartStep(step); err != nil {
			return err
		}

		started := time.Now()
		params, err := plan.ResolveParams(step.Params)
		if err != nil {
			o.failStep(plan, step, err, 0)
			if step.Required {
				break
			}
			continue
		}

		out, finished := o.dispatch(ctx, step, fn, params, deadline)
		if !finished {
			o.markTimeout(plan, step)
			return nil
		}

		if out.err != nil {
			o.failStep(plan, step, out.err, time.Since(started))
			if step.Required {
				break
			}
			continue
		}

		if err := plan.CompleteStep(step, out.result); err != nil {
			return err
		}
		o.observeStep(step, domain.StepCompleted, time.Since(started))
	}

	if plan.Status() == domain.PlanExecuting {
		return plan.SetStatus(domain.PlanCompleted)
	}
	return nil
}

// dispatch runs fn in its own goroutine under the step timeout and waits for
// it, the budget, or the caller. finished is false when the budget or the
// caller gave up first; the step is then left running and its result dropped.
func (o *Orchestrator) dispatch(ctx context.Context, step *domain.ActionStep, fn CapabilityFunc, params domain.StepParams, deadline time.Time) (stepOutcome, bool) {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator.step")
	defer span.End()
	span.SetAttributes(
		attribute.String("step_id", step.ID),
		attribute.String("capability", step.Capability().String()),
	)

	done := make(chan stepOutcome, 1)
	go func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), step.Timeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				done <- stepOutcome{err: fmt.Errorf("capability %s panicked: %v", step.Capability(), r)}
			}
		}()

		res, err := fn(sctx, params)
		done <- stepOutcome{result: res, err: err}
	}()

	stepTimer := time.NewTimer(step.Timeout)
	defer stepTimer.Stop()
	budget := time.NewTimer(time.Until(deadline))
	defer budget.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			span.RecordError(out.err)
		}
		return out, true
	case <-stepTimer.C:
		err := fmt.Errorf("no reply within %s: %w", step.Timeout, context.DeadlineExceeded)
		span.RecordError(err)
		return stepOutcome{err: err}, true
	case <-budget.C:
		return stepOutcome{}, false
	case <-ctx.Done():
		return stepOutcome{}, false
	}
}

func (o *Orchestrator) failStep(plan *domain.ActionPlan, step *domain.ActionStep, cause error, took time.Duration) {
	stepErr := &domain.StepError{
		StepID:   step.ID,
		Service:  step.Service,
		Action:   step.Action,
		Required: step.Required,
		Err:      cause,
	}
	if err := plan.FailStep(step, stepErr); err != nil {
		o.log.Error("Failed to record step failure", zap.String("plan_id", plan.ID), zap.Error(err))
	}
	o.observeStep(step, domain.StepFailed, took)

	level := o.log.Warn
	if !step.Required {
		level = o.log.Info
	}
	level("Step failed",
		zap.String("plan_id", plan.ID),
		zap.String("step_id", step.ID),
		zap.String("capability", step.Capability().String()),
		zap.Bool("required", step.Required),
		zap.Error(cause),
	)
}

func (o *Orchestrator) markTimeout(plan *domain.ActionPlan, inFlight *domain.ActionStep) {
	if err := plan.SetStatus(domain.PlanTimeout); err != nil {
		o.log.Error("Failed to mark plan timeout", zap.String("plan_id", plan.ID), zap.Error(err))
		return
	}
	fields := []zap.Field{
		zap.String("plan_id", plan.ID),
		zap.Duration("budget", plan.TimeBudget),
		zap.Duration("elapsed", plan.Elapsed()),
	}
	if inFlight != nil {
		fields = append(fields, zap.String("in_flight_step", inFlight.ID))
	}
	o.log.Warn("Plan exceeded time budget", fields...)
}

func (o *Orchestrator) observeStep(step *domain.ActionStep, status domain.StepStatus, took time.Duration) {
	telemetry.StepDuration.
		WithLabelValues(string(step.Service), string(step.Action), string(status)).
		Observe(took.Seconds())
}

func (o *Orchestrator) result(plan *domain.ActionPlan) *domain.PlanResult {
	completed, failed := plan.Counts()
	return &domain.PlanResult{
		PlanID:          plan.ID,
		Intent:          plan.Intent,
		Status:          plan.Status(),
		ExecutionTimeMS: float64(plan.StepTime().Microseconds()) / 1000,
		StepsCompleted:  completed,
		StepsFailed:     failed,
		Results:         plan.Results(),
		Response:        composeResponse(plan),
	}
}

func (o *Orchestrator) publishFinished(ctx context.Context, plan *domain.ActionPlan, result *domain.PlanResult) {
	if o.events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()

	event := domain.Event{
		ID:     uuid.NewString(),
		Type:   domain.EventPlanFinished,
		UserID: plan.UserID,
		Intent: plan.Intent,
		PlanID: plan.ID,
		Payload: map[string]any{
			"status":            string(result.Status),
			"steps_completed":   result.StepsCompleted,
			"steps_failed":      result.StepsFailed,
			"execution_time_ms": result.ExecutionTimeMS,
		},
		OccurredAt: time.Now(),
	}
	if err := o.events.Publish(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		o.log.Warn("Failed to publish plan event", zap.String("plan_id", plan.ID), zap.Error(err))
	}
}
