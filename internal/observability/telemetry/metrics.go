package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Classification
	IntentsClassifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maga_intents_classified_total",
		Help: "Utterances classified, by resolved intent and strategy",
	}, []string{"intent", "strategy"})

	ClassificationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "maga_classification_latency_seconds",
		Help:    "Time spent classifying one utterance",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10},
	})

	TieBreakerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maga_tiebreaker_calls_total",
		Help: "LLM tie-breaker invocations by outcome",
	}, []string{"outcome"})

	// Orchestration
	PlansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maga_plans_total",
		Help: "Plans executed, by intent and terminal status",
	}, []string{"intent", "status"})

	PlanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "maga_plan_duration_seconds",
		Help:    "Wall-clock duration of plan execution",
		Buckets: prometheus.DefBuckets,
	}, []string{"intent"})

	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "maga_step_duration_seconds",
		Help:    "Duration of a single capability call",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "action", "status"})

	ActivePlans = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "maga_active_plans",
		Help: "Plans currently executing",
	})

	// Policies
	RateLimitDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maga_rate_limit_denials_total",
		Help: "Requests denied by the rate limiter",
	}, []string{"intent", "backend"})

	AuthorizationDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maga_authorization_denials_total",
		Help: "Requests denied by authorization",
	}, []string{"intent"})

	// Infrastructure
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "maga_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	ExternalCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "maga_external_call_latency_seconds",
		Help:    "Latency of calls to external capability backends",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "status"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maga_events_published_total",
		Help: "Domain events published to the message bus",
	}, []string{"type", "status"})

	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "maga_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status code",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
