package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/adapter/ai/openai"
	"github.com/seu-repo/ai-maga/internal/adapter/ai/yandexgpt"
	"github.com/seu-repo/ai-maga/internal/adapter/external/device"
	"github.com/seu-repo/ai-maga/internal/adapter/external/hh"
	"github.com/seu-repo/ai-maga/internal/adapter/external/scheduler"
	"github.com/seu-repo/ai-maga/internal/adapter/external/yandex"
	"github.com/seu-repo/ai-maga/internal/adapter/http/fiber/handlers"
	"github.com/seu-repo/ai-maga/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/ai-maga/internal/adapter/queue"
	"github.com/seu-repo/ai-maga/internal/adapter/ratelimit"
	"github.com/seu-repo/ai-maga/internal/infrastructure/circuitbreaker"
	"github.com/seu-repo/ai-maga/internal/observability/telemetry"
	"github.com/seu-repo/ai-maga/internal/ports"
	"github.com/seu-repo/ai-maga/internal/service/auth"
	"github.com/seu-repo/ai-maga/internal/service/health"
	"github.com/seu-repo/ai-maga/internal/service/nlu"
	"github.com/seu-repo/ai-maga/internal/service/orchestrator"
	"github.com/seu-repo/ai-maga/pkg/config"
	"github.com/seu-repo/ai-maga/pkg/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// 1. Configuration and logger
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	logger, err := logging.New(cfg.Logging, cfg.App.Environment)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logger.Sync()

	logger.Info("Starting AI Maga decision layer",
		zap.String("service", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	// 2. Tracing
	if cfg.OpenTelemetry.ServiceName == "" {
		cfg.OpenTelemetry.ServiceName = cfg.App.Name
	}
	cfg.OpenTelemetry.ServiceVersion = cfg.App.Version
	tracerProvider, err := telemetry.InitTracer(cfg.OpenTelemetry)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// 3. Message bus
	messageQueue, err := queue.New(cfg.Queue, logger)
	if err != nil {
		logger.Fatal("Failed to connect to message queue", zap.Error(err), zap.String("driver", cfg.Queue.Driver))
	}
	defer messageQueue.Close()

	// The desktop agent speaks NATS request/reply regardless of the event driver.
	requester, ok := messageQueue.(queue.Requester)
	if !ok {
		natsQueue, err := queue.NewNATSQueue(cfg.Queue.NATSURL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to NATS for the device agent", zap.Error(err))
		}
		defer natsQueue.Close()
		requester = natsQueue
	}

	events := queue.NewEventPublisher(messageQueue, cfg.Queue.SubjectPrefix, logger)

	// 4. Breakers and outbound HTTP
	breakers := circuitbreaker.NewManager(cfg.CircuitBreaker, logger)
	httpClient := func(name string) *circuitbreaker.HTTPClient {
		return circuitbreaker.NewHTTPClient(name, cfg.HTTPClient, breakers, logger)
	}

	// 5. Rate limiting
	var (
		limiter     ports.RateLimiter
		redisClient *redis.Client
	)
	if cfg.RateLimiting.Enabled {
		limiter, redisClient = newRateLimiter(cfg.RateLimiting, cfg.Redis, logger)
		if redisClient != nil {
			defer redisClient.Close()
		}
	}

	// 6. Capabilities
	llm, err := newTextGenerator(cfg, httpClient, breakers, logger)
	if err != nil {
		logger.Fatal("Failed to initialize LLM client", zap.Error(err), zap.String("provider", cfg.LLM.Provider))
	}

	agent := device.NewAgent(requester, cfg.Device.SubjectPrefix, logger)

	vision, err := yandex.NewVision(cfg.Yandex, agent, httpClient("yandex-vision"), logger)
	if err != nil {
		logger.Fatal("Failed to initialize Yandex Vision", zap.Error(err))
	}
	translator, err := yandex.NewTranslator(cfg.Yandex, httpClient("yandex-translate"), logger)
	if err != nil {
		logger.Fatal("Failed to initialize Yandex Translate", zap.Error(err))
	}
	speech, err := yandex.NewSpeech(cfg.Yandex, httpClient("yandex-speechkit"), logger)
	if err != nil {
		logger.Fatal("Failed to initialize SpeechKit", zap.Error(err))
	}

	router, err := orchestrator.NewRouter(orchestrator.CapabilityTable(orchestrator.Capabilities{
		LLM:        llm,
		Vision:     vision,
		Translator: translator,
		Speech:     speech,
		Scheduler:  scheduler.New(cfg.Scheduler, messageQueue, logger),
		Jobs:       hh.NewClient(cfg.HH, httpClient("hh"), logger),
		Device:     agent,
	}))
	if err != nil {
		logger.Fatal("Failed to build capability router", zap.Error(err))
	}

	// 7. Services
	classifier, err := nlu.NewClassifier(cfg.NLU, nlu.DefaultPatterns(), llm, logger)
	if err != nil {
		logger.Fatal("Failed to initialize intent classifier", zap.Error(err))
	}

	authorizer := auth.NewRBACService(cfg.Auth, logger)
	tokens, err := auth.NewJWTService(cfg.JWT, logger)
	if err != nil {
		logger.Fatal("Failed to initialize token validation", zap.Error(err))
	}

	orch := orchestrator.New(cfg.Orchestrator, router, authorizer, limiter, events, logger)
	defer orch.Close()

	healthCfg := health.Config{Version: cfg.App.Version, Queue: messageQueue, Breakers: breakers}
	if redisClient != nil {
		healthCfg.Redis = redisClient
	}
	healthService := health.NewService(healthCfg, logger)

	// 8. HTTP server
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ServerHeader:          cfg.App.Name,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		BodyLimit:             cfg.HTTP.BodyLimit,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(logger))
	app.Use(middleware.NewCORS(cfg.CORS))

	health.NewFiberHandler(healthService).RegisterRoutes(app)

	if cfg.Prometheus.Enabled {
		metrics := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		app.Get(cfg.Prometheus.Path, func(c *fiber.Ctx) error {
			metrics(c.Context())
			return nil
		})
	}

	v1 := app.Group("/api/v1", middleware.CircuitBreaker(breakers, "api"))
	handlers.Register(v1,
		middleware.AuthRequired(tokens),
		handlers.NewIntentHandler(classifier, orch, events, classifier.Threshold(), logger),
		handlers.NewPlanHandler(orch, logger),
	)

	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP Server failed", zap.Error(err))
		}
	}()

	// 9. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}

// newRateLimiter prefers Redis and keeps a local limiter as its fallback. A
// Redis outage at startup degrades to memory instead of refusing to start.
func newRateLimiter(cfg config.RateLimitingConfig, redisCfg config.RedisConfig, logger *zap.Logger) (ports.RateLimiter, *redis.Client) {
	policies, err := ratelimit.DefaultPolicies().Merge(cfg.Policies)
	if err != nil {
		logger.Fatal("Invalid rate limit policies", zap.Error(err))
	}

	local := ratelimit.NewLocalLimiter(policies, cfg.CleanupInterval, logger)
	if cfg.Backend == "memory" || redisCfg.URL == "" {
		logger.Info("Rate limiting in memory")
		return local, nil
	}

	client, err := ratelimit.NewRedisClient(redisCfg.URL, logger)
	if err != nil {
		logger.Warn("Redis unavailable, rate limiting in memory", zap.Error(err))
		return local, nil
	}
	return ratelimit.NewRedisLimiter(client, local, policies, logger), client
}

func newTextGenerator(cfg *config.Config, httpClient func(string) *circuitbreaker.HTTPClient, breakers *circuitbreaker.Manager, logger *zap.Logger) (ports.TextGenerator, error) {
	if cfg.LLM.Provider == "openai" {
		client, err := openai.NewClient(cfg.OpenAI, breakers, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := yandexgpt.NewClient(cfg.YandexGPT, httpClient("yandexgpt"), logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}
