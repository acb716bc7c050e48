package openai

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/infrastructure/circuitbreaker"
)

const breakerName = "openai"

// Config selects the model and an optional OpenAI-compatible endpoint.
type Config struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	// RequestsPerSecond caps outbound calls; zero means unlimited.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// Client is a ports.TextGenerator over any OpenAI-compatible chat API.
type Client struct {
	client   *goopenai.Client
	model    string
	limiter  *rate.Limiter
	breakers *circuitbreaker.Manager
	log      *zap.Logger
}

// NewClient builds a chat completion client throttled to RequestsPerSecond.
func NewClient(cfg Config, breakers *circuitbreaker.Manager, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key not configured")
	}
	if cfg.Model == "" {
		cfg.Model = goopenai.GPT4oMini
	}

	clientConfig := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, int(cfg.RequestsPerSecond)))
	}

	log.Info("OpenAI client initialized", zap.String("model", cfg.Model), zap.String("base_url", clientConfig.BaseURL))
	return &Client{
		client:   goopenai.NewClientWithConfig(clientConfig),
		model:    cfg.Model,
		limiter:  limiter,
		breakers: breakers,
		log:      log,
	}, nil
}

// Generate runs a chat completion behind the "openai" breaker.
func (c *Client) Generate(ctx context.Context, messages []domain.Message, opts domain.GenerateOptions) (*domain.Generation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("openai: wait for rate limiter: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = c.model
	}

	req := goopenai.ChatCompletionRequest{
		Model:       model,
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
		Messages:    make([]goopenai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := circuitbreaker.Execute(ctx, c.breakers, breakerName, func(ctx context.Context) (goopenai.ChatCompletionResponse, error) {
		return c.client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		c.log.Warn("OpenAI completion failed", zap.String("model", model), zap.Error(err))
		return nil, wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &domain.ExternalServiceError{Service: breakerName, Err: errors.New("empty chat response")}
	}

	return &domain.Generation{
		Content: resp.Choices[0].Message.Content,
		Usage: domain.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Model: resp.Model,
	}, nil
}

func wrapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	extErr := &domain.ExternalServiceError{Service: breakerName, Err: err}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		extErr.StatusCode = apiErr.HTTPStatusCode
	}
	return extErr
}
