package yandexgpt

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/infrastructure/circuitbreaker"
)

const (
	DefaultEndpoint = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"
	DefaultModel    = "yandexgpt-lite/latest"

	defaultTemperature = 0.6
	defaultMaxTokens   = 2000
)

// Config holds YandexGPT credentials and the model URI parts.
type Config struct {
	Endpoint string `mapstructure:"endpoint"`
	FolderID string `mapstructure:"folder_id"`
	Model    string `mapstructure:"model"`
	// APIKey takes precedence over IAMToken.
	APIKey   string `mapstructure:"api_key"`
	IAMToken string `mapstructure:"iam_token"`
}

// Client talks to the YandexGPT foundation models completion API and
// implements ports.TextGenerator.
type Client struct {
	cfg  Config
	http *circuitbreaker.HTTPClient
	log  *zap.Logger
}

// NewClient requires a folder id and either an API key or an IAM token.
func NewClient(cfg Config, httpClient *circuitbreaker.HTTPClient, log *zap.Logger) (*Client, error) {
	if cfg.FolderID == "" {
		return nil, errors.New("yandexgpt: folder id is required")
	}
	if cfg.APIKey == "" && cfg.IAMToken == "" {
		return nil, errors.New("yandexgpt: api key or iam token is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	log.Info("YandexGPT client initialized", zap.String("model", cfg.Model))
	return &Client{cfg: cfg, http: httpClient, log: log}, nil
}

type completionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens,string"`
}

type message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type completionRequest struct {
	ModelURI          string            `json:"modelUri"`
	CompletionOptions completionOptions `json:"completionOptions"`
	Messages          []message         `json:"messages"`
}

type completionResponse struct {
	Result struct {
		Alternatives []struct {
			Message message `json:"message"`
			Status  string  `json:"status"`
		} `json:"alternatives"`
		Usage struct {
			InputTextTokens  int `json:"inputTextTokens,string"`
			CompletionTokens int `json:"completionTokens,string"`
			TotalTokens      int `json:"totalTokens,string"`
		} `json:"usage"`
		ModelVersion string `json:"modelVersion"`
	} `json:"result"`
}

// Generate sends one completion request.
func (c *Client) Generate(ctx context.Context, messages []domain.Message, opts domain.GenerateOptions) (*domain.Generation, error) {
	model := opts.Model
	if model == "" {
		model = c.cfg.Model
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	req := completionRequest{
		ModelURI: fmt.Sprintf("gpt://%s/%s", c.cfg.FolderID, model),
		CompletionOptions: completionOptions{
			Temperature: temperature,
			MaxTokens:   maxTokens,
		},
		Messages: make([]message, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, message{Role: m.Role, Text: m.Content})
	}

	var resp completionResponse
	if err := c.http.JSON(ctx, http.MethodPost, c.cfg.Endpoint, c.authHeader(), req, &resp); err != nil {
		c.log.Warn("YandexGPT completion failed", zap.String("model", model), zap.Error(err))
		return nil, err
	}

	if len(resp.Result.Alternatives) == 0 {
		return nil, &domain.ExternalServiceError{Service: "yandexgpt", Err: errors.New("no alternatives in reply")}
	}

	usage := resp.Result.Usage
	c.log.Debug("YandexGPT completion",
		zap.String("model", model),
		zap.Int("input_tokens", usage.InputTextTokens),
		zap.Int("output_tokens", usage.CompletionTokens),
	)

	return &domain.Generation{
		Content: resp.Result.Alternatives[0].Message.Text,
		Usage: domain.Usage{
			InputTokens:  usage.InputTextTokens,
			OutputTokens: usage.CompletionTokens,
			TotalTokens:  usage.TotalTokens,
		},
		Model: model,
	}, nil
}

func (c *Client) authHeader() http.Header {
	h := http.Header{"x-folder-id": {c.cfg.FolderID}}
	if c.cfg.APIKey != "" {
		h.Set("Authorization", "Api-Key "+c.cfg.APIKey)
	} else {
		h.Set("Authorization", "Bearer "+c.cfg.IAMToken)
	}
	return h
}
