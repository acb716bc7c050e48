package circuitbreaker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/observability/telemetry"
)

const maxErrorBody = 512

// HTTPClientSettings configures timeouts and retries of outbound capability calls.
type HTTPClientSettings struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryMax     int           `mapstructure:"retry_max"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
}

// DefaultHTTPClientSettings returns the settings used for zero fields.
func DefaultHTTPClientSettings() HTTPClientSettings {
	return HTTPClientSettings{
		Timeout:      30 * time.Second,
		RetryMax:     2,
		RetryWaitMin: 200 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
	}
}

// HTTPClient calls a capability backend with retries, behind a named breaker.
type HTTPClient struct {
	name    string
	client  *http.Client
	manager *Manager
	log     *zap.Logger
}

// NewHTTPClient returns a retrying client whose calls go through the breaker called name.
func NewHTTPClient(name string, settings HTTPClientSettings, manager *Manager, log *zap.Logger) *HTTPClient {
	d := DefaultHTTPClientSettings()
	if settings.Timeout <= 0 {
		settings.Timeout = d.Timeout
	}
	if settings.RetryWaitMin <= 0 {
		settings.RetryWaitMin = d.RetryWaitMin
	}
	if settings.RetryWaitMax <= 0 {
		settings.RetryWaitMax = d.RetryWaitMax
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = settings.Timeout
	rc.RetryMax = max(0, settings.RetryMax)
	rc.RetryWaitMin = settings.RetryWaitMin
	rc.RetryWaitMax = settings.RetryWaitMax
	rc.CheckRetry = noClientErrorRetryPolicy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = &leveledLogger{log: log.Named(name).Sugar()}

	return &HTTPClient{
		name:    name,
		client:  rc.StandardClient(),
		manager: manager,
		log:     log,
	}
}

// noClientErrorRetryPolicy retries transport errors, 429 and 5xx, but never
// other 4xx replies or a caller that already gave up.
func noClientErrorRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Do sends req and returns the raw body of a 2xx reply. Any other status
// becomes a domain.ExternalServiceError. Only transport errors and 5xx
// replies count against the breaker.
func (c *HTTPClient) Do(req *http.Request) ([]byte, error) {
	start := time.Now()

	var rejected error
	body, err := Execute(req.Context(), c.manager, c.name, func(ctx context.Context) ([]byte, error) {
		body, err := c.roundTrip(req.WithContext(ctx))
		var extErr *domain.ExternalServiceError
		if errors.As(err, &extErr) && extErr.StatusCode >= 400 && extErr.StatusCode < 500 {
			rejected = err
			return nil, nil
		}
		return body, err
	})
	if err == nil && rejected != nil {
		err = rejected
	}

	status := "ok"
	if err != nil {
		status = "error"
		if IsCircuitOpen(err) {
			status = "rejected"
			c.log.Warn("Circuit breaker open, request blocked",
				zap.String("breaker", c.name),
				zap.String("url", req.URL.Redacted()),
			)
			err = &domain.ExternalServiceError{Service: c.name, Err: err}
		}
	}
	telemetry.ExternalCallLatency.WithLabelValues(c.name, status).Observe(time.Since(start).Seconds())
	return body, err
}

// JSON posts or gets a JSON document. in may be nil; out may be nil when the
// reply body is irrelevant.
func (c *HTTPClient) JSON(ctx context.Context, method, url string, header http.Header, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	raw, err := c.Do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.ExternalServiceError{Service: c.name, Err: fmt.Errorf("decode reply: %w", err)}
	}
	return nil
}

// leveledLogger routes retryablehttp's logging through zap.
type leveledLogger struct {
	log *zap.SugaredLogger
}

func (l *leveledLogger) Error(msg string, kv ...interface{}) { l.log.Errorw(msg, kv...) }
func (l *leveledLogger) Info(msg string, kv ...interface{})  { l.log.Debugw(msg, kv...) }
func (l *leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Debugw(msg, kv...) }
func (l *leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warnw(msg, kv...) }
