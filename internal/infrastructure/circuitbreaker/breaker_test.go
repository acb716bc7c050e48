package circuitbreaker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
)

func newTestManager() *Manager {
	return NewManager(Settings{FailureThreshold: 2, Timeout: time.Minute}, zap.NewNop())
}

func TestExecute_TripsAfterConsecutiveFailures(t *testing.T) {
	m := newTestManager()
	boom := errors.New("boom")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := Execute(ctx, m, "vision", func(context.Context) (int, error) { return 0, boom })
		require.ErrorIs(t, err, boom)
	}

	calls := 0
	_, err := Execute(ctx, m, "vision", func(context.Context) (int, error) { calls++; return 1, nil })
	assert.True(t, IsCircuitOpen(err))
	assert.Zero(t, calls, "open breaker does not call through")
	assert.Equal(t, "open", m.Status()["vision"].State)

	// Other backends keep their own breaker.
	got, err := Execute(ctx, m, "translate", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestExecute_CallerCancellationIsNotAFailure(t *testing.T) {
	m := newTestManager()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 3; i++ {
		_, err := Execute(ctx, m, "llm", func(ctx context.Context) (string, error) { return "", ctx.Err() })
		require.ErrorIs(t, err, context.Canceled)
	}

	assert.Equal(t, gobreaker.StateClosed, m.Get("llm").State())
}

func TestHTTPClient_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Api-Key secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"hello"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient("translate", HTTPClientSettings{RetryMax: 0}, newTestManager(), zap.NewNop())

	var out struct {
		Text string `json:"text"`
	}
	err := c.JSON(context.Background(), http.MethodPost, srv.URL, http.Header{"Authorization": {"Api-Key secret"}}, map[string]string{"q": "hi"}, &out)

	require.NoError(t, err)
	assert.Equal(t, "hello", out.Text)
}

func TestHTTPClient_ClientErrorsDoNotTrip(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "bad folder id", http.StatusBadRequest)
	}))
	defer srv.Close()

	m := newTestManager()
	c := NewHTTPClient("ocr", HTTPClientSettings{RetryMax: 2}, m, zap.NewNop())

	for i := 0; i < 3; i++ {
		err := c.JSON(context.Background(), http.MethodGet, srv.URL, nil, nil, nil)
		var extErr *domain.ExternalServiceError
		require.ErrorAs(t, err, &extErr)
		assert.Equal(t, http.StatusBadRequest, extErr.StatusCode)
		assert.Contains(t, extErr.Error(), "bad folder id")
	}

	assert.Equal(t, int32(3), hits.Load(), "4xx is not retried")
	assert.Equal(t, gobreaker.StateClosed, m.Get("ocr").State())
}

func TestHTTPClient_ServerErrorsTrip(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := newTestManager()
	c := NewHTTPClient("tts", HTTPClientSettings{RetryMax: 1, RetryWaitMin: time.Millisecond, RetryWaitMax: time.Millisecond}, m, zap.NewNop())

	for i := 0; i < 2; i++ {
		err := c.JSON(context.Background(), http.MethodGet, srv.URL, nil, nil, nil)
		var extErr *domain.ExternalServiceError
		require.ErrorAs(t, err, &extErr)
		assert.Equal(t, http.StatusBadGateway, extErr.StatusCode)
	}
	assert.Equal(t, int32(4), hits.Load(), "each call is retried once")

	err := c.JSON(context.Background(), http.MethodGet, srv.URL, nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrExternalService)
	assert.True(t, IsCircuitOpen(err))
	assert.Equal(t, int32(4), hits.Load())
}
