package vault

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVaultServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s.test", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestReadSecrets_KVv2(t *testing.T) {
	srv := newVaultServer(t, `{"data":{"data":{"jwt_secret":"s3cret","openai_api_key":"sk-1","retries":3},"metadata":{"version":2}}}`, http.StatusOK)

	sm, err := NewSecretManager(srv.URL, "s.test")
	require.NoError(t, err)

	secrets, err := sm.ReadSecrets(context.Background(), "secret/data/ai-maga")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"jwt_secret": "s3cret", "openai_api_key": "sk-1"}, secrets)
}

func TestReadSecrets_KVv1(t *testing.T) {
	srv := newVaultServer(t, `{"data":{"hh_token":"tok"}}`, http.StatusOK)

	sm, err := NewSecretManager(srv.URL, "s.test")
	require.NoError(t, err)

	secrets, err := sm.ReadSecrets(context.Background(), "kv/ai-maga")
	require.NoError(t, err)
	assert.Equal(t, "tok", secrets["hh_token"])
}

func TestReadSecrets_NotFound(t *testing.T) {
	srv := newVaultServer(t, `{"errors":[]}`, http.StatusNotFound)

	sm, err := NewSecretManager(srv.URL, "s.test")
	require.NoError(t, err)

	_, err = sm.ReadSecrets(context.Background(), "secret/data/missing")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}
