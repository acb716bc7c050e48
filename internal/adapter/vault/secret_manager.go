package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/vault/api"
)

var ErrSecretNotFound = errors.New("vault: secret not found")

// SecretManager reads service credentials from Vault so they can stay out of
// config files and the environment.
type SecretManager struct {
	client *api.Client
}

// NewSecretManager creates a client for address authenticated with token.
func NewSecretManager(address, token string) (*SecretManager, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, err
	}

	client.SetToken(token)

	return &SecretManager{client: client}, nil
}

// ReadSecrets returns the string fields stored at path. KV v2 paths
// ("secret/data/...") are unwrapped; non-string fields are skipped.
func (sm *SecretManager) ReadSecrets(ctx context.Context, path string) (map[string]string, error) {
	secret, err := sm.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, err
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrSecretNotFound)
	}

	data := secret.Data
	if inner, ok := data["data"].(map[string]interface{}); ok {
		data = inner
	}

	out := make(map[string]string, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, nil
}
