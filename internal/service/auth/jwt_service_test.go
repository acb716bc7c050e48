package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/seu-repo/ai-maga/internal/domain"
)

func newTestJWT(t *testing.T, cfg JWTConfig) *JWTService {
	t.Helper()
	if cfg.Secret == "" {
		cfg.Secret = "test-secret-key"
	}
	svc, err := NewJWTService(cfg, newTestLogger())
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}
	return svc
}

func TestJWT_RoundTrip(t *testing.T) {
	// Arrange
	svc := newTestJWT(t, JWTConfig{Issuer: "ai-maga"})
	user := &domain.User{ID: "user-123", Name: "Маша", Role: domain.UserRoleOwner}

	// Act
	token, err := svc.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	got, err := svc.ValidateToken(context.Background(), token)

	// Assert
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if *got != *user {
		t.Errorf("got %+v, want %+v", got, user)
	}
}

func TestJWT_RejectsBadTokens(t *testing.T) {
	svc := newTestJWT(t, JWTConfig{Issuer: "ai-maga"})
	other := newTestJWT(t, JWTConfig{Secret: "another-secret", Issuer: "ai-maga"})
	wrongIssuer := newTestJWT(t, JWTConfig{Issuer: "someone-else"})
	expired := newTestJWT(t, JWTConfig{Issuer: "ai-maga", TokenTTL: time.Nanosecond})

	user := &domain.User{ID: "u1", Role: domain.UserRoleUser}
	foreign, _ := other.GenerateToken(user)
	misissued, _ := wrongIssuer.GenerateToken(user)
	stale, _ := expired.GenerateToken(user)
	time.Sleep(10 * time.Millisecond)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"wrong issuer": misissued,
		"expired":      stale,
		"alg none":     unsigned,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(context.Background(), token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestJWT_UnknownRoleBecomesGuest(t *testing.T) {
	svc := newTestJWT(t, JWTConfig{})
	token, _ := svc.GenerateToken(&domain.User{ID: "u1", Role: "superuser"})

	got, err := svc.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if got.Role != domain.UserRoleGuest {
		t.Errorf("expected guest, got %s", got.Role)
	}
}

func TestNewJWTService_RequiresSecret(t *testing.T) {
	if _, err := NewJWTService(JWTConfig{}, newTestLogger()); err == nil {
		t.Error("expected error without secret")
	}
}
