package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the bearer token claims issued to device clients.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
	Name string `json:"name,omitempty"`
}

// JWTConfig holds the HS256 secret, the issuer and the lifetime of issued tokens.
type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// JWTService issues and validates HS256 bearer tokens. It implements
// ports.TokenValidator.
type JWTService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	log    *zap.Logger
}

// NewJWTService requires a secret; TokenTTL defaults to 24h.
func NewJWTService(cfg JWTConfig, log *zap.Logger) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}

	log.Info("JWT service initialized",
		zap.String("issuer", cfg.Issuer),
		zap.Duration("token_ttl", cfg.TokenTTL),
	)

	return &JWTService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TokenTTL,
		log:    log,
	}, nil
}

// GenerateToken signs a token carrying the user's id, role and display name.
func (s *JWTService) GenerateToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Role: string(user.Role),
		Name: user.Name,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		s.log.Error("failed to sign token", zap.String("user_id", user.ID), zap.Error(err))
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	s.log.Debug("token generated", zap.String("user_id", user.ID), zap.String("jti", claims.ID))
	return signed, nil
}

// ValidateToken checks signature, expiry and issuer and returns the subject.
func (s *JWTService) ValidateToken(_ context.Context, tokenString string) (*domain.User, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		s.log.Debug("token validation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	role, ok := domain.ParseUserRole(claims.Role)
	if !ok {
		role = domain.UserRoleGuest
	}

	return &domain.User{ID: claims.Subject, Name: claims.Name, Role: role}, nil
}
