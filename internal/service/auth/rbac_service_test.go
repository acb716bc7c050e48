package auth

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func TestCanExecute_RoleMatrix(t *testing.T) {
	svc := NewRBACService(RBACConfig{}, newTestLogger())

	tests := []struct {
		role   domain.UserRole
		intent domain.Intent
		want   bool
	}{
		{domain.UserRoleOwner, domain.IntentOpenApp, true},
		{domain.UserRoleOwner, domain.IntentClipboardRead, true},
		{domain.UserRoleUser, domain.IntentHHSearch, true},
		{domain.UserRoleUser, domain.IntentOCRTranslate, true},
		{domain.UserRoleUser, domain.IntentOpenApp, false},
		{domain.UserRoleUser, domain.IntentClipboardRead, false},
		{domain.UserRoleGuest, domain.IntentChatAnswer, true},
		{domain.UserRoleGuest, domain.IntentPause, true},
		{domain.UserRoleGuest, domain.IntentHHSearch, false},
		{domain.UserRoleGuest, domain.IntentRemind, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.intent), func(t *testing.T) {
			// Arrange
			ctx := WithUser(context.Background(), &domain.User{ID: "u1", Role: tt.role})

			// Act
			got, err := svc.CanExecute(ctx, "u1", tt.intent)

			// Assert
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CanExecute(%s, %s) = %v, want %v", tt.role, tt.intent, got, tt.want)
			}
		})
	}
}

func TestCanExecute_Allowlist(t *testing.T) {
	// Arrange
	svc := NewRBACService(RBACConfig{AllowedUsers: []string{"owner-1"}, Roles: map[string]string{"owner-1": "owner"}}, newTestLogger())
	ctx := context.Background()

	// Act
	allowed, _ := svc.CanExecute(ctx, "owner-1", domain.IntentOpenApp)
	stranger, _ := svc.CanExecute(ctx, "stranger", domain.IntentChatAnswer)

	// Assert
	if !allowed {
		t.Error("expected listed owner to be allowed")
	}
	if stranger {
		t.Error("expected unlisted user to be denied even for chat")
	}
}

func TestCanExecute_RoleResolution(t *testing.T) {
	svc := NewRBACService(RBACConfig{
		Roles:       map[string]string{"guest-1": "guest", "bad": "superuser"},
		DefaultRole: "user",
	}, newTestLogger())

	// Configured role applies when the context carries no user.
	if ok, _ := svc.CanExecute(context.Background(), "guest-1", domain.IntentHHSearch); ok {
		t.Error("expected configured guest to be denied hh_search")
	}

	// Unknown roles in config fall through to the default.
	if ok, _ := svc.CanExecute(context.Background(), "bad", domain.IntentHHSearch); !ok {
		t.Error("expected default role user to allow hh_search")
	}

	// A context user for a different id is ignored.
	ctx := WithUser(context.Background(), &domain.User{ID: "other", Role: domain.UserRoleOwner})
	if ok, _ := svc.CanExecute(ctx, "guest-1", domain.IntentHHSearch); ok {
		t.Error("expected role of another user not to leak")
	}
}

func TestIntents_Guest(t *testing.T) {
	svc := NewRBACService(RBACConfig{}, newTestLogger())

	got := svc.Intents(domain.UserRoleGuest)

	if len(got) != 9 {
		t.Fatalf("expected 9 guest intents, got %d: %v", len(got), got)
	}
	if got[0] != domain.IntentWake {
		t.Errorf("expected declaration order, first = %s", got[0])
	}
}
