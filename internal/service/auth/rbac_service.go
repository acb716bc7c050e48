package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
)

type ctxKey struct{}

// WithUser stores the authenticated caller on ctx so the authorizer can read
// its role without another lookup.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// UserFromContext returns the user stored by WithUser.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(ctxKey{}).(*domain.User)
	return user, ok && user != nil
}

// RBACConfig restricts and assigns roles per user id.
type RBACConfig struct {
	// AllowedUsers restricts execution to the listed user ids. Empty allows anyone.
	AllowedUsers []string `mapstructure:"allowed_users"`
	// Roles assigns a role to known user ids when the request carries none.
	Roles       map[string]string `mapstructure:"roles"`
	DefaultRole string            `mapstructure:"default_role"`
}

var systemIntents = []domain.Intent{
	domain.IntentWake, domain.IntentSleep, domain.IntentPause,
	domain.IntentResume, domain.IntentSetLang, domain.IntentSetVolume,
}

// deviceIntents touch the owner's machine directly.
var deviceIntents = []domain.Intent{domain.IntentOpenApp, domain.IntentClipboardRead}

// RBACService maps user roles to the intents they may execute and implements
// ports.Authorizer.
type RBACService struct {
	grants      map[domain.UserRole]map[domain.Intent]bool
	allowed     map[string]bool
	roles       map[string]domain.UserRole
	defaultRole domain.UserRole
	log         *zap.Logger
}

// NewRBACService builds the role table.
//
// Roles:
//   - "owner" : every intent
//   - "user"  : every intent except the ones driving the desktop (open_app, clipboard_read)
//   - "guest" : system commands plus chat_answer, summarize and read_aloud
func NewRBACService(cfg RBACConfig, log *zap.Logger) *RBACService {
	grants := map[domain.UserRole]map[domain.Intent]bool{
		domain.UserRoleOwner: grant(domain.AllIntents()...),
		domain.UserRoleUser:  grant(domain.AllIntents()...),
		domain.UserRoleGuest: grant(append([]domain.Intent{
			domain.IntentChatAnswer, domain.IntentSummarize, domain.IntentReadAloud,
		}, systemIntents...)...),
	}
	for _, intent := range deviceIntents {
		delete(grants[domain.UserRoleUser], intent)
	}

	allowed := make(map[string]bool, len(cfg.AllowedUsers))
	for _, id := range cfg.AllowedUsers {
		allowed[id] = true
	}

	roles := make(map[string]domain.UserRole, len(cfg.Roles))
	for id, name := range cfg.Roles {
		role, ok := domain.ParseUserRole(name)
		if !ok {
			log.Warn("Ignoring unknown role in config", zap.String("user_id", id), zap.String("role", name))
			continue
		}
		roles[id] = role
	}

	defaultRole, ok := domain.ParseUserRole(cfg.DefaultRole)
	if !ok {
		defaultRole = domain.UserRoleUser
	}

	log.Info("RBAC service initialized",
		zap.Int("roles", len(grants)),
		zap.Int("allowed_users", len(allowed)),
		zap.String("default_role", string(defaultRole)),
	)

	return &RBACService{
		grants:      grants,
		allowed:     allowed,
		roles:       roles,
		defaultRole: defaultRole,
		log:         log,
	}
}

func grant(intents ...domain.Intent) map[domain.Intent]bool {
	out := make(map[domain.Intent]bool, len(intents))
	for _, i := range intents {
		out[i] = true
	}
	return out
}

// CanExecute reports whether userID may run intent. Users outside a non-empty
// allowlist are denied; otherwise the role from the request context, the
// configured roles or the default role decides. The error is always nil.
func (s *RBACService) CanExecute(ctx context.Context, userID string, intent domain.Intent) (bool, error) {
	if len(s.allowed) > 0 && !s.allowed[userID] {
		s.log.Warn("user not in allowlist",
			zap.String("user_id", userID),
			zap.String("intent", string(intent)),
		)
		return false, nil
	}

	role := s.roleOf(ctx, userID)
	if s.grants[role][intent] {
		s.log.Debug("permission granted",
			zap.String("user_id", userID),
			zap.String("role", string(role)),
			zap.String("intent", string(intent)),
		)
		return true, nil
	}

	s.log.Warn("permission denied",
		zap.String("user_id", userID),
		zap.String("role", string(role)),
		zap.String("intent", string(intent)),
	)
	return false, nil
}

// Intents lists what role may execute, in declaration order.
func (s *RBACService) Intents(role domain.UserRole) []domain.Intent {
	var out []domain.Intent
	for _, intent := range domain.AllIntents() {
		if s.grants[role][intent] {
			out = append(out, intent)
		}
	}
	return out
}

func (s *RBACService) roleOf(ctx context.Context, userID string) domain.UserRole {
	if user, ok := UserFromContext(ctx); ok && user.ID == userID && user.Role != "" {
		return user.Role
	}
	if role, ok := s.roles[userID]; ok {
		return role
	}
	return s.defaultRole
}
