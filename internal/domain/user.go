package domain

// UserRole selects the intents a user may execute.
type UserRole string

const (
	UserRoleOwner UserRole = "owner"
	UserRoleUser  UserRole = "user"
	UserRoleGuest UserRole = "guest"
)

// User is the authenticated caller behind a request. Identity comes from the
// bearer token; nothing about the user is persisted here.
type User struct {
	ID   string   `json:"id"`
	Name string   `json:"name,omitempty"`
	Role UserRole `json:"role"`
}

// ParseUserRole reports false for unknown roles.
func ParseUserRole(s string) (UserRole, bool) {
	switch UserRole(s) {
	case UserRoleOwner, UserRoleUser, UserRoleGuest:
		return UserRole(s), true
	}
	return "", false
}
