package auth

import "time"

// Role distinguishes the two account kinds the tracker knows about.
type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// Valid reports whether the role is one of the known account kinds.
func (r Role) Valid() bool {
	return r == RoleParent || r == RoleChild
}

// Account statuses. Signup leaves an account pending until the emailed
// confirmation token is redeemed.
const (
	StatusPending = "pending"
	StatusActive  = "active"
)

// UserMetadata is caller-supplied data attached to an identity at signup.
// ParentID is carried as-is for child accounts; nothing enforces that it
// references a parent-role user.
type UserMetadata struct {
	Name     string `json:"name,omitempty"`
	Role     Role   `json:"role,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// User is an identity record owned by the service.
type User struct {
	ID               string
	Email            string
	PasswordHash     string
	Status           string
	Metadata         UserMetadata
	ConfirmTokenHash string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RefreshToken is a persisted, rotatable refresh credential.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// TokenPair is what a successful login or refresh yields.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Session is the metadata view of the signed-in identity, the raw material
// for the client's application-user derivation.
type Session struct {
	UserID   string       `json:"user_id"`
	Email    string       `json:"email"`
	Metadata UserMetadata `json:"metadata"`
}
