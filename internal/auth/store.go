package auth

import (
	"context"
	"time"
)

// UserStore persists identity records.
type UserStore interface {
	Create(ctx context.Context, u User) error
	Find(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	// FindByConfirmToken looks up a pending user by the hash of its
	// confirmation token.
	FindByConfirmToken(ctx context.Context, tokenHash string) (User, error)
	// Activate marks the user active and clears the confirmation token.
	Activate(ctx context.Context, id string) error
	UpdateMetadata(ctx context.Context, id string, meta UserMetadata) (User, error)
}

// RefreshTokenStore persists refresh credentials. Only token hashes are
// stored; the raw secret never touches the database.
type RefreshTokenStore interface {
	Create(ctx context.Context, t RefreshToken) error
	Find(ctx context.Context, id string) (RefreshToken, error)
	MarkRevoked(ctx context.Context, id string) error
	MarkRevokedByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Store fans out to the per-entity stores backing the identity service.
type Store interface {
	Users(ctx context.Context) UserStore
	RefreshTokens(ctx context.Context) RefreshTokenStore
}
