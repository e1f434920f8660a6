package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"

	"kidboost.app/internal/ids"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 14

	// Supabase-compatible minimum. Shorter passwords are rejected at signup.
	minPasswordLength = 6
)

// Service implements the identity flows: signup with email confirmation,
// credential login, refresh token rotation and session introspection.
type Service struct {
	store      Store
	now        func() time.Time
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	svc := &Service{
		store:      store,
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// SignupResult carries the new account plus the raw confirmation token.
// The token is returned instead of emailed; the caller decides delivery.
type SignupResult struct {
	User         User
	ConfirmToken string
}

// Signup registers a pending account. The account cannot log in until the
// confirmation token is redeemed via ConfirmSignup.
func (s *Service) Signup(ctx context.Context, email, password string, meta UserMetadata) (SignupResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return SignupResult{}, ErrInvalidInput
	}
	if len(password) < minPasswordLength {
		return SignupResult{}, ErrInvalidInput
	}
	if meta.Role == "" {
		meta.Role = RoleParent
	}
	if !meta.Role.Valid() {
		return SignupResult{}, ErrInvalidInput
	}
	if meta.Role == RoleChild && strings.TrimSpace(meta.ParentID) == "" {
		return SignupResult{}, ErrInvalidInput
	}

	hash, err := HashPassword(password)
	if err != nil {
		return SignupResult{}, err
	}
	confirmToken, confirmHash, err := generateSecret()
	if err != nil {
		return SignupResult{}, err
	}

	now := s.now().UTC()
	user := User{
		ID:               ids.New(),
		Email:            email,
		PasswordHash:     hash,
		Status:           StatusPending,
		Metadata:         meta,
		ConfirmTokenHash: confirmHash,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return SignupResult{}, err
	}
	return SignupResult{User: user, ConfirmToken: confirmToken}, nil
}

// ConfirmSignup redeems a confirmation token and activates the account.
// Redeeming an already-used token yields ErrInvalidToken.
func (s *Service) ConfirmSignup(ctx context.Context, token string) (User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return User{}, ErrInvalidToken
	}
	sum := sha256.Sum256([]byte(token))
	users := s.store.Users(ctx)
	user, err := users.FindByConfirmToken(ctx, hex.EncodeToString(sum[:]))
	if err != nil {
		return User{}, ErrInvalidToken
	}
	if err := users.Activate(ctx, user.ID); err != nil {
		return User{}, err
	}
	return users.Find(ctx, user.ID)
}

// Login authenticates credentials and mints a token pair. Pending accounts
// are refused with ErrNotConfirmed, everything else that fails maps to
// ErrUnauthorized so callers cannot probe which emails exist.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, User{}, ErrUnauthorized
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, User{}, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, User{}, ErrUnauthorized
	}
	if user.Status != StatusActive {
		return TokenPair{}, User{}, ErrNotConfirmed
	}
	pair, err := s.mintTokens(ctx, user)
	if err != nil {
		return TokenPair{}, User{}, err
	}
	return pair, user, nil
}

// Refresh rotates the refresh token and issues new access credentials. A
// presented secret that does not match the stored hash revokes the record.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, User, error) {
	tokenID, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, User{}, ErrInvalidToken
	}

	store := s.store.RefreshTokens(ctx)
	record, err := store.Find(ctx, tokenID)
	if err != nil {
		return TokenPair{}, User{}, ErrInvalidToken
	}
	if record.Revoked || s.now().After(record.ExpiresAt) {
		return TokenPair{}, User{}, ErrInvalidToken
	}
	if !secureCompareHash(record.TokenHash, secret) {
		_ = store.MarkRevoked(ctx, record.ID)
		return TokenPair{}, User{}, ErrInvalidToken
	}

	user, err := s.store.Users(ctx).Find(ctx, record.UserID)
	if err != nil {
		return TokenPair{}, User{}, ErrInvalidToken
	}

	// Rotate: revoke old, issue new pair.
	if err := store.MarkRevoked(ctx, record.ID); err != nil {
		return TokenPair{}, User{}, err
	}
	pair, err := s.mintTokens(ctx, user)
	if err != nil {
		return TokenPair{}, User{}, err
	}
	return pair, user, nil
}

// Logout revokes every outstanding refresh token for the user. Access tokens
// already issued stay valid until they expire.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidInput
	}
	return s.store.RefreshTokens(ctx).MarkRevokedByUser(ctx, userID)
}

// Session returns the metadata view of a signed-in user.
func (s *Service) Session(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: user.ID, Email: user.Email, Metadata: user.Metadata}, nil
}

// UpdateMetadata replaces the user's metadata. Role and parent linkage are
// immutable after signup; attempts to change them are rejected.
func (s *Service) UpdateMetadata(ctx context.Context, userID string, meta UserMetadata) (User, error) {
	users := s.store.Users(ctx)
	user, err := users.Find(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if meta.Role == "" {
		meta.Role = user.Metadata.Role
	}
	if meta.ParentID == "" {
		meta.ParentID = user.Metadata.ParentID
	}
	if meta.Role != user.Metadata.Role || meta.ParentID != user.Metadata.ParentID {
		return User{}, ErrInvalidInput
	}
	return users.UpdateMetadata(ctx, userID, meta)
}

// Authenticate validates an access token and returns its claims.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := ParseAndValidate(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if _, err := s.store.Users(ctx).Find(ctx, claims.Subject); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return claims, nil
}

func (s *Service) mintTokens(ctx context.Context, user User) (TokenPair, error) {
	now := s.now().UTC()
	accessToken, err := GenerateToken(user.ID, user.Metadata, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refreshString, refreshRec, err := s.generateRefreshToken(user.ID, now)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.RefreshTokens(ctx).Create(ctx, refreshRec); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshString,
		AccessExpiresAt:  now.Add(s.accessTTL),
		RefreshExpiresAt: refreshRec.ExpiresAt,
	}, nil
}

func (s *Service) generateRefreshToken(userID string, now time.Time) (string, RefreshToken, error) {
	secret, hash, err := generateSecret()
	if err != nil {
		return "", RefreshToken{}, err
	}
	tokenID := ids.New()
	rec := RefreshToken{
		ID:        tokenID,
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	return tokenID + "." + secret, rec, nil
}

// generateSecret returns a random secret and the hex sha256 hash stored at rest.
func generateSecret() (secret, hash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	secret = base64.RawURLEncoding.EncodeToString(raw)
	sum := sha256.Sum256([]byte(secret))
	return secret, hex.EncodeToString(sum[:]), nil
}

func splitRefreshToken(raw string) (id, secret string, err error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid refresh token format")
	}
	return parts[0], parts[1], nil
}

func secureCompareHash(expectedHash, secret string) bool {
	sum := sha256.Sum256([]byte(secret))
	actual := hex.EncodeToString(sum[:])
	if len(expectedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expectedHash), []byte(actual)) == 1
}
