package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	setTestSecret(t)
	svc, err := NewService(NewMemStore(), opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func signupActiveUser(t *testing.T, svc *Service, email string, meta UserMetadata) User {
	t.Helper()
	ctx := context.Background()
	res, err := svc.Signup(ctx, email, "secret123", meta)
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	user, err := svc.ConfirmSignup(ctx, res.ConfirmToken)
	if err != nil {
		t.Fatalf("ConfirmSignup: %v", err)
	}
	return user
}

func TestSignupConfirmLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	res, err := svc.Signup(ctx, "Parent@Example.com", "secret123", UserMetadata{Name: "Dana", Role: RoleParent})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if res.User.Status != StatusPending {
		t.Fatalf("expected pending status, got %s", res.User.Status)
	}
	if res.User.Email != "parent@example.com" {
		t.Fatalf("email was not normalized: %s", res.User.Email)
	}
	if res.ConfirmToken == "" {
		t.Fatalf("expected a confirmation token")
	}

	// Login before confirmation is refused with the dedicated error.
	if _, _, err := svc.Login(ctx, "parent@example.com", "secret123"); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}

	user, err := svc.ConfirmSignup(ctx, res.ConfirmToken)
	if err != nil {
		t.Fatalf("ConfirmSignup: %v", err)
	}
	if user.Status != StatusActive {
		t.Fatalf("expected active status, got %s", user.Status)
	}

	// Confirmation tokens are single use.
	if _, err := svc.ConfirmSignup(ctx, res.ConfirmToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected reused token to fail, got %v", err)
	}

	pair, loggedIn, err := svc.Login(ctx, "parent@example.com", "secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Fatalf("login returned wrong user")
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", pair)
	}

	claims, err := svc.Authenticate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if claims.Subject != user.ID || claims.Name != "Dana" || claims.Role != "parent" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestSignupValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		email    string
		password string
		meta     UserMetadata
	}{
		{"bad email", "not-an-email", "secret123", UserMetadata{}},
		{"short password", "a@b.test", "12345", UserMetadata{}},
		{"unknown role", "a@b.test", "secret123", UserMetadata{Role: "admin"}},
		{"child without parent", "a@b.test", "secret123", UserMetadata{Role: RoleChild}},
	}
	for _, tc := range cases {
		if _, err := svc.Signup(ctx, tc.email, tc.password, tc.meta); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}

	if _, err := svc.Signup(ctx, "dup@b.test", "secret123", UserMetadata{}); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if _, err := svc.Signup(ctx, "DUP@b.test", "secret123", UserMetadata{}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for duplicate email, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t)
	signupActiveUser(t, svc, "p@example.com", UserMetadata{Role: RoleParent})

	if _, _, err := svc.Login(context.Background(), "p@example.com", "wrong-pass"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "missing@example.com", "secret123"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown email, got %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	signupActiveUser(t, svc, "p@example.com", UserMetadata{Role: RoleParent})

	pair, _, err := svc.Login(ctx, "p@example.com", "secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	next, _, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	// The consumed token is revoked and cannot be replayed.
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected replay to fail, got %v", err)
	}

	// The rotated token still works.
	if _, _, err := svc.Refresh(ctx, next.RefreshToken); err != nil {
		t.Fatalf("Refresh rotated token: %v", err)
	}
}

func TestRefreshExpired(t *testing.T) {
	current := time.Now().UTC()
	svc := newTestService(t,
		WithRefreshTTL(time.Hour),
		WithClock(func() time.Time { return current }),
	)
	ctx := context.Background()
	signupActiveUser(t, svc, "p@example.com", UserMetadata{Role: RoleParent})

	pair, _, err := svc.Login(ctx, "p@example.com", "secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	current = current.Add(2 * time.Hour)
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired refresh to fail, got %v", err)
	}
}

func TestLogoutRevokesRefreshTokens(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	user := signupActiveUser(t, svc, "p@example.com", UserMetadata{Role: RoleParent})

	pair, _, err := svc.Login(ctx, "p@example.com", "secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Logout(ctx, user.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked refresh to fail, got %v", err)
	}
}

func TestUpdateMetadata(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	user := signupActiveUser(t, svc, "p@example.com", UserMetadata{Name: "Old", Role: RoleParent})

	updated, err := svc.UpdateMetadata(ctx, user.ID, UserMetadata{Name: "New", Avatar: "https://example.com/n.png"})
	if err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}
	if updated.Metadata.Name != "New" || updated.Metadata.Avatar != "https://example.com/n.png" {
		t.Fatalf("metadata was not updated: %+v", updated.Metadata)
	}
	if updated.Metadata.Role != RoleParent {
		t.Fatalf("role should be preserved when omitted, got %q", updated.Metadata.Role)
	}

	// Role changes after signup are rejected.
	if _, err := svc.UpdateMetadata(ctx, user.ID, UserMetadata{Role: RoleChild, ParentID: "someone"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected role change to fail, got %v", err)
	}

	sess, err := svc.Session(ctx, user.ID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if sess.Metadata.Name != "New" || sess.Email != "p@example.com" {
		t.Fatalf("unexpected session: %+v", sess)
	}
}
