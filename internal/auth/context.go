package auth

import (
	"context"
	"strings"
)

type ctxKey string

const (
	userIDKey   ctxKey = "auth_user_id"
	roleKey     ctxKey = "auth_role"
	parentIDKey ctxKey = "auth_parent_id"
)

// ContextWithUser stores the authenticated identity in the context.
func ContextWithUser(ctx context.Context, userID string, role Role, parentID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, strings.TrimSpace(userID))
	if role.Valid() {
		ctx = context.WithValue(ctx, roleKey, role)
	}
	if parentID = strings.TrimSpace(parentID); parentID != "" {
		ctx = context.WithValue(ctx, parentIDKey, parentID)
	}
	return ctx
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// RoleFromContext returns the authenticated user's role, if any.
func RoleFromContext(ctx context.Context) (Role, bool) {
	v, ok := ctx.Value(roleKey).(Role)
	if !ok || !v.Valid() {
		return "", false
	}
	return v, true
}

// ParentIDFromContext returns the parent id attached to a child identity.
func ParentIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(parentIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// IsParent reports whether the context carries a parent-role identity.
func IsParent(ctx context.Context) bool {
	role, ok := RoleFromContext(ctx)
	return ok && role == RoleParent
}
