package middleware

import (
	"context"

	"github.com/angelmondragon/qrcatalog-backend/pkg/enums"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// Identity is the authenticated caller as read from the bearer token.
type Identity struct {
	UserID string
	Role   enums.UserRole
	Email  string
}

// WithIdentity stores the caller on ctx. Controller tests use it to skip token checks.
func WithIdentity(ctx context.Context, userID string, role enums.UserRole, email string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, Identity{UserID: userID, Role: role, Email: email})
}

// IdentityFromContext returns the zero Identity for anonymous requests.
func IdentityFromContext(ctx context.Context) Identity {
	if ctx == nil {
		return Identity{}
	}
	id, _ := ctx.Value(ctxIdentity).(Identity)
	return id
}

func UserIDFromContext(ctx context.Context) string { return IdentityFromContext(ctx).UserID }

func RoleFromContext(ctx context.Context) enums.UserRole { return IdentityFromContext(ctx).Role }

func EmailFromContext(ctx context.Context) string { return IdentityFromContext(ctx).Email }
