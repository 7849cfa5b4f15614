package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/ministeam/ministeam-api/pkg/enums"
	pkgerrors "github.com/ministeam/ministeam-api/pkg/errors"
)

type principalKey struct{}

// principal is the caller Auth resolved from the access token. Values stay
// raw strings until Actor parses them.
type principal struct {
	userID string
	role   string
}

func principalFrom(ctx context.Context) principal {
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

func WithUserID(ctx context.Context, userID string) context.Context {
	p := principalFrom(ctx)
	p.userID = userID
	return context.WithValue(ctx, principalKey{}, p)
}

func WithRole(ctx context.Context, role string) context.Context {
	p := principalFrom(ctx)
	p.role = role
	return context.WithValue(ctx, principalKey{}, p)
}

func UserIDFromContext(ctx context.Context) string {
	return principalFrom(ctx).userID
}

func RoleFromContext(ctx context.Context) string {
	return principalFrom(ctx).role
}

// Actor returns the authenticated caller. Handlers behind Auth call it first
// and return its error unchanged.
func Actor(ctx context.Context) (uuid.UUID, enums.UserRole, error) {
	p := principalFrom(ctx)
	if p.userID == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	id, err := uuid.Parse(p.userID)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user context")
	}
	role, err := enums.ParseUserRole(p.role)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid role context")
	}
	return id, role, nil
}
