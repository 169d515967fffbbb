package ports

import (
	"context"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
)

// Keys under which the session is persisted.
const (
	TokenKey = "token"
	RolesKey = "userRoles"
)

// TokenStore is the persistent key-value storage of the credential token and
// the denormalized role list. Load methods return an empty value, not an
// error, when the key is absent.
type TokenStore interface {
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	LoadRoles(ctx context.Context) ([]domain.Role, error)
	SaveRoles(ctx context.Context, roles []domain.Role) error
	Clear(ctx context.Context) error
}
