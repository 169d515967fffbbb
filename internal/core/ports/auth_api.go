package ports

import (
	"context"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
)

// SignInResult is what the sign-in endpoint returns on success.
type SignInResult struct {
	AccessToken string           `json:"accessToken"`
	User        *domain.Identity `json:"user"`
}

// AuthAPI is the backend surface the session store talks to. Profile takes
// the token explicitly because it runs before a session exists.
type AuthAPI interface {
	SignIn(ctx context.Context, creds domain.Credentials) (*SignInResult, error)
	SignUp(ctx context.Context, profile domain.Profile) (string, error)
	Profile(ctx context.Context, token string) (*domain.Identity, error)
}
