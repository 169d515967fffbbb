package rest

import (
	"context"
	"net/http"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
)

// AuthClient talks to /auth and /users/profile. It must sit on a pipeline
// without the bearer and unauthorized middlewares: a rejected sign-in is
// not a session teardown.
type AuthClient struct {
	c *Client
}

func NewAuthClient(c *Client) *AuthClient {
	return &AuthClient{c: c}
}

var _ ports.AuthAPI = (*AuthClient)(nil)

func (a *AuthClient) SignIn(ctx context.Context, creds domain.Credentials) (*ports.SignInResult, error) {
	var res ports.SignInResult
	if err := a.c.post(ctx, "auth.signin", "/auth/signin", creds, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *AuthClient) SignUp(ctx context.Context, profile domain.Profile) (string, error) {
	var res messageResponse
	if err := a.c.post(ctx, "auth.signup", "/auth/signup", profile, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

// Profile resolves the identity behind token.
func (a *AuthClient) Profile(ctx context.Context, token string) (*domain.Identity, error) {
	req, err := http.NewRequestWithContext(withOperation(ctx, "users.profile"), http.MethodGet, a.c.baseURL+"/users/profile", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var identity domain.Identity
	if err := a.c.send(req, "users.profile", &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}
