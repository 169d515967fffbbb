package rest

import (
	"context"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
)

const providersPath = "/service-providers"

type ProviderClient struct {
	c *Client
}

func NewProviderClient(c *Client) *ProviderClient {
	return &ProviderClient{c: c}
}

var _ ports.ProviderAPI = (*ProviderClient)(nil)

func (p *ProviderClient) List(ctx context.Context) ([]domain.Provider, error) {
	var out []domain.Provider
	if err := p.c.get(ctx, "providers.list", providersPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *ProviderClient) Get(ctx context.Context, id domain.ID) (*domain.Provider, error) {
	var out domain.Provider
	if err := p.c.get(ctx, "providers.get", idPath(providersPath, id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *ProviderClient) Register(ctx context.Context, reg domain.ProviderRegistration) (*domain.Provider, error) {
	var out domain.Provider
	if err := p.c.post(ctx, "providers.register", providersPath, reg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *ProviderClient) Update(ctx context.Context, id domain.ID, reg domain.ProviderRegistration) (*domain.Provider, error) {
	var out domain.Provider
	if err := p.c.put(ctx, "providers.update", idPath(providersPath, id), reg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dashboard returns the provider's own aggregate; the caller must hold
// ROLE_PROVIDER.
func (p *ProviderClient) Dashboard(ctx context.Context) (domain.ProviderDashboard, error) {
	out := domain.ProviderDashboard{}
	if err := p.c.get(ctx, "providers.dashboard", providersPath+"/dashboard", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
