package rest

import (
	"context"
	"net/url"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
)

const servicesPath = "/services"

type ServiceClient struct {
	c *Client
}

func NewServiceClient(c *Client) *ServiceClient {
	return &ServiceClient{c: c}
}

var _ ports.ServiceAPI = (*ServiceClient)(nil)

func (s *ServiceClient) List(ctx context.Context) ([]domain.Service, error) {
	var out []domain.Service
	if err := s.c.get(ctx, "services.list", servicesPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ServiceClient) Get(ctx context.Context, id domain.ID) (*domain.Service, error) {
	var out domain.Service
	if err := s.c.get(ctx, "services.get", idPath(servicesPath, id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ServiceClient) Create(ctx context.Context, svc domain.Service) (*domain.Service, error) {
	var out domain.Service
	if err := s.c.post(ctx, "services.create", servicesPath, svc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ServiceClient) Update(ctx context.Context, id domain.ID, svc domain.Service) (*domain.Service, error) {
	var out domain.Service
	if err := s.c.put(ctx, "services.update", idPath(servicesPath, id), svc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ServiceClient) Delete(ctx context.Context, id domain.ID) error {
	return s.c.delete(ctx, "services.delete", idPath(servicesPath, id))
}

func (s *ServiceClient) Search(ctx context.Context, query string) ([]domain.Service, error) {
	var out []domain.Service
	if err := s.c.get(ctx, "services.search", servicesPath+"/search", url.Values{"query": {query}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ServiceClient) ByCategory(ctx context.Context, category string) ([]domain.Service, error) {
	var out []domain.Service
	path := servicesPath + "/category/" + url.PathEscape(category)
	if err := s.c.get(ctx, "services.category", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
