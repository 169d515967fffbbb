package rest

import (
	"context"
	"net/http"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
)

const requestsPath = "/service-requests"

type ServiceRequestClient struct {
	c *Client
}

func NewServiceRequestClient(c *Client) *ServiceRequestClient {
	return &ServiceRequestClient{c: c}
}

var _ ports.ServiceRequestAPI = (*ServiceRequestClient)(nil)

func (r *ServiceRequestClient) list(ctx context.Context, op, path string) ([]domain.ServiceRequest, error) {
	var out []domain.ServiceRequest
	if err := r.c.get(ctx, op, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ServiceRequestClient) one(ctx context.Context, op, method, path string, in any) (*domain.ServiceRequest, error) {
	var out domain.ServiceRequest
	if err := r.c.call(ctx, op, method, path, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *ServiceRequestClient) List(ctx context.Context) ([]domain.ServiceRequest, error) {
	return r.list(ctx, "requests.list", requestsPath)
}

func (r *ServiceRequestClient) ForUser(ctx context.Context) ([]domain.ServiceRequest, error) {
	return r.list(ctx, "requests.user", requestsPath+"/user")
}

func (r *ServiceRequestClient) ForProvider(ctx context.Context) ([]domain.ServiceRequest, error) {
	return r.list(ctx, "requests.provider", requestsPath+"/provider")
}

func (r *ServiceRequestClient) Get(ctx context.Context, id domain.ID) (*domain.ServiceRequest, error) {
	return r.one(ctx, "requests.get", http.MethodGet, idPath(requestsPath, id), nil)
}

func (r *ServiceRequestClient) Create(ctx context.Context, form domain.ServiceRequestForm) (*domain.ServiceRequest, error) {
	return r.one(ctx, "requests.create", http.MethodPost, requestsPath, form)
}

func (r *ServiceRequestClient) UpdateStatus(ctx context.Context, id domain.ID, status domain.ServiceRequestStatus) (*domain.ServiceRequest, error) {
	body := map[string]domain.ServiceRequestStatus{"status": status}
	return r.one(ctx, "requests.status", http.MethodPut, idPath(requestsPath, id, "status"), body)
}

func (r *ServiceRequestClient) Cancel(ctx context.Context, id domain.ID, reason string) (*domain.ServiceRequest, error) {
	body := map[string]string{"reason": reason}
	return r.one(ctx, "requests.cancel", http.MethodPut, idPath(requestsPath, id, "cancel"), body)
}

func (r *ServiceRequestClient) Complete(ctx context.Context, id domain.ID) (*domain.ServiceRequest, error) {
	return r.one(ctx, "requests.complete", http.MethodPut, idPath(requestsPath, id, "complete"), nil)
}
