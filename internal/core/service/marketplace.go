package service

import (
	"context"
	"strings"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
)

// Marketplace fronts the resource clients. Reads are passed through; writes
// are validated locally first so that invalid input never reaches the
// backend.
type Marketplace struct {
	Services  ports.ServiceAPI
	Providers ports.ProviderAPI
	Requests  ports.ServiceRequestAPI
	Reviews   ports.ReviewAPI

	validator *Validator
}

// NewMarketplace bundles the resource clients.
func NewMarketplace(services ports.ServiceAPI, providers ports.ProviderAPI, requests ports.ServiceRequestAPI, reviews ports.ReviewAPI) *Marketplace {
	return &Marketplace{
		Services:  services,
		Providers: providers,
		Requests:  requests,
		Reviews:   reviews,
		validator: NewValidator(),
	}
}

// SubmitServiceRequest validates the request-service form and submits it.
func (m *Marketplace) SubmitServiceRequest(ctx context.Context, form domain.ServiceRequestForm) (*domain.ServiceRequest, error) {
	form.Description = strings.TrimSpace(form.Description)
	form.Address = strings.TrimSpace(form.Address)
	form.City = strings.TrimSpace(form.City)
	form.ZipCode = strings.TrimSpace(form.ZipCode)
	if err := m.validator.Validate(form); err != nil {
		return nil, err
	}
	return m.Requests.Create(ctx, form)
}

// UpdateRequestStatus moves a request to status.
func (m *Marketplace) UpdateRequestStatus(ctx context.Context, id domain.ID, status domain.ServiceRequestStatus) (*domain.ServiceRequest, error) {
	switch status {
	case domain.RequestPending, domain.RequestAccepted, domain.RequestInProgress,
		domain.RequestCompleted, domain.RequestCancelled, domain.RequestRejected:
	default:
		return nil, &domain.ValidationError{Fields: map[string]string{
			"status": "status must be one of: PENDING ACCEPTED IN_PROGRESS COMPLETED CANCELLED REJECTED",
		}}
	}
	return m.Requests.UpdateStatus(ctx, id, status)
}

// SubmitReview validates and posts a review.
func (m *Marketplace) SubmitReview(ctx context.Context, r domain.Review) (*domain.Review, error) {
	if err := m.validator.Validate(r); err != nil {
		return nil, err
	}
	return m.Reviews.Submit(ctx, r)
}

// UpdateReview validates and submits an edited review.
func (m *Marketplace) UpdateReview(ctx context.Context, id domain.ID, r domain.Review) (*domain.Review, error) {
	if err := m.validator.Validate(r); err != nil {
		return nil, err
	}
	return m.Reviews.Update(ctx, id, r)
}

// CancelRequest cancels a request with an optional reason.
func (m *Marketplace) CancelRequest(ctx context.Context, id domain.ID, reason string) (*domain.ServiceRequest, error) {
	return m.Requests.Cancel(ctx, id, strings.TrimSpace(reason))
}

// RegisterProvider validates and submits a provider registration.
func (m *Marketplace) RegisterProvider(ctx context.Context, reg domain.ProviderRegistration) (*domain.Provider, error) {
	if err := m.validator.Validate(reg); err != nil {
		return nil, err
	}
	return m.Providers.Register(ctx, reg)
}

// UpdateProvider validates and submits a provider profile update.
func (m *Marketplace) UpdateProvider(ctx context.Context, id domain.ID, reg domain.ProviderRegistration) (*domain.Provider, error) {
	if err := m.validator.Validate(reg); err != nil {
		return nil, err
	}
	return m.Providers.Update(ctx, id, reg)
}

// CreateService validates and creates a service listing.
func (m *Marketplace) CreateService(ctx context.Context, s domain.Service) (*domain.Service, error) {
	if err := m.validator.Validate(s); err != nil {
		return nil, err
	}
	return m.Services.Create(ctx, s)
}

// UpdateService validates and updates a service listing.
func (m *Marketplace) UpdateService(ctx context.Context, id domain.ID, s domain.Service) (*domain.Service, error) {
	if err := m.validator.Validate(s); err != nil {
		return nil, err
	}
	return m.Services.Update(ctx, id, s)
}

// SearchServices returns every service for an empty query.
func (m *Marketplace) SearchServices(ctx context.Context, query string) ([]domain.Service, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return m.Services.List(ctx)
	}
	return m.Services.Search(ctx, query)
}
