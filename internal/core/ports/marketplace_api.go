package ports

import (
	"context"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
)

// ServiceAPI covers /services.
type ServiceAPI interface {
	List(ctx context.Context) ([]domain.Service, error)
	Get(ctx context.Context, id domain.ID) (*domain.Service, error)
	Create(ctx context.Context, s domain.Service) (*domain.Service, error)
	Update(ctx context.Context, id domain.ID, s domain.Service) (*domain.Service, error)
	Delete(ctx context.Context, id domain.ID) error
	Search(ctx context.Context, query string) ([]domain.Service, error)
	ByCategory(ctx context.Context, category string) ([]domain.Service, error)
}

// ProviderAPI covers /service-providers.
type ProviderAPI interface {
	List(ctx context.Context) ([]domain.Provider, error)
	Get(ctx context.Context, id domain.ID) (*domain.Provider, error)
	Register(ctx context.Context, reg domain.ProviderRegistration) (*domain.Provider, error)
	Update(ctx context.Context, id domain.ID, reg domain.ProviderRegistration) (*domain.Provider, error)
	Dashboard(ctx context.Context) (domain.ProviderDashboard, error)
}

// ServiceRequestAPI covers /service-requests.
type ServiceRequestAPI interface {
	List(ctx context.Context) ([]domain.ServiceRequest, error)
	Get(ctx context.Context, id domain.ID) (*domain.ServiceRequest, error)
	Create(ctx context.Context, form domain.ServiceRequestForm) (*domain.ServiceRequest, error)
	UpdateStatus(ctx context.Context, id domain.ID, status domain.ServiceRequestStatus) (*domain.ServiceRequest, error)
	ForUser(ctx context.Context) ([]domain.ServiceRequest, error)
	ForProvider(ctx context.Context) ([]domain.ServiceRequest, error)
	Cancel(ctx context.Context, id domain.ID, reason string) (*domain.ServiceRequest, error)
	Complete(ctx context.Context, id domain.ID) (*domain.ServiceRequest, error)
}

// ReviewAPI covers /reviews.
type ReviewAPI interface {
	ForProvider(ctx context.Context, providerID domain.ID) ([]domain.Review, error)
	ForService(ctx context.Context, serviceID domain.ID) ([]domain.Review, error)
	ForUser(ctx context.Context) ([]domain.Review, error)
	Submit(ctx context.Context, r domain.Review) (*domain.Review, error)
	Update(ctx context.Context, id domain.ID, r domain.Review) (*domain.Review, error)
	Delete(ctx context.Context, id domain.ID) error
}
