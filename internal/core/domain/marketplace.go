package domain

import "time"

// ServiceRequestStatus is the backend lifecycle of a service request.
type ServiceRequestStatus string

const (
	RequestPending    ServiceRequestStatus = "PENDING"
	RequestAccepted   ServiceRequestStatus = "ACCEPTED"
	RequestInProgress ServiceRequestStatus = "IN_PROGRESS"
	RequestCompleted  ServiceRequestStatus = "COMPLETED"
	RequestCancelled  ServiceRequestStatus = "CANCELLED"
	RequestRejected   ServiceRequestStatus = "REJECTED"
)

// Service is an offering listed in the marketplace.
type Service struct {
	ID          ID         `json:"id,omitempty"`
	Name        string     `json:"name"        validate:"required,min=3,max=50"`
	Description string     `json:"description" validate:"required,min=10"`
	BasePrice   float64    `json:"basePrice"   validate:"required,gt=0"`
	Category    string     `json:"category,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	Providers   []Provider `json:"providers,omitempty"`
	Active      *bool      `json:"active,omitempty"`
}

// Provider is a service provider profile.
type Provider struct {
	ID              ID       `json:"id,omitempty"`
	UserID          ID       `json:"userId,omitempty"`
	UserName        string   `json:"userName,omitempty"`
	Email           string   `json:"email,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	Description     string   `json:"description,omitempty"`
	HourlyRate      float64  `json:"hourlyRate,omitempty"`
	Available       *bool    `json:"available,omitempty"`
	Rating          float64  `json:"rating,omitempty"`
	ReviewCount     int      `json:"reviewCount,omitempty"`
	ServiceIDs      []ID     `json:"serviceIds,omitempty"`
	ServiceNames    []string `json:"serviceNames,omitempty"`
	Qualifications  []string `json:"qualifications,omitempty"`
	ProfileImageURL string   `json:"profileImageUrl,omitempty"`
	Address         string   `json:"address,omitempty"`
}

// ProviderRegistration is the payload used to register or update a provider profile.
type ProviderRegistration struct {
	Description     string   `json:"description"    validate:"required,min=10"`
	HourlyRate      float64  `json:"hourlyRate"     validate:"required,gt=0"`
	ServiceIDs      []ID     `json:"serviceIds"     validate:"min=1"`
	Qualifications  []string `json:"qualifications" validate:"min=1,dive,required"`
	Address         string   `json:"address,omitempty"`
	ProfileImageURL string   `json:"profileImageUrl,omitempty"`
}

// ServiceRequest is a request for a service submitted by a seeker.
type ServiceRequest struct {
	ID                ID                   `json:"id"`
	ServiceID         ID                   `json:"serviceId"`
	UserID            ID                   `json:"userId,omitempty"`
	ServiceProviderID ID                   `json:"serviceProviderId,omitempty"`
	Description       string               `json:"description"`
	Address           string               `json:"address"`
	RequestedDate     time.Time            `json:"requestedDate"`
	CompletedDate     *time.Time           `json:"completedDate,omitempty"`
	Price             float64              `json:"price,omitempty"`
	Status            ServiceRequestStatus `json:"status"`
	ServiceName       string               `json:"serviceName,omitempty"`
	UserName          string               `json:"userName,omitempty"`
	ProviderName      string               `json:"providerName,omitempty"`
	CanCancel         bool                 `json:"canCancel"`
	CanComplete       bool                 `json:"canComplete"`
}

// ServiceRequestForm is what a seeker fills in to request a service. It is
// validated locally before anything is sent to the backend.
type ServiceRequestForm struct {
	ServiceID           ID        `json:"serviceId"     validate:"required"`
	Description         string    `json:"description"   validate:"required"`
	Address             string    `json:"address"       validate:"required"`
	City                string    `json:"city"          validate:"required"`
	ZipCode             string    `json:"zipCode"       validate:"required"`
	RequestedDate       time.Time `json:"requestedDate" validate:"required"`
	PreferredProviderID ID        `json:"preferredProviderId,omitempty"`
}

// Review is a rating left by a seeker for a provider.
type Review struct {
	ID                  ID         `json:"id,omitempty"`
	UserID              ID         `json:"userId,omitempty"`
	UserName            string     `json:"userName,omitempty"`
	ServiceProviderID   ID         `json:"serviceProviderId"   validate:"required"`
	ServiceProviderName string     `json:"serviceProviderName,omitempty"`
	ServiceRequestID    ID         `json:"serviceRequestId,omitempty"`
	Rating              int        `json:"rating"              validate:"required,min=1,max=5"`
	Comment             string     `json:"comment,omitempty"   validate:"max=1000"`
	CreatedAt           *time.Time `json:"createdAt,omitempty"`
	UpdatedAt           *time.Time `json:"updatedAt,omitempty"`
}

// ProviderDashboard is the aggregate returned by the provider dashboard endpoint.
// The backend shape is loosely specified, so unknown keys are kept verbatim.
type ProviderDashboard map[string]any
