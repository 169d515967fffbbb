package domain

import (
	"slices"
	"time"
)

// Role is a coarse authorization tag. Roles form a set, not a hierarchy.
type Role string

const (
	RoleUser     Role = "ROLE_USER"
	RoleProvider Role = "ROLE_PROVIDER"
	RoleAdmin    Role = "ROLE_ADMIN"
)

// Identity is the subject the current session belongs to, as returned by
// the backend profile and sign-in endpoints.
type Identity struct {
	ID                ID     `json:"id"`
	Username          string `json:"username"`
	Email             string `json:"email,omitempty"`
	FirstName         string `json:"firstName,omitempty"`
	LastName          string `json:"lastName,omitempty"`
	Phone             string `json:"phone,omitempty"`
	Roles             []Role `json:"roles"`
	IsServiceProvider bool   `json:"isServiceProvider,omitempty"`
	ServiceProviderID ID     `json:"serviceProviderId,omitempty"`
	ProfileImageURL   string `json:"profileImageUrl,omitempty"`
}

// DisplayName prefers the full name and falls back to the username.
func (i Identity) DisplayName() string {
	switch {
	case i.FirstName != "" && i.LastName != "":
		return i.FirstName + " " + i.LastName
	case i.FirstName != "":
		return i.FirstName
	default:
		return i.Username
	}
}

// HasAnyRole reports whether the identity carries at least one of roles.
func (i Identity) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if slices.Contains(i.Roles, r) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share the role slice.
func (i Identity) Clone() *Identity {
	c := i
	c.Roles = slices.Clone(i.Roles)
	return &c
}

// Credentials are sent to the sign-in endpoint.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Profile is the payload of the sign-up endpoint.
type Profile struct {
	Username  string   `json:"username"  validate:"required,min=3,max=20"`
	Email     string   `json:"email"     validate:"required,email,max=50"`
	Password  string   `json:"password"  validate:"required,min=6,max=40"`
	FirstName string   `json:"firstName" validate:"required,max=50"`
	LastName  string   `json:"lastName"  validate:"required,max=50"`
	Phone     string   `json:"phone,omitempty" validate:"max=15"`
	Address   string   `json:"address,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// SessionEventKind tells listeners what happened to the session.
type SessionEventKind string

const (
	SessionAuthenticated SessionEventKind = "authenticated"
	SessionCleared       SessionEventKind = "cleared"
)

// SessionEvent is published by the session store on every transition.
// Identity is set only for SessionAuthenticated.
type SessionEvent struct {
	Kind     SessionEventKind
	Identity *Identity
	Reason   string
	At       time.Time
}
