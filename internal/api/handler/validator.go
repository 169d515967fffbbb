package handler

import (
	"github.com/homeservice/marketplace-agent/internal/core/service"
)

// echoValidator lets Echo call c.Validate(req) with the same rules and field
// messages the core services use.
type echoValidator struct {
	v *service.Validator
}

// NewValidator returns an echoValidator ready to be assigned to echo.Echo.Validator.
func NewValidator() *echoValidator {
	return &echoValidator{v: service.NewValidator()}
}

// Validate satisfies the echo.Validator interface. Failures are
// *domain.ValidationError, which the error handler renders as 422.
func (ev *echoValidator) Validate(i any) error {
	return ev.v.Validate(i)
}
