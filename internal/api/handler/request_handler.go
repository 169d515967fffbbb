package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/service"
)

// RequestHandler exposes the service-request lifecycle.
type RequestHandler struct {
	market *service.Marketplace
}

func NewRequestHandler(market *service.Marketplace) *RequestHandler {
	return &RequestHandler{market: market}
}

type statusRequest struct {
	Status domain.ServiceRequestStatus `json:"status"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *RequestHandler) list(c echo.Context, load func(ctx context.Context) ([]domain.ServiceRequest, error)) error {
	list, err := load(c.Request().Context())
	if err != nil {
		return err
	}
	if list == nil {
		list = []domain.ServiceRequest{}
	}
	return c.JSON(http.StatusOK, list)
}

// Mine lists requests submitted by the current user.
//
// @Summary      My service requests
// @Tags         service-requests
// @Produce      json
// @Success      200  {array}  domain.ServiceRequest
// @Router       /service-requests [get]
func (h *RequestHandler) Mine(c echo.Context) error {
	return h.list(c, h.market.Requests.ForUser)
}

// Assigned lists requests addressed to the current provider. Provider only.
//
// @Summary      Requests assigned to me
// @Tags         service-requests
// @Produce      json
// @Success      200  {array}   domain.ServiceRequest
// @Failure      403  {object}  map[string]string
// @Router       /service-requests/provider [get]
func (h *RequestHandler) Assigned(c echo.Context) error {
	return h.list(c, h.market.Requests.ForProvider)
}

// All lists every request. Admin only.
//
// @Summary      All service requests
// @Tags         service-requests
// @Produce      json
// @Success      200  {array}   domain.ServiceRequest
// @Failure      403  {object}  map[string]string
// @Router       /service-requests/all [get]
func (h *RequestHandler) All(c echo.Context) error {
	return h.list(c, h.market.Requests.List)
}

// Get returns one request.
//
// @Summary      Get a service request
// @Tags         service-requests
// @Produce      json
// @Param        id  path  string  true  "Request id"
// @Success      200  {object}  domain.ServiceRequest
// @Router       /service-requests/{id} [get]
func (h *RequestHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	r, err := h.market.Requests.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// Submit validates the request-service form and creates the request.
//
// @Summary      Request a service
// @Tags         service-requests
// @Accept       json
// @Produce      json
// @Param        body  body      domain.ServiceRequestForm  true  "Request form"
// @Success      201   {object}  domain.ServiceRequest
// @Failure      400   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /service-requests [post]
func (h *RequestHandler) Submit(c echo.Context) error {
	var req domain.ServiceRequestForm
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	r, err := h.market.SubmitServiceRequest(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

// UpdateStatus moves a request through its lifecycle.
//
// @Summary      Update request status
// @Tags         service-requests
// @Accept       json
// @Produce      json
// @Param        id    path      string         true  "Request id"
// @Param        body  body      statusRequest  true  "New status"
// @Success      200   {object}  domain.ServiceRequest
// @Failure      422   {object}  map[string]string
// @Router       /service-requests/{id}/status [put]
func (h *RequestHandler) UpdateStatus(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req statusRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	r, err := h.market.UpdateRequestStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// Cancel cancels a request.
//
// @Summary      Cancel a request
// @Tags         service-requests
// @Accept       json
// @Produce      json
// @Param        id    path      string         true   "Request id"
// @Param        body  body      cancelRequest  false  "Cancellation reason"
// @Success      200   {object}  domain.ServiceRequest
// @Router       /service-requests/{id}/cancel [put]
func (h *RequestHandler) Cancel(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req cancelRequest
	if c.Request().ContentLength != 0 {
		if err := bindJSON(c, &req); err != nil {
			return err
		}
	}
	r, err := h.market.CancelRequest(c.Request().Context(), id, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// Complete marks a request as completed.
//
// @Summary      Complete a request
// @Tags         service-requests
// @Produce      json
// @Param        id  path  string  true  "Request id"
// @Success      200  {object}  domain.ServiceRequest
// @Router       /service-requests/{id}/complete [put]
func (h *RequestHandler) Complete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	r, err := h.market.Requests.Complete(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}
