package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/service"
)

// CatalogHandler exposes services, providers and reviews.
type CatalogHandler struct {
	market *service.Marketplace
}

func NewCatalogHandler(market *service.Marketplace) *CatalogHandler {
	return &CatalogHandler{market: market}
}

// --- Services ---

// ListServices lists or searches the service catalog.
//
// @Summary      List services
// @Tags         services
// @Produce      json
// @Param        q         query  string  false  "Free-text search"
// @Param        category  query  string  false  "Restrict to one category"
// @Success      200  {array}   domain.Service
// @Failure      502  {object}  map[string]string
// @Router       /services [get]
func (h *CatalogHandler) ListServices(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		list []domain.Service
		err  error
	)
	if category := strings.TrimSpace(c.QueryParam("category")); category != "" {
		list, err = h.market.Services.ByCategory(ctx, category)
	} else {
		list, err = h.market.SearchServices(ctx, c.QueryParam("q"))
	}
	if err != nil {
		return err
	}
	if list == nil {
		list = []domain.Service{}
	}
	return c.JSON(http.StatusOK, list)
}

// GetService returns one service.
//
// @Summary      Get a service
// @Tags         services
// @Produce      json
// @Param        id  path  string  true  "Service id"
// @Success      200  {object}  domain.Service
// @Failure      404  {object}  map[string]string
// @Router       /services/{id} [get]
func (h *CatalogHandler) GetService(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	s, err := h.market.Services.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

// CreateService adds a listing. Admin only.
//
// @Summary      Create a service
// @Tags         services
// @Accept       json
// @Produce      json
// @Param        body  body      domain.Service  true  "Service"
// @Success      201   {object}  domain.Service
// @Failure      422   {object}  map[string]string
// @Router       /services [post]
func (h *CatalogHandler) CreateService(c echo.Context) error {
	var req domain.Service
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	s, err := h.market.CreateService(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, s)
}

// UpdateService edits a listing. Admin only.
//
// @Summary      Update a service
// @Tags         services
// @Accept       json
// @Produce      json
// @Param        id    path      string          true  "Service id"
// @Param        body  body      domain.Service  true  "Service"
// @Success      200   {object}  domain.Service
// @Failure      422   {object}  map[string]string
// @Router       /services/{id} [put]
func (h *CatalogHandler) UpdateService(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req domain.Service
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	s, err := h.market.UpdateService(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

// DeleteService removes a listing. Admin only.
//
// @Summary      Delete a service
// @Tags         services
// @Param        id  path  string  true  "Service id"
// @Success      204
// @Router       /services/{id} [delete]
func (h *CatalogHandler) DeleteService(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.market.Services.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Providers ---

// ListProviders lists provider profiles.
//
// @Summary      List providers
// @Tags         providers
// @Produce      json
// @Success      200  {array}  domain.Provider
// @Router       /providers [get]
func (h *CatalogHandler) ListProviders(c echo.Context) error {
	list, err := h.market.Providers.List(c.Request().Context())
	if err != nil {
		return err
	}
	if list == nil {
		list = []domain.Provider{}
	}
	return c.JSON(http.StatusOK, list)
}

// GetProvider returns one provider profile.
//
// @Summary      Get a provider
// @Tags         providers
// @Produce      json
// @Param        id  path  string  true  "Provider id"
// @Success      200  {object}  domain.Provider
// @Router       /providers/{id} [get]
func (h *CatalogHandler) GetProvider(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.market.Providers.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// RegisterProvider creates the provider profile of the current user.
//
// @Summary      Become a provider
// @Tags         providers
// @Accept       json
// @Produce      json
// @Param        body  body      domain.ProviderRegistration  true  "Provider profile"
// @Success      201   {object}  domain.Provider
// @Failure      422   {object}  map[string]string
// @Router       /providers [post]
func (h *CatalogHandler) RegisterProvider(c echo.Context) error {
	var req domain.ProviderRegistration
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	p, err := h.market.RegisterProvider(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

// UpdateProvider edits a provider profile.
//
// @Summary      Update a provider profile
// @Tags         providers
// @Accept       json
// @Produce      json
// @Param        id    path      string                       true  "Provider id"
// @Param        body  body      domain.ProviderRegistration  true  "Provider profile"
// @Success      200   {object}  domain.Provider
// @Failure      422   {object}  map[string]string
// @Router       /providers/{id} [put]
func (h *CatalogHandler) UpdateProvider(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req domain.ProviderRegistration
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	p, err := h.market.UpdateProvider(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Dashboard returns the provider dashboard. Provider only.
//
// @Summary      Provider dashboard
// @Tags         providers
// @Produce      json
// @Success      200  {object}  map[string]any
// @Failure      403  {object}  map[string]string
// @Router       /providers/dashboard [get]
func (h *CatalogHandler) Dashboard(c echo.Context) error {
	d, err := h.market.Providers.Dashboard(c.Request().Context())
	if err != nil {
		return err
	}
	if d == nil {
		d = domain.ProviderDashboard{}
	}
	return c.JSON(http.StatusOK, d)
}

// --- Reviews ---

// ProviderReviews lists reviews left for a provider.
//
// @Summary      Reviews of a provider
// @Tags         reviews
// @Produce      json
// @Param        id  path  string  true  "Provider id"
// @Success      200  {array}  domain.Review
// @Router       /reviews/provider/{id} [get]
func (h *CatalogHandler) ProviderReviews(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	return h.reviews(c, func() ([]domain.Review, error) {
		return h.market.Reviews.ForProvider(c.Request().Context(), id)
	})
}

// ServiceReviews lists reviews left for a service.
//
// @Summary      Reviews of a service
// @Tags         reviews
// @Produce      json
// @Param        id  path  string  true  "Service id"
// @Success      200  {array}  domain.Review
// @Router       /reviews/service/{id} [get]
func (h *CatalogHandler) ServiceReviews(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	return h.reviews(c, func() ([]domain.Review, error) {
		return h.market.Reviews.ForService(c.Request().Context(), id)
	})
}

// MyReviews lists reviews written by the current user.
//
// @Summary      My reviews
// @Tags         reviews
// @Produce      json
// @Success      200  {array}  domain.Review
// @Router       /reviews/mine [get]
func (h *CatalogHandler) MyReviews(c echo.Context) error {
	return h.reviews(c, func() ([]domain.Review, error) {
		return h.market.Reviews.ForUser(c.Request().Context())
	})
}

func (h *CatalogHandler) reviews(c echo.Context, load func() ([]domain.Review, error)) error {
	list, err := load()
	if err != nil {
		return err
	}
	if list == nil {
		list = []domain.Review{}
	}
	return c.JSON(http.StatusOK, list)
}

// SubmitReview posts a review.
//
// @Summary      Submit a review
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Param        body  body      domain.Review  true  "Review"
// @Success      201   {object}  domain.Review
// @Failure      422   {object}  map[string]string
// @Router       /reviews [post]
func (h *CatalogHandler) SubmitReview(c echo.Context) error {
	var req domain.Review
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	r, err := h.market.SubmitReview(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

// UpdateReview edits a review.
//
// @Summary      Update a review
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Param        id    path      string         true  "Review id"
// @Param        body  body      domain.Review  true  "Review"
// @Success      200   {object}  domain.Review
// @Failure      422   {object}  map[string]string
// @Router       /reviews/{id} [put]
func (h *CatalogHandler) UpdateReview(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req domain.Review
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	r, err := h.market.UpdateReview(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// DeleteReview removes a review.
//
// @Summary      Delete a review
// @Tags         reviews
// @Param        id  path  string  true  "Review id"
// @Success      204
// @Router       /reviews/{id} [delete]
func (h *CatalogHandler) DeleteReview(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.market.Reviews.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
