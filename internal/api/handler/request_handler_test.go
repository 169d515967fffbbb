package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
	"github.com/homeservice/marketplace-agent/internal/core/service"
)

// stubRequestAPI implements only what a test sets; other calls panic
// through the nil embedded interface.
type stubRequestAPI struct {
	ports.ServiceRequestAPI
	createFn  func(ctx context.Context, form domain.ServiceRequestForm) (*domain.ServiceRequest, error)
	forUserFn func(ctx context.Context) ([]domain.ServiceRequest, error)
	cancelFn  func(ctx context.Context, id domain.ID, reason string) (*domain.ServiceRequest, error)
	statusFn  func(ctx context.Context, id domain.ID, status domain.ServiceRequestStatus) (*domain.ServiceRequest, error)
}

func (s *stubRequestAPI) Create(ctx context.Context, form domain.ServiceRequestForm) (*domain.ServiceRequest, error) {
	return s.createFn(ctx, form)
}

func (s *stubRequestAPI) ForUser(ctx context.Context) ([]domain.ServiceRequest, error) {
	return s.forUserFn(ctx)
}

func (s *stubRequestAPI) Cancel(ctx context.Context, id domain.ID, reason string) (*domain.ServiceRequest, error) {
	return s.cancelFn(ctx, id, reason)
}

func (s *stubRequestAPI) UpdateStatus(ctx context.Context, id domain.ID, status domain.ServiceRequestStatus) (*domain.ServiceRequest, error) {
	return s.statusFn(ctx, id, status)
}

func newRequestHandler(api ports.ServiceRequestAPI) *RequestHandler {
	return NewRequestHandler(service.NewMarketplace(nil, nil, api, nil))
}

func TestRequestHandler_Submit_Success(t *testing.T) {
	e := newEcho()
	api := &stubRequestAPI{
		createFn: func(ctx context.Context, form domain.ServiceRequestForm) (*domain.ServiceRequest, error) {
			if form.ServiceID != "3" || form.Address != "12 Main St" {
				t.Fatalf("unexpected form: %+v", form)
			}
			return &domain.ServiceRequest{ID: "40", ServiceID: form.ServiceID, Status: domain.RequestPending}, nil
		},
	}
	handler := newRequestHandler(api)

	body := `{"serviceId":3,"description":"Sink leaks","address":" 12 Main St ","city":"Springfield","zipCode":"12345","requestedDate":"2026-04-02T10:00:00Z"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/service-requests", body), rec)

	if err := handler.Submit(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp domain.ServiceRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.ID != "40" || resp.Status != domain.RequestPending {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestRequestHandler_Submit_InvalidFormNeverReachesBackend(t *testing.T) {
	e := newEcho()
	api := &stubRequestAPI{
		createFn: func(ctx context.Context, form domain.ServiceRequestForm) (*domain.ServiceRequest, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	handler := newRequestHandler(api)

	body := `{"serviceId":"3","description":"  ","city":"Springfield","zipCode":"12345","requestedDate":"2026-04-02T10:00:00Z"}`
	c := e.NewContext(jsonRequest(http.MethodPost, "/service-requests", body), httptest.NewRecorder())

	var ve *domain.ValidationError
	if err := handler.Submit(c); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Fields["description"] != "description is required" || ve.Fields["address"] != "address is required" {
		t.Fatalf("unexpected fields: %+v", ve.Fields)
	}
}

func TestRequestHandler_Mine_EmptyListIsArray(t *testing.T) {
	e := newEcho()
	api := &stubRequestAPI{
		forUserFn: func(ctx context.Context) ([]domain.ServiceRequest, error) { return nil, nil },
	}
	handler := newRequestHandler(api)

	rec := httptest.NewRecorder()
	if err := handler.Mine(e.NewContext(httptest.NewRequest(http.MethodGet, "/service-requests", nil), rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got := rec.Body.String(); got != "[]\n" {
		t.Fatalf("expected empty array, got %q", got)
	}
}

func TestRequestHandler_Cancel_ReasonOptional(t *testing.T) {
	e := newEcho()
	var reasons []string
	api := &stubRequestAPI{
		cancelFn: func(ctx context.Context, id domain.ID, reason string) (*domain.ServiceRequest, error) {
			reasons = append(reasons, reason)
			return &domain.ServiceRequest{ID: id, Status: domain.RequestCancelled}, nil
		},
	}
	handler := newRequestHandler(api)

	for _, body := range []string{`{"reason":" changed plans "}`, ""} {
		req := jsonRequest(http.MethodPut, "/", body)
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues("40")
		if err := handler.Cancel(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
	}
	if len(reasons) != 2 || reasons[0] != "changed plans" || reasons[1] != "" {
		t.Fatalf("unexpected reasons: %q", reasons)
	}
}

func TestRequestHandler_UpdateStatus_UnknownStatus(t *testing.T) {
	e := newEcho()
	api := &stubRequestAPI{
		statusFn: func(ctx context.Context, id domain.ID, status domain.ServiceRequestStatus) (*domain.ServiceRequest, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	handler := newRequestHandler(api)

	c := e.NewContext(jsonRequest(http.MethodPut, "/", `{"status":"DONE"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("40")

	var ve *domain.ValidationError
	if err := handler.UpdateStatus(c); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRequestHandler_Get_MissingID(t *testing.T) {
	e := newEcho()
	handler := newRequestHandler(&stubRequestAPI{})

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if code := httpStatus(t, handler.Get(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}
