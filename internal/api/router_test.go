package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
	"github.com/homeservice/marketplace-agent/internal/core/service"
)

type stubSession struct {
	identity *domain.Identity
	ready    chan struct{}
}

func (s *stubSession) Login(context.Context, domain.Credentials) (*domain.Identity, error) {
	return nil, &domain.AuthError{Message: "Bad credentials"}
}

func (s *stubSession) Register(context.Context, domain.Profile) (string, error) { return "ok", nil }

func (s *stubSession) Logout() { s.identity = nil }

func (s *stubSession) CurrentIdentity() *domain.Identity { return s.identity }

func (s *stubSession) Expiry() time.Time { return time.Time{} }

func (s *stubSession) Authenticated() bool { return s.identity != nil }

func (s *stubSession) HasAnyRole(roles ...domain.Role) bool {
	return s.identity != nil && (len(roles) == 0 || s.identity.HasAnyRole(roles...))
}

func (s *stubSession) CachedRoles(context.Context) []domain.Role { return nil }

func (s *stubSession) Ready() <-chan struct{} { return s.ready }

type stubNotifications struct {
	items []domain.Notification
}

func (s *stubNotifications) FetchAll(context.Context) ([]domain.Notification, error) {
	return s.items, nil
}
func (s *stubNotifications) Snapshot() []domain.Notification { return s.items }
func (s *stubNotifications) UnreadCount() int                { return domain.CountUnread(s.items) }
func (s *stubNotifications) MarkRead(context.Context, domain.ID) error {
	return nil
}
func (s *stubNotifications) MarkAllRead(context.Context) error { return nil }
func (s *stubNotifications) Delete(context.Context, domain.ID) error {
	return nil
}

type stubRequests struct {
	ports.ServiceRequestAPI
	created int
}

func (s *stubRequests) Create(_ context.Context, form domain.ServiceRequestForm) (*domain.ServiceRequest, error) {
	s.created++
	return &domain.ServiceRequest{ID: "1", ServiceID: form.ServiceID, Status: domain.RequestPending}, nil
}

type stubChannel struct{}

func (stubChannel) Status() domain.ChannelStatus {
	return domain.ChannelStatus{State: domain.ChannelConnected, Subscriptions: []string{"/user/7/notifications"}}
}

func newTestRouter(identity *domain.Identity) (*echo.Echo, *stubRequests) {
	ready := make(chan struct{})
	close(ready)
	requests := &stubRequests{}
	e := NewRouter(Dependencies{
		Session:       &stubSession{identity: identity, ready: ready},
		Notifications: &stubNotifications{items: []domain.Notification{{ID: "1"}, {ID: "2", Read: true}}},
		Marketplace:   service.NewMarketplace(nil, nil, requests, nil),
		Channel:       stubChannel{},
		Log:           zerolog.Nop(),
	})
	return e, requests
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRouter_NotificationsRequireSession(t *testing.T) {
	e, _ := newTestRouter(nil)

	rec := serve(e, http.MethodGet, "/notifications", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	e, _ = newTestRouter(&domain.Identity{ID: "7", Roles: []domain.Role{domain.RoleUser}})
	rec = serve(e, http.MethodGet, "/notifications/unread-count", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"unread":1}` {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestRouter_ProviderRoutesForbidSeekers(t *testing.T) {
	e, _ := newTestRouter(&domain.Identity{ID: "7", Roles: []domain.Role{domain.RoleUser}})

	rec := serve(e, http.MethodGet, "/providers/dashboard", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRouter_InvalidRequestFormIs422(t *testing.T) {
	e, requests := newTestRouter(&domain.Identity{ID: "7", Roles: []domain.Role{domain.RoleUser}})

	rec := serve(e, http.MethodPost, "/service-requests", `{"serviceId":"3","description":"Leak","city":"X","zipCode":"1","requestedDate":"2026-04-02T10:00:00Z"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Fields["address"] != "address is required" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if requests.created != 0 {
		t.Fatalf("invalid form reached the backend")
	}
}

func TestRouter_LoginFailureSurfacesBackendMessage(t *testing.T) {
	e, _ := newTestRouter(nil)

	rec := serve(e, http.MethodPost, "/session/login", `{"username":"alice","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Bad credentials") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestRouter_ReadinessReportsChannel(t *testing.T) {
	e, _ := newTestRouter(nil)

	rec := serve(e, http.MethodGet, "/health/ready", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status  string               `json:"status"`
		Session string               `json:"session"`
		Channel domain.ChannelStatus `json:"channel"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Status != "ok" || body.Session != "anonymous" || body.Channel.State != domain.ChannelConnected {
		t.Fatalf("unexpected readiness: %+v", body)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	e, _ := newTestRouter(nil)
	serve(e, http.MethodGet, "/session", "")

	rec := serve(e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "marketplace_http_request_duration_seconds") {
		t.Fatalf("custom metrics not exported")
	}
}
