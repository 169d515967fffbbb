package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
)

type stubSessionService struct {
	loginFn    func(ctx context.Context, creds domain.Credentials) (*domain.Identity, error)
	registerFn func(ctx context.Context, profile domain.Profile) (string, error)
	identity   *domain.Identity
	expiry     time.Time
	logouts    int
}

func (s *stubSessionService) Login(ctx context.Context, creds domain.Credentials) (*domain.Identity, error) {
	id, err := s.loginFn(ctx, creds)
	if err == nil {
		s.identity = id
	}
	return id, err
}

func (s *stubSessionService) Register(ctx context.Context, profile domain.Profile) (string, error) {
	return s.registerFn(ctx, profile)
}

func (s *stubSessionService) Logout() {
	s.logouts++
	s.identity = nil
}

func (s *stubSessionService) CurrentIdentity() *domain.Identity { return s.identity }

func (s *stubSessionService) Expiry() time.Time { return s.expiry }

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}

func TestAuthHandler_Login_Success(t *testing.T) {
	e := newEcho()
	stub := &stubSessionService{
		expiry: time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC),
		loginFn: func(ctx context.Context, creds domain.Credentials) (*domain.Identity, error) {
			if creds.Username != "alice" || creds.Password != "secret" {
				t.Fatalf("unexpected args: %+v", creds)
			}
			return &domain.Identity{ID: "7", Username: "alice", FirstName: "Alice", Roles: []domain.Role{domain.RoleUser}}, nil
		},
	}
	handler := NewAuthHandler(stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/session/login", `{"username":"alice","password":"secret"}`), rec)

	if err := handler.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !resp.Authenticated || resp.User == nil || resp.User.Username != "alice" {
		t.Fatalf("unexpected session payload: %+v", resp)
	}
	if resp.DisplayName != "Alice" {
		t.Fatalf("expected display name Alice, got %q", resp.DisplayName)
	}
	if resp.ExpiresAt == nil || !resp.ExpiresAt.Equal(stub.expiry) {
		t.Fatalf("unexpected expiry: %v", resp.ExpiresAt)
	}
}

func TestAuthHandler_Login_PassesBackendErrorThrough(t *testing.T) {
	e := newEcho()
	stub := &stubSessionService{
		loginFn: func(ctx context.Context, creds domain.Credentials) (*domain.Identity, error) {
			return nil, &domain.AuthError{Message: "Bad credentials"}
		},
	}
	handler := NewAuthHandler(stub)

	c := e.NewContext(jsonRequest(http.MethodPost, "/session/login", `{"username":"alice","password":"nope"}`), httptest.NewRecorder())

	err := handler.Login(c)
	var ae *domain.AuthError
	if !errors.As(err, &ae) || ae.Error() != "Bad credentials" {
		t.Fatalf("expected AuthError with backend message, got %v", err)
	}
}

func TestAuthHandler_Login_MissingFieldsIsValidationError(t *testing.T) {
	e := newEcho()
	stub := &stubSessionService{
		loginFn: func(ctx context.Context, creds domain.Credentials) (*domain.Identity, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	handler := NewAuthHandler(stub)

	c := e.NewContext(jsonRequest(http.MethodPost, "/session/login", `{"username":"alice"}`), httptest.NewRecorder())

	err := handler.Login(c)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Fields["password"] != "password is required" {
		t.Fatalf("unexpected fields: %+v", ve.Fields)
	}
}

func TestAuthHandler_Login_InvalidPayload(t *testing.T) {
	e := newEcho()
	handler := NewAuthHandler(&stubSessionService{})

	c := e.NewContext(jsonRequest(http.MethodPost, "/session/login", "not-json"), httptest.NewRecorder())

	if code := httpStatus(t, handler.Login(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestAuthHandler_Register_DoesNotSignIn(t *testing.T) {
	e := newEcho()
	stub := &stubSessionService{
		registerFn: func(ctx context.Context, p domain.Profile) (string, error) {
			if p.Username != "bob" || p.Email != "bob@example.com" {
				t.Fatalf("unexpected profile: %+v", p)
			}
			return "User registered successfully!", nil
		},
	}
	handler := NewAuthHandler(stub)

	body := `{"username":"bob","email":"bob@example.com","password":"secret1","firstName":"Bob","lastName":"Stone"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/session/register", body), rec)

	if err := handler.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "User registered successfully!") {
		t.Fatalf("backend message not passed through: %s", rec.Body.String())
	}
	if stub.identity != nil {
		t.Fatalf("register must not authenticate")
	}
}

func TestAuthHandler_Register_RejectsShortPassword(t *testing.T) {
	e := newEcho()
	stub := &stubSessionService{
		registerFn: func(ctx context.Context, p domain.Profile) (string, error) {
			t.Fatalf("should not be called")
			return "", nil
		},
	}
	handler := NewAuthHandler(stub)

	body := `{"username":"bob","email":"bob@example.com","password":"123","firstName":"Bob","lastName":"Stone"}`
	c := e.NewContext(jsonRequest(http.MethodPost, "/session/register", body), httptest.NewRecorder())

	var ve *domain.ValidationError
	if err := handler.Register(c); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Fields["password"] != "password must be at least 6 characters" {
		t.Fatalf("unexpected fields: %+v", ve.Fields)
	}
}

func TestAuthHandler_LogoutIsIdempotent(t *testing.T) {
	e := newEcho()
	stub := &stubSessionService{identity: &domain.Identity{ID: "7"}}
	handler := NewAuthHandler(stub)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/session/logout", nil), rec)
		if err := handler.Logout(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	}
	if stub.logouts != 2 || stub.identity != nil {
		t.Fatalf("unexpected logout state: %d %+v", stub.logouts, stub.identity)
	}
}

func TestAuthHandler_Me_Anonymous(t *testing.T) {
	e := newEcho()
	handler := NewAuthHandler(&stubSessionService{})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/session", nil), rec)
	if err := handler.Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"authenticated":false}` {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
