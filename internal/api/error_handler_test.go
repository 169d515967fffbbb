package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
)

func TestHTTPErrorHandler_MapsTaxonomy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"validation", &domain.ValidationError{Fields: map[string]string{"address": "address is required"}}, http.StatusUnprocessableEntity, "address is required"},
		{"auth with backend text", &domain.AuthError{Message: "Bad credentials"}, http.StatusUnauthorized, "Bad credentials"},
		{"expired", &domain.AuthError{Err: domain.ErrTokenExpired}, http.StatusUnauthorized, "token expired"},
		{"not authenticated", fmt.Errorf("list: %w", domain.ErrNotAuthenticated), http.StatusUnauthorized, "not authenticated"},
		{"backend verbatim", &domain.BackendError{Status: http.StatusConflict, Message: "Request already accepted"}, http.StatusConflict, "Request already accepted"},
		{"backend odd status", &domain.BackendError{Status: 302}, http.StatusBadGateway, "backend responded with status 302"},
		{"transport", &domain.TransportError{Op: "GET /services", Err: errors.New("dial tcp: refused")}, http.StatusBadGateway, "marketplace backend unreachable"},
		{"superseded", domain.ErrLoginSuperseded, http.StatusConflict, domain.ErrLoginSuperseded.Error()},
		{"echo error", echo.NewHTTPError(http.StatusBadRequest, "invalid payload"), http.StatusBadRequest, "invalid payload"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			e.HTTPErrorHandler = NewHTTPErrorHandler(zerolog.Nop())
			e.GET("/x", func(c echo.Context) error { return tc.err })

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, rec.Code)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body.Error != tc.msg {
				t.Fatalf("expected %q, got %q", tc.msg, body.Error)
			}
		})
	}
}

func TestHTTPErrorHandler_ValidationCarriesFields(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = NewHTTPErrorHandler(zerolog.Nop())
	e.POST("/x", func(c echo.Context) error {
		return &domain.ValidationError{Fields: map[string]string{"zipCode": "zipCode is required"}}
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))

	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Fields["zipCode"] != "zipCode is required" {
		t.Fatalf("fields not rendered: %+v", body)
	}
}
