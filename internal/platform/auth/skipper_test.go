package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAuthSkipper_PublicPaths(t *testing.T) {
	publicPaths := []string{
		"/health",
		"/health/db",
	}

	for _, path := range publicPaths {
		t.Run(path, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetPath(path)

			if !AuthSkipper(c) {
				t.Errorf("expected AuthSkipper to return true for %s", path)
			}
		})
	}
}

func TestAuthSkipper_ProtectedPaths(t *testing.T) {
	protectedPaths := []string{
		"/api/v1/bills",
		"/api/v1/catalog",
		"/api/v1/visits",
		"/",
		"/health/extra",
	}

	for _, path := range protectedPaths {
		t.Run(path, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetPath(path)

			if AuthSkipper(c) {
				t.Errorf("expected AuthSkipper to return false for %s", path)
			}
		})
	}
}

func TestIsPublicPath(t *testing.T) {
	if !IsPublicPath("/health") {
		t.Error("expected /health to be public")
	}
	if !IsPublicPath("/health/db") {
		t.Error("expected /health/db to be public")
	}
	if IsPublicPath("/api/v1/bills") {
		t.Error("expected /api/v1/bills to NOT be public")
	}
}
