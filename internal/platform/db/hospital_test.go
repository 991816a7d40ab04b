package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestContext(t *testing.T, target string, header map[string]string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestExtractHospital_Default(t *testing.T) {
	c := newTestContext(t, "/", nil)
	if got := extractHospital(c, "hope"); got != "hope" {
		t.Errorf("extractHospital = %q, want hope", got)
	}
}

func TestExtractHospital_Header(t *testing.T) {
	c := newTestContext(t, "/", map[string]string{"X-Hospital": "ayushman"})
	if got := extractHospital(c, "hope"); got != "ayushman" {
		t.Errorf("extractHospital = %q, want ayushman", got)
	}
}

func TestExtractHospital_QueryParam(t *testing.T) {
	c := newTestContext(t, "/?hospital=ayushman", nil)
	if got := extractHospital(c, "hope"); got != "ayushman" {
		t.Errorf("extractHospital = %q, want ayushman", got)
	}
}

func TestExtractHospital_JWTClaimWins(t *testing.T) {
	c := newTestContext(t, "/?hospital=ayushman", map[string]string{"X-Hospital": "other"})
	c.Set("jwt_hospital", "hope")
	if got := extractHospital(c, "fallback"); got != "hope" {
		t.Errorf("extractHospital = %q, want hope (JWT claim has priority)", got)
	}
}

func TestHospitalPattern(t *testing.T) {
	valid := []string{"hope", "ayushman", "site_2", "A1"}
	for _, h := range valid {
		if !hospitalPattern.MatchString(h) {
			t.Errorf("pattern rejected valid hospital %q", h)
		}
	}
	invalid := []string{"", "ho-pe", "a b", "x;DROP TABLE bills"}
	for _, h := range invalid {
		if hospitalPattern.MatchString(h) {
			t.Errorf("pattern accepted invalid hospital %q", h)
		}
	}
}

func TestConnFromContext_Nil(t *testing.T) {
	if conn := ConnFromContext(context.Background()); conn != nil {
		t.Errorf("ConnFromContext on empty context = %v, want nil", conn)
	}
}

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Errorf("TxFromContext on empty context = %v, want nil", tx)
	}
}

func TestHospitalFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), HospitalKey, "ayushman")
	if got := HospitalFromContext(ctx); got != "ayushman" {
		t.Errorf("HospitalFromContext = %q, want ayushman", got)
	}
	if got := HospitalFromContext(context.Background()); got != "" {
		t.Errorf("HospitalFromContext on empty context = %q, want empty", got)
	}
}
