package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}
	return key
}

func jwkFor(key *rsa.PrivateKey, kid string) JWKSKey {
	pub := &key.PublicKey
	return JWKSKey{
		Kty: "RSA",
		Kid: kid,
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

func jwksServer(t *testing.T, keys ...JWKSKey) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(JWKSResponse{Keys: keys})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func discoveryServer(t *testing.T, doc map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewOIDCProvider(t *testing.T) {
	jwks := jwksServer(t)
	srv := discoveryServer(t, map[string]string{
		"issuer":         "https://sso.cityhospital.example",
		"token_endpoint": "https://sso.cityhospital.example/token",
		"jwks_uri":       jwks.URL,
	})

	provider, err := NewOIDCProvider(srv.URL + "/") // trailing slash must not break the well-known path
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Issuer != "https://sso.cityhospital.example" {
		t.Errorf("issuer = %q", provider.Issuer)
	}
	if provider.JWKSURI != jwks.URL {
		t.Errorf("jwks_uri = %q, want %q", provider.JWKSURI, jwks.URL)
	}
	if provider.JWKSKeyFunc() == nil {
		t.Error("JWKSKeyFunc returned nil")
	}
}

func TestNewOIDCProvider_Errors(t *testing.T) {
	t.Run("issuer without discovery document", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		t.Cleanup(srv.Close)
		if _, err := NewOIDCProvider(srv.URL); err == nil {
			t.Fatal("expected error for 404 discovery endpoint")
		}
	})

	t.Run("unreachable issuer", func(t *testing.T) {
		if _, err := NewOIDCProvider("http://127.0.0.1:1"); err == nil {
			t.Fatal("expected error for unreachable issuer")
		}
	})

	t.Run("missing jwks_uri", func(t *testing.T) {
		srv := discoveryServer(t, map[string]string{
			"issuer":         "https://sso.cityhospital.example",
			"token_endpoint": "https://sso.cityhospital.example/token",
		})
		if _, err := NewOIDCProvider(srv.URL); err == nil {
			t.Fatal("expected error for discovery document without jwks_uri")
		}
	})
}

func TestJWKSCache_FetchAndHit(t *testing.T) {
	key := testRSAKey(t)
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(JWKSResponse{Keys: []JWKSKey{jwkFor(key, "billing-signer")}})
	}))
	t.Cleanup(srv.Close)

	cache := NewJWKSCache(srv.URL, 10*time.Minute)

	got, err := cache.GetKey("billing-signer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.N.Cmp(key.PublicKey.N) != 0 || got.E != key.PublicKey.E {
		t.Error("fetched key does not match the served key")
	}

	if _, err := cache.GetKey("billing-signer"); err != nil {
		t.Fatalf("unexpected error on cache hit: %v", err)
	}
	if fetches != 1 {
		t.Errorf("expected 1 JWKS fetch, got %d", fetches)
	}
}

func TestJWKSCache_RefetchOnUnknownKid(t *testing.T) {
	oldKey := testRSAKey(t)
	newKey := testRSAKey(t)
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		keys := []JWKSKey{jwkFor(oldKey, "signer-2025")}
		if fetches > 1 {
			keys = append(keys, jwkFor(newKey, "signer-2026"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(JWKSResponse{Keys: keys})
	}))
	t.Cleanup(srv.Close)

	cache := NewJWKSCache(srv.URL, time.Millisecond)

	if _, err := cache.GetKey("signer-2025"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	rotated, err := cache.GetKey("signer-2026")
	if err != nil {
		t.Fatalf("unexpected error after rotation: %v", err)
	}
	if rotated.N.Cmp(newKey.PublicKey.N) != 0 {
		t.Error("rotated key does not match")
	}
	if fetches < 2 {
		t.Errorf("expected a second JWKS fetch for the rotated key, got %d", fetches)
	}
}

func TestJWKSCache_KeyNotFound(t *testing.T) {
	srv := jwksServer(t, jwkFor(testRSAKey(t), "only-key"))
	cache := NewJWKSCache(srv.URL, 5*time.Minute)
	if _, err := cache.GetKey("some-other-key"); err == nil {
		t.Fatal("expected error for kid absent from JWKS")
	}
}

func TestJWKSCache_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	cache := NewJWKSCache(srv.URL, 5*time.Minute)
	if _, err := cache.GetKey("any"); err == nil {
		t.Fatal("expected error when JWKS endpoint fails")
	}
}

func TestParseRSAPublicKey(t *testing.T) {
	key := testRSAKey(t)

	pub, err := parseRSAPublicKey(jwkFor(key, "parse"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub.N.Cmp(key.PublicKey.N) != 0 || pub.E != key.PublicKey.E {
		t.Error("parsed key does not match original")
	}

	bad := JWKSKey{Kty: "RSA", Kid: "bad", N: "%%%", E: "AQAB"}
	if _, err := parseRSAPublicKey(bad); err == nil {
		t.Error("expected error for invalid modulus encoding")
	}
	bad = JWKSKey{Kty: "RSA", Kid: "bad", N: jwkFor(key, "x").N, E: "%%%"}
	if _, err := parseRSAPublicKey(bad); err == nil {
		t.Error("expected error for invalid exponent encoding")
	}
}
