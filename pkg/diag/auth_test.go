package diag

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewAuthReturnsNilWhenUnconfigured(t *testing.T) {
	if NewAuth(nil, "") != nil {
		t.Fatal("NewAuth with no keys and no secret should return nil")
	}
}

func TestAuthExemptsHealth(t *testing.T) {
	a := NewAuth([]string{"secret-key"}, "")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	called := false
	a.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rec, req)

	if !called {
		t.Fatal("/health must bypass auth")
	}
}

func TestAuthRejectsMissingCredentials(t *testing.T) {
	a := NewAuth([]string{"secret-key"}, "")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dump", nil)

	a.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached without credentials")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthAcceptsValidAPIKeyHeader(t *testing.T) {
	a := NewAuth([]string{"secret-key"}, "")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dump", nil)
	req.Header.Set("X-API-Key", "secret-key")

	called := false
	a.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rec, req)

	if !called {
		t.Fatal("valid X-API-Key should be accepted")
	}
}

func TestAuthAcceptsValidJWTBearer(t *testing.T) {
	secret := "jwt-secret"
	a := NewAuth(nil, secret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "dashboard"})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dump", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	called := false
	a.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rec, req)

	if !called {
		t.Fatal("valid JWT bearer token should be accepted")
	}
}

func TestAuthRejectsBadJWT(t *testing.T) {
	a := NewAuth(nil, "jwt-secret")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dump", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")

	a.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached with a forged token")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
