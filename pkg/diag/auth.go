package diag

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Auth validates API keys and JWTs on diagnostic requests. NewAuth
// returns a nil *Auth when no keys and no secret are configured, so
// callers can skip Use(); a nil *Auth must not be installed, since its
// Handler dereferences the receiver.
type Auth struct {
	keys      map[string]struct{}
	jwtSecret []byte
}

// NewAuth builds an Auth middleware from a set of static API keys and
// an optional JWT HMAC secret. Returns nil if both are empty, meaning
// no auth is configured.
func NewAuth(keys []string, jwtSecret string) *Auth {
	if len(keys) == 0 && jwtSecret == "" {
		return nil
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	var secret []byte
	if jwtSecret != "" {
		secret = []byte(jwtSecret)
	}
	return &Auth{keys: set, jwtSecret: secret}
}

// Handler wraps next with the auth check. /health is always exempt.
func (a *Auth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if a.validJWT(token) || a.validKey(token) {
				next.ServeHTTP(w, r)
				return
			}
		}

		if apiKey := r.Header.Get("X-API-Key"); apiKey != "" && a.validKey(apiKey) {
			next.ServeHTTP(w, r)
			return
		}

		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

func (a *Auth) validKey(key string) bool {
	_, ok := a.keys[key]
	return ok
}

func (a *Auth) validJWT(tokenString string) bool {
	if a.jwtSecret == nil {
		return false
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	return err == nil && token.Valid
}
