package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenAuth guards handlers with a shared token passed as a bearer header or
// a token query parameter. An empty token disables the check.
type TokenAuth struct {
	token string
}

func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{token: token}
}

func (m *TokenAuth) Check(r *http.Request) error {
	if m == nil || m.token == "" {
		return nil
	}
	got := r.URL.Query().Get("token")
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		got = strings.TrimPrefix(h, "Bearer ")
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(m.token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

func (m *TokenAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := m.Check(r); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
