package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity — аутентифицированный пользователь запроса.
type Identity struct {
	UserID string
	Email  string
	Admin  bool
}

type contextKey struct{}

var identityKey contextKey

// authenticate извлекает личность запроса. С настроенным JWTSecret принимается
// только Bearer-токен HS256; без секрета включается dev-режим с заголовками
// X-User-ID / X-User-Email / X-Admin.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.resolveIdentity(r)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) resolveIdentity(r *http.Request) (Identity, error) {
	if s.cfg.JWTSecret == "" {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if userID == "" {
			return Identity{}, fmt.Errorf("X-User-ID header is required")
		}
		return Identity{
			UserID: userID,
			Email:  strings.TrimSpace(r.Header.Get("X-User-Email")),
			Admin:  r.Header.Get("X-Admin") == "true",
		}, nil
	}

	authHeader := r.Header.Get("Authorization")
	raw, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found || strings.TrimSpace(raw) == "" {
		return Identity{}, fmt.Errorf("bearer token is required")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Identity{}, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("invalid token claims")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return Identity{}, fmt.Errorf("token subject is required")
	}

	email, _ := claims["email"].(string)
	admin, _ := claims["admin"].(bool)

	return Identity{UserID: subject, Email: email, Admin: admin}, nil
}

// requireAdmin пропускает только запросы с админским флагом в личности.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityFrom(r.Context())
		if !ok || !identity.Admin {
			s.writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	}
}

func identityFrom(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}
