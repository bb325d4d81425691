package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionCookie is the cookie carrying the signed session token.
const SessionCookie = "session"

const sessionTTL = 24 * time.Hour

type sessionClaims struct {
	Epoch int `json:"epoch"`
	jwt.RegisteredClaims
}

type sessionKey struct{}

// issueToken signs a session token for email. The cookie itself carries no
// expiry; the token's exp claim is checked against the server clock.
func (s *Server) issueToken(email string) (string, error) {
	now := s.now()
	expires := now.Add(sessionTTL)
	claims := sessionClaims{
		Epoch: s.currentEpoch(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sandbox: sign session: %w", err)
	}
	return signed, nil
}

// parseToken verifies the signature, expiry and epoch of raw.
func (s *Server) parseToken(raw string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Epoch != s.currentEpoch() {
		return nil, errors.New("sandbox: session revoked")
	}
	return claims, nil
}

func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := sessionToken(r)
		if raw == "" {
			s.fail(w, r, http.StatusUnauthorized, "Authentication required", "")
			return
		}
		claims, err := s.parseToken(raw)
		if err != nil {
			clearSessionCookie(w)
			s.fail(w, r, http.StatusUnauthorized, "Session expired", err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireSubscription(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.data.mu.Lock()
		allowed := s.data.canGenerate(s.now())
		s.data.mu.Unlock()
		if !allowed {
			s.fail(w, r, http.StatusForbidden, "Active subscription required", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
