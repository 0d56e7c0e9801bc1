// Package auth signs and checks the bearer tokens exchanged with the analysis
// service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssueAccessToken creates a signed HS256 JWT for subject.
func IssueAccessToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateAccessToken parses and validates a JWT, returning its subject.
func ValidateAccessToken(secret, tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

// TokenSource hands out a cached token and re-signs it shortly before it
// expires. A TokenSource with an empty secret yields no token.
type TokenSource struct {
	secret  string
	subject string
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewTokenSource(secret, subject string, ttl time.Duration) *TokenSource {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenSource{secret: secret, subject: subject, ttl: ttl, now: time.Now}
}

// Enabled reports whether requests should carry a token at all.
func (s *TokenSource) Enabled() bool {
	return s != nil && s.secret != ""
}

// Token returns a token valid for at least a tenth of the TTL.
func (s *TokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if s.token != "" && now.Add(s.ttl/10).Before(s.expires) {
		return s.token, nil
	}
	tok, err := IssueAccessToken(s.secret, s.subject, s.ttl)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	s.token = tok
	s.expires = now.Add(s.ttl)
	return tok, nil
}

// Apply sets the Authorization header on req when the source is enabled.
func (s *TokenSource) Apply(req *http.Request) error {
	if !s.Enabled() {
		return nil
	}
	tok, err := s.Token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

type contextKey string

const subjectKey contextKey = "subject"

// SubjectFrom returns the authenticated subject stored by Middleware.
func SubjectFrom(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}

// Middleware validates the Bearer token in the Authorization header.
// Requests to public paths bypass validation. Websocket clients that cannot
// set headers may pass the token as ?token=.
func Middleware(secret string, publicPaths []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, p := range publicPaths {
			if r.URL.Path == p {
				next.ServeHTTP(w, r)
				return
			}
		}

		tokenStr := ""
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			tokenStr = strings.TrimPrefix(h, "Bearer ")
		} else if q := r.URL.Query().Get("token"); q != "" {
			tokenStr = q
		}

		if tokenStr == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		subject, err := ValidateAccessToken(secret, tokenStr)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
