package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"whatsapp-service/pkg/response"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims mirrors the token issued by the CRM auth service.
type Claims struct {
	UserID   string `json:"uid"`
	Role     string `json:"role,omitempty"`
	UserType string `json:"type"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

func (v *Verifier) ParseAndValidate(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Sign issues a token for uid. Used by tests and the local dev tooling.
func (v *Verifier) Sign(uid, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   uid,
		Role:     role,
		UserType: "user",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}
	// Browsers cannot set headers on a websocket upgrade.
	if q := r.URL.Query().Get("token"); q != "" {
		return q
	}
	return ""
}

// Require rejects requests without a valid token and stores the caller in
// the request context.
func (v *Verifier) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			response.Error(w, http.StatusUnauthorized, "Missing token")
			return
		}
		claims, err := v.ParseAndValidate(token)
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ContextUserID, claims.UserID)
		ctx = context.WithValue(ctx, ContextToken, token)
		ctx = context.WithValue(ctx, ContextRole, claims.Role)
		ctx = context.WithValue(ctx, ContextUserType, claims.UserType)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
