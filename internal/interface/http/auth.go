package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BEARER TOKEN AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// Authenticator verifies HS256 bearer tokens and extracts the caller id.
// The id is read from the nested "user.id" claim, falling back to "sub".
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator creates an Authenticator. An empty issuer disables the
// issuer check.
func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Authenticate returns the caller id carried by token.
func (a *Authenticator) Authenticate(token string) (string, error) {
	if token == "" {
		return "", shared.ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", shared.WrapError("auth", "Authenticate", shared.ErrUnauthenticated, "token is not valid", err)
	}

	if id := callerFromClaims(claims); id != "" {
		return id, nil
	}
	return "", shared.ErrInvalidToken
}

func callerFromClaims(claims jwt.MapClaims) string {
	if u, ok := claims["user"].(map[string]any); ok {
		switch id := u["id"].(type) {
		case string:
			return strings.TrimSpace(id)
		case float64:
			return strconv.FormatFloat(id, 'f', -1, 64)
		}
	}
	sub, _ := claims.GetSubject()
	return strings.TrimSpace(sub)
}

// IssueToken signs a token for userID valid for ttl. Used by tooling and
// tests; credential issuance is otherwise external.
func (a *Authenticator) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user": map[string]any{"id": userID},
		"sub":  userID,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	if a.issuer != "" {
		claims["iss"] = a.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

const contextKeyCaller contextKey = "caller_id"

func withCaller(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyCaller, id)
}

// callerID returns the authenticated caller id stored by requireAuth.
func callerID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyCaller).(string)
	return id
}
