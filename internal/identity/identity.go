package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Principal is the authenticated caller. Its UserID is trusted by the room
// service only after Verify succeeded.
type Principal struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
}

type claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Issue signs a token for p that expires after ttl. A zero ttl never expires.
// Tokens are normally minted by the external identity provider; Issue exists
// for local tooling and tests.
func (v *Verifier) Issue(p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Name: p.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  p.UserID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl != 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
}

func (v *Verifier) Verify(tokenString string) (Principal, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid || c.Subject == "" {
		return Principal{}, ErrInvalidToken
	}

	name := c.Name
	if name == "" {
		name = c.Subject
	}

	return Principal{UserID: c.Subject, Name: name}, nil
}

// TokenFromRequest reads a bearer token from the Authorization header, falling
// back to the token query parameter since browsers cannot set headers on
// websocket upgrades.
func TokenFromRequest(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		return token, ok && token != ""
	}

	token := r.URL.Query().Get("token")
	return token, token != ""
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
