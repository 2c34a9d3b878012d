package identity

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("secret")
	token, err := v.Issue(Principal{UserID: "u1", Name: "alice"}, time.Minute)
	require.NoError(t, err)

	p, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: "u1", Name: "alice"}, p)
}

func TestVerifier_NameDefaultsToSubject(t *testing.T) {
	v := NewVerifier("secret")
	token, err := v.Issue(Principal{UserID: "u1"}, 0)
	require.NoError(t, err)

	p, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.Name)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("secret")

	wrongKey, err := NewVerifier("other").Issue(Principal{UserID: "u1"}, time.Minute)
	require.NoError(t, err)

	expired, err := v.Issue(Principal{UserID: "u1"}, -time.Minute)
	require.NoError(t, err)

	noSubject, err := v.Issue(Principal{}, time.Minute)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tcases := map[string]string{
		"garbage":    "not-a-token",
		"wrong key":  wrongKey,
		"expired":    expired,
		"no subject": noSubject,
		"alg none":   none,
	}

	for name, token := range tcases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=q", nil)
	token, ok := TokenFromRequest(r)
	assert.True(t, ok)
	assert.Equal(t, "q", token)

	r.Header.Set("Authorization", "Bearer h")
	token, ok = TokenFromRequest(r)
	assert.True(t, ok)
	assert.Equal(t, "h", token)

	r.Header.Set("Authorization", "Basic abc")
	_, ok = TokenFromRequest(r)
	assert.False(t, ok)

	_, ok = TokenFromRequest(httptest.NewRequest("GET", "/ws", nil))
	assert.False(t, ok)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{UserID: "u1"})
	p, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", p.UserID)
}
