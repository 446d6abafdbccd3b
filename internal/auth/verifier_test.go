package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVerifierModes(t *testing.T) {
	v, err := NewVerifier("", "")
	require.NoError(t, err)
	assert.Equal(t, ModeOff, v.Mode)

	_, err = NewVerifier("hmac", "")
	assert.Error(t, err)
	_, err = NewVerifier("jwks", "x")
	assert.ErrorContains(t, err, "unsupported mode")
}

func TestAuthorizeOffAllowsEveryone(t *testing.T) {
	v, _ := NewVerifier(ModeOff, "")
	p, err := v.Authorize("")
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())
}

func TestAuthorizeHMAC(t *testing.T) {
	secret := []byte("s3cret")
	v, err := NewVerifier(ModeHMAC, string(secret))
	require.NoError(t, err)
	v.now = func() time.Time { return time.Unix(1000, 0) }

	admin, err := NewToken(secret, map[string]any{"sub": "ops", "role": "Admin", "exp": 2000})
	require.NoError(t, err)
	p, err := v.Authorize("Bearer " + admin)
	require.NoError(t, err)
	assert.Equal(t, Principal{Subject: "ops", Role: "admin"}, p)

	user, _ := NewToken(secret, map[string]any{"sub": "bob"})
	_, err = v.Authorize("Bearer " + user)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = v.Authorize("")
	assert.ErrorIs(t, err, ErrMissingToken)

	expired, _ := NewToken(secret, map[string]any{"role": "admin", "exp": 999})
	_, err = v.Authorize("Bearer " + expired)
	assert.ErrorContains(t, err, "expired")

	forged, _ := NewToken([]byte("other"), map[string]any{"role": "admin"})
	_, err = v.Authorize("Bearer " + forged)
	assert.ErrorContains(t, err, "bad signature")

	_, err = v.Authorize("Bearer not-a-jwt")
	assert.ErrorContains(t, err, "invalid JWT")
}
