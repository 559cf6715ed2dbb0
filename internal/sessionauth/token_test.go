package sessionauth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/distio/internal/sessionauth"
)

func TestGenerateParseRoundtrip(t *testing.T) {
	issuer := sessionauth.NewIssuer([]byte("a-signing-key"), time.Hour)

	token, err := issuer.Generate("session-42")
	require.NoError(t, err)

	sessionID, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "session-42", sessionID)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	issuer := sessionauth.NewIssuer([]byte("key"), -time.Minute)

	token, err := issuer.Generate("session-1")
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, sessionauth.ErrInvalidToken)
}

func TestParseRejectsWrongKey(t *testing.T) {
	issuer := sessionauth.NewIssuer([]byte("key-one"), time.Hour)
	other := sessionauth.NewIssuer([]byte("key-two"), time.Hour)

	token, err := issuer.Generate("session-1")
	require.NoError(t, err)

	_, err = other.Parse(token)
	assert.ErrorIs(t, err, sessionauth.ErrInvalidToken)
}

func TestParseRejectsNonHMACAlgorithm(t *testing.T) {
	issuer := sessionauth.NewIssuer([]byte("key"), time.Hour)

	claims := sessionauth.Claims{SessionID: "x"}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Parse(signed)
	assert.ErrorIs(t, err, sessionauth.ErrInvalidToken)
}

func TestParseRejectsGarbage(t *testing.T) {
	issuer := sessionauth.NewIssuer([]byte("key"), time.Hour)
	_, err := issuer.Parse("not-a-token")
	assert.ErrorIs(t, err, sessionauth.ErrInvalidToken)
}
