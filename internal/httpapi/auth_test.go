package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizeBearerRoundTrip(t *testing.T) {
	token := SignToken("secret", "svc-test", []string{"runs:read", "runs:write"}, time.Time{})

	claims, authErr := authorizeBearer("Bearer "+token, "secret", "runs:write", time.Now())
	require.Nil(t, authErr)
	assert.Equal(t, "svc-test", claims.Subject)
	_, ok := claims.Scopes["runs:read"]
	assert.True(t, ok)
}

func TestAuthorizeBearerRejectsMissingHeader(t *testing.T) {
	_, authErr := authorizeBearer("", "secret", "", time.Now())
	require.NotNil(t, authErr)
	assert.Equal(t, 401, authErr.status)
}

func TestAuthorizeBearerRejectsWrongSecret(t *testing.T) {
	token := SignToken("secret", "svc-test", []string{"runs:read"}, time.Time{})

	_, authErr := authorizeBearer("Bearer "+token, "other-secret", "", time.Now())
	require.NotNil(t, authErr)
	assert.Equal(t, 401, authErr.status)
	assert.Equal(t, "jwt signature mismatch", authErr.message)
}

func TestAuthorizeBearerRejectsMissingScope(t *testing.T) {
	token := SignToken("secret", "svc-test", []string{"runs:read"}, time.Time{})

	_, authErr := authorizeBearer("Bearer "+token, "secret", "runs:write", time.Now())
	require.NotNil(t, authErr)
	assert.Equal(t, 403, authErr.status)
	assert.Equal(t, "forbidden", authErr.code)
}

func TestAuthorizeBearerRejectsExpiredToken(t *testing.T) {
	token := SignToken("secret", "svc-test", []string{"runs:read"}, time.Now().Add(-time.Minute))

	_, authErr := authorizeBearer("Bearer "+token, "secret", "runs:read", time.Now())
	require.NotNil(t, authErr)
	assert.Equal(t, 401, authErr.status)
	assert.Equal(t, "token expired", authErr.message)
}

func TestAuthorizeBearerAcceptsFutureExpiry(t *testing.T) {
	token := SignToken("secret", "svc-test", []string{"runs:read"}, time.Now().Add(time.Hour))

	_, authErr := authorizeBearer("Bearer "+token, "secret", "runs:read", time.Now())
	assert.Nil(t, authErr)
}

func TestAuthorizeBearerScopesAsSpaceSeparatedString(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"svc-test","scopes":"runs:read fields:read"}`))
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	signingInput := header + "." + payload
	mac := hmac.New(sha256.New, []byte("secret"))
	_, _ = mac.Write([]byte(signingInput))
	token := signingInput + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	claims, authErr := authorizeBearer("Bearer "+token, "secret", "fields:read", time.Now())
	require.Nil(t, authErr)
	_, ok := claims.Scopes["runs:read"]
	assert.True(t, ok)
}

func TestAuthorizeBearerRejectsUnsignedAlgorithm(t *testing.T) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"svc-test"}`))
	token := header + "." + payload + "."

	_, authErr := authorizeBearer("Bearer "+token, "secret", "", time.Now())
	require.NotNil(t, authErr)
	assert.Equal(t, "unsupported jwt algorithm", authErr.message)
}

func TestAuthorizeBearerRejectsMissingSubject(t *testing.T) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"scopes":["runs:read"]}`))
	signingInput := header + "." + payload
	mac := hmac.New(sha256.New, []byte("secret"))
	_, _ = mac.Write([]byte(signingInput))
	token := signingInput + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	_, authErr := authorizeBearer("Bearer "+token, "secret", "", time.Now())
	require.NotNil(t, authErr)
	assert.Equal(t, "missing sub claim", authErr.message)
}
