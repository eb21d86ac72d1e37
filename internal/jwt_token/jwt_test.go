package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "clocklayer/pkg/domain"
	dErrors "clocklayer/pkg/domain-errors"
)

var (
	identityID = id.IdentityID("tw_1234")
	sessionID  = id.NewSessionID()
)

func newService(ttl time.Duration) *JWTService {
	return NewJWTService("test-signing-key", "test-issuer", "test-audience", ttl)
}

func Test_IssueAccessToken(t *testing.T) {
	svc := newService(time.Hour)

	token, expiresAt, err := svc.IssueAccessToken(identityID, sessionID)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "tw_1234", claims.IdentityID)
	assert.Equal(t, sessionID.String(), claims.SessionID)
	assert.Equal(t, "tw_1234", claims.Subject)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := newService(time.Hour).ValidateToken("invalid-token-string")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	svc := newService(time.Hour)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.IssueAccessToken(identityID, sessionID)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}

func Test_ValidateToken_WrongKeyOrAudience(t *testing.T) {
	token, _, err := newService(time.Hour).IssueAccessToken(identityID, sessionID)
	require.NoError(t, err)

	_, err = NewJWTService("other-key", "test-issuer", "test-audience", time.Hour).ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = NewJWTService("test-signing-key", "test-issuer", "mobile", time.Hour).ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{IdentityID: "tw_1234"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newService(time.Hour).ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_Adapter(t *testing.T) {
	svc := newService(time.Hour)
	token, _, err := svc.IssueAccessToken(identityID, sessionID)
	require.NoError(t, err)

	claims, err := svc.Validator().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "tw_1234", claims.IdentityID)
	assert.Equal(t, sessionID.String(), claims.SessionID)

	_, err = svc.Validator().ValidateToken("nope")
	require.Error(t, err)
}
