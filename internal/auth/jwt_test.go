package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret        = "test-jwt-secret"
	testRefreshSecret = "test-jwt-refresh-secret"
)

func TestGenerateAndValidateToken(t *testing.T) {
	userID := uuid.New()
	email := "user@test.com"

	token, err := GenerateToken(userID, email, TokenTypeAccess, testSecret, 15*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token, TokenTypeAccess, testSecret)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, email, claims.Email)
	assert.Equal(t, TokenTypeAccess, claims.Type)
}

func TestValidateToken(t *testing.T) {
	userID := uuid.New()
	email := "user@test.com"

	validToken, err := GenerateToken(userID, email, TokenTypeAccess, testSecret, 24*time.Hour)
	require.NoError(t, err)

	expiredToken, err := GenerateToken(userID, email, TokenTypeAccess, testSecret, -1*time.Hour)
	require.NoError(t, err)

	refreshToken, err := GenerateToken(userID, email, TokenTypeRefresh, testSecret, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name      string
		token     string
		secret    string
		wantErrIs error
	}{
		{
			name:      "expired token",
			token:     expiredToken,
			secret:    testSecret,
			wantErrIs: jwt.ErrTokenExpired,
		},
		{
			name:      "wrong secret",
			token:     validToken,
			secret:    "wrong-secret",
			wantErrIs: jwt.ErrTokenSignatureInvalid,
		},
		{
			name:      "malformed token",
			token:     "not.a.valid.jwt",
			secret:    testSecret,
			wantErrIs: jwt.ErrTokenMalformed,
		},
		{
			name:      "empty token",
			token:     "",
			secret:    testSecret,
			wantErrIs: jwt.ErrTokenMalformed,
		},
		{
			name:      "refresh token used as access",
			token:     refreshToken,
			secret:    testSecret,
			wantErrIs: ErrWrongTokenType,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateToken(tc.token, TokenTypeAccess, tc.secret)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErrIs)
		})
	}
}

func TestValidateToken_RejectsNonHMAC(t *testing.T) {
	// Algorithm confusion: a token signed with "none" should be rejected
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: uuid.NewString(),
		Email:  "user@test.com",
		Type:   TokenTypeAccess,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateToken(signed, TokenTypeAccess, testSecret)
	require.Error(t, err)
}

func TestIssuer_PairUsesSeparateSecrets(t *testing.T) {
	issuer := NewIssuer(testSecret, testRefreshSecret, 15*time.Minute, 7*24*time.Hour)
	userID := uuid.New()

	pair, err := issuer.Issue(userID, "user@test.com")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, pair.AccessExpiresIn)

	claims, err := issuer.ValidateAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)

	claims, err = issuer.ValidateRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)

	_, err = issuer.ValidateAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	_, err = issuer.ValidateRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}
