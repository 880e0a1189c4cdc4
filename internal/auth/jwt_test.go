package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateValidateRoundTrip(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour, "cultureradar")

	token, err := manager.Generate(42, "alice", []string{RoleUser, RoleModerator})
	require.NoError(t, err)

	claims, err := manager.Validate(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.UserID())
	require.Equal(t, "alice", claims.Username)
	require.True(t, claims.HasRole(RoleModerator))
	require.False(t, claims.HasRole(RoleAdmin))
	require.Equal(t, "cultureradar", claims.Issuer)
}

func TestGenerateRejectsEmptyIdentity(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour, "cultureradar")

	_, err := manager.Generate(0, "alice", nil)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = manager.Generate(42, "", nil)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsBadTokens(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour, "cultureradar")

	_, err := manager.Validate("")
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = manager.Validate("not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)

	// Signed with a different secret.
	other := NewJWTManager("other-secret", time.Hour, "cultureradar")
	token, err := other.Generate(1, "mallory", nil)
	require.NoError(t, err)
	_, err = manager.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	manager := NewJWTManager("test-secret", -time.Minute, "cultureradar")

	token, err := manager.Generate(1, "alice", nil)
	require.NoError(t, err)

	_, err = manager.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromHeader(t *testing.T) {
	token, err := TokenFromHeader("Bearer abc.def.ghi")
	require.NoError(t, err)
	require.Equal(t, "abc.def.ghi", token)

	token, err = TokenFromHeader("bearer abc")
	require.NoError(t, err)
	require.Equal(t, "abc", token)

	_, err = TokenFromHeader("")
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = TokenFromHeader("Basic dXNlcjpwYXNz")
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = TokenFromHeader("Bearer")
	require.ErrorIs(t, err, ErrMissingToken)
}
