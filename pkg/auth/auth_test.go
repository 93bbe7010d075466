package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123"

func TestVerifier_IssueAndVerify(t *testing.T) {
	v := NewVerifier(testSecret)
	token, err := v.Issue(Principal{UserID: "u1", Email: "a@example.com", Name: "Alice", Role: "user"}, time.Hour)
	require.NoError(t, err)

	p, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "Alice", p.Name)
	assert.False(t, p.IsAdmin())
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier(testSecret)

	t.Run("empty", func(t *testing.T) {
		_, err := v.Verify("")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewVerifier("another-secret-value").Issue(Principal{UserID: "u1"}, time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		past := NewVerifier(testSecret)
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := past.Issue(Principal{UserID: "u1"}, time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("other algorithm", func(t *testing.T) {
		claims := Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing user id", func(t *testing.T) {
		token, err := v.Issue(Principal{Name: "nobody"}, time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), &Principal{UserID: "admin", Role: RoleAdmin})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.True(t, p.IsAdmin())
}
