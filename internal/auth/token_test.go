package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedback-portal/feedback-service/internal/domain"
)

func TestGenerateAndParseToken(t *testing.T) {
	tm := NewTokenManager("test-secret", 30)
	user := &domain.User{ID: "u-1", Username: "dora", Role: domain.RoleDO, BranchCode: "RO-101"}

	signed, meta, err := tm.GenerateToken(user)
	require.NoError(t, err)
	assert.NotEmpty(t, meta.ID)
	assert.Equal(t, 30*time.Minute, meta.ExpiresAt.Sub(meta.IssuedAt))

	claims, err := tm.ParseToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, meta.ID, claims.ID)
	assert.Equal(t, domain.RoleDO, claims.Role)
	assert.Equal(t, "RO-101", claims.BranchCode)
}

func TestTokensHaveDistinctIDs(t *testing.T) {
	tm := NewTokenManager("test-secret", 30)
	user := &domain.User{ID: "u-1", Role: domain.RoleRO}

	_, first, err := tm.GenerateToken(user)
	require.NoError(t, err)
	_, second, err := tm.GenerateToken(user)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	signed, _, err := NewTokenManager("one", 5).GenerateToken(&domain.User{ID: "u-1", Role: domain.RoleFO})
	require.NoError(t, err)

	_, err = NewTokenManager("two", 5).ParseToken(signed)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	tm := NewTokenManager("test-secret", 1)
	signed, _, err := tm.GenerateToken(&domain.User{ID: "u-1", Role: domain.RoleFO})
	require.NoError(t, err)

	tm.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = tm.ParseToken(signed)
	assert.Error(t, err)
}

func TestHashAndComparePassword(t *testing.T) {
	hashed, err := HashPassword("correct-horse", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hashed, "correct-horse"))
	assert.Error(t, ComparePassword(hashed, "wrong"))
}
