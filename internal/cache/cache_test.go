package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedback-portal/feedback-service/internal/domain"
)

func setupStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, opts...), mr
}

func TestOfficersMissThenHit(t *testing.T) {
	store, mr := setupStore(t, WithOfficersTTL(time.Minute))
	ctx := context.Background()

	_, err := store.Officers(ctx, "RO-101")
	assert.ErrorIs(t, err, ErrMiss)

	officers := []domain.Officer{{ID: "u-1", Username: "asha", DisplayName: "Asha K"}}
	require.NoError(t, store.SetOfficers(ctx, "RO-101", officers))

	got, err := store.Officers(ctx, "RO-101")
	require.NoError(t, err)
	assert.Equal(t, officers, got)
	assert.Equal(t, time.Minute, mr.TTL("officers:RO-101"))

	mr.FastForward(2 * time.Minute)
	_, err = store.Officers(ctx, "RO-101")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestInvalidateDirectoryForBranch(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetOfficers(ctx, "RO-101", []domain.Officer{{ID: "u-1"}}))
	require.NoError(t, store.SetOfficers(ctx, "RO-202", []domain.Officer{{ID: "u-2"}}))
	require.NoError(t, store.SetFilterOptions(ctx, &domain.FilterOptions{ROCodes: []string{"RO-101"}}))

	require.NoError(t, store.InvalidateDirectory(ctx, "RO-101"))

	assert.False(t, mr.Exists("officers:RO-101"))
	assert.False(t, mr.Exists("filters:options"))
	assert.True(t, mr.Exists("officers:RO-202"))
}

func TestInvalidateDirectoryAll(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetOfficers(ctx, "RO-101", []domain.Officer{{ID: "u-1"}}))
	require.NoError(t, store.SetOfficers(ctx, "RO-202", []domain.Officer{{ID: "u-2"}}))

	require.NoError(t, store.InvalidateDirectory(ctx))

	assert.False(t, mr.Exists("officers:RO-101"))
	assert.False(t, mr.Exists("officers:RO-202"))
}

func TestFilterOptionsRoundTrip(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	options := &domain.FilterOptions{
		ROCodes:          []string{"RO-101", "RO-202"},
		Statuses:         []string{"Not Verified", "Verified"},
		WorkflowStatuses: []string{"Pending", "Escalated"},
	}
	require.NoError(t, store.SetFilterOptions(ctx, options))

	got, err := store.FilterOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, options, got)
}

func TestRevokedTokensExpire(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.RevokeToken(ctx, "jti-1", 30*time.Second))
	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(time.Minute)
	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestNilClientAlwaysMisses(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	_, err := store.Officers(ctx, "RO-101")
	assert.ErrorIs(t, err, ErrMiss)
	require.NoError(t, store.SetOfficers(ctx, "RO-101", nil))
	require.NoError(t, store.InvalidateDirectory(ctx))
	revoked, err := store.IsRevoked(ctx, "jti")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisFailureSurfaces(t *testing.T) {
	store, mr := setupStore(t)
	mr.Close()

	_, err := store.Officers(context.Background(), "RO-101")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}
