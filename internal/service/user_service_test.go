package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"uchat/internal/domain"
	"uchat/internal/service"
)

func TestLookupPublicKey(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUserRepo)
	svc := service.NewUserService(repo, service.KeyCacheOptions{Size: 8, TTL: time.Minute})

	repo.On("GetByNickname", mock.Anything, "alice").Return(alice, nil).Once()
	repo.On("GetByNickname", mock.Anything, "ghost").Return(nil, nil)

	key, ok, err := svc.LookupPublicKey(ctx, "ALICE")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "PA", key)

	// Served from cache; the repo expectation above allows a single call.
	key, ok, err = svc.LookupPublicKey(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "PA", key)
	repo.AssertNumberOfCalls(t, "GetByNickname", 1)

	_, ok, err = svc.LookupPublicKey(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = svc.LookupPublicKey(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLookupPublicKeys(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUserRepo)
	svc := service.NewUserService(repo, service.KeyCacheOptions{Size: 8, TTL: time.Minute})

	t.Run("Empty", func(t *testing.T) {
		res, err := svc.LookupPublicKeys(ctx, nil)
		require.NoError(t, err)
		assert.NotNil(t, res)
		assert.Empty(t, res)
		repo.AssertNotCalled(t, "GetByNicknames", mock.Anything, mock.Anything)
	})

	t.Run("OmitsUnknown", func(t *testing.T) {
		repo.On("GetByNicknames", mock.Anything, []string{"alice", "bob", "ghost"}).
			Return(map[string]*domain.User{"alice": alice, "bob": bob}, nil).Once()

		res, err := svc.LookupPublicKeys(ctx, []string{"Alice", "bob", "ghost"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"Alice": "PA", "bob": "PB"}, res)
	})

	t.Run("CachedEntriesSkipRepo", func(t *testing.T) {
		res, err := svc.LookupPublicKeys(ctx, []string{"alice", "BOB"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"Alice": "PA", "bob": "PB"}, res)
		repo.AssertNumberOfCalls(t, "GetByNicknames", 1)
	})
}

func TestSearchUsers(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUserRepo)
	svc := service.NewUserService(repo, service.KeyCacheOptions{})

	res, err := svc.SearchUsers(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, res)
	repo.AssertNotCalled(t, "SearchByNickname", mock.Anything, mock.Anything, mock.Anything)

	repo.On("SearchByNickname", mock.Anything, "al", service.SearchLimit).Return([]string{"Alice", "Alfred"}, nil)
	res, err = svc.SearchUsers(ctx, " al ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Alfred"}, res)
}
