package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	id := NewIdentity(Credential{AccessKey: "AK", SecretKey: "SK", Description: "admin"})
	ctx := WithIdentity(context.Background(), id)

	got, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, id, got)
	assert.Equal(t, "AK (admin)", got.String())
	assert.Equal(t, "AK", Identity{AccessKey: "AK", SecretKey: "SK"}.String())
}

func TestStaticStore(t *testing.T) {
	ctx := context.Background()
	s := NewStaticStore(
		Credential{AccessKey: "A", SecretKey: "1"},
		Credential{AccessKey: "B", SecretKey: "2"},
		Credential{AccessKey: "A", SecretKey: "3"},
	)
	assert.Equal(t, 2, s.Len())

	c, ok, err := s.Lookup(ctx, "A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3", c.SecretKey)

	_, ok, err = s.Lookup(ctx, "C")
	require.NoError(t, err)
	assert.False(t, ok)

	s.Put(Credential{AccessKey: "C", SecretKey: "4"})
	_, ok, _ = s.Lookup(ctx, "C")
	assert.True(t, ok)

	s.Delete("C")
	s.Delete("not-exist")
	_, ok, _ = s.Lookup(ctx, "C")
	assert.False(t, ok)
}

func TestChainStore(t *testing.T) {
	ctx := context.Background()
	first := NewStaticStore(Credential{AccessKey: "A", SecretKey: "first"})
	second := NewStaticStore(
		Credential{AccessKey: "A", SecretKey: "second"},
		Credential{AccessKey: "B", SecretKey: "second"},
	)

	t.Run("first-hit-wins", func(t *testing.T) {
		c, ok, err := ChainStore{first, second}.Lookup(ctx, "A")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "first", c.SecretKey)
	})

	t.Run("fallthrough", func(t *testing.T) {
		c, ok, err := ChainStore{first, second}.Lookup(ctx, "B")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "second", c.SecretKey)
	})

	t.Run("miss", func(t *testing.T) {
		_, ok, err := ChainStore{first, second}.Lookup(ctx, "X")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("error-stops", func(t *testing.T) {
		failing := StoreFunc(func(ctx context.Context, accessKey string) (Credential, bool, error) {
			return Credential{}, false, errors.New("down")
		})
		_, ok, err := ChainStore{failing, second}.Lookup(ctx, "B")
		require.Error(t, err)
		assert.Regexp(t, "down", err.Error())
		assert.False(t, ok)
	})

	t.Run("empty", func(t *testing.T) {
		_, ok, err := ChainStore{}.Lookup(ctx, "A")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCachedStore(t *testing.T) {
	ctx := context.Background()

	calls := 0
	var fail bool
	inner := StoreFunc(func(ctx context.Context, accessKey string) (Credential, bool, error) {
		calls++
		if fail {
			return Credential{}, false, errors.New("down")
		}
		if accessKey == "A" {
			return Credential{AccessKey: "A", SecretKey: "S"}, true, nil
		}
		return Credential{}, false, nil
	})

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewCachedStore(inner, time.Minute)
	defer s.Close()
	s.now = func() time.Time { return now }

	c, ok, err := s.Lookup(ctx, "A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "S", c.SecretKey)

	s.Lookup(ctx, "A")
	assert.Equal(t, 1, calls, "served from cache")

	_, ok, _ = s.Lookup(ctx, "B")
	assert.False(t, ok)
	s.Lookup(ctx, "B")
	assert.Equal(t, 2, calls, "misses are cached too")

	now = now.Add(time.Minute)
	s.Lookup(ctx, "A")
	assert.Equal(t, 3, calls, "expired")

	s.Invalidate("A")
	s.Lookup(ctx, "A")
	assert.Equal(t, 4, calls, "invalidated")

	fail = true
	s.Invalidate("A")
	_, _, err = s.Lookup(ctx, "A")
	require.Error(t, err)
	fail = false
	_, ok, _ = s.Lookup(ctx, "A")
	assert.True(t, ok, "errors are not cached")
	assert.Equal(t, 6, calls)

	now = now.Add(time.Hour)
	s.evict()
	s.mu.RLock()
	assert.Len(t, s.entries, 0)
	s.mu.RUnlock()
}

func TestNewCachedStore_invalidTTL(t *testing.T) {
	assert.Panics(t, func() {
		NewCachedStore(NewStaticStore(), 0)
	})
}
