package secret

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/retail_console/internal/cache"
	"github.com/Skotchmaster/retail_console/internal/models"
)

type fakeSessions struct {
	secret string
	found  bool
	err    error
	calls  int
	role   models.Role
	// after, when set, replaces secret once the first lookup has been served.
	after string
}

func (f *fakeSessions) LiveSecret(_ context.Context, _, _ string, role models.Role) (string, bool, error) {
	f.calls++
	f.role = role
	s := f.secret
	if f.after != "" {
		f.secret = f.after
	}
	return s, f.found, f.err
}

func newProvisioner(t *testing.T, sessions SessionLookup) (*miniredis.Miniredis, *Provisioner) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewProvisioner(cache.New(client), sessions, 0)
}

func TestProvisioner_Issue(t *testing.T) {
	t.Parallel()
	mr, p := newProvisioner(t, &fakeSessions{})

	s, err := p.Issue(context.Background(), "m1", "dev-1")
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Za-z0-9]{16}$`, s)

	cached, err := mr.Get("sk:m1:dev-1")
	require.NoError(t, err)
	assert.Equal(t, s, cached)
	assert.Equal(t, time.Hour, mr.TTL("sk:m1:dev-1"))

	s2, err := p.Issue(context.Background(), "m1", "dev-1")
	require.NoError(t, err)
	assert.NotEqual(t, s, s2)

	_, err = p.Issue(context.Background(), "", "dev-1")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestProvisioner_Resolve_CacheHit(t *testing.T) {
	t.Parallel()
	sessions := &fakeSessions{}
	mr, p := newProvisioner(t, sessions)
	require.NoError(t, mr.Set("sk:m1:dev-1", "cached-secret"))

	s, ok, err := p.Resolve(context.Background(), "m1", "dev-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cached-secret", s)
	assert.Zero(t, sessions.calls)
}

func TestProvisioner_Resolve_FallsBackAndRecaches(t *testing.T) {
	t.Parallel()
	sessions := &fakeSessions{secret: "durable-secret", found: true}
	mr, p := newProvisioner(t, sessions)

	s, ok, err := p.Resolve(context.Background(), "m1", "dev-1", models.RoleOwner)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "durable-secret", s)
	assert.Equal(t, 2, sessions.calls)
	assert.Equal(t, models.RoleOwner, sessions.role)

	cached, err := mr.Get("sk:m1:dev-1")
	require.NoError(t, err)
	assert.Equal(t, "durable-secret", cached)
}

func TestProvisioner_Resolve_RowReplacedDuringRecache(t *testing.T) {
	t.Parallel()
	sessions := &fakeSessions{secret: "old-secret", found: true, after: "new-secret"}
	mr, p := newProvisioner(t, sessions)

	s, ok, err := p.Resolve(context.Background(), "m1", "dev-1", models.RoleOwner)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new-secret", s)
	assert.False(t, mr.Exists("sk:m1:dev-1"), "a superseded secret is not left in the cache")

	s, ok, err = p.Resolve(context.Background(), "m1", "dev-1", models.RoleOwner)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new-secret", s)
	cached, err := mr.Get("sk:m1:dev-1")
	require.NoError(t, err)
	assert.Equal(t, "new-secret", cached)
}

func TestProvisioner_Resolve_NoLiveSession(t *testing.T) {
	t.Parallel()
	_, p := newProvisioner(t, &fakeSessions{found: false})

	s, ok, err := p.Resolve(context.Background(), "m1", "dev-1", models.RoleUser)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, s)

	_, ok, err = p.Resolve(context.Background(), "m1", "", models.RoleUser)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProvisioner_Resolve_FailsClosed(t *testing.T) {
	t.Parallel()

	_, p := newProvisioner(t, &fakeSessions{err: errors.New("db down")})
	_, ok, err := p.Resolve(context.Background(), "m1", "dev-1", models.RoleUser)
	require.Error(t, err)
	assert.False(t, ok)

	mr, p := newProvisioner(t, &fakeSessions{secret: "x", found: true})
	mr.Close()
	_, ok, err = p.Resolve(context.Background(), "m1", "dev-1", models.RoleUser)
	require.ErrorIs(t, err, cache.ErrUnavailable)
	assert.False(t, ok)
}

func TestProvisioner_Evict(t *testing.T) {
	t.Parallel()
	mr, p := newProvisioner(t, &fakeSessions{})

	_, err := p.Issue(context.Background(), "m1", "dev-1")
	require.NoError(t, err)
	require.NoError(t, p.Evict(context.Background(), "m1", "dev-1"))
	assert.False(t, mr.Exists("sk:m1:dev-1"))

	require.NoError(t, p.Evict(context.Background(), "m1", "dev-1"))
}
