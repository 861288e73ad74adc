package app

import (
	"context"
	"testing"

	"github.com/GKAANU/Sonox-panel/internal/core"
	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

func TestRegistryBindAndLookup(t *testing.T) {
	r := NewRegistry()
	a := r.Bind("alice", nopConn{}, nil)
	require.True(t, a.Valid())

	got, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, a, got)
	uid, ok := r.UserOf(a)
	require.True(t, ok)
	assert.Equal(t, domain.UserID("alice"), uid)

	// A reconnect moves the directory entry to the newest connection.
	b := r.Bind("alice", nopConn{}, nil)
	assert.NotEqual(t, a, b)
	got, _ = r.Lookup("alice")
	assert.Equal(t, b, got)

	// Dropping the stale connection keeps the newer binding.
	require.True(t, r.Unbind(a))
	got, ok = r.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, b, got)

	require.True(t, r.Unbind(b))
	_, ok = r.Lookup("alice")
	assert.False(t, ok)
	assert.False(t, r.Unbind(b))
	assert.Zero(t, r.Len())
}

func TestRegistryAnonymousAndCancel(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	id := r.Bind("", nopConn{}, cancel)

	_, ok := r.Lookup("")
	assert.False(t, ok)
	_, ok = r.Conn(id)
	assert.True(t, ok)

	require.True(t, r.Cancel(id))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.False(t, r.Cancel("missing"))
}

func TestPairLifecycle(t *testing.T) {
	p := NewPairTable()
	assert.True(t, p.Open("a", "b"))
	s, ok := p.State("b", "a")
	require.True(t, ok)
	assert.Equal(t, PairPending, s)

	p.Activate("b", "a")
	// A repeated offer does not demote an active pair.
	assert.False(t, p.Open("a", "b"))
	s, _ = p.State("a", "b")
	assert.Equal(t, PairActive, s)
	assert.Equal(t, "active", s.String())

	pending, active := p.Counts()
	assert.Equal(t, 0, pending)
	assert.Equal(t, 1, active)

	assert.True(t, p.Close("a", "b"))
	assert.False(t, p.Close("a", "b"))
	_, ok = p.State("a", "b")
	assert.False(t, ok)
}

func TestPairDropReturnsOnlyAffectedPeers(t *testing.T) {
	p := NewPairTable()
	p.Open("a", "b")
	p.Open("c", "a")
	p.Open("d", "e")

	assert.ElementsMatch(t, []domain.ConnectionID{"b", "c"}, p.Drop("a"))
	assert.Empty(t, p.Drop("a"))
	_, ok := p.State("d", "e")
	assert.True(t, ok)
	pending, _ := p.Counts()
	assert.Equal(t, 1, pending)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	rl.Forget("a")
	assert.True(t, rl.Allow("a"))

	unlimited := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.Allow("a"))
	}
}

func TestPolicies(t *testing.T) {
	assert.Equal(t, DropFrame, SimplePolicy{}.OnBackPressure("a"))
	assert.Equal(t, Disconnect, StrictPolicy{}.OnBackPressure("a"))
}

func TestParsePolicy(t *testing.T) {
	for name, want := range map[string]Policy{
		"":            SimplePolicy{},
		"drop":        SimplePolicy{},
		" Disconnect": StrictPolicy{},
	} {
		p, err := ParsePolicy(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, p, name)
	}
	_, err := ParsePolicy("block")
	assert.ErrorContains(t, err, "block")
}
