package orch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/GKAANU/Sonox-panel/internal/app"
	"github.com/GKAANU/Sonox-panel/internal/core"
	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/GKAANU/Sonox-panel/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []protocol.Message
	full   bool
	// onSend runs before each frame is accepted.
	onSend func()
}

func (c *fakeConn) TrySend(f core.Frame) error {
	if c.onSend != nil {
		c.onSend()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return core.ErrBackpressure
	}
	m, err := protocol.Decode(f)
	if err != nil {
		return err
	}
	c.frames = append(c.frames, m)
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) received() []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Message(nil), c.frames...)
}

// calls drops the identity-assigned greeting.
func (c *fakeConn) calls() []protocol.Message {
	var out []protocol.Message
	for _, m := range c.received() {
		if m.Type != protocol.IdentityAssigned {
			out = append(out, m)
		}
	}
	return out
}

type peer struct {
	id   domain.ConnectionID
	conn *fakeConn
}

func connect(o *Orchestrator, uid domain.UserID) peer {
	c := &fakeConn{}
	return peer{id: o.Connect(uid, c, nil), conn: c}
}

var offer = json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

func TestConnectAssignsIdentity(t *testing.T) {
	o := New(app.SimplePolicy{}, nil)
	a := connect(o, "alice")

	got := a.conn.received()
	require.Len(t, got, 1)
	assert.Equal(t, protocol.IdentityAssigned, got[0].Type)
	assert.Equal(t, a.id, got[0].Identity)
	assert.Equal(t, 1, o.Stats().Connections)
}

func TestCallIsDeliveredOnlyToTarget(t *testing.T) {
	o := New(app.SimplePolicy{}, nil)
	a, b, c := connect(o, "a"), connect(o, "b"), connect(o, "c")

	// A forged caller identity is replaced by the sender's.
	require.True(t, o.CallUser(a.id, protocol.NewCallUser(b.id, c.id, offer, domain.MediaAudio)))

	in := b.conn.calls()
	require.Len(t, in, 1)
	assert.Equal(t, protocol.IncomingCall, in[0].Type)
	assert.Equal(t, a.id, in[0].CallerIdentity)
	assert.Equal(t, a.id, in[0].FromIdentity)
	assert.Equal(t, domain.MediaAudio, in[0].MediaKind)
	assert.JSONEq(t, string(offer), string(in[0].SignalPayload))

	assert.Empty(t, a.conn.calls())
	assert.Empty(t, c.conn.calls())
}

func TestUnknownTargetIsDropped(t *testing.T) {
	o := New(app.SimplePolicy{}, nil)
	a := connect(o, "a")

	assert.False(t, o.CallUser(a.id, protocol.NewCallUser("ghost", a.id, offer, domain.MediaAudio)))
	assert.False(t, o.EndCall(a.id, protocol.NewEndCall("ghost")))
	assert.Empty(t, a.conn.calls())
	_, ok := o.Pairs.State(a.id, "ghost")
	assert.False(t, ok)
}

func TestSelfCallIsDropped(t *testing.T) {
	o := New(app.SimplePolicy{}, nil)
	a := connect(o, "a")

	assert.False(t, o.CallUser(a.id, protocol.NewCallUser(a.id, a.id, offer, domain.MediaAudio)))
	assert.False(t, o.RelayCandidate(a.id, protocol.NewICECandidate(a.id, json.RawMessage(`{}`))))
	assert.Empty(t, a.conn.calls())
}

func TestCallLifecycleTracksPairs(t *testing.T) {
	o := New(app.SimplePolicy{}, nil)
	a, b := connect(o, "a"), connect(o, "b")

	o.CallUser(a.id, protocol.NewCallUser(b.id, a.id, offer, domain.MediaAudioVideo))
	assert.Equal(t, want(1, 0), pairs(o))

	require.True(t, o.AnswerCall(b.id, protocol.NewAnswerCall(a.id, json.RawMessage(`{"type":"answer"}`))))
	assert.Equal(t, want(0, 1), pairs(o))
	acc := a.conn.calls()
	require.Len(t, acc, 1)
	assert.Equal(t, protocol.CallAccepted, acc[0].Type)
	assert.Equal(t, b.id, acc[0].FromIdentity)

	cand := json.RawMessage(`{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"}`)
	require.True(t, o.RelayCandidate(a.id, protocol.NewICECandidate(b.id, cand)))
	got := b.conn.calls()
	require.Len(t, got, 2)
	assert.Equal(t, protocol.ICECandidate, got[1].Type)
	assert.Equal(t, a.id, got[1].FromIdentity)
	assert.Empty(t, got[1].TargetIdentity)

	require.True(t, o.EndCall(a.id, protocol.NewEndCall(b.id)))
	assert.Equal(t, want(0, 0), pairs(o))
	got = b.conn.calls()
	assert.Equal(t, protocol.CallEnded, got[len(got)-1].Type)
}

func TestRejectClearsPendingPair(t *testing.T) {
	o := New(app.SimplePolicy{}, nil)
	a, b := connect(o, "a"), connect(o, "b")

	o.CallUser(a.id, protocol.NewCallUser(b.id, a.id, offer, domain.MediaAudio))
	require.True(t, o.RejectCall(b.id, protocol.NewRejectCall(a.id)))

	got := a.conn.calls()
	require.Len(t, got, 1)
	assert.Equal(t, protocol.CallRejected, got[0].Type)
	assert.Equal(t, b.id, got[0].FromIdentity)
	assert.Equal(t, want(0, 0), pairs(o))
}

func TestDisconnectNotifiesOnlyPairedPeers(t *testing.T) {
	o := New(app.SimplePolicy{}, nil)
	a, b, c := connect(o, "a"), connect(o, "b"), connect(o, "c")

	o.CallUser(a.id, protocol.NewCallUser(b.id, a.id, offer, domain.MediaAudio))
	o.Disconnect(a.id)

	got := b.conn.calls()
	require.Len(t, got, 2)
	assert.Equal(t, protocol.CallEnded, got[1].Type)
	assert.Equal(t, a.id, got[1].FromIdentity)
	assert.Empty(t, c.conn.calls())

	_, ok := o.Registry.Lookup("a")
	assert.False(t, ok)

	// A second disconnect is a no-op.
	o.Disconnect(a.id)
	assert.Len(t, b.conn.calls(), 2)
}

func TestEventsKeepSenderOrder(t *testing.T) {
	o := New(app.SimplePolicy{}, nil)
	a, b := connect(o, "a"), connect(o, "b")

	o.CallUser(a.id, protocol.NewCallUser(b.id, a.id, offer, domain.MediaAudio))
	for i := 0; i < 5; i++ {
		o.RelayCandidate(a.id, protocol.NewICECandidate(b.id, json.RawMessage(`{}`)))
	}
	o.EndCall(a.id, protocol.NewEndCall(b.id))

	got := b.conn.calls()
	require.Len(t, got, 7)
	assert.Equal(t, protocol.IncomingCall, got[0].Type)
	for _, m := range got[1:6] {
		assert.Equal(t, protocol.ICECandidate, m.Type)
	}
	assert.Equal(t, protocol.CallEnded, got[6].Type)
}

func TestCallUserRateLimit(t *testing.T) {
	o := New(app.SimplePolicy{}, app.NewRateLimiter(0.001, 1))
	a, b := connect(o, "a"), connect(o, "b")

	assert.True(t, o.CallUser(a.id, protocol.NewCallUser(b.id, a.id, offer, domain.MediaAudio)))
	assert.False(t, o.CallUser(a.id, protocol.NewCallUser(b.id, a.id, offer, domain.MediaAudio)))
	assert.Len(t, b.conn.calls(), 1)
}

func TestStrictPolicyCancelsSlowTarget(t *testing.T) {
	o := New(app.StrictPolicy{}, nil)
	a := connect(o, "a")

	ctx, cancel := context.WithCancel(context.Background())
	slow := &fakeConn{}
	id := o.Connect("slow", slow, cancel)
	slow.mu.Lock()
	slow.full = true
	slow.mu.Unlock()

	assert.False(t, o.CallUser(a.id, protocol.NewCallUser(id, a.id, offer, domain.MediaAudio)))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestTargetLeavingDuringDeliveryLeavesNoPair(t *testing.T) {
	o := New(app.SimplePolicy{}, nil)
	a := connect(o, "a")

	leaving := &fakeConn{}
	id := o.Connect("b", leaving, nil)
	leaving.onSend = func() { o.Disconnect(id) }

	o.CallUser(a.id, protocol.NewCallUser(id, a.id, offer, domain.MediaAudio))

	assert.Equal(t, want(0, 0), pairs(o))
	got := a.conn.calls()
	require.Len(t, got, 1)
	assert.Equal(t, protocol.CallEnded, got[0].Type)
}

func TestFailedDeliveryLeavesNoPair(t *testing.T) {
	o := New(app.SimplePolicy{}, nil)
	a, b := connect(o, "a"), connect(o, "b")
	b.conn.mu.Lock()
	b.conn.full = true
	b.conn.mu.Unlock()

	assert.False(t, o.CallUser(a.id, protocol.NewCallUser(b.id, a.id, offer, domain.MediaAudio)))
	assert.Equal(t, want(0, 0), pairs(o))
}

func TestFailedReofferKeepsActivePair(t *testing.T) {
	o := New(app.SimplePolicy{}, nil)
	a, b := connect(o, "a"), connect(o, "b")
	o.CallUser(a.id, protocol.NewCallUser(b.id, a.id, offer, domain.MediaAudio))
	o.AnswerCall(b.id, protocol.NewAnswerCall(a.id, json.RawMessage(`{"type":"answer"}`)))

	b.conn.mu.Lock()
	b.conn.full = true
	b.conn.mu.Unlock()
	assert.False(t, o.CallUser(a.id, protocol.NewCallUser(b.id, a.id, offer, domain.MediaAudio)))
	assert.Equal(t, want(0, 1), pairs(o))
}

func TestLookupUser(t *testing.T) {
	o := New(app.SimplePolicy{}, nil)
	b := connect(o, "bob")

	m := o.LookupUser("bob")
	assert.Equal(t, protocol.UserIdentity, m.Type)
	assert.Equal(t, b.id, m.Identity)
	assert.Empty(t, o.LookupUser("nobody").Identity)
}

type counts struct{ pending, active int }

func want(pending, active int) counts { return counts{pending, active} }

func pairs(o *Orchestrator) counts {
	s := o.Stats()
	return counts{s.PendingPairs, s.ActivePairs}
}
