package rtc

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/GKAANU/Sonox-panel/internal/call"
	"github.com/GKAANU/Sonox-panel/internal/call/calltest"
	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPeer(t *testing.T, f *PeerFactory, role call.Role) *Connection {
	t.Helper()
	p, err := f.NewPeer(role)
	require.NoError(t, err)
	c := p.(*Connection)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func acquire(t *testing.T, kind domain.MediaKind) *Stream {
	t.Helper()
	ls, err := SilentSource{}.Acquire(context.Background(), kind)
	require.NoError(t, err)
	t.Cleanup(ls.Stop)
	return ls.(*Stream)
}

func TestOfferAnswerExchange(t *testing.T) {
	f, err := NewPeerFactory(FactoryOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	caller := newTestPeer(t, f, call.RoleCaller)
	callee := newTestPeer(t, f, call.RoleCallee)
	require.NoError(t, caller.AddStream(acquire(t, domain.MediaAudioVideo)))
	require.NoError(t, callee.AddStream(acquire(t, domain.MediaAudioVideo)))

	offer, err := caller.CreateOffer(ctx)
	require.NoError(t, err)
	var sd webrtc.SessionDescription
	require.NoError(t, json.Unmarshal(offer, &sd))
	assert.Equal(t, webrtc.SDPTypeOffer, sd.Type)
	assert.True(t, strings.Contains(sd.SDP, "m=audio"))
	assert.True(t, strings.Contains(sd.SDP, "m=video"))

	answer, err := callee.AcceptOffer(ctx, offer)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(answer, &sd))
	assert.Equal(t, webrtc.SDPTypeAnswer, sd.Type)

	require.NoError(t, caller.ApplyAnswer(answer))
	assert.Equal(t, webrtc.SignalingStateStable, caller.pc.SignalingState())
	assert.Equal(t, webrtc.SignalingStateStable, callee.pc.SignalingState())
}

func TestTrickleReturnsBeforeGathering(t *testing.T) {
	f, err := NewPeerFactory(FactoryOptions{Trickle: true})
	require.NoError(t, err)
	caller := newTestPeer(t, f, call.RoleCaller)
	require.NoError(t, caller.AddStream(acquire(t, domain.MediaAudio)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// A canceled context only matters when waiting for gathering.
	offer, err := caller.CreateOffer(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, offer)
}

func TestToggleSwapsSenderTrack(t *testing.T) {
	f, err := NewPeerFactory(FactoryOptions{})
	require.NoError(t, err)
	c := newTestPeer(t, f, call.RoleCaller)
	s := acquire(t, domain.MediaAudio)
	require.NoError(t, c.AddStream(s))

	tr := s.tracks[0]
	require.NotNil(t, tr.sender)
	assert.NotNil(t, tr.sender.Track())

	tr.SetEnabled(false)
	assert.False(t, tr.Enabled())
	assert.Nil(t, tr.sender.Track())

	tr.SetEnabled(true)
	assert.True(t, tr.Enabled())
	assert.Equal(t, tr.local, tr.sender.Track())
}

func TestStreamStop(t *testing.T) {
	s := acquire(t, domain.MediaAudioVideo)
	require.Len(t, s.Tracks(), 2)

	s.Stop()
	s.Stop()
	for _, tr := range s.Tracks() {
		assert.False(t, tr.Live())
	}
	// Stopped tracks ignore toggles.
	s.tracks[0].SetEnabled(false)
	assert.True(t, s.tracks[0].Enabled())
}

func TestAddStreamRejectsForeignStream(t *testing.T) {
	f, err := NewPeerFactory(FactoryOptions{})
	require.NoError(t, err)
	c := newTestPeer(t, f, call.RoleCaller)

	ls, err := (&calltest.Media{}).Acquire(context.Background(), domain.MediaAudio)
	require.NoError(t, err)
	require.ErrorIs(t, c.AddStream(ls), ErrForeignStream)
}

func TestMalformedRemoteInput(t *testing.T) {
	f, err := NewPeerFactory(FactoryOptions{})
	require.NoError(t, err)
	c := newTestPeer(t, f, call.RoleCallee)

	_, err = c.AcceptOffer(context.Background(), json.RawMessage(`"nope"`))
	require.Error(t, err)
	require.Error(t, c.ApplyAnswer(json.RawMessage(`[]`)))
	require.Error(t, c.AddCandidate(json.RawMessage(`{`)))
}

func TestCloseIsIdempotent(t *testing.T) {
	f, err := NewPeerFactory(FactoryOptions{ICEServers: []string{"stun:stun.example.org:3478"}})
	require.NoError(t, err)
	c := newTestPeer(t, f, call.RoleCaller)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, c.Closed())
}

func TestConfiguration(t *testing.T) {
	assert.Empty(t, Configuration(nil).ICEServers)
	cfg := Configuration([]string{"stun:a:1", "turn:b:2"})
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, []string{"stun:a:1", "turn:b:2"}, cfg.ICEServers[0].URLs)
}
