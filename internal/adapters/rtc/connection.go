package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/GKAANU/Sonox-panel/internal/call"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrForeignStream    = errors.New("stream was not produced by an rtc media source")
	ErrConnectionFailed = errors.New("peer connection failed")
)

// Connection adapts a pion PeerConnection to call.Peer. Descriptions and
// candidates travel as pion's own JSON encoding.
type Connection struct {
	pc      *webrtc.PeerConnection
	role    call.Role
	trickle bool
	log     zerolog.Logger

	mu          sync.Mutex
	onRemote    func()
	onCandidate func(json.RawMessage)
	onFailure   func(error)
	remoteSeen  bool
	closed      bool
}

func newConnection(pc *webrtc.PeerConnection, role call.Role, trickle bool) *Connection {
	c := &Connection{
		pc:      pc,
		role:    role,
		trickle: trickle,
		log:     log.With().Str("module", "webrtc").Str("role", role.String()).Logger(),
	}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		c.log.Info().Str("ice_state", s.String()).Msg("ICE state")
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.log.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed {
			c.mu.Lock()
			fn := c.onFailure
			c.mu.Unlock()
			if fn != nil {
				fn(ErrConnectionFailed)
			}
		}
	})

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		c.mu.Lock()
		fn := c.onCandidate
		c.mu.Unlock()
		if fn == nil {
			return
		}
		b, err := json.Marshal(cand.ToJSON())
		if err != nil {
			c.log.Error().Err(err).Msg("encode candidate")
			return
		}
		fn(b)
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.log.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		go drain(track)

		c.mu.Lock()
		first := !c.remoteSeen
		c.remoteSeen = true
		fn := c.onRemote
		c.mu.Unlock()
		if first && fn != nil {
			fn()
		}
	})

	return c
}

// drain keeps the receiver's buffers moving; there is no playback sink.
func drain(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}

func (c *Connection) AddStream(ls call.LocalStream) error {
	s, ok := ls.(*Stream)
	if !ok {
		return ErrForeignStream
	}
	for _, t := range s.tracks {
		sender, err := c.pc.AddTrack(t.local)
		if err != nil {
			return fmt.Errorf("add %s track: %w", t.kind, err)
		}
		t.attach(sender)
		go drainRTCP(sender)
	}
	return nil
}

// drainRTCP lets the interceptors see receiver reports.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (c *Connection) CreateOffer(ctx context.Context) (json.RawMessage, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	return c.commitLocal(ctx, offer)
}

func (c *Connection) AcceptOffer(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(raw, &offer); err != nil {
		return nil, fmt.Errorf("decode offer: %w", err)
	}
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	return c.commitLocal(ctx, answer)
}

func (c *Connection) ApplyAnswer(raw json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(raw, &answer); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	return c.pc.SetRemoteDescription(answer)
}

func (c *Connection) AddCandidate(raw json.RawMessage) error {
	var ci webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &ci); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}
	return c.pc.AddICECandidate(ci)
}

// commitLocal sets sd as the local description. Without trickle the
// returned description carries every gathered candidate.
func (c *Connection) commitLocal(ctx context.Context, sd webrtc.SessionDescription) (json.RawMessage, error) {
	var gathered <-chan struct{}
	if !c.trickle {
		gathered = webrtc.GatheringCompletePromise(c.pc)
	}
	if err := c.pc.SetLocalDescription(sd); err != nil {
		return nil, err
	}
	if gathered != nil {
		select {
		case <-gathered:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return json.Marshal(c.pc.LocalDescription())
}

func (c *Connection) OnRemoteStream(fn func()) {
	c.mu.Lock()
	c.onRemote = fn
	c.mu.Unlock()
}

func (c *Connection) OnCandidate(fn func(json.RawMessage)) {
	c.mu.Lock()
	c.onCandidate = fn
	c.mu.Unlock()
}

func (c *Connection) OnFailure(fn func(error)) {
	c.mu.Lock()
	c.onFailure = fn
	c.mu.Unlock()
}

func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.pc.Close(); err != nil {
		c.log.Error().Err(err).Msg("close error")
		return err
	}
	c.log.Info().Msg("closed")
	return nil
}

func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
