package call

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/GKAANU/Sonox-panel/internal/protocol"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Options struct {
	// DialTimeout ends an unanswered outgoing call. Zero disables it.
	DialTimeout time.Duration
	// RingTimeout declines an unanswered incoming call. Zero disables it.
	RingTimeout time.Duration
	// Trickle forwards local candidates as they are gathered.
	Trickle bool
}

// Session is one call attempt. It is driven by local commands and by relay
// events; every transition happens under mu and subscribers are notified
// after mu is released.
type Session struct {
	id     string
	opts   Options
	sig    Signaler
	media  MediaSource
	peers  PeerFactory
	notify func(Snapshot)
	log    zerolog.Logger

	mu        sync.Mutex
	state     State
	role      Role
	peerID    domain.ConnectionID
	kind      domain.MediaKind
	stream    LocalStream
	peer      Peer
	staged    Peer
	starting  bool
	abortDial context.CancelFunc
	signaled  bool
	answered  bool
	applied   bool
	remote    bool
	timer     *time.Timer
	reason    EndReason

	offer      json.RawMessage
	candidates []json.RawMessage
	outbox     []json.RawMessage

	startedAt   time.Time
	connectedAt time.Time
	endedAt     time.Time

	seq     uint64
	emitted atomic.Uint64
}

func newSession(sig Signaler, media MediaSource, peers PeerFactory, opts Options, notify func(Snapshot)) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		opts:   opts,
		sig:    sig,
		media:  media,
		peers:  peers,
		notify: notify,
		log:    log.With().Str("module", "call").Str("session", id).Logger(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// busy reports whether the session holds or is acquiring call resources.
func (s *Session) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starting || (s.state != StateIdle && s.state != StateEnded)
}

func (s *Session) callUser(ctx context.Context, target domain.ConnectionID, kind domain.MediaKind) error {
	if target == "" {
		return ErrNoTarget
	}
	if !kind.Valid() {
		return domain.ErrUnknownMediaKind
	}

	s.mu.Lock()
	if s.state != StateIdle || s.starting {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	if !s.sig.Connected() {
		s.mu.Unlock()
		return ErrRelayUnreachable
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.starting = true
	s.abortDial = cancel
	s.mu.Unlock()

	abort := func(stream LocalStream, peer Peer) {
		s.mu.Lock()
		s.starting = false
		s.abortDial = nil
		s.staged = nil
		s.outbox = nil
		s.mu.Unlock()
		if peer != nil {
			_ = peer.Close()
		}
		if stream != nil {
			stream.Stop()
		}
	}

	stream, err := s.media.Acquire(ctx, kind)
	if err != nil {
		abort(nil, nil)
		if ctx.Err() != nil {
			return ErrSuperseded
		}
		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("local media unavailable")
		return &MediaAcquisitionError{Kind: kind, Err: err}
	}

	peer, err := s.peers.NewPeer(RoleCaller)
	if err != nil {
		abort(stream, nil)
		return fmt.Errorf("%w: %w", ErrNegotiation, err)
	}
	s.mu.Lock()
	s.staged = peer
	s.mu.Unlock()
	s.bind(peer)

	if err := peer.AddStream(stream); err != nil {
		abort(stream, peer)
		return fmt.Errorf("%w: %w", ErrNegotiation, err)
	}
	offer, err := peer.CreateOffer(ctx)
	if err != nil {
		abort(stream, peer)
		return fmt.Errorf("%w: %w", ErrNegotiation, err)
	}

	s.mu.Lock()
	if s.staged != peer || ctx.Err() != nil {
		s.mu.Unlock()
		abort(stream, peer)
		return ErrSuperseded
	}
	if err := s.sig.Send(protocol.NewCallUser(target, s.sig.Identity(), offer, kind)); err != nil {
		s.mu.Unlock()
		abort(stream, peer)
		return fmt.Errorf("%w: %w", ErrRelayUnreachable, err)
	}
	s.starting = false
	s.abortDial = nil
	s.staged = nil
	s.role = RoleCaller
	s.peerID = target
	s.kind = kind
	s.stream = stream
	s.peer = peer
	s.state = StateDialing
	s.startedAt = time.Now()
	s.signaled = true
	s.flushLocked()
	if s.opts.DialTimeout > 0 {
		s.timer = time.AfterFunc(s.opts.DialTimeout, func() {
			s.terminate(ReasonDialTimeout, true, StateDialing)
		})
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info().Str("peer", string(target)).Str("kind", string(kind)).Msg("dialing")
	s.emit(snap)
	return nil
}

func (s *Session) handleIncomingCall(from domain.ConnectionID, offer json.RawMessage, kind domain.MediaKind) error {
	s.mu.Lock()
	if s.state != StateIdle || s.starting {
		s.mu.Unlock()
		return ErrBusy
	}
	if from == "" || len(offer) == 0 || !kind.Valid() {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	s.role = RoleCallee
	s.peerID = from
	s.kind = kind
	s.offer = offer
	s.state = StateRingingInbound
	s.startedAt = time.Now()
	if s.opts.RingTimeout > 0 {
		s.timer = time.AfterFunc(s.opts.RingTimeout, func() {
			s.terminate(ReasonRingTimeout, true, StateRingingInbound)
		})
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info().Str("peer", string(from)).Str("kind", string(kind)).Msg("incoming call")
	s.emit(snap)
	return nil
}

// AcceptCall answers a ringing call. The session stays Accepted until the
// answer is sent and remote media arrives.
func (s *Session) AcceptCall(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRingingInbound {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	s.stopTimerLocked()
	s.state = StateAccepted
	kind := s.kind
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)

	stream, err := s.media.Acquire(ctx, kind)
	if err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("local media unavailable")
		s.terminate(ReasonMediaFailure, true)
		return &MediaAcquisitionError{Kind: kind, Err: err}
	}

	peer, err := s.peers.NewPeer(RoleCallee)
	if err != nil {
		stream.Stop()
		s.terminate(ReasonNegotiationFailure, true)
		return fmt.Errorf("%w: %w", ErrNegotiation, err)
	}

	s.mu.Lock()
	if s.state != StateAccepted {
		s.mu.Unlock()
		_ = peer.Close()
		stream.Stop()
		return ErrSuperseded
	}
	s.stream = stream
	s.peer = peer
	offer := s.offer
	s.offer = nil
	s.mu.Unlock()
	s.bind(peer)

	if err := peer.AddStream(stream); err != nil {
		s.terminate(ReasonNegotiationFailure, true)
		return fmt.Errorf("%w: %w", ErrNegotiation, err)
	}
	answer, err := peer.AcceptOffer(ctx, offer)
	if err != nil {
		s.terminate(ReasonNegotiationFailure, true)
		return fmt.Errorf("%w: %w", ErrNegotiation, err)
	}
	s.mu.Lock()
	s.applied = true
	pending := s.candidates
	s.candidates = nil
	s.mu.Unlock()
	for _, c := range pending {
		if err := peer.AddCandidate(c); err != nil {
			s.log.Warn().Err(err).Msg("buffered candidate rejected")
		}
	}

	s.mu.Lock()
	if s.state != StateAccepted || s.peer != peer {
		s.mu.Unlock()
		return ErrSuperseded
	}
	if err := s.sig.Send(protocol.NewAnswerCall(s.peerID, answer)); err != nil {
		s.mu.Unlock()
		s.terminate(ReasonRelayLost, false)
		return fmt.Errorf("%w: %w", ErrRelayUnreachable, err)
	}
	s.answered = true
	s.signaled = true
	s.flushLocked()
	if s.remote {
		s.connectLocked()
	}
	snap = s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info().Str("peer", string(snap.Peer)).Msg("answer sent")
	s.emit(snap)
	return nil
}

// RejectCall declines an unanswered incoming call. From any other live
// state it hangs up like EndCall.
func (s *Session) RejectCall() error {
	reason := ReasonLocalHangup
	s.mu.Lock()
	if s.role == RoleCallee && !s.answered {
		reason = ReasonLocalDecline
	}
	s.mu.Unlock()
	return s.hangup(reason)
}

// EndCall hangs up from any live state and abandons a dial that is still
// acquiring media. Ending an ended session is a no-op that reports
// ErrInvalidTransition.
func (s *Session) EndCall() error {
	return s.hangup(ReasonLocalHangup)
}

func (s *Session) hangup(reason EndReason) error {
	if s.terminate(reason, true) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.starting && s.abortDial != nil {
		s.abortDial()
		return nil
	}
	return ErrInvalidTransition
}

func (s *Session) ToggleLocalAudio() (bool, error) { return s.toggle(domain.TrackAudio) }

func (s *Session) ToggleLocalVideo() (bool, error) { return s.toggle(domain.TrackVideo) }

func (s *Session) toggle(kind domain.TrackKind) (bool, error) {
	s.mu.Lock()
	if s.state != StateAccepted && s.state != StateConnected {
		s.mu.Unlock()
		return false, ErrInvalidTransition
	}
	tracks := s.tracksLocked(kind)
	if len(tracks) == 0 {
		s.mu.Unlock()
		return false, ErrNoSuchTrack
	}
	enabled := !tracks[0].Enabled()
	for _, t := range tracks {
		t.SetEnabled(enabled)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Debug().Str("track", string(kind)).Bool("enabled", enabled).Msg("toggled")
	s.emit(snap)
	return enabled, nil
}

func (s *Session) handleCallAccepted(from domain.ConnectionID, answer json.RawMessage) error {
	s.mu.Lock()
	if s.state != StateDialing || !s.fromPeerLocked(from) {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	s.stopTimerLocked()
	s.connectLocked()
	s.applied = true
	peer := s.peer
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err := peer.ApplyAnswer(answer); err != nil {
		s.log.Error().Err(err).Msg("apply answer")
		s.terminate(ReasonNegotiationFailure, true)
		return fmt.Errorf("%w: %w", ErrNegotiation, err)
	}
	s.mu.Lock()
	early := s.candidates
	s.candidates = nil
	s.mu.Unlock()
	for _, c := range early {
		if err := peer.AddCandidate(c); err != nil {
			s.log.Warn().Err(err).Msg("early candidate rejected")
		}
	}
	s.log.Info().Str("peer", string(from)).Msg("call accepted")
	s.emit(snap)
	return nil
}

func (s *Session) handleCallRejected(from domain.ConnectionID) {
	if !s.matches(from) {
		return
	}
	s.terminate(ReasonRemoteRejected, false, StateDialing)
}

func (s *Session) handleCallEnded(from domain.ConnectionID) {
	if !s.matches(from) {
		return
	}
	s.terminate(ReasonRemoteEnded, false)
}

func (s *Session) handleRemoteCandidate(from domain.ConnectionID, c json.RawMessage) {
	s.mu.Lock()
	if !s.fromPeerLocked(from) || s.state == StateIdle || s.state >= StateEnding {
		s.mu.Unlock()
		return
	}
	peer := s.peer
	if peer == nil || !s.applied {
		s.candidates = append(s.candidates, c)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	if err := peer.AddCandidate(c); err != nil {
		s.log.Warn().Err(err).Msg("remote candidate rejected")
	}
}

// terminate is the single teardown path. With allowed states it only acts
// when the session is currently in one of them.
func (s *Session) terminate(reason EndReason, notifyRemote bool, allowed ...State) bool {
	s.mu.Lock()
	if s.state == StateIdle || s.state >= StateEnding {
		s.mu.Unlock()
		return false
	}
	if len(allowed) > 0 && !slices.Contains(allowed, s.state) {
		s.mu.Unlock()
		return false
	}
	s.state = StateEnding
	s.reason = reason
	s.stopTimerLocked()
	stream, peer := s.stream, s.peer
	s.stream, s.peer = nil, nil
	s.offer, s.candidates, s.outbox = nil, nil, nil

	if notifyRemote && s.peerID != "" {
		msg := protocol.NewEndCall(s.peerID)
		if s.role == RoleCallee && !s.answered {
			msg = protocol.NewRejectCall(s.peerID)
		}
		if err := s.sig.Send(msg); err != nil {
			s.log.Warn().Err(err).Str("type", string(msg.Type)).Msg("could not notify peer")
		}
	}
	ending := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(ending)

	if stream != nil {
		stream.Stop()
	}
	if peer != nil {
		if err := peer.Close(); err != nil {
			s.log.Debug().Err(err).Msg("peer close")
		}
	}

	s.mu.Lock()
	s.state = StateEnded
	s.endedAt = time.Now()
	ended := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info().Str("reason", string(reason)).Msg("call ended")
	s.emit(ended)
	return true
}

func (s *Session) bind(p Peer) {
	p.OnRemoteStream(func() { s.onRemoteStream(p) })
	p.OnCandidate(func(c json.RawMessage) { s.onLocalCandidate(p, c) })
	p.OnFailure(func(err error) {
		if s.owns(p) {
			s.log.Warn().Err(err).Msg("peer failed")
			s.terminate(ReasonNegotiationFailure, true)
		}
	})
}

func (s *Session) onRemoteStream(p Peer) {
	s.mu.Lock()
	if s.peer != p || s.remote {
		s.mu.Unlock()
		return
	}
	s.remote = true
	if s.state == StateAccepted && s.answered {
		s.connectLocked()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)
}

func (s *Session) onLocalCandidate(p Peer, c json.RawMessage) {
	if !s.opts.Trickle {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if (s.peer != p && s.staged != p) || s.state >= StateEnding {
		return
	}
	if !s.signaled {
		s.outbox = append(s.outbox, c)
		return
	}
	s.sendCandidateLocked(c)
}

func (s *Session) flushLocked() {
	for _, c := range s.outbox {
		s.sendCandidateLocked(c)
	}
	s.outbox = nil
}

func (s *Session) sendCandidateLocked(c json.RawMessage) {
	if err := s.sig.Send(protocol.NewICECandidate(s.peerID, c)); err != nil {
		s.log.Debug().Err(err).Msg("candidate not sent")
	}
}

func (s *Session) owns(p Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer == p || s.staged == p
}

func (s *Session) matches(from domain.ConnectionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fromPeerLocked(from)
}

// fromPeerLocked accepts events without a sender tag for older relays.
func (s *Session) fromPeerLocked(from domain.ConnectionID) bool {
	return from == "" || from == s.peerID
}

func (s *Session) connectLocked() {
	s.state = StateConnected
	s.connectedAt = time.Now()
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) tracksLocked(kind domain.TrackKind) []LocalTrack {
	if s.stream == nil {
		return nil
	}
	var out []LocalTrack
	for _, t := range s.stream.Tracks() {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}

func (s *Session) enabledLocked(kind domain.TrackKind) bool {
	for _, t := range s.tracksLocked(kind) {
		if t.Enabled() {
			return true
		}
	}
	return false
}

func (s *Session) snapshotLocked() Snapshot {
	s.seq++
	return Snapshot{
		SessionID:      s.id,
		Seq:            s.seq,
		State:          s.state,
		Role:           s.role,
		Peer:           s.peerID,
		MediaKind:      s.kind,
		HasLocalMedia:  s.stream != nil,
		HasRemoteMedia: s.remote && s.peer != nil,
		AudioEnabled:   s.enabledLocked(domain.TrackAudio),
		VideoEnabled:   s.enabledLocked(domain.TrackVideo),
		StartedAt:      s.startedAt,
		ConnectedAt:    s.connectedAt,
		EndedAt:        s.endedAt,
		EndReason:      s.reason,
	}
}

// emit drops snapshots older than one already delivered.
func (s *Session) emit(snap Snapshot) {
	for {
		last := s.emitted.Load()
		if snap.Seq <= last {
			return
		}
		if s.emitted.CompareAndSwap(last, snap.Seq) {
			break
		}
	}
	if s.notify != nil {
		s.notify(snap)
	}
}
