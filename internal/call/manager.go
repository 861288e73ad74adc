package call

import (
	"context"
	"sync"

	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/GKAANU/Sonox-panel/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Manager owns at most one live session and routes relay events to it.
type Manager struct {
	sig   Signaler
	media MediaSource
	peers PeerFactory
	opts  Options

	mu      sync.Mutex
	current *Session

	lmu       sync.RWMutex
	listeners map[int]func(Snapshot)
	nextID    int
}

func NewManager(sig Signaler, media MediaSource, peers PeerFactory, opts Options) *Manager {
	return &Manager{
		sig:       sig,
		media:     media,
		peers:     peers,
		opts:      opts,
		listeners: make(map[int]func(Snapshot)),
	}
}

// Subscribe registers fn for every session snapshot. Listeners run on the
// goroutine that caused the change and must not block.
func (m *Manager) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	m.lmu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.lmu.Unlock()
	return func() {
		m.lmu.Lock()
		delete(m.listeners, id)
		m.lmu.Unlock()
	}
}

// Current returns the live session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) CallUser(ctx context.Context, target domain.ConnectionID, kind domain.MediaKind) (*Session, error) {
	s, err := m.claim()
	if err != nil {
		return nil, err
	}
	if err := s.callUser(ctx, target, kind); err != nil {
		m.release(s)
		return nil, err
	}
	return s, nil
}

func (m *Manager) AcceptCall(ctx context.Context) error {
	s := m.Current()
	if s == nil {
		return ErrNoSession
	}
	return s.AcceptCall(ctx)
}

func (m *Manager) RejectCall() error {
	s := m.Current()
	if s == nil {
		return ErrNoSession
	}
	return s.RejectCall()
}

func (m *Manager) EndCall() error {
	s := m.Current()
	if s == nil {
		return ErrNoSession
	}
	return s.EndCall()
}

func (m *Manager) ToggleLocalAudio() (bool, error) {
	s := m.Current()
	if s == nil {
		return false, ErrNoSession
	}
	return s.ToggleLocalAudio()
}

func (m *Manager) ToggleLocalVideo() (bool, error) {
	s := m.Current()
	if s == nil {
		return false, ErrNoSession
	}
	return s.ToggleLocalVideo()
}

// HandleEvent applies one relay event. Events must be handed over in the
// order the relay delivered them.
func (m *Manager) HandleEvent(msg protocol.Message) {
	switch msg.Type {
	case protocol.IncomingCall:
		m.handleIncoming(msg)
	case protocol.CallAccepted:
		if s := m.Current(); s != nil {
			_ = s.handleCallAccepted(msg.FromIdentity, msg.SignalPayload)
		}
	case protocol.CallRejected:
		if s := m.Current(); s != nil {
			s.handleCallRejected(msg.FromIdentity)
		}
	case protocol.CallEnded:
		if s := m.Current(); s != nil {
			s.handleCallEnded(msg.FromIdentity)
		}
	case protocol.ICECandidate:
		if s := m.Current(); s != nil {
			s.handleRemoteCandidate(msg.FromIdentity, msg.Candidate)
		}
	default:
		log.Debug().Str("module", "call").Str("type", string(msg.Type)).Msg("event not for call manager")
	}
}

// OnRelayLost ends the live session without notifying the peer.
func (m *Manager) OnRelayLost() {
	if s := m.Current(); s != nil {
		s.terminate(ReasonRelayLost, false)
	}
}

// Close hangs up any live session.
func (m *Manager) Close() {
	if s := m.Current(); s != nil {
		_ = s.EndCall()
	}
}

func (m *Manager) handleIncoming(msg protocol.Message) {
	from := msg.FromIdentity
	if from == "" {
		from = msg.CallerIdentity
	}
	s, err := m.claim()
	if err != nil {
		log.Info().Str("module", "call").Str("from", string(from)).Msg("busy, declining incoming call")
		if err := m.sig.Send(protocol.NewRejectCall(from)); err != nil {
			log.Warn().Err(err).Str("module", "call").Msg("busy decline not sent")
		}
		return
	}
	kind := msg.MediaKind
	if !kind.Valid() {
		kind = domain.MediaAudio
	}
	if err := s.handleIncomingCall(from, msg.SignalPayload, kind); err != nil {
		log.Warn().Err(err).Str("module", "call").Msg("incoming call ignored")
		m.release(s)
	}
}

// claim installs a fresh session unless one is live.
func (m *Manager) claim() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && (m.current.busy() || m.current.State() == StateIdle) {
		return nil, ErrBusy
	}
	var s *Session
	s = newSession(m.sig, m.media, m.peers, m.opts, func(snap Snapshot) {
		if snap.State == StateEnded {
			m.release(s)
		}
		m.emit(snap)
	})
	m.current = s
	return s, nil
}

func (m *Manager) release(s *Session) {
	m.mu.Lock()
	if m.current == s {
		m.current = nil
	}
	m.mu.Unlock()
}

func (m *Manager) emit(snap Snapshot) {
	m.lmu.RLock()
	fns := make([]func(Snapshot), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.lmu.RUnlock()
	for _, fn := range fns {
		fn(snap)
	}
}
