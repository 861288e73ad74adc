package calltest

import (
	"sync"

	"github.com/GKAANU/Sonox-panel/internal/call"
	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/GKAANU/Sonox-panel/internal/protocol"
)

// Signaler records outgoing messages instead of sending them.
type Signaler struct {
	ID domain.ConnectionID

	mu      sync.Mutex
	offline bool
	sent    []protocol.Message
}

func NewSignaler(id domain.ConnectionID) *Signaler {
	return &Signaler{ID: id}
}

func (s *Signaler) SetOnline(on bool) {
	s.mu.Lock()
	s.offline = !on
	s.mu.Unlock()
}

func (s *Signaler) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.offline
}

func (s *Signaler) Identity() domain.ConnectionID { return s.ID }

func (s *Signaler) Send(msg protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return call.ErrRelayUnreachable
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *Signaler) Sent() []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Message(nil), s.sent...)
}

// SentOf returns the recorded messages of type t.
func (s *Signaler) SentOf(t protocol.EventType) []protocol.Message {
	var out []protocol.Message
	for _, m := range s.Sent() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}
