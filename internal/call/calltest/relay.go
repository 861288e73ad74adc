package calltest

import (
	"sync"

	"github.com/GKAANU/Sonox-panel/internal/app"
	"github.com/GKAANU/Sonox-panel/internal/app/orch"
	"github.com/GKAANU/Sonox-panel/internal/call"
	"github.com/GKAANU/Sonox-panel/internal/core"
	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/GKAANU/Sonox-panel/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Relay routes client messages through a real orchestrator without a
// network. Every endpoint receives its frames in order on its own goroutine.
type Relay struct {
	Orch *orch.Orchestrator
}

func NewRelay() *Relay {
	return &Relay{Orch: orch.New(app.SimplePolicy{}, nil)}
}

// Endpoint is one connected client. It implements call.Signaler.
type Endpoint struct {
	relay *Relay
	id    domain.ConnectionID

	mu     sync.Mutex
	closed bool
	frames chan core.Frame
	done   chan struct{}
}

// Join connects a client. Frames queue until Serve is called.
func (r *Relay) Join(uid domain.UserID) *Endpoint {
	ep := &Endpoint{
		relay:  r,
		frames: make(chan core.Frame, 256),
		done:   make(chan struct{}),
	}
	ep.id = r.Orch.Connect(uid, ep, nil)
	return ep
}

// Serve starts delivering relay events to fn.
func (ep *Endpoint) Serve(fn func(protocol.Message)) {
	go func() {
		defer close(ep.done)
		for f := range ep.frames {
			msg, err := protocol.Decode(f)
			if err != nil {
				log.Warn().Err(err).Str("module", "calltest").Msg("undecodable frame")
				continue
			}
			if msg.Type == protocol.IdentityAssigned {
				continue
			}
			fn(msg)
		}
	}()
}

func (ep *Endpoint) Connected() bool {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return !ep.closed
}

func (ep *Endpoint) Identity() domain.ConnectionID { return ep.id }

// Send runs msg through the same decode and dispatch path as the websocket
// controller.
func (ep *Endpoint) Send(msg protocol.Message) error {
	if !ep.Connected() {
		return call.ErrRelayUnreachable
	}
	b, err := msg.Encode()
	if err != nil {
		return err
	}
	in, err := protocol.Decode(b)
	if err != nil {
		return err
	}
	o := ep.relay.Orch
	switch in.Type {
	case protocol.CallUser:
		o.CallUser(ep.id, in)
	case protocol.AnswerCall:
		o.AnswerCall(ep.id, in)
	case protocol.RejectCall:
		o.RejectCall(ep.id, in)
	case protocol.EndCall:
		o.EndCall(ep.id, in)
	case protocol.ICECandidate:
		o.RelayCandidate(ep.id, in)
	case protocol.LookupUser:
		reply := o.LookupUser(in.UserID)
		if f, err := reply.Encode(); err == nil {
			_ = ep.TrySend(f)
		}
	}
	return nil
}

// TrySend is the relay side of the endpoint.
func (ep *Endpoint) TrySend(f core.Frame) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.closed {
		return core.ErrClosed
	}
	select {
	case ep.frames <- f:
		return nil
	default:
		return core.ErrBackpressure
	}
}

func (ep *Endpoint) Close() {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.closed {
		return
	}
	ep.closed = true
	close(ep.frames)
}

// Leave disconnects the client the way a dropped socket does.
func (ep *Endpoint) Leave() {
	ep.relay.Orch.Disconnect(ep.id)
	ep.Close()
}

// Wait blocks until the delivery goroutine has drained.
func (ep *Endpoint) Wait() {
	<-ep.done
}
