package calltest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/GKAANU/Sonox-panel/internal/call"
)

var errPeerClosed = errors.New("peer closed")

// Peer is a scripted peer connection. With AutoRemote it reports remote
// media as soon as both descriptions are in place.
type Peer struct {
	Role call.Role

	mu         sync.Mutex
	autoRemote bool
	failOffer  error
	stream     call.LocalStream
	remoteSDP  json.RawMessage
	candidates []json.RawMessage
	closed     bool

	onRemote    func()
	onCandidate func(json.RawMessage)
	onFailure   func(error)
}

func (p *Peer) AddStream(s call.LocalStream) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errPeerClosed
	}
	p.stream = s
	return nil
}

func (p *Peer) CreateOffer(context.Context) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOffer != nil {
		return nil, p.failOffer
	}
	return json.RawMessage(`{"type":"offer","sdp":"v=0 fake"}`), nil
}

func (p *Peer) AcceptOffer(_ context.Context, offer json.RawMessage) (json.RawMessage, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errPeerClosed
	}
	p.remoteSDP = offer
	p.mu.Unlock()
	p.maybeRemote()
	return json.RawMessage(`{"type":"answer","sdp":"v=0 fake"}`), nil
}

func (p *Peer) ApplyAnswer(answer json.RawMessage) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errPeerClosed
	}
	p.remoteSDP = answer
	p.mu.Unlock()
	p.maybeRemote()
	return nil
}

func (p *Peer) AddCandidate(c json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errPeerClosed
	}
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *Peer) OnRemoteStream(fn func()) {
	p.mu.Lock()
	p.onRemote = fn
	p.mu.Unlock()
}

func (p *Peer) OnCandidate(fn func(json.RawMessage)) {
	p.mu.Lock()
	p.onCandidate = fn
	p.mu.Unlock()
}

func (p *Peer) OnFailure(fn func(error)) {
	p.mu.Lock()
	p.onFailure = fn
	p.mu.Unlock()
}

func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *Peer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Peer) RemoteSDP() json.RawMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remoteSDP
}

func (p *Peer) Candidates() []json.RawMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]json.RawMessage(nil), p.candidates...)
}

// EmitCandidate plays a locally gathered candidate.
func (p *Peer) EmitCandidate(c json.RawMessage) {
	p.mu.Lock()
	fn := p.onCandidate
	p.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

// EmitRemote plays the arrival of remote media.
func (p *Peer) EmitRemote() {
	p.mu.Lock()
	fn := p.onRemote
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Fail plays a connectivity failure.
func (p *Peer) Fail(err error) {
	p.mu.Lock()
	fn := p.onFailure
	p.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (p *Peer) maybeRemote() {
	p.mu.Lock()
	auto := p.autoRemote
	p.mu.Unlock()
	if auto {
		p.EmitRemote()
	}
}

// Peers builds Peer values and remembers them.
type Peers struct {
	AutoRemote bool
	FailOffer  error
	FailCreate error

	mu    sync.Mutex
	peers []*Peer
}

func (f *Peers) NewPeer(role call.Role) (call.Peer, error) {
	if f.FailCreate != nil {
		return nil, f.FailCreate
	}
	p := &Peer{Role: role, autoRemote: f.AutoRemote, failOffer: f.FailOffer}
	f.mu.Lock()
	f.peers = append(f.peers, p)
	f.mu.Unlock()
	return p, nil
}

func (f *Peers) All() []*Peer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Peer(nil), f.peers...)
}

func (f *Peers) Last() *Peer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.peers) == 0 {
		return nil
	}
	return f.peers[len(f.peers)-1]
}

// AllClosed reports whether every peer built so far was closed.
func (f *Peers) AllClosed() bool {
	for _, p := range f.All() {
		if !p.Closed() {
			return false
		}
	}
	return true
}
