package call

import (
	"context"
	"encoding/json"

	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/GKAANU/Sonox-panel/internal/protocol"
)

// LocalTrack is one live capture track owned by a session.
type LocalTrack interface {
	Kind() domain.TrackKind
	Enabled() bool
	// SetEnabled mutes or unmutes without renegotiating.
	SetEnabled(bool)
	Live() bool
	Stop()
}

// LocalStream is the capture acquired for one call.
type LocalStream interface {
	Tracks() []LocalTrack
	// Stop ends every track. Safe to call more than once.
	Stop()
}

// MediaSource is the acquireLocalMedia capability.
type MediaSource interface {
	Acquire(ctx context.Context, kind domain.MediaKind) (LocalStream, error)
}

// Peer is one peer connection. Signal payloads and candidates are opaque
// JSON produced and consumed only by the peer itself.
type Peer interface {
	AddStream(LocalStream) error
	CreateOffer(ctx context.Context) (json.RawMessage, error)
	// AcceptOffer applies a remote offer and returns the local answer.
	AcceptOffer(ctx context.Context, offer json.RawMessage) (json.RawMessage, error)
	ApplyAnswer(answer json.RawMessage) error
	AddCandidate(candidate json.RawMessage) error

	OnRemoteStream(func())
	OnCandidate(func(json.RawMessage))
	// OnFailure reports negotiation or connectivity loss.
	OnFailure(func(error))

	Close() error
	Closed() bool
}

type PeerFactory interface {
	NewPeer(role Role) (Peer, error)
}

// Signaler is the client end of the relay channel.
type Signaler interface {
	Connected() bool
	Identity() domain.ConnectionID
	// Send queues msg without blocking; it fails fast when the relay is down.
	Send(msg protocol.Message) error
}
