package call

import (
	"time"

	"github.com/GKAANU/Sonox-panel/internal/domain"
)

type State int

const (
	StateIdle State = iota
	StateDialing
	StateRingingInbound
	StateAccepted
	StateConnected
	StateEnding
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDialing:
		return "dialing"
	case StateRingingInbound:
		return "ringing"
	case StateAccepted:
		return "accepted"
	case StateConnected:
		return "connected"
	case StateEnding:
		return "ending"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

type Role int

const (
	RoleNone Role = iota
	RoleCaller
	RoleCallee
)

func (r Role) String() string {
	switch r {
	case RoleCaller:
		return "caller"
	case RoleCallee:
		return "callee"
	}
	return "none"
}

type EndReason string

const (
	ReasonNone               EndReason = ""
	ReasonLocalHangup        EndReason = "local-hangup"
	ReasonLocalDecline       EndReason = "local-decline"
	ReasonRemoteRejected     EndReason = "remote-rejected"
	ReasonRemoteEnded        EndReason = "remote-ended"
	ReasonDialTimeout        EndReason = "dial-timeout"
	ReasonRingTimeout        EndReason = "ring-timeout"
	ReasonMediaFailure       EndReason = "media-failure"
	ReasonNegotiationFailure EndReason = "negotiation-failure"
	ReasonRelayLost          EndReason = "relay-lost"
)

// Snapshot is an immutable view of a session handed to subscribers.
type Snapshot struct {
	SessionID string
	Seq       uint64
	State     State
	Role      Role
	Peer      domain.ConnectionID
	MediaKind domain.MediaKind

	HasLocalMedia  bool
	HasRemoteMedia bool
	AudioEnabled   bool
	VideoEnabled   bool

	StartedAt   time.Time
	ConnectedAt time.Time
	EndedAt     time.Time
	EndReason   EndReason
}
