package protocol

import (
	"encoding/json"

	"github.com/GKAANU/Sonox-panel/internal/domain"
)

func NewIdentityAssigned(id domain.ConnectionID) Message {
	return Message{Type: IdentityAssigned, Identity: id}
}

func NewCallUser(target, caller domain.ConnectionID, signal json.RawMessage, kind domain.MediaKind) Message {
	return Message{
		Type:           CallUser,
		TargetIdentity: target,
		CallerIdentity: caller,
		SignalPayload:  signal,
		MediaKind:      kind,
	}
}

func NewIncomingCall(caller domain.ConnectionID, signal json.RawMessage, kind domain.MediaKind) Message {
	return Message{
		Type:           IncomingCall,
		CallerIdentity: caller,
		FromIdentity:   caller,
		SignalPayload:  signal,
		MediaKind:      kind,
	}
}

func NewAnswerCall(target domain.ConnectionID, signal json.RawMessage) Message {
	return Message{Type: AnswerCall, TargetIdentity: target, SignalPayload: signal}
}

func NewCallAccepted(from domain.ConnectionID, signal json.RawMessage) Message {
	return Message{Type: CallAccepted, FromIdentity: from, SignalPayload: signal}
}

func NewRejectCall(target domain.ConnectionID) Message {
	return Message{Type: RejectCall, TargetIdentity: target}
}

func NewCallRejected(from domain.ConnectionID) Message {
	return Message{Type: CallRejected, FromIdentity: from}
}

func NewEndCall(target domain.ConnectionID) Message {
	return Message{Type: EndCall, TargetIdentity: target}
}

func NewCallEnded(from domain.ConnectionID) Message {
	return Message{Type: CallEnded, FromIdentity: from}
}

func NewICECandidate(target domain.ConnectionID, candidate json.RawMessage) Message {
	return Message{Type: ICECandidate, TargetIdentity: target, Candidate: candidate}
}

func NewRelayedCandidate(from domain.ConnectionID, candidate json.RawMessage) Message {
	return Message{Type: ICECandidate, FromIdentity: from, Candidate: candidate}
}

func NewLookupUser(uid domain.UserID) Message {
	return Message{Type: LookupUser, UserID: uid}
}

// NewUserIdentity answers a lookup; an empty id means the user is offline.
func NewUserIdentity(uid domain.UserID, id domain.ConnectionID) Message {
	return Message{Type: UserIdentity, UserID: uid, Identity: id}
}
