// Package protocol defines the JSON events exchanged between the relay and
// call clients. Every frame is one flat object; "type" selects the event and
// decides which of the other fields are meaningful.
package protocol

import (
	"encoding/json"
	"errors"

	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/tidwall/gjson"
)

type EventType string

const (
	// relay -> client
	IdentityAssigned EventType = "identity-assigned"
	IncomingCall     EventType = "incoming-call"
	CallAccepted     EventType = "call-accepted"
	CallRejected     EventType = "call-rejected"
	CallEnded        EventType = "call-ended"
	UserIdentity     EventType = "user-identity"
	Pong             EventType = "pong"

	// client -> relay
	CallUser   EventType = "call-user"
	AnswerCall EventType = "answer-call"
	RejectCall EventType = "reject-call"
	EndCall    EventType = "end-call"
	LookupUser EventType = "lookup-user"
	Ping       EventType = "ping"

	// both directions
	ICECandidate EventType = "ice-candidate"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
)

type Message struct {
	Type EventType `json:"type"`

	Identity       domain.ConnectionID `json:"identity,omitempty"`
	TargetIdentity domain.ConnectionID `json:"targetIdentity,omitempty"`
	CallerIdentity domain.ConnectionID `json:"callerIdentity,omitempty"`
	FromIdentity   domain.ConnectionID `json:"fromIdentity,omitempty"`

	SignalPayload json.RawMessage  `json:"signalPayload,omitempty"`
	MediaKind     domain.MediaKind `json:"mediaKind,omitempty"`
	Candidate     json.RawMessage  `json:"candidate,omitempty"`
	UserID        domain.UserID    `json:"userId,omitempty"`
}

func (t EventType) Known() bool {
	switch t {
	case IdentityAssigned, IncomingCall, CallAccepted, CallRejected, CallEnded,
		UserIdentity, Pong, CallUser, AnswerCall, RejectCall, EndCall,
		LookupUser, Ping, ICECandidate:
		return true
	}
	return false
}

// PeekType reads the "type" field without decoding the rest of the frame.
func PeekType(data []byte) (EventType, error) {
	if !gjson.ValidBytes(data) {
		return "", ErrMalformed
	}
	res := gjson.GetBytes(data, "type")
	if res.Type != gjson.String {
		return "", ErrMalformed
	}
	t := EventType(res.Str)
	if !t.Known() {
		return t, ErrUnknownType
	}
	return t, nil
}

// Decode parses a frame and checks that the fields its type needs are present.
func Decode(data []byte) (Message, error) {
	if _, err := PeekType(data); err != nil {
		return Message{}, err
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, errors.Join(ErrMalformed, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Validate checks the per-type required fields.
func (m Message) Validate() error {
	switch m.Type {
	case IdentityAssigned:
		if m.Identity == "" {
			return ErrMalformed
		}
	case CallUser:
		if m.TargetIdentity == "" || len(m.SignalPayload) == 0 || !m.MediaKind.Valid() {
			return ErrMalformed
		}
	case IncomingCall:
		if m.CallerIdentity == "" || len(m.SignalPayload) == 0 || !m.MediaKind.Valid() {
			return ErrMalformed
		}
	case AnswerCall:
		if m.TargetIdentity == "" || len(m.SignalPayload) == 0 {
			return ErrMalformed
		}
	case CallAccepted:
		if len(m.SignalPayload) == 0 {
			return ErrMalformed
		}
	case RejectCall, EndCall:
		if m.TargetIdentity == "" {
			return ErrMalformed
		}
	case ICECandidate:
		if len(m.Candidate) == 0 || (m.TargetIdentity == "" && m.FromIdentity == "") {
			return ErrMalformed
		}
	case LookupUser:
		if m.UserID == "" {
			return ErrMalformed
		}
	case CallRejected, CallEnded, UserIdentity, Ping, Pong:
	default:
		return ErrUnknownType
	}
	return nil
}
