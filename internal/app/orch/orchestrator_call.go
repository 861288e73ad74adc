package orch

import (
	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/GKAANU/Sonox-panel/internal/protocol"
	"github.com/rs/zerolog/log"
)

// CallUser forwards an offer to the target as incoming-call. The caller
// identity is taken from the connection, not from the payload.
func (o *Orchestrator) CallUser(from domain.ConnectionID, msg protocol.Message) bool {
	if msg.TargetIdentity == from {
		return false
	}
	if o.Limiter != nil && !o.Limiter.Allow(from) {
		log.Warn().Str("module", "orch").Str("conn", string(from)).Msg("call-user rate limited")
		return false
	}
	if msg.CallerIdentity != "" && msg.CallerIdentity != from {
		log.Warn().Str("module", "orch").Str("conn", string(from)).Str("claimed", string(msg.CallerIdentity)).Msg("caller identity mismatch, using connection identity")
	}
	// The pair opens first so a target disconnecting mid-delivery drops it.
	opened := o.Pairs.Open(from, msg.TargetIdentity)
	if !o.deliver(msg.TargetIdentity, protocol.NewIncomingCall(from, msg.SignalPayload, msg.MediaKind)) {
		if opened {
			o.Pairs.Close(from, msg.TargetIdentity)
		}
		return false
	}
	log.Info().Str("module", "orch").Str("conn", string(from)).Str("target", string(msg.TargetIdentity)).Str("media", string(msg.MediaKind)).Msg("call-user relayed")
	return true
}

func (o *Orchestrator) AnswerCall(from domain.ConnectionID, msg protocol.Message) bool {
	if !o.deliver(msg.TargetIdentity, protocol.NewCallAccepted(from, msg.SignalPayload)) {
		return false
	}
	o.Pairs.Activate(from, msg.TargetIdentity)
	log.Info().Str("module", "orch").Str("conn", string(from)).Str("target", string(msg.TargetIdentity)).Msg("answer-call relayed")
	return true
}

func (o *Orchestrator) RejectCall(from domain.ConnectionID, msg protocol.Message) bool {
	o.Pairs.Close(from, msg.TargetIdentity)
	return o.deliver(msg.TargetIdentity, protocol.NewCallRejected(from))
}

func (o *Orchestrator) EndCall(from domain.ConnectionID, msg protocol.Message) bool {
	o.Pairs.Close(from, msg.TargetIdentity)
	return o.deliver(msg.TargetIdentity, protocol.NewCallEnded(from))
}

func (o *Orchestrator) RelayCandidate(from domain.ConnectionID, msg protocol.Message) bool {
	if msg.TargetIdentity == "" || msg.TargetIdentity == from {
		return false
	}
	return o.deliver(msg.TargetIdentity, protocol.NewRelayedCandidate(from, msg.Candidate))
}

// LookupUser resolves a stable user id; the zero identity means offline.
func (o *Orchestrator) LookupUser(uid domain.UserID) protocol.Message {
	id, _ := o.Registry.Lookup(uid)
	return protocol.NewUserIdentity(uid, id)
}
