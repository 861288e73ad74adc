package signal

import (
	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/GKAANU/Sonox-panel/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleCallUser(id domain.ConnectionID, msg protocol.Message) {
	if !ctl.Orch.CallUser(id, msg) {
		log.Debug().Str("module", "signal").Str("conn", string(id)).Str("target", string(msg.TargetIdentity)).Msg("call-user not delivered")
	}
}

func (ctl *SignalWSController) handleAnswerCall(id domain.ConnectionID, msg protocol.Message) {
	if !ctl.Orch.AnswerCall(id, msg) {
		log.Debug().Str("module", "signal").Str("conn", string(id)).Str("target", string(msg.TargetIdentity)).Msg("answer-call not delivered")
	}
}

func (ctl *SignalWSController) handleRejectCall(id domain.ConnectionID, msg protocol.Message) {
	ctl.Orch.RejectCall(id, msg)
}

func (ctl *SignalWSController) handleEndCall(id domain.ConnectionID, msg protocol.Message) {
	ctl.Orch.EndCall(id, msg)
}

func (ctl *SignalWSController) handleCandidate(id domain.ConnectionID, msg protocol.Message) {
	ctl.Orch.RelayCandidate(id, msg)
}
