package signal

import (
	"github.com/GKAANU/Sonox-panel/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleLookupUser(
	conn *WsSignalConn,
	msg protocol.Message,
) {
	resp := ctl.Orch.LookupUser(msg.UserID)
	log.Debug().Str("module", "signal").Str("user", string(msg.UserID)).Str("conn", string(resp.Identity)).Msg("lookup-user")
	ctl.sendJSON(conn, resp)
}
