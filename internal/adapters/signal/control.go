package signal

import "github.com/GKAANU/Sonox-panel/internal/protocol"

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	ctl.sendJSON(conn, protocol.Message{Type: protocol.Pong})
}
