package relayclient

import (
	"context"
	"sync"
	"time"

	"github.com/GKAANU/Sonox-panel/internal/core"
	"github.com/GKAANU/Sonox-panel/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// link is one established WebSocket. It satisfies core.SignalConnection.
type link struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (l *link) TrySend(f core.Frame) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return core.ErrClosed
	}
	select {
	case l.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (l *link) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.send)
	_ = l.conn.Close()
}

func (c *Client) writePump(ctx context.Context, l *link) {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		l.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				log.Warn().Err(err).Str("module", "relayclient").Msg("writePump ping")
				return
			}
		case data, ok := <-l.send:
			if !ok {
				return
			}
			if err := l.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "relayclient").Msg("writePump set deadline")
				return
			}
			if err := l.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "relayclient").Msg("writePump write error")
				return
			}
		}
	}
}

func (c *Client) readPump(ctx context.Context, l *link) error {
	_ = l.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	l.conn.SetPongHandler(func(string) error {
		return l.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	// ReadMessage blocks, so a canceled ctx must also close the socket.
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Str("module", "relayclient").Msg("readPump read error")
			}
			return err
		}
		_ = l.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))

		msg, err := protocol.Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "relayclient").Msg("dropped frame")
			continue
		}
		c.dispatch(l, msg)
	}
}
