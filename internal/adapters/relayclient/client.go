// Package relayclient is the client end of the signaling channel. It keeps
// one WebSocket to the relay alive, hands relay events over in arrival order
// and fails sends fast while the link is down.
package relayclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/GKAANU/Sonox-panel/internal/call"
	"github.com/GKAANU/Sonox-panel/internal/core"
	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/GKAANU/Sonox-panel/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrUserOffline = errors.New("user is not connected to the relay")

type Options struct {
	URL    string
	UserID domain.UserID
	// Token is sent as a bearer token when the relay requires auth.
	Token string

	DialTimeout  time.Duration
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	PingPeriod   time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	ReadLimit    int64
	SendBuffer   int
}

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.ReconnectMin <= 0 {
		o.ReconnectMin = time.Second
	}
	if o.ReconnectMax < o.ReconnectMin {
		o.ReconnectMax = o.ReconnectMin
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32768
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	return o
}

// Client implements call.Signaler over a reconnecting WebSocket.
type Client struct {
	opts   Options
	dialer *websocket.Dialer

	mu       sync.RWMutex
	link     *link
	identity domain.ConnectionID
	ready    chan struct{}

	hmu          sync.RWMutex
	onEvent      func(protocol.Message)
	onDisconnect func()

	lmu     sync.Mutex
	lookups map[domain.UserID][]chan domain.ConnectionID
}

func New(opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.DialTimeout,
		},
		ready:   make(chan struct{}),
		lookups: make(map[domain.UserID][]chan domain.ConnectionID),
	}
}

// OnEvent sets the receiver of relay events. It runs on the read goroutine,
// one event at a time.
func (c *Client) OnEvent(fn func(protocol.Message)) {
	c.hmu.Lock()
	c.onEvent = fn
	c.hmu.Unlock()
}

// OnDisconnect is called each time an established link is lost.
func (c *Client) OnDisconnect(fn func()) {
	c.hmu.Lock()
	c.onDisconnect = fn
	c.hmu.Unlock()
}

func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.link != nil
}

func (c *Client) Identity() domain.ConnectionID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

func (c *Client) Send(msg protocol.Message) error {
	b, err := msg.Encode()
	if err != nil {
		return err
	}
	c.mu.RLock()
	l := c.link
	c.mu.RUnlock()
	if l == nil {
		return call.ErrRelayUnreachable
	}
	if err := l.TrySend(b); err != nil {
		return fmt.Errorf("%w: %w", call.ErrRelayUnreachable, err)
	}
	return nil
}

// WaitReady blocks until the relay has assigned an identity.
func (c *Client) WaitReady(ctx context.Context) (domain.ConnectionID, error) {
	for {
		c.mu.RLock()
		ready, id := c.ready, c.identity
		c.mu.RUnlock()
		if id != "" {
			return id, nil
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Lookup asks the relay for the current identity of a stable user id.
func (c *Client) Lookup(ctx context.Context, uid domain.UserID) (domain.ConnectionID, error) {
	ch := make(chan domain.ConnectionID, 1)
	c.lmu.Lock()
	c.lookups[uid] = append(c.lookups[uid], ch)
	c.lmu.Unlock()
	defer c.forgetLookup(uid, ch)

	if err := c.Send(protocol.NewLookupUser(uid)); err != nil {
		return "", err
	}
	select {
	case id := <-ch:
		if id == "" {
			return "", ErrUserOffline
		}
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) forgetLookup(uid domain.UserID, ch chan domain.ConnectionID) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	waiters := c.lookups[uid]
	for i, w := range waiters {
		if w == ch {
			waiters = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(waiters) == 0 {
		delete(c.lookups, uid)
	} else {
		c.lookups[uid] = waiters
	}
}

func (c *Client) resolveLookup(msg protocol.Message) {
	c.lmu.Lock()
	waiters := c.lookups[msg.UserID]
	delete(c.lookups, msg.UserID)
	c.lmu.Unlock()
	for _, ch := range waiters {
		ch <- msg.Identity
	}
}

// Run keeps the link up until ctx ends, backing off between attempts.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.opts.ReconnectMin
	for {
		established, err := c.serve(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if established {
			backoff = c.opts.ReconnectMin
		}
		log.Warn().Err(err).Str("module", "relayclient").Dur("backoff", backoff).Msg("relay link down, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.opts.ReconnectMax)
	}
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", err
	}
	if c.opts.UserID != "" {
		q := u.Query()
		q.Set("uid", string(c.opts.UserID))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// serve runs one link. It reports whether the relay assigned an identity
// before the link ended.
func (c *Client) serve(ctx context.Context) (bool, error) {
	target, err := c.endpoint()
	if err != nil {
		return false, err
	}
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	dctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	ws, _, err := c.dialer.DialContext(dctx, target, header)
	cancel()
	if err != nil {
		return false, fmt.Errorf("dial relay: %w", err)
	}
	ws.SetReadLimit(c.opts.ReadLimit)
	log.Info().Str("module", "relayclient").Str("url", c.opts.URL).Msg("relay connected")

	l := &link{conn: ws, send: make(chan core.Frame, c.opts.SendBuffer)}
	lctx, stop := context.WithCancel(ctx)
	defer stop()
	go c.writePump(lctx, l)
	err = c.readPump(lctx, l)
	return c.drop(l), err
}

func (c *Client) adopt(l *link, id domain.ConnectionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link == l {
		c.identity = id
		return
	}
	c.link = l
	c.identity = id
	close(c.ready)
	log.Info().Str("module", "relayclient").Str("identity", string(id)).Msg("identity assigned")
}

// drop forgets l and reports whether it had been established.
func (c *Client) drop(l *link) bool {
	l.Close()
	c.mu.Lock()
	was := c.link == l
	if was {
		c.link = nil
		c.identity = ""
		c.ready = make(chan struct{})
	}
	c.mu.Unlock()

	if was {
		c.hmu.RLock()
		fn := c.onDisconnect
		c.hmu.RUnlock()
		if fn != nil {
			fn()
		}
	}
	return was
}

func (c *Client) dispatch(l *link, msg protocol.Message) {
	switch msg.Type {
	case protocol.IdentityAssigned:
		c.adopt(l, msg.Identity)
	case protocol.UserIdentity:
		c.resolveLookup(msg)
	case protocol.Pong:
		log.Debug().Str("module", "relayclient").Msg("pong")
	default:
		c.hmu.RLock()
		fn := c.onEvent
		c.hmu.RUnlock()
		if fn != nil {
			fn(msg)
		}
	}
}
