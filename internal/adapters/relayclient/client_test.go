package relayclient

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	relayhttp "github.com/GKAANU/Sonox-panel/internal/adapters/http"
	"github.com/GKAANU/Sonox-panel/internal/app"
	"github.com/GKAANU/Sonox-panel/internal/app/orch"
	"github.com/GKAANU/Sonox-panel/internal/call"
	"github.com/GKAANU/Sonox-panel/internal/config"
	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/GKAANU/Sonox-panel/internal/protocol"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T, jwtSecret string) (*orch.Orchestrator, string) {
	t.Helper()
	o := orch.New(app.SimplePolicy{}, app.NewRateLimiter(0, 1))
	cfg := &config.Config{
		Mode:      "release",
		Secret:    "test-secret",
		JWTSecret: jwtSecret,
		PongWait:  time.Minute,
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(relayhttp.SetupRouter(ctx, cfg, o))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return o, "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
}

type running struct {
	c      *Client
	id     domain.ConnectionID
	events chan protocol.Message
}

func start(t *testing.T, opts Options) *running {
	t.Helper()
	opts.ReconnectMin = 10 * time.Millisecond
	opts.ReconnectMax = 50 * time.Millisecond
	r := &running{c: New(opts), events: make(chan protocol.Message, 16)}
	r.c.OnEvent(func(m protocol.Message) { r.events <- m })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	wctx, wcancel := context.WithTimeout(ctx, 5*time.Second)
	defer wcancel()
	id, err := r.c.WaitReady(wctx)
	require.NoError(t, err)
	r.id = id
	return r
}

func (r *running) next(t *testing.T) protocol.Message {
	t.Helper()
	select {
	case m := <-r.events:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("no relay event")
	}
	return protocol.Message{}
}

func TestClientIsAssignedIdentity(t *testing.T) {
	o, url := startRelay(t, "")
	alice := start(t, Options{URL: url, UserID: "alice"})

	assert.NotEmpty(t, alice.id)
	assert.True(t, alice.c.Connected())
	assert.Equal(t, alice.id, alice.c.Identity())

	bound, ok := o.Registry.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, alice.id, bound)
}

func TestClientRoutesCallEvents(t *testing.T) {
	_, url := startRelay(t, "")
	alice := start(t, Options{URL: url, UserID: "alice"})
	bob := start(t, Options{URL: url, UserID: "bob"})

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	require.NoError(t, alice.c.Send(protocol.NewCallUser(bob.id, alice.id, offer, domain.MediaAudio)))

	in := bob.next(t)
	assert.Equal(t, protocol.IncomingCall, in.Type)
	assert.Equal(t, alice.id, in.FromIdentity)
	assert.Equal(t, alice.id, in.CallerIdentity)
	assert.JSONEq(t, string(offer), string(in.SignalPayload))

	answer := json.RawMessage(`{"type":"answer","sdp":"v=0"}`)
	require.NoError(t, bob.c.Send(protocol.NewAnswerCall(alice.id, answer)))
	acc := alice.next(t)
	assert.Equal(t, protocol.CallAccepted, acc.Type)
	assert.Equal(t, bob.id, acc.FromIdentity)

	require.NoError(t, bob.c.Send(protocol.NewEndCall(alice.id)))
	end := alice.next(t)
	assert.Equal(t, protocol.CallEnded, end.Type)
	assert.Equal(t, bob.id, end.FromIdentity)
}

func TestLookup(t *testing.T) {
	_, url := startRelay(t, "")
	alice := start(t, Options{URL: url, UserID: "alice"})
	bob := start(t, Options{URL: url, UserID: "bob"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := alice.c.Lookup(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, bob.id, id)

	_, err = alice.c.Lookup(ctx, "nobody")
	require.ErrorIs(t, err, ErrUserOffline)
}

func TestSendFailsFastWhileDown(t *testing.T) {
	c := New(Options{URL: "ws://127.0.0.1:1/api/ws/signal"})

	assert.False(t, c.Connected())
	err := c.Send(protocol.NewEndCall("someone"))
	require.ErrorIs(t, err, call.ErrRelayUnreachable)
}

func TestReconnectsAfterDrop(t *testing.T) {
	o, url := startRelay(t, "")
	alice := start(t, Options{URL: url, UserID: "alice"})

	lost := make(chan struct{}, 4)
	alice.c.OnDisconnect(func() { lost <- struct{}{} })

	first := alice.id
	require.True(t, o.Registry.Cancel(first))

	select {
	case <-lost:
	case <-time.After(5 * time.Second):
		t.Fatal("disconnect not reported")
	}

	require.Eventually(t, func() bool {
		id := alice.c.Identity()
		return id != "" && id != first
	}, 5*time.Second, 10*time.Millisecond)

	bound, ok := o.Registry.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, alice.c.Identity(), bound)
}

func TestBearerToken(t *testing.T) {
	const secret = "jwt-test-secret"
	o, url := startRelay(t, secret)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "carol"}).SignedString([]byte(secret))
	require.NoError(t, err)

	carol := start(t, Options{URL: url, Token: tok})
	bound, ok := o.Registry.Lookup("carol")
	require.True(t, ok)
	assert.Equal(t, carol.id, bound)

	bad := New(Options{URL: url, Token: "garbage", ReconnectMin: 10 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	go func() { _ = bad.Run(ctx) }()
	_, err = bad.WaitReady(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
