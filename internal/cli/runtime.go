package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/GKAANU/Sonox-panel/internal/adapters/relayclient"
	"github.com/GKAANU/Sonox-panel/internal/adapters/rtc"
	"github.com/GKAANU/Sonox-panel/internal/call"
	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/GKAANU/Sonox-panel/internal/storage"
	"github.com/rs/zerolog/log"
)

const readyTimeout = 15 * time.Second

// runtime is a connected client: relay link, call manager and call log.
type runtime struct {
	client *relayclient.Client
	mgr    *call.Manager
	out    io.Writer
	stop   func()
}

func (e *env) mediaSource() (call.MediaSource, rtc.CodecRegistrar, error) {
	switch e.flags.media {
	case "", "devices":
		d, err := rtc.NewDevices()
		if err != nil {
			return nil, nil, err
		}
		return d, d, nil
	case "silent":
		return rtc.SilentSource{}, rtc.DefaultCodecs{}, nil
	}
	return nil, nil, fmt.Errorf("unknown media source %q", e.flags.media)
}

func (e *env) start(ctx context.Context, out io.Writer) (*runtime, error) {
	cc := e.cfg.Client

	media, codecs, err := e.mediaSource()
	if err != nil {
		return nil, err
	}
	peers, err := rtc.NewPeerFactory(rtc.FactoryOptions{
		ICEServers: cc.ICEServers,
		Trickle:    cc.TrickleICE,
		Codecs:     codecs,
	})
	if err != nil {
		return nil, err
	}

	client := relayclient.New(relayclient.Options{
		URL:          cc.RelayURL,
		UserID:       domain.UserID(cc.UserID),
		Token:        cc.Token,
		ReconnectMin: cc.ReconnectMin,
		ReconnectMax: cc.ReconnectMax,
		PingPeriod:   e.cfg.PingPeriod,
		PongWait:     e.cfg.PongWait,
		WriteWait:    e.cfg.WriteWait,
		ReadLimit:    e.cfg.ReadLimit,
		SendBuffer:   e.cfg.SendBuffer,
	})
	mgr := call.NewManager(client, media, peers, call.Options{
		DialTimeout: cc.DialTimeout,
		RingTimeout: cc.RingTimeout,
		Trickle:     cc.TrickleICE,
	})
	client.OnEvent(mgr.HandleEvent)
	client.OnDisconnect(mgr.OnRelayLost)

	out = &lockedWriter{w: out}
	mgr.Subscribe(printer(out))

	var calls *storage.CallLog
	if cc.CallLog != "" {
		calls, err = storage.Open(cc.CallLog)
		if err != nil {
			return nil, fmt.Errorf("open call log: %w", err)
		}
		mgr.Subscribe(calls.Recorder())
	}

	rctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = client.Run(rctx)
	}()

	rt := &runtime{client: client, mgr: mgr, out: out}
	rt.stop = func() {
		mgr.Close()
		cancel()
		<-done
		if calls != nil {
			_ = calls.Close()
		}
	}

	wctx, wcancel := context.WithTimeout(ctx, readyTimeout)
	defer wcancel()
	id, err := client.WaitReady(wctx)
	if err != nil {
		rt.stop()
		return nil, fmt.Errorf("relay %s not reachable: %w", cc.RelayURL, err)
	}
	log.Info().Str("module", "cli").Str("identity", string(id)).Str("user", cc.UserID).Msg("ready")
	fmt.Fprintf(out, "connected as %s\n", id)
	return rt, nil
}

// ended delivers the final snapshot of every session.
func (rt *runtime) ended() (<-chan call.Snapshot, func()) {
	ch := make(chan call.Snapshot, 4)
	unsubscribe := rt.mgr.Subscribe(func(s call.Snapshot) {
		if s.State == call.StateEnded {
			select {
			case ch <- s:
			default:
			}
		}
	})
	return ch, unsubscribe
}

// command runs one interactive console line.
func (rt *runtime) command(ctx context.Context, line string) (quit bool, err error) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return false, nil
	case "a", "accept":
		go func() {
			if err := rt.mgr.AcceptCall(ctx); err != nil {
				fmt.Fprintf(rt.out, "accept: %v\n", err)
			}
		}()
		return false, nil
	case "r", "reject":
		return false, rt.mgr.RejectCall()
	case "h", "hangup":
		return false, rt.mgr.EndCall()
	case "m", "mute":
		on, err := rt.mgr.ToggleLocalAudio()
		if err == nil {
			fmt.Fprintf(rt.out, "microphone %s\n", onOff(on))
		}
		return false, err
	case "v", "video":
		on, err := rt.mgr.ToggleLocalVideo()
		if err == nil {
			fmt.Fprintf(rt.out, "camera %s\n", onOff(on))
		}
		return false, err
	case "q", "quit":
		return true, nil
	}
	return false, fmt.Errorf("unknown command %q", line)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func printer(out io.Writer) func(call.Snapshot) {
	return func(s call.Snapshot) {
		line := fmt.Sprintf("[%s] %-9s peer=%s media=%s", shortID(s.SessionID), s.State, s.Peer, s.MediaKind)
		if s.HasLocalMedia {
			line += fmt.Sprintf(" mic=%s cam=%s", onOff(s.AudioEnabled), onOff(s.VideoEnabled))
		}
		if s.EndReason != call.ReasonNone {
			line += " reason=" + string(s.EndReason)
		}
		fmt.Fprintln(out, line)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// lockedWriter serializes listener output from concurrent goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
