package rtc

import (
	"sync"

	"github.com/GKAANU/Sonox-panel/internal/call"
	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Track is a local capture track. Muting swaps the sender's track for nil
// so no renegotiation is needed.
type Track struct {
	kind  domain.TrackKind
	local webrtc.TrackLocal
	stop  func()

	mu      sync.Mutex
	sender  *webrtc.RTPSender
	enabled bool
	live    bool
}

func newTrack(kind domain.TrackKind, local webrtc.TrackLocal, stop func()) *Track {
	return &Track{kind: kind, local: local, stop: stop, enabled: true, live: true}
}

func (t *Track) Kind() domain.TrackKind { return t.kind }

func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Track) SetEnabled(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enabled == on || !t.live {
		return
	}
	t.enabled = on
	if t.sender == nil {
		return
	}
	var next webrtc.TrackLocal
	if on {
		next = t.local
	}
	if err := t.sender.ReplaceTrack(next); err != nil {
		log.Warn().Err(err).Str("module", "webrtc").Str("track", string(t.kind)).Msg("replace track")
	}
}

func (t *Track) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

func (t *Track) Stop() {
	t.mu.Lock()
	if !t.live {
		t.mu.Unlock()
		return
	}
	t.live = false
	stop := t.stop
	t.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (t *Track) attach(sender *webrtc.RTPSender) {
	t.mu.Lock()
	t.sender = sender
	enabled := t.enabled
	t.mu.Unlock()
	if !enabled {
		_ = sender.ReplaceTrack(nil)
	}
}

// Stream groups the tracks acquired for one call.
type Stream struct {
	tracks []*Track
}

func (s *Stream) Tracks() []call.LocalTrack {
	out := make([]call.LocalTrack, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *Stream) Stop() {
	for _, t := range s.tracks {
		t.Stop()
	}
}
