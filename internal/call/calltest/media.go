// Package calltest provides in-memory media, peers and relay endpoints for
// driving call sessions in tests.
package calltest

import (
	"context"
	"sync"

	"github.com/GKAANU/Sonox-panel/internal/call"
	"github.com/GKAANU/Sonox-panel/internal/domain"
)

type Track struct {
	kind domain.TrackKind

	mu      sync.Mutex
	enabled bool
	live    bool
}

func (t *Track) Kind() domain.TrackKind { return t.kind }

func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Track) SetEnabled(on bool) {
	t.mu.Lock()
	t.enabled = on
	t.mu.Unlock()
}

func (t *Track) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

func (t *Track) Stop() {
	t.mu.Lock()
	t.live = false
	t.mu.Unlock()
}

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

// Live reports whether any track is still capturing.
func (s *Stream) Live() bool {
	for _, t := range s.tracks {
		if t.Live() {
			return true
		}
	}
	return false
}

// Media hands out fake capture streams. Deny makes every acquisition fail;
// Gate, when set, blocks acquisition until it is closed.
type Media struct {
	mu       sync.Mutex
	Deny     error
	Gate     chan struct{}
	streams  []*Stream
	requests int
}

func (m *Media) Acquire(ctx context.Context, kind domain.MediaKind) (call.LocalStream, error) {
	m.mu.Lock()
	m.requests++
	gate, deny := m.Gate, m.Deny
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if deny != nil {
		return nil, deny
	}

	s := &Stream{tracks: []*Track{{kind: domain.TrackAudio, enabled: true, live: true}}}
	if kind.HasVideo() {
		s.tracks = append(s.tracks, &Track{kind: domain.TrackVideo, enabled: true, live: true})
	}
	m.mu.Lock()
	m.streams = append(m.streams, s)
	m.mu.Unlock()
	return s, nil
}

func (m *Media) Streams() []*Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Stream(nil), m.streams...)
}

func (m *Media) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// AnyLive reports whether a stream handed out is still capturing.
func (m *Media) AnyLive() bool {
	for _, s := range m.Streams() {
		if s.Live() {
			return true
		}
	}
	return false
}
