package rtc

import (
	"context"
	"time"

	"github.com/GKAANU/Sonox-panel/internal/call"
	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// opusSilence is one 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const silenceFrame = 20 * time.Millisecond

// SilentSource stands in for capture hardware on headless hosts. Audio
// tracks carry Opus silence; video tracks are negotiated but send nothing.
type SilentSource struct{}

func (SilentSource) Acquire(ctx context.Context, kind domain.MediaKind) (call.LocalStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "sonox",
	)
	if err != nil {
		return nil, err
	}
	stop := make(chan struct{})
	go writeSilence(audio, stop)

	s := &Stream{tracks: []*Track{newTrack(domain.TrackAudio, audio, func() { close(stop) })}}
	if kind.HasVideo() {
		video, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
			"video", "sonox",
		)
		if err != nil {
			s.Stop()
			return nil, err
		}
		s.tracks = append(s.tracks, newTrack(domain.TrackVideo, video, nil))
	}
	return s, nil
}

func writeSilence(track *webrtc.TrackLocalStaticSample, stop <-chan struct{}) {
	ticker := time.NewTicker(silenceFrame)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := track.WriteSample(media.Sample{Data: opusSilence, Duration: silenceFrame}); err != nil {
				return
			}
		}
	}
}
