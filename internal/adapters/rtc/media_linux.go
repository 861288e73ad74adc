//go:build linux

package rtc

import (
	"context"

	"github.com/GKAANU/Sonox-panel/internal/call"
	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Devices captures from the local camera and microphone (V4L2 and malgo)
// and encodes VP8 and Opus.
type Devices struct {
	selector *mediadevices.CodecSelector
}

func NewDevices() (*Devices, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, err
	}
	vpxParams.BitRate = 1_500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, err
	}

	return &Devices{
		selector: mediadevices.NewCodecSelector(
			mediadevices.WithVideoEncoders(&vpxParams),
			mediadevices.WithAudioEncoders(&opusParams),
		),
	}, nil
}

// RegisterCodecs makes the peer connections offer what the encoders emit.
func (d *Devices) RegisterCodecs(me *webrtc.MediaEngine) error {
	d.selector.Populate(me)
	return nil
}

func (d *Devices) Acquire(ctx context.Context, kind domain.MediaKind) (call.LocalStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	constraints := mediadevices.MediaStreamConstraints{
		Codec: d.selector,
		Audio: func(*mediadevices.MediaTrackConstraints) {},
	}
	if kind.HasVideo() {
		constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
			// MJPEG nodes on some cameras poison the VP8 encoder.
			c.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatYUYV,
				frame.FormatI420,
				frame.FormatI444,
				frame.FormatRGBA,
			}
			c.Width = prop.IntRanged{Max: 640}
			c.Height = prop.IntRanged{Max: 480}
		}
	}

	ms, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		log.Warn().Err(err).Str("module", "webrtc").Str("kind", string(kind)).Msg("GetUserMedia failed")
		return nil, err
	}

	s := &Stream{}
	for _, t := range ms.GetTracks() {
		tk := domain.TrackAudio
		if t.Kind() == webrtc.RTPCodecTypeVideo {
			tk = domain.TrackVideo
		}
		s.tracks = append(s.tracks, newTrack(tk, t, func() { _ = t.Close() }))
	}
	log.Info().Str("module", "webrtc").Str("kind", string(kind)).Int("tracks", len(s.tracks)).Msg("local media captured")
	return s, nil
}
