package domain

import "errors"

var ErrUnknownMediaKind = errors.New("unknown media kind")

// MediaKind is fixed when a call starts and never renegotiated.
type MediaKind string

const (
	MediaAudio      MediaKind = "audio"
	MediaAudioVideo MediaKind = "audio-video"
)

func ParseMediaKind(raw string) (MediaKind, error) {
	switch k := MediaKind(raw); k {
	case MediaAudio, MediaAudioVideo:
		return k, nil
	}
	return "", ErrUnknownMediaKind
}

func (k MediaKind) Valid() bool {
	return k == MediaAudio || k == MediaAudioVideo
}

func (k MediaKind) HasVideo() bool { return k == MediaAudioVideo }

// TrackKind identifies one local capture track.
type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)
