//go:build !linux

package rtc

import (
	"context"
	"errors"

	"github.com/GKAANU/Sonox-panel/internal/call"
	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/pion/webrtc/v4"
)

var ErrNoCaptureDriver = errors.New("no capture driver on this platform")

// Devices has no capture drivers outside Linux; use SilentSource instead.
type Devices struct{}

func NewDevices() (*Devices, error) { return &Devices{}, nil }

func (*Devices) RegisterCodecs(me *webrtc.MediaEngine) error {
	return me.RegisterDefaultCodecs()
}

func (*Devices) Acquire(context.Context, domain.MediaKind) (call.LocalStream, error) {
	return nil, ErrNoCaptureDriver
}
