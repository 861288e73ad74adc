package call

import (
	"errors"
	"fmt"

	"github.com/GKAANU/Sonox-panel/internal/domain"
)

var (
	ErrMediaAcquisition  = errors.New("media acquisition failed")
	ErrRelayUnreachable  = errors.New("relay unreachable")
	ErrNegotiation       = errors.New("peer negotiation failed")
	ErrInvalidTransition = errors.New("operation not valid in current state")
	ErrBusy              = errors.New("another call is in progress")
	ErrSuperseded        = errors.New("call ended while operation was pending")
	ErrNoSuchTrack       = errors.New("no local track of that kind")
	ErrNoSession         = errors.New("no call session")
	ErrNoTarget          = errors.New("empty target identity")
)

// MediaAcquisitionError reports a denied or missing capture device.
type MediaAcquisitionError struct {
	Kind domain.MediaKind
	Err  error
}

func (e *MediaAcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s media: %v", e.Kind, e.Err)
}

func (e *MediaAcquisitionError) Unwrap() []error {
	return []error{ErrMediaAcquisition, e.Err}
}
