package app

import (
	"fmt"
	"strings"

	"github.com/GKAANU/Sonox-panel/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	Disconnect
)

// Policy decides what happens to a target whose send queue is full.
type Policy interface {
	OnBackPressure(target domain.ConnectionID) BackpressureAction
}

// SimplePolicy drops the frame; signaling is best-effort and the
// client-side timeouts recover from the loss.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.ConnectionID) BackpressureAction {
	return DropFrame
}

// StrictPolicy disconnects a target that cannot keep up.
type StrictPolicy struct{}

func (StrictPolicy) OnBackPressure(domain.ConnectionID) BackpressureAction {
	return Disconnect
}

// ParsePolicy maps a config value to a Policy. Empty means "drop".
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "drop":
		return SimplePolicy{}, nil
	case "disconnect":
		return StrictPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown backpressure policy %q", name)
}
