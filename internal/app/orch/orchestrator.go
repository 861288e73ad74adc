package orch

import (
	"context"

	"github.com/GKAANU/Sonox-panel/internal/app"
	"github.com/GKAANU/Sonox-panel/internal/core"
	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/GKAANU/Sonox-panel/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Orchestrator routes signaling events between exactly the identities they
// name. It never looks inside signal payloads.
type Orchestrator struct {
	Registry *app.Registry
	Pairs    *app.PairTable
	Policy   app.Policy
	Limiter  *app.RateLimiter
}

func New(policy app.Policy, limiter *app.RateLimiter) *Orchestrator {
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Pairs:    app.NewPairTable(),
		Policy:   policy,
		Limiter:  limiter,
	}
}

// Connect binds a new transport and tells it its identity.
func (o *Orchestrator) Connect(uid domain.UserID, conn core.SignalConnection, cancel context.CancelFunc) domain.ConnectionID {
	id := o.Registry.Bind(uid, conn, cancel)
	o.send(conn, id, protocol.NewIdentityAssigned(id))
	return id
}

// Disconnect drops the route and notifies only the peers id was paired with.
func (o *Orchestrator) Disconnect(id domain.ConnectionID) {
	uid, _ := o.Registry.UserOf(id)
	if !o.Registry.Unbind(id) {
		return
	}
	if o.Limiter != nil {
		o.Limiter.Forget(id)
	}
	peers := o.Pairs.Drop(id)
	for _, peer := range peers {
		o.deliver(peer, protocol.NewCallEnded(id))
	}
	log.Info().Str("module", "orch").Str("conn", string(id)).Str("user", string(uid)).Int("notified", len(peers)).Msg("disconnected")
}

// Stats is a read-only view for the HTTP API.
type Stats struct {
	Connections  int `json:"connections"`
	PendingPairs int `json:"pending_pairs"`
	ActivePairs  int `json:"active_pairs"`
}

func (o *Orchestrator) Stats() Stats {
	pending, active := o.Pairs.Counts()
	return Stats{
		Connections:  o.Registry.Len(),
		PendingPairs: pending,
		ActivePairs:  active,
	}
}

// deliver forwards msg to target. Unknown targets are dropped silently.
func (o *Orchestrator) deliver(target domain.ConnectionID, msg protocol.Message) bool {
	conn, ok := o.Registry.Conn(target)
	if !ok {
		log.Debug().Str("module", "orch").Str("target", string(target)).Str("type", string(msg.Type)).Msg("target not connected, dropped")
		return false
	}
	return o.send(conn, target, msg)
}

func (o *Orchestrator) send(conn core.SignalConnection, target domain.ConnectionID, msg protocol.Message) bool {
	frame, err := msg.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("type", string(msg.Type)).Msg("encode")
		return false
	}
	err = conn.TrySend(frame)
	if err == nil {
		return true
	}
	log.Warn().Err(err).Str("module", "orch").Str("target", string(target)).Str("type", string(msg.Type)).Msg("send failed")
	if o.Policy == nil {
		return false
	}
	switch o.Policy.OnBackPressure(target) {
	case app.Disconnect:
		o.Registry.Cancel(target)
	case app.DropFrame, app.NoAction:
	}
	return false
}
