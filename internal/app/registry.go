package app

import (
	"context"
	"sync"

	"github.com/GKAANU/Sonox-panel/internal/core"
	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/rs/zerolog/log"
)

type routeEntry struct {
	User   domain.UserID
	Conn   core.SignalConnection
	Cancel context.CancelFunc
}

// Registry is the relay's route table: connection identity -> live transport.
// It also keeps the user directory (stable user id -> latest connection).
type Registry struct {
	mu     sync.RWMutex
	routes map[domain.ConnectionID]*routeEntry
	users  map[domain.UserID]domain.ConnectionID
}

func NewRegistry() *Registry {
	return &Registry{
		routes: make(map[domain.ConnectionID]*routeEntry),
		users:  make(map[domain.UserID]domain.ConnectionID),
	}
}

// Bind assigns a fresh identity to conn and records the route.
func (r *Registry) Bind(uid domain.UserID, conn core.SignalConnection, cancel context.CancelFunc) domain.ConnectionID {
	id := domain.NewConnectionID()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[id] = &routeEntry{User: uid, Conn: conn, Cancel: cancel}
	if uid != "" {
		r.users[uid] = id
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("user", string(uid)).Msg("bound route")
	return id
}

// Unbind removes the route. It reports false if id was not bound.
func (r *Registry) Unbind(id domain.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.routes[id]
	if !ok {
		return false
	}
	delete(r.routes, id)
	if e.User != "" && r.users[e.User] == id {
		delete(r.users, e.User)
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("unbind route")
	return true
}

func (r *Registry) Conn(id domain.ConnectionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.routes[id]; ok {
		return e.Conn, true
	}
	return nil, false
}

func (r *Registry) UserOf(id domain.ConnectionID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.routes[id]; ok {
		return e.User, true
	}
	return "", false
}

// Lookup resolves a stable user id to its current connection identity.
func (r *Registry) Lookup(uid domain.UserID) (domain.ConnectionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.users[uid]
	return id, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// Cancel stops the pumps of a bound connection.
func (r *Registry) Cancel(id domain.ConnectionID) bool {
	r.mu.RLock()
	e, ok := r.routes[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("canceled connection")
	return true
}
