package app

import (
	"sync"

	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/rs/zerolog/log"
)

type PairState int

const (
	PairPending PairState = iota + 1
	PairActive
)

func (s PairState) String() string {
	switch s {
	case PairPending:
		return "pending"
	case PairActive:
		return "active"
	}
	return "none"
}

type pairKey struct{ a, b domain.ConnectionID }

func keyOf(x, y domain.ConnectionID) pairKey {
	if x > y {
		x, y = y, x
	}
	return pairKey{x, y}
}

// PairTable tracks which identities are in a call attempt with each other so
// that a disconnect notifies only the affected peers.
type PairTable struct {
	mu    sync.Mutex
	pairs map[pairKey]PairState
	index map[domain.ConnectionID]map[domain.ConnectionID]struct{}
}

func NewPairTable() *PairTable {
	return &PairTable{
		pairs: make(map[pairKey]PairState),
		index: make(map[domain.ConnectionID]map[domain.ConnectionID]struct{}),
	}
}

// Open records a pending pair and reports whether it was not tracked yet.
// An existing pair is left as is.
func (t *PairTable) Open(caller, callee domain.ConnectionID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := keyOf(caller, callee)
	if _, ok := t.pairs[k]; ok {
		return false
	}
	t.set(k, PairPending)
	return true
}

func (t *PairTable) Activate(x, y domain.ConnectionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.set(keyOf(x, y), PairActive)
	log.Debug().Str("module", "app.pairs").Str("a", string(x)).Str("b", string(y)).Msg("pair active")
}

// Close forgets the pair and reports whether it existed.
func (t *PairTable) Close(x, y domain.ConnectionID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := keyOf(x, y)
	if _, ok := t.pairs[k]; !ok {
		return false
	}
	t.remove(k)
	return true
}

// Drop removes every pair id takes part in and returns the other parties.
func (t *PairTable) Drop(id domain.ConnectionID) []domain.ConnectionID {
	t.mu.Lock()
	defer t.mu.Unlock()
	peers := make([]domain.ConnectionID, 0, len(t.index[id]))
	for other := range t.index[id] {
		peers = append(peers, other)
	}
	for _, other := range peers {
		t.remove(keyOf(id, other))
	}
	return peers
}

func (t *PairTable) State(x, y domain.ConnectionID) (PairState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.pairs[keyOf(x, y)]
	return s, ok
}

// Counts returns the number of pending and active pairs.
func (t *PairTable) Counts() (pending, active int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.pairs {
		if s == PairActive {
			active++
		} else {
			pending++
		}
	}
	return pending, active
}

func (t *PairTable) set(k pairKey, s PairState) {
	t.pairs[k] = s
	t.link(k.a, k.b)
	t.link(k.b, k.a)
}

func (t *PairTable) link(from, to domain.ConnectionID) {
	m, ok := t.index[from]
	if !ok {
		m = make(map[domain.ConnectionID]struct{})
		t.index[from] = m
	}
	m[to] = struct{}{}
}

func (t *PairTable) remove(k pairKey) {
	delete(t.pairs, k)
	t.unlink(k.a, k.b)
	t.unlink(k.b, k.a)
}

func (t *PairTable) unlink(from, to domain.ConnectionID) {
	if m, ok := t.index[from]; ok {
		delete(m, to)
		if len(m) == 0 {
			delete(t.index, from)
		}
	}
}
