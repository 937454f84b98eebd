// Package buffer implements the In-Memory Buffer (C4): bounded,
// single-writer/single-reader per-callsign caches for the latest pilot
// and controller observations. Eviction is oldest-last-seen, backed by
// hashicorp/golang-lru/v2's Add/Get access-order semantics rather than a
// hand-rolled map+slice LRU.
package buffer

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vatpac/stats-ingestor/internal/model"
)

const (
	DefaultPilotCapacity      = 5000
	DefaultControllerCapacity = 1000
)

// Buffer holds the current-cycle view of active pilots and controllers.
// It is owned exclusively by the Coordinator goroutine (C6); nothing else
// reads or writes it, so no internal locking is needed beyond what the
// underlying LRU already does for its own bookkeeping.
type Buffer struct {
	pilots      *lru.Cache[string, model.PilotObs]
	controllers *lru.Cache[string, model.ControllerObs]
}

func New(pilotCapacity, controllerCapacity int) (*Buffer, error) {
	if pilotCapacity <= 0 {
		pilotCapacity = DefaultPilotCapacity
	}
	if controllerCapacity <= 0 {
		controllerCapacity = DefaultControllerCapacity
	}
	pilots, err := lru.New[string, model.PilotObs](pilotCapacity)
	if err != nil {
		return nil, err
	}
	controllers, err := lru.New[string, model.ControllerObs](controllerCapacity)
	if err != nil {
		return nil, err
	}
	return &Buffer{pilots: pilots, controllers: controllers}, nil
}

// PutPilot inserts or refreshes a pilot observation, updating its
// recency so the LRU evicts the actual oldest-last-seen entry.
func (b *Buffer) PutPilot(obs model.PilotObs) {
	b.pilots.Add(obs.Callsign, obs)
}

// PutController inserts or refreshes a controller observation.
func (b *Buffer) PutController(obs model.ControllerObs) {
	b.controllers.Add(obs.Callsign, obs)
}

// Pilots returns a snapshot slice of all buffered pilot observations.
func (b *Buffer) Pilots() []model.PilotObs {
	keys := b.pilots.Keys()
	out := make([]model.PilotObs, 0, len(keys))
	for _, k := range keys {
		if v, ok := b.pilots.Peek(k); ok {
			out = append(out, v)
		}
	}
	return out
}

// Controllers returns a snapshot slice of all buffered controller
// observations.
func (b *Buffer) Controllers() []model.ControllerObs {
	keys := b.controllers.Keys()
	out := make([]model.ControllerObs, 0, len(keys))
	for _, k := range keys {
		if v, ok := b.controllers.Peek(k); ok {
			out = append(out, v)
		}
	}
	return out
}

// RemoveController evicts a controller entry. The Coordinator calls it for
// controllers missing from the latest snapshot and again once a
// controller has transitioned offline and been summarized.
func (b *Buffer) RemoveController(callsign string) {
	b.controllers.Remove(callsign)
}

// Len reports current occupancy, used for metrics.
func (b *Buffer) Len() (pilots, controllers int) {
	return b.pilots.Len(), b.controllers.Len()
}
