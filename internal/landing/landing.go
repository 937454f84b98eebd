// Package landing implements the Landing Detector (C7): a per-cycle check
// that flags a pilot observation as a touchdown when it is near a known
// airport, low, and slow. Grounded on the teacher's nearest-airport scan
// (internal/airports, itself adapted from FindAirportsNear) plus the
// phase-change bookkeeping pattern from the co-located ATC example repo's
// PhaseChange/PhaseChangeInsert (kept within a cooldown table rather than
// a full event log, since only the most recent landing per flight
// matters here).
package landing

import (
	"sync"
	"time"

	"github.com/vatpac/stats-ingestor/internal/airports"
	"github.com/vatpac/stats-ingestor/internal/model"
)

// Dedup window: once a flight has been flagged landed, further
// observations that still satisfy the threshold are not re-emitted for
// this long.
const dedupWindow = 5 * time.Minute

type flightKey struct {
	callsign  string
	logonTime time.Time
}

// Detector evaluates pilot observations against the reference airport set
// and a moving-threshold rule, with a short per-flight cooldown so a
// single landing does not emit an event every poll cycle.
type Detector struct {
	airports *airports.Store
	radiusNM float64
	altFt    float64
	speedKt  float64

	mu       sync.Mutex
	lastSeen map[flightKey]time.Time
}

func New(store *airports.Store, radiusNM, altFt, speedKt float64) *Detector {
	return &Detector{
		airports: store,
		radiusNM: radiusNM,
		altFt:    altFt,
		speedKt:  speedKt,
		lastSeen: make(map[flightKey]time.Time),
	}
}

// Evaluate checks a single pilot observation and returns a LandingEvent
// if it qualifies as a fresh touchdown. ok is false both when the
// observation doesn't meet the threshold and when it does but falls
// inside an already-flagged flight's dedup window.
func (d *Detector) Evaluate(obs model.PilotObs) (model.LandingEvent, bool) {
	airport, _, ok := d.airports.Nearest(obs.Latitude, obs.Longitude, d.radiusNM)
	if !ok {
		return model.LandingEvent{}, false
	}

	altAboveAirport := obs.AltitudeFt - airport.ElevationFt
	if altAboveAirport > d.altFt || obs.GroundspeedKt > d.speedKt {
		return model.LandingEvent{}, false
	}

	key := flightKey{callsign: obs.Callsign, logonTime: obs.LogonTime}

	d.mu.Lock()
	defer d.mu.Unlock()
	if last, seen := d.lastSeen[key]; seen && obs.ObservedAt.Sub(last) < dedupWindow {
		return model.LandingEvent{}, false
	}
	d.lastSeen[key] = obs.ObservedAt

	return model.LandingEvent{
		Callsign:    obs.Callsign,
		LogonTime:   obs.LogonTime,
		AirportICAO: airport.ICAO,
		DetectedAt:  obs.ObservedAt,
		Confidence:  1.0,
	}, true
}

// Forget drops cooldown state for a flight once it has been finalized
// (completed or removed from the active set), so the map doesn't grow
// without bound across the service's lifetime.
func (d *Detector) Forget(callsign string, logonTime time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.lastSeen, flightKey{callsign: callsign, logonTime: logonTime})
}

