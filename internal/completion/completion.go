// Package completion implements the Flight Completion state machine
// (C8): active -> landed -> stale -> completed, driven by landing events
// from C7 and by pilot-absence timers. Grounded on the teacher's
// collector main loop's own active/stale bookkeeping, generalized into an
// explicit state machine per callsign/logon_time.
package completion

import (
	"context"
	"time"

	"github.com/vatpac/stats-ingestor/internal/db"
	"github.com/vatpac/stats-ingestor/internal/model"
)

// Machine evaluates the absence/landing timers for every active flight
// each cycle and persists any resulting state transition.
type Machine struct {
	flights   *db.FlightRepository
	tStale    time.Duration
	tComplete time.Duration
}

func New(flights *db.FlightRepository, tStale, tComplete time.Duration) *Machine {
	return &Machine{flights: flights, tStale: tStale, tComplete: tComplete}
}

// Transition is one flight's outcome for this cycle; Terminal reports
// whether Summarizer.flight should now run for it.
type Transition struct {
	Callsign    string
	LogonTime   time.Time
	FromStatus  model.FlightStatus
	ToStatus    model.FlightStatus
	Method      model.CompletionMethod
	Confidence  float64
	Terminal    bool
}

// Land records a C7 landing event: the flight moves to "landed" if it
// isn't already terminal. Landing always takes precedence over a later
// timeout, so a landed flight that subsequently goes stale completes with
// method "landing", never "timeout" — callers must call Land before
// EvaluateAbsence observes the same cycle.
func (m *Machine) Land(ctx context.Context, ev model.LandingEvent, current model.FlightStatus) (Transition, error) {
	if current == model.StatusCompleted {
		return Transition{}, nil
	}
	if current == model.StatusLanded {
		return Transition{}, nil
	}
	if err := m.flights.UpdateStatus(ctx, nil, ev.Callsign, ev.LogonTime, model.StatusLanded, nil, model.MethodLanding, ev.Confidence); err != nil {
		return Transition{}, err
	}
	return Transition{
		Callsign:   ev.Callsign,
		LogonTime:  ev.LogonTime,
		FromStatus: current,
		ToStatus:   model.StatusLanded,
		Method:     model.MethodLanding,
		Confidence: ev.Confidence,
	}, nil
}

// EvaluateAbsence applies the absence-timer rules to one flight that was
// not present in the current snapshot. present flights never reach this
// call; the Coordinator only invokes it for callsigns missing from the
// current cycle's pilot set.
func (m *Machine) EvaluateAbsence(ctx context.Context, f db.ActiveFlight, now time.Time) (Transition, error) {
	absence := now.Sub(f.LastObserved)

	switch f.Status {
	case model.StatusCompleted:
		return Transition{}, nil

	case model.StatusLanded:
		if absence > m.tStale {
			completedAt := now
			if err := m.flights.UpdateStatus(ctx, nil, f.Callsign, f.LogonTime, model.StatusCompleted, &completedAt, model.MethodLanding, 1.0); err != nil {
				return Transition{}, err
			}
			return Transition{
				Callsign: f.Callsign, LogonTime: f.LogonTime,
				FromStatus: f.Status, ToStatus: model.StatusCompleted,
				Method: model.MethodLanding, Confidence: 1.0, Terminal: true,
			}, nil
		}
		return Transition{}, nil

	case model.StatusActive:
		if absence > m.tComplete {
			completedAt := now
			conf := timeoutConfidence(absence, m.tComplete)
			if err := m.flights.UpdateStatus(ctx, nil, f.Callsign, f.LogonTime, model.StatusCompleted, &completedAt, model.MethodTimeout, conf); err != nil {
				return Transition{}, err
			}
			return Transition{
				Callsign: f.Callsign, LogonTime: f.LogonTime,
				FromStatus: f.Status, ToStatus: model.StatusCompleted,
				Method: model.MethodTimeout, Confidence: conf, Terminal: true,
			}, nil
		}
		if absence > m.tStale {
			if err := m.flights.UpdateStatus(ctx, nil, f.Callsign, f.LogonTime, model.StatusStale, nil, "", 0); err != nil {
				return Transition{}, err
			}
			return Transition{
				Callsign: f.Callsign, LogonTime: f.LogonTime,
				FromStatus: f.Status, ToStatus: model.StatusStale,
			}, nil
		}
		return Transition{}, nil

	case model.StatusStale:
		if absence > m.tComplete {
			completedAt := now
			conf := timeoutConfidence(absence, m.tComplete)
			if err := m.flights.UpdateStatus(ctx, nil, f.Callsign, f.LogonTime, model.StatusCompleted, &completedAt, model.MethodTimeout, conf); err != nil {
				return Transition{}, err
			}
			return Transition{
				Callsign: f.Callsign, LogonTime: f.LogonTime,
				FromStatus: f.Status, ToStatus: model.StatusCompleted,
				Method: model.MethodTimeout, Confidence: conf, Terminal: true,
			}, nil
		}
		return Transition{}, nil
	}

	return Transition{}, nil
}

// ManualOverride implements the administrative-interface transition
// (§4.8): force a flight straight to completed with method "manual",
// regardless of its current non-terminal state.
func (m *Machine) ManualOverride(ctx context.Context, callsign string, logonTime time.Time) (Transition, error) {
	completedAt := time.Now().UTC()
	if err := m.flights.UpdateStatus(ctx, nil, callsign, logonTime, model.StatusCompleted, &completedAt, model.MethodManual, 1.0); err != nil {
		return Transition{}, err
	}
	return Transition{
		Callsign: callsign, LogonTime: logonTime,
		ToStatus: model.StatusCompleted, Method: model.MethodManual,
		Confidence: 1.0, Terminal: true,
	}, nil
}

// timeoutConfidence is always 0: unlike a landing, a timeout completion
// is inferred purely from absence and carries no positive evidence the
// flight actually ended at that moment.
func timeoutConfidence(absence, tComplete time.Duration) float64 {
	return 0.0
}
