package landing

import (
	"testing"
	"time"

	"github.com/vatpac/stats-ingestor/internal/airports"
	"github.com/vatpac/stats-ingestor/internal/model"
)

func newStore(t *testing.T) *airports.Store {
	t.Helper()
	s, err := airports.Load("")
	if err != nil {
		t.Fatalf("airports.Load: %v", err)
	}
	return s
}

func TestEvaluateDetectsLanding(t *testing.T) {
	store := newStore(t)
	d := New(store, 15, 1000, 20)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	// YSSY: -33.9461, 151.1772, elevation 21 ft, per the literal scenario.
	p := model.PilotObs{
		Callsign: "QFA1", LogonTime: now,
		Latitude: -33.9461, Longitude: 151.1772,
		AltitudeFt: 50, GroundspeedKt: 5,
		ObservedAt: now,
	}

	ev, ok := d.Evaluate(p)
	if !ok {
		t.Fatal("expected a landing event")
	}
	if ev.AirportICAO != "YSSY" {
		t.Fatalf("got airport %s, want YSSY", ev.AirportICAO)
	}
	if ev.Confidence != 1.0 {
		t.Fatalf("got confidence %f, want 1.0", ev.Confidence)
	}
}

func TestEvaluateRejectsHighAltitude(t *testing.T) {
	store := newStore(t)
	d := New(store, 15, 1000, 20)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := model.PilotObs{
		Callsign: "QFA1", LogonTime: now,
		Latitude: -33.9461, Longitude: 151.1772,
		AltitudeFt: 35000, GroundspeedKt: 450,
		ObservedAt: now,
	}

	if _, ok := d.Evaluate(p); ok {
		t.Fatal("expected no landing event for a cruising aircraft")
	}
}

func TestEvaluateRejectsFarFromAirport(t *testing.T) {
	store := newStore(t)
	d := New(store, 15, 1000, 20)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := model.PilotObs{
		Callsign: "QFA1", LogonTime: now,
		Latitude: 0, Longitude: 0,
		AltitudeFt: 50, GroundspeedKt: 5,
		ObservedAt: now,
	}

	if _, ok := d.Evaluate(p); ok {
		t.Fatal("expected no landing event far from any known airport")
	}
}

func TestEvaluateDedupsWithinWindow(t *testing.T) {
	store := newStore(t)
	d := New(store, 15, 1000, 20)

	logon := time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)
	first := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := model.PilotObs{
		Callsign: "QFA1", LogonTime: logon,
		Latitude: -33.9461, Longitude: 151.1772,
		AltitudeFt: 50, GroundspeedKt: 5,
		ObservedAt: first,
	}
	if _, ok := d.Evaluate(p); !ok {
		t.Fatal("expected the first observation to register as a landing")
	}

	p.ObservedAt = first.Add(1 * time.Minute)
	if _, ok := d.Evaluate(p); ok {
		t.Fatal("expected the second observation within the dedup window to be suppressed")
	}

	p.ObservedAt = first.Add(6 * time.Minute)
	if _, ok := d.Evaluate(p); !ok {
		t.Fatal("expected an observation past the dedup window to register again")
	}
}

func TestForgetClearsCooldown(t *testing.T) {
	store := newStore(t)
	d := New(store, 15, 1000, 20)

	logon := time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)
	first := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := model.PilotObs{
		Callsign: "QFA1", LogonTime: logon,
		Latitude: -33.9461, Longitude: 151.1772,
		AltitudeFt: 50, GroundspeedKt: 5,
		ObservedAt: first,
	}
	if _, ok := d.Evaluate(p); !ok {
		t.Fatal("expected the first observation to register as a landing")
	}

	d.Forget("QFA1", logon)

	p.ObservedAt = first.Add(1 * time.Minute)
	if _, ok := d.Evaluate(p); !ok {
		t.Fatal("expected Forget to clear the cooldown, allowing immediate re-detection")
	}
}
