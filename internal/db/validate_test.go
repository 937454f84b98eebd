package db

import (
	"testing"

	"github.com/vatpac/stats-ingestor/internal/model"
)

func TestValidPilot(t *testing.T) {
	cases := []struct {
		name string
		p    model.PilotObs
		want bool
	}{
		{"in range", model.PilotObs{Latitude: -33.9, Longitude: 151.1, AltitudeFt: 5000}, true},
		{"latitude too high", model.PilotObs{Latitude: 91, Longitude: 0, AltitudeFt: 0}, false},
		{"latitude too low", model.PilotObs{Latitude: -91, Longitude: 0, AltitudeFt: 0}, false},
		{"longitude too high", model.PilotObs{Latitude: 0, Longitude: 181, AltitudeFt: 0}, false},
		{"longitude too low", model.PilotObs{Latitude: 0, Longitude: -181, AltitudeFt: 0}, false},
		{"altitude too high", model.PilotObs{Latitude: 0, Longitude: 0, AltitudeFt: 70000}, false},
		{"altitude too low", model.PilotObs{Latitude: 0, Longitude: 0, AltitudeFt: -2000}, false},
		{"boundary values accepted", model.PilotObs{Latitude: 90, Longitude: 180, AltitudeFt: 60000}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ValidPilot(c.p); got != c.want {
				t.Errorf("ValidPilot(%+v) = %v, want %v", c.p, got, c.want)
			}
		})
	}
}

func TestValidTransceiver(t *testing.T) {
	t.Run("in range", func(t *testing.T) {
		if !ValidTransceiver(model.TransceiverObs{Latitude: 10, Longitude: 10}) {
			t.Fatal("expected in-range coordinates to be valid")
		}
	})
	t.Run("out of range", func(t *testing.T) {
		if ValidTransceiver(model.TransceiverObs{Latitude: 200, Longitude: 10}) {
			t.Fatal("expected out-of-range latitude to be invalid")
		}
	})
}

func TestFilterValidPilotsDropsOnlyInvalid(t *testing.T) {
	batch := []model.PilotObs{
		{Callsign: "A", Latitude: 10, Longitude: 10, AltitudeFt: 1000},
		{Callsign: "B", Latitude: 500, Longitude: 10, AltitudeFt: 1000},
		{Callsign: "C", Latitude: 10, Longitude: 10, AltitudeFt: 1000},
	}
	valid, dropped := FilterValidPilots(batch)
	if dropped != 1 {
		t.Fatalf("got %d dropped, want 1", dropped)
	}
	if len(valid) != 2 {
		t.Fatalf("got %d valid, want 2", len(valid))
	}
	for _, p := range valid {
		if p.Callsign == "B" {
			t.Fatal("invalid record B should have been dropped")
		}
	}
}

func TestFilterValidPilotsEmptyBatch(t *testing.T) {
	valid, dropped := FilterValidPilots(nil)
	if dropped != 0 || len(valid) != 0 {
		t.Fatalf("got valid=%v dropped=%d, want empty/0", valid, dropped)
	}
}

func TestFilterValidTransceiversDropsOnlyInvalid(t *testing.T) {
	batch := []model.TransceiverObs{
		{Callsign: "A", Latitude: 10, Longitude: 10},
		{Callsign: "B", Latitude: 10, Longitude: -400},
	}
	valid, dropped := FilterValidTransceivers(batch)
	if dropped != 1 || len(valid) != 1 {
		t.Fatalf("got valid=%d dropped=%d, want 1/1", len(valid), dropped)
	}
}
