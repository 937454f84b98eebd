package db

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/vatpac/stats-ingestor/internal/model"
)

func TestMarshalControllerInteractionsRoundTrips(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	in := []model.ControllerInteraction{
		{ControllerCallsign: "SY_TWR", FrequencyHz: 120_500_000, FirstSeen: now, LastSeen: now.Add(time.Minute), DurationS: 60, CommunicationType: model.CommTower},
	}
	data, err := marshalControllerInteractions(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out []controllerInteractionJSON
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unexpected error unmarshaling: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d entries, want 1", len(out))
	}
	if out[0].ControllerCallsign != "SY_TWR" || out[0].CommunicationType != "tower" {
		t.Fatalf("unexpected entry: %+v", out[0])
	}
}

func TestMarshalControllerInteractionsEmpty(t *testing.T) {
	data, err := marshalControllerInteractions(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("got %s, want []", data)
	}
}

func TestMarshalAircraftInteractionsRoundTrips(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	in := []model.AircraftInteraction{
		{PilotCallsign: "QFA1", FrequencyHz: 120_500_000, FirstSeen: now, LastSeen: now.Add(2 * time.Minute), DurationS: 120},
	}
	data, err := marshalAircraftInteractions(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out []aircraftInteractionJSON
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unexpected error unmarshaling: %v", err)
	}
	if len(out) != 1 || out[0].PilotCallsign != "QFA1" {
		t.Fatalf("unexpected entries: %+v", out)
	}
}

func TestFrequenciesArray(t *testing.T) {
	arr := frequenciesArray([]int64{120_500_000, 121_900_000})
	if len(arr) != 2 {
		t.Fatalf("got %d, want 2", len(arr))
	}
}
