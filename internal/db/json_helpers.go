package db

import (
	"encoding/json"

	"github.com/lib/pq"

	"github.com/vatpac/stats-ingestor/internal/model"
)

// Both interaction arrays use a uniform object shape (§4.10), stored as
// JSONB so the summary row stays a single atomic write.

type controllerInteractionJSON struct {
	ControllerCallsign string  `json:"controller_callsign"`
	FrequencyHz        int64   `json:"frequency_hz"`
	FirstSeen          string  `json:"first_seen"`
	LastSeen           string  `json:"last_seen"`
	DurationS          float64 `json:"duration_s"`
	CommunicationType  string  `json:"communication_type"`
}

func marshalControllerInteractions(in []model.ControllerInteraction) ([]byte, error) {
	out := make([]controllerInteractionJSON, 0, len(in))
	for _, i := range in {
		out = append(out, controllerInteractionJSON{
			ControllerCallsign: i.ControllerCallsign,
			FrequencyHz:        i.FrequencyHz,
			FirstSeen:          i.FirstSeen.UTC().Format(timeLayout),
			LastSeen:           i.LastSeen.UTC().Format(timeLayout),
			DurationS:          i.DurationS,
			CommunicationType:  string(i.CommunicationType),
		})
	}
	return json.Marshal(out)
}

type aircraftInteractionJSON struct {
	PilotCallsign string  `json:"pilot_callsign"`
	FrequencyHz   int64   `json:"frequency_hz"`
	FirstSeen     string  `json:"first_seen"`
	LastSeen      string  `json:"last_seen"`
	DurationS     float64 `json:"duration_s"`
}

func marshalAircraftInteractions(in []model.AircraftInteraction) ([]byte, error) {
	out := make([]aircraftInteractionJSON, 0, len(in))
	for _, i := range in {
		out = append(out, aircraftInteractionJSON{
			PilotCallsign: i.PilotCallsign,
			FrequencyHz:   i.FrequencyHz,
			FirstSeen:     i.FirstSeen.UTC().Format(timeLayout),
			LastSeen:      i.LastSeen.UTC().Format(timeLayout),
			DurationS:     i.DurationS,
		})
	}
	return json.Marshal(out)
}

func frequenciesArray(freqs []int64) pq.Int64Array {
	return pq.Int64Array(freqs)
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"
