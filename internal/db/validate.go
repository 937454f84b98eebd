package db

import "github.com/vatpac/stats-ingestor/internal/model"

// Per-record range validation, applied to every batch before it reaches
// a transaction, per §4.5's "constraint violations ... are logged and
// the offending record is skipped via a per-record validator applied
// before batch submission" and §8's coordinate-coercion invariant:
// out-of-range values are rejected outright, never clamped into range.

const (
	minLatitude  = -90.0
	maxLatitude  = 90.0
	minLongitude = -180.0
	maxLongitude = 180.0
	minAltitude  = -1000.0
	maxAltitude  = 60000.0
)

func validLatLon(lat, lon float64) bool {
	return lat >= minLatitude && lat <= maxLatitude && lon >= minLongitude && lon <= maxLongitude
}

func validAltitude(altFt float64) bool {
	return altFt >= minAltitude && altFt <= maxAltitude
}

// ValidPilot reports whether p's coordinates are within range for
// persistence.
func ValidPilot(p model.PilotObs) bool {
	return validLatLon(p.Latitude, p.Longitude) && validAltitude(p.AltitudeFt)
}

// ValidTransceiver reports whether t's coordinates are within range for
// persistence.
func ValidTransceiver(t model.TransceiverObs) bool {
	return validLatLon(t.Latitude, t.Longitude)
}

// FilterValidPilots returns the subset of batch that passes ValidPilot,
// along with the count of records dropped.
func FilterValidPilots(batch []model.PilotObs) (valid []model.PilotObs, dropped int) {
	valid = batch[:0:0]
	for _, p := range batch {
		if ValidPilot(p) {
			valid = append(valid, p)
			continue
		}
		dropped++
	}
	return valid, dropped
}

// FilterValidTransceivers returns the subset of batch that passes
// ValidTransceiver, along with the count of records dropped.
func FilterValidTransceivers(batch []model.TransceiverObs) (valid []model.TransceiverObs, dropped int) {
	valid = batch[:0:0]
	for _, t := range batch {
		if ValidTransceiver(t) {
			valid = append(valid, t)
			continue
		}
		dropped++
	}
	return valid, dropped
}
