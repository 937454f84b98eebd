package feedclient

import (
	"strconv"
	"time"

	"github.com/vatpac/stats-ingestor/internal/model"
)

// rawSnapshot mirrors the upstream network-data envelope: a general block
// carrying the feed's generation timestamp, plus flat pilot/controller
// arrays. Numeric fields are decoded into interface{} (a float64 for a
// JSON number, a string for a quoted one) rather than float64 because
// upstream feeds have been observed to emit some of them as quoted
// strings; coerce* below normalizes either form.
type rawSnapshot struct {
	General struct {
		UpdateTimestamp string `json:"update_timestamp"`
	} `json:"general"`
	Pilots      []rawPilot      `json:"pilots"`
	Controllers []rawController `json:"controllers"`
}

type rawFlightPlan struct {
	FlightRules  string `json:"flight_rules"`
	AircraftShort string `json:"aircraft_short"`
	Departure    string `json:"departure"`
	Arrival      string `json:"arrival"`
	Route        string `json:"route"`
	CruiseTAS    any    `json:"cruise_tas"`
	Altitude     string `json:"altitude"`
	DepTime      string `json:"deptime"`
	Remarks      string `json:"remarks"`
}

type rawPilot struct {
	Callsign     string        `json:"callsign"`
	CID          any           `json:"cid"`
	LogonTime    string        `json:"logon_time"`
	LastUpdated  string        `json:"last_updated"`
	Latitude     any           `json:"latitude"`
	Longitude    any           `json:"longitude"`
	Altitude     any           `json:"altitude"`
	Groundspeed  any           `json:"groundspeed"`
	Heading      any           `json:"heading"`
	Transponder  string        `json:"transponder"`
	FlightPlan   rawFlightPlan `json:"flight_plan"`
}

type rawController struct {
	Callsign      string `json:"callsign"`
	CID           any    `json:"cid"`
	Name          string `json:"name"`
	Facility      any    `json:"facility"`
	Rating        any    `json:"rating"`
	Frequency     any    `json:"frequency"`
	VisualRange   any    `json:"visual_range"`
	TextATIS      any    `json:"text_atis"`
	LastUpdated   string `json:"last_updated"`
	LogonTime     string `json:"logon_time"`
}

type rawTransceiverGroup struct {
	Callsign     string              `json:"callsign"`
	Transceivers []rawTransceiverObs `json:"transceivers"`
}

type rawTransceiverObs struct {
	ID              int     `json:"id"`
	Frequency       any     `json:"frequency"`
	LatDeg          float64 `json:"latDeg"`
	LonDeg          float64 `json:"lonDeg"`
	HeightMSLMeters float64 `json:"heightMslM"`
	HeightAGLMeters float64 `json:"heightAglM"`
}

// toModel converts a raw pilot record to the domain type, dropping the
// record (ok=false) if any field this service relies on fails to coerce
// — callsign, logon time, and position are never left zero-valued, per
// §4.1's "coercion failure drops that record, never the batch". Other
// numeric fields (cid included) that fail to coerce are left at zero and
// the record is kept.
func (p rawPilot) toModel(observedAt time.Time) (model.PilotObs, bool) {
	if p.Callsign == "" {
		return model.PilotObs{}, false
	}
	logonTime, err := parseTimestamp(p.LogonTime)
	if err != nil {
		return model.PilotObs{}, false
	}
	lastSeen, err := parseTimestamp(p.LastUpdated)
	if err != nil {
		lastSeen = observedAt
	}
	lat, ok := coerceFloat(p.Latitude)
	if !ok {
		return model.PilotObs{}, false
	}
	lon, ok := coerceFloat(p.Longitude)
	if !ok {
		return model.PilotObs{}, false
	}
	alt, _ := coerceFloat(p.Altitude)
	gs, _ := coerceFloat(p.Groundspeed)
	hdg, _ := coerceFloat(p.Heading)
	cid, _ := coerceInt(p.CID)
	cruiseTAS, _ := coerceInt(p.FlightPlan.CruiseTAS)

	return model.PilotObs{
		Callsign:      p.Callsign,
		CID:           cid,
		LogonTime:     logonTime,
		AircraftType:  p.FlightPlan.AircraftShort,
		Latitude:      lat,
		Longitude:     lon,
		AltitudeFt:    alt,
		GroundspeedKt: gs,
		HeadingDeg:    hdg,
		Transponder:   p.Transponder,
		Departure:     p.FlightPlan.Departure,
		Arrival:       p.FlightPlan.Arrival,
		Route:         p.FlightPlan.Route,
		CruiseTAS:     cruiseTAS,
		PlannedAlt:    p.FlightPlan.Altitude,
		DepTime:       p.FlightPlan.DepTime,
		Remarks:       p.FlightPlan.Remarks,
		FlightRules:   p.FlightPlan.FlightRules,
		ObservedAt:    observedAt,
		LastSeen:      lastSeen,
	}, true
}

func (c rawController) toModel(observedAt time.Time) (model.ControllerObs, bool) {
	if c.Callsign == "" {
		return model.ControllerObs{}, false
	}
	freq, ok := coerceFrequencyHz(c.Frequency)
	if !ok {
		return model.ControllerObs{}, false
	}
	lastSeen, err := parseTimestamp(c.LastUpdated)
	if err != nil {
		lastSeen = observedAt
	}
	onlineAt, err := parseTimestamp(c.LogonTime)
	if err != nil {
		onlineAt = observedAt
	}
	cid, _ := coerceInt(c.CID)
	facility, _ := coerceInt(c.Facility)
	rating, _ := coerceInt(c.Rating)
	visualRange, _ := coerceFloat(c.VisualRange)

	return model.ControllerObs{
		Callsign:      c.Callsign,
		CID:           cid,
		Name:          c.Name,
		Facility:      facility,
		Rating:        rating,
		FrequencyHz:   freq,
		VisualRangeNM: visualRange,
		ATIS:          joinATIS(c.TextATIS),
		ObservedAt:    observedAt,
		LastSeen:      lastSeen,
		OnlineAt:      onlineAt,
	}, true
}

// coerceFloat normalizes a numeric field that may arrive as float64 or a
// quoted string, mirroring the teacher's parseAltitude
// tolerant-coercion pattern for airplanes.live's altitude field.
func coerceFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func coerceInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func coerceInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// coerceFrequencyHz normalizes a controller frequency, which arrives as a
// MHz string like "128.150", into integer Hz.
func coerceFrequencyHz(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t * 1_000_000), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return int64(f * 1_000_000), true
	default:
		return 0, false
	}
}

func joinATIS(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		var out string
		for i, line := range t {
			s, ok := line.(string)
			if !ok {
				continue
			}
			if i > 0 {
				out += "\n"
			}
			out += s
		}
		return out
	default:
		return ""
	}
}
