package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vatpac/stats-ingestor/internal/errs"
	"github.com/vatpac/stats-ingestor/internal/model"
)

// FlightRepository implements the pilot-facing operations of C5: bulk
// upsert of the current flight row, append-only position history, and
// the status transitions driven by C7/C8.
type FlightRepository struct {
	db *DB
}

func NewFlightRepository(db *DB) *FlightRepository {
	return &FlightRepository{db: db}
}

// UpsertBatch writes the latest-known row per (callsign, logon_time) and
// appends a position-history record for every observation, matching
// §4.5's upsert_pilots + insert_positions running in the same
// transaction.
func (r *FlightRepository) UpsertBatch(ctx context.Context, tx *sql.Tx, batch []model.PilotObs) error {
	if len(batch) == 0 {
		return nil
	}

	upsertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO flights (
			callsign, logon_time, cid, aircraft_type, latitude, longitude, altitude_ft,
			groundspeed_kt, heading_deg, transponder, departure, arrival, route, cruise_tas,
			planned_altitude, dep_time, remarks, flight_rules, status, observation_time
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,'active',$19)
		ON CONFLICT (callsign, logon_time) WHERE status != 'position_history' DO UPDATE SET
			aircraft_type = EXCLUDED.aircraft_type,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			altitude_ft = EXCLUDED.altitude_ft,
			groundspeed_kt = EXCLUDED.groundspeed_kt,
			heading_deg = EXCLUDED.heading_deg,
			transponder = EXCLUDED.transponder,
			route = EXCLUDED.route,
			observation_time = EXCLUDED.observation_time
		WHERE flights.status NOT IN ('completed')
	`)
	if err != nil {
		return errs.PersistenceTransient("FlightRepository.UpsertBatch", err)
	}
	defer upsertStmt.Close()

	posStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO flight_positions (callsign, logon_time, latitude, longitude, altitude_ft, groundspeed_kt, heading_deg, observation_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (callsign, observation_time) DO NOTHING
	`)
	if err != nil {
		return errs.PersistenceTransient("FlightRepository.UpsertBatch", err)
	}
	defer posStmt.Close()

	for _, p := range batch {
		if _, err := upsertStmt.ExecContext(ctx,
			p.Callsign, p.LogonTime, p.CID, p.AircraftType, p.Latitude, p.Longitude, p.AltitudeFt,
			p.GroundspeedKt, p.HeadingDeg, p.Transponder, p.Departure, p.Arrival, p.Route, p.CruiseTAS,
			p.PlannedAlt, p.DepTime, p.Remarks, p.FlightRules, p.ObservedAt,
		); err != nil {
			return errs.PersistenceTransient("FlightRepository.UpsertBatch", fmt.Errorf("callsign=%s: %w", p.Callsign, err))
		}
		if _, err := posStmt.ExecContext(ctx, p.Callsign, p.LogonTime, p.Latitude, p.Longitude, p.AltitudeFt, p.GroundspeedKt, p.HeadingDeg, p.ObservedAt); err != nil {
			return errs.PersistenceTransient("FlightRepository.UpsertBatch", fmt.Errorf("position callsign=%s: %w", p.Callsign, err))
		}
	}
	return nil
}

// ActiveFlight is the minimal projection the detectors need per cycle.
type ActiveFlight struct {
	Callsign      string
	LogonTime     time.Time
	Latitude      float64
	Longitude     float64
	AltitudeFt    float64
	GroundspeedKt float64
	Status        model.FlightStatus
	LastObserved  time.Time
}

// ActiveFlights returns every flight not yet in a terminal state, used by
// C7/C8 each cycle.
func (r *FlightRepository) ActiveFlights(ctx context.Context) ([]ActiveFlight, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT callsign, logon_time, latitude, longitude, altitude_ft, groundspeed_kt, status, observation_time
		FROM flights WHERE status IN ('active','landed','stale')
	`)
	if err != nil {
		return nil, errs.PersistenceTransient("FlightRepository.ActiveFlights", err)
	}
	defer rows.Close()

	var out []ActiveFlight
	for rows.Next() {
		var f ActiveFlight
		var status string
		if err := rows.Scan(&f.Callsign, &f.LogonTime, &f.Latitude, &f.Longitude, &f.AltitudeFt, &f.GroundspeedKt, &status, &f.LastObserved); err != nil {
			return nil, errs.PersistenceTransient("FlightRepository.ActiveFlights", err)
		}
		f.Status = model.FlightStatus(status)
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpdateStatus implements update_flight_status: a non-terminal->terminal
// or non-terminal->non-terminal transition. Terminal monotonicity
// (completed never transitions again) is enforced by the WHERE clause,
// not by caller discipline.
func (r *FlightRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, callsign string, logonTime time.Time, status model.FlightStatus, completedAt *time.Time, method model.CompletionMethod, confidence float64) error {
	exec := func(q string, args ...any) error {
		var err error
		if tx != nil {
			_, err = tx.ExecContext(ctx, q, args...)
		} else {
			_, err = r.db.ExecContext(ctx, q, args...)
		}
		return err
	}

	var methodArg any
	if method != "" {
		methodArg = string(method)
	}
	var confArg any
	if method != "" {
		confArg = confidence
	}

	err := exec(`
		UPDATE flights SET status = $3, completed_at = $4, completion_method = $5, completion_confidence = $6
		WHERE callsign = $1 AND logon_time = $2 AND status != 'completed'
	`, callsign, logonTime, string(status), completedAt, methodArg, confArg)
	if err != nil {
		return errs.PersistenceTransient("FlightRepository.UpdateStatus", fmt.Errorf("callsign=%s: %w", callsign, err))
	}
	return nil
}

// PositionHistory returns the ordered position samples for a flight, used
// by the Summarizer.
type PositionSample struct {
	Latitude, Longitude, AltitudeFt, GroundspeedKt float64
	ObservedAt                                     time.Time
}

func (r *FlightRepository) PositionHistory(ctx context.Context, callsign string, logonTime time.Time) ([]PositionSample, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT latitude, longitude, altitude_ft, groundspeed_kt, observation_time
		FROM flight_positions WHERE callsign = $1 AND logon_time = $2
		ORDER BY observation_time ASC
	`, callsign, logonTime)
	if err != nil {
		return nil, errs.PersistenceTransient("FlightRepository.PositionHistory", err)
	}
	defer rows.Close()

	var out []PositionSample
	for rows.Next() {
		var p PositionSample
		if err := rows.Scan(&p.Latitude, &p.Longitude, &p.AltitudeFt, &p.GroundspeedKt, &p.ObservedAt); err != nil {
			return nil, errs.PersistenceTransient("FlightRepository.PositionHistory", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FlightIdentity projects the identifying/flight-plan fields a summary
// needs.
type FlightIdentity struct {
	Callsign     string
	LogonTime    time.Time
	CID          int
	AircraftType string
	Departure    string
	Arrival      string
	Route        string
	CruiseTAS    int
}

func (r *FlightRepository) Identity(ctx context.Context, callsign string, logonTime time.Time) (FlightIdentity, error) {
	var f FlightIdentity
	err := r.db.QueryRowContext(ctx, `
		SELECT callsign, logon_time, cid, aircraft_type, departure, arrival, route, cruise_tas
		FROM flights WHERE callsign = $1 AND logon_time = $2
	`, callsign, logonTime).Scan(&f.Callsign, &f.LogonTime, &f.CID, &f.AircraftType, &f.Departure, &f.Arrival, &f.Route, &f.CruiseTAS)
	if err != nil {
		return FlightIdentity{}, errs.PersistenceTransient("FlightRepository.Identity", err)
	}
	return f, nil
}

// InsertSummary persists a completed flight summary, replacing any
// existing record for the same natural key (summaries are immutable once
// written, but reprocessing replaces whole records, per §3).
func (r *FlightRepository) InsertSummary(ctx context.Context, s model.FlightSummary) error {
	interactions, err := marshalControllerInteractions(s.ControllerInteractions)
	if err != nil {
		return errs.PersistenceTransient("FlightRepository.InsertSummary", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO flight_summaries (
			callsign, logon_time, cid, aircraft_type, departure, arrival, route,
			first_lat, first_lon, last_lat, last_lon, max_altitude_ft, cruise_tas,
			first_seen_at, last_seen_at, completed_at, completion_method, completion_confidence,
			controller_interactions
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (callsign, logon_time) DO UPDATE SET
			cid = EXCLUDED.cid, aircraft_type = EXCLUDED.aircraft_type,
			departure = EXCLUDED.departure, arrival = EXCLUDED.arrival, route = EXCLUDED.route,
			first_lat = EXCLUDED.first_lat, first_lon = EXCLUDED.first_lon,
			last_lat = EXCLUDED.last_lat, last_lon = EXCLUDED.last_lon,
			max_altitude_ft = EXCLUDED.max_altitude_ft, cruise_tas = EXCLUDED.cruise_tas,
			first_seen_at = EXCLUDED.first_seen_at, last_seen_at = EXCLUDED.last_seen_at,
			completed_at = EXCLUDED.completed_at, completion_method = EXCLUDED.completion_method,
			completion_confidence = EXCLUDED.completion_confidence,
			controller_interactions = EXCLUDED.controller_interactions
	`, s.Callsign, s.LogonTime, s.CID, s.AircraftType, s.Departure, s.Arrival, s.Route,
		s.FirstLat, s.FirstLon, s.LastLat, s.LastLon, s.MaxAltitudeFt, s.CruiseTAS,
		s.FirstSeenAt, s.LastSeenAt, s.CompletedAt, string(s.CompletionMethod), s.CompletionConfidence,
		interactions,
	)
	if err != nil {
		return errs.PersistenceTransient("FlightRepository.InsertSummary", err)
	}
	return nil
}

// DeletePositionsOlderThan implements the Summarizer's "delete the raw
// position rows older than retention" step for one flight.
func (r *FlightRepository) DeletePositionsOlderThan(ctx context.Context, callsign string, logonTime time.Time, retentionHours int) error {
	cutoff := time.Now().UTC().Add(-time.Duration(retentionHours) * time.Hour)
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM flight_positions WHERE callsign = $1 AND logon_time = $2 AND observation_time < $3
	`, callsign, logonTime, cutoff)
	if err != nil {
		return errs.PersistenceTransient("FlightRepository.DeletePositionsOlderThan", err)
	}
	return nil
}
