package db

import (
	"context"
	"time"

	"github.com/vatpac/stats-ingestor/internal/errs"
	"github.com/vatpac/stats-ingestor/internal/model"
)

// MatchRepository implements C5's FrequencyMatch operations: bulk write
// from the Matcher (C9), and the per-callsign reads the Summarizer (C10)
// needs.
type MatchRepository struct {
	db *DB
}

func NewMatchRepository(db *DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// InsertBatch bulk-writes matches. Conflicts on the natural key are
// updated in place so a re-run of the Matcher over an overlapping window
// is idempotent, matching §8's idempotence property.
func (r *MatchRepository) InsertBatch(ctx context.Context, batch []model.FrequencyMatch) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.PersistenceTransient("MatchRepository.InsertBatch", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO frequency_matches (
			pilot_callsign, controller_callsign, frequency_hz, pilot_lat, pilot_lon,
			controller_lat, controller_lon, distance_nm, first_seen, last_seen,
			duration_s, confidence, communication_type
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (pilot_callsign, controller_callsign, frequency_hz, first_seen) DO UPDATE SET
			last_seen = EXCLUDED.last_seen,
			duration_s = EXCLUDED.duration_s,
			distance_nm = EXCLUDED.distance_nm,
			confidence = EXCLUDED.confidence,
			communication_type = EXCLUDED.communication_type
	`)
	if err != nil {
		return errs.PersistenceTransient("MatchRepository.InsertBatch", err)
	}
	defer stmt.Close()

	for _, m := range batch {
		if _, err := stmt.ExecContext(ctx,
			m.PilotCallsign, m.ControllerCallsign, m.FrequencyHz, m.PilotLat, m.PilotLon,
			m.ControllerLat, m.ControllerLon, m.DistanceNM, m.FirstSeen, m.LastSeen,
			m.DurationS, m.Confidence, string(m.CommunicationType),
		); err != nil {
			return errs.PersistenceTransient("MatchRepository.InsertBatch", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.PersistenceTransient("MatchRepository.InsertBatch", err)
	}
	return nil
}

// ForPilot returns FrequencyMatch rows for callsign whose window overlaps
// [spanStart, spanEnd], for the flight-summary builder.
func (r *MatchRepository) ForPilot(ctx context.Context, callsign string, spanStart, spanEnd time.Time) ([]model.FrequencyMatch, error) {
	return r.query(ctx, `
		SELECT pilot_callsign, controller_callsign, frequency_hz, pilot_lat, pilot_lon,
		       controller_lat, controller_lon, distance_nm, first_seen, last_seen, duration_s,
		       confidence, communication_type
		FROM frequency_matches
		WHERE pilot_callsign = $1 AND first_seen <= $3 AND last_seen >= $2
	`, callsign, spanStart, spanEnd)
}

// ForController returns FrequencyMatch rows for callsign whose window
// overlaps [spanStart, spanEnd], for the controller-summary builder.
func (r *MatchRepository) ForController(ctx context.Context, callsign string, spanStart, spanEnd time.Time) ([]model.FrequencyMatch, error) {
	return r.query(ctx, `
		SELECT pilot_callsign, controller_callsign, frequency_hz, pilot_lat, pilot_lon,
		       controller_lat, controller_lon, distance_nm, first_seen, last_seen, duration_s,
		       confidence, communication_type
		FROM frequency_matches
		WHERE controller_callsign = $1 AND first_seen <= $3 AND last_seen >= $2
	`, callsign, spanStart, spanEnd)
}

func (r *MatchRepository) query(ctx context.Context, q string, args ...any) ([]model.FrequencyMatch, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.PersistenceTransient("MatchRepository.query", err)
	}
	defer rows.Close()

	var out []model.FrequencyMatch
	for rows.Next() {
		var m model.FrequencyMatch
		var commType string
		if err := rows.Scan(&m.PilotCallsign, &m.ControllerCallsign, &m.FrequencyHz, &m.PilotLat, &m.PilotLon,
			&m.ControllerLat, &m.ControllerLon, &m.DistanceNM, &m.FirstSeen, &m.LastSeen, &m.DurationS,
			&m.Confidence, &commType); err != nil {
			return nil, errs.PersistenceTransient("MatchRepository.query", err)
		}
		m.CommunicationType = model.CommunicationType(commType)
		out = append(out, m)
	}
	return out, rows.Err()
}
