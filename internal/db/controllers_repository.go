package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vatpac/stats-ingestor/internal/errs"
	"github.com/vatpac/stats-ingestor/internal/model"
)

// ControllerRepository implements the controller-facing operations of
// C5: bulk upsert, offline transition, and the facility map C9 needs.
type ControllerRepository struct {
	db *DB
}

func NewControllerRepository(db *DB) *ControllerRepository {
	return &ControllerRepository{db: db}
}

// UpsertBatch writes controllers with conflict target callsign,
// updating the non-key columns atomically, per §4.5.
func (r *ControllerRepository) UpsertBatch(ctx context.Context, tx *sql.Tx, batch []model.ControllerObs) error {
	if len(batch) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO controllers (callsign, cid, name, facility, rating, frequency_hz, visual_range_nm, atis, status, online_at, last_seen, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'online', $9, $9, now())
		ON CONFLICT (callsign) DO UPDATE SET
			cid = EXCLUDED.cid,
			name = EXCLUDED.name,
			facility = EXCLUDED.facility,
			rating = EXCLUDED.rating,
			frequency_hz = EXCLUDED.frequency_hz,
			visual_range_nm = EXCLUDED.visual_range_nm,
			atis = EXCLUDED.atis,
			status = 'online',
			offline_at = NULL,
			last_seen = EXCLUDED.last_seen,
			updated_at = now()
	`)
	if err != nil {
		return errs.PersistenceTransient("ControllerRepository.UpsertBatch", err)
	}
	defer stmt.Close()

	for _, c := range batch {
		if _, err := stmt.ExecContext(ctx, c.Callsign, c.CID, c.Name, c.Facility, c.Rating, c.FrequencyHz, c.VisualRangeNM, c.ATIS, c.ObservedAt); err != nil {
			return errs.PersistenceTransient("ControllerRepository.UpsertBatch", fmt.Errorf("callsign=%s: %w", c.Callsign, err))
		}
	}
	return nil
}

// MarkOffline transitions the given callsigns to offline and returns the
// subset that actually changed state (newly offline), per §4.5's
// mark_controllers_offline.
func (r *ControllerRepository) MarkOffline(ctx context.Context, tx *sql.Tx, callsigns []string) ([]string, error) {
	if len(callsigns) == 0 {
		return nil, nil
	}
	rows, err := tx.QueryContext(ctx, `
		UPDATE controllers
		SET status = 'offline', offline_at = now()
		WHERE callsign = ANY($1) AND status = 'online'
		RETURNING callsign
	`, pq.Array(callsigns))
	if err != nil {
		return nil, errs.PersistenceTransient("ControllerRepository.MarkOffline", err)
	}
	defer rows.Close()

	var newlyOffline []string
	for rows.Next() {
		var cs string
		if err := rows.Scan(&cs); err != nil {
			return nil, errs.PersistenceTransient("ControllerRepository.MarkOffline", err)
		}
		newlyOffline = append(newlyOffline, cs)
	}
	return newlyOffline, rows.Err()
}

// FacilityMap returns callsign -> facility for every controller, the
// pre-loaded map that C9 step 1 requires instead of a join-time filter.
func (r *ControllerRepository) FacilityMap(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT callsign, facility FROM controllers`)
	if err != nil {
		return nil, errs.PersistenceTransient("ControllerRepository.FacilityMap", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var cs string
		var facility int
		if err := rows.Scan(&cs, &facility); err != nil {
			return nil, errs.PersistenceTransient("ControllerRepository.FacilityMap", err)
		}
		out[cs] = facility
	}
	return out, rows.Err()
}

// Session returns the identifying fields needed to build a
// ControllerSummary for a just-offlined callsign.
type ControllerSession struct {
	Callsign string
	CID      int
	Facility int
	Rating   int
	OnlineAt time.Time
	OfflineAt time.Time
}

func (r *ControllerRepository) Session(ctx context.Context, callsign string) (ControllerSession, error) {
	var s ControllerSession
	var offlineAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT callsign, cid, facility, rating, online_at, offline_at
		FROM controllers WHERE callsign = $1
	`, callsign).Scan(&s.Callsign, &s.CID, &s.Facility, &s.Rating, &s.OnlineAt, &offlineAt)
	if err == sql.ErrNoRows {
		return ControllerSession{}, errs.PersistenceTransient("ControllerRepository.Session", fmt.Errorf("controller %s not found", callsign))
	}
	if err != nil {
		return ControllerSession{}, errs.PersistenceTransient("ControllerRepository.Session", err)
	}
	if offlineAt.Valid {
		s.OfflineAt = offlineAt.Time
	}
	return s, nil
}
