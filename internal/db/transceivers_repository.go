package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/vatpac/stats-ingestor/internal/errs"
	"github.com/vatpac/stats-ingestor/internal/model"
)

// TransceiverRepository implements the append-only transceiver history
// operations of C5, and the windowed reads C9 needs.
type TransceiverRepository struct {
	db *DB
}

func NewTransceiverRepository(db *DB) *TransceiverRepository {
	return &TransceiverRepository{db: db}
}

// InsertBatch appends transceiver observations. Pure appends per §4.5;
// natural-key conflicts (a replayed snapshot) are no-ops, satisfying the
// idempotence property in §8.
func (r *TransceiverRepository) InsertBatch(ctx context.Context, tx *sql.Tx, batch []model.TransceiverObs) error {
	if len(batch) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transceivers (entity_type, callsign, transceiver_idx, frequency_hz, latitude, longitude, height_msl_m, height_agl_m, observation_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (entity_type, callsign, transceiver_idx, observation_time) DO NOTHING
	`)
	if err != nil {
		return errs.PersistenceTransient("TransceiverRepository.InsertBatch", err)
	}
	defer stmt.Close()

	for _, t := range batch {
		if _, err := stmt.ExecContext(ctx, string(t.EntityType), t.Callsign, t.TransceiverIdx, t.FrequencyHz, t.Latitude, t.Longitude, t.HeightMSLMeters, t.HeightAGLMeters, t.ObservationTime); err != nil {
			return errs.PersistenceTransient("TransceiverRepository.InsertBatch", err)
		}
	}
	return nil
}

// WindowByType returns every observation of the given entity type within
// [since, now], ordered by observation_time — the enumeration step of
// §4.9 steps 1-2.
func (r *TransceiverRepository) WindowByType(ctx context.Context, entityType model.EntityType, since time.Time) ([]model.TransceiverObs, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT entity_type, callsign, transceiver_idx, frequency_hz, latitude, longitude, height_msl_m, height_agl_m, observation_time
		FROM transceivers
		WHERE entity_type = $1 AND observation_time >= $2
		ORDER BY observation_time ASC
	`, string(entityType), since)
	if err != nil {
		return nil, errs.PersistenceTransient("TransceiverRepository.WindowByType", err)
	}
	defer rows.Close()

	var out []model.TransceiverObs
	for rows.Next() {
		var t model.TransceiverObs
		var et string
		if err := rows.Scan(&et, &t.Callsign, &t.TransceiverIdx, &t.FrequencyHz, &t.Latitude, &t.Longitude, &t.HeightMSLMeters, &t.HeightAGLMeters, &t.ObservationTime); err != nil {
			return nil, errs.PersistenceTransient("TransceiverRepository.WindowByType", err)
		}
		t.EntityType = model.EntityType(et)
		out = append(out, t)
	}
	return out, rows.Err()
}
