package db

import (
	"context"

	"github.com/vatpac/stats-ingestor/internal/errs"
	"github.com/vatpac/stats-ingestor/internal/model"
)

// SummaryRepository implements insert_controller_summary and the
// flight-summary half lives on FlightRepository (InsertSummary) since it
// shares the flights table's natural key space.
type SummaryRepository struct {
	db *DB
}

func NewSummaryRepository(db *DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

func (r *SummaryRepository) InsertControllerSummary(ctx context.Context, s model.ControllerSummary) error {
	interactions, err := marshalAircraftInteractions(s.AircraftInteractions)
	if err != nil {
		return errs.PersistenceTransient("SummaryRepository.InsertControllerSummary", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO controller_summaries (callsign, online_at, offline_at, facility, rating, frequencies, aircraft_interactions)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (callsign, online_at) DO UPDATE SET
			offline_at = EXCLUDED.offline_at,
			frequencies = EXCLUDED.frequencies,
			aircraft_interactions = EXCLUDED.aircraft_interactions
	`, s.Callsign, s.OnlineAt, s.OfflineAt, s.Facility, s.Rating, frequenciesArray(s.Frequencies), interactions)
	if err != nil {
		return errs.PersistenceTransient("SummaryRepository.InsertControllerSummary", err)
	}
	return nil
}
