// Package db implements the Persistence Layer (C5): connection
// management, schema validation, transactional batch flush, and cleanup.
// Structure follows the teacher's internal/db package (DB wrapper around
// *sql.DB, embedded schema, pool tuning, GetStats/CleanupOldData),
// generalized from a single-telescope schema to the eight tables this
// service owns.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"

	"github.com/vatpac/stats-ingestor/internal/config"
	"github.com/vatpac/stats-ingestor/internal/errs"
)

//go:embed schema.sql
var schemaSQL embed.FS

// DB wraps the connection pool. Connect sizes it from the configured pool
// size and overflow and recycles connections after 300 s; no acquire
// timeout is set on the pool (the 30 s limit in Connect applies only to
// the startup ping).
type DB struct {
	*sql.DB
	log zerolog.Logger
}

// Connect opens the pool and applies §4.5's sizing. DB_POOL_SIZE maps to
// SetMaxIdleConns; DB_POOL_SIZE+DB_MAX_OVERFLOW caps SetMaxOpenConns, the
// same pool_size/max_overflow split the teacher's config table used.
func Connect(ctx context.Context, cfg config.Database, log zerolog.Logger) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)

	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, errs.PersistenceFatal("db.Connect", fmt.Errorf("open: %w", err))
	}

	maxOpen := cfg.PoolSize + cfg.MaxOverflow
	if maxOpen <= 0 {
		maxOpen = 60
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(cfg.PoolSize)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, errs.PersistenceFatal("db.Connect", fmt.Errorf("ping: %w", err))
	}

	return &DB{DB: sqlDB, log: log}, nil
}

// InitSchema runs validate_schema(): idempotent creation of any missing
// tables/indexes defined by the canonical schema.
func (d *DB) InitSchema(ctx context.Context) error {
	schemaBytes, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		return errs.PersistenceFatal("db.InitSchema", fmt.Errorf("read schema: %w", err))
	}
	if _, err := d.ExecContext(ctx, string(schemaBytes)); err != nil {
		return errs.PersistenceFatal("db.InitSchema", fmt.Errorf("apply schema: %w", err))
	}
	return nil
}

// Stats summarizes current table sizes, used for periodic operator
// logging.
type Stats struct {
	OnlineControllers int64
	ActiveFlights     int64
	CompletedFlights  int64
	PositionRows      int64
	TransceiverRows   int64
	FrequencyMatches  int64
}

func (d *DB) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	queries := []struct {
		query string
		dst   *int64
	}{
		{"SELECT count(*) FROM controllers WHERE status = 'online'", &s.OnlineControllers},
		{"SELECT count(*) FROM flights WHERE status IN ('active','landed','stale')", &s.ActiveFlights},
		{"SELECT count(*) FROM flight_summaries", &s.CompletedFlights},
		{"SELECT count(*) FROM flight_positions", &s.PositionRows},
		{"SELECT count(*) FROM transceivers", &s.TransceiverRows},
		{"SELECT count(*) FROM frequency_matches", &s.FrequencyMatches},
	}
	for _, q := range queries {
		if err := d.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return Stats{}, errs.PersistenceTransient("db.GetStats", err)
		}
	}
	return s, nil
}

// CleanupOldData deletes position history and transceiver rows older
// than retentionHours, per §4.5's cleanup_old.
func (d *DB) CleanupOldData(ctx context.Context, retentionHours int) (positionsDeleted, transceiversDeleted int64, err error) {
	cutoff := time.Now().UTC().Add(-time.Duration(retentionHours) * time.Hour)

	res, err := d.ExecContext(ctx, `DELETE FROM flight_positions WHERE observation_time < $1`, cutoff)
	if err != nil {
		return 0, 0, errs.PersistenceTransient("db.CleanupOldData", err)
	}
	positionsDeleted, _ = res.RowsAffected()

	res, err = d.ExecContext(ctx, `DELETE FROM transceivers WHERE observation_time < $1`, cutoff)
	if err != nil {
		return positionsDeleted, 0, errs.PersistenceTransient("db.CleanupOldData", err)
	}
	transceiversDeleted, _ = res.RowsAffected()

	return positionsDeleted, transceiversDeleted, nil
}

// WithTx runs fn inside a single transaction, committing on success and
// rolling back on any error or panic. Every cycle flush (§4.5 "each
// logical cycle flush is a single transaction") goes through this.
func (d *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return errs.PersistenceTransient("db.WithTx", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.PersistenceTransient("db.WithTx", fmt.Errorf("commit: %w", err))
	}
	return nil
}
