// Package config loads the ingestor's runtime configuration. Defaults are
// set first, an optional TOML file overlays them, and the documented
// environment variables are applied last as the highest-precedence layer
// — the same three-stage layering the teacher repo used for its JSON
// config, generalized to TOML + the env table this service recognizes.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vatpac/stats-ingestor/internal/errs"
)

// Database holds Postgres connection settings.
type Database struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	Name        string `toml:"name"`
	User        string `toml:"user"`
	Password    string `toml:"password"`
	SSLMode     string `toml:"ssl_mode"`
	PoolSize    int    `toml:"pool_size"`
	MaxOverflow int    `toml:"max_overflow"`
}

func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
}

// Feed holds upstream feed endpoints.
type Feed struct {
	SnapshotURL     string `toml:"snapshot_url"`
	TransceiversURL string `toml:"transceivers_url"`
}

// Admin holds the single operator credential backing the manual
// completion override (§4.8).
type Admin struct {
	Username     string `toml:"username"`
	PasswordHash string `toml:"password_hash"`
	JWTSecret    string `toml:"jwt_secret"`
}

// Config is the fully resolved runtime configuration.
type Config struct {
	Database Database `toml:"database"`
	Feed     Feed     `toml:"feed"`
	Admin    Admin    `toml:"admin"`

	PollInterval      time.Duration
	WriteInterval     time.Duration
	BoundaryEnabled   bool
	BoundaryPath      string
	LandingRadiusNM   float64
	LandingAltFt      float64
	LandingSpeedKt    float64
	TStale            time.Duration
	TComplete         time.Duration
	MatchMaxDistNM    float64
	MatchTimeTolS     time.Duration
	MatchMinDurationS float64
	FreqTolHz         int64
	RetentionHours    int

	LogPath  string
	HTTPAddr string
}

// Default returns the hard-coded defaults named throughout §4 and §6.
func Default() Config {
	return Config{
		Database: Database{
			Host: "localhost", Port: 5432, Name: "vatsim_ops",
			User: "vatsim_ops", SSLMode: "disable",
			PoolSize: 20, MaxOverflow: 40,
		},
		Feed: Feed{
			SnapshotURL:     "https://data.vatsim.net/v3/vatsim-data.json",
			TransceiversURL: "https://data.vatsim.net/v3/transceivers-data.json",
		},
		PollInterval:      60 * time.Second,
		WriteInterval:     30 * time.Second,
		BoundaryEnabled:   true,
		LandingRadiusNM:   15,
		LandingAltFt:      1000,
		LandingSpeedKt:    20,
		TStale:            5 * time.Minute,
		TComplete:         1 * time.Hour,
		MatchMaxDistNM:    100,
		MatchTimeTolS:     180 * time.Second,
		MatchMinDurationS: 30,
		FreqTolHz:         100,
		RetentionHours:    24,
		LogPath:           "logs/ingestor.log",
		HTTPAddr:          ":8085",
	}
}

// Load builds the Config by applying an optional TOML file (CONFIG_PATH,
// default configs/config.toml, missing file is not an error) over the
// defaults, then applying the §6 environment overrides.
func Load() (Config, error) {
	cfg := Default()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "configs/config.toml"
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, errs.ConfigurationError("config.Load", fmt.Errorf("decode %s: %w", path, err))
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if cfg.BoundaryEnabled && cfg.BoundaryPath == "" {
		return Config{}, errs.ConfigurationError("config.Load", fmt.Errorf("BOUNDARY_PATH is required when BOUNDARY_ENABLED=true"))
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	var firstErr error
	setDuration := func(name string, dst *time.Duration, unit time.Duration) {
		v, ok := os.LookupEnv(name)
		if !ok {
			return
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			if firstErr == nil {
				firstErr = errs.ConfigurationError("config.applyEnv", fmt.Errorf("%s: %w", name, err))
			}
			return
		}
		*dst = time.Duration(n * float64(unit))
	}
	setFloat := func(name string, dst *float64) {
		v, ok := os.LookupEnv(name)
		if !ok {
			return
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			if firstErr == nil {
				firstErr = errs.ConfigurationError("config.applyEnv", fmt.Errorf("%s: %w", name, err))
			}
			return
		}
		*dst = n
	}
	setInt := func(name string, dst *int) {
		v, ok := os.LookupEnv(name)
		if !ok {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			if firstErr == nil {
				firstErr = errs.ConfigurationError("config.applyEnv", fmt.Errorf("%s: %w", name, err))
			}
			return
		}
		*dst = n
	}
	setInt64 := func(name string, dst *int64) {
		v, ok := os.LookupEnv(name)
		if !ok {
			return
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			if firstErr == nil {
				firstErr = errs.ConfigurationError("config.applyEnv", fmt.Errorf("%s: %w", name, err))
			}
			return
		}
		*dst = n
	}
	setBool := func(name string, dst *bool) {
		v, ok := os.LookupEnv(name)
		if !ok {
			return
		}
		n, err := strconv.ParseBool(v)
		if err != nil {
			if firstErr == nil {
				firstErr = errs.ConfigurationError("config.applyEnv", fmt.Errorf("%s: %w", name, err))
			}
			return
		}
		*dst = n
	}
	setString := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	setDuration("POLL_INTERVAL_S", &c.PollInterval, time.Second)
	setDuration("WRITE_INTERVAL_S", &c.WriteInterval, time.Second)
	setBool("BOUNDARY_ENABLED", &c.BoundaryEnabled)
	setString("BOUNDARY_PATH", &c.BoundaryPath)
	setFloat("LANDING_RADIUS_NM", &c.LandingRadiusNM)
	setFloat("LANDING_ALT_FT", &c.LandingAltFt)
	setFloat("LANDING_SPEED_KT", &c.LandingSpeedKt)
	setDuration("T_STALE_MIN", &c.TStale, time.Minute)
	setDuration("T_COMPLETE_H", &c.TComplete, time.Hour)
	setFloat("MATCH_MAX_DIST_NM", &c.MatchMaxDistNM)
	setDuration("MATCH_TIME_TOL_S", &c.MatchTimeTolS, time.Second)
	setFloat("MATCH_MIN_DURATION_S", &c.MatchMinDurationS)
	setInt64("FREQ_TOL_HZ", &c.FreqTolHz)
	setInt("RETENTION_H", &c.RetentionHours)

	setString("DB_HOST", &c.Database.Host)
	setInt("DB_PORT", &c.Database.Port)
	setInt("DB_POOL_SIZE", &c.Database.PoolSize)
	setInt("DB_MAX_OVERFLOW", &c.Database.MaxOverflow)
	setString("DB_NAME", &c.Database.Name)
	setString("DB_USER", &c.Database.User)
	setString("DB_PASSWORD", &c.Database.Password)
	setString("FEED_SNAPSHOT_URL", &c.Feed.SnapshotURL)
	setString("FEED_TRANSCEIVERS_URL", &c.Feed.TransceiversURL)
	setString("ADMIN_USERNAME", &c.Admin.Username)
	setString("ADMIN_PASSWORD_HASH", &c.Admin.PasswordHash)
	setString("ADMIN_JWT_SECRET", &c.Admin.JWTSecret)
	setString("LOG_PATH", &c.LogPath)
	setString("HTTP_ADDR", &c.HTTPAddr)

	return firstErr
}
