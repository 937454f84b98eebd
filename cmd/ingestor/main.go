// Command ingestor is the composition root for the ingestion, detection,
// and summarization pipeline: it wires configuration, logging, the
// persistence layer, every detector, and the minimal operability surface
// together and runs the Coordinator until shutdown. Grounded on the
// teacher's cmd/collector/main.go wiring order and signal handling.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vatpac/stats-ingestor/internal/airports"
	"github.com/vatpac/stats-ingestor/internal/auth"
	"github.com/vatpac/stats-ingestor/internal/buffer"
	"github.com/vatpac/stats-ingestor/internal/completion"
	"github.com/vatpac/stats-ingestor/internal/config"
	"github.com/vatpac/stats-ingestor/internal/coordinator"
	"github.com/vatpac/stats-ingestor/internal/db"
	"github.com/vatpac/stats-ingestor/internal/feedclient"
	"github.com/vatpac/stats-ingestor/internal/geo"
	"github.com/vatpac/stats-ingestor/internal/httpapi"
	"github.com/vatpac/stats-ingestor/internal/landing"
	"github.com/vatpac/stats-ingestor/internal/logging"
	"github.com/vatpac/stats-ingestor/internal/matcher"
	"github.com/vatpac/stats-ingestor/internal/metrics"
	"github.com/vatpac/stats-ingestor/internal/summarizer"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.New(cfg.LogPath)
	log.Info().Msg("stats-ingestor starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.ReconnectWithRetry(ctx, cfg.Database, log, 5, time.Second)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(2)
	}
	defer database.Close()

	if err := database.InitSchema(ctx); err != nil {
		log.Error().Err(err).Msg("schema validation failed")
		os.Exit(1)
	}
	log.Info().Msg("schema validated")

	airportStore, err := airports.Load(os.Getenv("AIRPORTS_EXTRA_PATH"))
	if err != nil {
		log.Error().Err(err).Msg("failed to load airport reference data")
		os.Exit(1)
	}

	boundary := geo.NewFilter()
	if cfg.BoundaryEnabled {
		if _, err := boundary.Load(cfg.BoundaryPath); err != nil {
			log.Error().Err(err).Str("path", cfg.BoundaryPath).Msg("failed to load boundary polygon")
			os.Exit(1)
		}
	}

	buf, err := buffer.New(buffer.DefaultPilotCapacity, buffer.DefaultControllerCapacity)
	if err != nil {
		log.Error().Err(err).Msg("failed to construct in-memory buffer")
		os.Exit(1)
	}

	flightsRepo := db.NewFlightRepository(database)
	controllersRepo := db.NewControllerRepository(database)
	transceiversRepo := db.NewTransceiverRepository(database)
	matchesRepo := db.NewMatchRepository(database)
	summariesRepo := db.NewSummaryRepository(database)

	feedClient := feedclient.New(cfg.Feed, log)

	landingDetector := landing.New(airportStore, cfg.LandingRadiusNM, cfg.LandingAltFt, cfg.LandingSpeedKt)
	completionMachine := completion.New(flightsRepo, cfg.TStale, cfg.TComplete)

	matcherCfg := matcher.Config{
		MaxDistanceNM: cfg.MatchMaxDistNM,
		TimeTolerance: cfg.MatchTimeTolS,
		GapTolerance:  60 * time.Second,
		MinDuration:   time.Duration(cfg.MatchMinDurationS * float64(time.Second)),
		FreqTolHz:     cfg.FreqTolHz,
	}
	atcMatcher := matcher.New(transceiversRepo, controllersRepo, matchesRepo, matcherCfg)

	summ := summarizer.New(flightsRepo, controllersRepo, matchesRepo, summariesRepo, cfg.RetentionHours)

	metricsRegistry := metrics.New(prometheus.DefaultRegisterer)

	statusTracker := &httpapi.StatusTracker{}
	authSvc := auth.NewService(cfg.Admin)

	server := httpapi.New(statusTracker, authSvc, completionMachine, flightsRepo, log)
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: server}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("operability surface listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server failed")
		}
	}()

	coord := coordinator.New(
		cfg, log, feedClient, boundary, buf, database,
		flightsRepo, controllersRepo, transceiversRepo,
		landingDetector, completionMachine, atcMatcher, summ,
		metricsRegistry, statusAdapter{statusTracker},
	)

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			if !cfg.BoundaryEnabled {
				continue
			}
			log.Info().Str("path", cfg.BoundaryPath).Msg("reloading boundary polygon")
			if _, err := boundary.Reload(cfg.BoundaryPath); err != nil {
				log.Error().Err(err).Msg("boundary reload failed")
			}
		}
	}()

	coord.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)

	log.Info().Msg("stats-ingestor stopped")
}

// statusAdapter bridges httpapi.StatusTracker to coordinator.StatusSink
// without either package importing the other's concrete type.
type statusAdapter struct {
	tracker *httpapi.StatusTracker
}

func (a statusAdapter) Set(s coordinator.StatusUpdate) {
	a.tracker.Set(httpapi.CycleStatus{
		LastCycleAt:  s.LastCycleAt,
		LastCycleErr: s.LastCycleErr,
		PollInterval: s.PollInterval,
	})
}
