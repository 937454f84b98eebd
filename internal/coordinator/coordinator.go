// Package coordinator implements the Ingestion Coordinator (C6): the
// single long-running task that drives the fetch -> filter -> buffer ->
// flush -> detect cycle described in §4.6. Grounded on the teacher's
// cmd/collector Collector.Run ticker/select loop, generalized from a
// single update() call into the full pipeline this domain needs.
package coordinator

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/vatpac/stats-ingestor/internal/buffer"
	"github.com/vatpac/stats-ingestor/internal/completion"
	"github.com/vatpac/stats-ingestor/internal/config"
	"github.com/vatpac/stats-ingestor/internal/db"
	"github.com/vatpac/stats-ingestor/internal/errs"
	"github.com/vatpac/stats-ingestor/internal/feedclient"
	"github.com/vatpac/stats-ingestor/internal/geo"
	"github.com/vatpac/stats-ingestor/internal/landing"
	"github.com/vatpac/stats-ingestor/internal/matcher"
	"github.com/vatpac/stats-ingestor/internal/metrics"
	"github.com/vatpac/stats-ingestor/internal/model"
	"github.com/vatpac/stats-ingestor/internal/retry"
	"github.com/vatpac/stats-ingestor/internal/summarizer"
)

// StatusSink receives a post-cycle health snapshot; internal/httpapi
// implements it to back /status without coordinator importing httpapi.
type StatusSink interface {
	Set(status StatusUpdate)
}

type StatusUpdate struct {
	LastCycleAt  time.Time
	LastCycleErr string
	PollInterval time.Duration
}

// Coordinator owns the in-memory buffer exclusively and drives every
// other component on a fixed cadence.
type Coordinator struct {
	cfg config.Config
	log zerolog.Logger

	feed     *feedclient.Client
	boundary *geo.Filter
	buf      *buffer.Buffer
	database *db.DB

	flights      *db.FlightRepository
	controllers  *db.ControllerRepository
	transceivers *db.TransceiverRepository

	landingDetector   *landing.Detector
	completionMachine *completion.Machine
	atcMatcher        *matcher.Matcher
	summarizer        *summarizer.Summarizer

	metrics *metrics.Registry
	status  StatusSink

	previousControllers map[string]struct{}
	lastFlush           time.Time
	lastCleanup         time.Time
	consecutiveFeedFail int
}

// New assembles a Coordinator from its already-constructed dependencies.
// cmd/ingestor is the only caller; everything here is pure wiring.
func New(
	cfg config.Config,
	log zerolog.Logger,
	feed *feedclient.Client,
	boundary *geo.Filter,
	buf *buffer.Buffer,
	database *db.DB,
	flights *db.FlightRepository,
	controllers *db.ControllerRepository,
	transceivers *db.TransceiverRepository,
	landingDetector *landing.Detector,
	completionMachine *completion.Machine,
	atcMatcher *matcher.Matcher,
	summ *summarizer.Summarizer,
	metricsRegistry *metrics.Registry,
	status StatusSink,
) *Coordinator {
	return &Coordinator{
		cfg: cfg, log: log,
		feed: feed, boundary: boundary, buf: buf, database: database,
		flights: flights, controllers: controllers, transceivers: transceivers,
		landingDetector: landingDetector, completionMachine: completionMachine,
		atcMatcher: atcMatcher, summarizer: summ,
		metrics: metricsRegistry, status: status,
		previousControllers: make(map[string]struct{}),
	}
}

// Run executes the coordinator loop until ctx is cancelled. It performs an
// immediate cycle, then ticks at PollInterval, matching the teacher's
// "do first update immediately" pattern in Collector.Run.
func (c *Coordinator) Run(ctx context.Context) {
	c.log.Info().Dur("poll_interval", c.cfg.PollInterval).Msg("coordinator starting")

	c.runCycle(ctx)

	interval := c.cfg.PollInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("coordinator shutting down")
			return
		case <-ticker.C:
			c.runCycle(ctx)

			// Backoff doubling on consecutive FeedUnavailable, reset on
			// success, per §4.6's closing paragraph.
			nextInterval := c.cfg.PollInterval
			if c.consecutiveFeedFail > 0 {
				nextInterval = backoffInterval(c.cfg.PollInterval, c.consecutiveFeedFail)
			}
			if nextInterval != interval {
				interval = nextInterval
				ticker.Reset(interval)
			}
		}
	}
}

func backoffInterval(base time.Duration, failures int) time.Duration {
	d := base
	for i := 0; i < failures && d < 5*time.Minute; i++ {
		d *= 2
	}
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}

// runCycle executes steps 1-5 of §4.6 once. Errors are caught here; none
// escape to the ticker loop, matching §7's "all errors caught at the
// Coordinator boundary".
func (c *Coordinator) runCycle(ctx context.Context) {
	start := time.Now()
	var cycleErr error
	defer func() {
		c.metrics.CycleDuration.Observe(time.Since(start).Seconds())
		errMsg := ""
		if cycleErr != nil {
			errMsg = cycleErr.Error()
		}
		if c.status != nil {
			c.status.Set(StatusUpdate{LastCycleAt: time.Now(), LastCycleErr: errMsg, PollInterval: c.cfg.PollInterval})
		}
	}()

	snap, err := c.feed.FetchSnapshotWithRetry(ctx, retry.DefaultConfig())
	if err != nil {
		c.handleFeedError(err)
		cycleErr = err
		return
	}
	c.consecutiveFeedFail = 0

	// Classify against this cycle's freshly-fetched controller list, not
	// the buffer (which still holds the previous cycle's contents until
	// applyToBuffer runs below) — otherwise a controller that just came
	// online is misclassified as a pilot transceiver for one full cycle.
	knownControllers := make(map[string]struct{}, len(snap.Controllers))
	for _, ctl := range snap.Controllers {
		knownControllers[ctl.Callsign] = struct{}{}
	}
	isController := func(callsign string) bool {
		_, ok := knownControllers[callsign]
		return ok
	}
	transceivers, err := c.feed.FetchTransceiversWithRetry(ctx, retry.DefaultConfig(), isController)
	if err != nil {
		c.handleFeedError(err)
		cycleErr = err
		return
	}

	c.applyToBuffer(snap)

	if time.Since(c.lastFlush) < c.cfg.WriteInterval {
		return
	}
	c.lastFlush = time.Now()

	if err := c.flush(ctx, transceivers); err != nil {
		c.log.Error().Err(err).Msg("flush failed")
		cycleErr = err
		return
	}

	c.runDetectors(ctx, snap)

	if time.Since(c.lastCleanup) >= 30*time.Minute {
		c.lastCleanup = time.Now()
		if _, _, err := c.database.CleanupOldData(ctx, c.cfg.RetentionHours); err != nil {
			c.log.Warn().Err(err).Msg("cleanup_old failed")
		}
	}

	c.log.Info().
		Int("pilots", len(snap.Pilots)).
		Int("controllers", len(snap.Controllers)).
		Int("transceivers", len(transceivers)).
		Dur("cycle_duration", time.Since(start)).
		Msg("cycle complete")
}

func (c *Coordinator) handleFeedError(err error) {
	if errs.Is(err, errs.KindFeedUnavailable) {
		c.consecutiveFeedFail++
		c.metrics.FetchErrors.Inc()
		c.log.Warn().Err(err).Int("consecutive_failures", c.consecutiveFeedFail).Msg("feed unavailable, backing off")
		return
	}
	c.log.Error().Err(err).Msg("feed corrupt, skipping cycle")
}

// applyToBuffer implements §4.6 steps 2-3: geographic filtering of pilots
// and unconditional buffering of non-observer controllers.
func (c *Coordinator) applyToBuffer(snap model.Snapshot) {
	boundaryHandle := c.resolveBoundary()

	for _, p := range snap.Pilots {
		if c.cfg.BoundaryEnabled && boundaryHandle != nil && !geo.Contains(boundaryHandle, p.Latitude, p.Longitude) {
			c.metrics.FilterDropped.Inc()
			continue
		}
		c.buf.PutPilot(p)
	}
	seenControllers := make(map[string]struct{}, len(snap.Controllers))
	for _, ctl := range snap.Controllers {
		if ctl.IsObserver() {
			continue
		}
		seenControllers[ctl.Callsign] = struct{}{}
		c.buf.PutController(ctl)
	}
	// Controllers missing from this snapshot leave the buffer, so flush
	// sees them as absent and marks them offline.
	for _, ctl := range c.buf.Controllers() {
		if _, ok := seenControllers[ctl.Callsign]; !ok {
			c.buf.RemoveController(ctl.Callsign)
		}
	}
}

func (c *Coordinator) resolveBoundary() *geo.PolygonHandle {
	if !c.cfg.BoundaryEnabled {
		return nil
	}
	h, err := c.boundary.Load(c.cfg.BoundaryPath)
	if err != nil {
		c.log.Error().Err(err).Str("path", c.cfg.BoundaryPath).Msg("failed to load boundary polygon")
		return nil
	}
	return h
}

// flush implements §4.6 step 4: a single transaction writing every
// buffered pilot/controller/transceiver, followed by the controller
// offline transition and its summaries.
func (c *Coordinator) flush(ctx context.Context, transceivers []model.TransceiverObs) error {
	pilots, pilotsDropped := db.FilterValidPilots(c.buf.Pilots())
	controllers := c.buf.Controllers()
	transceivers, transceiversDropped := db.FilterValidTransceivers(transceivers)
	if dropped := pilotsDropped + transceiversDropped; dropped > 0 {
		c.metrics.RecordsInvalid.Add(float64(dropped))
		c.log.Warn().Int("pilots", pilotsDropped).Int("transceivers", transceiversDropped).
			Msg("dropped out-of-range records before flush")
	}

	err := c.database.WithTx(ctx, func(tx *sql.Tx) error {
		if err := c.flights.UpsertBatch(ctx, tx, pilots); err != nil {
			return err
		}
		if err := c.controllers.UpsertBatch(ctx, tx, controllers); err != nil {
			return err
		}
		return c.transceivers.InsertBatch(ctx, tx, transceivers)
	})
	if err != nil {
		return err
	}

	c.metrics.FlushedPilots.Add(float64(len(pilots)))
	c.metrics.FlushedATC.Add(float64(len(controllers)))
	c.metrics.OnlineATC.Set(float64(len(controllers)))

	currentControllers := make(map[string]struct{}, len(controllers))
	for _, ctl := range controllers {
		currentControllers[ctl.Callsign] = struct{}{}
	}
	var absent []string
	for cs := range c.previousControllers {
		if _, ok := currentControllers[cs]; !ok {
			absent = append(absent, cs)
		}
	}
	c.previousControllers = currentControllers

	if len(absent) > 0 {
		c.markOfflineAndSummarize(ctx, absent)
	}
	return nil
}

// markOfflineAndSummarize implements §4.6 steps 4c-d.
func (c *Coordinator) markOfflineAndSummarize(ctx context.Context, absent []string) {
	var newlyOffline []string
	err := c.database.WithTx(ctx, func(tx *sql.Tx) error {
		offline, err := c.controllers.MarkOffline(ctx, tx, absent)
		if err != nil {
			return err
		}
		newlyOffline = offline
		return nil
	})
	if err != nil {
		c.log.Error().Err(err).Msg("mark_controllers_offline failed")
		return
	}

	for _, callsign := range newlyOffline {
		c.buf.RemoveController(callsign)
		if err := c.summarizer.Controller(ctx, callsign); err != nil {
			c.log.Error().Err(err).Str("callsign", callsign).Msg("controller summarization failed")
		}
	}
}

// runDetectors invokes C7-C9 over this cycle's pilots, and lets C8 react
// to landing events and pilot absence. Failures here are DetectorError:
// logged, cycle continues, affected detection is skipped this round.
func (c *Coordinator) runDetectors(ctx context.Context, snap model.Snapshot) {
	active, err := c.flights.ActiveFlights(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to load active flights")
		return
	}
	c.metrics.ActiveFlights.Set(float64(len(active)))
	activeByKey := make(map[string]db.ActiveFlight, len(active))
	for _, f := range active {
		activeByKey[f.Callsign] = f
	}

	presentThisCycle := make(map[string]struct{}, len(snap.Pilots))
	for _, p := range snap.Pilots {
		presentThisCycle[p.Callsign] = struct{}{}

		if ev, ok := c.landingDetector.Evaluate(p); ok {
			c.metrics.LandingsDetected.Inc()
			if _, err := c.completionMachine.Land(ctx, ev, activeByKey[p.Callsign].Status); err != nil {
				c.log.Error().Err(err).Str("callsign", p.Callsign).Msg("landing transition failed")
			}
		}
	}

	now := time.Now().UTC()
	for _, f := range active {
		if _, present := presentThisCycle[f.Callsign]; present {
			continue
		}
		transition, err := c.completionMachine.EvaluateAbsence(ctx, f, now)
		if err != nil {
			c.log.Error().Err(err).Str("callsign", f.Callsign).Msg("absence transition failed")
			continue
		}
		if transition.Terminal {
			c.metrics.FlightsCompleted.WithLabelValues(string(transition.Method)).Inc()
			c.landingDetector.Forget(f.Callsign, f.LogonTime)
			if err := c.summarizer.Flight(ctx, f.Callsign, f.LogonTime, now, transition.Method, transition.Confidence); err != nil {
				c.log.Error().Err(err).Str("callsign", f.Callsign).Msg("flight summarization failed")
			}
		}
	}

	matchStart := time.Now()
	lookback := c.cfg.MatchTimeTolS + 10*time.Minute
	written, err := c.atcMatcher.Run(ctx, now.Add(-lookback), now)
	if err != nil {
		c.log.Error().Err(err).Msg("matcher run failed")
	}
	c.metrics.MatchesFound.Add(float64(written))
	c.metrics.MatcherDuration.Observe(time.Since(matchStart).Seconds())

	c.metrics.DBPoolInUse.Set(float64(c.database.Stats().InUse))
}
