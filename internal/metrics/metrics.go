// Package metrics registers the Prometheus series this service exposes at
// /metrics, giving operators cycle-level visibility without the full
// out-of-scope HTTP API. Grounded on the teacher's use of
// prometheus/client_golang in cmd/web-server, trimmed to the counters and
// histograms that map onto §5's named phases.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds every series this service publishes.
type Registry struct {
	CycleDuration    prometheus.Histogram
	FetchErrors      prometheus.Counter
	FilterDropped    prometheus.Counter
	FlushedPilots    prometheus.Counter
	FlushedATC       prometheus.Counter
	LandingsDetected prometheus.Counter
	FlightsCompleted *prometheus.CounterVec
	MatcherDuration  prometheus.Histogram
	MatchesFound     prometheus.Counter
	ActiveFlights    prometheus.Gauge
	OnlineATC        prometheus.Gauge
	DBPoolInUse      prometheus.Gauge
	RecordsInvalid   prometheus.Counter
}

// New constructs and registers every series against reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ingestor",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one coordinator poll/flush cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ingestor", Name: "feed_fetch_errors_total",
			Help: "Feed fetches that failed after retries.",
		}),
		FilterDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ingestor", Name: "geo_filter_dropped_total",
			Help: "Observations dropped by the boundary filter.",
		}),
		FlushedPilots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ingestor", Name: "flushed_pilots_total",
			Help: "Pilot observations written by a flush.",
		}),
		FlushedATC: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ingestor", Name: "flushed_controllers_total",
			Help: "Controller observations written by a flush.",
		}),
		LandingsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ingestor", Name: "landings_detected_total",
			Help: "Landing events emitted by the Landing Detector.",
		}),
		FlightsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingestor", Name: "flights_completed_total",
			Help: "Flights reaching a terminal state, by completion method.",
		}, []string{"method"}),
		MatcherDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ingestor", Name: "matcher_run_duration_seconds",
			Help:    "Duration of one ATC<->flight matcher pass.",
			Buckets: prometheus.DefBuckets,
		}),
		MatchesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ingestor", Name: "frequency_matches_total",
			Help: "FrequencyMatch records written by the matcher.",
		}),
		ActiveFlights: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ingestor", Name: "active_flights",
			Help: "Flights currently in a non-terminal state.",
		}),
		OnlineATC: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ingestor", Name: "online_controllers",
			Help: "Controllers currently marked online.",
		}),
		DBPoolInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ingestor", Name: "db_pool_in_use",
			Help: "Open database connections currently in use.",
		}),
		RecordsInvalid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ingestor", Name: "records_invalid_total",
			Help: "Records dropped by the pre-submission range validator.",
		}),
	}

	reg.MustRegister(
		r.CycleDuration, r.FetchErrors, r.FilterDropped, r.FlushedPilots, r.FlushedATC,
		r.LandingsDetected, r.FlightsCompleted, r.MatcherDuration, r.MatchesFound,
		r.ActiveFlights, r.OnlineATC, r.DBPoolInUse, r.RecordsInvalid,
	)
	return r
}
