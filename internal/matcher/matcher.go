// Package matcher implements the ATC<->Flight Matcher (C9): a stream-join
// over persisted transceiver history that detects pilot/controller radio
// co-occurrence. Grounded on the teacher's frequency-domain scanning
// style in pkg/adsb (batched, bucketed passes over a time-ordered slice)
// and its great-circle distance check (internal/geomath, itself adapted
// from pkg/coordinates).
package matcher

import (
	"context"
	"sort"
	"time"

	"github.com/vatpac/stats-ingestor/internal/db"
	"github.com/vatpac/stats-ingestor/internal/errs"
	"github.com/vatpac/stats-ingestor/internal/geomath"
	"github.com/vatpac/stats-ingestor/internal/model"
)

// Config carries the tunables named in §4.9.
type Config struct {
	MaxDistanceNM float64
	TimeTolerance time.Duration
	GapTolerance  time.Duration
	MinDuration   time.Duration
	FreqTolHz     int64
}

func DefaultConfig() Config {
	return Config{
		MaxDistanceNM: 100,
		TimeTolerance: 180 * time.Second,
		GapTolerance:  60 * time.Second,
		MinDuration:   30 * time.Second,
		FreqTolHz:     100,
	}
}

// Matcher runs one detection pass per invocation of Run.
type Matcher struct {
	transceivers *db.TransceiverRepository
	controllers  *db.ControllerRepository
	matches      *db.MatchRepository
	cfg          Config
}

func New(transceivers *db.TransceiverRepository, controllers *db.ControllerRepository, matches *db.MatchRepository, cfg Config) *Matcher {
	return &Matcher{transceivers: transceivers, controllers: controllers, matches: matches, cfg: cfg}
}

// Run executes one detection pass over [since, now] and writes the
// resulting FrequencyMatch records, per §4.9 steps 1-8. It returns the
// number of records written, for the caller's metrics.
func (m *Matcher) Run(ctx context.Context, since, now time.Time) (int, error) {
	facilities, err := m.controllers.FacilityMap(ctx)
	if err != nil {
		return 0, err
	}

	atcObs, err := m.transceivers.WindowByType(ctx, model.EntityATC, since)
	if err != nil {
		return 0, err
	}
	pilotObs, err := m.transceivers.WindowByType(ctx, model.EntityPilot, since)
	if err != nil {
		return 0, err
	}

	atcObs = excludeObservers(atcObs, facilities)

	pairs := buildPairs(atcObs, pilotObs, m.cfg)
	intervals := collapseIntervals(pairs, m.cfg.GapTolerance)
	intervals = filterByDuration(intervals, m.cfg.MinDuration)

	batch := make([]model.FrequencyMatch, 0, len(intervals))
	for _, iv := range intervals {
		batch = append(batch, iv.toMatch())
	}

	if len(batch) == 0 {
		return 0, nil
	}
	if err := m.matches.InsertBatch(ctx, batch); err != nil {
		return 0, errs.DetectorError("matcher.Run", err)
	}
	return len(batch), nil
}

// excludeObservers drops ATC transceiver observations belonging to a
// callsign with facility 0, per §4.9 step 1's pre-loaded-map requirement
// — never filtered by join, so a missing facility entry fails closed
// (excluded) rather than silently passing every row.
func excludeObservers(atc []model.TransceiverObs, facilities map[string]int) []model.TransceiverObs {
	out := atc[:0:0]
	for _, o := range atc {
		if facilities[o.Callsign] == 0 {
			continue
		}
		out = append(out, o)
	}
	return out
}

// pair is one (pilot, controller, freq) co-occurrence instant, the unit
// collapseIntervals works over.
type pair struct {
	pilotCallsign      string
	controllerCallsign string
	freqHz             int64
	pilotLat, pilotLon float64
	ctlLat, ctlLon     float64
	distanceNM         float64
	t                  time.Time
}

// buildPairs groups both observation sets by freq/FreqTolHz bucket and,
// within each bucket, stream-joins pilot observations against controller
// observations within TimeTolerance, retaining only those within
// MaxDistanceNM — §4.9 steps 1-3. The set of pairs does not depend on
// input ordering; only the controller side of each bucket is sorted, so
// the order of the returned slice is not defined (collapseIntervals sorts
// it).
func buildPairs(atc, pilots []model.TransceiverObs, cfg Config) []pair {
	atcBuckets := bucketBy(atc, cfg.FreqTolHz)
	pilotBuckets := bucketBy(pilots, cfg.FreqTolHz)

	var out []pair
	for bucket, pilotGroup := range pilotBuckets {
		ctlGroup, ok := atcBuckets[bucket]
		if !ok {
			continue
		}
		sort.Slice(ctlGroup, func(i, j int) bool { return ctlGroup[i].ObservationTime.Before(ctlGroup[j].ObservationTime) })

		for _, p := range pilotGroup {
			for _, c := range ctlGroup {
				delta := p.ObservationTime.Sub(c.ObservationTime)
				if delta < 0 {
					delta = -delta
				}
				if delta > cfg.TimeTolerance {
					continue
				}
				dist := geomath.DistanceNauticalMiles(
					geomath.Point{Latitude: p.Latitude, Longitude: p.Longitude},
					geomath.Point{Latitude: c.Latitude, Longitude: c.Longitude},
				)
				if dist > cfg.MaxDistanceNM {
					continue
				}
				t := p.ObservationTime
				if c.ObservationTime.Before(t) {
					t = c.ObservationTime
				}
				out = append(out, pair{
					pilotCallsign:      p.Callsign,
					controllerCallsign: c.Callsign,
					freqHz:             p.FrequencyHz,
					pilotLat:           p.Latitude, pilotLon: p.Longitude,
					ctlLat: c.Latitude, ctlLon: c.Longitude,
					distanceNM: dist,
					t:          t,
				})
			}
		}
	}
	return out
}

func bucketBy(obs []model.TransceiverObs, tolHz int64) map[int64][]model.TransceiverObs {
	if tolHz <= 0 {
		tolHz = 1
	}
	out := make(map[int64][]model.TransceiverObs)
	for _, o := range obs {
		b := o.FrequencyHz / tolHz
		out[b] = append(out[b], o)
	}
	return out
}

// interval is a collapsed run of pairs for the same (pilot, controller,
// freq) key.
type interval struct {
	key                 pairKey
	firstSeen, lastSeen time.Time
	distances           []float64
	lastPilotLat        float64
	lastPilotLon        float64
	lastCtlLat          float64
	lastCtlLon          float64
}

type pairKey struct {
	pilot, controller string
	freqHz            int64
}

// collapseIntervals merges pairs for the same key whose gaps are <= gap
// into single intervals, per §4.9 step 4. Pairs are sorted by key then
// time first, so the result is independent of the order Run received
// them in — required by §4.9's ordering guarantee.
func collapseIntervals(pairs []pair, gap time.Duration) []interval {
	sort.Slice(pairs, func(i, j int) bool {
		pi, pj := pairs[i], pairs[j]
		if pi.pilotCallsign != pj.pilotCallsign {
			return pi.pilotCallsign < pj.pilotCallsign
		}
		if pi.controllerCallsign != pj.controllerCallsign {
			return pi.controllerCallsign < pj.controllerCallsign
		}
		if pi.freqHz != pj.freqHz {
			return pi.freqHz < pj.freqHz
		}
		return pi.t.Before(pj.t)
	})

	var out []interval
	var cur *interval
	for _, p := range pairs {
		k := pairKey{p.pilotCallsign, p.controllerCallsign, p.freqHz}
		if cur != nil && cur.key == k && p.t.Sub(cur.lastSeen) <= gap {
			cur.lastSeen = p.t
			cur.distances = append(cur.distances, p.distanceNM)
			cur.lastPilotLat, cur.lastPilotLon = p.pilotLat, p.pilotLon
			cur.lastCtlLat, cur.lastCtlLon = p.ctlLat, p.ctlLon
			continue
		}
		if cur != nil {
			out = append(out, *cur)
		}
		cur = &interval{
			key: k, firstSeen: p.t, lastSeen: p.t, distances: []float64{p.distanceNM},
			lastPilotLat: p.pilotLat, lastPilotLon: p.pilotLon,
			lastCtlLat: p.ctlLat, lastCtlLon: p.ctlLon,
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

func filterByDuration(intervals []interval, min time.Duration) []interval {
	out := intervals[:0:0]
	for _, iv := range intervals {
		if iv.lastSeen.Sub(iv.firstSeen) >= min {
			out = append(out, iv)
		}
	}
	return out
}

func (iv interval) toMatch() model.FrequencyMatch {
	duration := iv.lastSeen.Sub(iv.firstSeen).Seconds()
	var avgDist float64
	for _, d := range iv.distances {
		avgDist += d
	}
	if len(iv.distances) > 0 {
		avgDist /= float64(len(iv.distances))
	}
	return model.FrequencyMatch{
		PilotCallsign:      iv.key.pilot,
		ControllerCallsign: iv.key.controller,
		FrequencyHz:        iv.key.freqHz,
		PilotLat:           iv.lastPilotLat,
		PilotLon:           iv.lastPilotLon,
		ControllerLat:      iv.lastCtlLat,
		ControllerLon:      iv.lastCtlLon,
		DistanceNM:         avgDist,
		FirstSeen:          iv.firstSeen,
		LastSeen:           iv.lastSeen,
		DurationS:          duration,
		Confidence:         confidence(iv.distances, duration),
		CommunicationType:  classify(iv.key.freqHz),
	}
}

// confidence is a deterministic, order-independent function of the
// interval's average inverse distance and its duration, each normalized
// to [0,1] and averaged — satisfying §4.9 step 7's "monotone in both,
// exact formula is an implementation choice" requirement.
func confidence(distances []float64, durationS float64) float64 {
	if len(distances) == 0 {
		return 0
	}
	var sum float64
	for _, d := range distances {
		sum += d
	}
	avgDist := sum / float64(len(distances))

	const refDistanceNM = 50.0
	distTerm := refDistanceNM / (refDistanceNM + avgDist)

	const refDurationS = 300.0
	durTerm := durationS / (refDurationS + durationS)

	return (distTerm + durTerm) / 2
}

// classify maps a frequency in Hz to a communication_type band, §4.9
// step 6. Bands are expressed in Hz to match the stored unit.
func classify(freqHz int64) model.CommunicationType {
	const mhz = 1_000_000
	switch {
	case freqHz >= 118*mhz && freqHz < 121*mhz:
		return model.CommApproach
	case freqHz >= 121*mhz && freqHz < 123*mhz:
		return model.CommDeparture
	case freqHz >= 123*mhz && freqHz < 125*mhz:
		return model.CommTower
	case freqHz >= 125*mhz && freqHz < 127*mhz:
		return model.CommGround
	case freqHz >= 127*mhz && freqHz < 136*mhz:
		return model.CommEnroute
	case freqHz >= 20*mhz && freqHz < 30*mhz:
		return model.CommHFEnroute
	default:
		return model.CommUnknown
	}
}
