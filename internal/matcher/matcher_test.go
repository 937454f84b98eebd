package matcher

import (
	"testing"
	"time"

	"github.com/vatpac/stats-ingestor/internal/model"
)

func obs(entity model.EntityType, callsign string, freqHz int64, lat, lon float64, t time.Time) model.TransceiverObs {
	return model.TransceiverObs{
		EntityType:      entity,
		Callsign:        callsign,
		ObservationTime: t,
		FrequencyHz:     freqHz,
		Latitude:        lat,
		Longitude:       lon,
	}
}

func TestExcludeObservers(t *testing.T) {
	atc := []model.TransceiverObs{
		obs(model.EntityATC, "SY_TWR", 120_500_000, -33.9, 151.1, time.Now()),
		obs(model.EntityATC, "SY_OBS", 120_500_000, -33.9, 151.1, time.Now()),
		obs(model.EntityATC, "UNKNOWN", 120_500_000, -33.9, 151.1, time.Now()),
	}
	facilities := map[string]int{"SY_TWR": 3, "SY_OBS": 0}

	out := excludeObservers(atc, facilities)

	if len(out) != 1 || out[0].Callsign != "SY_TWR" {
		t.Fatalf("expected only SY_TWR to survive, got %+v", out)
	}
}

func TestBuildPairs(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()

	t.Run("matches within tolerance", func(t *testing.T) {
		atc := []model.TransceiverObs{obs(model.EntityATC, "SY_TWR", 120_500_000, -33.94, 151.17, base)}
		pilots := []model.TransceiverObs{obs(model.EntityPilot, "QFA1", 120_500_000, -33.95, 151.18, base.Add(5*time.Second))}
		pairs := buildPairs(atc, pilots, cfg)
		if len(pairs) != 1 {
			t.Fatalf("got %d pairs, want 1", len(pairs))
		}
	})

	t.Run("outside time tolerance excluded", func(t *testing.T) {
		atc := []model.TransceiverObs{obs(model.EntityATC, "SY_TWR", 120_500_000, -33.94, 151.17, base)}
		pilots := []model.TransceiverObs{obs(model.EntityPilot, "QFA1", 120_500_000, -33.94, 151.17, base.Add(10*time.Minute))}
		pairs := buildPairs(atc, pilots, cfg)
		if len(pairs) != 0 {
			t.Fatalf("got %d pairs, want 0", len(pairs))
		}
	})

	t.Run("outside distance cap excluded", func(t *testing.T) {
		atc := []model.TransceiverObs{obs(model.EntityATC, "SY_TWR", 120_500_000, -33.94, 151.17, base)}
		pilots := []model.TransceiverObs{obs(model.EntityPilot, "QFA1", 120_500_000, 10, 10, base)}
		pairs := buildPairs(atc, pilots, cfg)
		if len(pairs) != 0 {
			t.Fatalf("got %d pairs, want 0", len(pairs))
		}
	})

	t.Run("different frequency bucket excluded", func(t *testing.T) {
		atc := []model.TransceiverObs{obs(model.EntityATC, "SY_TWR", 120_500_000, -33.94, 151.17, base)}
		pilots := []model.TransceiverObs{obs(model.EntityPilot, "QFA1", 125_000_000, -33.94, 151.17, base)}
		pairs := buildPairs(atc, pilots, cfg)
		if len(pairs) != 0 {
			t.Fatalf("got %d pairs, want 0", len(pairs))
		}
	})
}

func TestCollapseIntervalsOrderIndependent(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	mk := func(offset time.Duration) pair {
		return pair{
			pilotCallsign: "QFA1", controllerCallsign: "SY_TWR", freqHz: 120_500_000,
			t: base.Add(offset), distanceNM: 10,
		}
	}

	forward := []pair{mk(0), mk(30 * time.Second), mk(60 * time.Second)}
	reversed := []pair{mk(60 * time.Second), mk(0), mk(30 * time.Second)}

	ivF := collapseIntervals(append([]pair{}, forward...), 60*time.Second)
	ivR := collapseIntervals(append([]pair{}, reversed...), 60*time.Second)

	if len(ivF) != 1 || len(ivR) != 1 {
		t.Fatalf("expected a single collapsed interval from both orderings, got %d and %d", len(ivF), len(ivR))
	}
	if !ivF[0].firstSeen.Equal(ivR[0].firstSeen) || !ivF[0].lastSeen.Equal(ivR[0].lastSeen) {
		t.Fatal("collapsed interval bounds depend on input order")
	}
}

func TestCollapseIntervalsSplitsOnGap(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	pairs := []pair{
		{pilotCallsign: "QFA1", controllerCallsign: "SY_TWR", freqHz: 1, t: base},
		{pilotCallsign: "QFA1", controllerCallsign: "SY_TWR", freqHz: 1, t: base.Add(10 * time.Minute)},
	}
	ivs := collapseIntervals(pairs, 60*time.Second)
	if len(ivs) != 2 {
		t.Fatalf("got %d intervals, want 2 (gap exceeds tolerance)", len(ivs))
	}
}

func TestFilterByDuration(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ivs := []interval{
		{firstSeen: base, lastSeen: base.Add(10 * time.Second)},
		{firstSeen: base, lastSeen: base.Add(5 * time.Minute)},
	}
	out := filterByDuration(ivs, 30*time.Second)
	if len(out) != 1 {
		t.Fatalf("got %d intervals, want 1", len(out))
	}
}

func TestConfidenceMonotone(t *testing.T) {
	t.Run("closer is more confident", func(t *testing.T) {
		near := confidence([]float64{1, 1, 1}, 300)
		far := confidence([]float64{90, 90, 90}, 300)
		if near <= far {
			t.Fatalf("expected closer distance to yield higher confidence: near=%f far=%f", near, far)
		}
	})

	t.Run("longer duration is more confident", func(t *testing.T) {
		short := confidence([]float64{10}, 10)
		long := confidence([]float64{10}, 3000)
		if long <= short {
			t.Fatalf("expected longer duration to yield higher confidence: short=%f long=%f", short, long)
		}
	})

	t.Run("bounded to [0,1]", func(t *testing.T) {
		c := confidence([]float64{0}, 1_000_000)
		if c < 0 || c > 1 {
			t.Fatalf("confidence out of range: %f", c)
		}
	})

	t.Run("empty distances yields zero", func(t *testing.T) {
		if c := confidence(nil, 100); c != 0 {
			t.Fatalf("got %f, want 0", c)
		}
	})
}

func TestClassify(t *testing.T) {
	cases := []struct {
		freqHz int64
		want   model.CommunicationType
	}{
		{119_500_000, model.CommApproach},
		{121_900_000, model.CommDeparture},
		{124_700_000, model.CommTower},
		{126_200_000, model.CommGround},
		{130_000_000, model.CommEnroute},
		{25_000_000, model.CommHFEnroute},
		{99_999_999, model.CommUnknown},
	}
	for _, c := range cases {
		if got := classify(c.freqHz); got != c.want {
			t.Errorf("classify(%d) = %s, want %s", c.freqHz, got, c.want)
		}
	}
}

func TestBucketBy(t *testing.T) {
	obsList := []model.TransceiverObs{
		{FrequencyHz: 120_500_000},
		{FrequencyHz: 120_500_050},
		{FrequencyHz: 121_000_000},
	}
	buckets := bucketBy(obsList, 100)
	if len(buckets) != 2 {
		t.Fatalf("got %d buckets, want 2", len(buckets))
	}
}
