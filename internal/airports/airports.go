// Package airports implements the Reference Store (C3): an immutable,
// startup-loaded ICAO -> airport lookup, plus the bounded nearest-airport
// scan the Landing Detector (C7) needs. The bounding-box-before-exact-
// distance pattern is adapted from the teacher's FindAirportsNear.
package airports

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/vatpac/stats-ingestor/internal/errs"
	"github.com/vatpac/stats-ingestor/internal/geomath"
	"github.com/vatpac/stats-ingestor/internal/model"
)

//go:embed seed_airports.json
var seedFS embed.FS

type seedRecord struct {
	ICAO        string  `json:"icao"`
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lon"`
	ElevationFt float64 `json:"elevation_ft"`
}

// Store is the immutable airport reference set.
type Store struct {
	byICAO map[string]model.Airport
	all    []model.Airport
}

// Load parses the bundled seed file. A second, larger file can be
// supplied via extraPath (e.g. a full NASR extract); when non-empty it is
// merged on top of the seed set, later records replacing earlier ones
// with the same ICAO. Loading is startup-only, per §4.3.
func Load(extraPath string) (*Store, error) {
	data, err := seedFS.ReadFile("seed_airports.json")
	if err != nil {
		return nil, errs.ConfigurationError("airports.Load", err)
	}
	var seed []seedRecord
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, errs.ConfigurationError("airports.Load", fmt.Errorf("decode seed airports: %w", err))
	}

	s := &Store{byICAO: make(map[string]model.Airport, len(seed))}
	for _, r := range seed {
		s.put(model.Airport{ICAO: r.ICAO, Latitude: r.Latitude, Longitude: r.Longitude, ElevationFt: r.ElevationFt})
	}

	if extraPath != "" {
		if err := s.mergeFile(extraPath); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Store) put(a model.Airport) {
	if _, exists := s.byICAO[a.ICAO]; !exists {
		s.all = append(s.all, a)
	} else {
		for i := range s.all {
			if s.all[i].ICAO == a.ICAO {
				s.all[i] = a
				break
			}
		}
	}
	s.byICAO[a.ICAO] = a
}

func (s *Store) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.ConfigurationError("airports.Load", fmt.Errorf("read %s: %w", path, err))
	}
	var extra []seedRecord
	if err := json.Unmarshal(data, &extra); err != nil {
		return errs.ConfigurationError("airports.Load", fmt.Errorf("decode %s: %w", path, err))
	}
	for _, r := range extra {
		s.put(model.Airport{ICAO: r.ICAO, Latitude: r.Latitude, Longitude: r.Longitude, ElevationFt: r.ElevationFt})
	}
	return nil
}

// ByICAO is an O(1) lookup.
func (s *Store) ByICAO(icao string) (model.Airport, bool) {
	a, ok := s.byICAO[icao]
	return a, ok
}

// Nearest returns the closest airport within radiusNM of (lat, lon), or
// ok=false if none qualifies. A bounding box derived from radiusNM limits
// the candidate set before the exact great-circle distance check runs,
// per §4.3's "no spatial index required" allowance.
func (s *Store) Nearest(lat, lon, radiusNM float64) (airport model.Airport, distanceNM float64, ok bool) {
	center := geomath.Point{Latitude: lat, Longitude: lon}
	latDelta, lonDelta := geomath.BoundingBoxDegrees(center, radiusNM)

	best := -1.0
	for _, a := range s.all {
		if abs(a.Latitude-lat) > latDelta || abs(a.Longitude-lon) > lonDelta {
			continue
		}
		d := geomath.DistanceNauticalMiles(center, geomath.Point{Latitude: a.Latitude, Longitude: a.Longitude})
		if d > radiusNM {
			continue
		}
		if best < 0 || d < best {
			best = d
			airport = a
			ok = true
		}
	}
	distanceNM = best
	return airport, distanceNM, ok
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
