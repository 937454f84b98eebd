// Package geo implements the Geographic Filter (C2): loading a boundary
// polygon from a GeoJSON document and deciding whether a point falls
// inside it. Ring decoding is delegated to paulmach/orb/geojson — the
// containment test itself is hand-written because the closed-polygon,
// edge-inclusive semantics required by §4.2 are a correctness invariant
// this service owns, not a convention a general-purpose library
// guarantees.
package geo

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/vatpac/stats-ingestor/internal/errs"
)

// PolygonHandle is an opaque, path-keyed reference to a loaded boundary.
type PolygonHandle struct {
	path string
	ring orb.Ring
}

// Filter is the path-keyed polygon cache (§4.2 "idempotent, path-keyed
// cache"). Loads happen at startup and on SIGHUP reload; reads happen on
// every cycle, so the mutex only ever needs to protect the reload path.
type Filter struct {
	mu      sync.RWMutex
	handles map[string]*PolygonHandle
}

func NewFilter() *Filter {
	return &Filter{handles: make(map[string]*PolygonHandle)}
}

// Load returns the cached handle for path, loading and parsing it on
// first use. A degenerate ring (fewer than 3 distinct vertices) fails.
func (f *Filter) Load(path string) (*PolygonHandle, error) {
	f.mu.RLock()
	if h, ok := f.handles[path]; ok {
		f.mu.RUnlock()
		return h, nil
	}
	f.mu.RUnlock()

	h, err := loadHandle(path)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.handles[path] = h
	f.mu.Unlock()
	return h, nil
}

// Reload forces a re-read of path, replacing the cached handle. Used for
// SIGHUP.
func (f *Filter) Reload(path string) (*PolygonHandle, error) {
	h, err := loadHandle(path)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.handles[path] = h
	f.mu.Unlock()
	return h, nil
}

func loadHandle(path string) (*PolygonHandle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.ConfigurationError("geo.Load", fmt.Errorf("read %s: %w", path, err))
	}

	ring, err := ringFromGeoJSON(data)
	if err != nil {
		return nil, errs.ConfigurationError("geo.Load", fmt.Errorf("parse %s: %w", path, err))
	}

	distinct := distinctVertexCount(ring)
	if distinct < 3 {
		return nil, errs.ConfigurationError("geo.Load", fmt.Errorf("%s: degenerate polygon (%d distinct vertices)", path, distinct))
	}

	return &PolygonHandle{path: path, ring: ring}, nil
}

func ringFromGeoJSON(data []byte) (orb.Ring, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err == nil && len(fc.Features) > 0 {
		if poly, ok := fc.Features[0].Geometry.(orb.Polygon); ok && len(poly) > 0 {
			return poly[0], nil
		}
	}

	var feature geojson.Feature
	if err := json.Unmarshal(data, &feature); err == nil && feature.Geometry != nil {
		if poly, ok := feature.Geometry.(orb.Polygon); ok && len(poly) > 0 {
			return poly[0], nil
		}
	}

	var geom geojson.Geometry
	if err := json.Unmarshal(data, &geom); err != nil {
		return nil, err
	}
	poly, ok := geom.Geometry().(orb.Polygon)
	if !ok || len(poly) == 0 {
		return nil, fmt.Errorf("document does not contain a polygon geometry")
	}
	return poly[0], nil
}

func distinctVertexCount(ring orb.Ring) int {
	seen := make(map[orb.Point]struct{}, len(ring))
	for _, p := range ring {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// Contains reports whether (lat, lon) is inside the polygon referenced by
// h, using ray casting. Points exactly on an edge or vertex are treated
// as inside, per §4.2.
func Contains(h *PolygonHandle, lat, lon float64) bool {
	if onBoundary(h.ring, lon, lat) {
		return true
	}
	return rayCastInside(h.ring, lon, lat)
}

// rayCastInside implements the standard even-odd ray-casting rule,
// casting a ray in the +x direction from the test point.
func rayCastInside(ring orb.Ring, x, y float64) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]

		intersects := ((yi > y) != (yj > y)) &&
			(x < (xj-xi)*(y-yi)/(yj-yi)+xi)
		if intersects {
			inside = !inside
		}
	}
	return inside
}

// onBoundary reports whether (x, y) lies exactly on an edge or vertex of
// ring, within floating-point tolerance.
func onBoundary(ring orb.Ring, x, y float64) bool {
	const eps = 1e-9
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]

		if pointOnSegment(x, y, xi, yi, xj, yj, eps) {
			return true
		}
	}
	return false
}

func pointOnSegment(px, py, x1, y1, x2, y2, eps float64) bool {
	cross := (px-x1)*(y2-y1) - (py-y1)*(x2-x1)
	if abs(cross) > eps {
		return false
	}
	if px < min(x1, x2)-eps || px > max(x1, x2)+eps {
		return false
	}
	if py < min(y1, y2)-eps || py > max(y1, y2)+eps {
		return false
	}
	return true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
