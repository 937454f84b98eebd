package geo

import (
	"testing"

	"github.com/paulmach/orb"
)

// square is a 10x10 square boundary from (0,0) to (10,10) in (lon, lat) order,
// matching orb's (x, y) convention used throughout this package.
func square() *PolygonHandle {
	return &PolygonHandle{
		ring: orb.Ring{
			{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0},
		},
	}
}

func TestContains(t *testing.T) {
	h := square()

	t.Run("interior point is inside", func(t *testing.T) {
		if !Contains(h, 5, 5) {
			t.Fatal("expected (lat=5, lon=5) to be inside")
		}
	})

	t.Run("exterior point is outside", func(t *testing.T) {
		if Contains(h, 50, 50) {
			t.Fatal("expected (lat=50, lon=50) to be outside")
		}
	})

	t.Run("vertex is inside", func(t *testing.T) {
		if !Contains(h, 0, 0) {
			t.Fatal("expected the origin vertex to count as inside")
		}
	})

	t.Run("edge midpoint is inside", func(t *testing.T) {
		if !Contains(h, 0, 5) {
			t.Fatal("expected a point exactly on an edge to count as inside")
		}
	})

	t.Run("just outside an edge is outside", func(t *testing.T) {
		if Contains(h, -0.001, 5) {
			t.Fatal("expected a point just outside an edge to be outside")
		}
	})
}

func TestDistinctVertexCount(t *testing.T) {
	t.Run("proper square has four distinct vertices", func(t *testing.T) {
		ring := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
		if n := distinctVertexCount(ring); n != 4 {
			t.Fatalf("got %d, want 4", n)
		}
	})

	t.Run("degenerate ring collapses to one point", func(t *testing.T) {
		ring := orb.Ring{{1, 1}, {1, 1}, {1, 1}}
		if n := distinctVertexCount(ring); n != 1 {
			t.Fatalf("got %d, want 1", n)
		}
	})
}

func TestRingFromGeoJSON(t *testing.T) {
	t.Run("feature collection", func(t *testing.T) {
		doc := []byte(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}}]}`)
		ring, err := ringFromGeoJSON(doc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ring) != 5 {
			t.Fatalf("got %d points, want 5", len(ring))
		}
	})

	t.Run("bare geometry", func(t *testing.T) {
		doc := []byte(`{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}`)
		ring, err := ringFromGeoJSON(doc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ring) != 5 {
			t.Fatalf("got %d points, want 5", len(ring))
		}
	})

	t.Run("non-polygon document fails", func(t *testing.T) {
		doc := []byte(`{"type":"Point","coordinates":[0,0]}`)
		if _, err := ringFromGeoJSON(doc); err == nil {
			t.Fatal("expected an error for a non-polygon geometry")
		}
	})
}

func TestLoadRejectsMissingFile(t *testing.T) {
	f := NewFilter()
	if _, err := f.Load("/nonexistent/boundary.geojson"); err == nil {
		t.Fatal("expected an error loading a missing file")
	}
}

func TestFilterCachesByPath(t *testing.T) {
	f := NewFilter()
	f.handles["a"] = square()
	h, err := f.Load("a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h != f.handles["a"] {
		t.Fatal("expected Load to return the cached handle without re-reading")
	}
}
