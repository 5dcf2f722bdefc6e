package maptile

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
)

var testTile = maptile.New(34821, 22715, 16)

func square(center orb.Point, d float64) orb.Ring {
	return orb.Ring{
		{center.Lon() - d, center.Lat() - d},
		{center.Lon() + d, center.Lat() - d},
		{center.Lon() + d, center.Lat() + d},
		{center.Lon() - d, center.Lat() + d},
		{center.Lon() - d, center.Lat() - d},
	}
}

func building(ring orb.Ring, height float64, holes ...orb.Ring) *geojson.Feature {
	f := geojson.NewFeature(append(orb.Polygon{ring}, holes...))
	f.Properties["height"] = height
	return f
}

func testArea(t *testing.T) Area {
	t.Helper()
	area, ok, err := ParseArea([]byte(`{"map":{"tiles":[[16,34821,22715]],"resolution":2}}`))
	if err != nil || !ok {
		t.Fatalf("ParseArea = %v, %v", ok, err)
	}
	return area
}

func TestParseArea(t *testing.T) {
	area := testArea(t)
	if len(area.Tiles) != 1 || area.Tiles[0] != testTile {
		t.Fatalf("tiles = %v", area.Tiles)
	}
	if area.Resolution != 2 {
		t.Fatalf("resolution = %v", area.Resolution)
	}
	if area.Bound != testTile.Bound() {
		t.Fatalf("bound = %v, want %v", area.Bound, testTile.Bound())
	}

	two, ok, err := ParseArea([]byte(`{"map":{"tiles":[[16,34821,22715],[16,34822,22715]]}}`))
	if err != nil || !ok {
		t.Fatalf("ParseArea(two) = %v, %v", ok, err)
	}
	if two.Resolution != 1 {
		t.Fatalf("default resolution = %v", two.Resolution)
	}
	if two.Bound.Max.Lon() <= testTile.Bound().Max.Lon() {
		t.Fatalf("union bound not widened: %v", two.Bound)
	}

	sub, _, err := ParseArea([]byte(`{"map":{"tiles":[[16,34821,22715]],
		"subselection":{"bottomLeft":{"long":11.27,"lat":48.1},"topRight":{"long":11.28,"lat":48.11}}}}`))
	if err != nil {
		t.Fatalf("ParseArea(subselection): %v", err)
	}
	if sub.Bound.Min != (orb.Point{11.27, 48.1}) {
		t.Fatalf("subselection ignored: %v", sub.Bound)
	}
}

func TestParseAreaAbsentAndInvalid(t *testing.T) {
	for _, raw := range []string{``, `{}`, `{"map":{"tiles":[]}}`} {
		if _, ok, err := ParseArea([]byte(raw)); ok || err != nil {
			t.Errorf("ParseArea(%q) = %v, %v", raw, ok, err)
		}
	}
	for _, raw := range []string{
		`{"map":`,
		`{"map":{"tiles":[[16,1]]}}`,
		`{"map":{"tiles":[[1,5,5]]}}`,
		`{"map":{"tiles":[[16,1,1]],"resolution":0}}`,
	} {
		if _, _, err := ParseArea([]byte(raw)); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("ParseArea(%q) err = %v", raw, err)
		}
	}
}

func TestToGrid(t *testing.T) {
	area := testArea(t)
	origin := area.ToGrid(area.Bound.Min)
	if origin.X != 0 || origin.Z != 0 {
		t.Fatalf("origin = %+v", origin)
	}
	dim := area.Dimensions()
	// A zoom 16 tile is roughly 400m wide at this latitude; resolution 2.
	if dim.X < 100 || dim.X > 400 || dim.Z < 100 || dim.Z > 400 {
		t.Fatalf("dimensions = %+v", dim)
	}
	west := area.ToGrid(orb.Point{area.Bound.Min.Lon() - 0.001, area.Bound.Min.Lat() - 0.001})
	if west.X >= 0 || west.Z >= 0 {
		t.Fatalf("south-west point = %+v, want negative", west)
	}
	c := area.ToGrid(area.Bound.Center())
	if math.Abs(c.X-dim.X/2) > 1 || math.Abs(c.Z-dim.Z/2) > 1 {
		t.Fatalf("centre %+v not half of %+v", c, dim)
	}
}

func TestExtractBuildings(t *testing.T) {
	area := testArea(t)
	center := area.Bound.Center()
	far := orb.Point{center.Lon() + 1, center.Lat() + 1}

	fc := geojson.NewFeatureCollection()
	fc.Append(building(square(center, 0.0002), 20, square(center, 0.00005)))
	fc.Append(building(square(center, 0.0001), 0))
	fc.Append(building(square(far, 0.0001), 30))
	line := geojson.NewFeature(orb.LineString{center, far})
	line.Properties["height"] = 10.0
	fc.Append(line)
	fc.Append(&geojson.Feature{Type: "Feature", Geometry: orb.Polygon{}, Properties: geojson.Properties{"height": 5.0}})

	got := ExtractBuildings(fc, area)
	if len(got) != 1 {
		t.Fatalf("buildings = %d, want 1", len(got))
	}
	b := got[0]
	if b.Height != 10 {
		t.Fatalf("height = %v, want 10 (20m at resolution 2)", b.Height)
	}
	if len(b.Footprint) != 5 || len(b.Holes) != 1 || len(b.Holes[0]) != 5 {
		t.Fatalf("footprint/holes = %d/%d", len(b.Footprint), len(b.Holes))
	}
	if b.Footprint[0].Y != 0 || b.Footprint[0].X <= 0 {
		t.Fatalf("footprint point = %+v", b.Footprint[0])
	}
	if ExtractBuildings(nil, area) != nil {
		t.Fatalf("nil collection produced buildings")
	}
}

type tileCounter struct {
	mu     sync.Mutex
	ok     int
	failed int
}

func (c *tileCounter) IncTileFetch(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.ok++
	} else {
		c.failed++
	}
}

func TestLoaderFetchesTilesAndToleratesFailures(t *testing.T) {
	good := maptile.New(34821, 22715, 16)
	bad := maptile.New(34822, 22715, 16)
	area := Area{Tiles: []maptile.Tile{good, bad}, Resolution: 1, Bound: good.Bound().Union(bad.Bound())}

	fc := geojson.NewFeatureCollection()
	fc.Append(building(square(good.Bound().Center(), 0.0001), 12))
	body, err := fc.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var paths []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if strings.HasSuffix(r.URL.Path, "/16/34821/22715.json") {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(body)
			return
		}
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	counter := &tileCounter{}
	l := NewLoader(Config{BaseURL: srv.URL + "/tile/", Concurrency: 2}, WithMetricsRecorder(counter))
	tiles, err := l.Load(context.Background(), area)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tiles) != 2 {
		t.Fatalf("tiles = %d", len(tiles))
	}
	if tiles[0].X != 34821 || tiles[0].Failed || len(tiles[0].Buildings) != 1 {
		t.Fatalf("good tile = %+v", tiles[0])
	}
	if !tiles[1].Failed || tiles[1].Buildings == nil || len(tiles[1].Buildings) != 0 {
		t.Fatalf("bad tile = %+v", tiles[1])
	}
	if tiles[0].Buildings[0].Height != 12 {
		t.Fatalf("height = %v", tiles[0].Buildings[0].Height)
	}
	if counter.ok != 1 || counter.failed != 1 {
		t.Fatalf("metrics ok=%d failed=%d", counter.ok, counter.failed)
	}
	if len(paths) != 2 || !strings.HasPrefix(paths[0], "/tile/16/") {
		t.Fatalf("requested paths = %v", paths)
	}
}

func TestLoaderCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewLoader(Config{BaseURL: srv.URL})
	if _, err := l.Load(ctx, Area{Tiles: []maptile.Tile{testTile}, Resolution: 1, Bound: testTile.Bound()}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTileURL(t *testing.T) {
	l := NewLoader(Config{})
	if got := l.TileURL(testTile); got != DefaultBaseURL+"/16/34821/22715.json" {
		t.Fatalf("TileURL = %q", got)
	}
}
