package maptile

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/signalsfoundry/airspace-playback/model"
)

// Building is an extruded footprint in grid coordinates. Y of every
// footprint point is zero; Height is in grid cells.
type Building struct {
	ID        string          `json:"id,omitempty"`
	Height    float64         `json:"height"`
	Footprint []model.Point   `json:"coordinates"`
	Holes     [][]model.Point `json:"holes,omitempty"`
}

// TileBuildings groups the buildings of one tile.
type TileBuildings struct {
	Z         uint32     `json:"z"`
	X         uint32     `json:"x"`
	Y         uint32     `json:"y"`
	Buildings []Building `json:"buildings"`
	// Failed marks a tile whose fetch did not succeed.
	Failed bool `json:"failed,omitempty"`
}

// ExtractBuildings keeps polygon features with a positive height and at
// least one outer-ring vertex inside the area, and projects them onto the
// grid.
func ExtractBuildings(fc *geojson.FeatureCollection, area Area) []Building {
	if fc == nil {
		return nil
	}
	out := make([]Building, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil || f.Type != "Feature" {
			continue
		}
		height, _ := f.Properties["height"].(float64)
		if height <= 0 {
			continue
		}
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok || len(poly) == 0 || len(poly[0]) == 0 {
			continue
		}
		if !anyInside(poly[0], area) {
			continue
		}

		b := Building{
			Height:    height / area.Resolution,
			Footprint: project(poly[0], area),
		}
		if f.ID != nil {
			b.ID = idString(f.ID)
		}
		for _, hole := range poly[1:] {
			b.Holes = append(b.Holes, project(hole, area))
		}
		out = append(out, b)
	}
	return out
}

func anyInside(ring orb.Ring, area Area) bool {
	for _, p := range ring {
		if area.Contains(p) {
			return true
		}
	}
	return false
}

func project(ring orb.Ring, area Area) []model.Point {
	pts := make([]model.Point, len(ring))
	for i, p := range ring {
		pts[i] = area.ToGrid(p)
	}
	return pts
}

func idString(id interface{}) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
