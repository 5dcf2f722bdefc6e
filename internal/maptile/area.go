// Package maptile loads OSM building footprints for the map tiles a
// simulation was generated on and projects them onto the simulation grid.
package maptile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/maptile"

	"github.com/signalsfoundry/airspace-playback/model"
)

// ErrInvalidConfig is returned for a config blob whose map section is malformed.
var ErrInvalidConfig = errors.New("maptile: invalid map config")

// Area is the group of tiles a simulation covers together with the grid
// resolution in metres per cell.
type Area struct {
	Tiles      []maptile.Tile
	Resolution float64
	// Bound is the lon/lat rectangle buildings must fall into. Grid
	// coordinates are measured from its bottom-left corner.
	Bound orb.Bound
}

type lonLat struct {
	Long float64 `json:"long"`
	Lat  float64 `json:"lat"`
}

type mapConfigJSON struct {
	Map *struct {
		Tiles        [][]int  `json:"tiles"`
		Resolution   *float64 `json:"resolution"`
		Subselection *struct {
			BottomLeft *lonLat `json:"bottomLeft"`
			TopRight   *lonLat `json:"topRight"`
		} `json:"subselection"`
	} `json:"map"`
}

// ParseArea reads the map section of a simulation config blob. ok is false
// when the blob is empty or names no tiles.
func ParseArea(configData []byte) (area Area, ok bool, err error) {
	if len(bytes.TrimSpace(configData)) == 0 {
		return Area{}, false, nil
	}
	var raw mapConfigJSON
	if err := json.Unmarshal(configData, &raw); err != nil {
		return Area{}, false, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if raw.Map == nil || len(raw.Map.Tiles) == 0 {
		return Area{}, false, nil
	}

	area.Resolution = 1
	if raw.Map.Resolution != nil {
		if *raw.Map.Resolution <= 0 {
			return Area{}, false, fmt.Errorf("%w: resolution must be positive", ErrInvalidConfig)
		}
		area.Resolution = *raw.Map.Resolution
	}

	for i, ids := range raw.Map.Tiles {
		if len(ids) != 3 || ids[0] < 0 || ids[1] < 0 || ids[2] < 0 {
			return Area{}, false, fmt.Errorf("%w: tile %d must be [z, x, y]", ErrInvalidConfig, i)
		}
		t := maptile.New(uint32(ids[1]), uint32(ids[2]), maptile.Zoom(ids[0]))
		if !t.Valid() {
			return Area{}, false, fmt.Errorf("%w: tile %v out of range", ErrInvalidConfig, ids)
		}
		area.Tiles = append(area.Tiles, t)
		if i == 0 {
			area.Bound = t.Bound()
		} else {
			area.Bound = area.Bound.Union(t.Bound())
		}
	}

	if sub := raw.Map.Subselection; sub != nil && sub.BottomLeft != nil && sub.TopRight != nil {
		area.Bound = orb.Bound{
			Min: orb.Point{sub.BottomLeft.Long, sub.BottomLeft.Lat},
			Max: orb.Point{sub.TopRight.Long, sub.TopRight.Lat},
		}
	}
	return area, true, nil
}

// Contains reports whether p lies strictly inside the area bound.
func (a Area) Contains(p orb.Point) bool {
	return a.Bound.Min.Lon() < p.Lon() && a.Bound.Min.Lat() < p.Lat() &&
		a.Bound.Max.Lon() > p.Lon() && a.Bound.Max.Lat() > p.Lat()
}

// ToGrid projects a lon/lat point onto the simulation grid. X grows east and
// Z grows north from the bottom-left corner of the area; points west or
// south of it get negative values.
func (a Area) ToGrid(p orb.Point) model.Point {
	origin := a.Bound.Min
	x := geo.DistanceHaversine(origin, orb.Point{p.Lon(), origin.Lat()}) / a.Resolution
	z := geo.DistanceHaversine(origin, orb.Point{origin.Lon(), p.Lat()}) / a.Resolution
	if p.Lon() < origin.Lon() {
		x = -x
	}
	if p.Lat() < origin.Lat() {
		z = -z
	}
	return model.Point{X: x, Z: z}
}

// Dimensions returns the grid extent of the area.
func (a Area) Dimensions() model.Point {
	return a.ToGrid(a.Bound.Max)
}
