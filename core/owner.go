// core/owner.go
package core

import (
	"math"

	"github.com/signalsfoundry/airspace-playback/model"
)

// OwnerDescription is the display metadata from the owner map.
type OwnerDescription struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Boxplot is a display-ready copy of FinanceStatistics: central values are
// rounded to integers and quartiles/outliers to two decimals.
type Boxplot struct {
	Values    []float64 `json:"values"`
	Total     float64   `json:"total"`
	Mean      float64   `json:"mean"`
	Median    float64   `json:"median"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Quartiles []float64 `json:"quartiles"`
	Outliers  []float64 `json:"outliers"`
}

// NewBoxplot returns nil when stats is nil.
func NewBoxplot(stats *model.FinanceStatistics) *Boxplot {
	if stats == nil {
		return nil
	}
	return &Boxplot{
		Values:    stats.Values,
		Total:     stats.Total,
		Mean:      math.Round(stats.Mean),
		Median:    math.Round(stats.Median),
		Min:       math.Round(stats.Min),
		Max:       math.Round(stats.Max),
		Quartiles: roundAll(stats.Quartiles, 2),
		Outliers:  roundAll(stats.Outliers, 2),
	}
}

func roundAll(vs []float64, places int) []float64 {
	if vs == nil {
		return nil
	}
	scale := math.Pow(10, float64(places))
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = math.Round(v*scale) / scale
	}
	return out
}

// Owner groups the agents submitted by one bidder.
type Owner struct {
	ID    string
	Name  string
	Color string

	Agents     []*Agent
	Statistics *model.OwnerStatistics

	Values              *Boxplot
	Payments            *Boxplot
	Utilities           *Boxplot
	NonCollidingValues  *Boxplot
	NonCollidingUtility *Boxplot
}

// NewOwner creates an owner without agents. Missing descriptions fall back
// to the ID as the name.
func NewOwner(id string, desc *OwnerDescription, stats *model.OwnerStatistics) *Owner {
	o := &Owner{ID: id, Name: id, Statistics: stats}
	if desc != nil {
		if desc.Name != "" {
			o.Name = desc.Name
		}
		o.Color = desc.Color
	}
	if stats != nil {
		o.Values = NewBoxplot(stats.Values)
		o.Payments = NewBoxplot(stats.Payments)
		o.Utilities = NewBoxplot(stats.Utilities)
		o.NonCollidingValues = NewBoxplot(stats.NonCollidingValues)
		o.NonCollidingUtility = NewBoxplot(stats.NonCollidingUtility)
	}
	return o
}

// TotalTimeInAir is taken from the statistics when present.
func (o *Owner) TotalTimeInAir() int {
	if o.Statistics == nil {
		return 0
	}
	return o.Statistics.TotalTimeInAir
}
