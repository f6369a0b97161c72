package interchange

import (
	"math"

	"github.com/signalsfoundry/mesh-architect/model"
)

// LatLng is a WGS84 point in degrees.
type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// DefaultCenter is the geographic centre of the contiguous United States,
// used when no map view is available.
var DefaultCenter = LatLng{Lat: 39.8283, Lng: -98.5795}

const (
	// LayoutSpacingDeg is the grid pitch used by LayoutUnplaced.
	LayoutSpacingDeg  = 0.0012
	normalizedSpanDeg = 0.002
)

// LayoutUnplaced assigns grid coordinates around center to every node
// without a position and marks them unplaced. Placed nodes are untouched.
// It returns the number of nodes moved.
func LayoutUnplaced(nodes []model.Node, center LatLng) int {
	var missing []int
	for i := range nodes {
		if !nodes[i].HasPosition() {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return 0
	}

	grid := int(math.Ceil(math.Sqrt(float64(len(missing)))))
	offset := float64(grid-1) / 2
	for idx, i := range missing {
		row := float64(idx / grid)
		col := float64(idx % grid)
		nodes[i].Lat = model.Float(center.Lat + (row-offset)*LayoutSpacingDeg)
		nodes[i].Lng = model.Float(center.Lng + (col-offset)*LayoutSpacingDeg)
		nodes[i].Unplaced = true
	}
	return len(missing)
}
