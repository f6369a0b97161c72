package core

import (
	"math"

	"github.com/signalsfoundry/mesh-architect/model"
)

// EarthRadiusMeters is the mean Earth radius used by the great-circle
// distance and radio-horizon helpers.
const EarthRadiusMeters = 6371000.0

// horizonFactorKm is the 4/3-earth radio horizon constant: d[km] = 3.57·√h[m].
const horizonFactorKm = 3.57

// DistanceFunc measures the ground distance between two placed nodes in
// metres. Hosts with a geodesic library may substitute their own.
type DistanceFunc func(a, b *model.Node) float64

// HaversineMeters is the default DistanceFunc. Result is rounded to whole
// metres. Callers must only pass placed nodes.
func HaversineMeters(a, b *model.Node) float64 {
	return GreatCircleMeters(*a.Lat, *a.Lng, *b.Lat, *b.Lng)
}

// GreatCircleMeters returns the haversine distance between two WGS84
// points, rounded to whole metres.
func GreatCircleMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)

	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Pow(math.Sin(dLng/2), 2)
	return math.Round(2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h))))
}

// RadioHorizonKm is the combined radio horizon of two antennas at the given
// heights in metres. Negative heights are clamped to zero.
func RadioHorizonKm(heightA, heightB float64) float64 {
	return horizonFactorKm * (math.Sqrt(math.Max(heightA, 0)) + math.Sqrt(math.Max(heightB, 0)))
}

// horizonHint reports whether distanceMeters lies within the radio horizon.
// It returns nil only when neither node carries height data; a node without
// height data on one side of the pair counts as ground level.
func horizonHint(distanceMeters float64, a, b *model.Node) *bool {
	ha := a.AntennaHeightMeters()
	hb := b.AntennaHeightMeters()
	if ha == nil && hb == nil {
		return nil
	}
	var hA, hB float64
	if ha != nil {
		hA = *ha
	}
	if hb != nil {
		hB = *hb
	}
	within := distanceMeters/1000 <= RadioHorizonKm(hA, hB)
	return &within
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
