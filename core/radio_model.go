package core

import (
	"math"

	"github.com/signalsfoundry/mesh-architect/model"
)

// DefaultFrequencyGHz is used when neither node nor environment pins a band
// with a known frequency.
const DefaultFrequencyGHz = 2.4

// MinEffectiveRangeMeters floors the pairwise loss budget.
const MinEffectiveRangeMeters = 10.0

// LOSClass is the propagation classification of a link.
type LOSClass string

const (
	LOSClear   LOSClass = "LOS"
	LOSUrban   LOSClass = "NLOS-urban"
	LOSFoliage LOSClass = "NLOS-foliage/terrain"
)

// LOSClasses lists every classification an operator may pin.
var LOSClasses = []LOSClass{LOSClear, LOSUrban, LOSFoliage}

var losPenaltyDb = map[LOSClass]float64{
	LOSClear:   0,
	LOSUrban:   18,
	LOSFoliage: 12,
}

// Valid reports whether c is a known classification.
func (c LOSClass) Valid() bool {
	_, ok := losPenaltyDb[c]
	return ok
}

// PenaltyDb is the extra loss applied on top of free-space loss.
func (c LOSClass) PenaltyDb() (float64, bool) {
	p, ok := losPenaltyDb[c]
	return p, ok
}

// DefaultLOSForTerrain is the classification assumed until an operator
// overrides it.
func DefaultLOSForTerrain(t model.Terrain) LOSClass {
	switch t {
	case model.TerrainIndoor, model.TerrainDenseUrban, model.TerrainUrban:
		return LOSUrban
	case model.TerrainSuburban:
		return LOSFoliage
	default:
		return LOSClear
	}
}

// losPenalty falls back to the terrain default when c is unknown.
func losPenalty(c LOSClass, t model.Terrain) float64 {
	if p, ok := c.PenaltyDb(); ok {
		return p
	}
	p, _ := DefaultLOSForTerrain(t).PenaltyDb()
	return p
}

// FreeSpacePathLossDb returns FSPL in dB. Distance is floored at 1 m and
// frequency at 1 MHz.
func FreeSpacePathLossDb(distanceMeters, freqMHz float64) float64 {
	km := math.Max(distanceMeters, 1) / 1000
	mhz := math.Max(freqMHz, 1)
	return 32.44 + 20*math.Log10(km) + 20*math.Log10(mhz)
}

// RawEffectiveRangeMeters scales a node's nominal range by band, terrain and
// EW multipliers.
func RawEffectiveRangeMeters(n *model.Node, env model.Environment) float64 {
	if n == nil {
		return 0
	}
	return n.MaxRangeMeters * n.Band.Factor() * env.Terrain.Multiplier() * env.EWLevel.Multiplier()
}

// PairEffectiveRangeMeters is the weaker node's effective range, floored at
// MinEffectiveRangeMeters.
func PairEffectiveRangeMeters(a, b *model.Node, env model.Environment) float64 {
	r := math.Min(RawEffectiveRangeMeters(a, env), RawEffectiveRangeMeters(b, env))
	return math.Max(MinEffectiveRangeMeters, r)
}

// pairFrequencyMHz walks the pair's bands in canonical id order, then the
// environment primary band, then DefaultFrequencyGHz.
func pairFrequencyMHz(a, b *model.Node, env model.Environment) float64 {
	first, second := a, b
	if b.ID < a.ID {
		first, second = b, a
	}
	for _, band := range []model.Band{first.Band, second.Band, env.PrimaryBand} {
		if ghz := band.GHz(); ghz > 0 {
			return ghz * 1000
		}
	}
	return DefaultFrequencyGHz * 1000
}

// LinkMarginDb compares the loss budget at the effective range with the
// loss at the actual distance plus the LOS penalty.
func LinkMarginDb(effectiveRangeMeters, distanceMeters, freqMHz, penaltyDb float64) float64 {
	lossAtRange := FreeSpacePathLossDb(effectiveRangeMeters, freqMHz)
	lossAtDistance := FreeSpacePathLossDb(distanceMeters, freqMHz) + penaltyDb
	return lossAtRange - lossAtDistance
}
