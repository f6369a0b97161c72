package core

import (
	"math"

	"github.com/signalsfoundry/mesh-architect/model"
)

// LinkEstimator derives one Link per unordered pair of placed nodes from
// geometry, the environment multipliers and any operator overrides.
// Estimation is total: every combination of inputs yields a classified
// link and nothing is mutated.
type LinkEstimator struct {
	// Distance measures pair separation. Nil means HaversineMeters.
	Distance DistanceFunc
}

// NewLinkEstimator returns an estimator using great-circle distance.
func NewLinkEstimator() *LinkEstimator {
	return &LinkEstimator{Distance: HaversineMeters}
}

// EstimateLinks is shorthand for NewLinkEstimator().EstimateLinks.
func EstimateLinks(nodes []model.Node, env model.Environment, overrides Overrides) []Link {
	return NewLinkEstimator().EstimateLinks(nodes, env, overrides)
}

// EstimateLinks pairs nodes in slice order (i < j). Nodes without a
// position are skipped until placed. Overrides are looked up by LinkKey so
// they carry over across recomputes regardless of pair orientation.
func (le *LinkEstimator) EstimateLinks(nodes []model.Node, env model.Environment, overrides Overrides) []Link {
	placed := make([]*model.Node, 0, len(nodes))
	for i := range nodes {
		if nodes[i].HasPosition() {
			placed = append(placed, &nodes[i])
		}
	}

	links := make([]Link, 0, len(placed)*(len(placed)-1)/2+1)
	for i := 0; i < len(placed); i++ {
		for j := i + 1; j < len(placed); j++ {
			a, b := placed[i], placed[j]
			if a.ID == b.ID {
				continue
			}
			ov, _ := overrides.Lookup(a.ID, b.ID)
			links = append(links, le.EstimatePair(a, b, env, ov))
		}
	}
	return links
}

// EstimatePair evaluates a single pair. Both nodes must be placed.
func (le *LinkEstimator) EstimatePair(a, b *model.Node, env model.Environment, ov LinkOverride) Link {
	measured := le.distance(a, b)

	link := Link{
		FromID:                 a.ID,
		ToID:                   b.ID,
		MeasuredDistanceMeters: measured,
		DistanceMeters:         measured,
		LOS:                    DefaultLOSForTerrain(env.Terrain),
	}
	if ov.DistanceMeters != nil {
		d := *ov.DistanceMeters
		link.DistanceOverride = &d
		link.DistanceMeters = d
	}
	if ov.LOS != "" {
		link.LOS = ov.LOS
		link.LOSOverride = true
	}
	link.WithinHorizon = horizonHint(measured, a, b)

	link.FrequencyMHz = pairFrequencyMHz(a, b, env)
	link.EffectiveRangeMeters = PairEffectiveRangeMeters(a, b, env)
	link.MarginDb = LinkMarginDb(
		link.EffectiveRangeMeters,
		link.DistanceMeters,
		link.FrequencyMHz,
		losPenalty(link.LOS, env.Terrain),
	)
	link.Quality = ClassifyMargin(link.MarginDb)

	raw := math.Min(RawEffectiveRangeMeters(a, env), RawEffectiveRangeMeters(b, env))
	if raw <= 0 {
		raw = 1
	}
	link.RangeRatio = link.DistanceMeters / raw
	return link
}

func (le *LinkEstimator) distance(a, b *model.Node) float64 {
	if le == nil || le.Distance == nil {
		return HaversineMeters(a, b)
	}
	return le.Distance(a, b)
}
