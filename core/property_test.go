package core

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/signalsfoundry/mesh-architect/model"
)

// TestLinkEstimatorProperties checks invariants that must hold for any
// placement and environment.
func TestLinkEstimatorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	envFor := func(ti, ei, bi int) model.Environment {
		return model.Environment{
			Terrain:     model.Terrains[ti],
			EWLevel:     model.EWLevels[ei],
			PrimaryBand: model.Bands[bi],
		}
	}

	properties.Property("estimation is symmetric in pair orientation", prop.ForAll(
		func(lat, lng, dLat, dLng float64, ti, ei, bi, ri int) bool {
			env := envFor(ti, ei, bi)
			a := placedNode("alpha", model.Roles[ri], model.Bands[bi], lat, lng)
			b := placedNode("bravo", model.RoleRelay, model.Band2400, lat+dLat, lng+dLng)
			est := NewLinkEstimator()
			ab := est.EstimatePair(&a, &b, env, LinkOverride{})
			ba := est.EstimatePair(&b, &a, env, LinkOverride{})
			return ab.MarginDb == ba.MarginDb &&
				ab.Quality == ba.Quality &&
				ab.DistanceMeters == ba.DistanceMeters &&
				ab.FrequencyMHz == ba.FrequencyMHz
		},
		gen.Float64Range(-60, 60),
		gen.Float64Range(-170, 170),
		gen.Float64Range(-0.05, 0.05),
		gen.Float64Range(-0.05, 0.05),
		gen.IntRange(0, len(model.Terrains)-1),
		gen.IntRange(0, len(model.EWLevels)-1),
		gen.IntRange(0, len(model.Bands)-1),
		gen.IntRange(0, len(model.Roles)-1),
	))

	properties.Property("classification is total", prop.ForAll(
		func(d float64, ti, ei, bi, li int) bool {
			env := envFor(ti, ei, bi)
			a := placedNode("a", model.RoleSensor, model.Bands[bi], 0, 0)
			b := placedNode("b", model.RoleClient, model.Band5800, 0, 0)
			ov := LinkOverride{LOS: LOSClasses[li]}
			l := fixedDistance(d).EstimatePair(&a, &b, env, ov)
			switch l.Quality {
			case LinkQualityGood, LinkQualityMarginal, LinkQualityUnlikely:
				return l.Quality == ClassifyMargin(l.MarginDb)
			default:
				return false
			}
		},
		gen.Float64Range(0, 50000),
		gen.IntRange(0, len(model.Terrains)-1),
		gen.IntRange(0, len(model.EWLevels)-1),
		gen.IntRange(0, len(model.Bands)-1),
		gen.IntRange(0, len(LOSClasses)-1),
	))

	properties.Property("margin strictly decreases with distance", prop.ForAll(
		func(d1, extra float64, ti, ei int) bool {
			env := envFor(ti, ei, 2)
			a := placedNode("a", model.RoleRelay, model.Band2400, 0, 0)
			b := placedNode("b", model.RoleUxS, model.Band1200, 0, 0)
			near := fixedDistance(d1).EstimatePair(&a, &b, env, LinkOverride{})
			far := fixedDistance(d1+extra).EstimatePair(&a, &b, env, LinkOverride{})
			return far.MarginDb < near.MarginDb
		},
		gen.Float64Range(1, 20000),
		gen.Float64Range(1, 20000),
		gen.IntRange(0, len(model.Terrains)-1),
		gen.IntRange(0, len(model.EWLevels)-1),
	))

	properties.TestingRun(t)
}

// TestRobustnessMatchesBruteForce compares the DFS result with removal-based
// connectivity counting on random small graphs.
func TestRobustnessMatchesBruteForce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("articulation points and bridges agree with brute force", prop.ForAll(
		func(n int, mask uint64) bool {
			ids := make([]string, n)
			for i := range ids {
				ids[i] = fmt.Sprintf("n%d", i)
			}
			nodes := graphNodes(ids...)

			var links []Link
			bit := 0
			for i := 0; i < n; i++ {
				for j := i + 1; j < n; j++ {
					if mask&(1<<uint(bit)) != 0 {
						links = append(links, edge(ids[i], ids[j], LinkQualityMarginal))
					}
					bit++
				}
			}

			r := AnalyzeRobustness(nodes, links)
			base := components(ids, links, "", -1)

			wantSPOF := make(map[string]bool)
			for _, id := range ids {
				// Removing a vertex drops it from the count, so compare
				// against base - 1 for a non-isolated vertex.
				if components(ids, links, id, -1) > base-isolatedAdj(id, links) {
					wantSPOF[id] = true
				}
			}
			if len(wantSPOF) != len(r.SPOFNodes) {
				return false
			}
			for _, sp := range r.SPOFNodes {
				if !wantSPOF[sp.ID] {
					return false
				}
			}

			wantBridges := 0
			for li := range links {
				if components(ids, links, "", li) > base {
					wantBridges++
				}
			}
			return wantBridges == len(r.CriticalBridges) && r.CriticalCounts.Marginal == wantBridges
		},
		gen.IntRange(1, 8),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

// isolatedAdj is 1 when id has no incident links, 0 otherwise.
func isolatedAdj(id string, links []Link) int {
	for i := range links {
		if links[i].Involves(id) {
			return 0
		}
	}
	return 1
}

// components counts connected components after removing vertex skip and
// link index skipLink.
func components(ids []string, links []Link, skip string, skipLink int) int {
	parent := make(map[string]string, len(ids))
	var find func(string) string
	find = func(x string) string {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	for _, id := range ids {
		if id != skip {
			parent[id] = id
		}
	}
	count := len(parent)
	for i, l := range links {
		if i == skipLink || l.Involves(skip) {
			continue
		}
		ra, rb := find(l.FromID), find(l.ToID)
		if ra != rb {
			parent[ra] = rb
			count--
		}
	}
	return count
}
