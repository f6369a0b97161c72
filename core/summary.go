package core

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/signalsfoundry/mesh-architect/model"
)

// Health labels.
const (
	HealthRobust   = "Robust"
	HealthMarginal = "Marginal"
	HealthFragile  = "Fragile"
)

// Risk tags.
const (
	RiskOK    = "OK"
	RiskWatch = "Watch"
	RiskIssue = "Issue"
)

const (
	robustShare   = 0.7
	marginalShare = 0.4

	riskWatchScore = 1.3
	riskIssueScore = 1.7

	gapShare         = 0.3
	nearLimitRatio   = 0.8
	relayRadiusShare = 0.5
)

var friendlyOrigins = map[string]string{
	"mesh":          "Mesh Architect",
	"node":          "Node Architect",
	"nodearchitect": "Node Architect",
	"uxs":           "UxS Architect",
	"uxsarchitect":  "UxS Architect",
	"mission":       "Mission Architect",
	"demo":          "Demo preset",
	"whitefrost":    "WHITEFROST preset",
}

// QualityCounts tallies links by quality.
type QualityCounts struct {
	Good     int `json:"good"`
	Marginal int `json:"marginal"`
	Unlikely int `json:"unlikely"`
}

// CountQualities tallies links.
func CountQualities(links []Link) QualityCounts {
	var c QualityCounts
	for i := range links {
		switch links[i].Quality {
		case LinkQualityGood:
			c.Good++
		case LinkQualityMarginal:
			c.Marginal++
		case LinkQualityUnlikely:
			c.Unlikely++
		}
	}
	return c
}

// ViableShare is (good+marginal)/links with the denominator floored at 1.
func ViableShare(links []Link) float64 {
	c := CountQualities(links)
	return float64(c.Good+c.Marginal) / math.Max(float64(len(links)), 1)
}

// HealthLabel classifies the viable link share.
func HealthLabel(links []Link) string {
	share := ViableShare(links)
	switch {
	case share >= robustShare:
		return HealthRobust
	case share >= marginalShare:
		return HealthMarginal
	default:
		return HealthFragile
	}
}

// RiskTag grades how much the environment shrinks radio range.
func RiskTag(env model.Environment) string {
	score := (1 / env.Terrain.Multiplier()) * (1 / env.EWLevel.Multiplier())
	switch {
	case score < riskWatchScore:
		return RiskOK
	case score < riskIssueScore:
		return RiskWatch
	default:
		return RiskIssue
	}
}

// HealthText is the one-line network verdict.
func HealthText(nodes []model.Node, links []Link, env model.Environment) string {
	if len(nodes) == 0 {
		return "Network is waiting for nodes."
	}
	return fmt.Sprintf("Network is %s under current assumptions. EW/Terrain risk: %s.",
		HealthLabel(links), RiskTag(env))
}

// Recommendation summarises relay coverage and the next planning step.
func Recommendation(nodes []model.Node, links []Link, env model.Environment) string {
	var relays, candidates, airborne, controllers int
	for i := range nodes {
		n := &nodes[i]
		if n.Role.IsRelay() {
			relays++
		}
		if n.RelayCandidate {
			candidates++
		}
		if n.IsAirborne || n.Role == model.RoleUxS {
			airborne++
		}
		if n.Role == model.RoleController {
			controllers++
		}
	}
	c := CountQualities(links)
	viable := c.Good + c.Marginal
	weak := len(links) - viable

	var b strings.Builder
	fmt.Fprintf(&b, "Relays: %d (candidates %d", relays, candidates)
	if airborne > 0 {
		fmt.Fprintf(&b, ", airborne %d", airborne)
	}
	fmt.Fprintf(&b, "). Controllers/Gateways: %d. ", controllers)
	if env.EWLevel.Contested() {
		b.WriteString("High EW: prioritize redundancy and frequency diversity. ")
	}
	switch {
	case viable == 0 && len(nodes) > 1:
		b.WriteString("Isolated nodes detected. Add a relay to stitch the mesh.")
	case float64(weak) > float64(len(links))*gapShare:
		b.WriteString("Large coverage gaps; add perimeter relays or tighten spacing.")
	default:
		b.WriteString("Core mesh is stable; evaluate edge clients for resiliency.")
	}
	return b.String()
}

// CoverageHints flags isolated nodes and a layout stretched near range
// limits.
func CoverageHints(nodes []model.Node, links []Link) []string {
	var hints []string
	for i := range nodes {
		n := &nodes[i]
		viable := false
		for j := range links {
			if links[j].Involves(n.ID) && links[j].Quality.Viable() {
				viable = true
				break
			}
		}
		if !viable {
			hints = append(hints, fmt.Sprintf("%s is isolated; add a relay within ~%d m.",
				n.Label, int(math.Round(n.MaxRangeMeters*relayRadiusShare))))
		}
	}

	if len(links) > 0 {
		var sum float64
		for i := range links {
			sum += links[i].RangeRatio
		}
		if sum/float64(len(links)) > nearLimitRatio {
			hints = append(hints, "Most links are near range limits; tighten spacing or add relays.")
		}
	}
	if len(hints) == 0 {
		hints = append(hints, "No major blind spots detected at current layout.")
	}
	return hints
}

// CountsLine renders nodes by role, bands in use and links by quality.
func CountsLine(nodes []model.Node, links []Link, env model.Environment) string {
	roles := make(map[model.Role]int)
	for i := range nodes {
		roles[nodes[i].Role]++
	}
	c := CountQualities(links)

	bandList := bandsInUse(nodes, env)
	bands := "n/a"
	if len(bandList) > 0 {
		bands = strings.Join(bandList, ", ")
	}

	return fmt.Sprintf("Nodes %d (Ctrl %d • Relays %d • UxS %d • Sensors %d • Clients %d) | Bands %s | Links %d (Good %d • Marginal %d • Unlikely %d)",
		len(nodes),
		roles[model.RoleController], roles[model.RoleRelay], roles[model.RoleUxS],
		roles[model.RoleSensor], roles[model.RoleClient],
		bands,
		len(links), c.Good, c.Marginal, c.Unlikely)
}

// bandsInUse lists the primary band first, then node bands, deduplicated.
func bandsInUse(nodes []model.Node, env model.Environment) []string {
	seen := make(map[model.Band]bool)
	var out []string
	add := func(b model.Band) {
		if b == "" || seen[b] {
			return
		}
		seen[b] = true
		out = append(out, string(b))
	}
	add(env.PrimaryBand)
	for i := range nodes {
		add(nodes[i].Band)
	}
	return out
}

// OriginSummary groups nodes by provenance in first-seen order.
func OriginSummary(nodes []model.Node) string {
	if len(nodes) == 0 {
		return "Origin summary will appear after import or placement."
	}
	counts := make(map[string]int)
	var order []string
	for i := range nodes {
		key := strings.ToLower(nodes[i].Origin())
		if _, ok := counts[key]; !ok {
			order = append(order, key)
		}
		counts[key]++
	}
	parts := make([]string, 0, len(order))
	for _, key := range order {
		parts = append(parts, fmt.Sprintf("%s: %d", originLabel(key), counts[key]))
	}
	return "Nodes by origin_tool — " + strings.Join(parts, ", ")
}

func originLabel(key string) string {
	if l, ok := friendlyOrigins[key]; ok {
		return l
	}
	if key == "" {
		return key
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

// ReliabilityNote warns when the viable link share is under the planning
// target. It returns "" when there is nothing to report.
func ReliabilityNote(nodes []model.Node, links []Link, env model.Environment) string {
	if len(nodes) == 0 || env.TargetReliability <= 0 {
		return ""
	}
	pct := ViableShare(links) * 100
	if pct >= env.TargetReliability {
		return ""
	}
	return fmt.Sprintf("Viable link share %.0f%% is below the %.0f%% reliability target.",
		pct, env.TargetReliability)
}

// SortForDisplay orders links best quality first, then longest first.
// The input slice is not modified.
func SortForDisplay(links []Link) []Link {
	out := append([]Link(nil), links...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := qualityRank(out[i].Quality), qualityRank(out[j].Quality)
		if ri != rj {
			return ri > rj
		}
		return out[i].DistanceMeters > out[j].DistanceMeters
	})
	return out
}

func qualityRank(q LinkQuality) int {
	switch q {
	case LinkQualityGood:
		return 3
	case LinkQualityMarginal:
		return 2
	case LinkQualityUnlikely:
		return 1
	default:
		return 0
	}
}

// Summary bundles every display string derived from one analysis pass.
type Summary struct {
	Health         string      `json:"health"`
	HealthLabel    string      `json:"healthLabel"`
	Risk           string      `json:"risk"`
	Recommendation string      `json:"recommendation"`
	CoverageHints  []string    `json:"coverageHints"`
	Counts         string      `json:"counts"`
	Origins        string      `json:"origins"`
	Reliability    string      `json:"reliability,omitempty"`
	Panel          HealthPanel `json:"panel"`
}

// Summarize renders the full summary for one snapshot.
func Summarize(nodes []model.Node, links []Link, env model.Environment, r Robustness) Summary {
	return Summary{
		Health:         HealthText(nodes, links, env),
		HealthLabel:    HealthLabel(links),
		Risk:           RiskTag(env),
		Recommendation: Recommendation(nodes, links, env),
		CoverageHints:  CoverageHints(nodes, links),
		Counts:         CountsLine(nodes, links, env),
		Origins:        OriginSummary(nodes),
		Reliability:    ReliabilityNote(nodes, links, env),
		Panel:          BuildHealthPanel(nodes, links, r),
	}
}
