package core

import (
	"fmt"

	"github.com/signalsfoundry/mesh-architect/model"
)

// CriticalCounts tallies bridges by link quality.
type CriticalCounts struct {
	Good     int `json:"good"`
	Marginal int `json:"marginal"`
	Unlikely int `json:"unlikely"`
}

// Total is the number of bridges counted.
func (c CriticalCounts) Total() int {
	return c.Good + c.Marginal + c.Unlikely
}

func (c *CriticalCounts) add(q LinkQuality) {
	switch q {
	case LinkQualityGood:
		c.Good++
	case LinkQualityMarginal:
		c.Marginal++
	case LinkQualityUnlikely:
		c.Unlikely++
	}
}

// Robustness lists the single points of failure of a mesh.
type Robustness struct {
	// SPOFNodes are articulation points in the order they were flagged.
	SPOFNodes       []model.Node   `json:"spofNodes"`
	CriticalBridges []Link         `json:"criticalBridges"`
	CriticalCounts  CriticalCounts `json:"criticalCounts"`
}

// IsSPOF reports whether id was flagged as an articulation point.
func (r *Robustness) IsSPOF(id string) bool {
	for i := range r.SPOFNodes {
		if r.SPOFNodes[i].ID == id {
			return true
		}
	}
	return false
}

type adjEdge struct {
	to   int
	link int
}

// dfsFrame is one level of the explicit DFS stack. next indexes adj[u];
// parentLink is the link used to reach u, or -1 for a tree root.
type dfsFrame struct {
	u          int
	next       int
	parentLink int
	children   int
}

// AnalyzeRobustness finds articulation points and bridges over every link,
// whatever its quality. Links referencing unknown node IDs are ignored.
// DFS roots are taken in node order and neighbours in link order, so the
// output is deterministic for a given input.
func AnalyzeRobustness(nodes []model.Node, links []Link) Robustness {
	index := make(map[string]int, len(nodes))
	for i := range nodes {
		index[nodes[i].ID] = i
	}

	adj := make([][]adjEdge, len(nodes))
	for li := range links {
		u, okU := index[links[li].FromID]
		v, okV := index[links[li].ToID]
		if !okU || !okV || u == v {
			continue
		}
		adj[u] = append(adj[u], adjEdge{to: v, link: li})
		adj[v] = append(adj[v], adjEdge{to: u, link: li})
	}

	disc := make([]int, len(nodes))
	low := make([]int, len(nodes))
	for i := range disc {
		disc[i] = -1
	}

	var (
		time      int
		stack     []dfsFrame
		flagged   = make(map[int]bool)
		spofOrder []int
		bridges   []int
	)
	flag := func(u int) {
		if !flagged[u] {
			flagged[u] = true
			spofOrder = append(spofOrder, u)
		}
	}

	for root := range nodes {
		if disc[root] != -1 {
			continue
		}
		time++
		disc[root], low[root] = time, time
		stack = append(stack[:0], dfsFrame{u: root, parentLink: -1})

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			u := top.u

			if top.next < len(adj[u]) {
				e := adj[u][top.next]
				top.next++
				if e.link == top.parentLink {
					continue
				}
				if disc[e.to] == -1 {
					top.children++
					time++
					disc[e.to], low[e.to] = time, time
					stack = append(stack, dfsFrame{u: e.to, parentLink: e.link})
				} else if disc[e.to] < low[u] {
					low[u] = disc[e.to]
				}
				continue
			}

			// u is finished; fold it into its parent.
			child := *top
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				break
			}
			parent := &stack[len(stack)-1]
			p := parent.u
			if low[child.u] < low[p] {
				low[p] = low[child.u]
			}
			isRoot := parent.parentLink == -1
			if isRoot && parent.children > 1 {
				flag(p)
			}
			if !isRoot && low[child.u] >= disc[p] {
				flag(p)
			}
			if low[child.u] > disc[p] {
				bridges = append(bridges, child.parentLink)
			}
		}
	}

	out := Robustness{
		SPOFNodes:       make([]model.Node, 0, len(spofOrder)),
		CriticalBridges: make([]Link, 0, len(bridges)),
	}
	for _, u := range spofOrder {
		out.SPOFNodes = append(out.SPOFNodes, *nodes[u].Clone())
	}
	for _, li := range bridges {
		out.CriticalBridges = append(out.CriticalBridges, links[li])
		out.CriticalCounts.add(links[li].Quality)
	}
	return out
}

// HealthPanel is the robustness readout shown next to the map.
type HealthPanel struct {
	Summary       string   `json:"summary"`
	CriticalLine  string   `json:"criticalLine"`
	SPOFLines     []string `json:"spofLines"`
	CriticalLinks []string `json:"criticalLinks"`
}

// BuildHealthPanel renders r for display. Only marginal and unlikely
// bridges are itemised.
func BuildHealthPanel(nodes []model.Node, links []Link, r Robustness) HealthPanel {
	panel := HealthPanel{
		Summary: fmt.Sprintf("Nodes %d | Links %d | Critical links flagged %d",
			len(nodes), len(links), len(r.CriticalBridges)),
		CriticalLine: fmt.Sprintf("Critical links by quality – Good %d, Marginal %d, Unlikely %d",
			r.CriticalCounts.Good, r.CriticalCounts.Marginal, r.CriticalCounts.Unlikely),
	}

	if len(r.SPOFNodes) == 0 {
		panel.SPOFLines = []string{"None detected on current good/marginal graph."}
	}
	for _, n := range r.SPOFNodes {
		panel.SPOFLines = append(panel.SPOFLines, fmt.Sprintf("%s (%s)", n.Label, n.Role))
	}

	if len(r.CriticalBridges) == 0 {
		panel.CriticalLinks = []string{"No critical links in marginal/unlikely state."}
		return panel
	}
	labels := labelIndex(nodes)
	for _, l := range r.CriticalBridges {
		if l.Quality != LinkQualityMarginal && l.Quality != LinkQualityUnlikely {
			continue
		}
		panel.CriticalLinks = append(panel.CriticalLinks, fmt.Sprintf("%s ↔ %s (%s)",
			labelOr(labels, l.FromID), labelOr(labels, l.ToID), l.Quality))
	}
	if len(panel.CriticalLinks) == 0 {
		panel.CriticalLinks = []string{"Critical links exist but are currently Good."}
	}
	return panel
}

func labelIndex(nodes []model.Node) map[string]string {
	out := make(map[string]string, len(nodes))
	for i := range nodes {
		out[nodes[i].ID] = nodes[i].Label
	}
	return out
}

func labelOr(labels map[string]string, id string) string {
	if l := labels[id]; l != "" {
		return l
	}
	return id
}
