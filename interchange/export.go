package interchange

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/signalsfoundry/mesh-architect/core"
	"github.com/signalsfoundry/mesh-architect/model"
)

// SchemaVersion is the MissionProject revision written by BuildMissionProject.
const SchemaVersion = "2.0.0"

// DefaultUxSHeightMeters is assumed for UxS platforms that report no height.
const DefaultUxSHeightMeters = 50.0

const platformSuffix = "-platform"

// Project is everything the MissionProject export needs from a plan.
type Project struct {
	Nodes       []model.Node
	Links       []core.Link
	Environment model.Environment
	Mission     model.Mission
	Meta        *ProjectMeta
}

// document is a JSON object under construction. Known fields are written
// over any carried extras.
type document map[string]any

func newDocument(extras map[string]json.RawMessage) document {
	d := make(document, len(extras)+16)
	for k, v := range extras {
		d[k] = v
	}
	return d
}

// setOpt writes v only when it is non-nil.
func (d document) setOpt(key string, v *float64) {
	if v != nil {
		d[key] = *v
	}
}

func (d document) setRaw(key string, raw json.RawMessage, fallback any) {
	if isNull(raw) {
		if fallback != nil {
			d[key] = fallback
		}
		return
	}
	d[key] = raw
}

// BuildMissionProject renders p as a MissionProject document. Unknown
// fields captured on import are merged back so a round trip is lossless.
func BuildMissionProject(p Project) map[string]any {
	meta := p.Meta
	if meta == nil {
		def := DefaultMeta()
		meta = &def
	}
	schemaVersion := meta.SchemaVersion
	if schemaVersion == "" {
		schemaVersion = SchemaVersion
	}
	version := meta.Version
	if version == "" {
		version = schemaVersion
	}
	env := p.Environment

	doc := newDocument(meta.TopExtras)
	doc["schema"] = "MissionProject"
	doc["schemaVersion"] = schemaVersion
	doc["version"] = version
	doc["origin_tool"] = "mesh"
	doc["mission"] = missionDocument(p.Mission, meta.MissionExtras)
	doc["environment"] = environmentDocument(env)
	doc["mesh"] = meshDocument(p.Nodes, env, meta.MeshExtras)

	nodes := make([]document, 0, len(p.Nodes))
	platforms := make([]document, 0)
	for i := range p.Nodes {
		nodes = append(nodes, nodeDocument(&p.Nodes[i]))
		if p.Nodes[i].Role == model.RoleUxS {
			platforms = append(platforms, platformDocument(&p.Nodes[i]))
		}
	}
	doc["nodes"] = nodes
	doc["platforms"] = platforms

	links := make([]document, 0, len(p.Links))
	for i := range p.Links {
		links = append(links, linkDocument(&p.Links[i], env, meta.LinkExtras))
	}
	doc["mesh_links"] = links

	doc.setRaw("kits", meta.Kits, []any{})
	doc.setRaw("constraints", meta.Constraints, []any{})
	doc.setRaw("notes", meta.Notes, nil)
	return doc
}

// MarshalMissionProject is BuildMissionProject encoded as indented JSON.
func MarshalMissionProject(p Project) ([]byte, error) {
	out, err := json.MarshalIndent(BuildMissionProject(p), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode MissionProject: %w", err)
	}
	return out, nil
}

func missionDocument(m model.Mission, extras map[string]json.RawMessage) document {
	d := newDocument(extras)
	if m.Name != "" {
		d["name"] = m.Name
	}
	if m.Summary != "" {
		d["summary"] = m.Summary
	}
	if m.ProjectCode != "" {
		d["project_code"] = m.ProjectCode
	}
	if m.OriginTool != "" {
		d["origin_tool"] = m.OriginTool
	}
	if !isNull(m.AO) {
		d["ao"] = m.AO
	}
	if !isNull(m.Tasks) {
		d["tasks"] = m.Tasks
	}
	return d
}

func environmentDocument(env model.Environment) document {
	d := newDocument(env.Extras)
	d["terrain"] = env.Terrain
	d["ew_level"] = env.EWLevel
	d["primary_band"] = env.PrimaryBand
	d["design_radius_m"] = env.DesignRadiusMeters
	d["target_reliability_pct"] = env.TargetReliability
	d.setOpt("temperature_c", env.TemperatureC)
	d.setOpt("winds_mps", env.WindsMps)
	if env.AltitudeBand != "" {
		d["altitude_band"] = env.AltitudeBand
	}
	d["origin_tool"] = "mesh"
	return d
}

func meshDocument(nodes []model.Node, env model.Environment, extras map[string]json.RawMessage) document {
	d := newDocument(extras)
	d["rf_bands"] = rfBands(nodes, env)
	d["ew_profile"] = env.EWLevel
	d["terrain"] = env.Terrain
	d["design_radius_m"] = env.DesignRadiusMeters
	d["target_reliability_pct"] = env.TargetReliability
	return d
}

// rfBands lists the primary band first, then node bands, deduplicated.
func rfBands(nodes []model.Node, env model.Environment) []string {
	seen := make(map[model.Band]bool)
	out := make([]string, 0, 4)
	for _, b := range append([]model.Band{env.PrimaryBand}, nodeBands(nodes)...) {
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, string(b))
	}
	return out
}

func nodeBands(nodes []model.Node) []model.Band {
	out := make([]model.Band, 0, len(nodes))
	for i := range nodes {
		out = append(out, nodes[i].Band)
	}
	return out
}

func nodeDocument(n *model.Node) document {
	d := newDocument(n.Extras)
	d["id"] = n.ID
	d["label"] = n.Label
	d["role"] = n.Role
	d["band"] = n.Band
	d["lat"] = n.Lat
	d["lon"] = n.Lng
	d.setOpt("elevation_m", n.ElevationMeters)
	d.setOpt("height_agl_m", n.HeightAboveGroundMeters)
	d["max_range_m"] = n.MaxRangeMeters
	d.setOpt("power_w", n.PowerW)
	d.setOpt("battery_hours", n.BatteryHours)
	origin := n.OriginTool
	if origin == "" {
		origin = n.Source
	}
	if origin == "" {
		origin = "mesh"
	}
	d["origin_tool"] = origin
	d["relay_candidate"] = n.RelayCandidate
	carried := n.CarriedNodeIDs
	if carried == nil {
		carried = []string{}
	}
	d["carried_node_ids"] = carried
	if n.Notes != "" {
		d["notes"] = n.Notes
	}
	return d
}

func platformDocument(n *model.Node) document {
	d := newDocument(n.PlatformExtras)
	d["id"] = n.ID + platformSuffix
	d["label"] = n.Label
	d["type"] = "uxs"
	d["band"] = n.Band
	if n.BatteryHours != nil && *n.BatteryHours != 0 {
		d["endurance_minutes"] = math.Round(*n.BatteryHours * 60)
	}
	if n.HeightAboveGroundMeters != nil && *n.HeightAboveGroundMeters != 0 {
		alt := *n.HeightAboveGroundMeters
		if n.ElevationMeters != nil {
			alt += *n.ElevationMeters
		}
		d["max_altitude_m"] = math.Round(alt)
	}
	d["lat"] = n.Lat
	d["lon"] = n.Lng
	d.setOpt("elevation_m", n.ElevationMeters)
	origin := n.OriginTool
	if origin == "" {
		origin = "mesh"
	}
	d["origin_tool"] = origin
	carried := n.CarriedNodeIDs
	if carried == nil {
		carried = []string{}
	}
	d["carried_node_ids"] = carried
	return d
}

func linkDocument(l *core.Link, env model.Environment, extras map[string]map[string]json.RawMessage) document {
	d := newDocument(extras[l.Key()])
	distance := math.Round(l.DistanceMeters)
	quality := l.Quality.ExportLabel()
	d["id"] = l.FromID + "-" + l.ToID
	d["from_id"] = l.FromID
	d["to_id"] = l.ToID
	d["distance_m"] = distance
	d["los"] = l.LOS
	d["estimated_link_quality"] = quality
	d["estimated_link_quality_label"] = quality
	d["link_margin_db"] = math.Round(l.MarginDb)
	d["estimated_range"] = distance
	d["band"] = env.PrimaryBand
	d["environment_tag"] = env.Tag()
	d["origin_tool"] = "mesh"
	return d
}
