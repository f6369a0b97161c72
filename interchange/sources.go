package interchange

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/signalsfoundry/mesh-architect/core"
	"github.com/signalsfoundry/mesh-architect/model"
)

// Keys every node-shaped record may use, under their alternate spellings.
var baseNodeKeys = []string{
	"id", "label", "name", "role", "band",
	"lat", "lon", "lng", "latitude", "longitude",
	"elevation_m", "elevationMeters", "altitudeMeters",
	"height_agl_m", "heightAboveGroundMeters", "mastHeightMeters",
	"max_range_m", "maxRangeMeters",
	"battery_hours", "batteryHours", "power_w", "powerW",
	"origin_tool", "source", "notes",
	"relay_candidate", "relayCandidate", "isAirborne",
	"carried_node_ids", "carriedNodeIds",
}

var (
	nodeArchitectKeys = keySet(append([]string{"weight"}, baseNodeKeys...)...)
	uxsArchitectKeys  = keySet(baseNodeKeys...)
	meshNodeKeys      = keySet(append([]string{"x", "y", "unplaced"}, baseNodeKeys...)...)
	missionNodeKeys   = keySet(baseNodeKeys...)
	platformKeys      = keySet(
		"id", "label", "name", "type", "band",
		"lat", "lon", "lng", "latitude", "longitude",
		"elevation_m", "elevationMeters",
		"max_altitude_m", "heightAboveGroundMeters", "height_agl_m",
		"origin_tool", "carried_node_ids", "carriedNodeIds",
		"isAirborne", "endurance_minutes", "battery_hours",
	)
	missionEnvKeys = keySet(
		"terrain", "terrainType", "ew_level", "ewLevel", "primary_band", "primaryBand",
		"design_radius_m", "target_reliability_pct", "temperature_c", "winds_mps",
		"altitude_band", "origin_tool",
	)
	missionKeys = keySet("name", "summary", "project_code", "ao", "tasks", "origin_tool")
	topKeys     = keySet(
		"schema", "schemaVersion", "version", "origin_tool", "mission", "environment",
		"mesh", "nodes", "platforms", "mesh_links", "kits", "constraints", "notes",
	)
	// Mesh keys recomputed on export; the rest round-trip as extras.
	meshComputedKeys = keySet("rf_bands", "ew_profile", "terrain", "design_radius_m", "target_reliability_pct")
	linkKeys         = keySet(
		"id", "from_id", "to_id", "distance_m", "los",
		"estimated_link_quality", "estimated_link_quality_label", "link_margin_db",
		"estimated_range", "assumed_band", "band", "environment_tag", "origin_tool", "quality",
	)
)

// readNode fills the fields shared by every node-shaped source record.
func readNode(o object, n *model.Node, current model.Environment) error {
	var err error
	if n.Band, err = normalizeBand(o, current); err != nil {
		return err
	}
	if n.MaxRangeMeters, err = rangeOr(o, n.Role, "max_range_m", "maxRangeMeters"); err != nil {
		return err
	}
	if n.Lat, n.Lng, err = position(o); err != nil {
		return err
	}
	if n.ElevationMeters, err = o.num("elevation_m", "elevationMeters", "altitudeMeters"); err != nil {
		return err
	}
	if n.HeightAboveGroundMeters, err = o.num("height_agl_m", "heightAboveGroundMeters", "mastHeightMeters"); err != nil {
		return err
	}
	if n.BatteryHours, err = o.num("battery_hours", "batteryHours"); err != nil {
		return err
	}
	if n.PowerW, err = o.num("power_w", "powerW"); err != nil {
		return err
	}
	if n.Notes, err = o.str("notes"); err != nil {
		return err
	}
	if n.CarriedNodeIDs, err = o.strs("carried_node_ids", "carriedNodeIds"); err != nil {
		return err
	}
	relay, err := o.flag("relay_candidate", "relayCandidate")
	if err != nil {
		return err
	}
	n.RelayCandidate = boolOr(relay)
	airborne, err := o.flag("isAirborne")
	if err != nil {
		return err
	}
	n.IsAirborne = boolOr(airborne)
	return nil
}

// identity resolves id and label with their fallbacks.
func identity(o object, prefix, labelFallback string) (id, label string, err error) {
	rawID, err := o.str("id")
	if err != nil {
		return "", "", err
	}
	label, err = o.str("label", "name")
	if err != nil {
		return "", "", err
	}
	if label == "" {
		label = rawID
	}
	if label == "" {
		label = labelFallback
	}
	id = rawID
	if id == "" {
		id = newID(prefix)
	}
	return id, label, nil
}

func parseNodeArchitect(root object, current model.Environment) (*Result, error) {
	items, ok := root.array("nodes")
	if !ok {
		return nil, fmt.Errorf("%w: expected NodeArchitect JSON with a nodes array", ErrMalformed)
	}
	objs, err := decodeItems(items, "nodes")
	if err != nil {
		return nil, err
	}

	res := &Result{Kind: KindNodeArchitect, Nodes: make([]model.Node, 0, len(objs))}
	for idx, o := range objs {
		var n model.Node
		if n.ID, n.Label, err = identity(o, "node", fmt.Sprintf("Node %d", idx+1)); err != nil {
			return nil, err
		}
		if n.Role, err = normalizeRole(o, model.RoleSensor); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		if err := readNode(o, &n, current); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		weight, err := o.num("weight")
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		n.RelayCandidate = n.Role == model.RoleRelay || (weight != nil && *weight >= 2)
		n.Source = "nodeArchitect"
		n.OriginTool = "node"
		n.Extras = o.extras(nodeArchitectKeys)
		res.Nodes = append(res.Nodes, n)
	}
	return res, nil
}

func parseUxSArchitect(root object, current model.Environment) (*Result, error) {
	items, ok := root.array("uxsPlatforms")
	if !ok {
		return nil, fmt.Errorf("%w: expected UxSArchitect JSON with a uxsPlatforms array", ErrMalformed)
	}
	objs, err := decodeItems(items, "uxsPlatforms")
	if err != nil {
		return nil, err
	}

	res := &Result{Kind: KindUxSArchitect, Nodes: make([]model.Node, 0, len(objs))}
	for idx, o := range objs {
		n := model.Node{Role: model.RoleUxS}
		if n.ID, n.Label, err = identity(o, "uxs", fmt.Sprintf("UxS %d", idx+1)); err != nil {
			return nil, err
		}
		if err := readNode(o, &n, current); err != nil {
			return nil, fmt.Errorf("uxs %q: %w", n.ID, err)
		}
		if n.HeightAboveGroundMeters == nil {
			n.HeightAboveGroundMeters = model.Float(DefaultUxSHeightMeters)
		}
		if n.CarriedNodeIDs == nil {
			n.CarriedNodeIDs = []string{}
		}
		n.IsAirborne = true
		n.Source = "uxsArchitect"
		n.OriginTool = "uxs"
		n.Extras = o.extras(uxsArchitectKeys)
		res.Nodes = append(res.Nodes, n)
	}
	return res, nil
}

func parseMeshArchitect(root object, current model.Environment) (*Result, error) {
	items, isArray := root.array("nodes")
	if !root.present("meshVersion") && !isArray {
		return nil, fmt.Errorf("%w: expected Mesh Architect JSON with meshVersion or nodes", ErrMalformed)
	}
	objs, err := decodeItems(items, "nodes")
	if err != nil {
		return nil, err
	}

	res := &Result{Kind: KindMeshArchitect, Nodes: make([]model.Node, 0, len(objs))}
	for _, o := range objs {
		var n model.Node
		if n.ID, n.Label, err = identity(o, "node", "Node"); err != nil {
			return nil, err
		}
		if n.Role, err = normalizeRole(o, model.RoleSensor); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		if err := readNode(o, &n, current); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		if err := mapNormalizedPosition(o, &n); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		if n.Source, err = o.str("source"); err != nil {
			return nil, err
		}
		origin, err := o.str("origin_tool", "source")
		if err != nil {
			return nil, err
		}
		if n.Source == "" {
			n.Source = "meshImport"
		}
		if origin == "" {
			origin = "mesh"
		}
		n.OriginTool = origin
		n.Extras = o.extras(meshNodeKeys)
		res.Nodes = append(res.Nodes, n)
	}

	if root.present("environment") {
		envObj, err := root.sub("environment")
		if err != nil {
			return nil, err
		}
		env, err := mergeEnvironment(envObj, current, envAliases{
			terrain:     []string{"terrain"},
			ew:          []string{"ewLevel"},
			band:        []string{"primaryBand"},
			radius:      []string{"designRadiusMeters"},
			reliability: []string{"targetReliability"},
		})
		if err != nil {
			return nil, err
		}
		res.Environment = &env
	}
	return res, nil
}

// mapNormalizedPosition places nodes that carry canvas x/y fractions but no
// coordinates in a small square around the default centre.
func mapNormalizedPosition(o object, n *model.Node) error {
	if n.HasPosition() || (!o.present("x") && !o.present("y")) {
		return nil
	}
	x, err := o.num("x")
	if err != nil {
		return err
	}
	y, err := o.num("y")
	if err != nil {
		return err
	}
	fx, fy := 0.5, 0.5
	if x != nil {
		fx = *x
	}
	if y != nil {
		fy = *y
	}
	n.Lat = model.Float(DefaultCenter.Lat + (fy-0.5)*normalizedSpanDeg)
	n.Lng = model.Float(DefaultCenter.Lng + (fx-0.5)*normalizedSpanDeg)
	n.Unplaced = true
	return nil
}

type envAliases struct {
	terrain, ew, band, radius, reliability []string
}

// mergeEnvironment overlays the keys present in o onto current.
func mergeEnvironment(o object, current model.Environment, keys envAliases) (model.Environment, error) {
	env := current.Clone()

	terrain, err := o.str(keys.terrain...)
	if err != nil {
		return env, err
	}
	if terrain != "" {
		env.Terrain = model.NormalizeTerrain(terrain)
	}
	ew, err := o.str(keys.ew...)
	if err != nil {
		return env, err
	}
	if ew != "" {
		env.EWLevel = model.NormalizeEWLevel(ew)
	}
	band, err := o.token(keys.band...)
	if err != nil {
		return env, err
	}
	if band != "" {
		if env.PrimaryBand, err = model.ParseBand(band); err != nil {
			return env, fmt.Errorf("environment: %w", err)
		}
	}
	if v, err := o.num(keys.radius...); err != nil {
		return env, err
	} else if v != nil && *v > 0 {
		env.DesignRadiusMeters = *v
	}
	if v, err := o.num(keys.reliability...); err != nil {
		return env, err
	} else if v != nil && *v > 0 {
		env.TargetReliability = *v
	}
	return env, nil
}

func parseMissionProject(root object, current model.Environment) (*Result, error) {
	schema, err := root.str("schema")
	if err != nil || schema != "MissionProject" {
		return nil, fmt.Errorf("%w: expected MissionProject schema JSON", ErrMalformed)
	}

	version, err := root.token("version", "schemaVersion")
	if err != nil {
		return nil, err
	}
	if version != "" {
		if v, ok := leadingFloat(version); ok && v < 1.0 {
			return nil, fmt.Errorf("%w %s; expected 1.0 or newer", ErrUnsupportedVersion, version)
		}
	}
	schemaVersion, err := root.token("schemaVersion")
	if err != nil {
		return nil, err
	}
	if schemaVersion == "" {
		schemaVersion = version
	}
	if schemaVersion == "" {
		schemaVersion = SchemaVersion
	}
	if version == "" {
		version = schemaVersion
	}
	topOrigin, err := root.str("origin_tool")
	if err != nil {
		return nil, err
	}

	meta := &ProjectMeta{
		SchemaVersion: schemaVersion,
		Version:       version,
		TopExtras:     root.extras(topKeys),
		Kits:          append(json.RawMessage(nil), root["kits"]...),
		Constraints:   append(json.RawMessage(nil), root["constraints"]...),
		Notes:         append(json.RawMessage(nil), root["notes"]...),
	}
	res := &Result{Kind: KindMissionProject, Meta: meta}

	envObj, err := root.sub("environment")
	if err != nil {
		return nil, err
	}
	env, err := mergeEnvironment(envObj, current, envAliases{
		terrain:     []string{"terrain", "terrainType"},
		ew:          []string{"ew_level", "ewLevel"},
		band:        []string{"primary_band", "primaryBand"},
		radius:      []string{"design_radius_m"},
		reliability: []string{"target_reliability_pct"},
	})
	if err != nil {
		return nil, err
	}
	if env.TemperatureC, err = envObj.num("temperature_c"); err != nil {
		return nil, err
	}
	if env.WindsMps, err = envObj.num("winds_mps"); err != nil {
		return nil, err
	}
	if env.AltitudeBand, err = envObj.str("altitude_band"); err != nil {
		return nil, err
	}
	env.Extras = envObj.extras(missionEnvKeys)
	res.Environment = &env

	if root.present("mission") {
		mObj, err := root.sub("mission")
		if err != nil {
			return nil, err
		}
		mission, err := readMission(mObj)
		if err != nil {
			return nil, err
		}
		res.Mission = &mission
		meta.MissionExtras = mObj.extras(missionKeys)
	}

	if root.present("mesh") {
		meshObj, err := root.sub("mesh")
		if err != nil {
			return nil, err
		}
		meta.MeshExtras = meshObj.extras(meshComputedKeys)
	}

	nodeItems, _ := root.array("nodes")
	nodeObjs, err := decodeItems(nodeItems, "nodes")
	if err != nil {
		return nil, err
	}
	uxsIndex := make(map[string]int)
	for _, o := range nodeObjs {
		var n model.Node
		if n.ID, n.Label, err = identity(o, "node", "Node"); err != nil {
			return nil, err
		}
		if n.Role, err = normalizeRole(o, model.RoleSensor); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		if err := readNode(o, &n, current); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		if n.Source, err = o.str("source"); err != nil {
			return nil, err
		}
		origin, err := o.str("origin_tool", "source")
		if err != nil {
			return nil, err
		}
		if origin == "" {
			origin = topOrigin
		}
		if origin == "" {
			origin = "mesh"
		}
		n.OriginTool = origin
		if n.CarriedNodeIDs == nil {
			n.CarriedNodeIDs = []string{}
		}
		n.Extras = o.extras(missionNodeKeys)
		if n.Role == model.RoleUxS {
			uxsIndex[n.ID] = len(res.Nodes)
		}
		res.Nodes = append(res.Nodes, n)
	}

	platformItems, _ := root.array("platforms")
	platformObjs, err := decodeItems(platformItems, "platforms")
	if err != nil {
		return nil, err
	}
	for idx, o := range platformObjs {
		rawID, err := o.str("id")
		if err != nil {
			return nil, err
		}
		// Our own exports describe each uxs node again as "<id>-platform";
		// fold those back into the node instead of duplicating it.
		if base, ok := strings.CutSuffix(rawID, platformSuffix); ok {
			if i, found := uxsIndex[base]; found {
				res.Nodes[i].PlatformExtras = o.extras(platformKeys)
				continue
			}
		}

		n := model.Node{Role: model.RoleUxS, IsAirborne: true}
		if n.ID, n.Label, err = identity(o, "uxs", fmt.Sprintf("Platform %d", idx+1)); err != nil {
			return nil, err
		}
		band, err := o.token("band")
		if err != nil {
			return nil, err
		}
		if band == "" {
			if band, err = envObj.token("primary_band"); err != nil {
				return nil, err
			}
		}
		if n.Band, err = resolveBand(band, current); err != nil {
			return nil, fmt.Errorf("platform %q: %w", n.ID, err)
		}
		n.MaxRangeMeters = model.RoleUxS.DefaultRangeMeters()
		if n.Lat, n.Lng, err = position(o); err != nil {
			return nil, err
		}
		if n.ElevationMeters, err = o.num("elevation_m", "elevationMeters"); err != nil {
			return nil, err
		}
		if n.HeightAboveGroundMeters, err = o.num("max_altitude_m", "heightAboveGroundMeters", "height_agl_m"); err != nil {
			return nil, err
		}
		if n.CarriedNodeIDs, err = o.strs("carried_node_ids", "carriedNodeIds"); err != nil {
			return nil, err
		}
		if n.CarriedNodeIDs == nil {
			n.CarriedNodeIDs = []string{}
		}
		if n.OriginTool, err = o.str("origin_tool"); err != nil {
			return nil, err
		}
		if n.OriginTool == "" {
			n.OriginTool = "uxs"
		}
		n.PlatformExtras = o.extras(platformKeys)
		res.Nodes = append(res.Nodes, n)
	}

	linkItems, _ := root.array("mesh_links")
	linkObjs, err := decodeItems(linkItems, "mesh_links")
	if err != nil {
		return nil, err
	}
	for _, o := range linkObjs {
		from, err := o.str("from_id")
		if err != nil {
			return nil, err
		}
		to, err := o.str("to_id")
		if err != nil {
			return nil, err
		}
		if from == "" || to == "" || from == to {
			continue
		}
		key := core.LinkKey(from, to)

		var ov core.LinkOverride
		d, err := o.num("distance_m")
		if err != nil {
			return nil, err
		}
		if d != nil && *d > 0 {
			ov.DistanceMeters = d
		}
		los, err := o.str("los")
		if err != nil {
			return nil, err
		}
		if los == "" {
			los = string(core.LOSClear)
		}
		ov.LOS = core.LOSClass(los)
		if err := ov.Validate(); err != nil {
			return nil, fmt.Errorf("%w: mesh link %s: %v", ErrMalformed, key, err)
		}
		if res.Overrides == nil {
			res.Overrides = make(core.Overrides)
		}
		res.Overrides[key] = ov

		if extras := o.extras(linkKeys); extras != nil {
			if meta.LinkExtras == nil {
				meta.LinkExtras = make(map[string]map[string]json.RawMessage)
			}
			meta.LinkExtras[key] = extras
		}
	}
	return res, nil
}

func readMission(o object) (model.Mission, error) {
	var m model.Mission
	var err error
	if m.Name, err = o.str("name"); err != nil {
		return m, err
	}
	if m.Summary, err = o.str("summary"); err != nil {
		return m, err
	}
	if m.ProjectCode, err = o.str("project_code"); err != nil {
		return m, err
	}
	if m.OriginTool, err = o.str("origin_tool"); err != nil {
		return m, err
	}
	if o.present("ao") {
		m.AO = append(json.RawMessage(nil), o["ao"]...)
	}
	if o.present("tasks") {
		m.Tasks = append(json.RawMessage(nil), o["tasks"]...)
	}
	return m, nil
}
