package interchange

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/mesh-architect/core"
	"github.com/signalsfoundry/mesh-architect/model"
)

func projectFrom(t *testing.T, res *Result) Project {
	t.Helper()
	env := model.DefaultEnvironment()
	if res.Environment != nil {
		env = *res.Environment
	}
	mission := model.DefaultMission()
	if res.Mission != nil {
		mission = *res.Mission
	}
	return Project{
		Nodes:       res.Nodes,
		Links:       core.EstimateLinks(res.Nodes, env, res.Overrides),
		Environment: env,
		Mission:     mission,
		Meta:        res.Meta,
	}
}

func TestMissionProjectRoundTrip(t *testing.T) {
	first, err := Parse([]byte(missionProjectFixture), model.DefaultEnvironment())
	require.NoError(t, err)

	out, err := MarshalMissionProject(projectFrom(t, first))
	require.NoError(t, err)

	second, err := Parse(out, model.DefaultEnvironment())
	require.NoError(t, err)
	require.Equal(t, KindMissionProject, second.Kind)

	require.Len(t, second.Nodes, len(first.Nodes), "exported platforms fold back into their nodes")
	for i := range first.Nodes {
		assert.Equal(t, first.Nodes[i].ID, second.Nodes[i].ID)
		assert.Equal(t, first.Nodes[i].Role, second.Nodes[i].Role)
	}
	assert.JSONEq(t, `"CP"`, string(second.Nodes[0].Extras["callsign"]))
	assert.JSONEq(t, `"quad"`, string(second.Nodes[1].PlatformExtras["airframe"]))

	assert.JSONEq(t, `"UNCLASSIFIED"`, string(second.Meta.TopExtras["classification"]))
	assert.JSONEq(t, `"Ops"`, string(second.Meta.MissionExtras["commander"]))
	assert.JSONEq(t, `"ring"`, string(second.Meta.MeshExtras["topology_hint"]))
	assert.JSONEq(t, `"clear"`, string(second.Environment.Extras["sky"]))
	assert.JSONEq(t, `[{"id":"kit-1"}]`, string(second.Meta.Kits))
	assert.JSONEq(t, `"bring spares"`, string(second.Meta.Notes))
	assert.Equal(t, "2.0.0", second.Meta.SchemaVersion)

	ov, ok := second.Overrides.Lookup("ctl", "hawk")
	require.True(t, ok)
	assert.Equal(t, 140.0, *ov.DistanceMeters)
	assert.Equal(t, core.LOSFoliage, ov.LOS)
	assert.JSONEq(t, `true`, string(second.Meta.LinkExtras[core.LinkKey("ctl", "hawk")]["reviewed"]))
}

func TestBuildMissionProjectShape(t *testing.T) {
	env := model.DefaultEnvironment()
	env.PrimaryBand = model.Band900
	nodes := []model.Node{
		{ID: "a", Label: "Alpha", Role: model.RoleController, Band: model.Band2400, MaxRangeMeters: 450,
			Lat: model.Float(0), Lng: model.Float(0)},
		{ID: "u", Label: "Uav", Role: model.RoleUxS, Band: model.Band5800, MaxRangeMeters: 650,
			Lat: model.Float(0), Lng: model.Float(0.001),
			HeightAboveGroundMeters: model.Float(60), ElevationMeters: model.Float(10.4), BatteryHours: model.Float(1.5)},
		{ID: "g", Label: "Ghost", Role: model.RoleSensor, Band: model.Band2400, MaxRangeMeters: 260},
	}
	p := Project{
		Nodes:       nodes,
		Links:       core.EstimateLinks(nodes, env, nil),
		Environment: env,
		Mission:     model.DefaultMission(),
	}

	raw, err := MarshalMissionProject(p)
	require.NoError(t, err)

	var doc struct {
		Schema        string `json:"schema"`
		SchemaVersion string `json:"schemaVersion"`
		Mesh          struct {
			RFBands []string `json:"rf_bands"`
			Terrain string   `json:"terrain"`
		} `json:"mesh"`
		Nodes []struct {
			ID  string   `json:"id"`
			Lat *float64 `json:"lat"`
			Lon *float64 `json:"lon"`
		} `json:"nodes"`
		Platforms []struct {
			ID               string  `json:"id"`
			EnduranceMinutes float64 `json:"endurance_minutes"`
			MaxAltitudeM     float64 `json:"max_altitude_m"`
		} `json:"platforms"`
		Links []struct {
			ID             string  `json:"id"`
			DistanceM      float64 `json:"distance_m"`
			Quality        string  `json:"estimated_link_quality"`
			Band           string  `json:"band"`
			EnvironmentTag string  `json:"environment_tag"`
		} `json:"mesh_links"`
		Kits        []any `json:"kits"`
		Constraints []any `json:"constraints"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "MissionProject", doc.Schema)
	assert.Equal(t, SchemaVersion, doc.SchemaVersion)
	assert.Equal(t, []string{"900", "2.4", "5.8"}, doc.Mesh.RFBands)
	assert.Equal(t, "Urban", doc.Mesh.Terrain)

	require.Len(t, doc.Nodes, 3)
	assert.Nil(t, doc.Nodes[2].Lat, "unplaced nodes export null coordinates")
	assert.Nil(t, doc.Nodes[2].Lon)

	require.Len(t, doc.Platforms, 1)
	assert.Equal(t, "u-platform", doc.Platforms[0].ID)
	assert.Equal(t, 90.0, doc.Platforms[0].EnduranceMinutes)
	assert.Equal(t, 70.0, doc.Platforms[0].MaxAltitudeM)

	require.Len(t, doc.Links, 1, "the ghost node has no position")
	assert.Equal(t, "a-u", doc.Links[0].ID)
	assert.Equal(t, 111.0, doc.Links[0].DistanceM)
	assert.Contains(t, []string{"good", "marginal", "poor"}, doc.Links[0].Quality)
	assert.Equal(t, "900", doc.Links[0].Band)
	assert.Equal(t, "Urban-Medium", doc.Links[0].EnvironmentTag)

	assert.NotNil(t, doc.Kits)
	assert.NotNil(t, doc.Constraints)
}

func TestBuildMissionProjectKnownFieldsWin(t *testing.T) {
	meta := DefaultMeta()
	meta.TopExtras = map[string]json.RawMessage{"schema": json.RawMessage(`"Other"`), "owner": json.RawMessage(`"x"`)}
	doc := BuildMissionProject(Project{Environment: model.DefaultEnvironment(), Meta: &meta})

	assert.Equal(t, "MissionProject", doc["schema"])
	assert.Equal(t, json.RawMessage(`"x"`), doc["owner"])
	_, hasNotes := doc["notes"]
	assert.False(t, hasNotes)
}

func TestProjectMetaClone(t *testing.T) {
	meta := DefaultMeta()
	meta.LinkExtras = map[string]map[string]json.RawMessage{"a::b": {"k": json.RawMessage(`1`)}}
	c := meta.Clone()
	c.LinkExtras["a::b"]["k"] = json.RawMessage(`2`)
	assert.Equal(t, json.RawMessage(`1`), meta.LinkExtras["a::b"]["k"])

	var nilMeta *ProjectMeta
	assert.Nil(t, nilMeta.Clone())
}
