package interchange

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/mesh-architect/core"
	"github.com/signalsfoundry/mesh-architect/model"
)

func TestDetect(t *testing.T) {
	cases := map[string]Kind{
		`{"source":"NodeArchitect","nodes":[]}`:   KindNodeArchitect,
		`{"source":"UxSArchitect"}`:               KindUxSArchitect,
		`{"schema":"MissionProject","nodes":[]}`:  KindMissionProject,
		`{"meshVersion":"0.1"}`:                   KindMeshArchitect,
		`{"environment":{"terrain":"Open"}}`:      KindMeshArchitect,
		`{"nodes":[{"id":"a"}]}`:                  KindMeshArchitect,
		`{"source":"NodeArchitect","schema":"x"}`: KindNodeArchitect,
	}
	for payload, want := range cases {
		got, err := Detect([]byte(payload))
		require.NoError(t, err, payload)
		assert.Equal(t, want, got, payload)
	}

	_, err := Detect([]byte(`{"hello":"world"}`))
	assert.ErrorIs(t, err, ErrUnsupportedPayload)
	_, err = Detect([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseNodeArchitect(t *testing.T) {
	payload := `{
	  "source": "NodeArchitect",
	  "nodes": [
	    {"id": "n1", "label": "Mast", "role": "Relay", "band": 5.8, "lat": 1, "lng": 2, "mastHeightMeters": 12, "color": "red"},
	    {"id": "n2", "weight": 2},
	    {"role": "client", "maxRangeMeters": 0}
	  ]
	}`
	env := model.DefaultEnvironment()
	env.PrimaryBand = model.Band900

	res, err := Parse([]byte(payload), env)
	require.NoError(t, err)
	require.Equal(t, KindNodeArchitect, res.Kind)
	require.Len(t, res.Nodes, 3)

	mast := res.Nodes[0]
	assert.Equal(t, model.RoleRelay, mast.Role)
	assert.Equal(t, model.Band5800, mast.Band)
	assert.True(t, mast.RelayCandidate)
	assert.Equal(t, 12.0, *mast.HeightAboveGroundMeters)
	assert.Equal(t, "node", mast.OriginTool)
	assert.Equal(t, "nodeArchitect", mast.Source)
	assert.JSONEq(t, `"red"`, string(mast.Extras["color"]))

	sensor := res.Nodes[1]
	assert.Equal(t, model.RoleSensor, sensor.Role)
	assert.Equal(t, model.Band900, sensor.Band, "missing band falls back to the primary band")
	assert.True(t, sensor.RelayCandidate, "weight >= 2 marks a relay candidate")
	assert.Equal(t, 260.0, sensor.MaxRangeMeters)
	assert.Nil(t, sensor.Extras, "weight is consumed, not an extra")

	anon := res.Nodes[2]
	assert.True(t, strings.HasPrefix(anon.ID, "node-"), anon.ID)
	assert.Equal(t, "Node 3", anon.Label)
	assert.Equal(t, 180.0, anon.MaxRangeMeters)
	assert.False(t, anon.HasPosition())
}

func TestParseRejectsInvalidEnums(t *testing.T) {
	env := model.DefaultEnvironment()

	_, err := Parse([]byte(`{"source":"NodeArchitect","nodes":[{"id":"x","role":"gateway"}]}`), env)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidRole))
	assert.Contains(t, err.Error(), "gateway")

	_, err = Parse([]byte(`{"nodes":[{"id":"x","band":"915"}]}`), env)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidBand))
	assert.Contains(t, err.Error(), "915")
}

func TestParseRejectsDuplicateIDs(t *testing.T) {
	_, err := Parse([]byte(`{"nodes":[{"id":"a"},{"id":"a"}]}`), model.DefaultEnvironment())
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseRejectsBadCoordinates(t *testing.T) {
	_, err := Parse([]byte(`{"nodes":[{"id":"a","lat":95,"lng":0}]}`), model.DefaultEnvironment())
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Parse([]byte(`{"nodes":[{"id":"a","lat":"north"}]}`), model.DefaultEnvironment())
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseUxSArchitect(t *testing.T) {
	payload := `{"source":"UxSArchitect","uxsPlatforms":[
	  {"id":"u1","band":"1.2","carriedNodeIds":["n1"]},
	  {"label":"Hawk","heightAboveGroundMeters":120}
	]}`
	res, err := Parse([]byte(payload), model.DefaultEnvironment())
	require.NoError(t, err)
	require.Len(t, res.Nodes, 2)

	u1 := res.Nodes[0]
	assert.Equal(t, model.RoleUxS, u1.Role)
	assert.Equal(t, model.Band1200, u1.Band)
	assert.Equal(t, DefaultUxSHeightMeters, *u1.HeightAboveGroundMeters)
	assert.True(t, u1.IsAirborne)
	assert.Equal(t, []string{"n1"}, u1.CarriedNodeIDs)
	assert.Equal(t, 650.0, u1.MaxRangeMeters)
	assert.Equal(t, "uxs", u1.OriginTool)

	hawk := res.Nodes[1]
	assert.Equal(t, "Hawk", hawk.Label)
	assert.Equal(t, 120.0, *hawk.HeightAboveGroundMeters)
	assert.True(t, strings.HasPrefix(hawk.ID, "uxs-"))

	_, err = Parse([]byte(`{"source":"UxSArchitect","uxsPlatforms":{}}`), model.DefaultEnvironment())
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseMeshArchitect(t *testing.T) {
	payload := `{
	  "meshVersion": "0.3",
	  "environment": {"terrain": "dense urban", "ewLevel": "High", "primaryBand": "5.8", "designRadiusMeters": 500},
	  "nodes": [
	    {"id": "a", "role": "controller", "lat": 10, "lng": 20, "origin_tool": "whitefrost"},
	    {"id": "b", "x": 1, "y": 0}
	  ]
	}`
	res, err := Parse([]byte(payload), model.DefaultEnvironment())
	require.NoError(t, err)
	require.NotNil(t, res.Environment)

	env := res.Environment
	assert.Equal(t, model.TerrainDenseUrban, env.Terrain)
	assert.Equal(t, model.EWHigh, env.EWLevel)
	assert.Equal(t, model.Band5800, env.PrimaryBand)
	assert.Equal(t, 500.0, env.DesignRadiusMeters)
	assert.Equal(t, 80.0, env.TargetReliability, "absent keys keep the current value")

	a := res.Nodes[0]
	assert.Equal(t, "whitefrost", a.OriginTool)
	assert.Equal(t, "meshImport", a.Source)

	b := res.Nodes[1]
	require.True(t, b.HasPosition())
	assert.True(t, b.Unplaced)
	assert.InDelta(t, DefaultCenter.Lat-0.001, *b.Lat, 1e-12)
	assert.InDelta(t, DefaultCenter.Lng+0.001, *b.Lng, 1e-12)

	res, err = Parse([]byte(`{"environment":{"terrain":"swamp"}}`), model.DefaultEnvironment())
	require.NoError(t, err)
	assert.Equal(t, model.Terrain("swamp"), res.Environment.Terrain)
}

func TestParseKeepsUnknownTerrainNeutral(t *testing.T) {
	payload := `{
	  "schema": "MissionProject",
	  "version": "2.0.0",
	  "environment": {"terrain": "Desert", "ew_level": "Jammed"},
	  "nodes": [{"id": "r1", "role": "relay", "band": "2.4", "max_range_m": 400, "lat": 1, "lng": 2}]
	}`
	res, err := Parse([]byte(payload), model.DefaultEnvironment())
	require.NoError(t, err)
	require.NotNil(t, res.Environment)
	require.Len(t, res.Nodes, 1)

	env := *res.Environment
	assert.Equal(t, model.Terrain("Desert"), env.Terrain)
	assert.Equal(t, model.EWLevel("Jammed"), env.EWLevel)
	assert.NoError(t, env.Validate())
	assert.InDelta(t, 400.0, core.RawEffectiveRangeMeters(&res.Nodes[0], env), 1e-9,
		"unknown terrain and EW scale range by 1")

	res, err = Parse([]byte(`{"meshVersion":"1","environment":{"terrain":"Desert"},"nodes":[]}`), model.DefaultEnvironment())
	require.NoError(t, err)
	assert.Equal(t, model.Terrain("Desert"), res.Environment.Terrain)
	assert.Equal(t, model.EWMedium, res.Environment.EWLevel, "absent EW keeps the current level")
	n := model.Node{ID: "x", Role: model.RoleRelay, Band: model.Band2400, MaxRangeMeters: 400}
	assert.InDelta(t, 400*model.EWMedium.Multiplier(), core.RawEffectiveRangeMeters(&n, *res.Environment), 1e-9)
}

func TestParseMissionProjectVersionGate(t *testing.T) {
	_, err := Parse([]byte(`{"schema":"MissionProject","version":"0.9"}`), model.DefaultEnvironment())
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	res, err := Parse([]byte(`{"schema":"MissionProject","schemaVersion":1.5}`), model.DefaultEnvironment())
	require.NoError(t, err)
	assert.Equal(t, "1.5", res.Meta.SchemaVersion)
	assert.Equal(t, "1.5", res.Meta.Version)

	res, err = Parse([]byte(`{"schema":"MissionProject"}`), model.DefaultEnvironment())
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, res.Meta.SchemaVersion)
}

const missionProjectFixture = `{
  "schema": "MissionProject",
  "schemaVersion": "2.0.0",
  "origin_tool": "mission",
  "classification": "UNCLASSIFIED",
  "mission": {"name": "Op North", "project_code": "NORTH-1", "commander": "Ops"},
  "environment": {"terrain": "Rural", "ew_level": "Low", "primary_band": "900", "design_radius_m": 800, "target_reliability_pct": 90, "temperature_c": -5, "sky": "clear"},
  "mesh": {"rf_bands": ["stale"], "topology_hint": "ring"},
  "nodes": [
    {"id": "ctl", "name": "Command Post", "role": "controller", "latitude": 45.0, "longitude": 7.0, "elevation_m": 300, "callsign": "CP"},
    {"id": "hawk", "label": "Hawk", "role": "uxs", "lat": 45.001, "lon": 7.001, "height_agl_m": 80}
  ],
  "platforms": [
    {"id": "hawk-platform", "type": "uxs", "airframe": "quad"},
    {"id": "kite", "type": "uxs", "max_altitude_m": 150}
  ],
  "mesh_links": [
    {"from_id": "hawk", "to_id": "ctl", "distance_m": 140, "los": "NLOS-foliage/terrain", "reviewed": true},
    {"from_id": "ctl", "to_id": "kite"}
  ],
  "kits": [{"id": "kit-1"}],
  "notes": "bring spares"
}`

func TestParseMissionProject(t *testing.T) {
	res, err := Parse([]byte(missionProjectFixture), model.DefaultEnvironment())
	require.NoError(t, err)
	require.Equal(t, KindMissionProject, res.Kind)

	require.Len(t, res.Nodes, 3, "hawk-platform folds into hawk")
	ctl, hawk, kite := res.Nodes[0], res.Nodes[1], res.Nodes[2]

	assert.Equal(t, "Command Post", ctl.Label)
	assert.Equal(t, model.Band2400, ctl.Band, "node band falls back to the current primary band")
	assert.Equal(t, 45.0, *ctl.Lat)
	assert.Equal(t, "mission", ctl.OriginTool)
	assert.JSONEq(t, `"CP"`, string(ctl.Extras["callsign"]))

	assert.JSONEq(t, `"quad"`, string(hawk.PlatformExtras["airframe"]))
	assert.Equal(t, "kite", kite.ID)
	assert.Equal(t, model.RoleUxS, kite.Role)
	assert.Equal(t, model.Band900, kite.Band, "platform band falls back to environment primary_band")
	assert.Equal(t, 150.0, *kite.HeightAboveGroundMeters)
	assert.True(t, kite.IsAirborne)

	env := res.Environment
	assert.Equal(t, model.TerrainRural, env.Terrain)
	assert.Equal(t, model.EWLow, env.EWLevel)
	assert.Equal(t, 90.0, env.TargetReliability)
	assert.Equal(t, -5.0, *env.TemperatureC)
	assert.JSONEq(t, `"clear"`, string(env.Extras["sky"]))

	require.NotNil(t, res.Mission)
	assert.Equal(t, "Op North", res.Mission.Name)
	assert.JSONEq(t, `"Ops"`, string(res.Meta.MissionExtras["commander"]))
	assert.JSONEq(t, `"UNCLASSIFIED"`, string(res.Meta.TopExtras["classification"]))
	assert.JSONEq(t, `"ring"`, string(res.Meta.MeshExtras["topology_hint"]))
	assert.NotContains(t, res.Meta.MeshExtras, "rf_bands")

	ov, ok := res.Overrides.Lookup("ctl", "hawk")
	require.True(t, ok)
	assert.Equal(t, 140.0, *ov.DistanceMeters)
	assert.Equal(t, core.LOSFoliage, ov.LOS)
	assert.JSONEq(t, `true`, string(res.Meta.LinkExtras[core.LinkKey("ctl", "hawk")]["reviewed"]))

	bare, ok := res.Overrides.Lookup("kite", "ctl")
	require.True(t, ok)
	assert.Nil(t, bare.DistanceMeters)
	assert.Equal(t, core.LOSClear, bare.LOS)
}

func TestParseMissionProjectRejectsBadLinkLOS(t *testing.T) {
	payload := `{"schema":"MissionProject","mesh_links":[{"from_id":"a","to_id":"b","los":"tunnel"}]}`
	_, err := Parse([]byte(payload), model.DefaultEnvironment())
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeAppend, ParseMode(" Append "))
	assert.Equal(t, ModeReplace, ParseMode("merge"))
	assert.Equal(t, ModeReplace, ParseMode(""))
}
