package model

import (
	"errors"
	"testing"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole("  Relay ")
	if err != nil {
		t.Fatalf("ParseRole: %v", err)
	}
	if r != RoleRelay {
		t.Fatalf("ParseRole = %q, want relay", r)
	}

	_, err = ParseRole("gateway")
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("ParseRole(gateway) err = %v, want ErrInvalidRole", err)
	}
	if err.Error() != `unsupported role: "gateway"` {
		t.Errorf("error text = %q", err.Error())
	}
}

func TestParseBandIsExact(t *testing.T) {
	for _, b := range Bands {
		if _, err := ParseBand(string(b)); err != nil {
			t.Errorf("ParseBand(%q): %v", b, err)
		}
	}
	for _, bad := range []string{"2.40", "915", "Other", ""} {
		if _, err := ParseBand(bad); !errors.Is(err, ErrInvalidBand) {
			t.Errorf("ParseBand(%q) err = %v, want ErrInvalidBand", bad, err)
		}
	}
}

func TestMultipliersFallBackToNeutral(t *testing.T) {
	if got := Terrain("Swamp").Multiplier(); got != 1 {
		t.Errorf("unknown terrain multiplier = %v, want 1", got)
	}
	if got := EWLevel("Extreme").Multiplier(); got != 1 {
		t.Errorf("unknown EW multiplier = %v, want 1", got)
	}
	if got := Band("3.5").Factor(); got != 1 {
		t.Errorf("unknown band factor = %v, want 1", got)
	}
	if got := TerrainDenseUrban.Multiplier(); got != 0.6 {
		t.Errorf("Dense urban multiplier = %v, want 0.6", got)
	}
	if got := EWSevere.Multiplier(); got != 0.5 {
		t.Errorf("Severe multiplier = %v, want 0.5", got)
	}
}

func TestRoleDefaults(t *testing.T) {
	cases := map[Role]float64{
		RoleController:  450,
		RoleRelay:       380,
		RoleUxS:         650,
		RoleSensor:      260,
		RoleClient:      180,
		Role("mystery"): FallbackRangeMeters,
	}
	for role, want := range cases {
		if got := role.DefaultRangeMeters(); got != want {
			t.Errorf("%s default range = %v, want %v", role, got, want)
		}
	}
	if RoleUxS.DisplayName() != "UxS" || RoleSensor.DisplayName() != "Sensor" {
		t.Errorf("unexpected display names: %q %q", RoleUxS.DisplayName(), RoleSensor.DisplayName())
	}
}

func TestAntennaHeight(t *testing.T) {
	n := &Node{}
	if n.AntennaHeightMeters() != nil {
		t.Fatalf("expected nil antenna height without elevation data")
	}
	n.ElevationMeters = Float(120)
	n.HeightAboveGroundMeters = Float(10)
	if got := *n.AntennaHeightMeters(); got != 130 {
		t.Fatalf("antenna height = %v, want 130", got)
	}
}

func TestNodeCloneIsDeep(t *testing.T) {
	n := &Node{ID: "a", Lat: Float(1), Lng: Float(2), CarriedNodeIDs: []string{"x"}}
	c := n.Clone()
	*c.Lat = 9
	c.CarriedNodeIDs[0] = "y"
	if *n.Lat != 1 || n.CarriedNodeIDs[0] != "x" {
		t.Fatalf("clone aliases the original: %+v", n)
	}
}

func TestEnvironmentValidate(t *testing.T) {
	env := DefaultEnvironment()
	if err := env.Validate(); err != nil {
		t.Fatalf("default environment invalid: %v", err)
	}
	env.Terrain = "Desert"
	env.EWLevel = "Extreme"
	if err := env.Validate(); err != nil {
		t.Fatalf("unknown terrain and EW should validate, got %v", err)
	}
	env.PrimaryBand = "7.0"
	if err := env.Validate(); !errors.Is(err, ErrInvalidBand) {
		t.Fatalf("Validate err = %v, want ErrInvalidBand", err)
	}
	env = DefaultEnvironment()
	env.TargetReliability = 120
	if err := env.Validate(); err == nil {
		t.Fatalf("expected reliability > 100 to fail")
	}
	if tag := DefaultEnvironment().Tag(); tag != "Urban-Medium" {
		t.Fatalf("Tag = %q, want Urban-Medium", tag)
	}
}

func TestNormalizeTerrainAndEWLevel(t *testing.T) {
	if got := NormalizeTerrain(" dense URBAN "); got != TerrainDenseUrban {
		t.Fatalf("NormalizeTerrain = %q, want %q", got, TerrainDenseUrban)
	}
	if got := NormalizeTerrain(" Desert"); got != "Desert" {
		t.Fatalf("NormalizeTerrain should keep unknown values, got %q", got)
	}
	if got := NormalizeEWLevel("severe"); got != EWSevere {
		t.Fatalf("NormalizeEWLevel = %q, want %q", got, EWSevere)
	}
	if got := NormalizeEWLevel("Jammed"); got != "Jammed" {
		t.Fatalf("NormalizeEWLevel should keep unknown values, got %q", got)
	}
	if NormalizeTerrain("Desert").Multiplier() != 1 || NormalizeEWLevel("Jammed").Multiplier() != 1 {
		t.Fatalf("unknown terrain and EW must scale range by 1")
	}
}
