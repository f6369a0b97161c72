package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTerrain indicates a terrain string outside the supported set.
	ErrInvalidTerrain = errors.New("unsupported terrain")
	// ErrInvalidEWLevel indicates an EW level outside the supported set.
	ErrInvalidEWLevel = errors.New("unsupported EW level")
)

// Terrain is the dominant propagation environment.
type Terrain string

const (
	TerrainIndoor     Terrain = "Indoor"
	TerrainDenseUrban Terrain = "Dense urban"
	TerrainUrban      Terrain = "Urban"
	TerrainSuburban   Terrain = "Suburban"
	TerrainRural      Terrain = "Rural"
	TerrainOpen       Terrain = "Open"
)

// Terrains lists every supported terrain.
var Terrains = []Terrain{TerrainIndoor, TerrainDenseUrban, TerrainUrban, TerrainSuburban, TerrainRural, TerrainOpen}

var terrainMultiplier = map[Terrain]float64{
	TerrainIndoor:     0.5,
	TerrainDenseUrban: 0.6,
	TerrainUrban:      0.7,
	TerrainSuburban:   0.85,
	TerrainRural:      1.0,
	TerrainOpen:       1.2,
}

// Multiplier scales effective range. Unknown terrain scales by 1.
func (t Terrain) Multiplier() float64 {
	if m, ok := terrainMultiplier[t]; ok {
		return m
	}
	return 1.0
}

// ParseTerrain matches s case-insensitively against the supported set.
func ParseTerrain(s string) (Terrain, error) {
	for _, t := range Terrains {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTerrain, s)
}

// NormalizeTerrain returns the canonical spelling of a supported terrain.
// Anything else is kept as given and scales range by 1.
func NormalizeTerrain(s string) Terrain {
	if t, err := ParseTerrain(s); err == nil {
		return t
	}
	return Terrain(strings.TrimSpace(s))
}

// EWLevel is the expected electronic-warfare pressure.
type EWLevel string

const (
	EWLow    EWLevel = "Low"
	EWMedium EWLevel = "Medium"
	EWHigh   EWLevel = "High"
	EWSevere EWLevel = "Severe"
)

// EWLevels lists every supported EW level.
var EWLevels = []EWLevel{EWLow, EWMedium, EWHigh, EWSevere}

var ewMultiplier = map[EWLevel]float64{
	EWLow:    1.0,
	EWMedium: 0.85,
	EWHigh:   0.7,
	EWSevere: 0.5,
}

// Multiplier scales effective range. Unknown levels scale by 1.
func (e EWLevel) Multiplier() float64 {
	if m, ok := ewMultiplier[e]; ok {
		return m
	}
	return 1.0
}

// Contested reports whether the level calls for redundancy planning.
func (e EWLevel) Contested() bool {
	return e == EWHigh || e == EWSevere
}

// ParseEWLevel matches s case-insensitively against the supported set.
func ParseEWLevel(s string) (EWLevel, error) {
	for _, e := range EWLevels {
		if strings.EqualFold(string(e), strings.TrimSpace(s)) {
			return e, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEWLevel, s)
}

// NormalizeEWLevel returns the canonical spelling of a supported level.
// Anything else is kept as given and scales range by 1.
func NormalizeEWLevel(s string) EWLevel {
	if e, err := ParseEWLevel(s); err == nil {
		return e
	}
	return EWLevel(strings.TrimSpace(s))
}

// Environment holds the global propagation assumptions for a plan.
type Environment struct {
	Terrain            Terrain `json:"terrain"`
	EWLevel            EWLevel `json:"ewLevel"`
	PrimaryBand        Band    `json:"primaryBand"`
	DesignRadiusMeters float64 `json:"designRadiusMeters"`
	TargetReliability  float64 `json:"targetReliability"`

	// Advisory fields carried through MissionProject exchange.
	TemperatureC *float64 `json:"temperatureC,omitempty"`
	WindsMps     *float64 `json:"windsMps,omitempty"`
	AltitudeBand string   `json:"altitudeBand,omitempty"`

	Extras map[string]json.RawMessage `json:"extras,omitempty"`
}

// DefaultEnvironment is the starting point for a new plan.
func DefaultEnvironment() Environment {
	return Environment{
		Terrain:            TerrainUrban,
		EWLevel:            EWMedium,
		PrimaryBand:        Band2400,
		DesignRadiusMeters: 300,
		TargetReliability:  80,
	}
}

// Tag is the compact "terrain-ew" label used by exporters.
func (e Environment) Tag() string {
	terrain := string(e.Terrain)
	if terrain == "" {
		terrain = "unknown"
	}
	ew := string(e.EWLevel)
	if ew == "" {
		ew = "EW"
	}
	return terrain + "-" + ew
}

// Validate checks the band and the numeric ranges. Terrain and EW level
// are free-form: unrecognised values fall back to a neutral multiplier.
func (e Environment) Validate() error {
	if !e.PrimaryBand.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidBand, e.PrimaryBand)
	}
	if e.DesignRadiusMeters <= 0 {
		return fmt.Errorf("design radius must be positive, got %v", e.DesignRadiusMeters)
	}
	if e.TargetReliability < 0 || e.TargetReliability > 100 {
		return fmt.Errorf("target reliability must be within [0,100], got %v", e.TargetReliability)
	}
	return nil
}

// Clone returns a deep copy.
func (e Environment) Clone() Environment {
	c := e
	c.TemperatureC = cloneFloat(e.TemperatureC)
	c.WindsMps = cloneFloat(e.WindsMps)
	c.Extras = cloneRaw(e.Extras)
	return c
}
