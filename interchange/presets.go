package interchange

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/mesh-architect/model"
)

// KindPreset marks a Result built from the preset catalogue.
const KindPreset Kind = "demo"

// ErrUnknownPreset indicates a preset ID that is not in the catalogue.
var ErrUnknownPreset = errors.New("unknown preset")

//go:embed presets/presets.yaml
var presetsYAML []byte

// Preset is one demo scenario.
type Preset struct {
	ID          string            `yaml:"id"`
	Label       string            `yaml:"label"`
	ProjectCode string            `yaml:"projectCode"`
	Origin      string            `yaml:"origin"`
	Source      string            `yaml:"source"`
	Environment presetEnvironment `yaml:"environment"`
	Nodes       []presetNode      `yaml:"nodes"`
}

type presetEnvironment struct {
	Terrain            model.Terrain `yaml:"terrain"`
	EWLevel            model.EWLevel `yaml:"ewLevel"`
	PrimaryBand        model.Band    `yaml:"primaryBand"`
	DesignRadiusMeters float64       `yaml:"designRadiusMeters"`
	TargetReliability  float64       `yaml:"targetReliability"`
}

type presetNode struct {
	ID             string     `yaml:"id"`
	Label          string     `yaml:"label"`
	Role           model.Role `yaml:"role"`
	Band           model.Band `yaml:"band"`
	MaxRangeMeters float64    `yaml:"maxRangeMeters"`
	DLat           *float64   `yaml:"dLat"`
	DLng           *float64   `yaml:"dLng"`
}

var (
	presetsOnce sync.Once
	presets     []Preset
	presetsErr  error
)

// Presets returns the embedded catalogue in declaration order.
func Presets() ([]Preset, error) {
	presetsOnce.Do(func() {
		presets, presetsErr = ParsePresets(presetsYAML)
	})
	return presets, presetsErr
}

// ParsePresets decodes a YAML preset catalogue.
func ParsePresets(data []byte) ([]Preset, error) {
	var out []Preset
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode presets: %w", err)
	}
	for i := range out {
		if strings.TrimSpace(out[i].ID) == "" {
			return nil, fmt.Errorf("%w: preset %d has no id", ErrMalformed, i)
		}
	}
	return out, nil
}

// LookupPreset finds a preset by ID; an empty ID selects the first one.
func LookupPreset(id string) (*Preset, error) {
	all, err := Presets()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: catalogue is empty", ErrUnknownPreset)
	}
	if id == "" {
		p := all[0]
		return &p, nil
	}
	for i := range all {
		if all[i].ID == id {
			p := all[i]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, id)
}

// Build turns the preset into an import result. Nodes with offsets are
// placed relative to center; the rest are left for LayoutUnplaced.
func (p *Preset) Build(current model.Environment, center LatLng) (*Result, error) {
	env := current.Clone()
	env.Terrain = model.NormalizeTerrain(string(p.Environment.Terrain))
	env.EWLevel = model.NormalizeEWLevel(string(p.Environment.EWLevel))
	env.PrimaryBand = p.Environment.PrimaryBand
	if p.Environment.DesignRadiusMeters > 0 {
		env.DesignRadiusMeters = p.Environment.DesignRadiusMeters
	}
	if p.Environment.TargetReliability > 0 {
		env.TargetReliability = p.Environment.TargetReliability
	}
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("preset %q: %w", p.ID, err)
	}

	code := p.ProjectCode
	if code == "" {
		code = strings.ToUpper(p.ID)
	}
	mission := model.Mission{Name: p.Label, ProjectCode: code, OriginTool: "demo"}
	meta := DefaultMeta()

	res := &Result{
		Kind:        KindPreset,
		Environment: &env,
		Mission:     &mission,
		Meta:        &meta,
		Nodes:       make([]model.Node, 0, len(p.Nodes)),
	}
	for _, pn := range p.Nodes {
		n := model.Node{
			ID:             pn.ID,
			Label:          pn.Label,
			Role:           pn.Role,
			Band:           pn.Band,
			MaxRangeMeters: pn.MaxRangeMeters,
			Source:         p.Source,
			OriginTool:     p.Origin,
		}
		if n.MaxRangeMeters <= 0 {
			n.MaxRangeMeters = n.Role.DefaultRangeMeters()
		}
		if pn.DLat != nil && pn.DLng != nil {
			n.Lat = model.Float(center.Lat + *pn.DLat)
			n.Lng = model.Float(center.Lng + *pn.DLng)
		}
		res.Nodes = append(res.Nodes, n)
	}
	if err := checkNodes(res.Nodes); err != nil {
		return nil, fmt.Errorf("preset %q: %w", p.ID, err)
	}
	return res, nil
}
