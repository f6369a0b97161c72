package interchange

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/signalsfoundry/mesh-architect/core"
	"github.com/signalsfoundry/mesh-architect/model"
)

// Kind identifies which sibling tool produced a payload.
type Kind string

const (
	KindNodeArchitect  Kind = "node"
	KindUxSArchitect   Kind = "uxs"
	KindMissionProject Kind = "mission"
	KindMeshArchitect  Kind = "mesh"
)

// Mode controls how imported nodes combine with the current plan.
type Mode string

const (
	ModeReplace Mode = "replace"
	ModeAppend  Mode = "append"
)

// ParseMode maps free text to a Mode; anything but "append" replaces.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeAppend)) {
		return ModeAppend
	}
	return ModeReplace
}

// Result is a fully normalised import, ready to apply in one step.
type Result struct {
	Kind  Kind
	Nodes []model.Node

	// Environment, Mission and Meta are nil when the source does not carry
	// them.
	Environment *model.Environment
	Mission     *model.Mission
	Meta        *ProjectMeta

	// Overrides holds pair pins taken from imported mesh links.
	Overrides core.Overrides
}

// ProjectMeta keeps MissionProject content the planner does not model so
// it can be written back on export.
type ProjectMeta struct {
	SchemaVersion string `json:"schemaVersion,omitempty"`
	Version       string `json:"version,omitempty"`

	TopExtras     map[string]json.RawMessage `json:"topExtras,omitempty"`
	MissionExtras map[string]json.RawMessage `json:"missionExtras,omitempty"`
	MeshExtras    map[string]json.RawMessage `json:"meshExtras,omitempty"`
	// LinkExtras is keyed by core.LinkKey.
	LinkExtras map[string]map[string]json.RawMessage `json:"linkExtras,omitempty"`

	Kits        json.RawMessage `json:"kits,omitempty"`
	Constraints json.RawMessage `json:"constraints,omitempty"`
	Notes       json.RawMessage `json:"notes,omitempty"`
}

// DefaultMeta is the metadata of a plan that was never imported.
func DefaultMeta() ProjectMeta {
	return ProjectMeta{SchemaVersion: SchemaVersion, Version: SchemaVersion}
}

// Clone returns a deep copy.
func (m *ProjectMeta) Clone() *ProjectMeta {
	if m == nil {
		return nil
	}
	c := *m
	c.TopExtras = cloneRawMap(m.TopExtras)
	c.MissionExtras = cloneRawMap(m.MissionExtras)
	c.MeshExtras = cloneRawMap(m.MeshExtras)
	if m.LinkExtras != nil {
		c.LinkExtras = make(map[string]map[string]json.RawMessage, len(m.LinkExtras))
		for k, v := range m.LinkExtras {
			c.LinkExtras[k] = cloneRawMap(v)
		}
	}
	c.Kits = append(json.RawMessage(nil), m.Kits...)
	c.Constraints = append(json.RawMessage(nil), m.Constraints...)
	c.Notes = append(json.RawMessage(nil), m.Notes...)
	return &c
}

func cloneRawMap(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Detect classifies a payload without fully parsing it.
func Detect(data []byte) (Kind, error) {
	root, err := decodeObject(data)
	if err != nil {
		return "", err
	}
	return detect(root)
}

func detect(root object) (Kind, error) {
	source, _ := root.str("source")
	schema, _ := root.str("schema")
	switch {
	case source == "NodeArchitect":
		return KindNodeArchitect, nil
	case source == "UxSArchitect":
		return KindUxSArchitect, nil
	case schema == "MissionProject":
		return KindMissionProject, nil
	case root.present("meshVersion") || root.present("environment") || root.present("nodes"):
		return KindMeshArchitect, nil
	default:
		return "", ErrUnsupportedPayload
	}
}

// Parse detects the payload kind and normalises it against the current
// environment, which supplies fallbacks such as the primary band. Nothing
// is applied; a non-nil error means the payload must be rejected whole.
func Parse(data []byte, current model.Environment) (*Result, error) {
	root, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	kind, err := detect(root)
	if err != nil {
		return nil, err
	}
	return parseKind(kind, root, current)
}

// ParseAs parses data as the given kind, skipping detection.
func ParseAs(kind Kind, data []byte, current model.Environment) (*Result, error) {
	root, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	return parseKind(kind, root, current)
}

func parseKind(kind Kind, root object, current model.Environment) (*Result, error) {
	var (
		res *Result
		err error
	)
	switch kind {
	case KindNodeArchitect:
		res, err = parseNodeArchitect(root, current)
	case KindUxSArchitect:
		res, err = parseUxSArchitect(root, current)
	case KindMissionProject:
		res, err = parseMissionProject(root, current)
	case KindMeshArchitect:
		res, err = parseMeshArchitect(root, current)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrUnsupportedPayload, kind)
	}
	if err != nil {
		return nil, err
	}
	if err := checkNodes(res.Nodes); err != nil {
		return nil, err
	}
	return res, nil
}

// checkNodes runs struct validation and rejects duplicate IDs within the
// batch.
func checkNodes(nodes []model.Node) error {
	seen := make(map[string]bool, len(nodes))
	for i := range nodes {
		n := &nodes[i]
		if err := validate.Struct(n); err != nil {
			return fmt.Errorf("%w: node %q: %v", ErrMalformed, n.ID, err)
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: duplicate node id %q", ErrMalformed, n.ID)
		}
		seen[n.ID] = true
	}
	return nil
}

// normalizeRole lower-cases the role and falls back to fallback when empty.
func normalizeRole(o object, fallback model.Role) (model.Role, error) {
	raw, err := o.str("role")
	if err != nil {
		return "", err
	}
	if raw == "" {
		return fallback, nil
	}
	return model.ParseRole(raw)
}

// normalizeBand reads "band" and falls back to the current primary band,
// then 2.4.
func normalizeBand(o object, current model.Environment) (model.Band, error) {
	raw, err := o.token("band")
	if err != nil {
		return "", err
	}
	return resolveBand(raw, current)
}

func resolveBand(raw string, current model.Environment) (model.Band, error) {
	if raw == "" {
		if current.PrimaryBand != "" {
			return current.PrimaryBand, nil
		}
		return model.Band2400, nil
	}
	return model.ParseBand(raw)
}

// rangeOr returns the first positive range, else the role default.
func rangeOr(o object, role model.Role, keys ...string) (float64, error) {
	v, err := o.num(keys...)
	if err != nil {
		return 0, err
	}
	if v != nil && *v > 0 {
		return *v, nil
	}
	return role.DefaultRangeMeters(), nil
}

// position reads lat/lng under their alternate names.
func position(o object) (*float64, *float64, error) {
	lat, err := o.num("lat", "latitude")
	if err != nil {
		return nil, nil, err
	}
	lng, err := o.num("lon", "lng", "longitude")
	if err != nil {
		return nil, nil, err
	}
	return lat, lng, nil
}

func boolOr(p *bool) bool {
	return p != nil && *p
}

func decodeItems(items []json.RawMessage, what string) ([]object, error) {
	out := make([]object, 0, len(items))
	for i, raw := range items {
		o, err := decodeObject(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%d] must be an object", ErrMalformed, what, i)
		}
		out = append(out, o)
	}
	return out, nil
}
