package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRole indicates a role string outside the supported set.
	ErrInvalidRole = errors.New("unsupported role")
	// ErrInvalidBand indicates a band string outside the supported set.
	ErrInvalidBand = errors.New("unsupported band")
)

// Role is the mesh function a node performs.
type Role string

const (
	RoleController Role = "controller"
	RoleRelay      Role = "relay"
	RoleSensor     Role = "sensor"
	RoleClient     Role = "client"
	RoleUxS        Role = "uxs"
)

// Roles lists every supported role in display order.
var Roles = []Role{RoleController, RoleRelay, RoleUxS, RoleSensor, RoleClient}

// FallbackRangeMeters is used for roles without a table entry.
const FallbackRangeMeters = 200.0

var roleBaseRange = map[Role]float64{
	RoleController: 450,
	RoleRelay:      380,
	RoleUxS:        650,
	RoleSensor:     260,
	RoleClient:     180,
}

// DefaultRangeMeters returns the nominal maximum range for a role.
func (r Role) DefaultRangeMeters() float64 {
	if v, ok := roleBaseRange[r]; ok {
		return v
	}
	return FallbackRangeMeters
}

// IsRelay reports whether the role forwards traffic for others.
func (r Role) IsRelay() bool {
	return r == RoleRelay || r == RoleUxS
}

// DisplayName is the capitalised label prefix ("UxS", "Relay", ...).
func (r Role) DisplayName() string {
	if r == RoleUxS {
		return "UxS"
	}
	s := string(r)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseRole lower-cases s and checks it against the supported set.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleBaseRange[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// Band is a radio band label. Values are GHz strings except "other".
type Band string

const (
	Band900   Band = "900"
	Band1200  Band = "1.2"
	Band2400  Band = "2.4"
	Band5800  Band = "5.8"
	BandOther Band = "other"
)

// Bands lists every supported band.
var Bands = []Band{Band900, Band1200, Band2400, Band5800, BandOther}

var bandFactor = map[Band]float64{
	Band900:   1.3,
	Band1200:  1.1,
	Band2400:  1.0,
	Band5800:  0.8,
	BandOther: 1.0,
}

// "900" is the 900 MHz ISM band.
var bandGHz = map[Band]float64{
	Band900:  0.9,
	Band1200: 1.2,
	Band2400: 2.4,
	Band5800: 5.8,
}

// Factor is the range scaling applied for the band. Unknown bands scale by 1.
func (b Band) Factor() float64 {
	if f, ok := bandFactor[b]; ok {
		return f
	}
	return 1.0
}

// GHz returns the centre frequency, or 0 when the band has no fixed frequency.
func (b Band) GHz() float64 {
	return bandGHz[b]
}

// Valid reports whether b is one of the supported bands.
func (b Band) Valid() bool {
	_, ok := bandFactor[b]
	return ok
}

// ParseBand checks s against the supported set. Matching is exact.
func ParseBand(s string) (Band, error) {
	b := Band(strings.TrimSpace(s))
	if !b.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidBand, s)
	}
	return b, nil
}

// Node is a mesh participant. Lat/Lng are nil until the node is placed.
type Node struct {
	ID    string `json:"id" validate:"required"`
	Label string `json:"label"`
	Role  Role   `json:"role" validate:"required,oneof=controller relay sensor client uxs"`
	Band  Band   `json:"band" validate:"required,oneof=900 1.2 2.4 5.8 other"`

	MaxRangeMeters float64 `json:"maxRangeMeters" validate:"gt=0"`

	Lat *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"omitempty,gte=-180,lte=180"`

	ElevationMeters         *float64 `json:"elevationMeters,omitempty"`
	HeightAboveGroundMeters *float64 `json:"heightAboveGroundMeters,omitempty"`

	RelayCandidate bool     `json:"relayCandidate,omitempty"`
	IsAirborne     bool     `json:"isAirborne,omitempty"`
	CarriedNodeIDs []string `json:"carriedNodeIds,omitempty"`

	BatteryHours *float64 `json:"batteryHours,omitempty"`
	PowerW       *float64 `json:"powerW,omitempty"`
	Notes        string   `json:"notes,omitempty"`

	Source     string `json:"source,omitempty"`
	OriginTool string `json:"origin_tool,omitempty"`

	// Unplaced marks coordinates assigned by auto-layout rather than the operator.
	Unplaced bool `json:"unplaced,omitempty"`

	// Extras keeps unrecognised import fields for lossless export.
	Extras         map[string]json.RawMessage `json:"extras,omitempty"`
	PlatformExtras map[string]json.RawMessage `json:"platformExtras,omitempty"`
}

// HasPosition reports whether both coordinates are set.
func (n *Node) HasPosition() bool {
	return n != nil && n.Lat != nil && n.Lng != nil
}

// AntennaHeightMeters is elevation plus mast height, or nil when neither is known.
func (n *Node) AntennaHeightMeters() *float64 {
	if n.ElevationMeters == nil && n.HeightAboveGroundMeters == nil {
		return nil
	}
	h := 0.0
	if n.ElevationMeters != nil {
		h += *n.ElevationMeters
	}
	if n.HeightAboveGroundMeters != nil {
		h += *n.HeightAboveGroundMeters
	}
	return &h
}

// Origin is the provenance tag used for grouping, defaulting to "unknown".
func (n *Node) Origin() string {
	if n.OriginTool != "" {
		return n.OriginTool
	}
	if n.Source != "" {
		return n.Source
	}
	return "unknown"
}

// Clone returns a deep copy so registry callers cannot alias stored records.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Lat = cloneFloat(n.Lat)
	c.Lng = cloneFloat(n.Lng)
	c.ElevationMeters = cloneFloat(n.ElevationMeters)
	c.HeightAboveGroundMeters = cloneFloat(n.HeightAboveGroundMeters)
	c.BatteryHours = cloneFloat(n.BatteryHours)
	c.PowerW = cloneFloat(n.PowerW)
	if n.CarriedNodeIDs != nil {
		c.CarriedNodeIDs = append([]string(nil), n.CarriedNodeIDs...)
	}
	c.Extras = cloneRaw(n.Extras)
	c.PlatformExtras = cloneRaw(n.PlatformExtras)
	return &c
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
