package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOverride indicates an override value that cannot be applied.
var ErrInvalidOverride = errors.New("invalid link override")

// linkKeySep joins the two sorted node IDs of a LinkKey.
const linkKeySep = "::"

// LinkQuality is the coarse classification of a link derived from its
// margin.
type LinkQuality string

const (
	LinkQualityGood     LinkQuality = "good"
	LinkQualityMarginal LinkQuality = "marginal"
	LinkQualityUnlikely LinkQuality = "unlikely"
)

// Margin thresholds in dB.
const (
	GoodMarginDb     = 8.0
	MarginalMarginDb = -6.0
)

// ClassifyMargin maps a link margin to a quality bucket.
func ClassifyMargin(marginDb float64) LinkQuality {
	switch {
	case marginDb >= GoodMarginDb:
		return LinkQualityGood
	case marginDb >= MarginalMarginDb:
		return LinkQualityMarginal
	default:
		return LinkQualityUnlikely
	}
}

// Viable reports whether the link participates in the connectivity graph.
func (q LinkQuality) Viable() bool {
	return q == LinkQualityGood || q == LinkQualityMarginal
}

// ExportLabel is the name used by external planning documents, which call
// an unlikely link "poor".
func (q LinkQuality) ExportLabel() string {
	if q == LinkQualityUnlikely {
		return "poor"
	}
	return string(q)
}

// RatioBand is the legacy distance/range ratio classification kept for
// display next to the margin-based quality.
type RatioBand string

const (
	RatioGood     RatioBand = "good"
	RatioMarginal RatioBand = "marginal"
	RatioFragile  RatioBand = "fragile"
	RatioNone     RatioBand = "none"
)

// LinkKey is the canonical, direction-independent identity of a node pair.
func LinkKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + linkKeySep + b
}

// SplitLinkKey returns the two node IDs encoded in key.
func SplitLinkKey(key string) (string, string, bool) {
	a, b, ok := strings.Cut(key, linkKeySep)
	if !ok || a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}

// Link is the derived estimate for one unordered pair of placed nodes.
// Links are regenerated on every recompute and never edited directly;
// operator intent lives in Overrides.
type Link struct {
	FromID string `json:"fromId"`
	ToID   string `json:"toId"`

	// DistanceMeters is the distance used for the estimate: the override
	// when one is set, otherwise MeasuredDistanceMeters.
	DistanceMeters         float64  `json:"distanceMeters"`
	MeasuredDistanceMeters float64  `json:"measuredDistanceMeters"`
	DistanceOverride       *float64 `json:"distanceOverrideMeters,omitempty"`

	LOS         LOSClass `json:"los"`
	LOSOverride bool     `json:"losOverride,omitempty"`
	// WithinHorizon is an informational radio-horizon hint; it never
	// affects Quality.
	WithinHorizon *bool `json:"losEstimate,omitempty"`

	FrequencyMHz         float64     `json:"frequencyMHz"`
	EffectiveRangeMeters float64     `json:"effectiveRangeMeters"`
	MarginDb             float64     `json:"linkMarginDb"`
	Quality              LinkQuality `json:"quality"`

	// RangeRatio is distance over the weaker node's unfloored effective
	// range.
	RangeRatio float64 `json:"rangeRatio"`
}

// Key returns the canonical pair key.
func (l *Link) Key() string {
	return LinkKey(l.FromID, l.ToID)
}

// Involves reports whether id is one of the link endpoints.
func (l *Link) Involves(id string) bool {
	return l.FromID == id || l.ToID == id
}

// Other returns the opposite endpoint of id.
func (l *Link) Other(id string) string {
	if l.FromID == id {
		return l.ToID
	}
	return l.FromID
}

// RatioBand classifies RangeRatio.
func (l *Link) RatioBand() RatioBand {
	switch {
	case l.RangeRatio <= 0.4:
		return RatioGood
	case l.RangeRatio <= 0.8:
		return RatioMarginal
	case l.RangeRatio <= 1.2:
		return RatioFragile
	default:
		return RatioNone
	}
}

// HorizonNote renders WithinHorizon for display.
func (l *Link) HorizonNote() string {
	switch {
	case l.WithinHorizon == nil:
		return ""
	case *l.WithinHorizon:
		return "Horizon suggests LOS"
	default:
		return "Likely terrain/clutter masking"
	}
}

// LinkOverride is an operator-pinned adjustment for one pair. Either field
// may be unset.
type LinkOverride struct {
	DistanceMeters *float64 `json:"distanceMeters,omitempty" yaml:"distanceMeters,omitempty"`
	LOS            LOSClass `json:"los,omitempty" yaml:"los,omitempty"`
}

// IsZero reports whether neither field is set.
func (o LinkOverride) IsZero() bool {
	return o.DistanceMeters == nil && o.LOS == ""
}

// Validate rejects non-positive distances and unknown LOS classes.
func (o LinkOverride) Validate() error {
	if o.DistanceMeters != nil && !(*o.DistanceMeters > 0) {
		return fmt.Errorf("%w: distance must be positive, got %v", ErrInvalidOverride, *o.DistanceMeters)
	}
	if o.LOS != "" && !o.LOS.Valid() {
		return fmt.Errorf("%w: unknown LOS class %q", ErrInvalidOverride, o.LOS)
	}
	return nil
}

// Overrides maps LinkKey to the pinned values for that pair.
type Overrides map[string]LinkOverride

// Lookup finds the override for a pair in either order.
func (o Overrides) Lookup(a, b string) (LinkOverride, bool) {
	if o == nil {
		return LinkOverride{}, false
	}
	ov, ok := o[LinkKey(a, b)]
	return ov, ok
}

// Clone returns an independent copy.
func (o Overrides) Clone() Overrides {
	out := make(Overrides, len(o))
	for k, v := range o {
		if v.DistanceMeters != nil {
			d := *v.DistanceMeters
			v.DistanceMeters = &d
		}
		out[k] = v
	}
	return out
}

// PruneNode drops every override that references id.
func (o Overrides) PruneNode(id string) {
	for k := range o {
		a, b, ok := SplitLinkKey(k)
		if !ok || a == id || b == id {
			delete(o, k)
		}
	}
}
