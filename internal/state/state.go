// internal/state/state.go
package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/mesh-architect/core"
	"github.com/signalsfoundry/mesh-architect/interchange"
	"github.com/signalsfoundry/mesh-architect/internal/logging"
	"github.com/signalsfoundry/mesh-architect/kb"
	"github.com/signalsfoundry/mesh-architect/model"
)

// Re-export registry and override sentinels so callers can depend on
// state.* instead of reaching into kb or core.
var (
	// ErrNodeExists indicates a node with the same ID is already in the plan.
	ErrNodeExists = kb.ErrNodeExists
	// ErrNodeNotFound indicates a requested node was not found.
	ErrNodeNotFound = kb.ErrNodeNotFound
	// ErrNodeInvalid indicates a node failed validation.
	ErrNodeInvalid = kb.ErrNodeInvalid
	// ErrInvalidOverride indicates a link override with out-of-range values.
	ErrInvalidOverride = core.ErrInvalidOverride
	// ErrLinkPairUnknown indicates an override for a pair that is not two
	// distinct nodes of the plan.
	ErrLinkPairUnknown = errors.New("link pair does not reference two known nodes")
	// ErrInvalidEnvironment indicates an environment outside the supported
	// domain.
	ErrInvalidEnvironment = errors.New("invalid environment")
)

// MetricsRecorder receives mesh-level gauges after every recompute.
type MetricsRecorder interface {
	SetMeshCounts(nodes, good, marginal, unlikely, spof, critical int)
}

// AnalysisObserver receives timing and import outcomes.
type AnalysisObserver interface {
	ObserveRecompute(d time.Duration)
	RecordImport(kind, mode string, ok bool)
}

// Analysis is the derived view of the plan after the last recompute. The
// slices are copies; callers may keep them.
type Analysis struct {
	Nodes      []model.Node
	Links      []core.Link
	Robustness core.Robustness
	Summary    core.Summary
}

// ImportReport describes an applied import.
type ImportReport struct {
	Kind     interchange.Kind
	Mode     interchange.Mode
	Imported int
	LaidOut  int
	Message  string
}

// PlanState is the planning session. It owns the node registry together
// with the environment, link overrides and MissionProject metadata, and
// recomputes links and robustness synchronously after every mutation.
type PlanState struct {
	// mu guards everything below. Take it before the registry lock.
	mu sync.RWMutex

	registry  *kb.Registry
	estimator *core.LinkEstimator

	env       model.Environment
	overrides core.Overrides
	mission   model.Mission
	meta      *interchange.ProjectMeta
	center    interchange.LatLng

	// Derived by recomputeLocked.
	nodes      []model.Node
	links      []core.Link
	robustness core.Robustness
	summary    core.Summary

	log      logging.Logger
	metrics  MetricsRecorder
	observer AnalysisObserver
}

// Option customises PlanState construction.
type Option func(*PlanState)

// WithMetricsRecorder attaches a recorder for mesh gauges.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *PlanState) {
		s.metrics = m
	}
}

// WithAnalysisObserver attaches an observer for recompute latency and
// import outcomes.
func WithAnalysisObserver(o AnalysisObserver) Option {
	return func(s *PlanState) {
		s.observer = o
	}
}

// WithLinkEstimator replaces the default haversine estimator, e.g. to use
// a host-provided distance function.
func WithLinkEstimator(le *core.LinkEstimator) Option {
	return func(s *PlanState) {
		if le != nil {
			s.estimator = le
		}
	}
}

// WithCenter sets the map centre used for presets and auto-layout.
func WithCenter(c interchange.LatLng) Option {
	return func(s *PlanState) {
		s.center = c
	}
}

// WithEnvironment seeds the starting environment.
func WithEnvironment(env model.Environment) Option {
	return func(s *PlanState) {
		s.env = env.Clone()
	}
}

// NewPlanState builds an empty plan with the default environment.
func NewPlanState(log logging.Logger, opts ...Option) *PlanState {
	if log == nil {
		log = logging.Noop()
	}
	meta := interchange.DefaultMeta()
	s := &PlanState{
		registry:  kb.NewRegistry(),
		estimator: core.NewLinkEstimator(),
		env:       model.DefaultEnvironment(),
		overrides: make(core.Overrides),
		mission:   model.DefaultMission(),
		meta:      &meta,
		center:    interchange.DefaultCenter,
		log:       log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.recomputeLocked(context.Background())
	return s
}

// Environment returns a copy of the current environment.
func (s *PlanState) Environment() model.Environment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.env.Clone()
}

// Center returns the map centre used for placement.
func (s *PlanState) Center() interchange.LatLng {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.center
}

// GetNode returns a copy of the node.
func (s *PlanState) GetNode(id string) (*model.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.registry.Get(id)
	if n == nil {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return n, nil
}

// ListNodes returns copies of every node in plan order.
func (s *PlanState) ListNodes() []model.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.List()
}

// AddNode inserts n, filling an empty ID, label, band or range from the
// plan defaults. It returns the stored node.
func (s *PlanState) AddNode(ctx context.Context, n model.Node) (model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fillDefaultsLocked(&n)
	if err := s.registry.Add(&n); err != nil {
		s.log.Warn(ctx, "add node rejected", logging.String("node_id", n.ID), logging.Err(err))
		return model.Node{}, err
	}
	s.log.Debug(ctx, "node added",
		logging.String("entity_type", "node"),
		logging.String("operation", "add"),
		logging.String("node_id", n.ID),
		logging.String("role", string(n.Role)),
	)
	s.recomputeLocked(ctx)
	return *n.Clone(), nil
}

// PlaceNode drops a new node of role at the given coordinates with
// role-default range and the primary band.
func (s *PlanState) PlaceNode(ctx context.Context, role model.Role, lat, lng float64) (model.Node, error) {
	r, err := model.ParseRole(string(role))
	if err != nil {
		return model.Node{}, fmt.Errorf("%w: %w", ErrNodeInvalid, err)
	}
	return s.AddNode(ctx, model.Node{
		Role:           r,
		Lat:            model.Float(lat),
		Lng:            model.Float(lng),
		RelayCandidate: r == model.RoleRelay,
		Source:         "manual",
	})
}

// UpsertNode replaces the node with n.ID, or adds it when absent. Empty
// fields are defaulted as in AddNode.
func (s *PlanState) UpsertNode(ctx context.Context, n model.Node) (model.Node, bool, error) {
	if strings.TrimSpace(n.ID) == "" {
		stored, err := s.AddNode(ctx, n)
		return stored, err == nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.fillDefaultsLocked(&n)
	if s.registry.Get(n.ID) == nil {
		if err := s.registry.Add(&n); err != nil {
			return model.Node{}, false, err
		}
		s.log.Debug(ctx, "node added", logging.String("operation", "upsert"), logging.String("node_id", n.ID))
		s.recomputeLocked(ctx)
		return *n.Clone(), true, nil
	}
	err := s.registry.Update(n.ID, func(cur *model.Node) error {
		*cur = *n.Clone()
		return nil
	})
	if err != nil {
		return model.Node{}, false, err
	}
	s.log.Debug(ctx, "node updated", logging.String("operation", "upsert"), logging.String("node_id", n.ID))
	s.recomputeLocked(ctx)
	return *n.Clone(), false, nil
}

// UpdateNode applies fn to a copy of the node and stores the result.
func (s *PlanState) UpdateNode(ctx context.Context, id string, fn func(*model.Node) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.Update(id, fn); err != nil {
		return err
	}
	s.log.Debug(ctx, "node updated",
		logging.String("entity_type", "node"),
		logging.String("operation", "update"),
		logging.String("node_id", id),
	)
	s.recomputeLocked(ctx)
	return nil
}

// MoveNode sets a node's coordinates and clears its unplaced marker.
func (s *PlanState) MoveNode(ctx context.Context, id string, lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: coordinates (%v, %v) out of range", ErrNodeInvalid, lat, lng)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.Move(id, lat, lng); err != nil {
		return err
	}
	s.log.Debug(ctx, "node moved",
		logging.String("entity_type", "node"),
		logging.String("operation", "move"),
		logging.String("node_id", id),
		logging.Float("lat", lat),
		logging.Float("lng", lng),
	)
	s.recomputeLocked(ctx)
	return nil
}

// DeleteNode removes a node along with every override and carried link
// metadata that references it.
func (s *PlanState) DeleteNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.Delete(id); err != nil {
		return err
	}
	s.overrides.PruneNode(id)
	if s.meta != nil {
		for key := range s.meta.LinkExtras {
			a, b, ok := core.SplitLinkKey(key)
			if !ok || a == id || b == id {
				delete(s.meta.LinkExtras, key)
			}
		}
	}
	s.log.Debug(ctx, "node deleted",
		logging.String("entity_type", "node"),
		logging.String("operation", "delete"),
		logging.String("node_id", id),
	)
	s.recomputeLocked(ctx)
	return nil
}

// SetEnvironment replaces the environment after validating it.
func (s *PlanState) SetEnvironment(ctx context.Context, env model.Environment) error {
	env.Terrain = model.NormalizeTerrain(string(env.Terrain))
	env.EWLevel = model.NormalizeEWLevel(string(env.EWLevel))
	if err := env.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnvironment, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.env = env.Clone()
	s.log.Debug(ctx, "environment updated",
		logging.String("terrain", string(env.Terrain)),
		logging.String("ew_level", string(env.EWLevel)),
		logging.String("primary_band", string(env.PrimaryBand)),
	)
	s.recomputeLocked(ctx)
	return nil
}

// SetLinkOverride pins distance and/or LOS for the pair a-b. A zero
// override clears the pin.
func (s *PlanState) SetLinkOverride(ctx context.Context, a, b string, ov core.LinkOverride) error {
	if err := ov.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPairLocked(a, b); err != nil {
		return err
	}
	key := core.LinkKey(a, b)
	if ov.IsZero() {
		delete(s.overrides, key)
	} else {
		if ov.DistanceMeters != nil {
			ov.DistanceMeters = model.Float(*ov.DistanceMeters)
		}
		s.overrides[key] = ov
	}
	s.log.Debug(ctx, "link override set",
		logging.String("entity_type", "link"),
		logging.String("link", key),
		logging.Bool("cleared", ov.IsZero()),
	)
	s.recomputeLocked(ctx)
	return nil
}

// ClearLinkOverride removes the pin for a-b, if any.
func (s *PlanState) ClearLinkOverride(ctx context.Context, a, b string) error {
	return s.SetLinkOverride(ctx, a, b, core.LinkOverride{})
}

// Overrides returns a copy of the link overrides.
func (s *PlanState) Overrides() core.Overrides {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overrides.Clone()
}

// Import applies a parsed result. Either everything is applied or, on
// error, nothing is. Unplaced nodes are laid out around the centre.
func (s *PlanState) Import(ctx context.Context, res *interchange.Result, mode interchange.Mode) (ImportReport, error) {
	ctx, reqLog := logging.WithRequestLogger(ctx, s.log)
	if res == nil {
		return ImportReport{}, fmt.Errorf("%w: empty import", interchange.ErrMalformed)
	}
	if mode != interchange.ModeAppend {
		mode = interchange.ModeReplace
	}
	report, err := s.importResult(ctx, reqLog, res, mode)
	if s.observer != nil {
		s.observer.RecordImport(string(res.Kind), string(mode), err == nil)
	}
	if err != nil {
		reqLog.Warn(ctx, "import rejected",
			logging.String("kind", string(res.Kind)),
			logging.String("mode", string(mode)),
			logging.Err(err),
		)
		return ImportReport{}, err
	}
	reqLog.Info(ctx, "import applied",
		logging.String("kind", string(res.Kind)),
		logging.String("mode", string(mode)),
		logging.Int("imported", report.Imported),
		logging.Int("laid_out", report.LaidOut),
	)
	return report, nil
}

func (s *PlanState) importResult(ctx context.Context, log logging.Logger, res *interchange.Result, mode interchange.Mode) (ImportReport, error) {
	if res.Environment != nil {
		if err := res.Environment.Validate(); err != nil {
			return ImportReport{}, fmt.Errorf("%w: %w", ErrInvalidEnvironment, err)
		}
	}
	for key, ov := range res.Overrides {
		if err := ov.Validate(); err != nil {
			return ImportReport{}, fmt.Errorf("link %s: %w", key, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var nodes []model.Node
	if mode == interchange.ModeAppend {
		nodes = s.registry.List()
	}
	for i := range res.Nodes {
		nodes = append(nodes, *res.Nodes[i].Clone())
	}
	laidOut := interchange.LayoutUnplaced(nodes, s.center)

	// ReplaceAll validates the whole batch, duplicates included, before
	// touching anything.
	if err := s.registry.ReplaceAll(nodes); err != nil {
		return ImportReport{}, err
	}

	if res.Environment != nil {
		s.env = res.Environment.Clone()
	}
	if res.Mission != nil {
		s.mission = mergeMission(s.mission, *res.Mission)
	}
	if res.Meta != nil {
		s.meta = res.Meta.Clone()
	}
	if mode == interchange.ModeReplace {
		s.overrides = make(core.Overrides, len(res.Overrides))
	}
	for key, ov := range res.Overrides.Clone() {
		s.overrides[key] = ov
	}

	log.Debug(ctx, "import staged",
		logging.Int("nodes", len(nodes)),
		logging.Int("overrides", len(s.overrides)),
	)
	s.recomputeLocked(ctx)

	msg := "Imported mesh successfully."
	if mode == interchange.ModeAppend {
		msg = "Imported and appended nodes."
	}
	return ImportReport{
		Kind:     res.Kind,
		Mode:     mode,
		Imported: len(res.Nodes),
		LaidOut:  laidOut,
		Message:  msg,
	}, nil
}

// ImportJSON parses data against the current environment and applies it.
func (s *PlanState) ImportJSON(ctx context.Context, data []byte, mode interchange.Mode) (ImportReport, error) {
	res, err := interchange.Parse(data, s.Environment())
	if err != nil {
		s.log.Warn(ctx, "import parse failed", logging.Err(err))
		return ImportReport{}, err
	}
	return s.Import(ctx, res, mode)
}

// LoadPreset replaces the plan with a catalogue scenario. An empty ID
// loads the first preset.
func (s *PlanState) LoadPreset(ctx context.Context, id string) (ImportReport, error) {
	p, err := interchange.LookupPreset(id)
	if err != nil {
		return ImportReport{}, err
	}
	res, err := p.Build(s.Environment(), s.Center())
	if err != nil {
		return ImportReport{}, err
	}
	report, err := s.Import(ctx, res, interchange.ModeReplace)
	if err != nil {
		return ImportReport{}, err
	}
	report.Message = fmt.Sprintf("Loaded preset %q.", p.Label)
	return report, nil
}

// LayoutUnplaced gives grid coordinates to nodes without a position. It
// returns the number of nodes moved.
func (s *PlanState) LayoutUnplaced(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := s.registry.List()
	moved := interchange.LayoutUnplaced(nodes, s.center)
	if moved == 0 {
		return 0, nil
	}
	if err := s.registry.ReplaceAll(nodes); err != nil {
		return 0, err
	}
	s.log.Debug(ctx, "auto layout", logging.Int("moved", moved))
	s.recomputeLocked(ctx)
	return moved, nil
}

// Reset returns the plan to its initial empty state.
func (s *PlanState) Reset(ctx context.Context) {
	ctx, reqLog := logging.WithRequestLogger(ctx, s.log)

	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := s.registry.Len()
	overrides := len(s.overrides)
	s.registry.Clear()
	s.env = model.DefaultEnvironment()
	s.overrides = make(core.Overrides)
	s.mission = model.DefaultMission()
	meta := interchange.DefaultMeta()
	s.meta = &meta
	s.recomputeLocked(ctx)

	reqLog.Debug(ctx, "plan reset",
		logging.String("operation", "reset"),
		logging.Int("nodes", nodes),
		logging.Int("overrides", overrides),
	)
}

// Snapshot returns the plan in the shape the MissionProject exporter needs.
func (s *PlanState) Snapshot() interchange.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return interchange.Project{
		Nodes:       s.registry.List(),
		Links:       append([]core.Link(nil), s.links...),
		Environment: s.env.Clone(),
		Mission:     s.mission,
		Meta:        s.meta.Clone(),
	}
}

// ExportJSON renders the plan as MissionProject JSON.
func (s *PlanState) ExportJSON() ([]byte, error) {
	return interchange.MarshalMissionProject(s.Snapshot())
}

// Analysis returns the results of the last recompute.
func (s *PlanState) Analysis() Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Analysis{
		Nodes:      append([]model.Node(nil), s.nodes...),
		Links:      append([]core.Link(nil), s.links...),
		Robustness: s.robustness,
		Summary:    s.summary,
	}
}

// recomputeLocked rebuilds every derived value. Caller must hold s.mu.
func (s *PlanState) recomputeLocked(ctx context.Context) {
	start := time.Now()
	nodes := s.registry.List()
	links := s.estimator.EstimateLinks(nodes, s.env, s.overrides)
	robustness := core.AnalyzeRobustness(nodes, links)

	s.nodes = nodes
	s.links = links
	s.robustness = robustness
	s.summary = core.Summarize(nodes, links, s.env, robustness)

	if s.observer != nil {
		s.observer.ObserveRecompute(time.Since(start))
	}
	if s.metrics != nil {
		counts := core.CountQualities(links)
		s.metrics.SetMeshCounts(len(nodes), counts.Good, counts.Marginal, counts.Unlikely,
			len(robustness.SPOFNodes), len(robustness.CriticalBridges))
	}
	s.log.Debug(ctx, "mesh recomputed",
		logging.Int("nodes", len(nodes)),
		logging.Int("links", len(links)),
		logging.Int("spof", len(robustness.SPOFNodes)),
		logging.Int("bridges", len(robustness.CriticalBridges)),
	)
}

func (s *PlanState) fillDefaultsLocked(n *model.Node) {
	if strings.TrimSpace(n.ID) == "" {
		n.ID = newNodeID()
	}
	if n.Role == "" {
		n.Role = model.RoleSensor
	}
	if n.Label == "" {
		n.Label = s.registry.NextLabel(n.Role)
	}
	if n.Band == "" {
		n.Band = s.env.PrimaryBand
		if n.Band == "" {
			n.Band = model.Band2400
		}
	}
	if n.MaxRangeMeters <= 0 {
		n.MaxRangeMeters = n.Role.DefaultRangeMeters()
	}
}

func (s *PlanState) checkPairLocked(a, b string) error {
	if a == "" || b == "" || a == b {
		return fmt.Errorf("%w: %q and %q", ErrLinkPairUnknown, a, b)
	}
	for _, id := range []string{a, b} {
		if s.registry.Get(id) == nil {
			return fmt.Errorf("%w: node %q", ErrLinkPairUnknown, id)
		}
	}
	return nil
}

// mergeMission overlays the non-empty fields of in onto cur.
func mergeMission(cur, in model.Mission) model.Mission {
	if in.Name != "" {
		cur.Name = in.Name
	}
	if in.Summary != "" {
		cur.Summary = in.Summary
	}
	if in.ProjectCode != "" {
		cur.ProjectCode = in.ProjectCode
	}
	if in.OriginTool != "" {
		cur.OriginTool = in.OriginTool
	}
	if len(in.AO) > 0 {
		cur.AO = in.AO
	}
	if len(in.Tasks) > 0 {
		cur.Tasks = in.Tasks
	}
	return cur
}

var newNodeID = func() string {
	return "node-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
