package kb

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/signalsfoundry/mesh-architect/model"
)

var (
	// ErrNodeExists indicates a node with the same ID is already registered.
	ErrNodeExists = errors.New("node already exists")
	// ErrNodeNotFound indicates a requested node was not found.
	ErrNodeNotFound = errors.New("node not found")
	// ErrNodeInvalid indicates a node failed basic structural checks.
	ErrNodeInvalid = errors.New("invalid node")
)

// EventType indicates what kind of change happened in the registry.
type EventType int

const (
	EventNodeAdded EventType = iota
	EventNodeUpdated
	EventNodeRemoved
	EventRegistryReset
)

// Event is emitted to subscribers when the registry changes.
type Event struct {
	Type EventType
	// Node is a copy of the affected record; zero for EventRegistryReset.
	Node model.Node
}

// Registry is the in-memory, thread-safe store of mesh nodes. It is the only
// owner of Node records: every read hands out a copy, and insertion order is
// preserved because pairing and articulation output follow it.
type Registry struct {
	mu sync.RWMutex

	order []string
	nodes map[string]*model.Node

	subs   map[int]func(Event)
	nextID int
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes: make(map[string]*model.Node),
		subs:  make(map[int]func(Event)),
	}
}

// Add registers a node. It returns an error if the ID already exists.
func (r *Registry) Add(n *model.Node) error {
	if err := checkNode(n); err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.nodes[n.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNodeExists, n.ID)
	}
	stored := n.Clone()
	r.nodes[n.ID] = stored
	r.order = append(r.order, n.ID)
	event := Event{Type: EventNodeAdded, Node: *stored.Clone()}
	subs := r.subscribersLocked()
	r.mu.Unlock()

	notify(subs, event)
	return nil
}

// Get returns a copy of the node with the given ID, or nil if not found.
func (r *Registry) Get(id string) *model.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nodes[id].Clone()
}

// List returns copies of all nodes in registry order.
func (r *Registry) List() []model.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Node, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.nodes[id].Clone())
	}
	return out
}

// Len returns the number of registered nodes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Update applies fn to a copy of the node and stores the result. The ID
// cannot be changed through Update.
func (r *Registry) Update(id string, fn func(*model.Node) error) error {
	r.mu.Lock()
	cur, ok := r.nodes[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	next := cur.Clone()
	if fn != nil {
		if err := fn(next); err != nil {
			r.mu.Unlock()
			return err
		}
	}
	if next.ID != id {
		r.mu.Unlock()
		return fmt.Errorf("%w: id is immutable (%q -> %q)", ErrNodeInvalid, id, next.ID)
	}
	if err := checkNode(next); err != nil {
		r.mu.Unlock()
		return err
	}
	r.nodes[id] = next
	event := Event{Type: EventNodeUpdated, Node: *next.Clone()}
	subs := r.subscribersLocked()
	r.mu.Unlock()

	notify(subs, event)
	return nil
}

// Move sets a node's coordinates and clears its unplaced marker.
func (r *Registry) Move(id string, lat, lng float64) error {
	return r.Update(id, func(n *model.Node) error {
		n.Lat = model.Float(lat)
		n.Lng = model.Float(lng)
		n.Unplaced = false
		return nil
	})
}

// Delete removes a node.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	n, ok := r.nodes[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	delete(r.nodes, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	event := Event{Type: EventNodeRemoved, Node: *n}
	subs := r.subscribersLocked()
	r.mu.Unlock()

	notify(subs, event)
	return nil
}

// ReplaceAll swaps the full node set. Nothing changes if any node is invalid
// or IDs collide.
func (r *Registry) ReplaceAll(nodes []model.Node) error {
	if err := checkBatch(nodes, nil); err != nil {
		return err
	}

	r.mu.Lock()
	r.order = r.order[:0]
	r.nodes = make(map[string]*model.Node, len(nodes))
	for i := range nodes {
		r.nodes[nodes[i].ID] = nodes[i].Clone()
		r.order = append(r.order, nodes[i].ID)
	}
	subs := r.subscribersLocked()
	r.mu.Unlock()

	notify(subs, Event{Type: EventRegistryReset})
	return nil
}

// Append adds a batch of nodes after the existing ones, all or nothing.
func (r *Registry) Append(nodes []model.Node) error {
	r.mu.Lock()
	if err := checkBatch(nodes, r.nodes); err != nil {
		r.mu.Unlock()
		return err
	}
	for i := range nodes {
		r.nodes[nodes[i].ID] = nodes[i].Clone()
		r.order = append(r.order, nodes[i].ID)
	}
	subs := r.subscribersLocked()
	r.mu.Unlock()

	notify(subs, Event{Type: EventRegistryReset})
	return nil
}

// Clear removes every node.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.order = nil
	r.nodes = make(map[string]*model.Node)
	subs := r.subscribersLocked()
	r.mu.Unlock()

	notify(subs, Event{Type: EventRegistryReset})
}

// NextLabel returns the default display label for a new node of role,
// e.g. "Relay 3" when two relays already exist.
func (r *Registry) NextLabel(role model.Role) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 1
	for _, id := range r.order {
		if r.nodes[id].Role == role {
			count++
		}
	}
	return fmt.Sprintf("%s %d", role.DisplayName(), count)
}

// Subscribe registers a callback for registry events. It returns an
// unsubscribe function.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

func (r *Registry) subscribersLocked() []func(Event) {
	out := make([]func(Event), 0, len(r.subs))
	for i := 0; i < r.nextID; i++ {
		if fn, ok := r.subs[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

// notify runs outside the lock so subscribers may read the registry.
func notify(subs []func(Event), event Event) {
	for _, sub := range subs {
		sub(event)
	}
}

func checkNode(n *model.Node) error {
	if n == nil || strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrNodeInvalid)
	}
	if r, err := model.ParseRole(string(n.Role)); err != nil {
		return fmt.Errorf("%w: node %q: %w", ErrNodeInvalid, n.ID, err)
	} else if r != n.Role {
		return fmt.Errorf("%w: node %q: role %q is not canonical", ErrNodeInvalid, n.ID, n.Role)
	}
	if !n.Band.Valid() {
		return fmt.Errorf("%w: node %q: %w: %q", ErrNodeInvalid, n.ID, model.ErrInvalidBand, n.Band)
	}
	if n.MaxRangeMeters <= 0 {
		return fmt.Errorf("%w: node %q: max range must be positive", ErrNodeInvalid, n.ID)
	}
	return nil
}

func checkBatch(nodes []model.Node, existing map[string]*model.Node) error {
	seen := make(map[string]struct{}, len(nodes))
	for i := range nodes {
		if err := checkNode(&nodes[i]); err != nil {
			return err
		}
		id := nodes[i].ID
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %q", ErrNodeExists, id)
		}
		if _, dup := existing[id]; dup {
			return fmt.Errorf("%w: %q", ErrNodeExists, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
