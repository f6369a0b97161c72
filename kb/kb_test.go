package kb

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/signalsfoundry/mesh-architect/model"
)

func relay(id string) *model.Node {
	return &model.Node{
		ID:             id,
		Label:          id,
		Role:           model.RoleRelay,
		Band:           model.Band2400,
		MaxRangeMeters: 380,
	}
}

func TestAddAndGetNode(t *testing.T) {
	store := NewRegistry()
	if err := store.Add(relay("r1")); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	got := store.Get("r1")
	if got == nil || got.Label != "r1" {
		t.Fatalf("Get returned %#v, want label r1", got)
	}
	got.Label = "mutated"
	if store.Get("r1").Label != "r1" {
		t.Fatalf("Get must return a copy")
	}
}

func TestAddDuplicate(t *testing.T) {
	store := NewRegistry()
	if err := store.Add(relay("r1")); err != nil {
		t.Fatalf("first Add error: %v", err)
	}
	if err := store.Add(relay("r1")); !errors.Is(err, ErrNodeExists) {
		t.Fatalf("duplicate Add err = %v, want ErrNodeExists", err)
	}
}

func TestAddRejectsUnknownRole(t *testing.T) {
	store := NewRegistry()
	n := relay("x")
	n.Role = "gateway"
	err := store.Add(n)
	if !errors.Is(err, ErrNodeInvalid) || !errors.Is(err, model.ErrInvalidRole) {
		t.Fatalf("Add err = %v, want ErrNodeInvalid wrapping ErrInvalidRole", err)
	}
}

func TestListPreservesInsertionOrder(t *testing.T) {
	store := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		if err := store.Add(relay(id)); err != nil {
			t.Fatalf("Add %s: %v", id, err)
		}
	}
	if err := store.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	nodes := store.List()
	if len(nodes) != 2 || nodes[0].ID != "c" || nodes[1].ID != "b" {
		t.Fatalf("List order = %v, want [c b]", ids(nodes))
	}
}

func TestMoveClearsUnplaced(t *testing.T) {
	store := NewRegistry()
	n := relay("r1")
	n.Unplaced = true
	if err := store.Add(n); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Move("r1", 10, 20); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got := store.Get("r1")
	if got.Unplaced || *got.Lat != 10 || *got.Lng != 20 {
		t.Fatalf("after Move got %+v", got)
	}
	if err := store.Move("missing", 0, 0); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("Move missing err = %v, want ErrNodeNotFound", err)
	}
}

func TestUpdateCannotChangeID(t *testing.T) {
	store := NewRegistry()
	_ = store.Add(relay("r1"))
	err := store.Update("r1", func(n *model.Node) error {
		n.ID = "r2"
		return nil
	})
	if !errors.Is(err, ErrNodeInvalid) {
		t.Fatalf("Update err = %v, want ErrNodeInvalid", err)
	}
	if store.Get("r1") == nil {
		t.Fatalf("node r1 should be untouched")
	}
}

func TestReplaceAllIsAtomic(t *testing.T) {
	store := NewRegistry()
	_ = store.Add(relay("keep"))

	bad := []model.Node{*relay("a"), *relay("a")}
	if err := store.ReplaceAll(bad); !errors.Is(err, ErrNodeExists) {
		t.Fatalf("ReplaceAll err = %v, want ErrNodeExists", err)
	}
	if store.Len() != 1 || store.Get("keep") == nil {
		t.Fatalf("failed ReplaceAll must leave registry untouched")
	}

	if err := store.ReplaceAll([]model.Node{*relay("x"), *relay("y")}); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	if got := ids(store.List()); fmt.Sprint(got) != "[x y]" {
		t.Fatalf("List after ReplaceAll = %v", got)
	}
}

func TestAppendRejectsCollisionWithExisting(t *testing.T) {
	store := NewRegistry()
	_ = store.Add(relay("a"))
	if err := store.Append([]model.Node{*relay("b"), *relay("a")}); !errors.Is(err, ErrNodeExists) {
		t.Fatalf("Append err = %v, want ErrNodeExists", err)
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
}

func TestNextLabel(t *testing.T) {
	store := NewRegistry()
	if got := store.NextLabel(model.RoleUxS); got != "UxS 1" {
		t.Fatalf("NextLabel = %q, want UxS 1", got)
	}
	_ = store.Add(relay("r1"))
	_ = store.Add(relay("r2"))
	if got := store.NextLabel(model.RoleRelay); got != "Relay 3" {
		t.Fatalf("NextLabel = %q, want Relay 3", got)
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	store := NewRegistry()

	var mu sync.Mutex
	var events []EventType
	unsub := store.Subscribe(func(e Event) {
		mu.Lock()
		events = append(events, e.Type)
		mu.Unlock()
	})

	_ = store.Add(relay("r1"))
	_ = store.Move("r1", 1, 1)
	_ = store.Delete("r1")
	unsub()
	_ = store.Add(relay("r2"))

	mu.Lock()
	defer mu.Unlock()
	want := []EventType{EventNodeAdded, EventNodeUpdated, EventNodeRemoved}
	if fmt.Sprint(events) != fmt.Sprint(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("n-%d", i)
			if err := store.Add(relay(id)); err != nil {
				t.Errorf("Add %s: %v", id, err)
				return
			}
			_ = store.Move(id, float64(i), float64(i))
			_ = store.List()
		}(i)
	}
	wg.Wait()
	if store.Len() != 20 {
		t.Fatalf("Len = %d, want 20", store.Len())
	}
}

func ids(nodes []model.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}
