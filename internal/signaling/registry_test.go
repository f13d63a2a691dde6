package signaling

import (
	"errors"
	"testing"

	"github.com/magesignaling/relay/internal/metrics"
)

func newTestRegistry() (*Registry, *metrics.Metrics) {
	m := metrics.New()
	return NewRegistry(testLogger(), m), m
}

func TestRegisterAndLookup(t *testing.T) {
	reg, _ := newTestRegistry()
	h := &fakeHandle{}

	if err := reg.Register("r1", "alice", h); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, ok := reg.Lookup("r1", "alice")
	if !ok {
		t.Fatalf("Lookup: not found after Register")
	}
	if got != Handle(h) {
		t.Fatalf("Lookup returned a different handle")
	}

	if _, ok := reg.Lookup("r1", "bob"); ok {
		t.Fatalf("Lookup: unexpected hit for unregistered user")
	}
	if _, ok := reg.Lookup("r2", "alice"); ok {
		t.Fatalf("Lookup: unexpected hit for unregistered room")
	}
}

func TestDuplicateUserRejectedWithoutDisturbingExisting(t *testing.T) {
	reg, _ := newTestRegistry()
	first := &fakeHandle{}
	second := &fakeHandle{}

	if err := reg.Register("r1", "alice", first); err != nil {
		t.Fatalf("Register first: %v", err)
	}
	if err := reg.Register("r1", "alice", second); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("Register second: got %v, want ErrDuplicateUser", err)
	}

	got, ok := reg.Lookup("r1", "alice")
	if !ok || got != Handle(first) {
		t.Fatalf("existing registration disturbed by duplicate attempt")
	}

	// The same user id in a different room is fine.
	if err := reg.Register("r2", "alice", second); err != nil {
		t.Fatalf("Register in other room: %v", err)
	}
}

func TestRoomExistsExactlyWhileOccupied(t *testing.T) {
	reg, m := newTestRegistry()

	if _, ok := reg.RoomSize("r1"); ok {
		t.Fatalf("room should not exist before first join")
	}

	_ = reg.Register("r1", "alice", &fakeHandle{})
	if size, ok := reg.RoomSize("r1"); !ok || size != 1 {
		t.Fatalf("after first join: size=%d ok=%v", size, ok)
	}
	_ = reg.Register("r1", "bob", &fakeHandle{})
	if size, _ := reg.RoomSize("r1"); size != 2 {
		t.Fatalf("after second join: size=%d", size)
	}

	reg.Remove("r1", "alice")
	if size, ok := reg.RoomSize("r1"); !ok || size != 1 {
		t.Fatalf("after first leave: size=%d ok=%v", size, ok)
	}

	reg.Remove("r1", "bob")
	if _, ok := reg.RoomSize("r1"); ok {
		t.Fatalf("room should be deleted when the last member leaves")
	}
	if reg.RoomCount() != 0 {
		t.Fatalf("RoomCount=%d, want 0", reg.RoomCount())
	}
	if m.Get(metrics.EventRoomCreated) != 1 || m.Get(metrics.EventRoomDeleted) != 1 {
		t.Fatalf("room counters: created=%d deleted=%d", m.Get(metrics.EventRoomCreated), m.Get(metrics.EventRoomDeleted))
	}
}

func TestRemoveReturnsRemainingMembers(t *testing.T) {
	reg, _ := newTestRegistry()
	_ = reg.Register("r1", "alice", &fakeHandle{})
	_ = reg.Register("r1", "bob", &fakeHandle{})
	_ = reg.Register("r1", "carol", &fakeHandle{})

	removed, remaining := reg.Remove("r1", "alice")
	if !removed {
		t.Fatalf("expected removal")
	}
	ids := memberIDs(remaining)
	if len(ids) != 2 || !ids["bob"] || !ids["carol"] {
		t.Fatalf("remaining=%v, want bob and carol", ids)
	}

	// Last removal collapses the room and reports no one to notify.
	reg.Remove("r1", "bob")
	removed, remaining = reg.Remove("r1", "carol")
	if !removed || remaining != nil {
		t.Fatalf("last removal: removed=%v remaining=%v", removed, remaining)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	reg, _ := newTestRegistry()
	_ = reg.Register("r1", "alice", &fakeHandle{})

	if removed, _ := reg.Remove("r1", "alice"); !removed {
		t.Fatalf("first removal should succeed")
	}
	if removed, _ := reg.Remove("r1", "alice"); removed {
		t.Fatalf("second removal should be a no-op")
	}
	if removed, _ := reg.Remove("nope", "alice"); removed {
		t.Fatalf("removal from unknown room should be a no-op")
	}
}

func TestBroadcastTargetsExcludesOneUser(t *testing.T) {
	reg, _ := newTestRegistry()
	_ = reg.Register("r1", "alice", &fakeHandle{})
	_ = reg.Register("r1", "bob", &fakeHandle{})
	_ = reg.Register("r1", "carol", &fakeHandle{})

	ids := memberIDs(reg.BroadcastTargets("r1", "alice"))
	if len(ids) != 2 || ids["alice"] || !ids["bob"] || !ids["carol"] {
		t.Fatalf("targets=%v, want bob and carol only", ids)
	}

	if targets := reg.BroadcastTargets("ghost", "alice"); targets != nil {
		t.Fatalf("targets for unknown room=%v, want nil", targets)
	}
}

func TestBroadcastTargetsAreASnapshot(t *testing.T) {
	reg, _ := newTestRegistry()
	_ = reg.Register("r1", "alice", &fakeHandle{})
	_ = reg.Register("r1", "bob", &fakeHandle{})

	targets := reg.BroadcastTargets("r1", "alice")

	// Membership changes after the snapshot must not affect it.
	_ = reg.Register("r1", "carol", &fakeHandle{})
	reg.Remove("r1", "bob")

	ids := memberIDs(targets)
	if len(ids) != 1 || !ids["bob"] {
		t.Fatalf("snapshot=%v, want the membership at snapshot time", ids)
	}
}

func memberIDs(members []Member) map[string]bool {
	ids := make(map[string]bool, len(members))
	for _, m := range members {
		ids[m.UserID] = true
	}
	return ids
}
