package signaling

import (
	"log/slog"
	"sync"

	"github.com/magesignaling/relay/internal/metrics"
)

// Member pairs a user id with its connection handle, as returned by registry
// snapshots.
type Member struct {
	UserID string
	Handle Handle
}

// Registry is the process-wide map of room id -> user id -> connection
// handle. Rooms are created lazily on first join and deleted as soon as the
// last member leaves, so a room exists exactly while it has members.
//
// All mutations happen under one mutex. Snapshots (broadcast targets,
// remaining members) are taken under the lock and iterated outside it:
// the member set of a broadcast is fixed when the broadcast starts, late
// joiners never receive it, and sends to members that left in the meantime
// fail harmlessly.
type Registry struct {
	log     *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	rooms map[string]map[string]Handle
}

func NewRegistry(log *slog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		log:     log,
		metrics: m,
		rooms:   make(map[string]map[string]Handle),
	}
}

// Register adds a handle under (roomID, userID), creating the room if
// needed. It fails with ErrDuplicateUser when the user id is already taken
// in that room, leaving the existing registration untouched.
func (r *Registry) Register(roomID, userID string, h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[string]Handle)
		r.rooms[roomID] = room
		r.metrics.Inc(metrics.EventRoomCreated)
		r.log.Info("room created", "room", roomID)
	}

	if _, exists := room[userID]; exists {
		return ErrDuplicateUser
	}
	room[userID] = h
	return nil
}

// Remove deletes (roomID, userID) and collapses the room when it empties.
// It is idempotent: removing an absent user or room is a no-op with
// removed == false. When the user was removed and the room survives,
// remaining holds a snapshot of the members left behind, for leave
// notifications.
func (r *Registry) Remove(roomID, userID string) (removed bool, remaining []Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return false, nil
	}
	if _, ok := room[userID]; !ok {
		return false, nil
	}
	delete(room, userID)

	if len(room) == 0 {
		delete(r.rooms, roomID)
		r.metrics.Inc(metrics.EventRoomDeleted)
		r.log.Info("room deleted", "room", roomID)
		return true, nil
	}

	remaining = make([]Member, 0, len(room))
	for id, h := range room {
		remaining = append(remaining, Member{UserID: id, Handle: h})
	}
	return true, remaining
}

// Lookup returns the handle registered under (roomID, userID).
func (r *Registry) Lookup(roomID, userID string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	h, ok := room[userID]
	return h, ok
}

// BroadcastTargets returns a point-in-time snapshot of the room's members
// excluding excludeUserID.
func (r *Registry) BroadcastTargets(roomID, excludeUserID string) []Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	targets := make([]Member, 0, len(room))
	for id, h := range room {
		if id == excludeUserID {
			continue
		}
		targets = append(targets, Member{UserID: id, Handle: h})
	}
	return targets
}

// RoomSize reports the member count of a room and whether the room exists.
func (r *Registry) RoomSize(roomID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	return len(room), ok
}

// RoomCount reports how many rooms currently exist.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
