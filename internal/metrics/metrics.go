package metrics

import "sync"

// Event names incremented by the signaling server.
const (
	EventConnAccepted       = "conn_accepted"
	EventConnClosed         = "conn_closed"
	EventAuthFailure        = "auth_failure"
	EventDuplicateUser      = "duplicate_user_rejected"
	EventRoomCreated        = "room_created"
	EventRoomDeleted        = "room_deleted"
	EventUnicastRouted      = "unicast_routed"
	EventBroadcastRouted    = "broadcast_routed"
	EventMalformedMessage   = "malformed_message"
	EventUnknownTarget      = "unknown_target"
	EventDeliveryFailure    = "delivery_failure"
	EventRateLimited        = "rate_limited"
	EventSTUNBindingHandled = "stun_binding_handled"
)

// Metrics is a minimal, concurrency-safe counter registry.
//
// The relay is expected to be scraped via the Prometheus text handler in this
// package; keeping the registry a plain map also keeps routing and lifecycle
// logic testable without a metrics backend.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.m == nil {
		m.m = make(map[string]uint64)
	}
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
