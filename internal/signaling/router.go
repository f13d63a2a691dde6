package signaling

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/magesignaling/relay/internal/metrics"
)

// Router interprets inbound frames and delivers them through the registry:
// unicast when the message names a target, broadcast to the rest of the room
// otherwise.
//
// Per-message problems (unparseable frame, missing type, unknown target) are
// reported back to the sender as an error-typed message and never affect
// connection or room state. Per-recipient delivery failures are logged and
// swallowed; they neither roll back delivery to other recipients nor fail
// the route call. Nothing here retries.
type Router struct {
	registry *Registry
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewRouter(registry *Registry, log *slog.Logger, m *metrics.Metrics) *Router {
	return &Router{
		registry: registry,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

// Route handles one inbound frame from (roomID, senderID).
func (rt *Router) Route(roomID, senderID string, frame []byte) {
	msg, err := ParseMessage(frame)
	if err != nil {
		rt.metrics.Inc(metrics.EventMalformedMessage)
		rt.log.Warn("malformed message", "room", roomID, "from", senderID, "err", err)
		rt.reportError(roomID, senderID, "Invalid message format")
		return
	}
	if msg.Type == "" {
		rt.metrics.Inc(metrics.EventMalformedMessage)
		rt.reportError(roomID, senderID, "Message type is required")
		return
	}

	msg.Stamp(senderID, rt.now().UnixMilli())

	if msg.To != "" {
		rt.unicast(roomID, senderID, msg)
		return
	}
	rt.broadcast(roomID, senderID, msg)
}

func (rt *Router) unicast(roomID, senderID string, msg *Message) {
	target, ok := rt.registry.Lookup(roomID, msg.To)
	if !ok {
		rt.metrics.Inc(metrics.EventUnknownTarget)
		rt.reportError(roomID, senderID, fmt.Sprintf("User %s not found in room", msg.To))
		return
	}

	encoded, err := msg.Encode()
	if err != nil {
		rt.log.Error("encode message", "room", roomID, "from", senderID, "err", err)
		return
	}
	rt.deliver(roomID, Member{UserID: msg.To, Handle: target}, encoded)
	rt.metrics.Inc(metrics.EventUnicastRouted)
	rt.log.Debug("unicast routed", "room", roomID, "from", senderID, "to", msg.To, "kind", msg.Kind().String())
}

func (rt *Router) broadcast(roomID, senderID string, msg *Message) {
	encoded, err := msg.Encode()
	if err != nil {
		rt.log.Error("encode message", "room", roomID, "from", senderID, "err", err)
		return
	}

	// Snapshot first: the member set of this broadcast is fixed here even if
	// deliveries trigger joins or leaves. The sender is always excluded.
	targets := rt.registry.BroadcastTargets(roomID, senderID)
	for _, t := range targets {
		rt.deliver(roomID, t, encoded)
	}
	rt.metrics.Inc(metrics.EventBroadcastRouted)
	rt.log.Debug("broadcast routed", "room", roomID, "from", senderID, "recipients", len(targets), "kind", msg.Kind().String())
}

func (rt *Router) deliver(roomID string, m Member, frame []byte) {
	if err := m.Handle.Send(frame); err != nil {
		rt.metrics.Inc(metrics.EventDeliveryFailure)
		rt.log.Warn("delivery failed", "room", roomID, "to", m.UserID, "err", err)
	}
}

// reportError notifies the offending sender. The sender's own handle may be
// gone or failing; that too is swallowed.
func (rt *Router) reportError(roomID, senderID, description string) {
	sender, ok := rt.registry.Lookup(roomID, senderID)
	if !ok {
		return
	}
	msg := NewErrorMessage(description)
	msg.Timestamp = rt.now().UnixMilli()
	encoded, err := msg.Encode()
	if err != nil {
		return
	}
	if err := sender.Send(encoded); err != nil {
		rt.log.Debug("error report not delivered", "room", roomID, "to", senderID, "err", err)
	}
}
