package signaling

import (
	"log/slog"
	"time"

	"github.com/magesignaling/relay/internal/metrics"
)

// Notifier emits the synthetic join and leave events that announce
// membership changes to the rest of a room. Events are built and delivered
// immediately after the triggering registry mutation, never batched.
type Notifier struct {
	registry *Registry
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewNotifier(registry *Registry, log *slog.Logger, m *metrics.Metrics) *Notifier {
	return &Notifier{
		registry: registry,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

// MemberJoined announces a successful registration to everyone already in
// the room. The new member does not receive its own join event.
func (n *Notifier) MemberJoined(roomID, userID string) {
	targets := n.registry.BroadcastTargets(roomID, userID)
	n.send(roomID, TypeJoin, userID, targets)
}

// MemberLeft announces a removal to the members that remain. When the room
// collapsed there is no one left to notify and remaining is empty.
func (n *Notifier) MemberLeft(roomID, userID string, remaining []Member) {
	n.send(roomID, TypeLeave, userID, remaining)
}

func (n *Notifier) send(roomID, eventType, userID string, targets []Member) {
	if len(targets) == 0 {
		return
	}

	msg := NewMessage(eventType)
	msg.Stamp(userID, n.now().UnixMilli())
	encoded, err := msg.Encode()
	if err != nil {
		n.log.Error("encode membership event", "room", roomID, "type", eventType, "err", err)
		return
	}

	for _, t := range targets {
		if err := t.Handle.Send(encoded); err != nil {
			n.metrics.Inc(metrics.EventDeliveryFailure)
			n.log.Warn("membership event not delivered", "room", roomID, "to", t.UserID, "type", eventType, "err", err)
		}
	}
	n.log.Debug("membership event sent", "room", roomID, "type", eventType, "user", userID, "recipients", len(targets))
}
