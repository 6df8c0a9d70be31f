package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/kiwari-pos/floor/internal/service"
	"github.com/kiwari-pos/floor/internal/ws"
)

// DefaultSubjectPrefix roots every floor subject: floor.<outlet>.<event type>.
const DefaultSubjectPrefix = "floor"

// BusNotifier publishes events as JSON to the message bus.
type BusNotifier struct {
	pub    Publisher
	prefix string
}

func NewBusNotifier(pub Publisher, prefix string) *BusNotifier {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &BusNotifier{pub: pub, prefix: prefix}
}

// Subject returns the subject an event is published on.
func (n *BusNotifier) Subject(e service.Event) string {
	return n.prefix + "." + e.OutletID.String() + "." + e.Type
}

func (n *BusNotifier) Emit(ctx context.Context, e service.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		log.Printf("ERROR: encode event %s: %v", e.Type, err)
		return
	}
	if err := n.pub.Publish(ctx, n.Subject(e), data); err != nil {
		log.Printf("ERROR: publish event %s for order %s: %v", e.Type, e.OrderID, err)
	}
}

// HubNotifier pushes events to the floor screens of the event's outlet.
type HubNotifier struct {
	hub *ws.Hub
}

func NewHubNotifier(hub *ws.Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) Emit(_ context.Context, e service.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Printf("ERROR: encode event %s: %v", e.Type, err)
		return
	}
	n.hub.BroadcastToOutlet(e.OutletID, ws.Message{
		Type:    e.Type,
		TableID: e.TableID,
		Payload: payload,
	})
}

// Fanout delivers every event to each notifier in order.
type Fanout []service.Notifier

func (f Fanout) Emit(ctx context.Context, e service.Event) {
	for _, n := range f {
		if n != nil {
			n.Emit(ctx, e)
		}
	}
}
