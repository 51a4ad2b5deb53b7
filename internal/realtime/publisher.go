package realtime

import "context"

// Publisher delivers an event to the subscribers of a room. Delivery is best
// effort; callers treat errors as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, room Room, evt Event) error
}

// HubPublisher broadcasts on the hub held by a registry. It is a no-op while
// the registry is empty.
type HubPublisher struct {
	Registry *Registry
}

func NewHubPublisher(r *Registry) *HubPublisher {
	return &HubPublisher{Registry: r}
}

func (p *HubPublisher) Publish(ctx context.Context, room Room, evt Event) error {
	if p == nil || p.Registry == nil {
		return nil
	}
	hub := p.Registry.Get()
	if hub == nil {
		return nil
	}
	hub.Broadcast(room, evt)
	return nil
}
