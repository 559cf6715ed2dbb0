package noticebus

import "context"

// bus is the narrow interface a Publisher needs from a ChannelBus.
type bus interface {
	Publish(ctx context.Context, evt Event) error
}

// Publisher wraps payloads into Events and hands them to a bus.
type Publisher struct {
	bus bus
}

// NewPublisher builds a Publisher over b.
func NewPublisher(b bus) *Publisher {
	return &Publisher{bus: b}
}

// Publish wraps payload in an Event and publishes it.
func (p *Publisher) Publish(ctx context.Context, payload any) error {
	return p.bus.Publish(ctx, NewEvent(payload))
}
