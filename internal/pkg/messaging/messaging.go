// Package messaging publishes domain events for downstream consumers.
package messaging

import "context"

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
}

// Noop discards every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) PublishEvent(context.Context, string, string, any) error { return nil }
