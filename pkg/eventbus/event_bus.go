// Package eventbus provides the publish/subscribe boundary used to notify
// reporting consumers about committed transitions.
package eventbus

import (
	"context"

	"github.com/tasklane/tasklane/pkg/events"
)

// EventHandler processes one deserialized event.
type EventHandler func(ctx context.Context, event events.Event) error

type EventBus interface {
	Publish(ctx context.Context, key string, event events.Event) error
	Handle(eventType events.EventType, handler EventHandler)
	Subscribe(ctx context.Context) error
	GenerateID() string
	Close() error
}
