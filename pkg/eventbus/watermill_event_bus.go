package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/tasklane/tasklane/pkg/events"
)

type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(_ context.Context, key string, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) {
	eb.subscriptions[eventType] = handler
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			handler, exists := eb.subscriptions[eventType]
			if !exists {
				msg.Ack()

				continue
			}

			event, err := decodeEvent(eventType, msg.Payload)
			if err != nil {
				msg.Nack()

				continue
			}

			if err := handler(ctx, event); err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillEventBus) Close() error {
	if err := eb.publisher.Close(); err != nil {
		return err
	}

	return eb.subscriber.Close()
}

func decodeEvent(eventType events.EventType, payload []byte) (events.Event, error) {
	switch eventType {
	case events.WorkflowCreatedEvent:
		var event events.WorkflowCreated

		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}

		return event, nil
	case events.TaskCreatedEvent:
		var event events.TaskCreated

		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}

		return event, nil
	case events.TaskTransitionAppliedEvent:
		var event events.TaskTransitionApplied

		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}

		return event, nil
	default:
		var event events.BaseEvent

		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}

		return unknownEvent{BaseEvent: event, eventType: eventType}, nil
	}
}

// unknownEvent carries payloads whose type this build does not know about.
type unknownEvent struct {
	events.BaseEvent

	eventType events.EventType
}

func (e unknownEvent) GetType() events.EventType {
	return e.eventType
}
