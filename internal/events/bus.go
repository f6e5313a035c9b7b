package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// UserCreated fires after a user row has been inserted.
	UserCreated = "user.created"
	// UserDeleted fires after a user row and its cascaded data are gone.
	UserDeleted = "user.deleted"
)

// Event is a single notification published on the Bus.
type Event struct {
	Type      string
	UserID    int64
	Timestamp time.Time
}

// NewUserEvent stamps an event for userID.
func NewUserEvent(eventType string, userID int64) Event {
	return Event{Type: eventType, UserID: userID, Timestamp: time.Now().UTC()}
}

// Handler reacts to an event. Returned errors propagate to the publisher.
type Handler func(ctx context.Context, event Event) error

// Bus is a synchronous in-process event bus. Handlers run in subscription order
// on the publisher's goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      logrus.FieldLogger
}

// NewBus creates an empty bus.
func NewBus(log logrus.FieldLogger) *Bus {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Bus{
		handlers: make(map[string][]Handler),
		log:      log.WithField("component", "events"),
	}
}

// Subscribe adds a handler for eventType.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()
	b.log.Debugf("subscribed handler for %s", eventType)
}

// Publish runs every handler for the event type. All handlers run even if one
// fails; their errors are joined.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Type]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debugf("no handlers for %s", event.Type)
		return nil
	}

	var errs []error
	for i, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			b.log.WithFields(logrus.Fields{
				"event":   event.Type,
				"user_id": event.UserID,
				"handler": i,
			}).Errorf("event handler failed: %v", err)
			errs = append(errs, fmt.Errorf("%s handler %d: %w", event.Type, i, err))
		}
	}
	return errors.Join(errs...)
}

// SubscriberCount returns the number of handlers for eventType.
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}
