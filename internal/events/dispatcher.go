package events

import (
	"context"
	"errors"
	"sync"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, GrievanceStatusChangedEvent) error

// Publisher emits grievance events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event GrievanceStatusChangedEvent) error
	Close() error
}

// Dispatcher is an in-process Publisher that fans events out to subscribers.
type Dispatcher interface {
	Publisher
	Subscribe(handler EventHandler)
}

// inMemoryDispatcher is a simple synchronous dispatcher.
type inMemoryDispatcher struct {
	mu        sync.RWMutex
	listeners []EventHandler
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{}
}

// Publish synchronously invokes every handler. All handlers run even if some fail;
// their errors are joined.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event GrievanceStatusChangedEvent) error {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners...)
	d.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a handler.
func (d *inMemoryDispatcher) Subscribe(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, handler)
}

func (d *inMemoryDispatcher) Close() error {
	return nil
}
