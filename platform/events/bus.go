// Package events provides event bus infrastructure for decoupled,
// event-driven communication between modules.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"scv_dedup_backend/platform/logger"
)

// InMemoryBus is a simple in-process implementation of Bus.
// Publish fans out to handlers on their own goroutines; PublishSync runs
// handlers inline and collects errors. Subscribing after publishing has
// started is safe.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
	wg       sync.WaitGroup
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for the given event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish delivers the event to all subscribed handlers asynchronously.
// Handler errors and panics are logged, never propagated to the publisher.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.EventName()]
	b.mu.RUnlock()

	for _, h := range handlers {
		h := h
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("event handler panic",
						"event", event.EventName(),
						"panic", fmt.Sprintf("%v", r))
				}
			}()
			if err := h.Handle(ctx, event); err != nil {
				b.log.Error("event handler failed",
					"event", event.EventName(),
					"error", err.Error())
			}
		}()
	}
}

// PublishSync delivers the event inline and returns the joined handler errors.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := b.handlers[event.EventName()]
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", event.EventName(), err))
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until all in-flight async handlers have finished.
// Used during shutdown and in tests.
func (b *InMemoryBus) Wait() {
	b.wg.Wait()
}

var _ Bus = (*InMemoryBus)(nil)
