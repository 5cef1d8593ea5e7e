// Package eventbus delivers domain events to in-process subscribers and optionally mirrors them to NATS.
package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/paperdesk/core"
)

type subscription struct {
	id int
	h  core.EventHandler
}

// LocalBus runs the handlers of a topic synchronously, in subscription order.
// A failing or panicking handler is logged and never affects the publisher or the other handlers.
type LocalBus struct {
	logger core.Logger

	mu       sync.RWMutex
	nextID   int
	handlers map[string][]subscription
	closed   bool
}

var _ core.EventBus = (*LocalBus)(nil)

func NewLocalBus(logger core.Logger) *LocalBus {
	return &LocalBus{logger: logger, handlers: make(map[string][]subscription)}
}

var errClosed = errors.New("event bus closed")

func (b *LocalBus) Publish(ctx context.Context, e core.Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errClosed
	}
	subs := append([]subscription(nil), b.handlers[e.Topic]...)
	b.mu.RUnlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	for _, s := range subs {
		b.dispatch(ctx, s.h, e)
	}
	return nil
}

func (b *LocalBus) dispatch(ctx context.Context, h core.EventHandler, e core.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logError("event handler panicked", errors.Errorf("panic: %v", r), e)
		}
	}()
	if err := h(ctx, e); err != nil {
		b.logError("event handler failed", err, e)
	}
}

func (b *LocalBus) logError(msg string, err error, e core.Event) {
	if b.logger == nil {
		return
	}
	b.logger.Error(fmt.Sprintf("%s (%s)", msg, e.Topic), err, map[string]interface{}{"payload": string(e.Payload)})
}

func (b *LocalBus) Subscribe(topic string, h core.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[topic] = append(b.handlers[topic], subscription{id: id, h: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[topic]
		for i, s := range subs {
			if s.id == id {
				b.handlers[topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[string][]subscription)
	return nil
}
