package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBusClosed is returned by Publish once shutdown has started.
var ErrBusClosed = errors.New("event bus closed")

// Bus fans pipeline events out to subscribers. Publish never blocks the
// trading pipeline: events queue on a bounded buffer and are dropped with
// a warning when it overflows. Dispatch is sequential, so subscribers see
// lifecycle events in publish order (a position's open always precedes
// its close).
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[string]Handler

	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	queue   chan Event
	dropped atomic.Uint64
}

func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		handlers: make(map[EventType]map[string]Handler),
		logger:   logger.Named("events"),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		queue:    make(chan Event, bufferSize),
	}
	go b.run()
	return b
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]Handler)
	}
	b.handlers[eventType][id] = handler

	b.logger.Debug("Subscriber registered",
		zap.String("event_type", string(eventType)),
		zap.String("subscription", id))

	return &subscription{id: id, bus: b, eventType: eventType}
}

// SubscribeFunc registers a plain function as a subscriber.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish enqueues an event for dispatch. A full buffer drops the event
// rather than stalling the caller.
func (b *Bus) Publish(event Event) error {
	select {
	case <-b.ctx.Done():
		return ErrBusClosed
	case b.queue <- event:
		return nil
	default:
		b.dropped.Add(1)
		b.logger.Warn("Event buffer full, dropping",
			zap.String("event_type", string(event.Type())))
		return errors.New("event buffer full")
	}
}

func (b *Bus) run() {
	defer close(b.done)

	for {
		select {
		case <-b.ctx.Done():
			// Deliver whatever is still queued before exiting.
			for {
				select {
				case event := <-b.queue:
					b.dispatch(context.Background(), event)
				default:
					return
				}
			}
		case event := <-b.queue:
			b.dispatch(b.ctx, event)
		}
	}
}

// dispatch delivers one event to every subscriber of its type. Subscriber
// errors are logged and never stop delivery to the rest.
func (b *Bus) dispatch(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type()]))
	for _, h := range b.handlers[event.Type()] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			b.logger.Error("Subscriber failed",
				zap.String("event_type", string(event.Type())),
				zap.Error(err))
		}
	}
}

func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers, ok := b.handlers[eventType]; ok {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(b.handlers, eventType)
		}
	}
}

// Shutdown stops intake and waits for queued events to drain, up to the
// context deadline.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.cancel()

	select {
	case <-b.done:
		b.logger.Info("Event bus drained",
			zap.Uint64("dropped", b.dropped.Load()))
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus drain timed out",
			zap.Int("pending", len(b.queue)))
		return ctx.Err()
	}
}

// BusStats is a point-in-time snapshot, logged during shutdown.
type BusStats struct {
	Pending     int
	Dropped     uint64
	Subscribers map[EventType]int
}

func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs := make(map[EventType]int, len(b.handlers))
	for eventType, handlers := range b.handlers {
		subs[eventType] = len(handlers)
	}
	return BusStats{
		Pending:     len(b.queue),
		Dropped:     b.dropped.Load(),
		Subscribers: subs,
	}
}
