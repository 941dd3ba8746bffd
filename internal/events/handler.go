package events

import "context"

// Handler consumes events of one type. Handle runs on the bus dispatch
// goroutine and must not block indefinitely.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription detaches a subscriber from the bus.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id        string
	bus       *Bus
	eventType EventType
}

func (s *subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id, s.eventType)
}
