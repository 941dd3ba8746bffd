package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedEvent struct {
	eventType EventType
	token     string
}

func drain(t *testing.T, bus *Bus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))
}

func TestBusDeliversInPublishOrder(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)

	var mu sync.Mutex
	var got []recordedEvent
	record := func(_ context.Context, evt Event) error {
		mu.Lock()
		defer mu.Unlock()
		switch e := evt.(type) {
		case PositionOpenedEvent:
			got = append(got, recordedEvent{evt.Type(), e.TokenAddress})
		case PositionClosedEvent:
			got = append(got, recordedEvent{evt.Type(), e.TokenAddress})
		}
		return nil
	}
	bus.SubscribeFunc(PositionOpened, record)
	bus.SubscribeFunc(PositionClosed, record)

	base := BaseEvent{EventTime: time.Now()}
	require.NoError(t, bus.Publish(PositionOpenedEvent{
		BaseEvent: BaseEvent{EventType: PositionOpened, EventTime: base.EventTime}, TokenAddress: "0xaaa"}))
	require.NoError(t, bus.Publish(PositionClosedEvent{
		BaseEvent: BaseEvent{EventType: PositionClosed, EventTime: base.EventTime}, TokenAddress: "0xaaa"}))
	require.NoError(t, bus.Publish(PositionOpenedEvent{
		BaseEvent: BaseEvent{EventType: PositionOpened, EventTime: base.EventTime}, TokenAddress: "0xbbb"}))

	drain(t, bus)

	want := []recordedEvent{
		{PositionOpened, "0xaaa"},
		{PositionClosed, "0xaaa"},
		{PositionOpened, "0xbbb"},
	}
	assert.Equal(t, want, got)
}

func TestBusDropsWhenBufferFull(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)

	entered := make(chan struct{})
	release := make(chan struct{})
	var enteredOnce sync.Once
	bus.SubscribeFunc(SignalDetected, func(context.Context, Event) error {
		// The handler runs once per dispatched event; only the first entry
		// should signal, later entries would double-close the channel.
		enteredOnce.Do(func() { close(entered) })
		<-release
		return nil
	})

	evt := SignalDetectedEvent{BaseEvent: BaseEvent{EventType: SignalDetected, EventTime: time.Now()}}

	// First event occupies the dispatcher, second fills the buffer, the
	// third has nowhere to go.
	require.NoError(t, bus.Publish(evt))
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher never picked up the first event")
	}
	require.NoError(t, bus.Publish(evt))
	err := bus.Publish(evt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buffer full")
	assert.Equal(t, uint64(1), bus.Stats().Dropped)

	close(release)
	drain(t, bus)
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(zap.NewNop(), 8)

	var mu sync.Mutex
	calls := 0
	sub := bus.SubscribeFunc(MilestoneReached, func(context.Context, Event) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(MilestoneReachedEvent{
		BaseEvent: BaseEvent{EventType: MilestoneReached, EventTime: time.Now()}, Multiple: 2}))
	drain(t, bus)

	assert.Zero(t, calls)
}

func TestBusRejectsPublishAfterShutdown(t *testing.T) {
	bus := NewBus(zap.NewNop(), 8)
	drain(t, bus)

	err := bus.Publish(SignalDetectedEvent{
		BaseEvent: BaseEvent{EventType: SignalDetected, EventTime: time.Now()}})
	assert.ErrorIs(t, err, ErrBusClosed)
}
