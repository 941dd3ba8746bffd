package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mae-kelly/stay-fly/internal/domain"
	"github.com/mae-kelly/stay-fly/internal/events"
)

func TestNotifyPostsJSONContent(t *testing.T) {
	var (
		mu   sync.Mutex
		body map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		_ = json.Unmarshal(raw, &body)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, zap.NewNop())
	n.Notify(context.Background(), "hello")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "hello", body["content"])
}

func TestNotifyEmptyURLIsNoop(t *testing.T) {
	n := NewWebhookNotifier("", zap.NewNop())
	n.Notify(context.Background(), "dropped")
}

type captureNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (c *captureNotifier) Notify(ctx context.Context, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
}

func (c *captureNotifier) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.messages))
	copy(out, c.messages)
	return out
}

func TestAttachFormatsBusEvents(t *testing.T) {
	bus := events.NewBus(zap.NewNop(), 16)
	capture := &captureNotifier{}
	subs := Attach(bus, capture)
	require.Len(t, subs, 5)

	require.NoError(t, bus.Publish(events.PositionClosedEvent{
		BaseEvent:    events.BaseEvent{EventType: events.PositionClosed, EventTime: time.Now()},
		TokenAddress: "0xaaa",
		Reason:       domain.ExitTakeProfit,
		Multiple:     5.2,
		RealizedPnL:  1200,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))

	msgs := capture.all()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "0xaaa")
	assert.Contains(t, msgs[0], "take_profit")
	assert.Contains(t, msgs[0], "1200")
}
