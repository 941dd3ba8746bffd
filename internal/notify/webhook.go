package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mae-kelly/stay-fly/internal/events"
)

// Notifier delivers human-readable pipeline updates.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// WebhookNotifier posts messages to a webhook URL. Delivery is
// best-effort: failures are logged and dropped, never surfaced to the
// pipeline.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewWebhookNotifier(url string, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger.Named("notify"),
	}
}

// Notify posts one message. A notifier with an empty URL is a no-op.
func (n *WebhookNotifier) Notify(ctx context.Context, message string) {
	if n.url == "" {
		return
	}

	payload, err := json.Marshal(map[string]string{"content": message})
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		n.logger.Warn("Failed to build webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("Webhook delivery failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Warn("Webhook rejected",
			zap.Int("status", resp.StatusCode))
	}
}

// Attach subscribes the notifier to the events worth telling a human
// about. Returns the subscriptions so the caller can detach on shutdown.
func Attach(bus *events.Bus, n Notifier) []events.Subscription {
	handler := func(ctx context.Context, evt events.Event) error {
		if msg := format(evt); msg != "" {
			n.Notify(ctx, msg)
		}
		return nil
	}

	types := []events.EventType{
		events.PositionOpened,
		events.PositionClosed,
		events.ForcedLiquidation,
		events.MilestoneReached,
		events.InterventionRequired,
	}
	subs := make([]events.Subscription, 0, len(types))
	for _, t := range types {
		subs = append(subs, bus.SubscribeFunc(t, handler))
	}
	return subs
}

func format(evt events.Event) string {
	switch e := evt.(type) {
	case events.PositionOpenedEvent:
		return fmt.Sprintf("📈 Opened %s: stake $%.2f @ %.8f",
			e.TokenAddress, e.StakeUSD, e.EntryPrice)
	case events.PositionClosedEvent:
		emoji := "✅"
		if e.RealizedPnL < 0 {
			emoji = "🔻"
		}
		return fmt.Sprintf("%s Closed %s (%s): %.2fx, PnL $%.2f",
			emoji, e.TokenAddress, e.Reason, e.Multiple, e.RealizedPnL)
	case events.ForcedLiquidationEvent:
		if e.TokenAddress == "" {
			return fmt.Sprintf("🚨 Liquidating entire book: %s", e.Reason)
		}
		return fmt.Sprintf("🚨 Forced out %s: %s", e.TokenAddress, e.Reason)
	case events.MilestoneReachedEvent:
		return fmt.Sprintf("🏆 Capital milestone %gx: $%.2f", e.Multiple, e.CapitalUSD)
	case events.InterventionRequiredEvent:
		return fmt.Sprintf("⚠️ MANUAL INTERVENTION: %s, %s", e.TokenAddress, e.Detail)
	default:
		return ""
	}
}
