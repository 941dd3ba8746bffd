package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mae-kelly/stay-fly/internal/domain"
)

// Reconnection policy for the chain feed.
const (
	initialBackoff   = 1 * time.Second
	maxBackoff       = 32 * time.Second
	backoffFactor    = 2.0
	jitterPercent    = 0.2
	handshakeTimeout = 10 * time.Second
	readTimeout      = 90 * time.Second
	writeTimeout     = 10 * time.Second
)

// Source is the chain feed abstraction consumed by the pipeline.
type Source interface {
	Subscribe(ctx context.Context) (<-chan domain.ObservedActivity, error)
}

// Watcher subscribes to the node's pending-transaction feed, resolves each
// hash to a full transaction, filters against the watch set and emits
// ObservedActivity. Delivery is at-most-once: activity seen during a
// reconnect window is lost, which is acceptable because signals are also
// keyed by tx hash downstream.
type Watcher struct {
	wsURL   string
	rpc     *RPCClient
	set     Membership
	logger  *zap.Logger
	backoff time.Duration

	processedCount atomic.Uint64
	forwardedCount atomic.Uint64
}

// Membership is the read side of the watch set.
type Membership interface {
	Contains(address string) bool
}

func NewWatcher(wsURL string, rpc *RPCClient, set Membership, logger *zap.Logger) *Watcher {
	return &Watcher{
		wsURL:   wsURL,
		rpc:     rpc,
		set:     set,
		logger:  logger.Named("stream"),
		backoff: initialBackoff,
	}
}

// ProcessedCount returns the number of feed notifications handled.
func (w *Watcher) ProcessedCount() uint64 { return w.processedCount.Load() }

// ForwardedCount returns the number of activities emitted downstream.
func (w *Watcher) ForwardedCount() uint64 { return w.forwardedCount.Load() }

// Subscribe starts the ingestion loop and returns the activity channel.
// The channel is closed when ctx is cancelled.
func (w *Watcher) Subscribe(ctx context.Context) (<-chan domain.ObservedActivity, error) {
	out := make(chan domain.ObservedActivity, 64)
	go w.runLoop(ctx, out)
	return out, nil
}

func (w *Watcher) runLoop(ctx context.Context, out chan<- domain.ObservedActivity) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stream watcher stopping", zap.Uint64("processed", w.ProcessedCount()))
			return
		default:
		}

		conn, err := w.connect(ctx)
		if err != nil {
			w.logger.Warn("Feed connect failed",
				zap.Error(err),
				zap.Duration("backoff", w.backoff))
			w.waitBackoff(ctx)
			continue
		}

		w.backoff = initialBackoff
		if err := w.readLoop(ctx, conn, out); err != nil && ctx.Err() == nil {
			w.logger.Warn("Feed read error, reconnecting", zap.Error(err))
		}
		conn.Close()

		if ctx.Err() != nil {
			w.logger.Info("Stream watcher stopping", zap.Uint64("processed", w.ProcessedCount()))
			return
		}
		w.waitBackoff(ctx)
	}
}

func (w *Watcher) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", w.wsURL, err)
	}

	sub := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "eth_subscribe",
		"params":  []interface{}{"newPendingTransactions"},
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	w.logger.Info("Subscribed to pending transaction feed", zap.String("endpoint", w.wsURL))
	return conn, nil
}

// subscriptionMessage is the eth_subscription notification envelope.
type subscriptionMessage struct {
	Method string `json:"method"`
	Params struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
}

func (w *Watcher) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- domain.ObservedActivity) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg subscriptionMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Method != "eth_subscription" {
			continue // subscription ack or unrelated frame
		}

		var txHash string
		if err := json.Unmarshal(msg.Params.Result, &txHash); err != nil {
			// Some providers deliver the full transaction object instead of
			// the bare hash.
			var tx Transaction
			if err := json.Unmarshal(msg.Params.Result, &tx); err != nil || tx.Hash == "" {
				continue
			}
			w.handleTransaction(&tx, out)
			continue
		}

		w.handleHash(ctx, txHash, out)
	}
}

func (w *Watcher) handleHash(ctx context.Context, txHash string, out chan<- domain.ObservedActivity) {
	w.processedCount.Add(1)

	tx, err := w.rpc.TransactionByHash(ctx, txHash)
	if err != nil {
		w.logger.Debug("Transaction lookup failed", zap.String("tx", txHash), zap.Error(err))
		return
	}
	if tx == nil {
		return
	}
	w.emit(tx, out)
}

func (w *Watcher) handleTransaction(tx *Transaction, out chan<- domain.ObservedActivity) {
	w.processedCount.Add(1)
	w.emit(tx, out)
}

// emit never blocks; when the consumer lags the activity is dropped.
func (w *Watcher) emit(tx *Transaction, out chan<- domain.ObservedActivity) {
	from := strings.ToLower(tx.From)
	if !w.set.Contains(from) {
		return
	}

	activity := domain.ObservedActivity{
		From:        from,
		To:          strings.ToLower(tx.To),
		ValueWei:    ParseHexBig(tx.Value),
		GasPriceWei: ParseHexBig(tx.GasPrice),
		Input:       ParseHexBytes(tx.Input),
		TxHash:      tx.Hash,
		ObservedAt:  time.Now().UTC(),
	}

	select {
	case out <- activity:
		w.forwardedCount.Add(1)
		w.logger.Info("Watched wallet activity",
			zap.String("wallet", from),
			zap.String("tx", tx.Hash))
	default:
		w.logger.Warn("Activity channel full, dropping", zap.String("tx", tx.Hash))
	}
}

func (w *Watcher) waitBackoff(ctx context.Context) {
	jitter := time.Duration(float64(w.backoff) * jitterPercent * (rand.Float64()*2 - 1))
	wait := w.backoff + jitter

	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}

	w.backoff = time.Duration(float64(w.backoff) * backoffFactor)
	if w.backoff > maxBackoff {
		w.backoff = maxBackoff
	}
}
