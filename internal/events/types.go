package events

import (
	"time"

	"github.com/mae-kelly/stay-fly/internal/domain"
)

// EventType represents the type of event.
type EventType string

const (
	// Signal pipeline events
	SignalDetected EventType = "signal.detected"
	SignalRejected EventType = "signal.rejected"

	// Position lifecycle events
	PositionOpened EventType = "position.opened"
	PositionClosed EventType = "position.closed"

	// Risk events
	ForcedLiquidation    EventType = "liquidation.forced"
	MilestoneReached     EventType = "milestone.reached"
	InterventionRequired EventType = "intervention.required"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// Publisher is the side of the bus that pipeline components see.
type Publisher interface {
	Publish(event Event) error
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// SignalDetectedEvent is emitted when a watched wallet's buy is classified.
type SignalDetectedEvent struct {
	BaseEvent
	WalletAddress string
	TokenAddress  string
	Confidence    float64
	NotionalETH   float64
	SourceTxHash  string
}

// SignalRejectedEvent is emitted for every signal turned away before
// execution.
type SignalRejectedEvent struct {
	BaseEvent
	WalletAddress string
	TokenAddress  string
	SourceTxHash  string
	Reason        domain.RejectReason
}

// PositionOpenedEvent is emitted once a mirrored buy is committed to the
// book.
type PositionOpenedEvent struct {
	BaseEvent
	PositionID   string
	TokenAddress string
	StakeUSD     float64
	EntryPrice   float64
	Quantity     float64
	TxHash       string
}

// PositionClosedEvent is emitted exactly once per closed position.
type PositionClosedEvent struct {
	BaseEvent
	PositionID   string
	TokenAddress string
	Reason       domain.ExitReason
	ExitPrice    float64
	ProceedsUSD  float64
	RealizedPnL  float64
	Multiple     float64
	HeldFor      time.Duration
	TxHash       string
}

// ForcedLiquidationEvent is emitted when the risk governor forces a
// position out of the book.
type ForcedLiquidationEvent struct {
	BaseEvent
	TokenAddress string
	Reason       domain.ExitReason
}

// MilestoneReachedEvent is emitted the first time capital crosses a
// multiple of the starting amount.
type MilestoneReachedEvent struct {
	BaseEvent
	Multiple   float64
	CapitalUSD float64
}

// InterventionRequiredEvent is emitted when a close exhausted its retries
// and the position needs an operator.
type InterventionRequiredEvent struct {
	BaseEvent
	PositionID   string
	TokenAddress string
	Detail       string
}
