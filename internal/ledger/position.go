package ledger

import (
	"time"

	"github.com/mae-kelly/stay-fly/internal/domain"
)

// PositionState is the lifecycle state of a position. Transitions only
// move forward: Open → Monitoring → Closing → Closed.
type PositionState string

const (
	StateOpen       PositionState = "open"
	StateMonitoring PositionState = "monitoring"
	StateClosing    PositionState = "closing"
	StateClosed     PositionState = "closed"
)

// Position is one mirrored holding. All fields are owned by the Ledger;
// callers only ever see copies.
type Position struct {
	ID           string
	TokenAddress string
	SourceWallet string
	Confidence   float64

	StakeUSD   float64
	EntryPrice float64
	Quantity   float64
	OpenedAt   time.Time
	EntryTx    string

	State PositionState

	// Set on close
	ExitPrice   float64
	ProceedsUSD float64
	RealizedPnL float64
	ExitReason  domain.ExitReason
	ClosedAt    time.Time
	ExitTx      string
}

// Multiple returns current price relative to entry.
func (p *Position) Multiple(currentPrice float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return currentPrice / p.EntryPrice
}

// ValueUSD returns the mark value of the holding at currentPrice.
func (p *Position) ValueUSD(currentPrice float64) float64 {
	return p.Quantity * currentPrice
}

// Age returns how long the position has been held.
func (p *Position) Age(now time.Time) time.Duration {
	return now.Sub(p.OpenedAt)
}
