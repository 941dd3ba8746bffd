package domain

// RejectReason codes every way a signal can be turned away before
// execution. Reasons are checked in declaration order and the first match
// wins.
type RejectReason string

const (
	RejectDuplicateSignal  RejectReason = "duplicate_signal"
	RejectLowConfidence    RejectReason = "low_confidence"
	RejectExistingPosition RejectReason = "existing_position"
	RejectPositionCap      RejectReason = "position_cap_reached"
	RejectBelowMinNotional RejectReason = "below_minimum_notional"
	RejectUnsafeToken      RejectReason = "unsafe_token"
	RejectZeroStake        RejectReason = "stake_below_floor"
)

// ExitReason codes why a position left the book.
type ExitReason string

const (
	ExitTakeProfit          ExitReason = "take_profit"
	ExitStopLoss            ExitReason = "stop_loss"
	ExitTimeLimit           ExitReason = "time_limit"
	ExitForcedLiquidation   ExitReason = "forced_liquidation"
	ExitCapitalPreservation ExitReason = "capital_preservation"
	ExitShutdown            ExitReason = "shutdown"
)
