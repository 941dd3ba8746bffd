package domain

import (
	"math/big"
	"time"
)

// WatchedWallet is a single entry of the watch set. Entries are immutable
// once loaded; a refresh replaces the whole set, never individual records.
type WatchedWallet struct {
	Address    string  `json:"address"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// ObservedActivity is a raw transaction seen on the chain feed from a
// watched wallet. Produced once by the stream watcher, consumed once.
type ObservedActivity struct {
	From        string
	To          string
	ValueWei    *big.Int
	GasPriceWei *big.Int
	Input       []byte
	TxHash      string
	ObservedAt  time.Time
}

// ValueETH converts the observed wei value to ether units.
func (a *ObservedActivity) ValueETH() float64 {
	if a.ValueWei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(a.ValueWei), big.NewFloat(1e18)).Float64()
	return f
}

// TradeSignal is a classified buy interaction, keyed by
// (TokenAddress, SourceTxHash) to prevent reprocessing.
type TradeSignal struct {
	WalletAddress string
	TokenAddress  string
	Notional      float64 // base-asset size of the mirrored trade, in ETH
	Confidence    float64
	DetectedAt    time.Time
	SourceTxHash  string
}

// Key returns the dedup key for the signal.
func (s *TradeSignal) Key() string {
	return s.TokenAddress + ":" + s.SourceTxHash
}

// OutcomeStatus classifies how an execution attempt ended.
type OutcomeStatus string

const (
	OutcomeExecuted OutcomeStatus = "executed"
	OutcomeRejected OutcomeStatus = "rejected" // policy gate, never retried
	OutcomeFailed   OutcomeStatus = "failed"   // venue or transport failure
)

// TradeOutcome is the result of one ExecutionGateway attempt.
type TradeOutcome struct {
	Status         OutcomeStatus
	Reason         string
	TxHash         string
	AmountOut      float64
	EffectivePrice float64
	ExecutionTime  time.Duration
}

// Success reports whether the swap was actually submitted.
func (o *TradeOutcome) Success() bool { return o.Status == OutcomeExecuted }
