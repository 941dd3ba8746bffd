package venue

import "context"

// Quote is the aggregator's answer for a prospective swap.
type Quote struct {
	ToTokenAmount string
	EstimatedGas  uint64
	PriceImpact   float64 // percent
}

// SwapRequest describes a swap submission.
type SwapRequest struct {
	FromToken     string
	ToToken       string
	AmountWei     string
	SlippagePct   float64
	WalletAddress string
	GasPriceLevel string // "", "average", "high"
}

// SwapResult is the venue's acknowledgement of a submitted swap.
type SwapResult struct {
	TxHash string
	Status string
}

// QuoteProvider fetches swap quotes from the venue.
type QuoteProvider interface {
	GetQuote(ctx context.Context, fromToken, toToken, amountWei string) (*Quote, error)
}

// SwapExecutor submits swaps to the venue.
type SwapExecutor interface {
	Swap(ctx context.Context, req SwapRequest) (*SwapResult, error)
}
