package executor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/mae-kelly/stay-fly/internal/domain"
	"github.com/mae-kelly/stay-fly/internal/pricefeed"
	"github.com/mae-kelly/stay-fly/internal/venue"
)

// WETH, the base asset every mirrored trade is funded from.
const BaseAssetAddress = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"

// Config bounds the gateway's safety gates and retry policy.
type Config struct {
	MaxSlippagePct float64
	MaxGasUnits    uint64
	Retries        int
	WalletAddress  string
}

// Gateway turns sized signals into venue swaps. Policy violations are
// rejected without retry; transient transport faults are retried with
// exponential backoff; venue business errors fail immediately.
type Gateway struct {
	cfg    Config
	quotes venue.QuoteProvider
	swaps  venue.SwapExecutor
	prices pricefeed.Source
	logger *zap.Logger
}

func NewGateway(cfg Config, quotes venue.QuoteProvider, swaps venue.SwapExecutor, prices pricefeed.Source, logger *zap.Logger) *Gateway {
	return &Gateway{
		cfg:    cfg,
		quotes: quotes,
		swaps:  swaps,
		prices: prices,
		logger: logger.Named("executor"),
	}
}

// ExecuteBuy converts stakeUSD into base-asset terms, quotes the swap,
// applies the safety gates and submits with a high gas priority.
func (g *Gateway) ExecuteBuy(ctx context.Context, tokenAddress string, stakeUSD float64) *domain.TradeOutcome {
	start := time.Now()

	basePrice, err := g.prices.PriceUSD(ctx, BaseAssetAddress)
	if err != nil {
		return g.failed(start, fmt.Sprintf("base asset price unavailable: %v", err))
	}
	amountWei := usdToWei(stakeUSD, basePrice)

	quote, err := g.quoteWithRetry(ctx, BaseAssetAddress, tokenAddress, amountWei)
	if err != nil {
		return g.failed(start, fmt.Sprintf("quote failed: %v", err))
	}

	// Policy gates: violations are final, not retried.
	if quote.PriceImpact > g.cfg.MaxSlippagePct {
		g.logger.Warn("Trade rejected on price impact",
			zap.String("token", tokenAddress),
			zap.Float64("impact_pct", quote.PriceImpact),
			zap.Float64("max_pct", g.cfg.MaxSlippagePct))
		return g.rejected(start, fmt.Sprintf("price impact %.2f%% exceeds %.2f%%", quote.PriceImpact, g.cfg.MaxSlippagePct))
	}
	if quote.EstimatedGas > g.cfg.MaxGasUnits {
		g.logger.Warn("Trade rejected on gas estimate",
			zap.String("token", tokenAddress),
			zap.Uint64("gas", quote.EstimatedGas),
			zap.Uint64("max_gas", g.cfg.MaxGasUnits))
		return g.rejected(start, fmt.Sprintf("gas estimate %d exceeds %d", quote.EstimatedGas, g.cfg.MaxGasUnits))
	}

	result, err := g.swapWithRetry(ctx, venue.SwapRequest{
		FromToken:     BaseAssetAddress,
		ToToken:       tokenAddress,
		AmountWei:     amountWei,
		SlippagePct:   g.cfg.MaxSlippagePct,
		WalletAddress: g.cfg.WalletAddress,
		GasPriceLevel: "high",
	})
	if err != nil {
		return g.failed(start, fmt.Sprintf("swap failed: %v", err))
	}

	tokenPrice, err := g.prices.PriceUSD(ctx, tokenAddress)
	if err != nil || tokenPrice <= 0 {
		return g.failed(start, fmt.Sprintf("token price unavailable after swap: %v", err))
	}

	return &domain.TradeOutcome{
		Status:         domain.OutcomeExecuted,
		TxHash:         result.TxHash,
		AmountOut:      stakeUSD / tokenPrice,
		EffectivePrice: tokenPrice,
		ExecutionTime:  time.Since(start),
	}
}

// ExecuteSell swaps quantity of tokenAddress back into the base asset.
// Used for position closes; the same retry and failure semantics apply,
// but there are no policy gates on the way out.
func (g *Gateway) ExecuteSell(ctx context.Context, tokenAddress string, quantity float64) *domain.TradeOutcome {
	start := time.Now()

	tokenPrice, err := g.prices.PriceUSD(ctx, tokenAddress)
	if err != nil || tokenPrice <= 0 {
		return g.failed(start, fmt.Sprintf("token price unavailable: %v", err))
	}

	result, err := g.swapWithRetry(ctx, venue.SwapRequest{
		FromToken:     tokenAddress,
		ToToken:       BaseAssetAddress,
		AmountWei:     tokensToRaw(quantity),
		SlippagePct:   g.cfg.MaxSlippagePct,
		WalletAddress: g.cfg.WalletAddress,
		GasPriceLevel: "high",
	})
	if err != nil {
		return g.failed(start, fmt.Sprintf("reverse swap failed: %v", err))
	}

	return &domain.TradeOutcome{
		Status:         domain.OutcomeExecuted,
		TxHash:         result.TxHash,
		AmountOut:      quantity * tokenPrice,
		EffectivePrice: tokenPrice,
		ExecutionTime:  time.Since(start),
	}
}

func (g *Gateway) quoteWithRetry(ctx context.Context, from, to, amountWei string) (*venue.Quote, error) {
	op := func() (*venue.Quote, error) {
		q, err := g.quotes.GetQuote(ctx, from, to, amountWei)
		if err != nil && !domain.IsTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return q, err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(g.cfg.Retries)+1),
	)
}

func (g *Gateway) swapWithRetry(ctx context.Context, req venue.SwapRequest) (*venue.SwapResult, error) {
	op := func() (*venue.SwapResult, error) {
		res, err := g.swaps.Swap(ctx, req)
		if err != nil && !domain.IsTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return res, err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(g.cfg.Retries)+1),
	)
}

func (g *Gateway) rejected(start time.Time, reason string) *domain.TradeOutcome {
	return &domain.TradeOutcome{
		Status:        domain.OutcomeRejected,
		Reason:        reason,
		ExecutionTime: time.Since(start),
	}
}

func (g *Gateway) failed(start time.Time, reason string) *domain.TradeOutcome {
	return &domain.TradeOutcome{
		Status:        domain.OutcomeFailed,
		Reason:        reason,
		ExecutionTime: time.Since(start),
	}
}

// usdToWei converts a USD stake into base-asset wei at the reference
// price.
func usdToWei(usd, basePriceUSD float64) string {
	if basePriceUSD <= 0 {
		return "0"
	}
	eth := usd / basePriceUSD
	wei, _ := new(big.Float).Mul(big.NewFloat(eth), big.NewFloat(1e18)).Int(nil)
	return wei.String()
}

// tokensToRaw converts a token quantity to raw units assuming the
// standard 18 decimals.
func tokensToRaw(quantity float64) string {
	raw, _ := new(big.Float).Mul(big.NewFloat(quantity), big.NewFloat(1e18)).Int(nil)
	return raw.String()
}
