package engine

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mae-kelly/stay-fly/internal/domain"
	"github.com/mae-kelly/stay-fly/internal/ledger"
	"github.com/mae-kelly/stay-fly/internal/safety"
	"github.com/mae-kelly/stay-fly/internal/signal"
	"github.com/mae-kelly/stay-fly/internal/watchset"
)

const (
	uniswapV2Router = "0x7a250d5630b4cf539739df2c5dacb4c659f2488d"
	wethAddress     = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	memeToken       = "0x0000000000000000000000000000000000c0ffee"
)

// buildEthBuyCalldata encodes a swapExactETHForTokens call with a
// two-element path ending at token.
func buildEthBuyCalldata(token string) []byte {
	selector, _ := hex.DecodeString("7ff36ab5")
	word := func(v uint64) []byte {
		w := make([]byte, 32)
		binary.BigEndian.PutUint64(w[24:], v)
		return w
	}
	addrWord := func(addr string) []byte {
		w := make([]byte, 32)
		raw, _ := hex.DecodeString(addr[2:])
		copy(w[12:], raw)
		return w
	}

	data := selector
	data = append(data, word(0)...)      // amountOutMin
	data = append(data, word(4*32)...)   // path offset
	data = append(data, addrWord("0x000000000000000000000000000000000000dead")...) // to
	data = append(data, word(9999999999)...) // deadline
	data = append(data, word(2)...)          // path length
	data = append(data, addrWord(wethAddress)...)
	data = append(data, addrWord(token)...)
	return data
}

func buyActivity(from, txHash string) domain.ObservedActivity {
	return domain.ObservedActivity{
		From:       from,
		To:         uniswapV2Router,
		ValueWei:   big.NewInt(500_000_000_000_000_000), // 0.5 ETH
		Input:      buildEthBuyCalldata(memeToken),
		TxHash:     txHash,
		ObservedAt: time.Now(),
	}
}

type slowGateway struct {
	mu    sync.Mutex
	calls int
}

func (g *slowGateway) ExecuteBuy(ctx context.Context, token string, stakeUSD float64) *domain.TradeOutcome {
	time.Sleep(20 * time.Millisecond)

	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return &domain.TradeOutcome{
		Status:         domain.OutcomeExecuted,
		TxHash:         "0xexec",
		AmountOut:      100,
		EffectivePrice: 1.0,
	}
}

func (g *slowGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type passOracle struct{}

func (passOracle) IsSafeToTrade(context.Context, string) (bool, float64, error) {
	return true, 90, nil
}

type failOracle struct{}

func (failOracle) IsSafeToTrade(context.Context, string) (bool, float64, error) {
	return false, 10, nil
}

type recordingAuditor struct {
	mu      sync.Mutex
	reasons []domain.RejectReason
}

func (a *recordingAuditor) RecordSignal(sig *domain.TradeSignal, accepted bool, reason domain.RejectReason) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !accepted {
		a.reasons = append(a.reasons, reason)
	}
}

func (a *recordingAuditor) rejections() []domain.RejectReason {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.RejectReason, len(a.reasons))
	copy(out, a.reasons)
	return out
}

type engineHarness struct {
	engine  *Engine
	gateway *slowGateway
	book    *ledger.Ledger
	auditor *recordingAuditor
}

type sellNoop struct{}

func (sellNoop) ExecuteSell(context.Context, string, float64) *domain.TradeOutcome {
	return &domain.TradeOutcome{Status: domain.OutcomeExecuted}
}

type flatPrices struct{}

func (flatPrices) PriceUSD(context.Context, string) (float64, error) { return 1.0, nil }

func newHarness(t *testing.T, oracle safety.Oracle) *engineHarness {
	return newHarnessWithCash(t, oracle, 1000)
}

func newHarnessWithCash(t *testing.T, oracle safety.Oracle, cash float64) *engineHarness {
	t.Helper()

	watch := watchset.New()
	watch.Replace([]domain.WatchedWallet{
		{Address: "0xwhale", Confidence: 0.9, Source: "test"},
	})

	account := ledger.NewCapitalAccount(cash)
	book := ledger.New(ledger.Config{
		TakeProfitMultiple: 5.0,
		StopLossMultiple:   0.2,
		MaxHold:            24 * time.Hour,
		CloseRetries:       1,
	}, account, sellNoop{}, flatPrices{}, nil, nil, nil, zap.NewNop())

	auditor := &recordingAuditor{}
	validator := signal.NewValidator(signal.ValidatorConfig{
		MinConfidence: 0.7,
		MaxPositions:  5,
		MinNotional:   0.1,
	}, book, auditor, zap.NewNop())
	sizer := signal.NewSizer(signal.SizerConfig{
		MaxPositionFraction: 0.30,
		MaxSingleFraction:   0.50,
		MinStakeUSD:         10,
	})

	gateway := &slowGateway{}
	eng := New(Config{Workers: 4},
		watch, signal.NewBuilder(), validator, sizer, oracle, gateway, book,
		auditor, nil, zap.NewNop())

	return &engineHarness{engine: eng, gateway: gateway, book: book, auditor: auditor}
}

func runActivities(t *testing.T, h *engineHarness, acts []domain.ObservedActivity) {
	t.Helper()
	activities := make(chan domain.ObservedActivity, len(acts))
	for _, act := range acts {
		activities <- act
	}
	close(activities)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.engine.Run(ctx, activities))
}

func TestActivityFlowsToOpenPosition(t *testing.T) {
	h := newHarness(t, passOracle{})
	runActivities(t, h, []domain.ObservedActivity{buyActivity("0xwhale", "0xtx1")})

	assert.Equal(t, 1, h.gateway.callCount())
	assert.Equal(t, 1, h.book.OpenCount())
	assert.True(t, h.book.HasPosition(memeToken))
	// stake = 1000*0.30*(0.5+0.9) = 420
	assert.InDelta(t, 580.0, h.book.Cash(), 0.001)
}

func TestUnwatchedWalletIgnored(t *testing.T) {
	h := newHarness(t, passOracle{})
	runActivities(t, h, []domain.ObservedActivity{buyActivity("0xnobody", "0xtx1")})

	assert.Zero(t, h.gateway.callCount())
	assert.Zero(t, h.book.OpenCount())
}

func TestUnsafeTokenRejected(t *testing.T) {
	h := newHarness(t, failOracle{})
	runActivities(t, h, []domain.ObservedActivity{buyActivity("0xwhale", "0xtx1")})

	assert.Zero(t, h.gateway.callCount())
	assert.Contains(t, h.auditor.rejections(), domain.RejectUnsafeToken)
}

func TestSameTokenExecutesOnce(t *testing.T) {
	h := newHarness(t, passOracle{})
	// Distinct source transactions for the same token arriving in a burst:
	// only one may reach the venue while execution is in flight.
	runActivities(t, h, []domain.ObservedActivity{
		buyActivity("0xwhale", "0xtx1"),
		buyActivity("0xwhale", "0xtx2"),
		buyActivity("0xwhale", "0xtx3"),
	})

	assert.Equal(t, 1, h.gateway.callCount())
	assert.Equal(t, 1, h.book.OpenCount())

	rejections := h.auditor.rejections()
	assert.Len(t, rejections, 2)
	for _, r := range rejections {
		assert.Equal(t, domain.RejectExistingPosition, r)
	}
}

func TestStakeBelowFloorRejected(t *testing.T) {
	// cash 20 sizes the stake at 20*0.30*1.4 = 8.40, under the $10 floor.
	h := newHarnessWithCash(t, passOracle{}, 20)
	runActivities(t, h, []domain.ObservedActivity{buyActivity("0xwhale", "0xtx1")})

	assert.Zero(t, h.gateway.callCount())
	assert.Zero(t, h.book.OpenCount())
	assert.Contains(t, h.auditor.rejections(), domain.RejectZeroStake)
}

func TestDuplicateSourceTxRejected(t *testing.T) {
	h := newHarness(t, passOracle{})
	runActivities(t, h, []domain.ObservedActivity{
		buyActivity("0xwhale", "0xtx1"),
		buyActivity("0xwhale", "0xtx1"),
	})

	assert.Equal(t, 1, h.gateway.callCount())
	assert.Contains(t, h.auditor.rejections(), domain.RejectDuplicateSignal)
}
