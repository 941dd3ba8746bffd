package signal

import (
	"encoding/hex"
	"math/big"

	"github.com/mae-kelly/stay-fly/internal/domain"
)

// Known swap-router addresses, lowercase.
var defaultRouters = map[string]struct{}{
	"0x7a250d5630b4cf539739df2c5dacb4c659f2488d": {}, // Uniswap V2
	"0xe592427a0aece92de3edee1f18e0157c05861564": {}, // Uniswap V3
	"0xd9e1ce17f2641f24ae83637ab66a2cca9c378b9f": {}, // SushiSwap
	"0x1111111254eeb25477b68fb85ed929f73a960582": {}, // 1inch
}

// selectorRule describes how to locate the traded token for one selector
// family: which 32-byte argument word holds the path offset, and whether
// the call must carry ether value to count as a buy.
type selectorRule struct {
	pathWordIndex int
	requiresValue bool
}

// Leading method selectors treated as buys. The token is decoded from the
// trailing element of the swap path.
var buySelectors = map[string]selectorRule{
	"7ff36ab5": {pathWordIndex: 1, requiresValue: true},  // swapExactETHForTokens
	"18cbafe5": {pathWordIndex: 2, requiresValue: true},  // swapExactTokensForETH
	"38ed1739": {pathWordIndex: 2, requiresValue: false}, // swapExactTokensForTokens
}

const wordSize = 32

// Builder classifies observed activity into trade signals. It is a pure
// static decode with no I/O and no retries; anything that does not parse
// cleanly is simply not a signal.
type Builder struct {
	routers map[string]struct{}
}

func NewBuilder() *Builder {
	return &Builder{routers: defaultRouters}
}

// Build returns the trade signal for a qualifying DEX buy, or false for
// non-swap interactions and undecodable payloads. Confidence is carried
// over from the watched wallet that produced the activity.
func (b *Builder) Build(act *domain.ObservedActivity, confidence float64) (*domain.TradeSignal, bool) {
	if _, ok := b.routers[act.To]; !ok {
		return nil, false
	}
	if len(act.Input) < 4 {
		return nil, false
	}

	rule, ok := buySelectors[hex.EncodeToString(act.Input[:4])]
	if !ok {
		return nil, false
	}
	if rule.requiresValue && (act.ValueWei == nil || act.ValueWei.Sign() <= 0) {
		return nil, false
	}

	token, ok := decodePathToken(act.Input, rule.pathWordIndex)
	if !ok {
		return nil, false
	}

	return &domain.TradeSignal{
		WalletAddress: act.From,
		TokenAddress:  token,
		Notional:      act.ValueETH(),
		Confidence:    confidence,
		DetectedAt:    act.ObservedAt,
		SourceTxHash:  act.TxHash,
	}, true
}

// decodePathToken extracts the final element of the address[] path
// argument. Arguments start after the 4-byte selector; the path word at
// pathWordIndex holds the byte offset of the array, whose first word is
// the length and whose elements are right-aligned addresses.
func decodePathToken(calldata []byte, pathWordIndex int) (string, bool) {
	args := calldata[4:]

	offsetWord := pathWordIndex * wordSize
	if len(args) < offsetWord+wordSize {
		return "", false
	}
	pathOffset := wordToInt(args[offsetWord : offsetWord+wordSize])
	if pathOffset < 0 || len(args) < pathOffset+wordSize {
		return "", false
	}

	pathLen := wordToInt(args[pathOffset : pathOffset+wordSize])
	if pathLen < 2 || pathLen > 8 {
		return "", false
	}

	lastWord := pathOffset + wordSize + (pathLen-1)*wordSize
	if len(args) < lastWord+wordSize {
		return "", false
	}

	addr := args[lastWord+12 : lastWord+wordSize]
	return "0x" + hex.EncodeToString(addr), true
}

// wordToInt reads a 32-byte big-endian word as an int, returning -1 for
// values that cannot index calldata.
func wordToInt(word []byte) int {
	n := new(big.Int).SetBytes(word)
	if !n.IsInt64() || n.Int64() > 1<<24 {
		return -1
	}
	return int(n.Int64())
}
