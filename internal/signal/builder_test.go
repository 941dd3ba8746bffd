package signal

import (
	"encoding/hex"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mae-kelly/stay-fly/internal/domain"
)

const (
	uniV2Router = "0x7a250d5630b4cf539739df2c5dacb4c659f2488d"
	wethAddr    = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	tokenAddr   = "0xa0b86a33e6441b24b4b2cccdca5e5f7c9ef3bd20"
)

// buildSwapCalldata assembles router calldata with the path array at the
// given argument word.
func buildSwapCalldata(t *testing.T, selector string, pathWordIndex, argWords int, path ...string) []byte {
	t.Helper()

	sel, err := hex.DecodeString(selector)
	require.NoError(t, err)

	word := func(n int) []byte {
		w := make([]byte, 32)
		big.NewInt(int64(n)).FillBytes(w)
		return w
	}
	addrWord := func(addr string) []byte {
		raw, err := hex.DecodeString(addr[2:])
		require.NoError(t, err)
		w := make([]byte, 32)
		copy(w[12:], raw)
		return w
	}

	data := sel
	for i := 0; i < argWords; i++ {
		if i == pathWordIndex {
			data = append(data, word(argWords*32)...) // path offset: right after the head
		} else {
			data = append(data, word(0)...)
		}
	}
	data = append(data, word(len(path))...)
	for _, p := range path {
		data = append(data, addrWord(p)...)
	}
	return data
}

func ethActivity(input []byte, valueETH float64) *domain.ObservedActivity {
	wei, _ := new(big.Float).Mul(big.NewFloat(valueETH), big.NewFloat(1e18)).Int(nil)
	return &domain.ObservedActivity{
		From:       "0xae2fc483527b8ef99eb5d9b44875f005ba1fae13",
		To:         uniV2Router,
		ValueWei:   wei,
		Input:      input,
		TxHash:     "0x" + "ab"[0:2] + "cd",
		ObservedAt: time.Now(),
	}
}

func TestBuildDecodesEthInSwap(t *testing.T) {
	b := NewBuilder()

	input := buildSwapCalldata(t, "7ff36ab5", 1, 4, wethAddr, tokenAddr)
	sig, ok := b.Build(ethActivity(input, 0.5), 0.85)

	require.True(t, ok)
	require.Equal(t, tokenAddr, sig.TokenAddress)
	require.Equal(t, 0.85, sig.Confidence)
	require.InDelta(t, 0.5, sig.Notional, 1e-9)
}

func TestBuildDecodesLastPathElement(t *testing.T) {
	b := NewBuilder()

	// Three-hop path: the traded token is the trailing element.
	input := buildSwapCalldata(t, "7ff36ab5", 1, 4, wethAddr, "0x1111111111111111111111111111111111111111", tokenAddr)
	sig, ok := b.Build(ethActivity(input, 1.0), 0.9)

	require.True(t, ok)
	require.Equal(t, tokenAddr, sig.TokenAddress)
}

func TestBuildTokenToTokenSwap(t *testing.T) {
	b := NewBuilder()

	input := buildSwapCalldata(t, "38ed1739", 2, 5, wethAddr, tokenAddr)
	act := ethActivity(input, 0)
	act.ValueWei = big.NewInt(0)

	sig, ok := b.Build(act, 0.8)
	require.True(t, ok, "token-to-token family does not require ether value")
	require.Equal(t, tokenAddr, sig.TokenAddress)
	require.Zero(t, sig.Notional)
}

func TestBuildRejections(t *testing.T) {
	b := NewBuilder()
	goodInput := buildSwapCalldata(t, "7ff36ab5", 1, 4, wethAddr, tokenAddr)

	tests := []struct {
		name string
		act  *domain.ObservedActivity
	}{
		{"unknown router", func() *domain.ObservedActivity {
			a := ethActivity(goodInput, 0.5)
			a.To = "0x000000000000000000000000000000000000dead"
			return a
		}()},
		{"unknown selector", func() *domain.ObservedActivity {
			bad := append([]byte{0xde, 0xad, 0xbe, 0xef}, goodInput[4:]...)
			return ethActivity(bad, 0.5)
		}()},
		{"zero value on eth-in selector", func() *domain.ObservedActivity {
			a := ethActivity(goodInput, 0)
			a.ValueWei = big.NewInt(0)
			return a
		}()},
		{"calldata too short", ethActivity([]byte{0x7f, 0xf3}, 0.5)},
		{"truncated path", ethActivity(goodInput[:len(goodInput)-16], 0.5)},
		{"empty path", buildEmptyPathActivity(t)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := b.Build(tt.act, 0.9)
			require.False(t, ok)
		})
	}
}

func buildEmptyPathActivity(t *testing.T) *domain.ObservedActivity {
	input := buildSwapCalldata(t, "7ff36ab5", 1, 4)
	return ethActivity(input, 0.5)
}
