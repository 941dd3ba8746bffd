package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Source supplies USD reference prices for tokens. Implementations return
// 0 with an error when no reliable price exists.
type Source interface {
	PriceUSD(ctx context.Context, tokenAddress string) (float64, error)
}

// DexScreener reads spot prices from the DexScreener pairs API, picking
// the highest-liquidity pair for the token.
type DexScreener struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func NewDexScreener(baseURL string, logger *zap.Logger) *DexScreener {
	return &DexScreener{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
		logger:  logger.Named("pricefeed"),
	}
}

type pairsResponse struct {
	Pairs []struct {
		PriceUsd  string `json:"priceUsd"`
		Liquidity struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
	} `json:"pairs"`
}

func (d *DexScreener) PriceUSD(ctx context.Context, tokenAddress string) (float64, error) {
	url := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, tokenAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("price lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price lookup status %d", resp.StatusCode)
	}

	var out pairsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("price decode: %w", err)
	}
	if len(out.Pairs) == 0 {
		return 0, fmt.Errorf("no pairs for token %s", tokenAddress)
	}

	best := out.Pairs[0]
	for _, p := range out.Pairs[1:] {
		if p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}

	price, err := strconv.ParseFloat(best.PriceUsd, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("unusable price %q for token %s", best.PriceUsd, tokenAddress)
	}
	return price, nil
}
