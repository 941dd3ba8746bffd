package safety

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Oracle answers whether a token is tradeable at all. It runs after
// validation and before sizing; a false verdict rejects the signal.
type Oracle interface {
	IsSafeToTrade(ctx context.Context, tokenAddress string) (bool, float64, error)
}

// minScore is the acceptance floor on the 0-100 safety score.
const minScore = 50.0

// HoneypotOracle scores tokens against a honeypot-check API.
type HoneypotOracle struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func NewHoneypotOracle(baseURL string, logger *zap.Logger) *HoneypotOracle {
	return &HoneypotOracle{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
		logger:  logger.Named("safety"),
	}
}

type honeypotResponse struct {
	IsHoneypot bool `json:"isHoneypot"`
	Simulation struct {
		BuyTax  float64 `json:"buyTax"`
		SellTax float64 `json:"sellTax"`
	} `json:"simulationResult"`
}

// IsSafeToTrade returns the verdict and a 0-100 score. Lookup failures
// fail closed: an unreachable oracle rejects the token.
func (o *HoneypotOracle) IsSafeToTrade(ctx context.Context, tokenAddress string) (bool, float64, error) {
	url := fmt.Sprintf("%s/v2/IsHoneypot?address=%s", o.baseURL, tokenAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, 0, err
	}

	resp, err := o.http.Do(req)
	if err != nil {
		return false, 0, fmt.Errorf("safety lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, 0, fmt.Errorf("safety lookup status %d", resp.StatusCode)
	}

	var out honeypotResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, 0, fmt.Errorf("safety decode: %w", err)
	}

	score := scoreToken(out)
	safe := !out.IsHoneypot && score >= minScore

	o.logger.Debug("Token safety verdict",
		zap.String("token", tokenAddress),
		zap.Bool("safe", safe),
		zap.Float64("score", score))

	return safe, score, nil
}

// scoreToken maps the simulation result onto a 0-100 scale. A confirmed
// honeypot zeroes the score; punitive taxes erode it.
func scoreToken(r honeypotResponse) float64 {
	if r.IsHoneypot {
		return 0
	}
	score := 100.0
	score -= r.Simulation.BuyTax * 2
	score -= r.Simulation.SellTax * 2
	if score < 0 {
		score = 0
	}
	return score
}
