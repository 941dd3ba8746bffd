package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mae-kelly/stay-fly/internal/domain"
)

const (
	quotePath = "/api/v5/dex/aggregator/quote"
	swapPath  = "/api/v5/dex/aggregator/swap"

	// Ethereum mainnet.
	chainID = "1"

	requestTimeout = 8 * time.Second

	// Documented aggregator ceiling; shared across quote and swap calls.
	requestsPerSecond = 5
	burstSize         = 10
)

// Client talks to the swap-aggregator API. All calls are signed and pass
// through a shared token-bucket limiter.
type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

var (
	_ QuoteProvider = (*Client)(nil)
	_ SwapExecutor  = (*Client)(nil)
)

func NewClient(baseURL string, creds Credentials, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		creds:   creds,
		http:    &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(requestsPerSecond, burstSize),
		logger:  logger.Named("venue"),
	}
}

// envelope is the venue's response wrapper. code "0" is success; any
// other code is a business error and is never retried.
type envelope struct {
	Code string            `json:"code"`
	Msg  string            `json:"msg"`
	Data []json.RawMessage `json:"data"`
}

type quotePayload struct {
	ToTokenAmount string `json:"toTokenAmount"`
	EstimatedGas  string `json:"estimatedGas"`
	PriceImpact   string `json:"priceImpact"`
}

type swapPayload struct {
	TxHash string `json:"txHash"`
	Status string `json:"status"`
}

// GetQuote fetches a quote for swapping amountWei of fromToken into
// toToken.
func (c *Client) GetQuote(ctx context.Context, fromToken, toToken, amountWei string) (*Quote, error) {
	params := url.Values{}
	params.Set("chainId", chainID)
	params.Set("fromTokenAddress", fromToken)
	params.Set("toTokenAddress", toToken)
	params.Set("amount", amountWei)

	var payload quotePayload
	if err := c.get(ctx, quotePath, params, &payload); err != nil {
		return nil, err
	}

	gas, _ := strconv.ParseUint(payload.EstimatedGas, 10, 64)
	impact, _ := strconv.ParseFloat(strings.TrimSuffix(payload.PriceImpact, "%"), 64)

	return &Quote{
		ToTokenAmount: payload.ToTokenAmount,
		EstimatedGas:  gas,
		PriceImpact:   impact,
	}, nil
}

// Swap submits the swap for execution.
func (c *Client) Swap(ctx context.Context, req SwapRequest) (*SwapResult, error) {
	body := map[string]string{
		"chainId":           chainID,
		"fromTokenAddress":  req.FromToken,
		"toTokenAddress":    req.ToToken,
		"amount":            req.AmountWei,
		"slippage":          strconv.FormatFloat(req.SlippagePct, 'f', -1, 64),
		"userWalletAddress": req.WalletAddress,
		"gasPriceLevel":     req.GasPriceLevel,
	}

	var payload swapPayload
	if err := c.post(ctx, swapPath, body, &payload); err != nil {
		return nil, err
	}

	c.logger.Info("Swap submitted",
		zap.String("tx_hash", payload.TxHash),
		zap.String("status", payload.Status))

	return &SwapResult{TxHash: payload.TxHash, Status: payload.Status}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header = c.creds.authHeaders(http.MethodGet, path, "")

	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(string(raw)))
	if err != nil {
		return err
	}
	req.Header = c.creds.authHeaders(http.MethodPost, path, string(raw))

	return c.do(req, out)
}

// do executes the request and decodes the first data element of the
// envelope into out. Transport errors and 5xx responses are transient;
// venue business errors are execution failures.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.NewFault(domain.FaultTransient, "venue request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewFault(domain.FaultTransient, "venue response read failed", err)
	}

	if resp.StatusCode >= 500 {
		return domain.NewFault(domain.FaultTransient,
			fmt.Sprintf("venue status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.NewFault(domain.FaultExecution,
			fmt.Sprintf("venue status %d: %s", resp.StatusCode, string(raw)), nil)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.NewFault(domain.FaultTransient, "venue envelope decode failed", err)
	}
	if env.Code != "0" {
		return domain.NewFault(domain.FaultExecution,
			fmt.Sprintf("venue error %s: %s", env.Code, env.Msg), nil)
	}
	if len(env.Data) == 0 {
		return domain.NewFault(domain.FaultExecution, "venue returned empty data", nil)
	}

	if err := json.Unmarshal(env.Data[0], out); err != nil {
		return domain.NewFault(domain.FaultExecution, "venue payload decode failed", err)
	}
	return nil
}
