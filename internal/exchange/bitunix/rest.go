// Package bitunix is the Exchange Adapter (§4.1): it abstracts the
// perpetual-futures REST endpoint behind typed operations, signs the
// position-list, close and account requests with HMAC-SHA256 over
// "timestamp=<ms>" (the ticker, kline and symbol-filter requests are sent
// without a signature), and serializes calls to
// enforce a minimum 100ms client-side pacing. It never retries internally —
// a failed call returns an error and the calling loop decides whether to
// try again on its next tick.
package bitunix

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"bitunix-position-manager/internal/domain"
	"bitunix-position-manager/internal/technical"
	"bitunix-position-manager/internal/xerr"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Client provides REST access to the exchange's perpetual-futures API.
type Client struct {
	key, secret, base string
	rest              *resty.Client
	limiter           *rate.Limiter
}

// minPacing is the mandated minimum spacing between requests (§4.1).
const minPacing = 100 * time.Millisecond

// NewClient builds a Client with connection-pooled transport tuning and the
// mandated request pacing. timeout bounds every individual call (§5, default
// 10s).
func NewClient(key, secret, base string, timeout time.Duration) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	r := resty.New()
	r.SetTransport(transport)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	r.SetTimeout(timeout)

	return &Client{
		key:     key,
		secret:  secret,
		base:    base,
		rest:    r,
		limiter: rate.NewLimiter(rate.Every(minPacing), 1),
	}
}

func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// signedRequest waits for the pacing limiter, then returns a request bound to
// ctx and the current Unix-millisecond timestamp for the caller to sign.
func (c *Client) signedRequest(ctx context.Context) (*resty.Request, string, error) {
	if err := c.wait(ctx); err != nil {
		return nil, "", err
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return c.rest.R().SetContext(ctx), ts, nil
}

// classify maps a transport/HTTP failure into the §7 taxonomy.
func classify(err error, statusCode int) error {
	if err != nil {
		return xerr.Transient("exchange request failed", err)
	}
	switch {
	case statusCode == 429 || statusCode >= 500:
		return xerr.Transient("exchange error", fmt.Errorf("status %d", statusCode))
	case statusCode >= 400:
		return xerr.Permanent("exchange error", fmt.Errorf("status %d", statusCode))
	}
	return nil
}

// openPosition is the wire shape of one entry returned by the positions
// endpoint, following the string-encoded numeric convention used throughout
// this exchange's API.
type openPosition struct {
	Symbol           string  `json:"symbol"`
	Side             string  `json:"side"`
	Qty              float64 `json:"qty,string"`
	EntryPrice       float64 `json:"entryPrice,string"`
	Leverage         int     `json:"leverage,string"`
	UnrealizedPnL    float64 `json:"unrealizedPNL,string"`
	LiquidationPrice float64 `json:"liquidationPrice,string"`
}

// ListOpenPositions returns every position with nonzero quantity.
func (c *Client) ListOpenPositions(ctx context.Context) ([]domain.PositionSnapshot, error) {
	req, ts, err := c.signedRequest(ctx)
	if err != nil {
		return nil, err
	}

	query := "timestamp=" + ts
	sign := Sign(c.secret, query)

	var positions []openPosition
	resp, err := req.
		SetHeader("X-API-KEY", c.key).
		SetHeader("X-SIGNATURE", sign).
		SetQueryParam("timestamp", ts).
		SetResult(&positions).
		Get(c.base + "/api/v1/futures/position/list")

	if cerr := classify(err, statusCodeOf(resp)); cerr != nil {
		return nil, cerr
	}

	out := make([]domain.PositionSnapshot, 0, len(positions))
	for _, p := range positions {
		if p.Qty == 0 {
			continue
		}
		side := domain.Long
		if p.Side == string(domain.Short) {
			side = domain.Short
		}
		out = append(out, domain.PositionSnapshot{
			Symbol:        p.Symbol,
			Side:          side,
			Quantity:      abs(p.Qty),
			EntryPrice:    p.EntryPrice,
			Leverage:      p.Leverage,
			UnrealizedPnL: p.UnrealizedPnL,
			LiquidationPx: p.LiquidationPrice,
		})
	}
	return out, nil
}

// CurrentPrice returns the last trade price for symbol.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	req, _, err := c.signedRequest(ctx)
	if err != nil {
		return 0, err
	}

	var ticker struct {
		Price float64 `json:"lastPrice,string"`
	}
	resp, err := req.
		SetQueryParam("symbol", symbol).
		SetResult(&ticker).
		Get(c.base + "/api/v1/futures/market/ticker")

	if cerr := classify(err, statusCodeOf(resp)); cerr != nil {
		return 0, cerr
	}
	return ticker.Price, nil
}

// wireKline is the exchange's candle wire shape, newest-last once sorted.
type wireKline struct {
	OpenTime int64   `json:"openTime"`
	Open     float64 `json:"open,string"`
	High     float64 `json:"high,string"`
	Low      float64 `json:"low,string"`
	Close    float64 `json:"close,string"`
	Volume   float64 `json:"volume,string"`
}

// Klines fetches the last `limit` candles for symbol at the given interval,
// returned newest-last for direct use by internal/technical.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]technical.Candle, error) {
	req, _, err := c.signedRequest(ctx)
	if err != nil {
		return nil, err
	}

	var wire []wireKline
	resp, err := req.
		SetQueryParams(map[string]string{
			"symbol":   symbol,
			"interval": interval,
			"limit":    strconv.Itoa(limit),
		}).
		SetResult(&wire).
		Get(c.base + "/api/v1/futures/market/kline")

	if cerr := classify(err, statusCodeOf(resp)); cerr != nil {
		return nil, cerr
	}

	out := make([]technical.Candle, len(wire))
	for i, k := range wire {
		out[i] = technical.Candle{
			OpenTime: k.OpenTime,
			Open:     k.Open,
			High:     k.High,
			Low:      k.Low,
			Close:    k.Close,
			Volume:   k.Volume,
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	return out, nil
}

// CloseResult is what a reduce-only close submission reports back.
type CloseResult struct {
	Success        bool
	OrderID        string
	FilledQuantity float64
	Error          string
}

// ClosePosition submits a reduce-only market order on the opposing side of
// posSide, closing up to quantity. It does not retry internally (§4.1).
func (c *Client) ClosePosition(ctx context.Context, symbol string, quantity float64, posSide domain.Side, reason string) (CloseResult, error) {
	req, ts, err := c.signedRequest(ctx)
	if err != nil {
		return CloseResult{}, err
	}

	orderSide := "SELL"
	if posSide == domain.Short {
		orderSide = "BUY"
	}

	body := map[string]string{
		"symbol":     symbol,
		"side":       orderSide,
		"tradeSide":  "CLOSE",
		"qty":        strconv.FormatFloat(quantity, 'f', -1, 64),
		"orderType":  "MARKET",
		"reduceOnly": "true",
		"timestamp":  ts,
	}

	query := "timestamp=" + ts
	sign := Sign(c.secret, query)

	var result struct {
		Code           int     `json:"code"`
		Msg            string  `json:"msg"`
		OrderID        string  `json:"orderId"`
		FilledQuantity float64 `json:"filledQty,string"`
	}

	resp, err := req.
		SetHeader("X-API-KEY", c.key).
		SetHeader("X-SIGNATURE", sign).
		SetBody(body).
		SetResult(&result).
		Post(c.base + "/api/v1/futures/trade/close_position")

	if cerr := classify(err, statusCodeOf(resp)); cerr != nil {
		return CloseResult{}, cerr
	}
	if result.Code != 0 {
		return CloseResult{Success: false, Error: result.Msg}, xerr.Permanent("close rejected: "+result.Msg, nil)
	}

	return CloseResult{
		Success:        true,
		OrderID:        result.OrderID,
		FilledQuantity: result.FilledQuantity,
	}, nil
}

// AccountMargin fetches the account-wide margin snapshot.
func (c *Client) AccountMargin(ctx context.Context) (domain.AccountMargin, error) {
	req, ts, err := c.signedRequest(ctx)
	if err != nil {
		return domain.AccountMargin{}, err
	}

	query := "timestamp=" + ts
	sign := Sign(c.secret, query)

	var margin struct {
		WalletBalance    float64 `json:"walletBalance,string"`
		MarginBalance    float64 `json:"marginBalance,string"`
		AvailableBalance float64 `json:"availableBalance,string"`
		UnrealizedPnL    float64 `json:"unrealizedPNL,string"`
		MarginRatio      float64 `json:"marginRatio,string"`
	}

	resp, err := req.
		SetHeader("X-API-KEY", c.key).
		SetHeader("X-SIGNATURE", sign).
		SetQueryParam("timestamp", ts).
		SetResult(&margin).
		Get(c.base + "/api/v1/futures/account")

	if cerr := classify(err, statusCodeOf(resp)); cerr != nil {
		return domain.AccountMargin{}, cerr
	}

	return domain.AccountMargin{
		WalletBalance:    margin.WalletBalance,
		MarginBalance:    margin.MarginBalance,
		AvailableBalance: margin.AvailableBalance,
		UnrealizedPnL:    margin.UnrealizedPnL,
		MarginRatio:      margin.MarginRatio,
	}, nil
}

// SymbolFilters describes the exchange's quantity-rounding constraints for a
// symbol.
type SymbolFilters struct {
	MinQty      float64
	StepSize    float64
	MinNotional float64
}

// SymbolFilters fetches the exchange-info filters for symbol.
func (c *Client) SymbolFilters(ctx context.Context, symbol string) (SymbolFilters, error) {
	req, _, err := c.signedRequest(ctx)
	if err != nil {
		return SymbolFilters{}, err
	}

	var info struct {
		MinQty      float64 `json:"minQty,string"`
		StepSize    float64 `json:"stepSize,string"`
		MinNotional float64 `json:"minNotional,string"`
	}

	resp, err := req.
		SetQueryParam("symbol", symbol).
		SetResult(&info).
		Get(c.base + "/api/v1/futures/market/symbol_filters")

	if cerr := classify(err, statusCodeOf(resp)); cerr != nil {
		return SymbolFilters{}, cerr
	}

	return SymbolFilters{MinQty: info.MinQty, StepSize: info.StepSize, MinNotional: info.MinNotional}, nil
}

// RoundDownToStep rounds qty down to the nearest valid step per filters,
// never rounding below zero.
func RoundDownToStep(qty float64, filters SymbolFilters) float64 {
	if filters.StepSize <= 0 {
		return qty
	}
	steps := float64(int64(qty / filters.StepSize))
	return steps * filters.StepSize
}

func statusCodeOf(resp *resty.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
