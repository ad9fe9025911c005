// Package venue implements the Market Fetcher (C2) and the Order Lifecycle
// (C8)'s transport against the external signed-order API described in
// spec.md §6. It is adapted from AlejandroRuiz99-polybot's
// internal/adapters/polymarket client (paginated listing + per-market
// detail enrichment, batched orderbook fetch, rate-limited retry loop),
// generalized away from the Polymarket CLOB/Gamma split toward the
// abstract venue surface this spec targets, and rebuilt on
// github.com/go-resty/resty/v2 per Praying-binance-trade-bot-go's
// internal/binance/rest_client.go instead of raw net/http.
package venue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/predimarket/tradingcore/internal/apperr"
	"github.com/predimarket/tradingcore/internal/domain"
	"github.com/predimarket/tradingcore/internal/ports"
	"github.com/predimarket/tradingcore/internal/retry"
)

// Client is the venue HTTP client: rate-limited per endpoint class, with
// exponential-backoff-with-jitter retry via internal/retry.
type Client struct {
	http *resty.Client

	marketsLimiter *rate.Limiter
	booksLimiter   *rate.Limiter
	ordersLimiter  *rate.Limiter

	pageSize        int
	maxMarkets      int
	lowGasThreshold float64

	auditLog ports.RejectionRecorder

	retryPolicy retry.Policy
}

// Config is the subset of config.VenueConfig the client needs, kept
// decoupled from the config package so this adapter has no import cycle
// back to it.
type Config struct {
	MarketsBase       string
	OrdersBase        string
	APIKey            string
	MarketsRatePerSec float64
	BooksRatePerSec   float64
	OrdersRatePerSec  float64
	PageSize          int
	MaxMarkets        int
	LowGasThreshold   float64

	// AuditLog records every rejected-market reason durably. Optional:
	// defaults to a no-op if nil.
	AuditLog ports.RejectionRecorder
}

// New builds a Client against the given endpoints and rate limits.
func New(cfg Config) *Client {
	h := resty.New().
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("Authorization", "Bearer "+cfg.APIKey)

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	maxMarkets := cfg.MaxMarkets
	if maxMarkets <= 0 {
		maxMarkets = 200
	}

	auditLog := cfg.AuditLog
	if auditLog == nil {
		auditLog = ports.NopRejectionRecorder{}
	}

	return &Client{
		http:            h,
		marketsLimiter:  rate.NewLimiter(rate.Limit(orDefault(cfg.MarketsRatePerSec, 18)), 10),
		booksLimiter:    rate.NewLimiter(rate.Limit(orDefault(cfg.BooksRatePerSec, 30)), 5),
		ordersLimiter:   rate.NewLimiter(rate.Limit(orDefault(cfg.OrdersRatePerSec, 10)), 5),
		pageSize:        pageSize,
		maxMarkets:      maxMarkets,
		lowGasThreshold: cfg.LowGasThreshold,
		auditLog:        auditLog,
		retryPolicy:     retry.Default(),
	}
}

func orDefault(v, d float64) float64 {
	if v <= 0 {
		return d
	}
	return v
}

var _ ports.MarketFetcher = (*Client)(nil)
var _ ports.OrderBookProvider = (*Client)(nil)
var _ ports.OrderExecutor = (*Client)(nil)

// marketSummary is the listing endpoint's shape: no token IDs, per §4.2.
type marketSummary struct {
	MarketID string `json:"market_id"`
	Status   string `json:"status"`
}

type marketsPage struct {
	Markets []marketSummary `json:"markets"`
	HasMore bool            `json:"has_more"`
}

// marketDetail is get_market's full-detail shape.
type marketDetail struct {
	MarketID       string  `json:"market_id"`
	Title          string  `json:"title"`
	Category       string  `json:"category"`
	Status         string  `json:"status"`
	YesTokenID     string  `json:"yes_token_id"`
	NoTokenID      string  `json:"no_token_id"`
	AskPrice       float64 `json:"ask_price"`
	BidPrice       float64 `json:"bid_price"`
	Volume         float64 `json:"volume"`
	ResolutionTime string  `json:"resolution_time"`
}

type orderbookWire struct {
	TokenID string          `json:"token_id"`
	Bids    []bookEntryWire `json:"bids"`
	Asks    []bookEntryWire `json:"asks"`
}

type bookEntryWire struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// FetchTradableMarkets walks the paginated listing, fetches detail for
// every listed market and the orderbook only for candidates that pass the
// status, token and category checks, and applies the §3
// tradability invariant. Token existence is checked before any orderbook
// fetch, per the §4.2 critical rule, to avoid spending one venue call per
// untradable market. Every rejection is both logged and recorded to the
// audit log, so FetchedCount (the raw listing size) and len(Tradable)
// (the post-filter set) can be reconciled after the fact.
func (c *Client) FetchTradableMarkets(ctx context.Context) (ports.MarketFetchResult, error) {
	summaries, err := c.walkListing(ctx)
	if err != nil {
		return ports.MarketFetchResult{}, fmt.Errorf("market fetcher: page walk: %w", err)
	}

	var tradable []domain.Market
	for _, s := range summaries {
		detail, err := c.getMarketDetail(ctx, s.MarketID)
		if err != nil {
			slog.Warn("venue: market detail fetch failed, skipping", "market_id", s.MarketID, "err", err)
			continue
		}

		m := detailToMarket(detail)
		if m.Status != domain.MarketActivated {
			c.reject(ctx, m.MarketID, "not_activated", slog.LevelDebug)
			continue
		}
		if m.YesTokenID == "" {
			c.reject(ctx, m.MarketID, "no_yes_token_id", slog.LevelInfo)
			continue
		}
		if m.NoTokenID == "" {
			c.reject(ctx, m.MarketID, "no_no_token_id", slog.LevelInfo)
			continue
		}
		if m.Category == domain.CategorySports {
			c.reject(ctx, m.MarketID, "sports_category", slog.LevelDebug)
			continue
		}

		book, err := c.GetOrderBook(ctx, m.YesTokenID)
		if err != nil {
			slog.Warn("venue: orderbook fetch failed, skipping", "market_id", m.MarketID, "err", err)
			continue
		}
		if !book.HasLiquidity() {
			c.reject(ctx, m.MarketID, "no_liquidity", slog.LevelInfo)
			continue
		}

		tradable = append(tradable, m)
	}
	return ports.MarketFetchResult{Tradable: tradable, FetchedCount: len(summaries)}, nil
}

// reject logs a rejected market at the given level and durably records it
// to the audit log. Audit-log failures are logged but never block the walk.
func (c *Client) reject(ctx context.Context, marketID, reason string, level slog.Level) {
	slog.Log(ctx, level, "venue: rejected market", "market_id", marketID, "reason", reason)
	if err := c.auditLog.RecordRejection(ctx, marketID, reason); err != nil {
		slog.Warn("venue: audit log record failed", "market_id", marketID, "reason", reason, "err", err)
	}
}

func detailToMarket(d marketDetail) domain.Market {
	var resolution time.Time
	if d.ResolutionTime != "" {
		if t, err := time.Parse(time.RFC3339, d.ResolutionTime); err == nil {
			resolution = t
		}
	}
	return domain.Market{
		MarketID:       d.MarketID,
		Title:          d.Title,
		Category:       d.Category,
		Status:         domain.MarketStatus(d.Status),
		YesTokenID:     d.YesTokenID,
		NoTokenID:      d.NoTokenID,
		AskPrice:       d.AskPrice,
		BidPrice:       d.BidPrice,
		Volume:         d.Volume,
		ResolutionTime: resolution,
	}
}

// walkListing paginates get_markets in pageSize batches until maxMarkets
// or end-of-data. A page-walk failure is fatal for the cycle (§4.2).
func (c *Client) walkListing(ctx context.Context) ([]marketSummary, error) {
	var all []marketSummary
	offset := 0
	for len(all) < c.maxMarkets {
		var page marketsPage
		err := c.get(ctx, c.marketsLimiter, "/markets", map[string]string{
			"status": "all",
			"limit":  fmt.Sprintf("%d", c.pageSize),
			"offset": fmt.Sprintf("%d", offset),
		}, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Markets...)
		if !page.HasMore || len(page.Markets) == 0 {
			break
		}
		offset += c.pageSize
	}
	if len(all) > c.maxMarkets {
		all = all[:c.maxMarkets]
	}
	return all, nil
}

func (c *Client) getMarketDetail(ctx context.Context, marketID string) (marketDetail, error) {
	var d marketDetail
	err := c.get(ctx, c.marketsLimiter, "/markets/"+marketID, nil, &d)
	return d, err
}

// GetOrderBook implements ports.OrderBookProvider, retrying up to 3 times
// with exponential backoff per §4.6's side-selection pricing rule.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	var wire orderbookWire
	err := c.get(ctx, c.booksLimiter, "/orderbook/"+tokenID, nil, &wire)
	if err != nil {
		return domain.OrderBook{}, err
	}
	ob := domain.OrderBook{TokenID: wire.TokenID}
	for _, b := range wire.Bids {
		ob.Bids = append(ob.Bids, domain.BookEntry{Price: b.Price, Size: b.Size})
	}
	for _, a := range wire.Asks {
		ob.Asks = append(ob.Asks, domain.BookEntry{Price: a.Price, Size: a.Size})
	}
	return ob, nil
}

func (c *Client) EnableTrading(ctx context.Context) error {
	var out map[string]any
	return c.post(ctx, c.ordersLimiter, "/enable_trading", nil, &out)
}

type placeOrderWire struct {
	Errno   int    `json:"errno"`
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

func (c *Client) PlaceOrder(ctx context.Context, req ports.PlaceOrderRequest) (ports.PlaceOrderResult, error) {
	body := map[string]any{
		"market_id":       req.MarketID,
		"token_id":        req.TokenID,
		"side":            string(req.Side),
		"price":           fmt.Sprintf("%.3f", req.Price),
		"amount":          req.Amount,
		"check_approval":  req.CheckApproval,
		"client_order_id": req.ClientOrderID,
	}
	var wire placeOrderWire
	if err := c.post(ctx, c.ordersLimiter, "/place_order", body, &wire); err != nil {
		return ports.PlaceOrderResult{}, err
	}
	return ports.PlaceOrderResult{Errno: wire.Errno, OrderID: wire.OrderID, Message: wire.Message}, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) (ports.PlaceOrderResult, error) {
	var wire placeOrderWire
	if err := c.post(ctx, c.ordersLimiter, "/cancel_order", map[string]any{"order_id": orderID}, &wire); err != nil {
		return ports.PlaceOrderResult{}, err
	}
	return ports.PlaceOrderResult{Errno: wire.Errno, OrderID: orderID, Message: wire.Message}, nil
}

type redeemWire struct {
	Errno  int    `json:"errno"`
	TxHash string `json:"tx_hash"`
}

// Redeem checks the custody wallet's native-token gas balance before
// submitting; a persistently low balance defers redemption to next cycle
// with a non-fatal warning, per the supplemented low-gas deferral feature.
func (c *Client) Redeem(ctx context.Context, marketID string) (ports.RedeemResult, error) {
	balances, err := c.GetMyBalances(ctx)
	if err != nil {
		return ports.RedeemResult{}, err
	}
	if balances.NativeGas < c.lowGasThreshold {
		slog.Warn("venue: deferring redemption, low native gas", "market_id", marketID, "native_gas", balances.NativeGas)
		return ports.RedeemResult{Deferred: true, DeferralNote: "insufficient native gas balance"}, nil
	}

	var wire redeemWire
	if err := c.post(ctx, c.ordersLimiter, "/redeem", map[string]any{"market_id": marketID}, &wire); err != nil {
		return ports.RedeemResult{}, err
	}
	return ports.RedeemResult{Errno: wire.Errno, TxHash: wire.TxHash}, nil
}

type tradeWire struct {
	OrderID   string  `json:"order_id"`
	MarketID  string  `json:"market_id"`
	TokenID   string  `json:"token_id"`
	FillPrice float64 `json:"fill_price"`
	FillSize  float64 `json:"fill_size"`
}

func (c *Client) GetMyTrades(ctx context.Context) ([]ports.TradeFill, error) {
	var wire []tradeWire
	if err := c.get(ctx, c.ordersLimiter, "/my_trades", nil, &wire); err != nil {
		return nil, err
	}
	fills := make([]ports.TradeFill, 0, len(wire))
	for _, t := range wire {
		fills = append(fills, ports.TradeFill{OrderID: t.OrderID, MarketID: t.MarketID, TokenID: t.TokenID, FillPrice: t.FillPrice, FillSize: t.FillSize})
	}
	return fills, nil
}

type resolutionWire struct {
	MarketID       string `json:"market_id"`
	WinningSide    string `json:"winning_side"`
	WinningTokenID string `json:"winning_token_id"`
}

func (c *Client) GetMyResolutions(ctx context.Context) ([]ports.MarketResolution, error) {
	var wire []resolutionWire
	if err := c.get(ctx, c.marketsLimiter, "/my_resolutions", nil, &wire); err != nil {
		return nil, err
	}
	out := make([]ports.MarketResolution, 0, len(wire))
	for _, r := range wire {
		out = append(out, ports.MarketResolution{MarketID: r.MarketID, WinningSide: r.WinningSide, WinningTokenID: r.WinningTokenID})
	}
	return out, nil
}

type balancesWire struct {
	QuoteBalance float64 `json:"quote_balance"`
	NativeGas    float64 `json:"native_gas"`
}

func (c *Client) GetMyBalances(ctx context.Context) (ports.Balances, error) {
	var wire balancesWire
	if err := c.get(ctx, c.ordersLimiter, "/my_balances", nil, &wire); err != nil {
		return ports.Balances{}, err
	}
	return ports.Balances{QuoteBalance: wire.QuoteBalance, NativeGas: wire.NativeGas}, nil
}

// get issues a rate-limited, retried GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, path string, query map[string]string, out any) error {
	return retry.Do(ctx, c.retryPolicy, classify, func(ctx context.Context) error {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		req := c.http.R().SetContext(ctx).SetResult(out)
		if query != nil {
			req.SetQueryParams(query)
		}
		resp, err := req.Get(path)
		return classifyResponse(resp, err)
	})
}

// post issues a rate-limited, retried POST and decodes the JSON body into out.
func (c *Client) post(ctx context.Context, limiter *rate.Limiter, path string, body, out any) error {
	return retry.Do(ctx, c.retryPolicy, classify, func(ctx context.Context) error {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		req := c.http.R().SetContext(ctx).SetResult(out)
		if body != nil {
			req.SetBody(body)
		}
		resp, err := req.Post(path)
		return classifyResponse(resp, err)
	})
}

// classifyResponse turns a resty response/error pair into either nil, a
// retryable transient error, or a terminal error, matching the teacher's
// doWithRetry status-code handling (429 and 5xx retry, 4xx does not).
func classifyResponse(resp *resty.Response, err error) error {
	if err != nil {
		return &apperr.TransientError{Op: "venue request", Err: err}
	}
	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return &apperr.TransientError{Op: "venue request", Err: fmt.Errorf("rate limited")}
	case resp.StatusCode() >= 500:
		return &apperr.TransientError{Op: "venue request", Err: fmt.Errorf("server error %d", resp.StatusCode())}
	case resp.StatusCode() >= 400:
		return fmt.Errorf("venue request failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// classify tells internal/retry which errors are worth another attempt:
// only TransientError. Anything else (including a plain non-retryable
// status-code error) stops the loop immediately.
func classify(err error) retry.Decision {
	var transient *apperr.TransientError
	if errors.As(err, &transient) {
		return retry.Retry
	}
	return retry.Stop
}
