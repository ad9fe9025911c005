// Package ports defines the interfaces the application layer (C4-C9)
// depends on. Concrete adapters (internal/adapters/venue, internal/store)
// implement these; application code never imports an adapter package
// directly, so unit tests substitute fakes.
package ports

import (
	"context"

	"github.com/predimarket/tradingcore/internal/domain"
)

// PlaceOrderRequest is the venue's place_order call surface (§6).
// ClientOrderID is a caller-generated idempotency key: replaying the same
// PlaceOrder call after a network timeout must not double-submit.
type PlaceOrderRequest struct {
	MarketID       string
	TokenID        string
	Side           domain.BetSide
	Price          float64 // already rounded to 3dp, clamped to [0.001, 0.999]
	Amount         float64
	CheckApproval  bool
	ClientOrderID  string
}

// PlaceOrderResult mirrors the venue's (errno, order_id) response shape.
type PlaceOrderResult struct {
	Errno   int
	OrderID string
	Message string
}

// RedeemResult mirrors the venue's gas-requiring redeem() response.
type RedeemResult struct {
	Errno         int
	TxHash        string
	Deferred      bool // true when deferred due to low native-token gas
	DeferralNote  string
}

// TradeFill is one row from get_my_trades, used by reconciliation.
type TradeFill struct {
	OrderID   string
	MarketID  string
	TokenID   string
	FillPrice float64
	FillSize  float64
}

// MarketResolution is one row surfaced by the venue once a market settles.
// WinningTokenID is the token ID that redeems for 1 unit of quote currency;
// a bet wins iff its own TokenID matches it, which is how reconciliation
// determines outcome without a separate market lookup.
type MarketResolution struct {
	MarketID       string
	WinningSide    string // "Yes" | "No", informational
	WinningTokenID string
}

// Balances mirrors get_my_balances: quote-currency and native-token gas
// balance of the shared custody wallet.
type Balances struct {
	QuoteBalance  float64
	NativeGas     float64
}

// MarketFetchResult is C2's per-cycle output: the raw pre-filter listing
// count alongside the post-filter tradable set, so a CycleRecord's
// MarketsFetched and MarketsTradable (§3) can actually differ.
type MarketFetchResult struct {
	Tradable     []domain.Market
	FetchedCount int
}

// MarketFetcher is C2's output contract: an ordered list of tradable
// markets for the current cycle.
type MarketFetcher interface {
	FetchTradableMarkets(ctx context.Context) (MarketFetchResult, error)
}

// OrderBookProvider fetches the live orderbook for one token, used by C6's
// side-selection/pricing fallback chain and by the C8 monitor's price-delta
// check.
type OrderBookProvider interface {
	GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error)
}

// OrderExecutor is the venue's signed-order surface (§6), the external
// collaborator C8 submits, cancels, and redeems against.
type OrderExecutor interface {
	EnableTrading(ctx context.Context) error
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error)
	CancelOrder(ctx context.Context, orderID string) (PlaceOrderResult, error)
	Redeem(ctx context.Context, marketID string) (RedeemResult, error)
	GetMyTrades(ctx context.Context) ([]TradeFill, error)
	GetMyResolutions(ctx context.Context) ([]MarketResolution, error)
	GetMyBalances(ctx context.Context) (Balances, error)
}
