package domain

import "strconv"

// OrderBook is the bid/ask ladder for one token (one side of one market).
type OrderBook struct {
	TokenID string
	Bids    []BookEntry // sorted highest price first
	Asks    []BookEntry // sorted lowest price first
}

// BookEntry is a single price level in the orderbook.
type BookEntry struct {
	Price float64
	Size  float64
}

// BestBid returns the highest bid price, or 0 if the book is empty.
func (ob OrderBook) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// BestAsk returns the lowest ask price, or 0 if the book is empty.
func (ob OrderBook) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// Midpoint returns the mean of best bid and best ask, or 0 if either side
// is empty.
func (ob OrderBook) Midpoint() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}

// Spread returns ask - bid, or 0 if either side is empty.
func (ob OrderBook) Spread() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return ask - bid
}

// HasLiquidity reports whether the book carries at least one level on each
// side, the minimum bar for the §3 tradability invariant.
func (ob OrderBook) HasLiquidity() bool {
	return len(ob.Bids) > 0 && len(ob.Asks) > 0
}

// BuyPrice implements the C6 fallback chain for the chosen side's buy
// price: ASK if present, else midpoint, else BID+spread. Returns 0 if no
// probe succeeds.
func (ob OrderBook) BuyPrice() float64 {
	if ask := ob.BestAsk(); ask > 0 {
		return ask
	}
	if mid := ob.Midpoint(); mid > 0 {
		return mid
	}
	bid := ob.BestBid()
	if bid > 0 {
		return bid + ob.Spread()
	}
	return 0
}

// ParsePrice converts a venue decimal-string price field to float64,
// returning 0 on malformed input.
func ParsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
