package domain

import "time"

// MarketStatus is the closed enum of venue market lifecycle states.
type MarketStatus string

const (
	MarketActivated MarketStatus = "ACTIVATED"
	MarketResolved  MarketStatus = "RESOLVED"
	MarketClosed    MarketStatus = "CLOSED"
	MarketCancelled MarketStatus = "CANCELLED"
)

// CategorySports is excluded by policy from tradability regardless of the
// rest of the market's state.
const CategorySports = "Sports"

// Market is normalised from the venue's listing+detail endpoints (C2).
type Market struct {
	MarketID       string
	Title          string
	Category       string
	Status         MarketStatus
	YesTokenID     string
	NoTokenID      string
	AskPrice       float64
	BidPrice       float64
	Volume         float64
	ResolutionTime time.Time
}

// Tradable implements the §3 invariant: a market is tradable iff it is
// ACTIVATED, carries both token IDs, is not Sports, and has orderbook
// liquidity (represented here by hasLiquidity, computed by the caller from
// the fetched orderbook since Market itself does not own book state).
func (m Market) Tradable(hasLiquidity bool) bool {
	return m.Status == MarketActivated &&
		m.YesTokenID != "" &&
		m.NoTokenID != "" &&
		m.Category != CategorySports &&
		hasLiquidity
}

// HoursToResolution returns the hours remaining until ResolutionTime, or 0
// if ResolutionTime is zero or already in the past.
func (m Market) HoursToResolution() float64 {
	if m.ResolutionTime.IsZero() {
		return 0
	}
	h := time.Until(m.ResolutionTime).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// TruncateTitle returns the market title truncated to maxLen characters,
// falling back to a prefix of marketID when the title is empty.
func TruncateTitle(title, marketID string, maxLen int) string {
	t := title
	if t == "" {
		if len(marketID) > 20 {
			t = marketID[:20] + "..."
		} else {
			t = marketID
		}
	}
	if len(t) > maxLen {
		t = t[:maxLen-3] + "..."
	}
	return t
}
