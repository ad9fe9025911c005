package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidTransition(t *testing.T) {
	assert.True(t, ValidTransition(BetApproved, BetSubmitted))
	assert.True(t, ValidTransition(BetApproved, BetFailed))
	assert.True(t, ValidTransition(BetSubmitted, BetFilled))
	assert.True(t, ValidTransition(BetSubmitted, BetCancelled))
	assert.True(t, ValidTransition(BetSubmitted, BetFailed))

	assert.False(t, ValidTransition(BetApproved, BetFilled))
	assert.False(t, ValidTransition(BetFilled, BetSubmitted))
	assert.False(t, ValidTransition(BetCancelled, BetSubmitted))
	assert.False(t, ValidTransition(BetFailed, BetApproved))
}

func TestMarketTradable(t *testing.T) {
	base := Market{
		Status:     MarketActivated,
		YesTokenID: "y",
		NoTokenID:  "n",
		Category:   "Politics",
	}
	assert.True(t, base.Tradable(true))
	assert.False(t, base.Tradable(false))

	sports := base
	sports.Category = CategorySports
	assert.False(t, sports.Tradable(true))

	resolved := base
	resolved.Status = MarketResolved
	assert.False(t, resolved.Tradable(true))

	noTokens := base
	noTokens.NoTokenID = ""
	assert.False(t, noTokens.Tradable(true))
}

func TestMarketHoursToResolution(t *testing.T) {
	m := Market{}
	assert.Zero(t, m.HoursToResolution())

	past := Market{ResolutionTime: time.Now().Add(-time.Hour)}
	assert.Zero(t, past.HoursToResolution())

	future := Market{ResolutionTime: time.Now().Add(48 * time.Hour)}
	assert.InDelta(t, 48, future.HoursToResolution(), 0.1)
}

func TestTruncateTitle(t *testing.T) {
	assert.Equal(t, "abcde...", TruncateTitle("abcdefghij", "m1", 8))
	assert.Equal(t, "m1", TruncateTitle("", "m1", 50))

	longID := "0123456789012345678901234"
	assert.Equal(t, "01234567890123456789...", TruncateTitle("", longID, 50))
}

func TestOrderBookBuyPriceFallbackChain(t *testing.T) {
	askOnly := OrderBook{Asks: []BookEntry{{Price: 0.6}}}
	assert.Equal(t, 0.6, askOnly.BuyPrice())

	bidAndAsk := OrderBook{Bids: []BookEntry{{Price: 0.4}}, Asks: []BookEntry{{Price: 0.6}}}
	assert.Equal(t, 0.6, bidAndAsk.BuyPrice())
	assert.Equal(t, 0.5, bidAndAsk.Midpoint())
	assert.InDelta(t, 0.2, bidAndAsk.Spread(), 1e-9)

	bidOnly := OrderBook{Bids: []BookEntry{{Price: 0.4}}}
	assert.InDelta(t, 0.4, bidOnly.BuyPrice(), 1e-9) // bid+spread, spread=0 with no ask

	empty := OrderBook{}
	assert.Zero(t, empty.BuyPrice())
	assert.False(t, empty.HasLiquidity())
	assert.True(t, bidAndAsk.HasLiquidity())
}

func TestParsePrice(t *testing.T) {
	assert.Equal(t, 0.42, ParsePrice("0.42"))
	assert.Zero(t, ParsePrice("garbage"))
}

func TestUTCDay(t *testing.T) {
	ts := time.Date(2026, 3, 5, 23, 59, 0, 0, time.FixedZone("EST", -5*3600))
	assert.Equal(t, "2026-03-06", UTCDay(ts))
}

func TestBetResolved(t *testing.T) {
	unresolved := Bet{}
	assert.False(t, unresolved.Resolved())

	win := 1
	resolved := Bet{ActualResult: &win}
	assert.True(t, resolved.Resolved())
}

func TestPredictionInRange(t *testing.T) {
	valid := Prediction{Probability: 0.5, Confidence: 5, Scores: AreaScores{5, 5, 5, 5, 5}}
	assert.True(t, valid.InRange())

	badProb := valid
	badProb.Probability = 1.5
	assert.False(t, badProb.InRange())

	badScore := valid
	badScore.Scores.News = 11
	assert.False(t, badScore.InRange())
}
