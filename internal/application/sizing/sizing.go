// Package sizing implements the EV & Sizing Engine (C6): side selection,
// expected value net of venue fees, and the five bet-sizing strategies.
// Coefficients are grounded on original_source/bankroll_manager.py's exact
// formulas, exposed as overridable defaults via config.SizingDefaults per
// spec.md §9's design note.
package sizing

import (
	"math"

	"github.com/predimarket/tradingcore/internal/domain"
)

// Side is the chosen side of a market to bet on.
type Side string

const (
	SideYes Side = "Yes"
	SideNo  Side = "No"
)

// SelectSide picks YES if p >= 0.5, else NO — a deterministic tie-break on
// YES at exactly p == 0.5, per §4.6.
func SelectSide(probability float64) Side {
	if probability >= 0.5 {
		return SideYes
	}
	return SideNo
}

// BuyPriceForSide resolves the buy price and token ID for an already
// chosen side, following the ASK -> mid -> (BID+spread) fallback chain.
// Returns ok=false if no probe succeeds (book entirely empty).
func BuyPriceForSide(m domain.Market, side Side, yesBook, noBook domain.OrderBook) (tokenID string, price float64, ok bool) {
	book := yesBook
	tokenID = m.YesTokenID
	if side == SideNo {
		book = noBook
		tokenID = m.NoTokenID
	}
	price = book.BuyPrice()
	return tokenID, price, price > 0
}

// EV holds the expected-value breakdown for one candidate bet, per §4.6's
// formula: fees are paid only on payout at win time, not on the buy.
type EV struct {
	GrossEV float64
	FeeCost float64
	NetEV   float64
}

// ComputeEV implements:
//
//	gross_ev = p*(s/c - s) - (1-p)*s
//	fee_cost = p*(s/c)*f
//	net_ev   = gross_ev - fee_cost
func ComputeEV(size, price, probability, feeRate float64) EV {
	if price <= 0 {
		return EV{}
	}
	payout := size / price
	gross := probability*(payout-size) - (1-probability)*size
	fee := probability * payout * feeRate
	return EV{GrossEV: gross, FeeCost: fee, NetEV: gross - fee}
}

// Worthwhile reports whether a candidate should be considered at all:
// net_ev must be strictly positive.
func (e EV) Worthwhile() bool { return e.NetEV > 0 }

// Coefficients are every tunable the five strategies consume, sourced
// from config.SizingDefaults.
type Coefficients struct {
	KellyFractionOfFull      float64
	FixedFractionalHigh      float64 // confidence >= 80 (on a 0-100 scale)
	FixedFractionalMedium    float64 // confidence >= 70
	FixedFractionalLow       float64 // confidence >= 60
	FixedFractionalFloor     float64 // below 60
	ProportionalK            float64
	MartingaleMultiplier     float64
	MartingaleMaxEscalations int
	AntiMartingaleMultiplier float64
	AntiMartingaleMaxEscalations int
	MinimumBet               float64
}

// Inputs bundles everything a sizing strategy needs to compute a desired
// size, per §4.6: (p, c, confidence, portfolio.balance,
// consecutive_wins/losses).
type Inputs struct {
	Probability       float64
	Price             float64
	Confidence        float64 // 0-10 scale, per domain.Prediction
	Balance           float64
	ConsecutiveWins   int
	ConsecutiveLosses int
}

// DesiredSize dispatches to the strategy named by s and returns the raw
// (unclamped by risk tier) candidate size in quote currency. The caller
// (C7 Risk Guard) is responsible for clamping to the tier's max-bet
// fraction and applying the minimum-bet floor rule.
func DesiredSize(s domain.SizingStrategy, in Inputs, coef Coefficients) float64 {
	switch s {
	case domain.KellyConservative:
		return kellyConservative(in, coef)
	case domain.FixedFractional:
		return fixedFractional(in, coef)
	case domain.Proportional:
		return proportional(in, coef)
	case domain.MartingaleModified:
		return martingaleModified(in, coef)
	case domain.AntiMartingale:
		return antiMartingale(in, coef)
	default:
		return 0
	}
}

// kellyConservative: one-quarter Kelly, confidence-scaled. Requires
// p > 0.5 (an edge must exist) and treats decimal odds as 1/price.
func kellyConservative(in Inputs, coef Coefficients) float64 {
	if in.Probability <= 0.5 || in.Price <= 0 || in.Price >= 1 {
		return 0
	}
	odds := 1 / in.Price // decimal payout multiplier per unit staked
	q := 1 - in.Probability
	kelly := ((odds-1)*in.Probability - q) / (odds - 1)
	if kelly <= 0 {
		return 0
	}
	conservative := kelly * coef.KellyFractionOfFull
	adjusted := conservative * (in.Confidence / 10)
	if adjusted < 0 {
		return 0
	}
	return in.Balance * adjusted
}

// fixedFractional: tiered bankroll fraction by confidence band. The bands
// are on bankroll_manager.py's 0-100 scale; Inputs.Confidence carries the
// 0-10 scale of domain.Prediction and is multiplied by 10 here.
func fixedFractional(in Inputs, coef Coefficients) float64 {
	if in.Probability < 0.55 {
		return 0
	}
	conf100 := in.Confidence * 10
	var frac float64
	switch {
	case conf100 >= 80:
		frac = coef.FixedFractionalHigh
	case conf100 >= 70:
		frac = coef.FixedFractionalMedium
	case conf100 >= 60:
		frac = coef.FixedFractionalLow
	default:
		frac = coef.FixedFractionalFloor
	}
	return in.Balance * frac
}

// proportional: combined probability/confidence score scaled by k.
func proportional(in Inputs, coef Coefficients) float64 {
	conf100 := in.Confidence * 10
	if in.Probability < 0.60 || conf100 < 60 {
		return 0
	}
	probScore := (in.Probability - 0.5) * 2
	confScore := conf100 / 100
	combined := (probScore + confScore) / 2
	fraction := 0.005 + combined*coef.ProportionalK
	return in.Balance * fraction
}

// martingaleModified: base 1% scaled by Multiplier^consecutiveLosses for
// 1..MaxEscalations losses; beyond MaxEscalations the size resets to base.
func martingaleModified(in Inputs, coef Coefficients) float64 {
	if in.Probability < 0.55 {
		return 0
	}
	mult := 1.0
	if in.ConsecutiveLosses > 0 && in.ConsecutiveLosses <= coef.MartingaleMaxEscalations {
		mult = math.Pow(coef.MartingaleMultiplier, float64(in.ConsecutiveLosses))
	}
	return in.Balance * 0.01 * mult
}

// antiMartingale: base 1% scaled by Multiplier^consecutiveWins for
// 1..MaxEscalations wins; beyond MaxEscalations the size resets to base.
func antiMartingale(in Inputs, coef Coefficients) float64 {
	if in.Probability < 0.60 {
		return 0
	}
	mult := 1.0
	if in.ConsecutiveWins > 0 && in.ConsecutiveWins <= coef.AntiMartingaleMaxEscalations {
		mult = math.Pow(coef.AntiMartingaleMultiplier, float64(in.ConsecutiveWins))
	}
	return in.Balance * 0.01 * mult
}

// RoundPrice rounds to 3 decimals and clamps to [0.001, 0.999], per §4.6's
// price-precision rule.
func RoundPrice(price float64) float64 {
	rounded := math.Round(price*1000) / 1000
	if rounded < 0.001 {
		return 0.001
	}
	if rounded > 0.999 {
		return 0.999
	}
	return rounded
}
