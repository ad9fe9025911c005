// Package risk implements the Risk Guard (C7): the 4-tier adaptive
// bankroll regime, daily caps, exposure caps, and the supplemented
// circuit-breaker veto. Consulted after sizing (C6); it may reduce a
// candidate's size to the tier's per-bet cap or veto it outright.
package risk

import (
	"time"

	"github.com/predimarket/tradingcore/internal/domain"
)

// RejectReason is the closed set of rationales surfaced to logs and
// persisted as skip rationale, per §4.7.
type RejectReason string

const (
	ReasonNone                   RejectReason = ""
	ReasonTierSuspended          RejectReason = "tier_suspended"
	ReasonDailyBetCountExceeded  RejectReason = "daily_bet_count_exceeded"
	ReasonDailySpendExceeded     RejectReason = "daily_spend_exceeded"
	ReasonDailyLossCapHit        RejectReason = "daily_loss_cap_hit"
	ReasonCategoryExposureCap    RejectReason = "category_exposure_cap"
	ReasonInsufficientBalance    RejectReason = "insufficient_balance"
	ReasonBelowMinimum           RejectReason = "below_minimum"
	ReasonCircuitBreakerOpen     RejectReason = "circuit_breaker_open"
)

// Tier is one row of the 4-tier table.
type Tier struct {
	Name                 string
	MinRatio             float64
	MaxBetFraction        float64
	DailyLossCapFraction float64
	MaxOpenPositions     int
}

// Table is the ordered (highest ratio first) 4-tier table. DeriveTier
// assumes Table is sorted descending by MinRatio and that the last row is
// the Suspended floor (MinRatio 0).
type Table []Tier

// DeriveTier returns the tier whose MinRatio is the highest one the ratio
// still satisfies. Thresholds are inclusive on the lower side (§8): a
// ratio exactly at a tier's MinRatio belongs to that tier, not the one
// below it.
func (t Table) DeriveTier(ratio float64) Tier {
	best := t[len(t)-1]
	for _, tier := range t {
		if ratio >= tier.MinRatio && tier.MinRatio >= best.MinRatio {
			best = tier
		}
	}
	return best
}

// CircuitBreaker is the supplemented feature from original_source's
// domain.CircuitBreaker: a consecutive-loss cooldown plus a max-drawdown
// trip, generalized per firm. It is wired into the Guard as an additional
// veto reason (circuit_breaker_open) rather than replacing the 4-tier
// table.
type CircuitBreaker struct {
	MaxConsecutiveLosses int
	MaxDrawdownPct       float64
	Cooldown             time.Duration
}

// Open reports whether the breaker currently permits new bets. It trips
// when consecutive losses reach MaxConsecutiveLosses, or when the current
// drawdown from peak reaches MaxDrawdownPct. Once tripped it stays closed
// until Cooldown has elapsed since p.BreakerTrippedAt, even if the
// triggering condition is still true. A win (Portfolio.ApplyResult) resets
// ConsecutiveLosses and zeroes p.BreakerTrippedAt, which reopens a
// consecutive-loss trip at once; a drawdown trip that still holds after the
// win stays closed, and its cooldown counts from the next stamp.
func (cb CircuitBreaker) Open(p domain.Portfolio, now time.Time) bool {
	tripped := cb.MaxConsecutiveLosses > 0 && p.ConsecutiveLosses >= cb.MaxConsecutiveLosses
	if !tripped && cb.MaxDrawdownPct > 0 && p.PeakBalance > 0 {
		drawdown := (p.PeakBalance - p.Balance) / p.PeakBalance
		tripped = drawdown >= cb.MaxDrawdownPct
	}
	if !tripped {
		return true
	}
	if cb.Cooldown > 0 && !p.BreakerTrippedAt.IsZero() && now.Sub(p.BreakerTrippedAt) >= cb.Cooldown {
		return true
	}
	return false
}

// Candidate is what C6 hands the Guard: a sized-but-ungated bet.
type Candidate struct {
	Size     float64
	Category string
}

// Decision is the Guard's verdict: either an approved (possibly reduced)
// size, or a veto with a reason.
type Decision struct {
	Approved bool
	Size     float64
	Reason   RejectReason
}

// Evaluate gates one candidate bet against the firm's current portfolio,
// tier, daily counters, and exposure, per §4.7. categoryExposure is the
// sum of currently-open bet sizes in the candidate's category for this
// firm; categoryExposureCapPct is the configured per-category cap as a
// fraction of current balance.
func Evaluate(
	tiers Table,
	breaker CircuitBreaker,
	portfolio domain.Portfolio,
	counter domain.DailyCounter,
	openPositionsToday int,
	categoryExposure float64,
	categoryExposureCapPct float64,
	dailySpendCap float64,
	minimumBet float64,
	candidate Candidate,
	now time.Time,
) Decision {
	tier := tiers.DeriveTier(portfolio.TierRatio())

	if tier.Name == "Suspended" {
		return Decision{Reason: ReasonTierSuspended}
	}
	if !breaker.Open(portfolio, now) {
		return Decision{Reason: ReasonCircuitBreakerOpen}
	}
	if tier.MaxOpenPositions <= 0 {
		return Decision{Reason: ReasonTierSuspended}
	}
	// The §4.7 table's "max open positions" column is this spec's only
	// stated cap shaping daily bet volume, so it backs both concurrent
	// exposure and the daily_bet_count_exceeded reason (an Open Question
	// resolution — see DESIGN.md).
	if openPositionsToday >= tier.MaxOpenPositions {
		return Decision{Reason: ReasonDailyBetCountExceeded}
	}

	size := candidate.Size
	cap := portfolio.Balance * tier.MaxBetFraction
	if size > cap {
		size = cap
	}

	if size > portfolio.Balance {
		return Decision{Reason: ReasonInsufficientBalance}
	}

	dailyLossCap := portfolio.Balance * tier.DailyLossCapFraction
	if dailyLossCap > 0 && counter.RealizedLoss >= dailyLossCap {
		return Decision{Reason: ReasonDailyLossCapHit}
	}

	if dailySpendCap > 0 && counter.Spent+size > dailySpendCap {
		return Decision{Reason: ReasonDailySpendExceeded}
	}

	if categoryExposureCapPct > 0 {
		capAmount := portfolio.Balance * categoryExposureCapPct
		if categoryExposure+size > capAmount {
			return Decision{Reason: ReasonCategoryExposureCap}
		}
	}

	// Minimum-bet floor overrides the tier's per-bet percentage cap (a 1.50
	// bet may exceed a 2%-of-bankroll cap) but never the available-balance
	// cap, already enforced above.
	if size < minimumBet {
		if minimumBet > portfolio.Balance {
			return Decision{Reason: ReasonBelowMinimum}
		}
		size = minimumBet
		if dailySpendCap > 0 && counter.Spent+size > dailySpendCap {
			return Decision{Reason: ReasonBelowMinimum}
		}
	}

	return Decision{Approved: true, Size: size}
}
