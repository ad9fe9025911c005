package domain

import "time"

// Portfolio is the single mutable bankroll record for one firm. Mutated
// only by cycle results and reconciliation, always inside a store Tx.
type Portfolio struct {
	FirmName          string `gorm:"primaryKey"`
	Balance           float64
	InitialBalance    float64
	PeakBalance       float64
	ConsecutiveWins   int
	ConsecutiveLosses int
	LastUpdate        time.Time
	BreakerTrippedAt  time.Time // zero when the circuit breaker is not currently open
}

// TierRatio is the balance/initial ratio the Risk Guard derives the tier
// from. InitialBalance of 0 is treated defensively as Suspended (no basis
// to compute a ratio).
func (p Portfolio) TierRatio() float64 {
	if p.InitialBalance <= 0 {
		return 0
	}
	return p.Balance / p.InitialBalance
}

// ApplyResult folds a resolved bet's profit/loss into the portfolio,
// advancing peak balance and the win/loss streak counters. Callers must
// invoke this inside the same transaction that marks the bet resolved.
func (p *Portfolio) ApplyResult(profitLoss float64, won bool) {
	p.Balance += profitLoss
	if p.Balance > p.PeakBalance {
		p.PeakBalance = p.Balance
	}
	if won {
		p.ConsecutiveWins++
		p.ConsecutiveLosses = 0
		p.BreakerTrippedAt = time.Time{}
	} else {
		p.ConsecutiveLosses++
		p.ConsecutiveWins = 0
	}
}
