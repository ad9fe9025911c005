package domain

import "time"

// BetStatus is the closed enum of order-lifecycle states. Status is a
// state-machine table, not a sentinel string: every update must go through
// ValidTransition.
type BetStatus string

const (
	BetApproved   BetStatus = "APPROVED"
	BetSubmitted  BetStatus = "SUBMITTED"
	BetFilled     BetStatus = "FILLED"
	BetFailed     BetStatus = "FAILED"
	BetCancelled  BetStatus = "CANCELLED"
)

// validTransitions lists every allowed (from, to) pair. Anything not
// listed here is rejected by ValidTransition.
var validTransitions = map[BetStatus]map[BetStatus]bool{
	BetApproved:  {BetSubmitted: true, BetFailed: true},
	BetSubmitted: {BetFilled: true, BetCancelled: true, BetFailed: true},
}

// ValidTransition reports whether moving a bet from `from` to `to` is
// allowed. FILLED and CANCELLED are terminal: no transition out of them is
// ever valid (§8 I8).
func ValidTransition(from, to BetStatus) bool {
	next, ok := validTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// BetSide is the closed enum of order sides. Only BUY is supported by the
// venue surface this core targets.
type BetSide string

const BetSideBuy BetSide = "BUY"

// Bet is one executed order intent: one row per (prediction, side, size)
// triple the EV & Sizing Engine approved and the Risk Guard passed.
type Bet struct {
	ID                 uint `gorm:"primaryKey;autoIncrement"`
	PredictionID       uint
	Firm               string
	MarketID           string
	TokenID            string
	Side               BetSide
	MarketSide         string // "Yes" | "No": which token bet.TokenID represents, set at submission time
	ClientOrderID      string `gorm:"uniqueIndex"` // idempotency key sent to the venue
	Size               float64
	LimitPrice         float64
	Status             BetStatus
	OrderID            string
	ExecutionTimestamp time.Time
	ExpectedValue      float64
	ActualResult       *int // nil = unresolved, else 0 or 1
	ProfitLoss         float64
	FailureReason      string
	ConsecutiveStrikes int
	Reviews            []BetReview `gorm:"foreignKey:BetID"`
}

// BetReview is one monitor-pass evaluation of an open bet against the
// three strike factors.
type BetReview struct {
	ID            uint `gorm:"primaryKey;autoIncrement"`
	BetID         uint
	Timestamp     time.Time
	PriceDeltaPct float64
	AgeHours      float64
	AIContradicts bool
	StrikeIssued  bool
}

// Resolved reports whether this bet has a final on-chain outcome recorded.
func (b Bet) Resolved() bool {
	return b.ActualResult != nil
}
