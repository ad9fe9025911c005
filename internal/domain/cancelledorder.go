package domain

import "time"

// CancelledOrder is written when the order monitor's 3-strike rule trips.
// StrikesHistory is a point-in-time copy of the bet's review history at the
// moment of cancellation; the live history keeps living on BetReview rows
// while the bet is SUBMITTED, and this table is the durable archive once it
// becomes CANCELLED (a bet in that terminal state never mutates again, so
// duplicating the history here costs nothing and keeps this table
// self-contained for read-only admin views).
type CancelledOrder struct {
	ID             uint `gorm:"primaryKey;autoIncrement"`
	OrderID        string
	Firm           string
	MarketID       string
	CancelReason   string
	CancelledAt    time.Time
	StrikesHistory []CancelledOrderReview `gorm:"foreignKey:CancelledOrderID"`
}

// CancelledOrderReview mirrors BetReview but is scoped to a CancelledOrder
// archive row.
type CancelledOrderReview struct {
	ID                uint `gorm:"primaryKey;autoIncrement"`
	CancelledOrderID  uint
	Timestamp         time.Time
	PriceDeltaPct     float64
	AgeHours          float64
	AIContradicts     bool
	StrikeIssued      bool
}
