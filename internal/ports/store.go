package ports

import (
	"context"
	"time"

	"github.com/predimarket/tradingcore/internal/domain"
)

// Store is C1's contract to callers, per spec §4.1. Tx is re-entrant: a Tx
// invoked inside another Tx on the same worker shares the outer boundary,
// so composite operations (save prediction + update firm stats) stay
// atomic without callers needing to know whether they are already inside
// one.
type Store interface {
	// Tx runs fn inside a scoped transaction, committing on success and
	// rolling back on any error fn returns. Nested calls share the
	// outermost transaction's boundary.
	Tx(ctx context.Context, fn func(ctx context.Context) error) error

	Firms(ctx context.Context) ([]domain.Firm, error)
	UpsertFirm(ctx context.Context, f domain.Firm) error

	GetPortfolio(ctx context.Context, firm string) (domain.Portfolio, error)
	SavePortfolio(ctx context.Context, p domain.Portfolio) error
	PortfolioExists(ctx context.Context, firm string) (bool, error)

	SavePrediction(ctx context.Context, p *domain.Prediction) error

	SaveBet(ctx context.Context, b *domain.Bet) error
	BetByOrderID(ctx context.Context, orderID string) (domain.Bet, error)
	UpdateBetStatus(ctx context.Context, betID uint, status domain.BetStatus, orderID, failureReason string) error
	ResolveBet(ctx context.Context, betID uint, actualResult int, profitLoss float64) error
	OpenBets(ctx context.Context) ([]domain.Bet, error)
	AppendBetReview(ctx context.Context, betID uint, review domain.BetReview, strikeIssued bool) (consecutiveStrikes int, err error)
	CancelBet(ctx context.Context, bet domain.Bet, reason string) error
	BetsPlacedToday(ctx context.Context, firm, marketID string, day string) (bool, error)

	DailyCounter(ctx context.Context, firm string, day string) (domain.DailyCounter, error)
	IncrementDailyCounter(ctx context.Context, firm string, day string, spend float64) error
	RecordDailyLoss(ctx context.Context, firm string, day string, loss float64) error

	CreateCycleRecord(ctx context.Context, startedAt time.Time) (uint, error)
	CloseCycleRecord(ctx context.Context, id uint, status domain.CycleStatus, finishedAt time.Time, counts CycleCounts) error

	SaveCancelledOrder(ctx context.Context, co domain.CancelledOrder) error

	// Read-only admin views, backing the §6 GET endpoints.
	Leaderboard(ctx context.Context) ([]domain.Portfolio, error)
	ActivePositions(ctx context.Context) ([]domain.Bet, error)
	RecentTrades(ctx context.Context, limit int) ([]domain.Bet, error)
	CancelledOrders(ctx context.Context, limit int) ([]domain.CancelledOrder, error)
	PredictionHistory(ctx context.Context, limit int) ([]domain.Prediction, error)
	FirmTrades(ctx context.Context, firm string, limit int) ([]domain.Bet, error)
}

// CycleCounts is the summary tally a CycleRecord closes with.
type CycleCounts struct {
	MarketsFetched     int
	MarketsTradable    int
	BetsApproved       int
	BetsExecuted       int
	BetsFailed         int
	PerCategoryCounts  map[string]int
}
