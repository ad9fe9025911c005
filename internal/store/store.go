// Package store is the Persistence Store (C1): the single source of
// truth for every entity in internal/domain, backed by gorm.io/gorm over
// gorm.io/driver/sqlite in WAL mode, grounded on
// Praying-binance-trade-bot-go's internal/database package. Every mutating
// path goes through Tx, which is re-entrant: nested calls on the same
// worker share the outermost transaction's boundary via a context key,
// exactly as spec.md §4.1/§9 requires.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/predimarket/tradingcore/internal/apperr"
	"github.com/predimarket/tradingcore/internal/domain"
	"github.com/predimarket/tradingcore/internal/ports"
)

type txKeyType struct{}

var txKey = txKeyType{}

// Store is the GORM-backed implementation of ports.Store.
type Store struct {
	db *gorm.DB
}

var _ ports.Store = (*Store)(nil)

// Open connects to the single embedded database file at dsn, enables WAL
// mode, pins the connection pool to one writer (SQLite's single-writer
// constraint, grounded on AlejandroRuiz99-polybot's sqlite.go), and
// forward-migrates every model additively.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, &apperr.ConfigError{Field: "storage.dsn", Err: err}
	}

	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		return nil, &apperr.ConfigError{Field: "storage.dsn", Err: fmt.Errorf("enable WAL: %w", err)}
	}
	if err := db.Exec("PRAGMA busy_timeout=5000;").Error; err != nil {
		return nil, &apperr.ConfigError{Field: "storage.dsn", Err: fmt.Errorf("set busy_timeout: %w", err)}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, &apperr.ConfigError{Field: "storage.dsn", Err: err}
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&domain.Firm{},
		&domain.Portfolio{},
		&domain.Prediction{},
		&domain.Bet{},
		&domain.BetReview{},
		&domain.DailyCounter{},
		&domain.CycleRecord{},
		&domain.CancelledOrder{},
		&domain.CancelledOrderReview{},
	); err != nil {
		return nil, &apperr.ConfigError{Field: "automigrate", Err: err}
	}

	return &Store{db: db}, nil
}

// handle returns the *gorm.DB to operate on: the transaction already on
// ctx if Tx is re-entering, else the store's base handle (a bare
// statement outside any Tx — callers that mutate state must wrap in Tx).
func (s *Store) handle(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

// Tx implements ports.Store. When ctx already carries a transaction handle
// (a nested call), fn runs directly against it with no new boundary; only
// the outermost Tx call commits or rolls back.
func (s *Store) Tx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok && tx != nil {
		return fn(ctx)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		nested := context.WithValue(ctx, txKey, tx)
		return fn(nested)
	})
	if err != nil {
		return classifyTxError(err)
	}
	return nil
}

// classifyTxError maps a raw gorm/sqlite error into one of the sentinel
// apperr kinds so callers can retry TransientError with backoff and must
// not retry anything else.
func classifyTxError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "locked") || strings.Contains(msg, "busy") || strings.Contains(msg, "timeout"):
		return &apperr.TransientError{Op: "store.Tx", Err: err}
	case strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed"):
		return &apperr.ConflictError{Table: "unknown", Err: err}
	default:
		return &apperr.IntegrityError{Reason: "transaction failed", Err: err}
	}
}

func recordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func (s *Store) Firms(ctx context.Context) ([]domain.Firm, error) {
	var firms []domain.Firm
	if err := s.handle(ctx).Find(&firms).Error; err != nil {
		return nil, &apperr.IntegrityError{Reason: "list firms", Err: err}
	}
	return firms, nil
}

func (s *Store) UpsertFirm(ctx context.Context, f domain.Firm) error {
	if err := s.handle(ctx).Save(&f).Error; err != nil {
		return &apperr.IntegrityError{Reason: "upsert firm", Err: err}
	}
	return nil
}

func (s *Store) GetPortfolio(ctx context.Context, firm string) (domain.Portfolio, error) {
	var p domain.Portfolio
	err := s.handle(ctx).Where("firm_name = ?", firm).First(&p).Error
	if err != nil {
		if recordNotFound(err) {
			return domain.Portfolio{}, &apperr.IntegrityError{Reason: fmt.Sprintf("no portfolio for firm %q", firm)}
		}
		return domain.Portfolio{}, &apperr.IntegrityError{Reason: "get portfolio", Err: err}
	}
	return p, nil
}

func (s *Store) PortfolioExists(ctx context.Context, firm string) (bool, error) {
	var count int64
	if err := s.handle(ctx).Model(&domain.Portfolio{}).Where("firm_name = ?", firm).Count(&count).Error; err != nil {
		return false, &apperr.IntegrityError{Reason: "check portfolio exists", Err: err}
	}
	return count > 0, nil
}

func (s *Store) SavePortfolio(ctx context.Context, p domain.Portfolio) error {
	p.LastUpdate = time.Now().UTC()
	if err := s.handle(ctx).Save(&p).Error; err != nil {
		return &apperr.IntegrityError{Reason: "save portfolio", Err: err}
	}
	return nil
}

func (s *Store) SavePrediction(ctx context.Context, p *domain.Prediction) error {
	if !p.InRange() {
		return &apperr.IntegrityError{Reason: "prediction out of range"}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := s.handle(ctx).Create(p).Error; err != nil {
		return &apperr.IntegrityError{Reason: "save prediction", Err: err}
	}
	return nil
}

func (s *Store) SaveBet(ctx context.Context, b *domain.Bet) error {
	if err := s.handle(ctx).Create(b).Error; err != nil {
		return &apperr.IntegrityError{Reason: "save bet", Err: err}
	}
	return nil
}

func (s *Store) BetByOrderID(ctx context.Context, orderID string) (domain.Bet, error) {
	var b domain.Bet
	err := s.handle(ctx).Where("order_id = ?", orderID).First(&b).Error
	if err != nil {
		if recordNotFound(err) {
			return domain.Bet{}, &apperr.IntegrityError{Reason: fmt.Sprintf("no bet with order_id %q", orderID)}
		}
		return domain.Bet{}, &apperr.IntegrityError{Reason: "get bet by order id", Err: err}
	}
	return b, nil
}

func (s *Store) UpdateBetStatus(ctx context.Context, betID uint, status domain.BetStatus, orderID, failureReason string) error {
	var b domain.Bet
	if err := s.handle(ctx).First(&b, betID).Error; err != nil {
		return &apperr.IntegrityError{Reason: "load bet for status update", Err: err}
	}
	if !domain.ValidTransition(b.Status, status) {
		return &apperr.IntegrityError{Reason: fmt.Sprintf("invalid bet transition %s -> %s", b.Status, status)}
	}
	updates := map[string]any{"status": status}
	if orderID != "" {
		updates["order_id"] = orderID
	}
	if failureReason != "" {
		updates["failure_reason"] = failureReason
	}
	if status == domain.BetSubmitted {
		updates["execution_timestamp"] = time.Now().UTC()
	}
	if err := s.handle(ctx).Model(&domain.Bet{}).Where("id = ?", betID).Updates(updates).Error; err != nil {
		return &apperr.IntegrityError{Reason: "update bet status", Err: err}
	}
	return nil
}

func (s *Store) ResolveBet(ctx context.Context, betID uint, actualResult int, profitLoss float64) error {
	updates := map[string]any{"actual_result": actualResult, "profit_loss": profitLoss}
	if err := s.handle(ctx).Model(&domain.Bet{}).Where("id = ?", betID).Updates(updates).Error; err != nil {
		return &apperr.IntegrityError{Reason: "resolve bet", Err: err}
	}
	return nil
}

func (s *Store) OpenBets(ctx context.Context) ([]domain.Bet, error) {
	var bets []domain.Bet
	err := s.handle(ctx).
		Preload("Reviews").
		Where("status = ? AND actual_result IS NULL", domain.BetSubmitted).
		Find(&bets).Error
	if err != nil {
		return nil, &apperr.IntegrityError{Reason: "list open bets", Err: err}
	}
	return bets, nil
}

func (s *Store) AppendBetReview(ctx context.Context, betID uint, review domain.BetReview, strikeIssued bool) (int, error) {
	review.BetID = betID
	if err := s.handle(ctx).Create(&review).Error; err != nil {
		return 0, &apperr.IntegrityError{Reason: "append bet review", Err: err}
	}

	var b domain.Bet
	if err := s.handle(ctx).First(&b, betID).Error; err != nil {
		return 0, &apperr.IntegrityError{Reason: "load bet after review", Err: err}
	}
	consecutive := 0
	if strikeIssued {
		consecutive = b.ConsecutiveStrikes + 1
	}
	if err := s.handle(ctx).Model(&domain.Bet{}).Where("id = ?", betID).Update("consecutive_strikes", consecutive).Error; err != nil {
		return 0, &apperr.IntegrityError{Reason: "update consecutive strikes", Err: err}
	}
	return consecutive, nil
}

func (s *Store) CancelBet(ctx context.Context, bet domain.Bet, reason string) error {
	if !domain.ValidTransition(bet.Status, domain.BetCancelled) {
		return &apperr.IntegrityError{Reason: fmt.Sprintf("invalid bet transition %s -> CANCELLED", bet.Status)}
	}
	if err := s.handle(ctx).Model(&domain.Bet{}).Where("id = ?", bet.ID).Update("status", domain.BetCancelled).Error; err != nil {
		return &apperr.IntegrityError{Reason: "cancel bet", Err: err}
	}

	var reviews []domain.BetReview
	if err := s.handle(ctx).Where("bet_id = ?", bet.ID).Order("timestamp asc").Find(&reviews).Error; err != nil {
		return &apperr.IntegrityError{Reason: "load bet reviews for cancellation", Err: err}
	}
	archived := make([]domain.CancelledOrderReview, 0, len(reviews))
	for _, r := range reviews {
		archived = append(archived, domain.CancelledOrderReview{
			Timestamp:     r.Timestamp,
			PriceDeltaPct: r.PriceDeltaPct,
			AgeHours:      r.AgeHours,
			AIContradicts: r.AIContradicts,
			StrikeIssued:  r.StrikeIssued,
		})
	}

	co := domain.CancelledOrder{
		OrderID:        bet.OrderID,
		Firm:           bet.Firm,
		MarketID:       bet.MarketID,
		CancelReason:   reason,
		CancelledAt:    time.Now().UTC(),
		StrikesHistory: archived,
	}
	if err := s.handle(ctx).Create(&co).Error; err != nil {
		return &apperr.IntegrityError{Reason: "save cancelled order", Err: err}
	}
	return nil
}

func (s *Store) SaveCancelledOrder(ctx context.Context, co domain.CancelledOrder) error {
	if err := s.handle(ctx).Create(&co).Error; err != nil {
		return &apperr.IntegrityError{Reason: "save cancelled order", Err: err}
	}
	return nil
}

func (s *Store) BetsPlacedToday(ctx context.Context, firm, marketID string, day string) (bool, error) {
	var count int64
	err := s.handle(ctx).Model(&domain.Bet{}).
		Where("firm = ? AND market_id = ? AND execution_timestamp >= ?", firm, marketID, day).
		Count(&count).Error
	if err != nil {
		return false, &apperr.IntegrityError{Reason: "check bets placed today", Err: err}
	}
	return count > 0, nil
}

func (s *Store) DailyCounter(ctx context.Context, firm string, day string) (domain.DailyCounter, error) {
	var dc domain.DailyCounter
	err := s.handle(ctx).Where("firm_name = ? AND day = ?", firm, day).First(&dc).Error
	if err != nil {
		if recordNotFound(err) {
			return domain.DailyCounter{FirmName: firm, Day: day}, nil
		}
		return domain.DailyCounter{}, &apperr.IntegrityError{Reason: "get daily counter", Err: err}
	}
	return dc, nil
}

func (s *Store) IncrementDailyCounter(ctx context.Context, firm string, day string, spend float64) error {
	dc, err := s.DailyCounter(ctx, firm, day)
	if err != nil {
		return err
	}
	dc.BetsCount++
	dc.Spent += spend
	if err := s.handle(ctx).Save(&dc).Error; err != nil {
		return &apperr.IntegrityError{Reason: "increment daily counter", Err: err}
	}
	return nil
}

func (s *Store) RecordDailyLoss(ctx context.Context, firm string, day string, loss float64) error {
	dc, err := s.DailyCounter(ctx, firm, day)
	if err != nil {
		return err
	}
	dc.RealizedLoss += loss
	if err := s.handle(ctx).Save(&dc).Error; err != nil {
		return &apperr.IntegrityError{Reason: "record daily loss", Err: err}
	}
	return nil
}

func (s *Store) CreateCycleRecord(ctx context.Context, startedAt time.Time) (uint, error) {
	cr := domain.CycleRecord{StartedAt: startedAt, Status: domain.CycleRunning}
	if err := s.handle(ctx).Create(&cr).Error; err != nil {
		return 0, &apperr.IntegrityError{Reason: "create cycle record", Err: err}
	}
	return cr.ID, nil
}

func (s *Store) CloseCycleRecord(ctx context.Context, id uint, status domain.CycleStatus, finishedAt time.Time, counts ports.CycleCounts) error {
	perCategory := encodeCounts(counts.PerCategoryCounts)
	updates := map[string]any{
		"finished_at":         finishedAt,
		"status":              status,
		"markets_fetched":     counts.MarketsFetched,
		"markets_tradable":    counts.MarketsTradable,
		"bets_approved":       counts.BetsApproved,
		"bets_executed":       counts.BetsExecuted,
		"bets_failed":         counts.BetsFailed,
		"per_category_counts": perCategory,
	}
	if err := s.handle(ctx).Model(&domain.CycleRecord{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return &apperr.IntegrityError{Reason: "close cycle record", Err: err}
	}
	return nil
}

func encodeCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "{}"
	}
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for k, v := range counts {
		if !first {
			b.WriteByte(',')
		}
		first = false
		fmt.Fprintf(&b, "%q:%d", k, v)
	}
	b.WriteByte('}')
	return b.String()
}

func (s *Store) Leaderboard(ctx context.Context) ([]domain.Portfolio, error) {
	var ps []domain.Portfolio
	if err := s.handle(ctx).Order("balance desc").Find(&ps).Error; err != nil {
		return nil, &apperr.IntegrityError{Reason: "leaderboard", Err: err}
	}
	return ps, nil
}

func (s *Store) ActivePositions(ctx context.Context) ([]domain.Bet, error) {
	var bets []domain.Bet
	err := s.handle(ctx).Where("status IN ?", []domain.BetStatus{domain.BetSubmitted}).Find(&bets).Error
	if err != nil {
		return nil, &apperr.IntegrityError{Reason: "active positions", Err: err}
	}
	return bets, nil
}

func (s *Store) RecentTrades(ctx context.Context, limit int) ([]domain.Bet, error) {
	var bets []domain.Bet
	err := s.handle(ctx).Order("execution_timestamp desc").Limit(limit).Find(&bets).Error
	if err != nil {
		return nil, &apperr.IntegrityError{Reason: "recent trades", Err: err}
	}
	return bets, nil
}

func (s *Store) CancelledOrders(ctx context.Context, limit int) ([]domain.CancelledOrder, error) {
	var cos []domain.CancelledOrder
	err := s.handle(ctx).Preload("StrikesHistory").Order("cancelled_at desc").Limit(limit).Find(&cos).Error
	if err != nil {
		return nil, &apperr.IntegrityError{Reason: "cancelled orders", Err: err}
	}
	return cos, nil
}

func (s *Store) PredictionHistory(ctx context.Context, limit int) ([]domain.Prediction, error) {
	var ps []domain.Prediction
	err := s.handle(ctx).Order("created_at desc").Limit(limit).Find(&ps).Error
	if err != nil {
		return nil, &apperr.IntegrityError{Reason: "prediction history", Err: err}
	}
	return ps, nil
}

func (s *Store) FirmTrades(ctx context.Context, firm string, limit int) ([]domain.Bet, error) {
	var bets []domain.Bet
	err := s.handle(ctx).Where("firm = ?", firm).Order("execution_timestamp desc").Limit(limit).Find(&bets).Error
	if err != nil {
		return nil, &apperr.IntegrityError{Reason: "firm trades", Err: err}
	}
	return bets, nil
}
