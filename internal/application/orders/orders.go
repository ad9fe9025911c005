// Package orders implements the Order Lifecycle (C8): the hardest
// subsystem per spec.md §4.8 — submission, the 3-strike monitor, and
// reconciliation. Transport is grounded on AlejandroRuiz99-polybot's
// trading.go/auth.go shape (place/cancel/trades against a signed API),
// adapted to this spec's numeric-errno venue surface.
package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/predimarket/tradingcore/internal/apperr"
	"github.com/predimarket/tradingcore/internal/domain"
	"github.com/predimarket/tradingcore/internal/ports"
)

const (
	priceManipulationThresholdPct = 0.15
	stagnationThreshold           = 168 * time.Hour
	strikesToCancel               = 3

	// submitTimeout bounds the venue PlaceOrder call once the cycle
	// deadline is no longer allowed to interrupt it (see Submit).
	submitTimeout = 30 * time.Second
)

// Reevaluator re-runs a firm's full analysis pipeline for a market and
// returns its fresh probability, used by the monitor's AI-contradiction
// check. The orchestrator wires this to C4+C5 so internal/application/orders
// never imports the assembler/validator packages directly.
type Reevaluator interface {
	Reevaluate(ctx context.Context, firm, marketID string) (probability float64, err error)
}

// Service implements C8's submission, monitor, and reconciliation flows.
type Service struct {
	Store    ports.Store
	Executor ports.OrderExecutor
	Books    ports.OrderBookProvider
	Reval    Reevaluator

	// FeeRate is the venue's taker fee, charged only on a winning payout
	// (§4.6); Reconcile applies it at settlement so a winning bet's
	// recorded profit/loss matches what C6 priced the decision on.
	FeeRate float64
}

// New builds an orders.Service.
func New(store ports.Store, executor ports.OrderExecutor, books ports.OrderBookProvider, reval Reevaluator, feeRate float64) *Service {
	return &Service{Store: store, Executor: executor, Books: books, Reval: reval, FeeRate: feeRate}
}

// SubmissionRequest is everything needed to submit one bet.
type SubmissionRequest struct {
	PredictionID  uint
	Firm          string
	MarketID      string
	TokenID       string
	MarketSide    string // "Yes" | "No", the side tokenID represents
	Size          float64
	Price         float64
	ExpectedValue float64
}

// Submit implements §4.8's submission contract exactly: insert the
// APPROVED row and commit *before* ever calling the venue, so a crash
// between the log line and the venue call never leaves a log with no
// corresponding row — the documented bug this design forbids.
func (s *Service) Submit(ctx context.Context, req SubmissionRequest) (domain.Bet, error) {
	bet := domain.Bet{
		PredictionID:  req.PredictionID,
		Firm:          req.Firm,
		MarketID:      req.MarketID,
		TokenID:       req.TokenID,
		Side:          domain.BetSideBuy,
		MarketSide:    req.MarketSide,
		ClientOrderID: uuid.New().String(),
		Size:          req.Size,
		LimitPrice:    req.Price,
		Status:        domain.BetApproved,
		ExpectedValue: req.ExpectedValue,
	}
	if err := s.Store.Tx(ctx, func(ctx context.Context) error {
		return s.Store.SaveBet(ctx, &bet)
	}); err != nil {
		return domain.Bet{}, fmt.Errorf("orders: save approved bet: %w", err)
	}
	slog.Info("[BET] approved and persisted", "firm", req.Firm, "market_id", req.MarketID, "size", req.Size, "price", req.Price)

	// The APPROVED row is committed: from here on, a cycle-deadline
	// cancellation must not abort the venue call mid-flight, or an order
	// the venue already accepted would be recorded FAILED with no way to
	// reconcile it back. Detach from the cycle deadline and bound the
	// call with its own fixed timeout instead.
	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), submitTimeout)
	defer cancel()

	result, submitErr := s.Executor.PlaceOrder(submitCtx, ports.PlaceOrderRequest{
		MarketID:      req.MarketID,
		TokenID:       req.TokenID,
		Side:          domain.BetSideBuy,
		Price:         req.Price,
		Amount:        req.Size,
		CheckApproval: true,
		ClientOrderID: bet.ClientOrderID,
	})

	status := domain.BetSubmitted
	orderID := ""
	failureReason := ""
	if submitErr != nil {
		status = domain.BetFailed
		failureReason = submitErr.Error()
	} else if result.Errno != 0 {
		status = domain.BetFailed
		failureReason = (&apperr.VenueBusinessError{Errno: result.Errno, Message: result.Message}).Error()
	} else {
		orderID = result.OrderID
	}

	if err := s.Store.Tx(submitCtx, func(ctx context.Context) error {
		return s.Store.UpdateBetStatus(ctx, bet.ID, status, orderID, failureReason)
	}); err != nil {
		return bet, fmt.Errorf("orders: update bet status after submission: %w", err)
	}

	bet.Status = status
	bet.OrderID = orderID
	bet.FailureReason = failureReason
	if status == domain.BetFailed {
		slog.Warn("[BET] submission failed", "firm", req.Firm, "market_id", req.MarketID, "reason", failureReason)
	} else {
		slog.Info("[BET] submitted", "firm", req.Firm, "market_id", req.MarketID, "order_id", orderID)
	}
	return bet, nil
}

// RunMonitor iterates every open (SUBMITTED, unresolved) bet and evaluates
// the three strike factors, per §4.8. RunMonitor checks no secret itself:
// the internal/adminapi endpoint gates it behind the shared secret, and the
// cmd/tradercore scheduler calls it directly.
func (s *Service) RunMonitor(ctx context.Context) (reviewed, strikesIssued, cancelled int, err error) {
	bets, err := s.Store.OpenBets(ctx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("orders: list open bets: %w", err)
	}

	now := time.Now().UTC()
	for _, bet := range bets {
		review, strikeIssued, reason := s.evaluateStrike(ctx, bet, now)
		reviewed++

		var consecutive int
		txErr := s.Store.Tx(ctx, func(ctx context.Context) error {
			var err error
			consecutive, err = s.Store.AppendBetReview(ctx, bet.ID, review, strikeIssued)
			return err
		})
		if txErr != nil {
			slog.Error("orders: monitor failed to append review", "bet_id", bet.ID, "err", txErr)
			continue
		}
		if strikeIssued {
			strikesIssued++
		}

		if consecutive >= strikesToCancel {
			if err := s.cancel(ctx, bet, reason); err != nil {
				slog.Error("orders: monitor failed to cancel bet", "bet_id", bet.ID, "err", err)
				continue
			}
			cancelled++
		}
	}
	return reviewed, strikesIssued, cancelled, nil
}

func (s *Service) evaluateStrike(ctx context.Context, bet domain.Bet, now time.Time) (domain.BetReview, bool, string) {
	var priceDeltaPct, ageHours float64
	var aiContradicts bool
	var reasons []string

	if book, err := s.Books.GetOrderBook(ctx, bet.TokenID); err == nil {
		current := book.BuyPrice()
		if current > 0 && bet.LimitPrice > 0 {
			priceDeltaPct = (current - bet.LimitPrice) / bet.LimitPrice
			if absFloat(priceDeltaPct) > priceManipulationThresholdPct {
				reasons = append(reasons, "price_manipulation")
			}
		}
	} else {
		slog.Warn("orders: monitor orderbook fetch failed", "bet_id", bet.ID, "err", err)
	}

	ageHours = now.Sub(bet.ExecutionTimestamp).Hours()
	if now.Sub(bet.ExecutionTimestamp) > stagnationThreshold {
		reasons = append(reasons, "stagnation")
	}

	if s.Reval != nil {
		if prob, err := s.Reval.Reevaluate(ctx, bet.Firm, bet.MarketID); err == nil {
			wasYes := bet.MarketSide == "Yes"
			nowYes := prob >= 0.5
			if wasYes != nowYes {
				aiContradicts = true
				reasons = append(reasons, "ai_contradiction")
			}
		}
	}

	strikeIssued := len(reasons) > 0
	review := domain.BetReview{
		Timestamp:     now,
		PriceDeltaPct: priceDeltaPct,
		AgeHours:      ageHours,
		AIContradicts: aiContradicts,
		StrikeIssued:  strikeIssued,
	}
	reason := ""
	if len(reasons) > 0 {
		reason = reasons[0]
		for _, r := range reasons[1:] {
			reason += "," + r
		}
	}
	return review, strikeIssued, reason
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func (s *Service) cancel(ctx context.Context, bet domain.Bet, reason string) error {
	if bet.OrderID != "" {
		if _, err := s.Executor.CancelOrder(ctx, bet.OrderID); err != nil {
			slog.Warn("orders: venue cancel failed, archiving locally anyway", "bet_id", bet.ID, "err", err)
		}
	}
	return s.Store.Tx(ctx, func(ctx context.Context) error {
		return s.Store.CancelBet(ctx, bet, fmt.Sprintf("3 consecutive strikes: %s", reason))
	})
}

// Reconcile polls the venue for fills and resolutions and folds them into
// bet/portfolio state, per §4.8's reconciliation contract. All updates for
// one bet occur in a single transaction.
func (s *Service) Reconcile(ctx context.Context) (filled, resolved int, err error) {
	fills, err := s.Executor.GetMyTrades(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("orders: reconcile fetch trades: %w", err)
	}
	for _, f := range fills {
		err := s.Store.Tx(ctx, func(ctx context.Context) error {
			bet, err := s.Store.BetByOrderID(ctx, f.OrderID)
			if err != nil {
				return err
			}
			if bet.Status != domain.BetSubmitted {
				return nil // already FILLED/CANCELLED from a prior pass: idempotent no-op
			}
			return s.Store.UpdateBetStatus(ctx, bet.ID, domain.BetFilled, f.OrderID, "")
		})
		if err != nil {
			slog.Warn("orders: reconcile fill failed", "order_id", f.OrderID, "err", err)
			continue
		}
		filled++
	}

	resolutions, err := s.Executor.GetMyResolutions(ctx)
	if err != nil {
		return filled, 0, fmt.Errorf("orders: reconcile fetch resolutions: %w", err)
	}
	for _, r := range resolutions {
		if err := s.reconcileResolution(ctx, r); err != nil {
			slog.Error("orders: reconcile resolution failed", "market_id", r.MarketID, "err", err)
			continue
		}
		resolved++
	}
	return filled, resolved, nil
}

func (s *Service) reconcileResolution(ctx context.Context, res ports.MarketResolution) error {
	return s.Store.Tx(ctx, func(ctx context.Context) error {
		bets, err := s.Store.OpenBets(ctx)
		if err != nil {
			return err
		}
		for _, bet := range bets {
			if bet.MarketID != res.MarketID {
				continue
			}
			won := bet.TokenID == res.WinningTokenID
			actualResult := 0
			profitLoss := -bet.Size
			if won {
				actualResult = 1
				payout := bet.Size / bet.LimitPrice
				fee := payout * s.FeeRate
				profitLoss = payout - bet.Size - fee
			}
			if err := s.Store.ResolveBet(ctx, bet.ID, actualResult, profitLoss); err != nil {
				return err
			}

			portfolio, err := s.Store.GetPortfolio(ctx, bet.Firm)
			if err != nil {
				return err
			}
			portfolio.ApplyResult(profitLoss, won)
			if err := s.Store.SavePortfolio(ctx, portfolio); err != nil {
				return err
			}
			if !won {
				if err := s.Store.RecordDailyLoss(ctx, bet.Firm, domain.UTCDay(time.Now()), -profitLoss); err != nil {
					return err
				}
			}
			if won {
				if result, err := s.Executor.Redeem(ctx, bet.MarketID); err != nil {
					slog.Warn("orders: redemption submission failed", "market_id", bet.MarketID, "err", err)
				} else if result.Deferred {
					slog.Warn("orders: redemption deferred", "market_id", bet.MarketID, "note", result.DeferralNote)
				}
			}
		}
		return nil
	})
}
