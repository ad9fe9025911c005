// Package orchestrator implements the Cycle Orchestrator (C9): the daily
// cycle driver. Grounded on
// AlejandroRuiz99-polybot/internal/application/engine/live/engine.go's
// RunOnce staged pipeline (protection -> discovery -> verification ->
// maintenance -> placement -> reporting), generalized from one engine
// instance into a sequential per-firm loop over N firms, per §4.9.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/predimarket/tradingcore/internal/application/assembler"
	"github.com/predimarket/tradingcore/internal/application/orders"
	"github.com/predimarket/tradingcore/internal/application/risk"
	"github.com/predimarket/tradingcore/internal/application/sizing"
	"github.com/predimarket/tradingcore/internal/application/validator"
	"github.com/predimarket/tradingcore/internal/cache"
	"github.com/predimarket/tradingcore/internal/domain"
	"github.com/predimarket/tradingcore/internal/ports"
)

// Config bundles every tunable the orchestrator needs beyond its
// collaborators: bankroll/risk defaults, sizing coefficients, and the
// cycle deadline.
type Config struct {
	FeeRate                float64
	SizingCoefficients      sizing.Coefficients
	RiskTiers               risk.Table
	CircuitBreaker          risk.CircuitBreaker
	CategoryExposureCapPct  float64
	DailySpendCap           float64
	CycleDeadline           time.Duration
}

// Orchestrator drives one daily cycle across all registered firms.
type Orchestrator struct {
	Store      ports.Store
	Markets    ports.MarketFetcher
	Books      ports.OrderBookProvider
	Assembler  *assembler.Assembler
	Models     map[string]ports.ModelClient // keyed by firm name
	Orders     *orders.Service
	Cache      *cache.Cache
	Cfg        Config
}

// Summary is the per-cycle result returned to the admin HTTP surface.
type Summary struct {
	CycleID         uint
	Status          domain.CycleStatus
	MarketsFetched  int
	MarketsTradable int
	BetsApproved    int
	BetsExecuted    int
	BetsFailed      int
	SkipReasons     []string
}

// RunCycle drives exactly §4.9's six steps.
func (o *Orchestrator) RunCycle(parent context.Context) (Summary, error) {
	ctx, cancel := context.WithTimeout(parent, o.Cfg.CycleDeadline)
	defer cancel()

	started := time.Now().UTC()
	cycleID, err := o.Store.CreateCycleRecord(ctx, started)
	if err != nil {
		return Summary{}, fmt.Errorf("orchestrator: create cycle record: %w", err)
	}

	o.Cache.Reset()

	firms, err := o.Store.Firms(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("orchestrator: list firms: %w", err)
	}

	fetchResult, err := o.Markets.FetchTradableMarkets(ctx)
	if err != nil {
		_ = o.Store.CloseCycleRecord(context.Background(), cycleID, domain.CycleFailed, time.Now().UTC(), ports.CycleCounts{})
		return Summary{}, fmt.Errorf("orchestrator: fetch markets: %w", err)
	}
	markets := fetchResult.Tradable

	summary := Summary{CycleID: cycleID, MarketsFetched: fetchResult.FetchedCount, MarketsTradable: len(markets)}
	categoryCounts := make(map[string]int)
	status := domain.CycleCompleted

	for i, firm := range firms {
		slog.Info("orchestrator: cycle progress", "firm", firm.Name, "progress", fmt.Sprintf("%d/%d", i+1, len(firms)))

		if ctx.Err() != nil {
			status = domain.CyclePartial
			break
		}

		model := o.Models[firm.Name]
		if model == nil {
			slog.Warn("orchestrator: no model client configured, skipping firm", "firm", firm.Name)
			continue
		}

		for _, market := range markets {
			if ctx.Err() != nil {
				status = domain.CyclePartial
				break
			}
			o.evaluatePair(ctx, firm, market, model, &summary, categoryCounts)
		}
	}

	if filled, resolved, err := o.Orders.Reconcile(ctx); err != nil {
		slog.Error("orchestrator: reconciliation failed", "err", err)
	} else {
		slog.Info("orchestrator: reconciliation complete", "filled", filled, "resolved", resolved)
	}

	// Detached from the cycle deadline so a PARTIAL cycle is still recorded.
	if err := o.Store.CloseCycleRecord(context.WithoutCancel(ctx), cycleID, status, time.Now().UTC(), ports.CycleCounts{
		MarketsFetched:    summary.MarketsFetched,
		MarketsTradable:   summary.MarketsTradable,
		BetsApproved:      summary.BetsApproved,
		BetsExecuted:      summary.BetsExecuted,
		BetsFailed:        summary.BetsFailed,
		PerCategoryCounts: categoryCounts,
	}); err != nil {
		slog.Error("orchestrator: close cycle record failed", "err", err)
	}

	summary.Status = status
	return summary, nil
}

// evaluatePair runs one (firm, market) through C4 -> C5 -> C6 -> C7 -> C8,
// persisting the Prediction regardless of whether a bet followed, per
// §4.9 step 4c.
func (o *Orchestrator) evaluatePair(ctx context.Context, firm domain.Firm, market domain.Market, model ports.ModelClient, summary *Summary, categoryCounts map[string]int) {
	blob, err := o.Assembler.Assemble(ctx, firm, market, model)
	if err != nil {
		slog.Warn("orchestrator: skip pair, model call failed", "firm", firm.Name, "market_id", market.MarketID, "err", err)
		return
	}

	prediction, err := validator.Parse(firm.Name, market.MarketID, blob)
	if err != nil {
		slog.Warn("orchestrator: skip pair, schema error", "firm", firm.Name, "market_id", market.MarketID, "err", err)
		prediction = domain.Prediction{Firm: firm.Name, MarketID: market.MarketID, SkipReason: "schema_error"}
		o.persistPrediction(ctx, &prediction)
		return
	}

	portfolio, err := o.Store.GetPortfolio(ctx, firm.Name)
	if err != nil {
		slog.Error("orchestrator: no portfolio for firm, skipping", "firm", firm.Name, "err", err)
		return
	}

	side := sizing.SelectSide(prediction.Probability)
	yesBook, _ := o.Books.GetOrderBook(ctx, market.YesTokenID)
	noBook, _ := o.Books.GetOrderBook(ctx, market.NoTokenID)
	tokenID, price, ok := sizing.BuyPriceForSide(market, side, yesBook, noBook)
	if !ok {
		prediction.SkipReason = "no_orderbook_price"
		o.persistPrediction(ctx, &prediction)
		return
	}

	desired := sizing.DesiredSize(firm.SizingStrategy, sizing.Inputs{
		Probability:       prediction.Probability,
		Price:             price,
		Confidence:        prediction.Confidence,
		Balance:           portfolio.Balance,
		ConsecutiveWins:   portfolio.ConsecutiveWins,
		ConsecutiveLosses: portfolio.ConsecutiveLosses,
	}, o.Cfg.SizingCoefficients)

	ev := sizing.ComputeEV(desired, price, prediction.Probability, o.Cfg.FeeRate)
	if !ev.Worthwhile() {
		prediction.SkipReason = "non_positive_ev"
		o.persistPrediction(ctx, &prediction)
		return
	}

	day := domain.UTCDay(time.Now())

	alreadyBet, err := o.Store.BetsPlacedToday(ctx, firm.Name, market.MarketID, day)
	if err != nil {
		slog.Error("orchestrator: bets-placed-today check failed", "firm", firm.Name, "market_id", market.MarketID, "err", err)
		return
	}
	if alreadyBet {
		prediction.SkipReason = "already_bet_today"
		o.persistPrediction(ctx, &prediction)
		return
	}

	counter, err := o.Store.DailyCounter(ctx, firm.Name, day)
	if err != nil {
		slog.Error("orchestrator: daily counter lookup failed", "firm", firm.Name, "err", err)
		return
	}

	now := time.Now().UTC()
	decision := risk.Evaluate(
		o.Cfg.RiskTiers,
		o.Cfg.CircuitBreaker,
		portfolio,
		counter,
		counter.BetsCount,
		0, // category exposure tracking is a future enrichment; capped at 0 until a per-category ledger is added
		o.Cfg.CategoryExposureCapPct,
		o.Cfg.DailySpendCap,
		o.Cfg.SizingCoefficients.MinimumBet,
		risk.Candidate{Size: desired, Category: market.Category},
		now,
	)
	if decision.Reason == risk.ReasonCircuitBreakerOpen && portfolio.BreakerTrippedAt.IsZero() {
		portfolio.BreakerTrippedAt = now
		if err := o.Store.Tx(ctx, func(ctx context.Context) error {
			return o.Store.SavePortfolio(ctx, portfolio)
		}); err != nil {
			slog.Error("orchestrator: failed to record circuit breaker trip", "firm", firm.Name, "err", err)
		}
	}
	if !decision.Approved {
		prediction.SkipReason = string(decision.Reason)
		o.persistPrediction(ctx, &prediction)
		return
	}

	o.persistPrediction(ctx, &prediction)
	summary.BetsApproved++
	categoryCounts[market.Category]++

	bet, err := o.Orders.Submit(ctx, orders.SubmissionRequest{
		PredictionID:  prediction.ID,
		Firm:          firm.Name,
		MarketID:      market.MarketID,
		TokenID:       tokenID,
		MarketSide:    string(side),
		Size:          decision.Size,
		Price:         sizing.RoundPrice(price),
		ExpectedValue: ev.NetEV,
	})
	if err != nil {
		slog.Error("orchestrator: bet submission failed", "firm", firm.Name, "market_id", market.MarketID, "err", err)
		summary.BetsFailed++
		return
	}

	if err := o.Store.IncrementDailyCounter(ctx, firm.Name, day, decision.Size); err != nil {
		slog.Error("orchestrator: increment daily counter failed", "firm", firm.Name, "err", err)
	}

	if bet.Status == domain.BetFailed {
		summary.BetsFailed++
	} else {
		summary.BetsExecuted++
	}
}

func (o *Orchestrator) persistPrediction(ctx context.Context, p *domain.Prediction) {
	if err := o.Store.Tx(ctx, func(ctx context.Context) error {
		return o.Store.SavePrediction(ctx, p)
	}); err != nil {
		slog.Error("orchestrator: save prediction failed", "firm", p.Firm, "market_id", p.MarketID, "err", err)
	}
}

// assembleReevaluator adapts Orchestrator to orders.Reevaluator so the
// monitor's AI-contradiction check can re-run C4+C5 without
// internal/application/orders importing them directly.
type assembleReevaluator struct {
	o *Orchestrator
}

// NewReevaluator returns an orders.Reevaluator backed by this
// orchestrator's assembler/validator/model clients.
func NewReevaluator(o *Orchestrator) orders.Reevaluator {
	return &assembleReevaluator{o: o}
}

func (r *assembleReevaluator) Reevaluate(ctx context.Context, firmName, marketID string) (float64, error) {
	model := r.o.Models[firmName]
	if model == nil {
		return 0, fmt.Errorf("no model client configured for firm %s", firmName)
	}
	firms, err := r.o.Store.Firms(ctx)
	if err != nil {
		return 0, err
	}
	var firm domain.Firm
	found := false
	for _, f := range firms {
		if f.Name == firmName {
			firm = f
			found = true
			break
		}
	}
	if !found {
		return 0, fmt.Errorf("unknown firm %s", firmName)
	}

	market := domain.Market{MarketID: marketID}
	blob, err := r.o.Assembler.Assemble(ctx, firm, market, model)
	if err != nil {
		return 0, err
	}
	prediction, err := validator.Parse(firmName, marketID, blob)
	if err != nil {
		return 0, err
	}
	return prediction.Probability, nil
}
