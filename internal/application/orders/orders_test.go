package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/predimarket/tradingcore/internal/domain"
	"github.com/predimarket/tradingcore/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBooks struct {
	book domain.OrderBook
	err  error
}

func (f fakeBooks) GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	return f.book, f.err
}

type fakeReval struct {
	probability float64
	err         error
}

func (f fakeReval) Reevaluate(ctx context.Context, firm, marketID string) (float64, error) {
	return f.probability, f.err
}

func TestEvaluateStrikeNoIssues(t *testing.T) {
	s := &Service{
		Books: fakeBooks{book: domain.OrderBook{Asks: []domain.BookEntry{{Price: 0.5}}}},
		Reval: fakeReval{probability: 0.6},
	}
	bet := domain.Bet{LimitPrice: 0.5, MarketSide: "Yes", ExecutionTimestamp: time.Now()}
	review, strike, reason := s.evaluateStrike(context.Background(), bet, time.Now())
	assert.False(t, strike)
	assert.Empty(t, reason)
	assert.False(t, review.AIContradicts)
}

func TestEvaluateStrikePriceManipulation(t *testing.T) {
	s := &Service{
		Books: fakeBooks{book: domain.OrderBook{Asks: []domain.BookEntry{{Price: 0.8}}}},
		Reval: fakeReval{probability: 0.6},
	}
	bet := domain.Bet{LimitPrice: 0.5, MarketSide: "Yes", ExecutionTimestamp: time.Now()}
	_, strike, reason := s.evaluateStrike(context.Background(), bet, time.Now())
	assert.True(t, strike)
	assert.Contains(t, reason, "price_manipulation")
}

func TestEvaluateStrikeStagnation(t *testing.T) {
	s := &Service{
		Books: fakeBooks{err: errors.New("no book")},
		Reval: fakeReval{probability: 0.6},
	}
	bet := domain.Bet{LimitPrice: 0.6, MarketSide: "Yes", ExecutionTimestamp: time.Now().Add(-200 * time.Hour)}
	_, strike, reason := s.evaluateStrike(context.Background(), bet, time.Now())
	assert.True(t, strike)
	assert.Contains(t, reason, "stagnation")
}

func TestEvaluateStrikeAIContradiction(t *testing.T) {
	s := &Service{
		Books: fakeBooks{err: errors.New("no book")},
		Reval: fakeReval{probability: 0.3}, // now favours NO, bet was YES
	}
	bet := domain.Bet{LimitPrice: 0.6, MarketSide: "Yes", ExecutionTimestamp: time.Now()}
	review, strike, reason := s.evaluateStrike(context.Background(), bet, time.Now())
	assert.True(t, strike)
	assert.True(t, review.AIContradicts)
	assert.Contains(t, reason, "ai_contradiction")
}

func TestEvaluateStrikeMultipleReasonsJoined(t *testing.T) {
	s := &Service{
		Books: fakeBooks{book: domain.OrderBook{Asks: []domain.BookEntry{{Price: 0.9}}}},
		Reval: fakeReval{probability: 0.1},
	}
	bet := domain.Bet{LimitPrice: 0.5, MarketSide: "Yes", ExecutionTimestamp: time.Now().Add(-200 * time.Hour)}
	_, strike, reason := s.evaluateStrike(context.Background(), bet, time.Now())
	require.True(t, strike)
	assert.Contains(t, reason, "price_manipulation")
	assert.Contains(t, reason, "stagnation")
	assert.Contains(t, reason, "ai_contradiction")
}

func TestEvaluateStrikeNoReevaluatorSkipsAIContradiction(t *testing.T) {
	s := &Service{
		Books: fakeBooks{book: domain.OrderBook{Asks: []domain.BookEntry{{Price: 0.5}}}},
		Reval: nil,
	}
	bet := domain.Bet{LimitPrice: 0.5, MarketSide: "Yes", ExecutionTimestamp: time.Now()}
	review, strike, _ := s.evaluateStrike(context.Background(), bet, time.Now())
	assert.False(t, strike)
	assert.False(t, review.AIContradicts)
}

func TestAbsFloat(t *testing.T) {
	assert.Equal(t, 3.0, absFloat(-3))
	assert.Equal(t, 3.0, absFloat(3))
	assert.Equal(t, 0.0, absFloat(0))
}

// fakeStore implements ports.Store, recording just enough to assert on for
// Submit/RunMonitor/Reconcile. Methods this package's tests never exercise
// are trivial stubs.
type fakeStore struct {
	saveBetErr error
	savedBets  []domain.Bet

	updateStatusErr error
	statusUpdates   []statusUpdate

	openBets    []domain.Bet
	openBetsErr error

	appendReviewConsecutive int
	appendReviewErr         error

	cancelBetErr  error
	cancelledBets []domain.Bet

	betByOrderIDResult domain.Bet
	betByOrderIDErr    error

	resolveErr   error
	resolveCalls []resolveCall

	portfolio       domain.Portfolio
	portfolioErr    error
	savedPortfolios []domain.Portfolio

	recordDailyLossErr error
	dailyLossCalls     []float64
}

type statusUpdate struct {
	betID         uint
	status        domain.BetStatus
	orderID       string
	failureReason string
}

type resolveCall struct {
	betID        uint
	actualResult int
	profitLoss   float64
}

func (f *fakeStore) Tx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeStore) Firms(ctx context.Context) ([]domain.Firm, error) { return nil, nil }
func (f *fakeStore) UpsertFirm(ctx context.Context, fm domain.Firm) error { return nil }

func (f *fakeStore) GetPortfolio(ctx context.Context, firm string) (domain.Portfolio, error) {
	return f.portfolio, f.portfolioErr
}
func (f *fakeStore) SavePortfolio(ctx context.Context, p domain.Portfolio) error {
	f.savedPortfolios = append(f.savedPortfolios, p)
	return nil
}
func (f *fakeStore) PortfolioExists(ctx context.Context, firm string) (bool, error) {
	return false, nil
}

func (f *fakeStore) SavePrediction(ctx context.Context, p *domain.Prediction) error { return nil }

func (f *fakeStore) SaveBet(ctx context.Context, b *domain.Bet) error {
	if f.saveBetErr != nil {
		return f.saveBetErr
	}
	b.ID = uint(len(f.savedBets) + 1)
	f.savedBets = append(f.savedBets, *b)
	return nil
}
func (f *fakeStore) BetByOrderID(ctx context.Context, orderID string) (domain.Bet, error) {
	return f.betByOrderIDResult, f.betByOrderIDErr
}
func (f *fakeStore) UpdateBetStatus(ctx context.Context, betID uint, status domain.BetStatus, orderID, failureReason string) error {
	if f.updateStatusErr != nil {
		return f.updateStatusErr
	}
	f.statusUpdates = append(f.statusUpdates, statusUpdate{betID, status, orderID, failureReason})
	return nil
}
func (f *fakeStore) ResolveBet(ctx context.Context, betID uint, actualResult int, profitLoss float64) error {
	if f.resolveErr != nil {
		return f.resolveErr
	}
	f.resolveCalls = append(f.resolveCalls, resolveCall{betID, actualResult, profitLoss})
	return nil
}
func (f *fakeStore) OpenBets(ctx context.Context) ([]domain.Bet, error) {
	return f.openBets, f.openBetsErr
}
func (f *fakeStore) AppendBetReview(ctx context.Context, betID uint, review domain.BetReview, strikeIssued bool) (int, error) {
	return f.appendReviewConsecutive, f.appendReviewErr
}
func (f *fakeStore) CancelBet(ctx context.Context, bet domain.Bet, reason string) error {
	if f.cancelBetErr != nil {
		return f.cancelBetErr
	}
	f.cancelledBets = append(f.cancelledBets, bet)
	return nil
}
func (f *fakeStore) BetsPlacedToday(ctx context.Context, firm, marketID, day string) (bool, error) {
	return false, nil
}

func (f *fakeStore) DailyCounter(ctx context.Context, firm, day string) (domain.DailyCounter, error) {
	return domain.DailyCounter{}, nil
}
func (f *fakeStore) IncrementDailyCounter(ctx context.Context, firm, day string, spend float64) error {
	return nil
}
func (f *fakeStore) RecordDailyLoss(ctx context.Context, firm, day string, loss float64) error {
	if f.recordDailyLossErr != nil {
		return f.recordDailyLossErr
	}
	f.dailyLossCalls = append(f.dailyLossCalls, loss)
	return nil
}

func (f *fakeStore) CreateCycleRecord(ctx context.Context, startedAt time.Time) (uint, error) {
	return 0, nil
}
func (f *fakeStore) CloseCycleRecord(ctx context.Context, id uint, status domain.CycleStatus, finishedAt time.Time, counts ports.CycleCounts) error {
	return nil
}

func (f *fakeStore) SaveCancelledOrder(ctx context.Context, co domain.CancelledOrder) error {
	return nil
}

func (f *fakeStore) Leaderboard(ctx context.Context) ([]domain.Portfolio, error) { return nil, nil }
func (f *fakeStore) ActivePositions(ctx context.Context) ([]domain.Bet, error)   { return nil, nil }
func (f *fakeStore) RecentTrades(ctx context.Context, limit int) ([]domain.Bet, error) {
	return nil, nil
}
func (f *fakeStore) CancelledOrders(ctx context.Context, limit int) ([]domain.CancelledOrder, error) {
	return nil, nil
}
func (f *fakeStore) PredictionHistory(ctx context.Context, limit int) ([]domain.Prediction, error) {
	return nil, nil
}
func (f *fakeStore) FirmTrades(ctx context.Context, firm string, limit int) ([]domain.Bet, error) {
	return nil, nil
}

// fakeExecutor implements ports.OrderExecutor.
type fakeExecutor struct {
	placeResult ports.PlaceOrderResult
	placeErr    error
	placeCalls  []ports.PlaceOrderRequest

	cancelResult ports.PlaceOrderResult
	cancelErr    error
	cancelCalls  []string

	redeemResult ports.RedeemResult
	redeemErr    error
	redeemCalls  []string

	trades    []ports.TradeFill
	tradesErr error

	resolutions    []ports.MarketResolution
	resolutionsErr error
}

func (f *fakeExecutor) EnableTrading(ctx context.Context) error { return nil }

func (f *fakeExecutor) PlaceOrder(ctx context.Context, req ports.PlaceOrderRequest) (ports.PlaceOrderResult, error) {
	f.placeCalls = append(f.placeCalls, req)
	return f.placeResult, f.placeErr
}
func (f *fakeExecutor) CancelOrder(ctx context.Context, orderID string) (ports.PlaceOrderResult, error) {
	f.cancelCalls = append(f.cancelCalls, orderID)
	return f.cancelResult, f.cancelErr
}
func (f *fakeExecutor) Redeem(ctx context.Context, marketID string) (ports.RedeemResult, error) {
	f.redeemCalls = append(f.redeemCalls, marketID)
	return f.redeemResult, f.redeemErr
}
func (f *fakeExecutor) GetMyTrades(ctx context.Context) ([]ports.TradeFill, error) {
	return f.trades, f.tradesErr
}
func (f *fakeExecutor) GetMyResolutions(ctx context.Context) ([]ports.MarketResolution, error) {
	return f.resolutions, f.resolutionsErr
}
func (f *fakeExecutor) GetMyBalances(ctx context.Context) (ports.Balances, error) {
	return ports.Balances{}, nil
}

func TestSubmitPersistsBeforeCallingVenueAndRecordsSuccess(t *testing.T) {
	store := &fakeStore{}
	exec := &fakeExecutor{placeResult: ports.PlaceOrderResult{OrderID: "venue-order-1"}}
	s := &Service{Store: store, Executor: exec}

	bet, err := s.Submit(context.Background(), SubmissionRequest{
		Firm: "acme", MarketID: "m1", TokenID: "tok-yes", MarketSide: "Yes", Size: 10, Price: 0.5,
	})
	require.NoError(t, err)

	require.Len(t, store.savedBets, 1, "the APPROVED row must be committed before the venue call")
	assert.Equal(t, domain.BetApproved, store.savedBets[0].Status)

	require.Len(t, exec.placeCalls, 1)
	assert.Equal(t, bet.ClientOrderID, exec.placeCalls[0].ClientOrderID)
	assert.NotEmpty(t, bet.ClientOrderID)

	assert.Equal(t, domain.BetSubmitted, bet.Status)
	assert.Equal(t, "venue-order-1", bet.OrderID)
	require.Len(t, store.statusUpdates, 1)
	assert.Equal(t, domain.BetSubmitted, store.statusUpdates[0].status)
}

func TestSubmitMarksFailedOnTransportError(t *testing.T) {
	store := &fakeStore{}
	exec := &fakeExecutor{placeErr: errors.New("dial timeout")}
	s := &Service{Store: store, Executor: exec}

	bet, err := s.Submit(context.Background(), SubmissionRequest{Firm: "acme", MarketID: "m1", Size: 10, Price: 0.5})
	require.NoError(t, err)
	assert.Equal(t, domain.BetFailed, bet.Status)
	assert.Contains(t, bet.FailureReason, "dial timeout")
}

func TestSubmitMarksFailedOnVenueBusinessError(t *testing.T) {
	store := &fakeStore{}
	exec := &fakeExecutor{placeResult: ports.PlaceOrderResult{Errno: 42, Message: "insufficient balance"}}
	s := &Service{Store: store, Executor: exec}

	bet, err := s.Submit(context.Background(), SubmissionRequest{Firm: "acme", MarketID: "m1", Size: 10, Price: 0.5})
	require.NoError(t, err)
	assert.Equal(t, domain.BetFailed, bet.Status)
	assert.Contains(t, bet.FailureReason, "insufficient balance")
}

func TestSubmitNeverCallsVenueIfApprovedRowFailsToPersist(t *testing.T) {
	store := &fakeStore{saveBetErr: errors.New("disk full")}
	exec := &fakeExecutor{}
	s := &Service{Store: store, Executor: exec}

	_, err := s.Submit(context.Background(), SubmissionRequest{Firm: "acme", MarketID: "m1", Size: 10, Price: 0.5})
	require.Error(t, err)
	assert.Empty(t, exec.placeCalls, "venue must never be called if the APPROVED row wasn't committed")
}

func TestRunMonitorCancelsAfterThirdStrikeAndArchivesLocallyEvenIfVenueCancelFails(t *testing.T) {
	bet := domain.Bet{ID: 7, OrderID: "ord-7", LimitPrice: 0.6, MarketSide: "Yes", ExecutionTimestamp: time.Now().Add(-200 * time.Hour)}
	store := &fakeStore{openBets: []domain.Bet{bet}, appendReviewConsecutive: 3}
	exec := &fakeExecutor{cancelErr: errors.New("venue unreachable")}
	s := &Service{Store: store, Executor: exec, Books: fakeBooks{err: errors.New("no book")}}

	reviewed, strikesIssued, cancelled, err := s.RunMonitor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reviewed)
	assert.Equal(t, 1, strikesIssued)
	assert.Equal(t, 1, cancelled)

	require.Len(t, exec.cancelCalls, 1)
	assert.Equal(t, "ord-7", exec.cancelCalls[0])
	require.Len(t, store.cancelledBets, 1, "local archival must proceed even when the venue cancel call fails")
	assert.Equal(t, uint(7), store.cancelledBets[0].ID)
}

func TestRunMonitorDoesNotCancelBelowThreeStrikes(t *testing.T) {
	bet := domain.Bet{ID: 1, LimitPrice: 0.6, MarketSide: "Yes", ExecutionTimestamp: time.Now()}
	store := &fakeStore{openBets: []domain.Bet{bet}, appendReviewConsecutive: 1}
	exec := &fakeExecutor{}
	s := &Service{Store: store, Executor: exec, Books: fakeBooks{book: domain.OrderBook{Asks: []domain.BookEntry{{Price: 0.6}}}}}

	_, _, cancelled, err := s.RunMonitor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, cancelled)
	assert.Empty(t, store.cancelledBets)
}

func TestReconcileFillUpdatesSubmittedBet(t *testing.T) {
	store := &fakeStore{betByOrderIDResult: domain.Bet{ID: 3, Status: domain.BetSubmitted}}
	exec := &fakeExecutor{trades: []ports.TradeFill{{OrderID: "o1", MarketID: "m1"}}}
	s := &Service{Store: store, Executor: exec}

	filled, _, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, filled)
	require.Len(t, store.statusUpdates, 1)
	assert.Equal(t, domain.BetFilled, store.statusUpdates[0].status)
}

func TestReconcileFillIsIdempotentOnceAlreadySettled(t *testing.T) {
	store := &fakeStore{betByOrderIDResult: domain.Bet{ID: 3, Status: domain.BetFilled}}
	exec := &fakeExecutor{trades: []ports.TradeFill{{OrderID: "o1", MarketID: "m1"}}}
	s := &Service{Store: store, Executor: exec}

	filled, _, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, filled)
	assert.Empty(t, store.statusUpdates, "a bet already past SUBMITTED must not be re-updated")
}

func TestReconcileResolutionDeductsFeeOnWin(t *testing.T) {
	bet := domain.Bet{ID: 9, Firm: "acme", MarketID: "m1", TokenID: "yes-tok", Size: 10, LimitPrice: 0.5}
	store := &fakeStore{openBets: []domain.Bet{bet}, portfolio: domain.Portfolio{FirmName: "acme"}}
	exec := &fakeExecutor{}
	s := &Service{Store: store, Executor: exec, FeeRate: 0.02}

	err := s.reconcileResolution(context.Background(), ports.MarketResolution{MarketID: "m1", WinningTokenID: "yes-tok"})
	require.NoError(t, err)

	require.Len(t, store.resolveCalls, 1)
	payout := bet.Size / bet.LimitPrice // 20
	wantFee := payout * s.FeeRate       // 0.4
	wantProfitLoss := payout - bet.Size - wantFee
	assert.Equal(t, 1, store.resolveCalls[0].actualResult)
	assert.InDelta(t, wantProfitLoss, store.resolveCalls[0].profitLoss, 1e-9)

	require.Len(t, store.savedPortfolios, 1)
	assert.InDelta(t, wantProfitLoss, store.savedPortfolios[0].Balance, 1e-9)
	assert.Empty(t, store.dailyLossCalls, "a win must never record a daily loss")

	require.Len(t, exec.redeemCalls, 1)
	assert.Equal(t, "m1", exec.redeemCalls[0])
}

func TestReconcileResolutionOnLossRecordsDailyLossAndNoRedeem(t *testing.T) {
	bet := domain.Bet{ID: 10, Firm: "acme", MarketID: "m1", TokenID: "no-tok", Size: 10, LimitPrice: 0.5}
	store := &fakeStore{openBets: []domain.Bet{bet}, portfolio: domain.Portfolio{FirmName: "acme"}}
	exec := &fakeExecutor{}
	s := &Service{Store: store, Executor: exec, FeeRate: 0.02}

	err := s.reconcileResolution(context.Background(), ports.MarketResolution{MarketID: "m1", WinningTokenID: "yes-tok"})
	require.NoError(t, err)

	require.Len(t, store.resolveCalls, 1)
	assert.Equal(t, 0, store.resolveCalls[0].actualResult)
	assert.Equal(t, -bet.Size, store.resolveCalls[0].profitLoss)

	require.Len(t, store.dailyLossCalls, 1)
	assert.Equal(t, bet.Size, store.dailyLossCalls[0])
	assert.Empty(t, exec.redeemCalls, "a loss must never trigger redemption")
}
