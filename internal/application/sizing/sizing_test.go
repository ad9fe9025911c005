package sizing

import (
	"testing"

	"github.com/predimarket/tradingcore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectSide(t *testing.T) {
	assert.Equal(t, SideYes, SelectSide(0.5))
	assert.Equal(t, SideYes, SelectSide(0.51))
	assert.Equal(t, SideNo, SelectSide(0.49))
}

func TestBuyPriceForSideUsesChosenSideBook(t *testing.T) {
	m := domain.Market{YesTokenID: "yes-tok", NoTokenID: "no-tok"}
	yesBook := domain.OrderBook{Asks: []domain.BookEntry{{Price: 0.6, Size: 10}}}
	noBook := domain.OrderBook{Asks: []domain.BookEntry{{Price: 0.4, Size: 10}}}

	tok, price, ok := BuyPriceForSide(m, SideYes, yesBook, noBook)
	require.True(t, ok)
	assert.Equal(t, "yes-tok", tok)
	assert.Equal(t, 0.6, price)

	tok, price, ok = BuyPriceForSide(m, SideNo, yesBook, noBook)
	require.True(t, ok)
	assert.Equal(t, "no-tok", tok)
	assert.Equal(t, 0.4, price)
}

func TestBuyPriceForSideEmptyBook(t *testing.T) {
	m := domain.Market{YesTokenID: "yes-tok", NoTokenID: "no-tok"}
	_, _, ok := BuyPriceForSide(m, SideYes, domain.OrderBook{}, domain.OrderBook{})
	assert.False(t, ok)
}

func TestComputeEVZeroPrice(t *testing.T) {
	ev := ComputeEV(10, 0, 0.6, 0.02)
	assert.Equal(t, EV{}, ev)
	assert.False(t, ev.Worthwhile())
}

func TestComputeEVPositiveEdge(t *testing.T) {
	// p=0.7 at price 0.5 is a strong edge; net EV should be positive even
	// after a 2% fee on payout.
	ev := ComputeEV(10, 0.5, 0.7, 0.02)
	assert.Greater(t, ev.GrossEV, 0.0)
	assert.Greater(t, ev.NetEV, 0.0)
	assert.True(t, ev.Worthwhile())
}

func TestComputeEVNegativeEdge(t *testing.T) {
	// p=0.3 at price 0.5 is a losing bet in expectation.
	ev := ComputeEV(10, 0.5, 0.3, 0.02)
	assert.Less(t, ev.NetEV, 0.0)
	assert.False(t, ev.Worthwhile())
}

func defaultCoefficients() Coefficients {
	return Coefficients{
		KellyFractionOfFull:          0.25,
		FixedFractionalHigh:          0.05,
		FixedFractionalMedium:        0.03,
		FixedFractionalLow:           0.015,
		FixedFractionalFloor:         0.005,
		ProportionalK:                0.05,
		MartingaleMultiplier:         1.5,
		MartingaleMaxEscalations:     3,
		AntiMartingaleMultiplier:     1.3,
		AntiMartingaleMaxEscalations: 3,
		MinimumBet:                   1.5,
	}
}

func TestKellyConservativeRequiresEdge(t *testing.T) {
	coef := defaultCoefficients()
	in := Inputs{Probability: 0.4, Price: 0.5, Confidence: 8, Balance: 1000}
	assert.Zero(t, kellyConservative(in, coef))
}

func TestKellyConservativePositive(t *testing.T) {
	coef := defaultCoefficients()
	in := Inputs{Probability: 0.65, Price: 0.5, Confidence: 10, Balance: 1000}
	got := kellyConservative(in, coef)
	assert.Greater(t, got, 0.0)
	assert.Less(t, got, in.Balance)
}

func TestKellyConservativeScalesWithConfidence(t *testing.T) {
	coef := defaultCoefficients()
	hi := kellyConservative(Inputs{Probability: 0.65, Price: 0.5, Confidence: 10, Balance: 1000}, coef)
	lo := kellyConservative(Inputs{Probability: 0.65, Price: 0.5, Confidence: 5, Balance: 1000}, coef)
	assert.Greater(t, hi, lo)
}

func TestFixedFractionalBands(t *testing.T) {
	coef := defaultCoefficients()
	base := Inputs{Probability: 0.6, Balance: 1000}

	base.Confidence = 9 // 90 on the 0-100 scale
	assert.Equal(t, 1000*coef.FixedFractionalHigh, fixedFractional(base, coef))

	base.Confidence = 7.5 // 75
	assert.Equal(t, 1000*coef.FixedFractionalMedium, fixedFractional(base, coef))

	base.Confidence = 6.5 // 65
	assert.Equal(t, 1000*coef.FixedFractionalLow, fixedFractional(base, coef))

	base.Confidence = 3 // 30
	assert.Equal(t, 1000*coef.FixedFractionalFloor, fixedFractional(base, coef))
}

func TestFixedFractionalBelowProbabilityFloor(t *testing.T) {
	coef := defaultCoefficients()
	in := Inputs{Probability: 0.54, Confidence: 10, Balance: 1000}
	assert.Zero(t, fixedFractional(in, coef))
}

func TestProportionalRequiresThresholds(t *testing.T) {
	coef := defaultCoefficients()
	assert.Zero(t, proportional(Inputs{Probability: 0.59, Confidence: 10, Balance: 1000}, coef))
	assert.Zero(t, proportional(Inputs{Probability: 0.7, Confidence: 5, Balance: 1000}, coef))
}

func TestProportionalPositive(t *testing.T) {
	coef := defaultCoefficients()
	in := Inputs{Probability: 0.7, Confidence: 8, Balance: 1000}
	got := proportional(in, coef)
	assert.Greater(t, got, 0.0)
}

func TestMartingaleModifiedEscalatesThenResets(t *testing.T) {
	coef := defaultCoefficients()
	in := Inputs{Probability: 0.6, Balance: 1000}

	in.ConsecutiveLosses = 0
	base := martingaleModified(in, coef)
	assert.Equal(t, 1000*0.01, base)

	in.ConsecutiveLosses = 1
	one := martingaleModified(in, coef)
	assert.Greater(t, one, base)

	in.ConsecutiveLosses = coef.MartingaleMaxEscalations + 1
	capped := martingaleModified(in, coef)
	assert.Equal(t, base, capped)
}

func TestAntiMartingaleEscalatesThenResets(t *testing.T) {
	coef := defaultCoefficients()
	in := Inputs{Probability: 0.65, Balance: 1000}

	in.ConsecutiveWins = 0
	base := antiMartingale(in, coef)
	assert.Equal(t, 1000*0.01, base)

	in.ConsecutiveWins = 1
	one := antiMartingale(in, coef)
	assert.Greater(t, one, base)

	in.ConsecutiveWins = coef.AntiMartingaleMaxEscalations + 1
	capped := antiMartingale(in, coef)
	assert.Equal(t, base, capped)
}

func TestDesiredSizeDispatch(t *testing.T) {
	coef := defaultCoefficients()
	in := Inputs{Probability: 0.7, Price: 0.5, Confidence: 8, Balance: 1000}

	assert.Equal(t, kellyConservative(in, coef), DesiredSize(domain.KellyConservative, in, coef))
	assert.Equal(t, fixedFractional(in, coef), DesiredSize(domain.FixedFractional, in, coef))
	assert.Equal(t, proportional(in, coef), DesiredSize(domain.Proportional, in, coef))
	assert.Equal(t, martingaleModified(in, coef), DesiredSize(domain.MartingaleModified, in, coef))
	assert.Equal(t, antiMartingale(in, coef), DesiredSize(domain.AntiMartingale, in, coef))
	assert.Zero(t, DesiredSize(domain.SizingStrategy("unknown"), in, coef))
}

func TestRoundPriceClampsAndRounds(t *testing.T) {
	assert.Equal(t, 0.001, RoundPrice(0.0001))
	assert.Equal(t, 0.999, RoundPrice(0.9999))
	assert.Equal(t, 0.457, RoundPrice(0.4567))
}
