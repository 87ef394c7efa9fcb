package balancer_test

import (
	"fmt"
	"testing"

	"github.com/coppermind/milestone-engine/balancer"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func assertDecimal(t *testing.T, expected int64, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	if !dec(expected).Equal(actual) {
		assert.Fail(t, fmt.Sprintf("expected %d, got %s", expected, actual), msgAndArgs...)
	}
}

// =============================================================================
// EVEN DISTRIBUTION
// =============================================================================

func TestEvenDistribution_SumBounds(t *testing.T) {
	// For every (R, D) the ceilinged split covers R and overshoots by less than D
	for _, r := range []int64{1, 7, 100, 999, 3000} {
		for _, d := range []int{1, 2, 3, 13, 28, 31, 90} {
			sum := decimal.Zero
			for i := 0; i < d; i++ {
				sum = sum.Add(balancer.DailyTarget(balancer.StrategyEvenDistribution, dec(r), d, i))
			}
			assert.True(t, sum.GreaterThanOrEqual(dec(r)), "R=%d D=%d sum=%s", r, d, sum)
			assert.True(t, sum.LessThan(dec(r+int64(d))), "R=%d D=%d sum=%s", r, d, sum)
		}
	}
}

func TestEvenDistribution_Ceiling(t *testing.T) {
	assertDecimal(t, 108, balancer.DailyTarget(balancer.StrategyEvenDistribution, dec(3000), 28, 0))
	assertDecimal(t, 129, balancer.DailyTarget(balancer.StrategyEvenDistribution, dec(1800), 14, 0))
	assertDecimal(t, 10, balancer.DailyTarget(balancer.StrategyEvenDistribution, dec(100), 10, 3))

	// Fractional remaining is still rounded up to whole units
	r := decimal.RequireFromString("10.5")
	assertDecimal(t, 4, balancer.DailyTarget(balancer.StrategyEvenDistribution, r, 3, 0))
}

// =============================================================================
// FRONT LOAD
// =============================================================================

func TestFrontLoad_HalvingWeights(t *testing.T) {
	// GIVEN: 7 left over 3 days, weights 4/2/1
	targets := []decimal.Decimal{
		balancer.DailyTarget(balancer.StrategyFrontLoad, dec(7), 3, 0),
		balancer.DailyTarget(balancer.StrategyFrontLoad, dec(7), 3, 1),
		balancer.DailyTarget(balancer.StrategyFrontLoad, dec(7), 3, 2),
	}

	// THEN: exact split
	assertDecimal(t, 4, targets[0])
	assertDecimal(t, 2, targets[1])
	assertDecimal(t, 1, targets[2])
}

func TestFrontLoad_RoundsUp(t *testing.T) {
	// 10 over 3 days: 40/7, 20/7, 10/7
	assertDecimal(t, 6, balancer.DailyTarget(balancer.StrategyFrontLoad, dec(10), 3, 0))
	assertDecimal(t, 3, balancer.DailyTarget(balancer.StrategyFrontLoad, dec(10), 3, 1))
	assertDecimal(t, 2, balancer.DailyTarget(balancer.StrategyFrontLoad, dec(10), 3, 2))
}

func TestFrontLoad_EarlierNeverSmaller(t *testing.T) {
	for _, r := range []int64{1, 50, 3000} {
		for d := 2; d <= 40; d++ {
			first := balancer.DailyTarget(balancer.StrategyFrontLoad, dec(r), d, 0)
			last := balancer.DailyTarget(balancer.StrategyFrontLoad, dec(r), d, d-1)
			assert.True(t, first.GreaterThanOrEqual(last), "R=%d D=%d first=%s last=%s", r, d, first, last)
		}
	}
}

func TestFrontLoad_LongPeriodStaysExact(t *testing.T) {
	// GIVEN: a period far beyond float64/int64 exponent range
	// THEN: day 0 carries just over half, the last day rounds up to 1
	assertDecimal(t, 51, balancer.DailyTarget(balancer.StrategyFrontLoad, dec(100), 100, 0))
	assertDecimal(t, 1, balancer.DailyTarget(balancer.StrategyFrontLoad, dec(100), 100, 99))
	assertDecimal(t, 1, balancer.DailyTarget(balancer.StrategyFrontLoad, dec(100), 365, 364))
}

func TestFrontLoad_IndexOutOfRange(t *testing.T) {
	assertDecimal(t, 0, balancer.DailyTarget(balancer.StrategyFrontLoad, dec(10), 3, 3))
	assertDecimal(t, 0, balancer.DailyTarget(balancer.StrategyFrontLoad, dec(10), 3, -1))
}

// =============================================================================
// MANUAL AND GUARDS
// =============================================================================

func TestManual_AlwaysZero(t *testing.T) {
	for _, d := range []int{1, 5, 28} {
		for i := 0; i < d; i++ {
			assertDecimal(t, 0, balancer.DailyTarget(balancer.StrategyManual, dec(500), d, i))
		}
	}
}

func TestDailyTarget_ZeroGuards(t *testing.T) {
	for _, s := range balancer.Strategies {
		assertDecimal(t, 0, balancer.DailyTarget(s, decimal.Zero, 10, 0), "zero target %s", s)
		assertDecimal(t, 0, balancer.DailyTarget(s, dec(-5), 10, 0), "negative target %s", s)
		assertDecimal(t, 0, balancer.DailyTarget(s, dec(100), 0, 0), "zero days %s", s)
		assertDecimal(t, 0, balancer.DailyTarget(s, dec(100), -1, 0), "negative days %s", s)
	}
}

func TestDailyTarget_UnknownStrategyFallsBackToEven(t *testing.T) {
	assertDecimal(t, 108, balancer.DailyTarget("Sprint", dec(3000), 28, 0))
	assert.False(t, balancer.Strategy("Sprint").IsKnown())
	assert.True(t, balancer.StrategyFrontLoad.IsKnown())
}
