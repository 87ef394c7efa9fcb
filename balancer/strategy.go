/*
strategy.go - Distribution strategies

PURPOSE:
  Given what is left to do and how many days are left, decide how much of it
  falls on a particular remaining day.

STRATEGIES:
  EvenDistribution:
    ceil(R / D) every day. Rounding up means the daily targets never add up
    to less than R; the overshoot is below D.

  FrontLoad:
    Day i of D weighs 2^(D-i-1), so the next day carries about half of the
    weighted mass, the day after a quarter, and so on.
    Target = ceil(R * weight(i) / sum(weights)).

  Manual:
    Always 0. The user-set Milestone.DailyAmount applies instead.

WEIGHT PRECISION:
  2^D outgrows float64 mantissas after ~53 days and int64 after 63. Weights
  are built as exact big integers and the ceiling division is done with an
  exact quotient/remainder, so there is no cap on period length. Cost grows
  linearly with D in bits, which is fine for any calendar period.

SEE ALSO:
  - preview.go: walks a period calling DailyTarget per day
*/
package balancer

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Distributor computes the amount assigned to one remaining day.
// remaining is > 0 and remainingDays > 0 when called through DailyTarget.
type Distributor interface {
	Target(remaining decimal.Decimal, remainingDays, dayIndex int) decimal.Decimal
}

// DistributorFor resolves the Distributor for a strategy. Unknown or empty
// strategies use EvenDistribution.
func DistributorFor(s Strategy) Distributor {
	switch s {
	case StrategyFrontLoad:
		return FrontLoad{}
	case StrategyManual:
		return Manual{}
	default:
		return EvenDistribution{}
	}
}

// DailyTarget returns the target for day dayIndex (0 = earliest remaining
// day) when remainingTarget must be done over remainingDays.
func DailyTarget(s Strategy, remainingTarget decimal.Decimal, remainingDays, dayIndex int) decimal.Decimal {
	if remainingDays <= 0 || !remainingTarget.IsPositive() {
		return decimal.Zero
	}
	return DistributorFor(s).Target(remainingTarget, remainingDays, dayIndex)
}

// =============================================================================
// IMPLEMENTATIONS
// =============================================================================

// EvenDistribution gives every remaining day the same rounded-up share.
type EvenDistribution struct{}

func (EvenDistribution) Target(remaining decimal.Decimal, remainingDays, _ int) decimal.Decimal {
	return ceilDiv(remaining, decimal.NewFromInt(int64(remainingDays)))
}

// FrontLoad halves the share with every day further out.
type FrontLoad struct{}

func (FrontLoad) Target(remaining decimal.Decimal, remainingDays, dayIndex int) decimal.Decimal {
	if dayIndex < 0 || dayIndex >= remainingDays {
		return decimal.Zero
	}
	weight := powerOfTwo(remainingDays - dayIndex - 1)
	// sum of 2^0..2^(D-1)
	total := powerOfTwo(remainingDays).Sub(decimal.NewFromInt(1))
	return ceilDiv(remaining.Mul(weight), total)
}

// Manual never computes anything.
type Manual struct{}

func (Manual) Target(decimal.Decimal, int, int) decimal.Decimal { return decimal.Zero }

// =============================================================================
// HELPERS
// =============================================================================

func powerOfTwo(n int) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), uint(n)), 0)
}

// ceilDiv returns ceil(num / den) for positive den, exactly.
func ceilDiv(num, den decimal.Decimal) decimal.Decimal {
	q, r := num.QuoRem(den, 0)
	if r.IsPositive() {
		q = q.Add(decimal.NewFromInt(1))
	}
	return q
}
