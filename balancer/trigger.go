package balancer

import "github.com/shopspring/decimal"

// DefaultRedistributionThreshold is the drift, as a fraction of the target,
// tolerated between recorded and observed progress.
var DefaultRedistributionThreshold = decimal.RequireFromString("0.1")

// Trigger decides when a milestone's recorded progress has drifted far
// enough from its linked goals to warrant a redistribution run.
type Trigger struct {
	// Threshold as a fraction of TargetValue. Zero means the default.
	Threshold decimal.Decimal
}

// NeedsRedistribution reports |observed - CurrentValue| > TargetValue * Threshold.
// Manual milestones are never redistributed.
func (t Trigger) NeedsRedistribution(m Milestone, goals []LinkedGoal) bool {
	if m.Strategy == StrategyManual {
		return false
	}
	threshold := t.Threshold
	if threshold.IsZero() {
		threshold = DefaultRedistributionThreshold
	}

	actual := AggregateCompleted(goals, "")
	drift := actual.Sub(m.CurrentValue).Abs()
	return drift.GreaterThan(m.TargetValue.Mul(threshold))
}

// NeedsRedistribution uses the default threshold.
func NeedsRedistribution(m Milestone, goals []LinkedGoal) bool {
	return Trigger{}.NeedsRedistribution(m, goals)
}
