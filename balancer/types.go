/*
Package balancer provides the Milestone Balancer Engine.

PURPOSE:
  A milestone is a period-scoped numeric goal ("3000 pushups by month end").
  The balancer answers how much should be done today given progress so far,
  the time left, and a distribution strategy, plus schedule status,
  completion estimates and a day-by-day preview.

KEY CONCEPTS IN THIS FILE (types.go):
  - Milestone: the goal record (target, progress, period, strategy)
  - LinkedGoal: a day-scoped task whose metrics are ground-truth progress
  - DailyDistribution: one row of the preview table
  - BalancerResult: outcome of a redistribution run

DESIGN PRINCIPLES:
  1. Stateless: every function computes from the values it is handed
  2. Precision: decimal.Decimal throughout, targets are whole units (ceil)
  3. Total: degenerate inputs yield zero results, never errors
  4. No persistence ownership: callers load and write back milestones

SEE ALSO:
  - period.go: date arithmetic
  - strategy.go: distribution strategies
  - preview.go: day-by-day preview
  - trigger.go: redistribution threshold
*/
package balancer

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STRATEGY
// =============================================================================

// Strategy selects how remaining work is spread across remaining days.
type Strategy string

const (
	StrategyEvenDistribution Strategy = "EvenDistribution" // Flat split, rounded up
	StrategyFrontLoad        Strategy = "FrontLoad"        // Exponential decay, early days heavier
	StrategyManual           Strategy = "Manual"           // User-set DailyAmount, never recomputed
)

// Strategies lists the strategies accepted on create/update.
var Strategies = []Strategy{StrategyEvenDistribution, StrategyFrontLoad, StrategyManual}

// IsKnown reports whether s is one of Strategies.
func (s Strategy) IsKnown() bool {
	for _, k := range Strategies {
		if s == k {
			return true
		}
	}
	return false
}

// =============================================================================
// MILESTONE
// =============================================================================

// Milestone is a period-scoped numeric goal.
// The engine only reads it; CurrentValue is written back by the service
// after a redistribution run.
type Milestone struct {
	ID           string
	TargetMetric string // e.g. "Pushups", "LeetCode Problems"
	TargetValue  decimal.Decimal
	CurrentValue decimal.Decimal // may exceed TargetValue
	Period       Period
	Strategy     Strategy

	// Display-only annotations
	Label string
	Unit  string

	// Fixed per-day amount, only meaningful for StrategyManual
	DailyAmount decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RemainingTarget is TargetValue - CurrentValue, never negative.
func (m Milestone) RemainingTarget() decimal.Decimal {
	return clampZero(m.TargetValue.Sub(m.CurrentValue))
}

// ProgressPercent is CurrentValue/TargetValue*100, capped at 100 for display.
func (m Milestone) ProgressPercent() decimal.Decimal {
	if !m.TargetValue.IsPositive() {
		return decimal.Zero
	}
	pct := m.CurrentValue.Div(m.TargetValue).Mul(hundred)
	return decimal.Min(pct, hundred).Round(2)
}

// IsComplete reports whether CurrentValue has reached TargetValue.
func (m Milestone) IsComplete() bool {
	return m.CurrentValue.GreaterThanOrEqual(m.TargetValue)
}

// =============================================================================
// LINKED GOAL - day-scoped task feeding progress into a milestone
// =============================================================================

// Metric is one quantity tracked on a linked goal.
type Metric struct {
	Label   string
	Current decimal.Decimal
	Target  decimal.Decimal
	Unit    string
}

// LinkedGoal is a day-scoped task record attached to a milestone.
type LinkedGoal struct {
	ID          string
	MilestoneID string
	Text        string
	Completed   bool
	DueDate     *Date
	Metrics     []Metric

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsDueOn reports whether the goal has a due date equal to d.
func (g LinkedGoal) IsDueOn(d Date) bool {
	return g.DueDate != nil && g.DueDate.Equal(d)
}

// =============================================================================
// ENGINE OUTPUTS
// =============================================================================

// DailyDistribution is one day of the preview table.
type DailyDistribution struct {
	Date   Date
	Target decimal.Decimal // 0 for past days
	Actual decimal.Decimal // 0 for today and future days
}

// BalancerResult reports a redistribution run.
type BalancerResult struct {
	MilestoneID   string
	DailyRequired decimal.Decimal
	UpdatedGoals  int
	Message       string
}

var hundred = decimal.NewFromInt(100)

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
