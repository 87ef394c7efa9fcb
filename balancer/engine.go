/*
engine.go - Clock-bound entry point composing the pure functions

PURPOSE:
  The functions in this package take "today" explicitly. Engine binds a
  clock and a timezone offset so callers can ask about the live date, and
  composes the pieces into a single Plan for a milestone.

PLAN vs RUN:
  Plan answers "where does this milestone stand today?" without writing
  anything. Writing CurrentValue back and re-targeting linked goals is the
  milestone service's job.

EXAMPLE:
  engine := balancer.NewEngine()
  plan := engine.Plan(milestone, goals, -330)
  fmt.Println(plan.DailyTarget, plan.Status)
*/
package balancer

import (
	"time"

	"github.com/shopspring/decimal"
)

// Engine evaluates milestones against the current date.
type Engine struct {
	// Now returns the current instant. Defaults to time.Now.
	Now func() time.Time

	// Trigger decides when drift warrants redistribution.
	Trigger Trigger
}

// NewEngine returns an Engine on the wall clock with the default threshold.
func NewEngine() *Engine {
	return &Engine{Now: time.Now}
}

// Today returns the calendar day at offsetMinutes from UTC.
func (e *Engine) Today(offsetMinutes int) Date {
	now := time.Now
	if e != nil && e.Now != nil {
		now = e.Now
	}
	return TodayAt(now(), offsetMinutes)
}

// Plan is a read-only snapshot of a milestone as of Today.
type Plan struct {
	Today           Date
	RemainingTarget decimal.Decimal
	RemainingDays   int
	ElapsedDays     int
	DailyTarget     decimal.Decimal
	Status          ScheduleStatus
	Velocity        decimal.Decimal
	EstimatedDone   *Date
	ProgressPercent decimal.Decimal
	ObservedValue   decimal.Decimal
	NeedsRebalance  bool
}

// Plan evaluates m against its linked goals today.
func (e *Engine) Plan(m Milestone, goals []LinkedGoal, offsetMinutes int) Plan {
	today := e.Today(offsetMinutes)
	return e.PlanAt(m, goals, today)
}

// PlanAt evaluates m against its linked goals on the given day.
func (e *Engine) PlanAt(m Milestone, goals []LinkedGoal, today Date) Plan {
	remaining := m.RemainingTarget()
	remainingDays := m.Period.RemainingDays(today)
	elapsed := m.Period.ElapsedDays(today)

	daily := DailyTarget(m.Strategy, remaining, remainingDays, 0)
	if m.Strategy == StrategyManual {
		daily = m.DailyAmount
	}

	plan := Plan{
		Today:           today,
		RemainingTarget: remaining,
		RemainingDays:   remainingDays,
		ElapsedDays:     elapsed,
		DailyTarget:     daily,
		Status:          ClassifySchedule(m.CurrentValue, m.TargetValue, m.Period, today),
		Velocity:        Velocity(m.CurrentValue, elapsed),
		ProgressPercent: m.ProgressPercent(),
		ObservedValue:   AggregateCompleted(goals, ""),
		NeedsRebalance:  e.trigger().NeedsRedistribution(m, goals),
	}
	if done, ok := EstimateCompletionDate(m.CurrentValue, m.TargetValue, m.Period.Start, today); ok {
		plan.EstimatedDone = &done
	}
	return plan
}

// Preview builds the day-by-day table for m as of Today.
func (e *Engine) Preview(m Milestone, goals []LinkedGoal, offsetMinutes int) []DailyDistribution {
	return BuildPreview(m, goals, e.Today(offsetMinutes))
}

func (e *Engine) trigger() Trigger {
	if e == nil {
		return Trigger{}
	}
	return e.Trigger
}
