package balancer_test

import (
	"testing"
	"time"

	"github.com/coppermind/milestone-engine/balancer"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushups(current int64, strategy balancer.Strategy) balancer.Milestone {
	return balancer.Milestone{
		ID:           "ms-pushups",
		TargetMetric: "Pushups",
		TargetValue:  dec(3000),
		CurrentValue: dec(current),
		Period:       feb2026(),
		Strategy:     strategy,
	}
}

// =============================================================================
// PREVIEW
// =============================================================================

func TestBuildPreview_FirstDay(t *testing.T) {
	// GIVEN: 3000 pushups over February, nothing done, today is Feb 1
	preview := balancer.BuildPreview(pushups(0, balancer.StrategyEvenDistribution), nil, day("2026-02-01"))

	// THEN: one row per day, every row 108
	require.Len(t, preview, 28)
	assert.Equal(t, "2026-02-01", preview[0].Date.String())
	assert.Equal(t, "2026-02-28", preview[27].Date.String())
	for _, row := range preview {
		assertDecimal(t, 108, row.Target, row.Date.String())
		assertDecimal(t, 0, row.Actual, row.Date.String())
	}
}

func TestBuildPreview_PastDaysShowActuals(t *testing.T) {
	// GIVEN: a 5 day period, two days behind us
	m := balancer.Milestone{
		TargetValue:  dec(50),
		CurrentValue: dec(10),
		Period:       balancer.Period{Start: day("2026-02-01"), End: day("2026-02-05")},
		Strategy:     balancer.StrategyEvenDistribution,
	}
	goals := []balancer.LinkedGoal{
		completedGoal("2026-02-01", metric("Pushups", 6)),
		completedGoal("2026-02-02"), // no metrics, counts as 1
	}

	// WHEN: previewing on Feb 3
	preview := balancer.BuildPreview(m, goals, day("2026-02-03"))
	require.Len(t, preview, 5)

	// THEN: past days carry actuals and no target
	assertDecimal(t, 6, preview[0].Actual)
	assertDecimal(t, 0, preview[0].Target)
	assertDecimal(t, 1, preview[1].Actual)
	assertDecimal(t, 0, preview[1].Target)

	// Counters start at 40 left over 3 days and walk down by the past rows:
	// 40-6-1 = 33 over 3-2 = 1 day
	for _, row := range preview[2:] {
		assertDecimal(t, 33, row.Target, row.Date.String())
		assertDecimal(t, 0, row.Actual, row.Date.String())
	}
}

func TestBuildPreview_IncompleteGoalHasNoActual(t *testing.T) {
	d := day("2026-02-01")
	goals := []balancer.LinkedGoal{{ID: "open", DueDate: &d, Metrics: []balancer.Metric{metric("Pushups", 80)}}}

	preview := balancer.BuildPreview(pushups(0, balancer.StrategyEvenDistribution), goals, day("2026-02-02"))
	assertDecimal(t, 0, preview[0].Actual)
}

func TestBuildPreview_FrontLoadDecays(t *testing.T) {
	preview := balancer.BuildPreview(pushups(0, balancer.StrategyFrontLoad), nil, day("2026-02-01"))
	require.Len(t, preview, 28)

	for i := 1; i < len(preview); i++ {
		assert.True(t, preview[i-1].Target.GreaterThanOrEqual(preview[i].Target),
			"%s=%s then %s=%s", preview[i-1].Date, preview[i-1].Target, preview[i].Date, preview[i].Target)
	}
	assertDecimal(t, 1501, preview[0].Target)
}

func TestBuildPreview_ManualAllZero(t *testing.T) {
	preview := balancer.BuildPreview(pushups(0, balancer.StrategyManual), nil, day("2026-02-10"))
	for _, row := range preview {
		assert.True(t, row.Target.IsZero())
	}
}

func TestBuildPreview_AfterPeriodEnd(t *testing.T) {
	goals := []balancer.LinkedGoal{completedGoal("2026-02-28", metric("Pushups", 100))}
	preview := balancer.BuildPreview(pushups(2900, balancer.StrategyEvenDistribution), goals, day("2026-03-05"))

	require.Len(t, preview, 28)
	for _, row := range preview {
		assert.True(t, row.Target.IsZero(), row.Date.String())
	}
	assertDecimal(t, 100, preview[27].Actual)
}

// =============================================================================
// ENGINE
// =============================================================================

func fixedEngine(at time.Time) *balancer.Engine {
	return &balancer.Engine{Now: func() time.Time { return at }}
}

func TestEngine_Plan_FirstDayScenario(t *testing.T) {
	// GIVEN: 3000 pushups evaluated on Feb 1
	engine := fixedEngine(time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC))

	plan := engine.Plan(pushups(0, balancer.StrategyEvenDistribution), nil, 0)

	assert.Equal(t, "2026-02-01", plan.Today.String())
	assert.Equal(t, 28, plan.RemainingDays)
	assert.Equal(t, 0, plan.ElapsedDays)
	assertDecimal(t, 3000, plan.RemainingTarget)
	assertDecimal(t, 108, plan.DailyTarget)
	assert.Equal(t, balancer.StatusOnTrack, plan.Status)
	assert.Nil(t, plan.EstimatedDone, "no velocity signal")
	assert.False(t, plan.NeedsRebalance)
}

func TestEngine_Plan_MidMonthScenario(t *testing.T) {
	// GIVEN: 1200 done by Feb 15
	engine := fixedEngine(time.Date(2026, time.February, 15, 12, 0, 0, 0, time.UTC))

	plan := engine.Plan(pushups(1200, balancer.StrategyEvenDistribution), nil, 0)

	assert.Equal(t, 14, plan.RemainingDays)
	assert.Equal(t, 14, plan.ElapsedDays)
	assertDecimal(t, 1800, plan.RemainingTarget)
	assertDecimal(t, 129, plan.DailyTarget)
	// expected 1500, 300 short is exactly -10%
	assert.Equal(t, balancer.StatusOnTrack, plan.Status)
	assert.True(t, plan.ProgressPercent.Equal(decimal.NewFromInt(40)))
	require.NotNil(t, plan.EstimatedDone)
	// 1800 at 1200/14 per day -> 21 days
	assert.Equal(t, "2026-03-08", plan.EstimatedDone.String())
	// No goals recorded but 1200 booked: drift of 1200 > 300
	assert.True(t, plan.NeedsRebalance)
}

func TestEngine_Plan_ManualUsesDailyAmount(t *testing.T) {
	engine := fixedEngine(time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC))
	m := pushups(0, balancer.StrategyManual)
	m.DailyAmount = dec(75)

	plan := engine.Plan(m, nil, 0)
	assertDecimal(t, 75, plan.DailyTarget)
	assert.False(t, plan.NeedsRebalance)
}

func TestEngine_Today_UsesOffset(t *testing.T) {
	engine := fixedEngine(time.Date(2026, time.February, 28, 22, 0, 0, 0, time.UTC))

	assert.Equal(t, "2026-02-28", engine.Today(0).String())
	assert.Equal(t, "2026-03-01", engine.Today(180).String())

	// The preview follows the same clock
	preview := engine.Preview(pushups(0, balancer.StrategyEvenDistribution), nil, 180)
	for _, row := range preview {
		assert.True(t, row.Target.IsZero(), "period over in UTC+3")
	}
}

func TestMilestone_ProgressPercentCapped(t *testing.T) {
	m := pushups(4500, balancer.StrategyEvenDistribution)
	assert.True(t, m.ProgressPercent().Equal(decimal.NewFromInt(100)))
	assert.True(t, m.IsComplete())
	assert.True(t, m.RemainingTarget().IsZero())

	m.TargetValue = decimal.Zero
	assert.True(t, m.ProgressPercent().IsZero())
}
