/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario correctly sets up the expected state:
	- One milestone with the scenario's strategy
	- Completed goals for past days, open goals for upcoming days
	- Recorded progress and targets after the initial run

These tests ensure scenarios work correctly and can be used as integration tests.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/coppermind/milestone-engine/balancer"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (ts *testServer) loadScenario(t *testing.T, id string) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (ts *testServer) onlyMilestone(t *testing.T) balancer.Milestone {
	t.Helper()
	ms, err := ts.store.ListMilestones(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	return ms[0]
}

func (ts *testServer) goals(t *testing.T, milestoneID string) []balancer.LinkedGoal {
	t.Helper()
	goals, err := ts.store.LinkedGoals(context.Background(), milestoneID)
	require.NoError(t, err)
	return goals
}

func TestScenario_MonthlyPushups(t *testing.T) {
	// GIVEN: Mid-February
	// WHEN: Loading the monthly pushups scenario
	// THEN: 14 days of 100 are recorded and the next week is targeted at 115
	ts := newTestServer(t, "2026-02-15")
	ts.loadScenario(t, "monthly-pushups")

	m := ts.onlyMilestone(t)
	assert.Equal(t, balancer.StrategyEvenDistribution, m.Strategy)
	assert.Equal(t, "2026-02-01", m.Period.Start.String())
	assert.Equal(t, "2026-02-28", m.Period.End.String())
	assert.True(t, m.CurrentValue.Equal(decimal.NewFromInt(1400)), m.CurrentValue.String())

	goals := ts.goals(t, m.ID)
	require.Len(t, goals, 21)

	open := 0
	for _, g := range goals {
		if g.Completed {
			continue
		}
		open++
		assert.True(t, g.Metrics[0].Target.Equal(decimal.NewFromInt(115)), "%s: %s", g.DueDate, g.Metrics[0].Target)
	}
	assert.Equal(t, 7, open)
}

func TestScenario_ReadingSprint(t *testing.T) {
	ts := newTestServer(t, "2026-02-15")
	ts.loadScenario(t, "reading-sprint")

	m := ts.onlyMilestone(t)
	assert.Equal(t, balancer.StrategyFrontLoad, m.Strategy)
	assert.Equal(t, 14, m.Period.TotalDays())
	assert.True(t, m.CurrentValue.Equal(decimal.NewFromInt(120)), m.CurrentValue.String())

	// Open goals are front-loaded: targets never increase day over day
	goals := ts.goals(t, m.ID)
	require.Len(t, goals, 14)

	var prev *balancer.LinkedGoal
	for i := range goals {
		g := goals[i]
		if g.Completed {
			continue
		}
		if prev != nil {
			assert.True(t, g.Metrics[0].Target.LessThanOrEqual(prev.Metrics[0].Target),
				"%s target %s after %s", g.DueDate, g.Metrics[0].Target, prev.Metrics[0].Target)
		}
		prev = &g
	}
	require.NotNil(t, prev)
}

func TestScenario_ManualLeetCode(t *testing.T) {
	ts := newTestServer(t, "2026-02-15")
	ts.loadScenario(t, "manual-leetcode")

	m := ts.onlyMilestone(t)
	assert.Equal(t, balancer.StrategyManual, m.Strategy)

	// Every other past day has a metric-less completed goal
	goals := ts.goals(t, m.ID)
	require.Len(t, goals, 7)
	for _, g := range goals {
		assert.True(t, g.Completed)
		assert.Empty(t, g.Metrics)
	}

	plan := decode[PlanDTO](t, ts.do(t, http.MethodGet, "/api/milestones/"+m.ID+"/plan", nil))
	assert.Equal(t, 2.0, plan.DailyTarget)
	assert.Equal(t, 7.0, plan.ObservedValue)
	assert.False(t, plan.NeedsRedistribution, "manual milestones never trigger")
}

func TestScenario_BehindSchedule(t *testing.T) {
	// GIVEN: The behind-schedule scenario on Feb 15
	ts := newTestServer(t, "2026-02-15")
	ts.loadScenario(t, "behind-schedule")

	m := ts.onlyMilestone(t)
	assert.True(t, m.CurrentValue.IsZero())

	// THEN: 600 observed against 0 recorded exceeds 10% of 3000
	plan := decode[PlanDTO](t, ts.do(t, http.MethodGet, "/api/milestones/"+m.ID+"/plan", nil))
	assert.Equal(t, 600.0, plan.ObservedValue)
	assert.True(t, plan.NeedsRedistribution)

	// WHEN: The scheduled sweep runs
	results, err := ts.handler.Service.RunDue(context.Background(), 0)
	require.NoError(t, err)

	// THEN: The milestone is redistributed and no longer drifted
	require.Len(t, results, 1)
	assert.Equal(t, m.ID, results[0].MilestoneID)
	assert.Equal(t, 5, results[0].UpdatedGoals)

	plan = decode[PlanDTO](t, ts.do(t, http.MethodGet, "/api/milestones/"+m.ID+"/plan", nil))
	assert.False(t, plan.NeedsRedistribution)
}

func TestScenario_FirstDayOfMonth(t *testing.T) {
	// Every scenario loads with no past days in the period
	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			ts := newTestServer(t, "2026-03-01")
			ts.loadScenario(t, s.ID)
			assert.Equal(t, balancer.Strategy(s.Strategy), ts.onlyMilestone(t).Strategy)
		})
	}
}

func TestScenario_LoadReplacesPreviousData(t *testing.T) {
	ts := newTestServer(t, "2026-02-15")
	ts.createPushups(t, "")

	ts.loadScenario(t, "monthly-pushups")
	ts.loadScenario(t, "manual-leetcode")

	m := ts.onlyMilestone(t)
	assert.Equal(t, "LeetCode Problems", m.TargetMetric)

	current := decode[*ScenarioDTO](t, ts.do(t, http.MethodGet, "/api/scenarios/current", nil))
	require.NotNil(t, current)
	assert.Equal(t, "manual-leetcode", current.ID)
}

func TestScenario_ListUnknownAndReset(t *testing.T) {
	ts := newTestServer(t, "2026-02-15")

	list := decode[[]ScenarioDTO](t, ts.do(t, http.MethodGet, "/api/scenarios", nil))
	assert.Len(t, list, len(scenarios))

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unknown scenario", decode[ErrorResponse](t, rec).Error)

	ts.loadScenario(t, "reading-sprint")
	rec = ts.do(t, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	ms := decode[[]MilestoneDTO](t, ts.do(t, http.MethodGet, "/api/milestones", nil))
	assert.Empty(t, ms)

	current := decode[*ScenarioDTO](t, ts.do(t, http.MethodGet, "/api/scenarios/current", nil))
	assert.Nil(t, current)
}
