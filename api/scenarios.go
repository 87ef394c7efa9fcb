/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	milestones and linked goals. Every scenario is laid out relative to
	"today" so the preview always has past days, a today, and future days.

AVAILABLE SCENARIOS:

	monthly-pushups:  3000 pushups this month, even split, on pace
	reading-sprint:   14-day front-loaded reading sprint
	manual-leetcode:  Fixed 2 problems per day, goals without metrics
	behind-schedule:  Progress logged on goals but never balanced

HOW SCENARIOS WORK:
 1. Reset the store (when the handler has a Resetter)
 2. Create the milestone through milestone.Service
 3. Link completed goals for past days, open goals for upcoming days
 4. Optionally run the balancer once

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "reading-sprint"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Milestone and balancer endpoints
  - milestone/service.go: Create, AddGoal, Run
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coppermind/milestone-engine/balancer"
	"github.com/coppermind/milestone-engine/milestone"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "monthly-pushups",
		Name:        "Monthly Pushups",
		Description: "3000 pushups this month, 100 logged every day so far",
		Strategy:    string(balancer.StrategyEvenDistribution),
	},
	{
		ID:          "reading-sprint",
		Name:        "Reading Sprint",
		Description: "420 pages over two weeks, heavier days up front",
		Strategy:    string(balancer.StrategyFrontLoad),
	},
	{
		ID:          "manual-leetcode",
		Name:        "Manual LeetCode",
		Description: "60 problems this month at a fixed 2 per day",
		Strategy:    string(balancer.StrategyManual),
	},
	{
		ID:          "behind-schedule",
		Name:        "Behind Schedule",
		Description: "Squats logged on goals but the milestone was never rebalanced",
		Strategy:    string(balancer.StrategyEvenDistribution),
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var loader func(context.Context, balancer.Date) error
	switch req.ScenarioID {
	case "monthly-pushups":
		loader = h.loadMonthlyPushupsScenario
	case "reading-sprint":
		loader = h.loadReadingSprintScenario
	case "manual-leetcode":
		loader = h.loadManualLeetCodeScenario
	case "behind-schedule":
		loader = h.loadBehindScheduleScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", req.ScenarioID)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}

	today := h.Service.Engine().Today(h.TimezoneOffset)
	if err := loader(ctx, today); err != nil {
		h.Logger.Error("scenario load failed", zap.String("scenario", req.ScenarioID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.Logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID), zap.Stringer("today", today))

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetStore clears all data.
func (h *Handler) ResetStore(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// reset is called with h.mu held.
func (h *Handler) reset(ctx context.Context) error {
	h.currentScenario = ""
	if h.resetter == nil {
		return nil
	}
	return h.resetter.Reset(ctx)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadMonthlyPushupsScenario(ctx context.Context, today balancer.Date) error {
	period := balancer.MonthPeriod(today)
	m, err := h.createScenarioMilestone(ctx, milestone.CreateInput{
		TargetMetric: "Pushups",
		TargetValue:  decimal.NewFromInt(3000),
		Strategy:     balancer.StrategyEvenDistribution,
		Label:        "Monthly pushups",
		Unit:         "reps",
	}, period)
	if err != nil {
		return err
	}

	for d := range period.Dates() {
		switch {
		case d.Before(today):
			err = h.addScenarioGoal(ctx, m.ID, d, true, "Pushups", 100)
		case d.Before(today.AddDays(7)):
			err = h.addScenarioGoal(ctx, m.ID, d, false, "Pushups", 0)
		}
		if err != nil {
			return err
		}
	}

	_, err = h.Service.Run(ctx, m.ID, h.TimezoneOffset)
	return err
}

func (h *Handler) loadReadingSprintScenario(ctx context.Context, today balancer.Date) error {
	period := balancer.Period{Start: today.AddDays(-3), End: today.AddDays(10)}
	m, err := h.createScenarioMilestone(ctx, milestone.CreateInput{
		TargetMetric: "Pages",
		TargetValue:  decimal.NewFromInt(420),
		Strategy:     balancer.StrategyFrontLoad,
		Label:        "Two-week reading sprint",
		Unit:         "pages",
	}, period)
	if err != nil {
		return err
	}

	for d := range period.Dates() {
		if d.Before(today) {
			err = h.addScenarioGoal(ctx, m.ID, d, true, "Pages", 40)
		} else {
			err = h.addScenarioGoal(ctx, m.ID, d, false, "Pages", 0)
		}
		if err != nil {
			return err
		}
	}

	_, err = h.Service.Run(ctx, m.ID, h.TimezoneOffset)
	return err
}

func (h *Handler) loadManualLeetCodeScenario(ctx context.Context, today balancer.Date) error {
	period := balancer.MonthPeriod(today)
	m, err := h.createScenarioMilestone(ctx, milestone.CreateInput{
		TargetMetric: "LeetCode Problems",
		TargetValue:  decimal.NewFromInt(60),
		Strategy:     balancer.StrategyManual,
		Label:        "Interview prep",
		DailyAmount:  decimal.NewFromInt(2),
	}, period)
	if err != nil {
		return err
	}

	// Goals without metrics: each completed one counts as a single problem.
	i := 0
	for d := range period.Dates() {
		if !d.Before(today) {
			break
		}
		if i%2 == 0 {
			if _, err := h.Service.AddGoal(ctx, m.ID, milestone.GoalInput{
				Text:      "Solve a problem",
				DueDate:   d.String(),
				Completed: true,
			}); err != nil {
				return err
			}
		}
		i++
	}
	return nil
}

func (h *Handler) loadBehindScheduleScenario(ctx context.Context, today balancer.Date) error {
	period := balancer.MonthPeriod(today)
	m, err := h.createScenarioMilestone(ctx, milestone.CreateInput{
		TargetMetric: "Squats",
		TargetValue:  decimal.NewFromInt(3000),
		Strategy:     balancer.StrategyEvenDistribution,
		Label:        "Leg month",
		Unit:         "reps",
	}, period)
	if err != nil {
		return err
	}

	// Large sessions logged early, CurrentValue still 0: the trigger fires.
	for d := range period.Dates() {
		if !d.Before(today) || d.After(period.Start.AddDays(2)) {
			break
		}
		if err := h.addScenarioGoal(ctx, m.ID, d, true, "Squats", 200); err != nil {
			return err
		}
	}
	for i := 0; i < 5; i++ {
		d := today.AddDays(i)
		if d.After(period.End) {
			break
		}
		if err := h.addScenarioGoal(ctx, m.ID, d, false, "Squats", 0); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) createScenarioMilestone(ctx context.Context, in milestone.CreateInput, period balancer.Period) (*balancer.Milestone, error) {
	in.PeriodStart = period.Start.String()
	in.PeriodEnd = period.End.String()
	return h.Service.Create(ctx, in)
}

func (h *Handler) addScenarioGoal(ctx context.Context, milestoneID string, due balancer.Date, completed bool, metric string, current int64) error {
	in := milestone.GoalInput{
		Text:      fmt.Sprintf("%s for %s", metric, due),
		DueDate:   due.String(),
		Completed: completed,
		Metrics: []balancer.Metric{{
			Label:   metric,
			Current: decimal.NewFromInt(current),
		}},
	}
	_, err := h.Service.AddGoal(ctx, milestoneID, in)
	return err
}
