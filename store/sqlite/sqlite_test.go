package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/coppermind/milestone-engine/balancer"
	"github.com/coppermind/milestone-engine/store/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func februaryPushups(id string) balancer.Milestone {
	return balancer.Milestone{
		ID:           id,
		TargetMetric: "Pushups",
		TargetValue:  decimal.NewFromInt(3000),
		CurrentValue: decimal.RequireFromString("120.5"),
		Period:       balancer.Period{Start: balancer.MustParseDate("2026-02-01"), End: balancer.MustParseDate("2026-02-28")},
		Strategy:     balancer.StrategyFrontLoad,
		Label:        "Feb pushups",
		Unit:         "reps",
	}
}

func dueOn(s string) *balancer.Date {
	d := balancer.MustParseDate(s)
	return &d
}

// =============================================================================
// MILESTONE TESTS
// =============================================================================

func TestStore_MilestoneRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveMilestone(ctx, februaryPushups("ms-1")))

	got, err := store.GetMilestone(ctx, "ms-1")
	require.NoError(t, err)
	assert.Equal(t, "Pushups", got.TargetMetric)
	assert.True(t, got.TargetValue.Equal(decimal.NewFromInt(3000)))
	assert.True(t, got.CurrentValue.Equal(decimal.RequireFromString("120.5")), "decimals survive as text")
	assert.Equal(t, "2026-02-01", got.Period.Start.String())
	assert.Equal(t, "2026-02-28", got.Period.End.String())
	assert.Equal(t, balancer.StrategyFrontLoad, got.Strategy)
	assert.Equal(t, "reps", got.Unit)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestStore_SaveMilestone_Upserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := februaryPushups("ms-1")
	require.NoError(t, store.SaveMilestone(ctx, m))

	m.CurrentValue = decimal.NewFromInt(900)
	m.Label = ""
	require.NoError(t, store.SaveMilestone(ctx, m))

	got, err := store.GetMilestone(ctx, "ms-1")
	require.NoError(t, err)
	assert.True(t, got.CurrentValue.Equal(decimal.NewFromInt(900)))
	assert.Empty(t, got.Label)

	all, err := store.ListMilestones(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_GetMilestone_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetMilestone(context.Background(), "missing")
	assert.ErrorIs(t, err, balancer.ErrMilestoneNotFound)
	assert.True(t, balancer.IsNotFound(err))
}

func TestStore_ListMilestones_ActiveOn(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	jan := februaryPushups("jan")
	jan.Period = balancer.Period{Start: balancer.MustParseDate("2026-01-01"), End: balancer.MustParseDate("2026-01-31")}
	require.NoError(t, store.SaveMilestone(ctx, jan))
	require.NoError(t, store.SaveMilestone(ctx, februaryPushups("feb")))

	all, err := store.ListMilestones(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "feb", all[0].ID)

	active, err := store.ListMilestones(ctx, dueOn("2026-02-01"))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "feb", active[0].ID)

	// Last day of the period still counts as active
	active, err = store.ListMilestones(ctx, dueOn("2026-01-31"))
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

// =============================================================================
// LINKED GOAL TESTS
// =============================================================================

func TestStore_LinkedGoals_RoundTripAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveMilestone(ctx, februaryPushups("ms-1")))

	goals := []balancer.LinkedGoal{
		{ID: "undated", MilestoneID: "ms-1", Text: "stretch"},
		{ID: "feb-03", MilestoneID: "ms-1", Text: "set", DueDate: dueOn("2026-02-03"), Completed: true,
			Metrics: []balancer.Metric{{Label: "Pushups", Current: decimal.NewFromInt(110), Target: decimal.NewFromInt(108), Unit: "reps"}}},
		{ID: "feb-02", MilestoneID: "ms-1", Text: "set", DueDate: dueOn("2026-02-02")},
	}
	for _, g := range goals {
		require.NoError(t, store.SaveLinkedGoal(ctx, g))
	}

	got, err := store.LinkedGoals(ctx, "ms-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "feb-02", got[0].ID)
	assert.Equal(t, "feb-03", got[1].ID)
	assert.Equal(t, "undated", got[2].ID)

	assert.Nil(t, got[2].DueDate)
	assert.True(t, got[1].Completed)
	require.Len(t, got[1].Metrics, 1)
	assert.Equal(t, "Pushups", got[1].Metrics[0].Label)
	assert.True(t, got[1].Metrics[0].Current.Equal(decimal.NewFromInt(110)))
	assert.True(t, got[1].Metrics[0].Target.Equal(decimal.NewFromInt(108)))
}

func TestStore_SaveLinkedGoal_UnknownMilestone(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveLinkedGoal(context.Background(), balancer.LinkedGoal{ID: "g", MilestoneID: "nope"})
	assert.ErrorIs(t, err, balancer.ErrMilestoneNotFound)
}

func TestStore_DeleteMilestone_CascadesGoals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveMilestone(ctx, februaryPushups("ms-1")))
	require.NoError(t, store.SaveLinkedGoal(ctx, balancer.LinkedGoal{ID: "g", MilestoneID: "ms-1"}))

	require.NoError(t, store.DeleteMilestone(ctx, "ms-1"))

	_, err := store.GetLinkedGoal(ctx, "g")
	assert.ErrorIs(t, err, balancer.ErrGoalNotFound)
	assert.ErrorIs(t, store.DeleteMilestone(ctx, "ms-1"), balancer.ErrMilestoneNotFound)
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestStore_WithTx_RollsBack(t *testing.T) {
	// GIVEN: a stored milestone
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveMilestone(ctx, februaryPushups("ms-1")))

	// WHEN: a transaction writes, reads its own write, then fails
	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx balancer.Store) error {
		m, err := tx.GetMilestone(ctx, "ms-1")
		if err != nil {
			return err
		}
		m.CurrentValue = decimal.NewFromInt(2000)
		if err := tx.SaveMilestone(ctx, *m); err != nil {
			return err
		}

		reread, err := tx.GetMilestone(ctx, "ms-1")
		if err != nil {
			return err
		}
		if !reread.CurrentValue.Equal(decimal.NewFromInt(2000)) {
			return errors.New("write not visible inside transaction")
		}
		return boom
	})

	// THEN: the write is gone
	assert.ErrorIs(t, err, boom)
	got, err := store.GetMilestone(ctx, "ms-1")
	require.NoError(t, err)
	assert.True(t, got.CurrentValue.Equal(decimal.RequireFromString("120.5")))
}

func TestStore_WithTx_Commits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveMilestone(ctx, februaryPushups("ms-1")))

	err := store.WithTx(ctx, func(tx balancer.Store) error {
		if err := tx.SaveLinkedGoal(ctx, balancer.LinkedGoal{ID: "g", MilestoneID: "ms-1", DueDate: dueOn("2026-02-04")}); err != nil {
			return err
		}
		goals, err := tx.LinkedGoals(ctx, "ms-1")
		if err != nil {
			return err
		}
		if len(goals) != 1 {
			return errors.New("goal not visible inside transaction")
		}
		return nil
	})
	require.NoError(t, err)

	g, err := store.GetLinkedGoal(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-04", g.DueDate.String())
}
