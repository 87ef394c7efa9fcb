// Package store provides in-memory balancer.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/coppermind/milestone-engine/balancer"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a balancer.TxStore backed by maps.
type Memory struct {
	mu         sync.RWMutex
	milestones map[string]balancer.Milestone
	goals      map[string]balancer.LinkedGoal
}

func NewMemory() *Memory {
	return &Memory{
		milestones: make(map[string]balancer.Milestone),
		goals:      make(map[string]balancer.LinkedGoal),
	}
}

func (m *Memory) SaveMilestone(_ context.Context, ms balancer.Milestone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveMilestoneLocked(ms)
	return nil
}

func (m *Memory) GetMilestone(_ context.Context, id string) (*balancer.Milestone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getMilestoneLocked(id)
}

func (m *Memory) ListMilestones(_ context.Context, activeOn *balancer.Date) ([]balancer.Milestone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listMilestonesLocked(activeOn), nil
}

func (m *Memory) DeleteMilestone(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteMilestoneLocked(id)
}

func (m *Memory) SaveLinkedGoal(_ context.Context, g balancer.LinkedGoal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLinkedGoalLocked(g)
}

func (m *Memory) GetLinkedGoal(_ context.Context, id string) (*balancer.LinkedGoal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLinkedGoalLocked(id)
}

func (m *Memory) LinkedGoals(_ context.Context, milestoneID string) ([]balancer.LinkedGoal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.linkedGoalsLocked(milestoneID), nil
}

// WithTx executes fn within a transaction.
// For the memory store this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(balancer.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.milestones = make(map[string]balancer.Milestone)
	m.goals = make(map[string]balancer.LinkedGoal)
	return nil
}

// =============================================================================
// LOCKED HELPERS - callers hold mu
// =============================================================================

func (m *Memory) saveMilestoneLocked(ms balancer.Milestone) {
	m.milestones[ms.ID] = ms
}

func (m *Memory) getMilestoneLocked(id string) (*balancer.Milestone, error) {
	ms, ok := m.milestones[id]
	if !ok {
		return nil, balancer.ErrMilestoneNotFound
	}
	return &ms, nil
}

func (m *Memory) listMilestonesLocked(activeOn *balancer.Date) []balancer.Milestone {
	result := make([]balancer.Milestone, 0, len(m.milestones))
	for _, ms := range m.milestones {
		if activeOn != nil && ms.Period.HasEnded(*activeOn) {
			continue
		}
		result = append(result, ms)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Period.Start.Equal(result[j].Period.Start) {
			return result[i].Period.Start.After(result[j].Period.Start)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (m *Memory) deleteMilestoneLocked(id string) error {
	if _, ok := m.milestones[id]; !ok {
		return balancer.ErrMilestoneNotFound
	}
	delete(m.milestones, id)
	for gid, g := range m.goals {
		if g.MilestoneID == id {
			delete(m.goals, gid)
		}
	}
	return nil
}

func (m *Memory) saveLinkedGoalLocked(g balancer.LinkedGoal) error {
	if _, ok := m.milestones[g.MilestoneID]; !ok {
		return balancer.ErrMilestoneNotFound
	}
	m.goals[g.ID] = cloneGoal(g)
	return nil
}

func (m *Memory) getLinkedGoalLocked(id string) (*balancer.LinkedGoal, error) {
	g, ok := m.goals[id]
	if !ok {
		return nil, balancer.ErrGoalNotFound
	}
	c := cloneGoal(g)
	return &c, nil
}

func (m *Memory) linkedGoalsLocked(milestoneID string) []balancer.LinkedGoal {
	var result []balancer.LinkedGoal
	for _, g := range m.goals {
		if g.MilestoneID == milestoneID {
			result = append(result, cloneGoal(g))
		}
	}
	sortGoals(result)
	return result
}

// sortGoals orders by due date, undated goals last, then by ID.
func sortGoals(goals []balancer.LinkedGoal) {
	sort.Slice(goals, func(i, j int) bool {
		a, b := goals[i].DueDate, goals[j].DueDate
		switch {
		case a == nil && b == nil:
			return goals[i].ID < goals[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		}
		return goals[i].ID < goals[j].ID
	})
}

func cloneGoal(g balancer.LinkedGoal) balancer.LinkedGoal {
	if g.DueDate != nil {
		d := *g.DueDate
		g.DueDate = &d
	}
	if g.Metrics != nil {
		g.Metrics = append([]balancer.Metric(nil), g.Metrics...)
	}
	return g
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type memorySnapshot struct {
	milestones map[string]balancer.Milestone
	goals      map[string]balancer.LinkedGoal
}

func (m *Memory) snapshot() memorySnapshot {
	ms := make(map[string]balancer.Milestone, len(m.milestones))
	for k, v := range m.milestones {
		ms[k] = v
	}
	gs := make(map[string]balancer.LinkedGoal, len(m.goals))
	for k, v := range m.goals {
		gs[k] = cloneGoal(v)
	}
	return memorySnapshot{milestones: ms, goals: gs}
}

func (m *Memory) restore(s memorySnapshot) {
	m.milestones = s.milestones
	m.goals = s.goals
}

// txView runs against the parent while WithTx holds its lock.
type txView struct {
	parent *Memory
}

func (tv *txView) SaveMilestone(_ context.Context, ms balancer.Milestone) error {
	tv.parent.saveMilestoneLocked(ms)
	return nil
}

func (tv *txView) GetMilestone(_ context.Context, id string) (*balancer.Milestone, error) {
	return tv.parent.getMilestoneLocked(id)
}

func (tv *txView) ListMilestones(_ context.Context, activeOn *balancer.Date) ([]balancer.Milestone, error) {
	return tv.parent.listMilestonesLocked(activeOn), nil
}

func (tv *txView) DeleteMilestone(_ context.Context, id string) error {
	return tv.parent.deleteMilestoneLocked(id)
}

func (tv *txView) SaveLinkedGoal(_ context.Context, g balancer.LinkedGoal) error {
	return tv.parent.saveLinkedGoalLocked(g)
}

func (tv *txView) GetLinkedGoal(_ context.Context, id string) (*balancer.LinkedGoal, error) {
	return tv.parent.getLinkedGoalLocked(id)
}

func (tv *txView) LinkedGoals(_ context.Context, milestoneID string) ([]balancer.LinkedGoal, error) {
	return tv.parent.linkedGoalsLocked(milestoneID), nil
}
