/*
Package milestone is the application service around the balancer engine.

PURPOSE:
  The balancer package is pure: it reads a milestone and its linked goals
  and computes. This package owns everything around that: validating and
  storing milestones, loading a consistent snapshot, running the engine,
  and writing CurrentValue and re-targeted goals back in one transaction.

RUN FLOW (Service.Run):
  1. Lock the milestone (one run per milestone at a time)
  2. Load milestone + linked goals inside WithTx
  3. Manual strategy -> no-op result
  4. CurrentValue = aggregated progress from completed goals
  5. Nothing left -> "already complete" result
  6. Period over -> ErrPeriodEnded (transaction rolled back)
  7. Every open goal due today..period end gets its first metric's
     target set to that day's share
  8. Commit, report count and today's required amount

CONCURRENCY:
  Runs against the same milestone are serialized with a per-ID mutex.
  Runs against different milestones proceed in parallel; isolation between
  them is the store's job.

SEE ALSO:
  - balancer/engine.go: Plan composition
  - balancer/trigger.go: drift threshold used by RunDue
  - api/scheduler.go: periodic RunDue
*/
package milestone

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coppermind/milestone-engine/balancer"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Result messages, surfaced to the UI as-is.
const (
	MessageManual   = "Manual strategy - no auto-redistribution"
	MessageComplete = "Milestone already complete!"
)

// Service manages milestones and runs redistribution.
type Service struct {
	store    balancer.TxStore
	engine   *balancer.Engine
	logger   *zap.Logger
	observer Observer
	newID    func() string

	locks keyedMutex
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEngine sets the engine (clock and trigger threshold).
func WithEngine(e *balancer.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithIDGenerator overrides uuid generation. Used by demo scenarios and tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService creates a service over store.
func NewService(store balancer.TxStore, opts ...Option) *Service {
	s := &Service{
		store:    store,
		engine:   balancer.NewEngine(),
		logger:   zap.NewNop(),
		observer: nopObserver{},
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the engine the service evaluates with.
func (s *Service) Engine() *balancer.Engine {
	return s.engine
}

func (s *Service) now() time.Time {
	if s.engine.Now != nil {
		return s.engine.Now().UTC()
	}
	return time.Now().UTC()
}

// =============================================================================
// MILESTONE CRUD
// =============================================================================

// CreateInput holds the fields of a new milestone.
type CreateInput struct {
	TargetMetric string
	TargetValue  decimal.Decimal
	PeriodStart  string
	PeriodEnd    string
	Strategy     balancer.Strategy // empty means EvenDistribution
	Label        string
	Unit         string
	DailyAmount  decimal.Decimal
}

// Create validates in and stores a new milestone with no progress.
func (s *Service) Create(ctx context.Context, in CreateInput) (*balancer.Milestone, error) {
	metric := strings.TrimSpace(in.TargetMetric)
	if metric == "" {
		return nil, fmt.Errorf("%w: target_metric is required", balancer.ErrInvalidInput)
	}
	if err := validateTarget(in.TargetValue); err != nil {
		return nil, err
	}
	strategy := in.Strategy
	if strategy == "" {
		strategy = balancer.StrategyEvenDistribution
	}
	if err := validateStrategy(strategy); err != nil {
		return nil, err
	}
	if err := validateDailyAmount(in.DailyAmount); err != nil {
		return nil, err
	}
	period, err := balancer.ParsePeriod(in.PeriodStart, in.PeriodEnd)
	if err != nil {
		return nil, err
	}

	now := s.now()
	m := balancer.Milestone{
		ID:           s.newID(),
		TargetMetric: metric,
		TargetValue:  in.TargetValue,
		CurrentValue: decimal.Zero,
		Period:       period,
		Strategy:     strategy,
		Label:        strings.TrimSpace(in.Label),
		Unit:         strings.TrimSpace(in.Unit),
		DailyAmount:  in.DailyAmount,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.SaveMilestone(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("milestone created",
		zap.String("milestone_id", m.ID),
		zap.String("metric", m.TargetMetric),
		zap.String("target", m.TargetValue.String()),
		zap.Stringer("period", m.Period),
		zap.String("strategy", string(m.Strategy)),
	)
	return &m, nil
}

// Get returns a milestone by ID.
func (s *Service) Get(ctx context.Context, id string) (*balancer.Milestone, error) {
	return s.store.GetMilestone(ctx, id)
}

// List returns milestones, newest first. With activeOnly set, only those
// whose period hasn't ended as of today at tzOffset.
func (s *Service) List(ctx context.Context, activeOnly bool, tzOffset int) ([]balancer.Milestone, error) {
	if !activeOnly {
		return s.store.ListMilestones(ctx, nil)
	}
	today := s.engine.Today(tzOffset)
	return s.store.ListMilestones(ctx, &today)
}

// UpdateInput holds optional milestone edits. Nil fields are unchanged.
type UpdateInput struct {
	TargetMetric *string
	TargetValue  *decimal.Decimal
	CurrentValue *decimal.Decimal
	Strategy     *balancer.Strategy
	Label        *string
	Unit         *string
	DailyAmount  *decimal.Decimal
}

// Update applies in to the milestone with the given ID.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*balancer.Milestone, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	m, err := s.store.GetMilestone(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.TargetMetric != nil {
		metric := strings.TrimSpace(*in.TargetMetric)
		if metric == "" {
			return nil, fmt.Errorf("%w: target_metric is required", balancer.ErrInvalidInput)
		}
		m.TargetMetric = metric
	}
	if in.TargetValue != nil {
		if err := validateTarget(*in.TargetValue); err != nil {
			return nil, err
		}
		m.TargetValue = *in.TargetValue
	}
	if in.CurrentValue != nil {
		if in.CurrentValue.IsNegative() {
			return nil, fmt.Errorf("%w: current_value must not be negative", balancer.ErrInvalidInput)
		}
		m.CurrentValue = *in.CurrentValue
	}
	if in.Strategy != nil {
		if err := validateStrategy(*in.Strategy); err != nil {
			return nil, err
		}
		m.Strategy = *in.Strategy
	}
	if in.Label != nil {
		m.Label = strings.TrimSpace(*in.Label)
	}
	if in.Unit != nil {
		m.Unit = strings.TrimSpace(*in.Unit)
	}
	if in.DailyAmount != nil {
		if err := validateDailyAmount(*in.DailyAmount); err != nil {
			return nil, err
		}
		m.DailyAmount = *in.DailyAmount
	}
	m.UpdatedAt = s.now()

	if err := s.store.SaveMilestone(ctx, *m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a milestone and its linked goals.
func (s *Service) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.store.DeleteMilestone(ctx, id); err != nil {
		return err
	}
	s.logger.Info("milestone deleted", zap.String("milestone_id", id))
	return nil
}

func validateTarget(v decimal.Decimal) error {
	if !v.IsPositive() {
		return fmt.Errorf("%w: target_value must be positive", balancer.ErrInvalidInput)
	}
	return nil
}

func validateStrategy(st balancer.Strategy) error {
	if !st.IsKnown() {
		return fmt.Errorf("%w: unknown strategy %q", balancer.ErrInvalidInput, st)
	}
	return nil
}

func validateDailyAmount(v decimal.Decimal) error {
	if v.IsNegative() {
		return fmt.Errorf("%w: daily_amount must not be negative", balancer.ErrInvalidInput)
	}
	return nil
}

// =============================================================================
// LINKED GOALS
// =============================================================================

// GoalInput holds the fields of a new linked goal.
type GoalInput struct {
	Text      string
	DueDate   string // optional, YYYY-MM-DD
	Completed bool
	Metrics   []balancer.Metric
}

// GoalUpdate holds optional linked goal edits. Nil fields are unchanged.
type GoalUpdate struct {
	Text      *string
	DueDate   *string // empty string clears the due date
	Completed *bool
	Metrics   []balancer.Metric // nil leaves metrics unchanged
}

// AddGoal links a new goal to a milestone.
func (s *Service) AddGoal(ctx context.Context, milestoneID string, in GoalInput) (*balancer.LinkedGoal, error) {
	if _, err := s.store.GetMilestone(ctx, milestoneID); err != nil {
		return nil, err
	}
	due, err := parseDueDate(in.DueDate)
	if err != nil {
		return nil, err
	}
	if err := validateMetrics(in.Metrics); err != nil {
		return nil, err
	}

	now := s.now()
	g := balancer.LinkedGoal{
		ID:          s.newID(),
		MilestoneID: milestoneID,
		Text:        strings.TrimSpace(in.Text),
		Completed:   in.Completed,
		DueDate:     due,
		Metrics:     in.Metrics,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SaveLinkedGoal(ctx, g); err != nil {
		return nil, err
	}
	return &g, nil
}

// UpdateGoal applies in to a linked goal.
func (s *Service) UpdateGoal(ctx context.Context, goalID string, in GoalUpdate) (*balancer.LinkedGoal, error) {
	g, err := s.store.GetLinkedGoal(ctx, goalID)
	if err != nil {
		return nil, err
	}

	if in.Text != nil {
		g.Text = strings.TrimSpace(*in.Text)
	}
	if in.DueDate != nil {
		due, err := parseDueDate(*in.DueDate)
		if err != nil {
			return nil, err
		}
		g.DueDate = due
	}
	if in.Completed != nil {
		g.Completed = *in.Completed
	}
	if in.Metrics != nil {
		if err := validateMetrics(in.Metrics); err != nil {
			return nil, err
		}
		g.Metrics = in.Metrics
	}
	g.UpdatedAt = s.now()

	if err := s.store.SaveLinkedGoal(ctx, *g); err != nil {
		return nil, err
	}
	return g, nil
}

// Goals returns a milestone's linked goals ordered by due date.
func (s *Service) Goals(ctx context.Context, milestoneID string) ([]balancer.LinkedGoal, error) {
	if _, err := s.store.GetMilestone(ctx, milestoneID); err != nil {
		return nil, err
	}
	return s.store.LinkedGoals(ctx, milestoneID)
}

func parseDueDate(s string) (*balancer.Date, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := balancer.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func validateMetrics(metrics []balancer.Metric) error {
	for i, m := range metrics {
		if strings.TrimSpace(m.Label) == "" {
			return fmt.Errorf("%w: metric %d has no label", balancer.ErrInvalidInput, i)
		}
		if m.Current.IsNegative() || m.Target.IsNegative() {
			return fmt.Errorf("%w: metric %q must not be negative", balancer.ErrInvalidInput, m.Label)
		}
	}
	return nil
}

// =============================================================================
// ENGINE QUERIES
// =============================================================================

// Preview returns the day-by-day distribution for a milestone.
func (s *Service) Preview(ctx context.Context, id string, tzOffset int) ([]balancer.DailyDistribution, error) {
	m, goals, err := s.load(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	return s.engine.Preview(*m, goals, tzOffset), nil
}

// Plan returns today's snapshot for a milestone.
func (s *Service) Plan(ctx context.Context, id string, tzOffset int) (balancer.Plan, error) {
	m, goals, err := s.load(ctx, s.store, id)
	if err != nil {
		return balancer.Plan{}, err
	}
	return s.engine.Plan(*m, goals, tzOffset), nil
}

func (s *Service) load(ctx context.Context, st balancer.Store, id string) (*balancer.Milestone, []balancer.LinkedGoal, error) {
	m, err := st.GetMilestone(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	goals, err := st.LinkedGoals(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load linked goals for %s: %w", id, err)
	}
	return m, goals, nil
}

// =============================================================================
// REDISTRIBUTION
// =============================================================================

// Run recomputes progress for a milestone and re-targets its open goals.
func (s *Service) Run(ctx context.Context, id string, tzOffset int) (*balancer.BalancerResult, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	start := time.Now()
	today := s.engine.Today(tzOffset)

	var (
		result   *balancer.BalancerResult
		strategy balancer.Strategy
	)
	err := s.store.WithTx(ctx, func(tx balancer.Store) error {
		m, goals, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		strategy = m.Strategy

		result, err = s.redistribute(ctx, tx, m, goals, today)
		return err
	})
	updated := 0
	if result != nil {
		updated = result.UpdatedGoals
	}
	s.observer.RecordRun(string(strategy), time.Since(start), updated, err)

	if err != nil {
		s.logger.Warn("redistribution failed", zap.String("milestone_id", id), zap.Error(err))
		return nil, err
	}
	return result, nil
}

// redistribute runs inside the caller's transaction.
func (s *Service) redistribute(ctx context.Context, tx balancer.Store, m *balancer.Milestone, goals []balancer.LinkedGoal, today balancer.Date) (*balancer.BalancerResult, error) {
	if m.Strategy == balancer.StrategyManual {
		return &balancer.BalancerResult{MilestoneID: m.ID, DailyRequired: decimal.Zero, Message: MessageManual}, nil
	}

	now := s.now()
	actual := balancer.AggregateCompleted(goals, "")
	if !actual.Equal(m.CurrentValue) {
		s.logger.Debug("progress write-back",
			zap.String("milestone_id", m.ID),
			zap.String("recorded", m.CurrentValue.String()),
			zap.String("observed", actual.String()),
		)
		m.CurrentValue = actual
		m.UpdatedAt = now
		if err := tx.SaveMilestone(ctx, *m); err != nil {
			return nil, err
		}
	}

	remaining := m.RemainingTarget()
	if !remaining.IsPositive() {
		return &balancer.BalancerResult{MilestoneID: m.ID, DailyRequired: decimal.Zero, Message: MessageComplete}, nil
	}
	if m.Period.HasEnded(today) {
		return nil, fmt.Errorf("%w: %s ended %s", balancer.ErrPeriodEnded, m.ID, m.Period.End)
	}

	// Before the period opens, distribute from its first day.
	from := today
	if from.Before(m.Period.Start) {
		from = m.Period.Start
	}
	remainingDays := m.Period.RemainingDays(from)
	daily := balancer.DailyTarget(m.Strategy, remaining, remainingDays, 0)

	updated := 0
	for _, g := range goals {
		if g.Completed || g.DueDate == nil || g.DueDate.Before(from) || g.DueDate.After(m.Period.End) {
			continue
		}
		index := balancer.DaysBetween(from, *g.DueDate)
		target := balancer.DailyTarget(m.Strategy, remaining, remainingDays, index)

		if len(g.Metrics) == 0 {
			g.Metrics = []balancer.Metric{{Label: m.TargetMetric, Unit: m.Unit}}
		}
		g.Metrics[0].Target = target
		g.UpdatedAt = now
		if err := tx.SaveLinkedGoal(ctx, g); err != nil {
			return nil, fmt.Errorf("re-target goal %s: %w", g.ID, err)
		}
		updated++
	}

	s.logger.Info("redistributed",
		zap.String("milestone_id", m.ID),
		zap.String("metric", m.TargetMetric),
		zap.Int("updated_goals", updated),
		zap.String("daily_required", daily.String()),
	)

	return &balancer.BalancerResult{
		MilestoneID:   m.ID,
		DailyRequired: daily,
		UpdatedGoals:  updated,
		Message:       fmt.Sprintf("Redistributed to %d goals, %s per day", updated, daily),
	}, nil
}

// RunDue runs every active milestone whose recorded progress has drifted
// past the trigger threshold. Failures are collected, not fatal.
func (s *Service) RunDue(ctx context.Context, tzOffset int) ([]balancer.BalancerResult, error) {
	start := time.Now()
	today := s.engine.Today(tzOffset)

	milestones, err := s.store.ListMilestones(ctx, &today)
	if err != nil {
		s.observer.RecordSweep(time.Since(start), 0, err)
		return nil, err
	}

	var (
		results []balancer.BalancerResult
		errs    []error
	)
	for _, m := range milestones {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		goals, err := s.store.LinkedGoals(ctx, m.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("load linked goals for %s: %w", m.ID, err))
			continue
		}
		if !s.engine.Trigger.NeedsRedistribution(m, goals) {
			continue
		}

		res, err := s.Run(ctx, m.ID, tzOffset)
		if err != nil {
			errs = append(errs, fmt.Errorf("run %s: %w", m.ID, err))
			continue
		}
		results = append(results, *res)
	}

	err = errors.Join(errs...)
	s.observer.RecordSweep(time.Since(start), len(results), err)
	return results, err
}

// =============================================================================
// PER-MILESTONE LOCKS
// =============================================================================

// keyedMutex hands out one mutex per key, dropped when nobody holds it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refMutex{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
