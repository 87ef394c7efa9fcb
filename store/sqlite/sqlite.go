/*
Package sqlite provides a SQLite-backed implementation of balancer.TxStore.

PURPOSE:
  Persists milestones and their linked goals so the milestone service can
  load a consistent snapshot, run the balancer, and write the results back
  in a single transaction.

KEY TABLES:
  goal_periods:  Milestones (target, progress, period bounds, strategy)
  linked_goals:  Day-scoped goals feeding progress into a milestone.
                 Metrics are stored as a JSON array.

NUMERIC STORAGE:
  Target/current values are stored as decimal strings (TEXT) so nothing is
  lost to float rounding on the way through the database.

DATES:
  Period bounds and due dates are stored as YYYY-MM-DD, which sorts and
  compares correctly as text. Timestamps are RFC 3339.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single pooled connection so an
  in-memory database is shared by every query.

USAGE:
  store, err := sqlite.New("./data/milestones.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - balancer/store.go: Interface definitions
  - balancer/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coppermind/milestone-engine/balancer"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Store implements balancer.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Milestones (period-scoped numeric goals)
	CREATE TABLE IF NOT EXISTS goal_periods (
		id TEXT PRIMARY KEY,
		target_metric TEXT NOT NULL,
		target_value TEXT NOT NULL,
		current_value TEXT NOT NULL DEFAULT '0',
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		strategy TEXT NOT NULL,
		label TEXT,
		unit TEXT,
		daily_amount TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_goal_periods_end
		ON goal_periods(period_end);

	-- Linked goals (day-scoped progress records)
	CREATE TABLE IF NOT EXISTS linked_goals (
		id TEXT PRIMARY KEY,
		milestone_id TEXT NOT NULL REFERENCES goal_periods(id) ON DELETE CASCADE,
		text TEXT NOT NULL DEFAULT '',
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		due_date TEXT,
		metrics_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_linked_goals_milestone_due
		ON linked_goals(milestone_id, due_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// MILESTONES
// =============================================================================

const milestoneColumns = `id, target_metric, target_value, current_value, period_start, period_end,
	strategy, label, unit, daily_amount, created_at, updated_at`

// SaveMilestone inserts or replaces a milestone.
func (s *Store) SaveMilestone(ctx context.Context, m balancer.Milestone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveMilestone(ctx, s.db, m)
}

func saveMilestone(ctx context.Context, q querier, m balancer.Milestone) error {
	now := time.Now().UTC()
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := m.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	query := `
		INSERT INTO goal_periods (` + milestoneColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			target_metric = excluded.target_metric,
			target_value = excluded.target_value,
			current_value = excluded.current_value,
			period_start = excluded.period_start,
			period_end = excluded.period_end,
			strategy = excluded.strategy,
			label = excluded.label,
			unit = excluded.unit,
			daily_amount = excluded.daily_amount,
			updated_at = excluded.updated_at
	`

	_, err := q.ExecContext(ctx, query,
		m.ID,
		m.TargetMetric,
		m.TargetValue.String(),
		m.CurrentValue.String(),
		m.Period.Start.String(),
		m.Period.End.String(),
		string(m.Strategy),
		nullString(m.Label),
		nullString(m.Unit),
		m.DailyAmount.String(),
		createdAt.Format(time.RFC3339),
		updatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save milestone: %w", err)
	}
	return nil
}

// GetMilestone retrieves a milestone by ID.
func (s *Store) GetMilestone(ctx context.Context, id string) (*balancer.Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getMilestone(ctx, s.db, id)
}

func getMilestone(ctx context.Context, q querier, id string) (*balancer.Milestone, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+milestoneColumns+` FROM goal_periods WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get milestone: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", balancer.ErrMilestoneNotFound, id)
	}
	m, err := scanMilestone(rows)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMilestones returns milestones, newest period first.
func (s *Store) ListMilestones(ctx context.Context, activeOn *balancer.Date) ([]balancer.Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listMilestones(ctx, s.db, activeOn)
}

func listMilestones(ctx context.Context, q querier, activeOn *balancer.Date) ([]balancer.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM goal_periods`
	var args []any
	if activeOn != nil {
		query += ` WHERE period_end >= ?`
		args = append(args, activeOn.String())
	}
	query += ` ORDER BY period_start DESC, id ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	defer rows.Close()

	var milestones []balancer.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

// DeleteMilestone removes a milestone; linked goals cascade.
func (s *Store) DeleteMilestone(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteMilestone(ctx, s.db, id)
}

func deleteMilestone(ctx context.Context, q querier, id string) error {
	res, err := q.ExecContext(ctx, "DELETE FROM goal_periods WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete milestone: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", balancer.ErrMilestoneNotFound, id)
	}
	return nil
}

func scanMilestone(rows *sql.Rows) (balancer.Milestone, error) {
	var (
		m            balancer.Milestone
		targetValue  string
		currentValue string
		periodStart  string
		periodEnd    string
		strategy     string
		label        sql.NullString
		unit         sql.NullString
		dailyAmount  string
		createdAt    string
		updatedAt    string
	)

	err := rows.Scan(
		&m.ID, &m.TargetMetric, &targetValue, &currentValue, &periodStart, &periodEnd,
		&strategy, &label, &unit, &dailyAmount, &createdAt, &updatedAt,
	)
	if err != nil {
		return m, fmt.Errorf("failed to scan milestone: %w", err)
	}

	start, err := balancer.ParseDate(periodStart)
	if err != nil {
		return m, err
	}
	end, err := balancer.ParseDate(periodEnd)
	if err != nil {
		return m, err
	}

	m.TargetValue = parseDecimal(targetValue)
	m.CurrentValue = parseDecimal(currentValue)
	m.Period = balancer.Period{Start: start, End: end}
	m.Strategy = balancer.Strategy(strategy)
	m.Label = label.String
	m.Unit = unit.String
	m.DailyAmount = parseDecimal(dailyAmount)
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return m, nil
}

// =============================================================================
// LINKED GOALS
// =============================================================================

const goalColumns = `id, milestone_id, text, completed, due_date, metrics_json, created_at, updated_at`

// metricJSON is the stored shape of one metric.
type metricJSON struct {
	Label   string          `json:"label"`
	Current decimal.Decimal `json:"current"`
	Target  decimal.Decimal `json:"target"`
	Unit    string          `json:"unit,omitempty"`
}

// SaveLinkedGoal inserts or replaces a linked goal.
func (s *Store) SaveLinkedGoal(ctx context.Context, g balancer.LinkedGoal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveLinkedGoal(ctx, s.db, g)
}

func saveLinkedGoal(ctx context.Context, q querier, g balancer.LinkedGoal) error {
	metrics := make([]metricJSON, len(g.Metrics))
	for i, m := range g.Metrics {
		metrics[i] = metricJSON{Label: m.Label, Current: m.Current, Target: m.Target, Unit: m.Unit}
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}

	var dueDate sql.NullString
	if g.DueDate != nil {
		dueDate = sql.NullString{String: g.DueDate.String(), Valid: true}
	}

	now := time.Now().UTC()
	createdAt := g.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := g.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	query := `
		INSERT INTO linked_goals (` + goalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			milestone_id = excluded.milestone_id,
			text = excluded.text,
			completed = excluded.completed,
			due_date = excluded.due_date,
			metrics_json = excluded.metrics_json,
			updated_at = excluded.updated_at
	`

	_, err = q.ExecContext(ctx, query,
		g.ID,
		g.MilestoneID,
		g.Text,
		g.Completed,
		dueDate,
		string(metricsJSON),
		createdAt.Format(time.RFC3339),
		updatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: %s", balancer.ErrMilestoneNotFound, g.MilestoneID)
		}
		return fmt.Errorf("failed to save linked goal: %w", err)
	}
	return nil
}

// GetLinkedGoal retrieves a linked goal by ID.
func (s *Store) GetLinkedGoal(ctx context.Context, id string) (*balancer.LinkedGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLinkedGoal(ctx, s.db, id)
}

func getLinkedGoal(ctx context.Context, q querier, id string) (*balancer.LinkedGoal, error) {
	goals, err := queryGoals(ctx, q, `SELECT `+goalColumns+` FROM linked_goals WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(goals) == 0 {
		return nil, fmt.Errorf("%w: %s", balancer.ErrGoalNotFound, id)
	}
	return &goals[0], nil
}

// LinkedGoals returns a milestone's goals ordered by due date, undated last.
func (s *Store) LinkedGoals(ctx context.Context, milestoneID string) ([]balancer.LinkedGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return linkedGoals(ctx, s.db, milestoneID)
}

func linkedGoals(ctx context.Context, q querier, milestoneID string) ([]balancer.LinkedGoal, error) {
	query := `
		SELECT ` + goalColumns + `
		FROM linked_goals
		WHERE milestone_id = ?
		ORDER BY due_date IS NULL, due_date ASC, id ASC
	`
	return queryGoals(ctx, q, query, milestoneID)
}

func queryGoals(ctx context.Context, q querier, query string, args ...any) ([]balancer.LinkedGoal, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query linked goals: %w", err)
	}
	defer rows.Close()

	var goals []balancer.LinkedGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func scanGoal(rows *sql.Rows) (balancer.LinkedGoal, error) {
	var (
		g           balancer.LinkedGoal
		dueDate     sql.NullString
		metricsJSON sql.NullString
		createdAt   string
		updatedAt   string
	)

	err := rows.Scan(&g.ID, &g.MilestoneID, &g.Text, &g.Completed, &dueDate, &metricsJSON, &createdAt, &updatedAt)
	if err != nil {
		return g, fmt.Errorf("failed to scan linked goal: %w", err)
	}

	if dueDate.Valid && dueDate.String != "" {
		d, err := balancer.ParseDate(dueDate.String)
		if err != nil {
			return g, err
		}
		g.DueDate = &d
	}

	if metricsJSON.Valid && metricsJSON.String != "" {
		var metrics []metricJSON
		if err := json.Unmarshal([]byte(metricsJSON.String), &metrics); err != nil {
			return g, fmt.Errorf("failed to decode metrics for %s: %w", g.ID, err)
		}
		for _, m := range metrics {
			g.Metrics = append(g.Metrics, balancer.Metric{Label: m.Label, Current: m.Current, Target: m.Target, Unit: m.Unit})
		}
	}

	g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	g.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return g, nil
}

// =============================================================================
// TRANSACTIONAL STORE (balancer.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store balancer.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveMilestone(ctx context.Context, m balancer.Milestone) error {
	return saveMilestone(ctx, ts.tx, m)
}

func (ts *txStore) GetMilestone(ctx context.Context, id string) (*balancer.Milestone, error) {
	return getMilestone(ctx, ts.tx, id)
}

func (ts *txStore) ListMilestones(ctx context.Context, activeOn *balancer.Date) ([]balancer.Milestone, error) {
	return listMilestones(ctx, ts.tx, activeOn)
}

func (ts *txStore) DeleteMilestone(ctx context.Context, id string) error {
	return deleteMilestone(ctx, ts.tx, id)
}

func (ts *txStore) SaveLinkedGoal(ctx context.Context, g balancer.LinkedGoal) error {
	return saveLinkedGoal(ctx, ts.tx, g)
}

func (ts *txStore) GetLinkedGoal(ctx context.Context, id string) (*balancer.LinkedGoal, error) {
	return getLinkedGoal(ctx, ts.tx, id)
}

func (ts *txStore) LinkedGoals(ctx context.Context, milestoneID string) ([]balancer.LinkedGoal, error) {
	return linkedGoals(ctx, ts.tx, milestoneID)
}

// =============================================================================
// HELPERS
// =============================================================================

// Reset clears all data. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM linked_goals; DELETE FROM goal_periods;`)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isForeignKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}
