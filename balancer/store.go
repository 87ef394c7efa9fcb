/*
store.go - Persistence interface for milestones and linked goals

PURPOSE:
  The engine never persists anything. Store is the boundary the milestone
  service uses to load a consistent snapshot and to write back CurrentValue
  and re-targeted linked goals after a run.

KEY INTERFACES:
  Store:   milestone + linked goal CRUD
  TxStore: Store with atomic multi-write support

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - balancer/store/memory.go: In-memory for testing

CONCURRENCY:
  Implementations are safe for concurrent use. Serializing concurrent runs
  against the same milestone is the caller's job (see milestone.Service).
*/
package balancer

import "context"

// Store handles persistence of milestones and their linked goals.
type Store interface {
	// SaveMilestone inserts or replaces a milestone by ID.
	SaveMilestone(ctx context.Context, m Milestone) error

	// GetMilestone returns ErrMilestoneNotFound if id doesn't exist.
	GetMilestone(ctx context.Context, id string) (*Milestone, error)

	// ListMilestones returns milestones newest period first. When activeOn
	// is set only milestones whose period hasn't ended by then are returned.
	ListMilestones(ctx context.Context, activeOn *Date) ([]Milestone, error)

	// DeleteMilestone removes a milestone and its linked goals.
	DeleteMilestone(ctx context.Context, id string) error

	// SaveLinkedGoal inserts or replaces a linked goal by ID.
	SaveLinkedGoal(ctx context.Context, g LinkedGoal) error

	// GetLinkedGoal returns ErrGoalNotFound if id doesn't exist.
	GetLinkedGoal(ctx context.Context, id string) (*LinkedGoal, error)

	// LinkedGoals returns a milestone's goals ordered by due date.
	LinkedGoals(ctx context.Context, milestoneID string) ([]LinkedGoal, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the passed Store is
	// rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
