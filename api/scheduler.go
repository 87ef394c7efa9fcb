/*
scheduler.go - Automated redistribution scheduler

PURPOSE:
  Periodically checks active milestones for drift between recorded and
  observed progress and redistributes the ones past the threshold.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Checks once immediately on start
  - Delegates selection and runs to milestone.Service.RunDue
  - Failures are logged per sweep; the loop keeps going

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)
  - TimezoneOffset: Minutes from UTC used for "today"

USAGE:
  scheduler := NewRedistributionScheduler(svc, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunBalancer endpoint (manual redistribution)
  - balancer/trigger.go: Drift threshold
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/coppermind/milestone-engine/milestone"
	"go.uber.org/zap"
)

// RedistributionScheduler handles automated redistribution.
type RedistributionScheduler struct {
	Service        *milestone.Service
	Logger         *zap.Logger
	CheckInterval  time.Duration
	Enabled        bool
	TimezoneOffset int

	ticker  *time.Ticker
	stop    chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewRedistributionScheduler creates a new scheduler.
func NewRedistributionScheduler(svc *milestone.Service, logger *zap.Logger) *RedistributionScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedistributionScheduler{
		Service:       svc,
		Logger:        logger.Named("scheduler"),
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler. Calling Start on a running scheduler is a no-op.
func (rs *RedistributionScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("disabled, not starting")
		return
	}
	if rs.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rs.cancel = cancel
	rs.stop = make(chan struct{})
	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.running = true
	rs.wg.Add(1)

	go rs.run(ctx, rs.ticker, rs.stop)

	rs.Logger.Info("started", zap.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight sweep to finish.
func (rs *RedistributionScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.running {
		return
	}
	rs.ticker.Stop()
	rs.cancel()
	close(rs.stop)
	rs.wg.Wait()
	rs.running = false
	rs.Logger.Info("stopped")
}

func (rs *RedistributionScheduler) run(ctx context.Context, ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndRedistribute(ctx)

	for {
		select {
		case <-ticker.C:
			rs.checkAndRedistribute(ctx)
		case <-stop:
			return
		}
	}
}

func (rs *RedistributionScheduler) checkAndRedistribute(ctx context.Context) {
	rs.Logger.Debug("checking milestones for drift")

	results, err := rs.Service.RunDue(ctx, rs.TimezoneOffset)
	if err != nil {
		rs.Logger.Warn("sweep finished with errors", zap.Int("redistributed", len(results)), zap.Error(err))
		return
	}
	if len(results) == 0 {
		return
	}

	updated := 0
	for _, res := range results {
		updated += res.UpdatedGoals
		rs.Logger.Debug("redistributed",
			zap.String("milestone_id", res.MilestoneID),
			zap.String("daily_required", res.DailyRequired.String()),
			zap.Int("updated_goals", res.UpdatedGoals),
		)
	}
	rs.Logger.Info("sweep completed", zap.Int("redistributed", len(results)), zap.Int("updated_goals", updated))
}
