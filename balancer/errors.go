/*
errors.go - Error types for the balancer and its storage boundary

PURPOSE:
  The engine functions are total over well-formed input, so the only errors
  here are input errors (bad dates, inverted periods) and the storage and
  service failures surrounding the engine.

ERROR CATEGORIES:
  1. Input errors - malformed dates, invalid periods, rejected fields
  2. Lookup errors - missing milestones or linked goals
  3. Lifecycle errors - balancing a milestone whose period is over

USAGE:
  if errors.Is(err, balancer.ErrMilestoneNotFound) {
      ...
  }
*/
package balancer

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDate is returned when a date string cannot be parsed.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidPeriod is returned when a period ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidInput is returned for rejected field values (target <= 0,
	// unknown strategy, negative amounts).
	ErrInvalidInput = errors.New("invalid input")

	// ErrMilestoneNotFound is returned when a referenced milestone doesn't exist.
	ErrMilestoneNotFound = errors.New("milestone not found")

	// ErrGoalNotFound is returned when a referenced linked goal doesn't exist.
	ErrGoalNotFound = errors.New("linked goal not found")

	// ErrPeriodEnded is returned when balancing a milestone after its period end.
	ErrPeriodEnded = errors.New("milestone period has ended")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrPeriodEnded)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMilestoneNotFound) ||
		errors.Is(err, ErrGoalNotFound)
}
