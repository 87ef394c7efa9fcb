/*
preview.go - Day-by-day distribution preview

PURPOSE:
  Builds the table the UI shows under a milestone: one row per day of the
  period, with what was actually done on past days and what should be done
  on today and every later day.

WALK-FORWARD SIMULATION:
  remainingTarget and remainingDays are computed once, before the loop, and
  then decremented as past days are walked:

    remainingTarget = TargetValue - CurrentValue
    remainingDays   = RemainingDays(End, today)

    for each day in period:
      past   -> actual from the goal due that day, target 0,
                remainingTarget -= actual, remainingDays -= 1
      future -> target = DailyTarget(strategy, remainingTarget,
                                     remainingDays, futureIndex)

  This reconstructs how the distribution would have unfolded, not an audit
  of what was stored each day. Both counters are floored at zero.

SEE ALSO:
  - strategy.go: DailyTarget
  - aggregate.go: dayActual
*/
package balancer

import "github.com/shopspring/decimal"

// BuildPreview returns one DailyDistribution per day of m.Period, in order.
func BuildPreview(m Milestone, goals []LinkedGoal, today Date) []DailyDistribution {
	remainingTarget := m.RemainingTarget()
	remainingDays := RemainingDays(m.Period.End, today)

	preview := make([]DailyDistribution, 0, m.Period.TotalDays())
	futureIndex := 0

	for day := range m.Period.Dates() {
		if day.Before(today) {
			actual := decimal.Zero
			if g, ok := goalDueOn(goals, day); ok {
				actual = dayActual(g)
			}
			preview = append(preview, DailyDistribution{
				Date:   day,
				Target: decimal.Zero,
				Actual: actual,
			})

			remainingTarget = clampZero(remainingTarget.Sub(actual))
			if remainingDays > 0 {
				remainingDays--
			}
			continue
		}

		preview = append(preview, DailyDistribution{
			Date:   day,
			Target: DailyTarget(m.Strategy, remainingTarget, remainingDays, futureIndex),
			Actual: decimal.Zero,
		})
		futureIndex++
	}

	return preview
}

func goalDueOn(goals []LinkedGoal, day Date) (LinkedGoal, bool) {
	for _, g := range goals {
		if g.IsDueOn(day) {
			return g, true
		}
	}
	return LinkedGoal{}, false
}
