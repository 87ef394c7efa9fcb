package balancer

import "github.com/shopspring/decimal"

// AggregateCompleted sums the progress recorded on completed linked goals.
//
// With metricName set only that metric's Current is counted (0 when the goal
// doesn't carry it). With metricName empty every metric's Current is summed.
// A completed goal with no metrics at all counts as one unit of progress.
func AggregateCompleted(goals []LinkedGoal, metricName string) decimal.Decimal {
	total := decimal.Zero
	for _, g := range goals {
		if !g.Completed {
			continue
		}
		if len(g.Metrics) == 0 {
			total = total.Add(decimal.NewFromInt(1))
			continue
		}
		if metricName != "" {
			if m, ok := findMetric(g.Metrics, metricName); ok {
				total = total.Add(m.Current)
			}
			continue
		}
		for _, m := range g.Metrics {
			total = total.Add(m.Current)
		}
	}
	return total
}

func findMetric(metrics []Metric, label string) (Metric, bool) {
	for _, m := range metrics {
		if m.Label == label {
			return m, true
		}
	}
	return Metric{}, false
}

// dayActual is the progress a single goal contributes to its due day in the
// preview: the first metric when present, 1 when completed without metrics.
func dayActual(g LinkedGoal) decimal.Decimal {
	if !g.Completed {
		return decimal.Zero
	}
	if len(g.Metrics) == 0 {
		return decimal.NewFromInt(1)
	}
	return g.Metrics[0].Current
}
