package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/coppermind/milestone-engine/balancer"
	"github.com/coppermind/milestone-engine/balancer/store"
	"github.com/coppermind/milestone-engine/milestone"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintPreview(t *testing.T) {
	// GIVEN: 3000 pushups over February, viewed on Feb 1
	now := balancer.MustParseDate("2026-02-01").Time.Add(10 * time.Hour)
	svc := milestone.NewService(store.NewMemory(),
		milestone.WithEngine(&balancer.Engine{Now: func() time.Time { return now }}),
		milestone.WithIDGenerator(func() string { return "pushups" }),
	)
	ctx := context.Background()
	_, err := svc.Create(ctx, milestone.CreateInput{
		TargetMetric: "Pushups",
		TargetValue:  decimal.NewFromInt(3000),
		PeriodStart:  "2026-02-01",
		PeriodEnd:    "2026-02-28",
		Unit:         "reps",
	})
	require.NoError(t, err)

	// WHEN: Printing the preview
	var out bytes.Buffer
	require.NoError(t, printPreview(ctx, &out, svc, "pushups", 0))

	// THEN: Summary lines, a header and one row per day with today marked
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2+1+1+28)
	assert.Contains(t, lines[0], "3000 reps Pushups over [2026-02-01, 2026-02-28]")
	assert.Contains(t, lines[1], "108 per day for 28 days")
	assert.Contains(t, lines[3], "date")
	assert.Contains(t, lines[4], "*")
	assert.Contains(t, lines[4], "2026-02-01")
	assert.Contains(t, lines[4], "108")
	assert.NotContains(t, lines[5], "*")

	// Unknown IDs surface the service error
	err = printPreview(ctx, &out, svc, "missing", 0)
	assert.ErrorIs(t, err, balancer.ErrMilestoneNotFound)
}
