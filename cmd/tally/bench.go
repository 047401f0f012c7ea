package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jacentio/tally/counter"
)

// bench fires n concurrent increments at one counter and checks that the
// values handed out are exactly start+1 .. start+n.
func bench(ctx context.Context, c *counter.Counters, counterID string, n, workers int) error {
	if counterID == "" {
		counterID = "bench-" + uuid.NewString()
	}
	if n < 1 {
		return fmt.Errorf("-n must be positive, got %d", n)
	}

	start, err := c.Get(ctx, counterID)
	if err != nil {
		return fmt.Errorf("read start value: %w", err)
	}

	logger.Info("bench started", "counterID", counterID, "n", n, "workers", workers, "start", start)
	began := time.Now()

	values := make([]int64, n)
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			v, err := c.Add(gctx, counterID)
			if err != nil {
				return err
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	elapsed := time.Since(began)
	if err := checkSequence(values, start); err != nil {
		return err
	}

	logger.Info("bench completed",
		"counterID", counterID,
		"n", n,
		"elapsed", elapsed,
		"perSecond", float64(n)/elapsed.Seconds(),
		"last", start+int64(n),
	)
	return nil
}

// checkSequence sorts values and verifies they are start+1 .. start+len(values)
// with no duplicates or gaps.
func checkSequence(values []int64, start int64) error {
	sort.Slice(values, func(a, b int) bool { return values[a] < values[b] })
	for i, v := range values {
		want := start + int64(i) + 1
		if v == want {
			continue
		}
		if i > 0 && v == values[i-1] {
			return fmt.Errorf("duplicate value %d", v)
		}
		return fmt.Errorf("expected %d at position %d, got %d (concurrent writers on the same counter?)", want, i, v)
	}
	return nil
}
