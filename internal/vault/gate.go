package vault

import (
	"context"

	"golang.org/x/sync/semaphore"
)

const gateWeight = 1 << 20

// Gate queues independent callers in front of a vault. The vault itself never
// waits: a call arriving while an operation is in progress is rejected as
// reentrant. Entry points that may run concurrently (HTTP requests, cron jobs)
// go through one shared Gate instead.
//
// A nil Gate runs fn directly.
type Gate struct {
	sem *semaphore.Weighted
}

func NewGate() *Gate {
	return &Gate{sem: semaphore.NewWeighted(gateWeight)}
}

// Exclusive runs fn with no other gated call in progress. Waiting honors ctx.
func (g *Gate) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	return g.run(ctx, gateWeight, fn)
}

// Shared runs fn alongside other shared calls, never alongside an exclusive
// one.
func (g *Gate) Shared(ctx context.Context, fn func(ctx context.Context) error) error {
	return g.run(ctx, 1, fn)
}

func (g *Gate) run(ctx context.Context, weight int64, fn func(ctx context.Context) error) error {
	if g == nil {
		return fn(ctx)
	}
	if err := g.sem.Acquire(ctx, weight); err != nil {
		return err
	}
	defer g.sem.Release(weight)
	return fn(ctx)
}
