package analysis

import (
	"context"
	"fmt"
)

// canceller is polled by every expansion loop. It reports the context error
// once the context is done and enforces a node budget.
type canceller struct {
	ctx    context.Context
	budget int
	used   int
}

func newCanceller(ctx context.Context, budget int) *canceller {
	return &canceller{ctx: ctx, budget: budget}
}

// check returns ctx.Err() once the context is done.
func (c *canceller) check() error {
	select {
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		return nil
	}
}

// spend charges n nodes to the budget and polls the context.
func (c *canceller) spend(n int) error {
	c.used += n
	if c.budget > 0 && c.used > c.budget {
		return fmt.Errorf("%w: %d product nodes (limit %d)", ErrResourceExhausted, c.used, c.budget)
	}
	return c.check()
}
