package consensus

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/valuation-cli/internal/model"
	"github.com/sells-group/valuation-cli/internal/sites"
)

const defaultAdapterTimeout = 30 * time.Second

// Coordinator fans a query out to every adapter and merges the results.
type Coordinator struct {
	adapters       []sites.Adapter
	adapterTimeout time.Duration
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithAdapterTimeout bounds each adapter's fetch.
func WithAdapterTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.adapterTimeout = d
		}
	}
}

// NewCoordinator creates a Coordinator. Adapters are ordered by priority
// once, up front, so merges are deterministic regardless of completion
// order.
func NewCoordinator(adapters []sites.Adapter, opts ...CoordinatorOption) *Coordinator {
	sorted := make([]sites.Adapter, len(adapters))
	copy(sorted, adapters)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	c := &Coordinator{
		adapters:       sorted,
		adapterTimeout: defaultAdapterTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Aggregate runs all adapters concurrently, each in its own failure
// domain: a panic or stall in one adapter never delays the others past
// its own deadline. The merged record is deterministic for a given set of
// adapter outputs.
func (c *Coordinator) Aggregate(ctx context.Context, q sites.Query) model.ConsensusRecord {
	results := make([]model.PropertySnapshot, len(c.adapters))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range c.adapters {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					zap.L().Error("adapter panicked",
						zap.String("adapter", a.Name()),
						zap.Any("panic", r),
					)
					results[i] = model.PropertySnapshot{Source: a.Name()}
				}
			}()

			fetchCtx, cancel := context.WithTimeout(gctx, c.adapterTimeout)
			defer cancel()

			start := time.Now()
			results[i] = a.Fetch(fetchCtx, q)
			zap.L().Debug("adapter finished",
				zap.String("adapter", a.Name()),
				zap.Bool("has_signal", results[i].HasSignal()),
				zap.Duration("elapsed", time.Since(start)),
			)
			return nil
		})
	}
	_ = g.Wait()

	return Merge(results)
}
