package batch

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/valuation-cli/internal/model"
	"github.com/sells-group/valuation-cli/internal/store"
)

// Enricher runs one enrichment pass. *enrich.Pipeline satisfies it.
type Enricher interface {
	Run(ctx context.Context, req model.EnrichmentRequest) (*model.EnrichmentBundle, error)
}

// Result is the outcome of one batch item.
type Result struct {
	Request model.EnrichmentRequest
	Bundle  *model.EnrichmentBundle
	Err     error
}

// Run enriches every request with up to workers concurrent runs,
// persisting outcomes when a store is provided. Individual failures do
// not stop the batch; they surface in the per-item results.
func Run(ctx context.Context, enricher Enricher, st store.Store, reqs []model.EnrichmentRequest, workers int) []Result {
	if workers <= 0 {
		workers = 2
	}

	results := make([]Result, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, req := range reqs {
		g.Go(func() error {
			results[i] = runOne(ctx, enricher, st, req)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func runOne(ctx context.Context, enricher Enricher, st store.Store, req model.EnrichmentRequest) Result {
	var run *store.Run
	if st != nil {
		created, err := st.CreateRun(ctx, req)
		if err != nil {
			zap.L().Warn("create run failed", zap.String("address", req.Address), zap.Error(err))
		} else {
			run = created
		}
	}

	bundle, err := enricher.Run(ctx, req)
	if run != nil {
		if err != nil {
			if ferr := st.FailRun(ctx, run.ID, err.Error()); ferr != nil {
				zap.L().Warn("fail run update failed", zap.String("run_id", run.ID), zap.Error(ferr))
			}
		} else if cerr := st.CompleteRun(ctx, run.ID, bundle); cerr != nil {
			zap.L().Warn("complete run update failed", zap.String("run_id", run.ID), zap.Error(cerr))
		}
	}

	if err != nil {
		zap.L().Error("batch item failed", zap.String("address", req.Address), zap.Error(err))
	}
	return Result{Request: req, Bundle: bundle, Err: err}
}
