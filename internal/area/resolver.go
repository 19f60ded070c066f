// Package area resolves a subject's location to an identifier usable for
// area-scoped trend queries, degrading from city to county to bare zip.
package area

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/valuation-cli/internal/model"
	"github.com/sells-group/valuation-cli/internal/resilience"
	"github.com/sells-group/valuation-cli/pkg/attom"
)

// ErrNotFound is returned when every granularity in the chain came up
// empty. Callers treat it as "no area-scoped trend data", not a failure.
var ErrNotFound = eris.New("area: no identifier resolved")

const attemptTimeout = 10 * time.Second

// Resolver walks the city -> county -> postal resolution chain.
type Resolver struct {
	client attom.Client
}

// NewResolver creates a Resolver backed by the authoritative geo lookup.
func NewResolver(client attom.Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve finds the finest-granularity area identifier available. Each
// lookup gets one immediate retry on transient failure; empty results and
// structural errors move straight to the next granularity. The caller's
// zip is the degraded last resort.
func (r *Resolver) Resolve(ctx context.Context, city, county, state, zip string) (model.AreaIdentifier, error) {
	attempts := []struct {
		name        string
		typeAbbrev  string
		granularity model.Granularity
	}{
		{city, "CI", model.GranularityCity},
		{county, "CO", model.GranularityCounty},
	}

	for _, a := range attempts {
		if a.name == "" {
			continue
		}
		id, ok := r.lookup(ctx, a.name, a.typeAbbrev, state, a.granularity)
		if ok {
			return id, nil
		}
		if ctx.Err() != nil {
			return model.AreaIdentifier{}, eris.Wrap(ctx.Err(), "area: resolve")
		}
	}

	if zip != "" {
		return model.AreaIdentifier{
			Granularity: model.GranularityPostal,
			ID:          zip,
			Name:        zip,
		}, nil
	}

	return model.AreaIdentifier{}, ErrNotFound
}

func (r *Resolver) lookup(ctx context.Context, name, typeAbbrev, state string, g model.Granularity) (model.AreaIdentifier, bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	cfg := resilience.Once()
	cfg.OnRetry = resilience.RetryLogger("attom", "geography lookup")

	geos, err := resilience.DoVal(attemptCtx, cfg, func(ctx context.Context) ([]attom.Geography, error) {
		return r.client.LookupGeography(ctx, name, typeAbbrev, state)
	})
	if err != nil {
		zap.L().Warn("area lookup failed",
			zap.String("name", name),
			zap.String("granularity", string(g)),
			zap.Error(err),
		)
		return model.AreaIdentifier{}, false
	}
	if len(geos) == 0 {
		zap.L().Debug("area lookup empty",
			zap.String("name", name),
			zap.String("granularity", string(g)),
		)
		return model.AreaIdentifier{}, false
	}

	return model.AreaIdentifier{
		Granularity: g,
		ID:          geos[0].GeoIDV4,
		Name:        geos[0].Name,
	}, true
}
