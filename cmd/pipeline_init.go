package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/valuation-cli/internal/area"
	"github.com/sells-group/valuation-cli/internal/consensus"
	"github.com/sells-group/valuation-cli/internal/enrich"
	"github.com/sells-group/valuation-cli/internal/geo"
	"github.com/sells-group/valuation-cli/internal/sites"
	"github.com/sells-group/valuation-cli/internal/store"
	"github.com/sells-group/valuation-cli/internal/textmine"
	anthropicpkg "github.com/sells-group/valuation-cli/pkg/anthropic"
	"github.com/sells-group/valuation-cli/pkg/attom"
	"github.com/sells-group/valuation-cli/pkg/search"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "valuation.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline wires every collaborator from config. The ATTOM key is the
// only hard requirement; search, LLM extraction, and the shapefile fallback
// all degrade to disabled when unconfigured.
func initPipeline() (*enrich.Pipeline, error) {
	if cfg.Attom.Key == "" {
		return nil, eris.New("attom API key is required (VALUATION_ATTOM_KEY)")
	}

	attomClient, err := attom.NewClient(cfg.Attom.Key,
		attom.WithBaseURL(cfg.Attom.BaseURL),
		attom.WithV4URL(cfg.Attom.V4URL),
	)
	if err != nil {
		return nil, eris.Wrap(err, "init attom client")
	}

	siteCfg, err := sites.LoadSiteConfig(cfg.Scrape.SitesFile)
	if err != nil {
		return nil, err
	}
	fetcher := sites.NewFetcher(
		sites.WithUserAgent(cfg.Scrape.UserAgent),
		sites.WithFetchTimeout(time.Duration(cfg.Scrape.FetchTimeoutSec)*time.Second),
	)
	coordinator := consensus.NewCoordinator(
		sites.DefaultAdapters(fetcher, siteCfg),
		consensus.WithAdapterTimeout(time.Duration(cfg.Pipeline.AdapterTimeoutSecs)*time.Second),
	)

	opts := []enrich.PipelineOption{
		enrich.WithRunTimeout(time.Duration(cfg.Pipeline.RunTimeoutSecs) * time.Second),
		enrich.WithStageTimeout(time.Duration(cfg.Pipeline.AreaTimeoutSecs) * time.Second),
		enrich.WithComparableBounds(cfg.Pipeline.MinComparables, cfg.Pipeline.MaxComparables),
		enrich.WithCountyLocator(initCountyLocator()),
	}

	if cfg.Search.Key != "" {
		searchClient := search.NewClient(cfg.Search.Key, search.WithBaseURL(cfg.Search.BaseURL))
		opts = append(opts, enrich.WithSearch(searchClient))
	}
	if cfg.Anthropic.Key != "" {
		extractor := textmine.NewLLMExtractor(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
		opts = append(opts, enrich.WithExtractor(extractor))
	}

	return enrich.NewPipeline(attomClient, area.NewResolver(attomClient), coordinator, opts...), nil
}

func initCountyLocator() geo.Locator {
	var geoOpts []geo.Option
	if cfg.Geo.CountyShapefile != "" {
		sf, err := geo.LoadCountyShapefile(cfg.Geo.CountyShapefile)
		if err != nil {
			zap.L().Warn("county shapefile load failed, census lookups only", zap.Error(err))
		} else {
			geoOpts = append(geoOpts, geo.WithShapefileFallback(sf))
		}
	}
	return geo.NewCensusLocator(geoOpts...)
}
