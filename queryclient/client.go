// Package queryclient is the façade: it holds the Entity Store, Query
// Store, NetworkManager, and the query/mutation engines, and exposes
// the operations surfaced at module boundaries. It is process-scoped —
// no state here survives outside a *Client, and a test can build and
// fully Close multiple clients.
package queryclient

import (
	"context"
	"time"

	"go.uber.org/zap"

	"querycache/config"
	"querycache/domain/reactive"
	"querycache/entitystore"
	"querycache/errors"
	"querycache/mutationengine"
	"querycache/networkmanager"
	"querycache/parser"
	"querycache/pkg/observability"
	"querycache/querystore"
	"querycache/queryengine"
)

// Config bundles everything a Client needs to construct its engines.
type Config struct {
	Logger  *zap.Logger
	Cache   *config.Config
	KV      querystore.KV
	Channel querystore.Channel // nil builds a synchronous store
	Fetcher queryengine.Fetcher
	Network *networkmanager.Manager // nil defaults to an always-online manager
	Metrics *observability.Metrics  // nil disables CloudWatch emission
}

// Client is the query/mutation runtime a program builds once and passes
// to every UseQuery/UseMutation call.
type Client struct {
	sched   *reactive.Scheduler
	store   *entitystore.Store
	persist querystore.Store
	network *networkmanager.Manager
	fetcher queryengine.Fetcher

	Queries   *queryengine.Engine
	Mutations *mutationengine.Engine

	evictor *Evictor
}

// New builds a fully wired Client. The caller owns cfg.KV/cfg.Channel's
// lifetime; Close tears down the client's own goroutines (scheduler,
// refetch ticker, eviction ticker) but never the KV delegate itself.
func New(cfg Config) *Client {
	sched := reactive.NewScheduler()
	store := entitystore.NewStore(sched)
	parserCtx := &parser.Context{Store: store, Logger: cfg.Logger}

	maxCount := 50
	gcTime := 24 * time.Hour
	multiplier := 1.0
	evictionInterval := 60 * time.Second
	if cfg.Cache != nil {
		maxCount = cfg.Cache.CacheMaxCount
		gcTime = cfg.Cache.CacheGCTime
		multiplier = cfg.Cache.RefetchMultiplier
		evictionInterval = cfg.Cache.EvictionInterval
	}

	var persist querystore.Store
	if cfg.Channel != nil {
		persist = querystore.NewAsyncStore(cfg.KV, cfg.Channel, cfg.Logger, maxCount, gcTime).Reader()
	} else {
		persist = querystore.NewSyncStore(cfg.KV, cfg.Logger, maxCount, gcTime)
	}

	network := cfg.Network
	if network == nil {
		network = networkmanager.New(true)
	}

	fetcher := cfg.Fetcher
	if cfg.Metrics != nil && fetcher != nil {
		fetcher = &meteredFetcher{inner: fetcher, metrics: cfg.Metrics}
	}

	c := &Client{
		sched:   sched,
		store:   store,
		persist: persist,
		network: network,
		fetcher: fetcher,
	}

	c.evictor = NewEvictor(time.Duration(float64(evictionInterval)*multiplier), func(key queryengine.Key) {
		c.Queries.Evict(key)
	})

	c.Queries = queryengine.NewEngine(queryengine.Config{
		Scheduler:         sched,
		Store:             store,
		ParserContext:     parserCtx,
		Persist:           persist,
		Network:           network,
		Evictor:           c.evictor,
		RefetchMultiplier: multiplier,
	})
	c.Mutations = mutationengine.NewEngine(mutationengine.Config{
		Scheduler:     sched,
		Store:         store,
		ParserContext: parserCtx,
		Persist:       persist,
	})

	return c
}

// NetworkManager returns the client's NetworkManager, the surface cmd/demo and
// tests use to flip connectivity.
func (c *Client) NetworkManager() *networkmanager.Manager { return c.network }

// Close tears down the client's scheduler, refetch ticker, and eviction
// ticker. Safe to call once; the client is unusable afterward.
func (c *Client) Close() {
	c.evictor.Close()
	c.Queries.Close()
	c.sched.Close()
}

// UseQuery resolves (or creates) def's instance for params against this
// client's engine. Returns a Context AppError if c is nil, matching the
// "resolve outside of a Query Client scope" failure mode — checked
// synchronously before any instance is created.
func UseQuery[TParams queryengine.Params, TResult any](ctx context.Context, c *Client, def *queryengine.Definition[TParams, TResult], params TParams) (*queryengine.Result[TParams, TResult], func(), error) {
	if c == nil {
		return nil, nil, errors.NewContextError("UseQuery called without a Client")
	}
	result, release := queryengine.Use(ctx, c.Queries, c.fetcher, def, params)
	return result, release, nil
}

// UseMutation builds a fresh Task bound to def against this client's
// mutation engine.
func UseMutation[TRequest any, TResponse any](c *Client, def *mutationengine.Definition[TRequest, TResponse]) (*mutationengine.Task[TRequest, TResponse], error) {
	if c == nil {
		return nil, errors.NewContextError("UseMutation called without a Client")
	}
	return mutationengine.NewTask(c.Mutations, def), nil
}

// meteredFetcher records a CloudWatch duration/count metric around every
// fetch, dimensioned by the request URL since queryengine.Fetcher sees
// no definition ID directly.
type meteredFetcher struct {
	inner   queryengine.Fetcher
	metrics *observability.Metrics
}

func (f *meteredFetcher) Do(ctx context.Context, req queryengine.Request) (*queryengine.Response, error) {
	start := time.Now()
	resp, err := f.inner.Do(ctx, req)
	f.metrics.RecordQuery(ctx, req.URL, time.Since(start), err)
	return resp, err
}
