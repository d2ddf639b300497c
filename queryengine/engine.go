// Package queryengine drives fetch-backed and stream-backed query
// instances: the state machine, retry/backoff, debounce, refetch-
// interval scheduling, infinite pagination, optimistic inserts, and the
// promise-style relay surface consumers read.
package queryengine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"querycache/domain/reactive"
	"querycache/entitystore"
	"querycache/errors"
	"querycache/networkmanager"
	"querycache/normalize"
	"querycache/parser"
	"querycache/querystore"
)

// Evictor is the two-generation eviction manager a query client
// supplies; queryengine only needs to schedule/cancel by Key, keeping
// the manager's own bucket-rotation logic out of this package.
type Evictor interface {
	ScheduleEviction(key Key)
	CancelEviction(key Key)
}

// Config bundles an Engine's shared dependencies.
type Config struct {
	Scheduler         *reactive.Scheduler
	Store             *entitystore.Store
	ParserContext     *parser.Context
	Persist           querystore.Store
	Network           *networkmanager.Manager
	Evictor           Evictor
	RefetchMultiplier float64
}

// Engine owns every query instance in a client. There is one Engine per
// queryclient.Client.
type Engine struct {
	sched     *reactive.Scheduler
	store     *entitystore.Store
	parserCtx *parser.Context
	persist   querystore.Store
	network   *networkmanager.Manager
	evictor   Evictor
	refetch   *refetchScheduler

	unsubNetwork func()

	mu        sync.Mutex
	instances map[Key]*instance
}

// NewEngine builds an Engine from cfg. If cfg.Network is set, the
// engine subscribes to its connectivity changes for the engine's
// lifetime, fanning each transition out to every live instance so a
// Paused instance resumes (or a retry loop aborts) without any
// consumer having to re-trigger it.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		sched:     cfg.Scheduler,
		store:     cfg.Store,
		parserCtx: cfg.ParserContext,
		persist:   cfg.Persist,
		network:   cfg.Network,
		evictor:   cfg.Evictor,
		refetch:   newRefetchScheduler(cfg.RefetchMultiplier),
		instances: make(map[Key]*instance),
	}
	if e.network != nil {
		e.unsubNetwork = e.network.OnChange(e.handleNetworkChange)
	}
	return e
}

// handleNetworkChange fans a connectivity transition out to every
// instance currently tracked by the engine.
func (e *Engine) handleNetworkChange(online bool) {
	e.mu.Lock()
	instances := make([]*instance, 0, len(e.instances))
	for _, inst := range e.instances {
		instances = append(instances, inst)
	}
	e.mu.Unlock()
	for _, inst := range instances {
		inst.handleNetworkChange(online)
	}
}

func (e *Engine) scheduleEviction(key Key) {
	if e.evictor != nil {
		e.evictor.ScheduleEviction(key)
	}
}

func (e *Engine) cancelEviction(key Key) {
	if e.evictor != nil {
		e.evictor.CancelEviction(key)
	}
}

// Evict drops key's in-memory instance. The eviction manager calls this
// once a key survives a full tick with no watcher re-registering.
// Persisted state is untouched; a later Use rebuilds the instance from
// the query store.
func (e *Engine) Evict(key Key) {
	e.mu.Lock()
	inst, ok := e.instances[key]
	if ok {
		delete(e.instances, key)
	}
	e.mu.Unlock()
	if ok {
		e.refetch.unregister(key)
	}
}

// Close stops the engine's refetch scheduler and drops its network
// subscription.
func (e *Engine) Close() {
	if e.unsubNetwork != nil {
		e.unsubNetwork()
	}
	e.refetch.close()
}

// Use resolves (or creates) the instance for def+params, registers a
// watcher, and returns the relay surface plus a release func the caller
// must invoke once it stops observing (the Go equivalent of "last
// watcher drops" since there is no component-unmount lifecycle here).
func Use[TParams Params, TResult any](ctx context.Context, e *Engine, fetcher Fetcher, def *Definition[TParams, TResult], params TParams) (*Result[TParams, TResult], func()) {
	path, extra := resolvePath(def.PathTemplate, params.PathParams())
	search := mergeSearch(params.SearchParams(), extra)
	key := computeKey(def.ID, path, search)

	e.mu.Lock()
	inst, exists := e.instances[key]
	if !exists {
		inst = newInstance(e, key, def.ID, def.Cache)
		inst.isInfinite = def.isInfinite()
		wireInstance(e, inst, fetcher, def, path, search)
		e.instances[key] = inst
	}
	e.mu.Unlock()

	inst.addWatcher(ctx)
	return &Result[TParams, TResult]{inst: inst, def: def}, inst.removeWatcher
}

func mergeSearch(a, b url.Values) url.Values {
	out := url.Values{}
	for k, vs := range a {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	for k, vs := range b {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	return out
}

// wireInstance attaches the definition-and-params-specific closures
// (doFetch / doSubscribe / doNextPage) to an otherwise schema-agnostic
// instance.
func wireInstance[TParams Params, TResult any](e *Engine, inst *instance, fetcher Fetcher, def *Definition[TParams, TResult], path string, search url.Values) {
	inst.optimisticInsertsDef = def.OptimisticInsertsDef

	inst.doRehydrate = func(ctx context.Context, res *querystore.LoadResult) (interface{}, []entitystore.Key, error) {
		var raw interface{}
		if err := json.Unmarshal([]byte(res.Value), &raw); err != nil {
			return nil, nil, errors.NewParseJSONError(err)
		}
		refs := make([]entitystore.Key, len(res.RefIds))
		for idx, id := range res.RefIds {
			refs[idx] = entitystore.Key(id)
		}
		value := parser.ResolveRefs(e.parserCtx, ctx, e.persist, raw, def.ResponseDef)
		return value, refs, nil
	}

	parseResponse := func(raw interface{}) (interface{}, []entitystore.Key, error) {
		value, err := parser.ParseValue(e.parserCtx, raw, def.ResponseDef, nil)
		if err != nil {
			return nil, nil, err
		}
		result, err := parser.WalkEntities(e.parserCtx, raw, def.ResponseDef)
		if err != nil {
			return nil, nil, err
		}
		normalize.PersistEntities(context.Background(), e.store, e.persist, result)
		return value, result.RootRefs, nil
	}

	if def.Stream != nil {
		inst.isStream = true
		inst.doSubscribe = def.Stream.Subscribe
		inst.doParseStream = parseResponse
		return
	}

	doOneFetch := func(ctx context.Context, reqPath string, reqSearch url.Values) (interface{}, []entitystore.Key, error) {
		resp, err := fetcher.Do(ctx, Request{Method: def.method(), URL: buildURL(reqPath, reqSearch, url.Values{})})
		if err != nil {
			return nil, nil, err
		}
		if !resp.OK {
			return nil, nil, errors.NewTransportError(resp.Status, fmt.Sprintf("queryengine: fetch for %s returned status %d", def.ID, resp.Status))
		}
		var raw interface{}
		if err := resp.JSON(&raw); err != nil {
			return nil, nil, err
		}
		return parseResponse(raw)
	}

	inst.doFetch = func(ctx context.Context) (interface{}, []entitystore.Key, error) {
		return doOneFetch(ctx, path, search)
	}

	if def.GetNextPageParams != nil {
		inst.doNextPage = func(ctx context.Context, lastPage interface{}) (interface{}, []entitystore.Key, bool, error) {
			var typedLast TResult
			if tl, ok := lastPage.(TResult); ok {
				typedLast = tl
			}
			nextParams, ok := def.GetNextPageParams(typedLast)
			if !ok {
				return nil, nil, false, nil
			}
			nextPath, nextExtra := resolvePath(def.PathTemplate, nextParams.PathParams())
			nextSearch := mergeSearch(nextParams.SearchParams(), nextExtra)
			value, refs, err := doOneFetch(ctx, nextPath, nextSearch)
			if err != nil {
				return nil, nil, false, err
			}
			var typedValue TResult
			if tv, ok := value.(TResult); ok {
				typedValue = tv
			}
			_, hasNext := def.GetNextPageParams(typedValue)
			return value, refs, hasNext, nil
		}
	}
}
