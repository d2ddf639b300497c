package queryengine

import (
	"context"
	"fmt"

	"querycache/domain/reactive"
	"querycache/errors"
	"querycache/normalize"
	"querycache/parser"
)

// Result is the promise-style relay surface a consumer reads: value,
// error, and the lifecycle booleans, plus refetch/pagination/optimistic-
// insert actions. TResult only matters at the Value() boundary — the
// instance underneath tracks an untyped parsed value.
type Result[TParams Params, TResult any] struct {
	inst *instance
	def  *Definition[TParams, TResult]
}

// Value returns the current (possibly optimistic-overlaid) result,
// type-asserted to TResult. Returns the zero value before any fetch has
// resolved.
func (r *Result[TParams, TResult]) Value() TResult {
	reactive.TrackDependency(r.inst.notifier)
	var zero TResult
	v := r.inst.Value()
	if v == nil {
		return zero
	}
	if typed, ok := v.(TResult); ok {
		return typed
	}
	return zero
}

func (r *Result[TParams, TResult]) Error() error { return r.inst.Error() }

func (r *Result[TParams, TResult]) state() State {
	reactive.TrackDependency(r.inst.notifier)
	s, _, _, _ := r.inst.snapshotState()
	return s
}

func (r *Result[TParams, TResult]) IsPending() bool  { return r.state() == StatePending }
func (r *Result[TParams, TResult]) IsResolved() bool { return r.state() == StateResolved }
func (r *Result[TParams, TResult]) IsRejected() bool { return r.state() == StateRejected }
func (r *Result[TParams, TResult]) IsPaused() bool   { return r.state() == StatePaused }
func (r *Result[TParams, TResult]) IsReady() bool    { return r.IsResolved() }
func (r *Result[TParams, TResult]) IsSettled() bool {
	s := r.state()
	return s == StateResolved || s == StateRejected
}

func (r *Result[TParams, TResult]) IsFetching() bool {
	_, fetching, _, _ := r.inst.snapshotState()
	return fetching
}

func (r *Result[TParams, TResult]) IsRefetching() bool {
	_, _, refetching, _ := r.inst.snapshotState()
	return refetching
}

func (r *Result[TParams, TResult]) IsFetchingMore() bool {
	_, _, _, fetchingMore := r.inst.snapshotState()
	return fetchingMore
}

func (r *Result[TParams, TResult]) HasNextPage() bool { return r.inst.hasNextPageValue() }

// Refetch bypasses the debouncer and clears any optimistic insert set,
// matching an explicit user-initiated refetch.
func (r *Result[TParams, TResult]) Refetch(ctx context.Context) { r.inst.refetch(ctx) }

// FetchNextPage evaluates the definition's GetNextPageParams against
// the last page and appends a new page if one exists.
func (r *Result[TParams, TResult]) FetchNextPage(ctx context.Context) { r.inst.fetchNextPage(ctx) }

// InsertOptimistic overlays a locally constructed (or partial) entity
// value onto this query's result. Only valid for definitions that
// declare OptimisticInsertsDef; an insert whose key already appears
// among the query's parsed refs is a no-op.
func (r *Result[TParams, TResult]) InsertOptimistic(raw interface{}) error {
	if r.def.OptimisticInsertsDef == nil {
		return errors.NewConfigurationError(fmt.Sprintf("queryengine: %s does not declare optimisticInserts", r.def.ID))
	}
	value, err := parser.ParseValue(r.inst.engine.parserCtx, raw, r.def.OptimisticInsertsDef, nil)
	if err != nil {
		return err
	}
	proxy, ok := value.(*parser.Proxy)
	if !ok {
		return errors.NewConfigurationError("queryengine: optimistic insert value did not resolve to an entity")
	}
	result, err := parser.WalkEntities(r.inst.engine.parserCtx, raw, r.def.OptimisticInsertsDef)
	if err != nil {
		return err
	}
	normalize.PersistEntities(context.Background(), r.inst.engine.store, r.inst.engine.persist, result)
	r.inst.insertOptimistic(proxy.Key(), value)
	return nil
}

// StreamOrphans returns entity keys seen on this query's stream that
// are not yet reachable from its parsed value.
func (r *Result[TParams, TResult]) StreamOrphans() []uint32 {
	refs := r.inst.streamOrphans()
	out := make([]uint32, len(refs))
	for i, k := range refs {
		out[i] = uint32(k)
	}
	return out
}

