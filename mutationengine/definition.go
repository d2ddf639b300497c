// Package mutationengine owns mutation tasks: executing a user-supplied
// asynchronous request function, applying optimistic entity patches
// ahead of completion, parsing the response into entities on success,
// and reverting snapshots on failure.
package mutationengine

import (
	"context"

	"querycache/domain/typedef"
	"querycache/queryengine"
)

// MutateFunc performs the actual side-effecting call (an HTTP request or
// any other asynchronous operation) and returns the raw, pre-parse
// response value — the same "decoded JSON, not yet walked against a
// schema" shape a queryengine.Fetcher's JSON body decodes to.
type MutateFunc[TRequest any] func(ctx context.Context, request TRequest) (raw interface{}, err error)

// Definition describes one mutation: its request/response schemas,
// optimistic-update behavior, and retry policy. TRequest and TResponse
// exist for the call site's type safety, matching queryengine's
// Definition[TParams, TResult] split between compile-time generics and
// runtime typedef.TypeDef-driven parsing.
type Definition[TRequest any, TResponse any] struct {
	ID string

	// RequestDef is walked for optimistic entity patches when
	// OptimisticUpdates is true. May be nil if OptimisticUpdates is
	// false.
	RequestDef *typedef.TypeDef

	// ResponseDef is the schema the raw mutate response is parsed
	// against once MutateFn succeeds.
	ResponseDef *typedef.TypeDef

	OptimisticUpdates bool

	// Retry defaults to the zero value, i.e. no retries, matching the
	// "default none" cache.retry behavior for mutations.
	Retry queryengine.RetryPolicy

	MutateFn MutateFunc[TRequest]
}
