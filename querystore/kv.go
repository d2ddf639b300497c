// Package querystore is the two-tier persistence substrate: a writer-
// owned queue over a pluggable KV delegate, with a per-query-family LRU
// admission policy and cascading reference-count deletion. A
// synchronous configuration calls the delegate inline; an asynchronous
// configuration splits into a writer goroutine that owns the delegate
// and reader handles that forward mutations as messages.
package querystore

import "context"

// KV is the persistent key/value delegate this package is built
// against. Implementations live in querystore/memkv (in-process) and
// querystore/dynamokv (DynamoDB-backed); either may be plugged into a
// SyncStore or, more commonly for dynamokv, an AsyncStore's writer.
type KV interface {
	Has(ctx context.Context, key string) (bool, error)
	GetString(ctx context.Context, key string) (value string, ok bool, err error)
	GetNumber(ctx context.Context, key string) (value float64, ok bool, err error)
	GetBuffer(ctx context.Context, key string) (value []uint32, ok bool, err error)
	SetString(ctx context.Context, key string, value string) error
	SetNumber(ctx context.Context, key string, value float64) error
	SetBuffer(ctx context.Context, key string, value []uint32) error
	Delete(ctx context.Context, key string) error
}

// Transactor is an optional capability a KV may implement to batch a
// sequence of operations atomically. When a KV does not implement it,
// the writer simply serializes operations, which is always correct
// since the writer already processes one message at a time.
type Transactor interface {
	Transaction(ctx context.Context, fn func(KV) error) error
}
