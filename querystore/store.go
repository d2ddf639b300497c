package querystore

import "context"

// Store is the operation surface both SyncStore and an AsyncStore's
// Reader expose. Readers forward every mutating call as a message to
// the writer; SyncStore applies it inline.
type Store interface {
	SaveQuery(ctx context.Context, queryDefID string, key uint32, value string, updatedAt int64, refIds []uint32) error
	SaveEntity(ctx context.Context, key uint32, value string, childRefs []uint32) error
	ActivateQuery(ctx context.Context, queryDefID string, key uint32) error
	EvictQuery(ctx context.Context, queryDefID string, key uint32) error
	ClearOptimisticInsertRefs(ctx context.Context, key uint32) error
	SaveOptimisticInsertRefs(ctx context.Context, key uint32, refs []uint32) error
	SaveStreamOrphanRefs(ctx context.Context, key uint32, refs []uint32) error
	LoadQuery(ctx context.Context, key uint32, nowMillis int64) (*LoadResult, error)
	LoadEntity(ctx context.Context, key uint32) (value string, childRefs []uint32, ok bool, err error)
}
