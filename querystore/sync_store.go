package querystore

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SyncStore is the synchronous persistence configuration: operations
// run inline against kv with no message hop. Suitable for in-process
// use and tests, typically paired with memkv.
type SyncStore struct {
	proc *processor
}

// NewSyncStore builds a SyncStore directly over kv.
func NewSyncStore(kv KV, logger *zap.Logger, maxCount int, gcTime time.Duration) *SyncStore {
	return &SyncStore{proc: newProcessor(kv, logger, maxCount, gcTime)}
}

func (s *SyncStore) SaveQuery(ctx context.Context, queryDefID string, key uint32, value string, updatedAt int64, refIds []uint32) error {
	return s.proc.saveQuery(ctx, key, value, updatedAt, refIds)
}

func (s *SyncStore) SaveEntity(ctx context.Context, key uint32, value string, childRefs []uint32) error {
	return s.proc.saveEntity(ctx, key, value, childRefs)
}

func (s *SyncStore) ActivateQuery(ctx context.Context, queryDefID string, key uint32) error {
	return s.proc.activateQuery(ctx, queryDefID, key)
}

func (s *SyncStore) EvictQuery(ctx context.Context, queryDefID string, key uint32) error {
	return s.proc.evictQuery(ctx, queryDefID, key)
}

func (s *SyncStore) ClearOptimisticInsertRefs(ctx context.Context, key uint32) error {
	return s.proc.clearOptimisticInsertRefs(ctx, key)
}

func (s *SyncStore) SaveOptimisticInsertRefs(ctx context.Context, key uint32, refs []uint32) error {
	return s.proc.saveOptimisticInsertRefs(ctx, key, refs)
}

func (s *SyncStore) SaveStreamOrphanRefs(ctx context.Context, key uint32, refs []uint32) error {
	return s.proc.saveStreamOrphanRefs(ctx, key, refs)
}

func (s *SyncStore) LoadQuery(ctx context.Context, key uint32, nowMillis int64) (*LoadResult, error) {
	return s.proc.loadQuery(ctx, key, nowMillis)
}

func (s *SyncStore) LoadEntity(ctx context.Context, key uint32) (string, []uint32, bool, error) {
	return s.proc.loadEntity(ctx, key)
}

var _ Store = (*SyncStore)(nil)
