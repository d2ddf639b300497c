package querystore

import (
	"context"
	"time"
)

// Reader is the async configuration's read endpoint: it reads directly
// from kv for confirmed state but never writes to it — every mutating
// call is forwarded to the writer as a Message and waits for the
// writer's reply or for ctx to end.
type Reader struct {
	kv     KV
	sender Sender
	// loader reuses the same gc-horizon/loadQuery logic as the writer's
	// processor for read-only LoadQuery calls, which never need to go
	// through the write queue.
	loader *processor
}

func newReader(kv KV, sender Sender, maxCount int, gcTime time.Duration) *Reader {
	return &Reader{kv: kv, sender: sender, loader: newProcessor(kv, nil, maxCount, gcTime)}
}

func (r *Reader) send(ctx context.Context, msg Message) error {
	msg.Reply = make(chan error, 1)
	r.sender.Send(msg)
	select {
	case err := <-msg.Reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reader) SaveQuery(ctx context.Context, queryDefID string, key uint32, value string, updatedAt int64, refIds []uint32) error {
	return r.send(ctx, Message{Kind: MessageSaveQuery, QueryDefID: queryDefID, Key: key, Value: value, UpdatedAt: updatedAt, RefIds: refIds})
}

func (r *Reader) SaveEntity(ctx context.Context, key uint32, value string, childRefs []uint32) error {
	return r.send(ctx, Message{Kind: MessageSaveEntity, Key: key, Value: value, ChildRefs: childRefs})
}

func (r *Reader) ActivateQuery(ctx context.Context, queryDefID string, key uint32) error {
	return r.send(ctx, Message{Kind: MessageActivateQuery, QueryDefID: queryDefID, Key: key})
}

func (r *Reader) EvictQuery(ctx context.Context, queryDefID string, key uint32) error {
	return r.send(ctx, Message{Kind: MessageEvictQuery, QueryDefID: queryDefID, Key: key})
}

func (r *Reader) ClearOptimisticInsertRefs(ctx context.Context, key uint32) error {
	return r.send(ctx, Message{Kind: MessageClearOptimisticInsertRefs, Key: key})
}

func (r *Reader) SaveOptimisticInsertRefs(ctx context.Context, key uint32, refs []uint32) error {
	return r.send(ctx, Message{Kind: MessageSaveOptimisticInsertRefs, Key: key, RefIds: refs})
}

func (r *Reader) SaveStreamOrphanRefs(ctx context.Context, key uint32, refs []uint32) error {
	return r.send(ctx, Message{Kind: MessageSaveStreamOrphanRefs, Key: key, RefIds: refs})
}

func (r *Reader) LoadQuery(ctx context.Context, key uint32, nowMillis int64) (*LoadResult, error) {
	return r.loader.loadQuery(ctx, key, nowMillis)
}

// LoadEntity reads directly from kv, the same as LoadQuery, since an
// entity load never needs to go through the write queue either.
func (r *Reader) LoadEntity(ctx context.Context, key uint32) (string, []uint32, bool, error) {
	return r.loader.loadEntity(ctx, key)
}

var _ Store = (*Reader)(nil)
