package querystore

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Writer owns a KV delegate exclusively; it is the only goroutine that
// ever mutates it. It drains messages off a Channel strictly FIFO, each
// one (including all cascading ref-count work) completing before the
// next begins. Errors during a single message are caught and logged;
// the queue stays live for the next message, with a start/stop
// lifecycle like any other background processing loop.
type Writer struct {
	proc   *processor
	logger *zap.Logger
}

// NewWriter builds a Writer over kv. The caller must connect it to a
// Channel exactly once (AsyncStore does this) — connecting twice would
// race two delivery goroutines against the same channel.
func NewWriter(kv KV, logger *zap.Logger, maxCount int, gcTime time.Duration) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		proc:   newProcessor(kv, logger, maxCount, gcTime),
		logger: logger,
	}
}

func (w *Writer) handle(msg Message) {
	ctx := context.Background()
	var err error
	switch msg.Kind {
	case MessageSaveQuery:
		err = w.proc.saveQuery(ctx, msg.Key, msg.Value, msg.UpdatedAt, msg.RefIds)
	case MessageSaveEntity:
		err = w.proc.saveEntity(ctx, msg.Key, msg.Value, msg.ChildRefs)
	case MessageActivateQuery:
		err = w.proc.activateQuery(ctx, msg.QueryDefID, msg.Key)
	case MessageEvictQuery:
		err = w.proc.evictQuery(ctx, msg.QueryDefID, msg.Key)
	case MessageClearOptimisticInsertRefs:
		err = w.proc.clearOptimisticInsertRefs(ctx, msg.Key)
	case MessageSaveOptimisticInsertRefs:
		err = w.proc.saveOptimisticInsertRefs(ctx, msg.Key, msg.RefIds)
	case MessageSaveStreamOrphanRefs:
		err = w.proc.saveStreamOrphanRefs(ctx, msg.Key, msg.RefIds)
	}
	if err != nil {
		w.logger.Warn("querystore writer failed to apply message",
			zap.Int("kind", int(msg.Kind)),
			zap.Uint32("key", msg.Key),
			zap.Error(err),
		)
	}
	msg.reply(err)
}
