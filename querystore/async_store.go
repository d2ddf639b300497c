package querystore

import (
	"time"

	"go.uber.org/zap"
)

// AsyncStore wires a Writer (the sole owner of kv) to a Channel, and
// vends Reader handles for any number of readers. Reader() may be
// called repeatedly from different goroutines; each call only needs a
// shared kv handle for direct reads plus the channel's Sender for
// forwarding writes, so concurrent readers share no mutable state.
type AsyncStore struct {
	writer *Writer
	kv     KV
	sender Sender

	maxCount int
	gcTime   time.Duration
}

// NewAsyncStore starts a Writer owning kv, connects it to ch exactly
// once, and returns the AsyncStore used to mint Reader handles that
// all share the resulting Sender.
func NewAsyncStore(kv KV, ch Channel, logger *zap.Logger, maxCount int, gcTime time.Duration) *AsyncStore {
	writer := NewWriter(kv, logger, maxCount, gcTime)
	sender := ch.Connect(writer.handle)
	return &AsyncStore{
		writer:   writer,
		kv:       kv,
		sender:   sender,
		maxCount: maxCount,
		gcTime:   gcTime,
	}
}

// Reader returns a new read endpoint sharing this AsyncStore's kv and
// channel.
func (a *AsyncStore) Reader() *Reader {
	return newReader(a.kv, a.sender, a.maxCount, a.gcTime)
}
