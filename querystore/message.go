package querystore

// MessageKind discriminates the writer's message union. A strongly
// typed enum is the natural substitute for the source's untagged
// payloads while keeping one FIFO queue of a single concrete type.
type MessageKind int

const (
	MessageSaveQuery MessageKind = iota
	MessageSaveEntity
	MessageActivateQuery
	MessageEvictQuery
	MessageClearOptimisticInsertRefs
	MessageSaveOptimisticInsertRefs
	MessageSaveStreamOrphanRefs
)

// Message is the one concrete type carried over the writer/reader
// channel. Only the fields relevant to Kind are populated; this is the
// same "wide struct, tag field" shape used elsewhere in this module for
// typedef.TypeDef and AppError.
type Message struct {
	Kind MessageKind

	QueryDefID string
	Key        uint32
	Value      string
	UpdatedAt  int64
	RefIds     []uint32
	ChildRefs  []uint32

	// Reply, if non-nil, receives the resulting error (nil on success)
	// and is then closed once the writer has fully applied this message,
	// letting a reader's forwarded call
	// behave like a synchronous RPC when the caller wants to wait. Never
	// valid across a process boundary, so cross-process Channel
	// implementations must marshal around it.
	Reply chan error `json:"-"`
}

func (m Message) reply(err error) {
	if m.Reply == nil {
		return
	}
	m.Reply <- err
	close(m.Reply)
}
