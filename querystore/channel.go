package querystore

// Sender is the handle a reader holds to forward a mutating operation
// to the writer.
type Sender interface {
	Send(msg Message)
}

// Channel connects exactly one writer to any number of readers.
// Connect registers the writer's handler and returns a Sender shared
// by every reader built against this channel. Implementations: the
// default in-process LocalChannel, and streaming/eventbridge.Channel
// for cross-process writer/reader splits (e.g. a Lambda writer with
// many Lambda readers).
type Channel interface {
	Connect(handler func(Message)) Sender
}

// LocalChannel is a buffered in-process channel satisfying Channel. It
// is the default transport for a single-process AsyncStore.
type LocalChannel struct {
	buf     chan Message
	handler func(Message)
	stop    chan struct{}
}

// NewLocalChannel builds a LocalChannel with the given buffer size.
func NewLocalChannel(bufferSize int) *LocalChannel {
	return &LocalChannel{buf: make(chan Message, bufferSize), stop: make(chan struct{})}
}

// Connect starts the delivery goroutine that calls handler for every
// message sent, strictly in send order.
func (c *LocalChannel) Connect(handler func(Message)) Sender {
	c.handler = handler
	go c.loop()
	return localSender{c}
}

func (c *LocalChannel) loop() {
	for {
		select {
		case <-c.stop:
			return
		case msg := <-c.buf:
			c.handler(msg)
		}
	}
}

// Close stops delivery. Safe to call once.
func (c *LocalChannel) Close() { close(c.stop) }

type localSender struct{ c *LocalChannel }

func (s localSender) Send(msg Message) { s.c.buf <- msg }
