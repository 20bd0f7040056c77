package broker

// Target is a named, configured transport instance. It exclusively owns
// its transport plugin and its delivery queue for the broker's lifetime.
type Target struct {
	name     string
	protocol string

	transport Transport
	queue     *deliveryQueue
}

// Name returns the target's unique name from the routing document.
func (t *Target) Name() string {
	return t.name
}

// Protocol returns the protocol string the target was configured with.
func (t *Target) Protocol() string {
	return t.protocol
}

// publishSync delivers a message on the caller's goroutine, bypassing the
// queue. Sync deliveries are therefore not ordered relative to the async
// queue.
func (t *Target) publishSync(msg *Message) error {
	return t.transport.Publish(msg)
}

// publishAsync enqueues a message on the target's delivery queue.
func (t *Target) publishAsync(msg *Message, onComplete CompletionFunc) error {
	return t.queue.enqueue(deliveryJob{msg: msg, onComplete: onComplete})
}
