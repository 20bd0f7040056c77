package broker

import (
	"fmt"
	"sync"
)

// Message binds a Payload to one destination's fully resolved delivery
// options. All macro expansion happens before a Message is built, so
// transports see literal values only.
type Message struct {
	// MessageID is the logical message id the publish was routed under.
	MessageID string

	// Payload is the shared, read-only message body.
	Payload *Payload

	// Options are the destination's delivery options with macros expanded
	// (e.g. "directory" and "filename" for file, "topic" for mqtt).
	Options map[string]string
}

// Option returns a delivery option value, or "" if absent.
func (m *Message) Option(key string) string {
	return m.Options[key]
}

// RequireOption returns a delivery option value, or ErrMissingOption if the
// option is absent or empty.
func (m *Message) RequireOption(key string) (string, error) {
	v := m.Options[key]
	if v == "" {
		return "", fmt.Errorf("%w: %q", ErrMissingOption, key)
	}
	return v, nil
}

// CompletionFunc reports the outcome of one asynchronous delivery. It is
// invoked exactly once per delivery, on the target's worker goroutine,
// after the transport I/O has finished.
type CompletionFunc func(friendlyName string, msg *Message, success bool)

// InboundFunc re-enters the broker with a message bridged in from inbound
// wire traffic. Transports invoke it with the subscription id configured
// for the matching inbound topic.
type InboundFunc func(subscriptionID string, p *Payload)

// Transport is the capability set a delivery backend must implement.
//
// Publish is blocking and delivers exactly one message. Callers never
// invoke a transport directly: synchronous publishes go through the
// owning target on the caller's goroutine, asynchronous ones through the
// target's single-worker queue, so a transport never sees two concurrent
// Publish calls for async traffic.
//
// Subscribe and Unsubscribe activate or deactivate an inbound subscription
// configured for the target; transports without inbound support return
// ErrSubscriptionsNotSupported.
type Transport interface {
	// FriendlyName returns the diagnostic identity used in completion
	// callbacks and logs (e.g. "file/archive").
	FriendlyName() string

	// Start activates the transport: wire transports establish their
	// outbound session and activate every configured subscription,
	// bridging inbound messages through inbound. Local transports treat
	// Start as a no-op.
	Start(inbound InboundFunc) error

	// Publish delivers one message, blocking until the underlying I/O
	// completes.
	Publish(msg *Message) error

	// Subscribe activates the configured subscription with the given id.
	Subscribe(subscriptionID string) error

	// Unsubscribe deactivates the configured subscription with the given id.
	Unsubscribe(subscriptionID string) error

	// Reconnect re-establishes a broken wire session. Connectionless
	// transports return nil.
	Reconnect() error

	// Close releases the transport's resources.
	Close() error
}

// TransportFactory constructs a transport from a parsed target
// configuration. Factories are registered per protocol string.
type TransportFactory func(cfg TargetConfig, log Logger) (Transport, error)

// Registry maps protocol strings to transport factories. A registry is
// assembled once, at broker construction time, and read-only afterwards.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]TransportFactory
}

// NewRegistry creates an empty transport registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]TransportFactory)}
}

// Register adds a factory under a protocol string.
//
// Registering an empty protocol or nil factory is an error; re-registering
// a protocol replaces the previous factory.
func (r *Registry) Register(protocol string, factory TransportFactory) error {
	if protocol == "" {
		return fmt.Errorf("%w: empty protocol", ErrUnknownProtocol)
	}
	if factory == nil {
		return fmt.Errorf("broker: nil factory for protocol %q", protocol)
	}

	r.mu.Lock()
	r.factories[protocol] = factory
	r.mu.Unlock()
	return nil
}

// Protocols returns the registered protocol strings, for diagnostics.
func (r *Registry) Protocols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	return out
}

// newTransport constructs a transport for the given target configuration.
func (r *Registry) newTransport(cfg TargetConfig, log Logger) (Transport, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Protocol]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (target %q)", ErrUnknownProtocol, cfg.Protocol, cfg.Name)
	}
	return factory(cfg, log)
}

// Logger is the logging interface the broker and transports depend on.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
