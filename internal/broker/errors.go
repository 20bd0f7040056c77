package broker

import "errors"

// Domain-specific errors for broker operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotInitialized is returned when publishing before Initialize.
	ErrNotInitialized = errors.New("broker: not initialized")

	// ErrAlreadyInitialized is returned when Initialize is called twice.
	ErrAlreadyInitialized = errors.New("broker: already initialized")

	// ErrShutdown is returned for operations on a shut-down broker.
	ErrShutdown = errors.New("broker: shut down")

	// ErrUnknownProtocol is returned when a target names a protocol with
	// no registered transport factory.
	ErrUnknownProtocol = errors.New("broker: unknown protocol")

	// ErrDuplicateTarget is returned when two targets share a name.
	ErrDuplicateTarget = errors.New("broker: duplicate target name")

	// ErrUnknownTarget is returned when a destination names a target that
	// does not exist in the routing document.
	ErrUnknownTarget = errors.New("broker: unknown target")

	// ErrProtocolMismatch is returned when a destination carries message
	// options for a protocol other than its target's.
	ErrProtocolMismatch = errors.New("broker: destination options do not match target protocol")

	// ErrUnknownMacro is returned when a template references a macro that
	// the expander does not recognise.
	ErrUnknownMacro = errors.New("broker: unknown macro")

	// ErrMissingField is returned when a template references a payload
	// field that is not set (e.g. ${c_id} without a correlation id).
	ErrMissingField = errors.New("broker: payload field not set")

	// ErrEmptyTemplate is returned when a template expands to an empty
	// string.
	ErrEmptyTemplate = errors.New("broker: template expanded to empty string")

	// ErrMissingOption is returned when a destination or target omits a
	// required delivery option.
	ErrMissingOption = errors.New("broker: required option missing")

	// ErrSubscriptionsNotSupported is returned by transports that cannot
	// receive inbound messages (file, objectstore).
	ErrSubscriptionsNotSupported = errors.New("broker: subscriptions not supported by this transport")

	// ErrSubscriptionNotFound is returned when unsubscribing an unknown
	// subscription id.
	ErrSubscriptionNotFound = errors.New("broker: subscription not found")

	// ErrInvalidDocument is returned when the routing document is
	// structurally invalid.
	ErrInvalidDocument = errors.New("broker: invalid routing document")
)
