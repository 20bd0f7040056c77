// Package broker implements the Gray Relay message broker core.
//
// The broker routes application events to named delivery targets according
// to a declarative JSON routing document. Each target is a configured
// instance of one transport plugin (file, mqtt, objectstore, redis, or any
// implementation registered under a protocol string) and owns a dedicated
// delivery queue with a single worker goroutine, so deliveries to one
// target are strictly serialized and complete in submission order.
//
// # Routing model
//
//   - A Payload is an immutable message body with id, optional correlation
//     id, and a creation timestamp.
//   - A pipe maps a message id to an ordered list of destinations, each
//     naming a target plus protocol-specific delivery options.
//   - Delivery options are template strings; ${id}, ${c_id}, ${timestamp}
//     and ${count} macros are expanded against the payload before the
//     message is handed to the target.
//   - Local subscribers registered for a message id are invoked
//     synchronously on every matching publish, including messages bridged
//     in from inbound wire traffic by a transport.
//
// # Guarantees
//
//   - At most one delivery is in flight per target; completion callbacks
//     fire in submission order and never overlap.
//   - Errors are local to the destination that produced them; one failing
//     destination never fails the pipe or the broker.
//   - Publishing a message id with no pipe and no subscriber is a no-op.
//   - Shutdown completes the in-flight job on each target and discards
//     queued jobs without invoking their callbacks.
//
// Thread Safety:
//   - All Broker methods are safe for concurrent use after Initialize.
package broker
