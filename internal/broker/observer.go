package broker

import "time"

// DeliveryRecord describes one completed delivery attempt, successful or
// not. Records are handed to delivery observers after the transport I/O
// and the caller's completion callback have finished.
type DeliveryRecord struct {
	// TargetName is the routing-document name of the delivering target.
	TargetName string

	// Protocol is the target's protocol string.
	Protocol string

	// MessageID is the logical message id the publish was routed under.
	MessageID string

	// PayloadID is the delivered payload's unique id.
	PayloadID string

	// Async reports whether the delivery went through the target's queue.
	Async bool

	// Success reports whether the transport I/O succeeded.
	Success bool

	// Err is the transport or template error for failed deliveries.
	Err error

	// Duration is the transport I/O time (zero for template failures).
	Duration time.Duration

	// CompletedAt is when the delivery attempt finished.
	CompletedAt time.Time
}

// DeliveryObserver receives a record for every completed delivery attempt.
//
// Observers run on the delivering goroutine (the publisher for sync
// deliveries, the target's worker for async ones) and must not block for
// extended periods. Observer errors never affect delivery outcomes.
type DeliveryObserver interface {
	DeliveryCompleted(rec DeliveryRecord)
}
