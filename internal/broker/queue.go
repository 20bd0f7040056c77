package broker

import (
	"time"
)

// defaultQueueSize is the per-target job buffer used when the broker is
// constructed without an explicit queue size. Enqueueing blocks once the
// buffer is full, which is the broker's backpressure mechanism.
const defaultQueueSize = 256

// deliveryJob is one pending publish attempt against a target.
type deliveryJob struct {
	msg        *Message
	onComplete CompletionFunc
}

// jobResult is handed to the queue's completion hook after each job, for
// delivery observers (audit log, metrics).
type jobResult struct {
	msg      *Message
	success  bool
	err      error
	duration time.Duration
}

// deliveryQueue is a per-target, strictly ordered, single-consumer job
// queue. One worker goroutine drains jobs FIFO and invokes the transport's
// blocking Publish for each, so at most one delivery is ever in flight for
// the owning target and completion callbacks never overlap.
type deliveryQueue struct {
	transport Transport
	jobs      chan deliveryJob
	stop      chan struct{}
	done      chan struct{}
	onResult  func(jobResult)
	log       Logger
}

func newDeliveryQueue(transport Transport, size int, onResult func(jobResult), log Logger) *deliveryQueue {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &deliveryQueue{
		transport: transport,
		jobs:      make(chan deliveryJob, size),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		onResult:  onResult,
		log:       log,
	}
}

// start launches the worker goroutine.
func (q *deliveryQueue) start() {
	go q.worker()
}

// enqueue submits a job, blocking if the buffer is full. Returns
// ErrShutdown once the queue has been stopped.
func (q *deliveryQueue) enqueue(job deliveryJob) error {
	select {
	case <-q.stop:
		return ErrShutdown
	default:
	}

	select {
	case q.jobs <- job:
		return nil
	case <-q.stop:
		return ErrShutdown
	}
}

// shutdown stops the worker after its current in-flight job completes.
// Jobs still queued but not started are discarded without invoking their
// completion callbacks.
func (q *deliveryQueue) shutdown() {
	close(q.stop)
	<-q.done

	discarded := len(q.jobs)
	if discarded > 0 {
		q.log.Warn("discarding queued deliveries on shutdown",
			"target", q.transport.FriendlyName(),
			"count", discarded,
		)
	}
}

// worker drains jobs in FIFO submission order, one at a time.
func (q *deliveryQueue) worker() {
	defer close(q.done)

	for {
		// Check stop before picking up the next job, so shutdown wins
		// even when jobs remain queued.
		select {
		case <-q.stop:
			return
		default:
		}

		select {
		case <-q.stop:
			return
		case job := <-q.jobs:
			q.run(job)
		}
	}
}

// run executes one job: transport I/O, then the completion callback, then
// the observer hook. The next job does not start until all three return.
func (q *deliveryQueue) run(job deliveryJob) {
	started := time.Now()
	err := q.transport.Publish(job.msg)
	duration := time.Since(started)

	success := err == nil
	if !success {
		q.log.Warn("async delivery failed",
			"target", q.transport.FriendlyName(),
			"payload_id", job.msg.Payload.ID(),
			"error", err,
		)
	}

	if job.onComplete != nil {
		job.onComplete(q.transport.FriendlyName(), job.msg, success)
	}

	if q.onResult != nil {
		q.onResult(jobResult{
			msg:      job.msg,
			success:  success,
			err:      err,
			duration: duration,
		})
	}
}
