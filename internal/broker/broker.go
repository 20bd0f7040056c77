package broker

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Options configures a Broker.
type Options struct {
	// Registry supplies the transport factories, keyed by protocol.
	// Required.
	Registry *Registry

	// Logger receives broker and transport diagnostics. Defaults to a
	// no-op logger.
	Logger Logger

	// QueueSize is the per-target job buffer. Defaults to 256. Enqueueing
	// blocks once a target's buffer is full.
	QueueSize int

	// Observers receive a record for every completed delivery attempt.
	Observers []DeliveryObserver
}

// route is one resolved destination of a pipe: the owning target plus the
// destination's unexpanded option templates.
type route struct {
	target  *Target
	options OptionMap
}

// Broker owns all targets and pipes, parses the routing document, and
// exposes Publish, PublishAsync, Subscribe, Unsubscribe and Shutdown.
type Broker struct {
	registry  *Registry
	log       Logger
	queueSize int
	observers []DeliveryObserver

	mu          sync.Mutex
	initialized bool
	stopped     bool

	// Immutable after Initialize.
	targets     map[string]*Target
	targetOrder []string
	routes      map[string][]route
	pipeCount   int

	subs     *subscriberRegistry
	counters *counterTable
}

// New creates an uninitialized Broker. Call Initialize with a routing
// document before publishing.
func New(opts Options) *Broker {
	log := opts.Logger
	if log == nil {
		log = noopLogger{}
	}
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	return &Broker{
		registry:  registry,
		log:       log,
		queueSize: opts.QueueSize,
		observers: opts.Observers,
		subs:      newSubscriberRegistry(),
		counters:  newCounterTable(),
	}
}

// Initialize parses the JSON routing document, constructs every target and
// pipe, then starts the transports and their delivery workers.
//
// Initialization is atomic: an unknown protocol, a duplicate target name,
// a destination naming a missing target, mismatched destination options or
// a transport start failure leave the broker uninitialized with every
// already-created transport closed.
func (b *Broker) Initialize(document []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return ErrShutdown
	}
	if b.initialized {
		return ErrAlreadyInitialized
	}

	doc, err := ParseDocument(document)
	if err != nil {
		return err
	}

	targets, order, err := b.buildTargets(doc)
	if err != nil {
		closeTargets(targets, b.log)
		return err
	}

	routes, pipeCount, err := buildRoutes(doc, targets)
	if err != nil {
		closeTargets(targets, b.log)
		return err
	}

	// Start transports only after the whole document has validated.
	started := make([]*Target, 0, len(order))
	for _, name := range order {
		target := targets[name]
		if startErr := target.transport.Start(b.handleInbound); startErr != nil {
			for _, t := range started {
				if closeErr := t.transport.Close(); closeErr != nil {
					b.log.Warn("closing transport after failed start", "target", t.name, "error", closeErr)
				}
			}
			closeTargets(targets, b.log)
			return fmt.Errorf("starting target %q: %w", name, startErr)
		}
		started = append(started, target)
		target.queue.start()
	}

	b.targets = targets
	b.targetOrder = order
	b.routes = routes
	b.pipeCount = pipeCount
	b.initialized = true

	b.log.Info("broker initialized",
		"targets", len(order),
		"pipes", pipeCount,
	)
	return nil
}

// buildTargets constructs a Target (transport plus delivery queue) for
// every entry in the document's target array.
func (b *Broker) buildTargets(doc *Document) (map[string]*Target, []string, error) {
	targets := make(map[string]*Target, len(doc.Targets))
	order := make([]string, 0, len(doc.Targets))

	for _, cfg := range doc.Targets {
		if _, exists := targets[cfg.Name]; exists {
			return targets, order, fmt.Errorf("%w: %q", ErrDuplicateTarget, cfg.Name)
		}

		transport, err := b.registry.newTransport(cfg, b.log)
		if err != nil {
			return targets, order, err
		}

		target := &Target{
			name:      cfg.Name,
			protocol:  cfg.Protocol,
			transport: transport,
		}
		target.queue = newDeliveryQueue(transport, b.queueSize, b.asyncResultHook(target), b.log)

		targets[cfg.Name] = target
		order = append(order, cfg.Name)
	}

	return targets, order, nil
}

// buildRoutes flattens the document's pipes into a message-id → route
// table, preserving document order across pipes that share a message id.
func buildRoutes(doc *Document, targets map[string]*Target) (map[string][]route, int, error) {
	routes := make(map[string][]route, len(doc.Pipes))

	for _, pipe := range doc.Pipes {
		for _, dest := range pipe.Destinations {
			target, ok := targets[dest.TargetName]
			if !ok {
				return nil, 0, fmt.Errorf("%w: pipe %q names target %q",
					ErrUnknownTarget, pipe.MessageID, dest.TargetName)
			}
			if dest.OptionsProtocol != "" && dest.OptionsProtocol != target.protocol {
				return nil, 0, fmt.Errorf("%w: pipe %q destination %q carries %s_message_options for a %s target",
					ErrProtocolMismatch, pipe.MessageID, dest.TargetName,
					dest.OptionsProtocol, target.protocol)
			}

			routes[pipe.MessageID] = append(routes[pipe.MessageID], route{
				target:  target,
				options: dest.Options,
			})
		}
	}

	return routes, len(doc.Pipes), nil
}

// closeTargets closes every transport built so far during a failed
// Initialize. Transports must tolerate Close before Start.
func closeTargets(targets map[string]*Target, log Logger) {
	for name, target := range targets {
		if err := target.transport.Close(); err != nil {
			log.Warn("closing transport during failed initialize", "target", name, "error", err)
		}
	}
}

// Publish routes a payload synchronously: local subscribers first, then
// every matching destination on the caller's goroutine, blocking for the
// full transport I/O of each.
//
// A message id with no pipe and no subscriber is a silent no-op. Errors
// are local to the destination that produced them; every destination is
// always attempted and the failures are returned joined.
func (b *Broker) Publish(messageID string, p *Payload) error {
	if err := b.checkRunning(); err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("broker: nil payload for message %q", messageID)
	}

	b.subs.invoke(messageID, p)

	var errs []error
	for _, rt := range b.routes[messageID] {
		msg, err := b.buildMessage(messageID, p, rt)
		if err != nil {
			errs = append(errs, err)
			b.notifyObservers(b.record(rt, messageID, p, false, false, err, 0))
			continue
		}

		started := time.Now()
		err = rt.target.publishSync(msg)
		duration := time.Since(started)

		if err != nil {
			errs = append(errs, fmt.Errorf("target %q: %w", rt.target.name, err))
		}
		b.notifyObservers(b.record(rt, messageID, p, false, err == nil, err, duration))
	}

	return errors.Join(errs...)
}

// PublishAsync routes a payload asynchronously: local subscribers run
// synchronously on the caller's goroutine, then one job per matching
// destination is enqueued on that destination's target.
//
// onComplete (optional) is invoked exactly once per destination. For
// template failures it is invoked immediately on the caller's goroutine
// with success=false; the returned error covers enqueue failures only.
func (b *Broker) PublishAsync(messageID string, p *Payload, onComplete CompletionFunc) error {
	if err := b.checkRunning(); err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("broker: nil payload for message %q", messageID)
	}

	b.subs.invoke(messageID, p)

	var errs []error
	for _, rt := range b.routes[messageID] {
		msg, err := b.buildMessage(messageID, p, rt)
		if err != nil {
			b.log.Warn("async delivery failed before enqueue",
				"target", rt.target.name,
				"message_id", messageID,
				"error", err,
			)
			b.notifyObservers(b.record(rt, messageID, p, true, false, err, 0))
			if onComplete != nil {
				onComplete(rt.target.transport.FriendlyName(), &Message{MessageID: messageID, Payload: p}, false)
			}
			continue
		}

		if err := rt.target.publishAsync(msg, onComplete); err != nil {
			errs = append(errs, fmt.Errorf("target %q: %w", rt.target.name, err))
		}
	}

	return errors.Join(errs...)
}

// Subscribe registers a local callback for a message id and returns its
// subscription handle. Callbacks run synchronously on every matching
// publish, including bridged inbound wire messages.
func (b *Broker) Subscribe(messageID string, fn SubscriberFunc) (string, error) {
	b.mu.Lock()
	stopped := b.stopped
	b.mu.Unlock()
	if stopped {
		return "", ErrShutdown
	}
	if fn == nil {
		return "", fmt.Errorf("broker: nil subscriber for message %q", messageID)
	}
	return b.subs.add(messageID, fn), nil
}

// Unsubscribe removes a local callback by its subscription handle.
func (b *Broker) Unsubscribe(subscriptionID string) error {
	return b.subs.remove(subscriptionID)
}

// Shutdown stops every target's worker after its in-flight job completes,
// discards queued jobs without invoking their callbacks, and closes every
// transport. Safe to call more than once.
func (b *Broker) Shutdown() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	initialized := b.initialized
	b.mu.Unlock()

	if !initialized {
		return
	}

	for _, name := range b.targetOrder {
		b.targets[name].queue.shutdown()
	}
	for _, name := range b.targetOrder {
		if err := b.targets[name].transport.Close(); err != nil {
			b.log.Warn("closing transport", "target", name, "error", err)
		}
	}

	// ${count} counters live for the broker instance's lifetime only.
	b.counters = newCounterTable()

	b.log.Info("broker shut down", "targets", len(b.targetOrder))
}

// TargetCount returns the number of configured targets.
func (b *Broker) TargetCount() int {
	return len(b.targetOrder)
}

// PipeCount returns the number of pipes in the routing document.
func (b *Broker) PipeCount() int {
	return b.pipeCount
}

// checkRunning verifies the broker is initialized and not shut down.
func (b *Broker) checkRunning() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return ErrShutdown
	}
	if !b.initialized {
		return ErrNotInitialized
	}
	return nil
}

// handleInbound bridges an inbound wire message back into the broker as a
// synchronous publish under the configured subscription id.
func (b *Broker) handleInbound(subscriptionID string, p *Payload) {
	if err := b.Publish(subscriptionID, p); err != nil {
		b.log.Warn("bridged publish failed",
			"subscription_id", subscriptionID,
			"error", err,
		)
	}
}

// buildMessage expands the route's option templates against the payload
// and produces the transport-specific message.
func (b *Broker) buildMessage(messageID string, p *Payload, rt route) (*Message, error) {
	opts := make(map[string]string, len(rt.options))
	for key, value := range rt.options {
		switch v := value.(type) {
		case string:
			expanded, err := expandTemplate(v, messageID, p, b.counters)
			if err != nil {
				return nil, fmt.Errorf("target %q option %q: %w", rt.target.name, key, err)
			}
			opts[key] = expanded
		case bool:
			opts[key] = strconv.FormatBool(v)
		case float64:
			opts[key] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			opts[key] = fmt.Sprintf("%v", v)
		}
	}

	return &Message{
		MessageID: messageID,
		Payload:   p,
		Options:   opts,
	}, nil
}

// asyncResultHook adapts a target's queue results into delivery records.
func (b *Broker) asyncResultHook(target *Target) func(jobResult) {
	return func(res jobResult) {
		b.notifyObservers(DeliveryRecord{
			TargetName:  target.name,
			Protocol:    target.protocol,
			MessageID:   res.msg.MessageID,
			PayloadID:   res.msg.Payload.ID(),
			Async:       true,
			Success:     res.success,
			Err:         res.err,
			Duration:    res.duration,
			CompletedAt: time.Now().UTC(),
		})
	}
}

// record assembles a delivery record for a synchronous attempt or a
// template failure.
func (b *Broker) record(rt route, messageID string, p *Payload, async, success bool, err error, duration time.Duration) DeliveryRecord {
	return DeliveryRecord{
		TargetName:  rt.target.name,
		Protocol:    rt.target.protocol,
		MessageID:   messageID,
		PayloadID:   p.ID(),
		Async:       async,
		Success:     success,
		Err:         err,
		Duration:    duration,
		CompletedAt: time.Now().UTC(),
	}
}

// notifyObservers fans a record out to every observer, recovering panics
// so a misbehaving observer cannot take down a delivery worker.
func (b *Broker) notifyObservers(rec DeliveryRecord) {
	for _, obs := range b.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("delivery observer panic recovered",
						"target", rec.TargetName,
						"panic", r,
					)
				}
			}()
			obs.DeliveryCompleted(rec)
		}()
	}
}
