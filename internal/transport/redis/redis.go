package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nerrad567/gray-relay/internal/broker"
)

// Protocol is the registry key for this transport.
const Protocol = "redis"

// Target option keys from the routing document's redis_options.
const (
	optionAddr         = "addr"
	optionUsername     = "username"
	optionPassword     = "password"
	optionDB           = "db"
	optionStreamMaxLen = "stream_max_len"
)

// Per-message option keys.
const messageOptionStream = "stream"

// Stream entry field names.
const (
	fieldPayloadID     = "payload_id"
	fieldCorrelationID = "correlation_id"
	fieldMessageID     = "message_id"
	fieldBody          = "body"
	fieldCreatedAt     = "created_at"
)

// Operation constants.
const (
	publishTimeout = 10 * time.Second
	readBlock      = 5 * time.Second
	readBatch      = 16
	defaultGroup   = "grayrelay"
)

// Domain-specific errors for redis deliveries.
var (
	// ErrMissingAddr is returned when no server address is configured.
	ErrMissingAddr = errors.New("redis: addr is required")

	// ErrNotStarted is returned for operations before Start.
	ErrNotStarted = errors.New("redis: transport not started")
)

// Transport appends payloads to Redis streams and consumes configured
// streams through consumer groups.
type Transport struct {
	friendly string
	client   *goredis.Client
	maxLen   int64
	subs     map[string]broker.SubscriptionConfig
	consumer string
	log      broker.Logger

	mu      sync.Mutex
	inbound broker.InboundFunc
	started bool
	cancels map[string]context.CancelFunc
	readers sync.WaitGroup
}

// New constructs a redis transport from a target's configuration. It is
// the broker.TransportFactory for the "redis" protocol.
//
// Required option: addr. The connection is verified at Start, not here.
func New(cfg broker.TargetConfig, log broker.Logger) (broker.Transport, error) {
	addr, ok := cfg.Options.String(optionAddr)
	if !ok || addr == "" {
		return nil, fmt.Errorf("%w (target %q)", ErrMissingAddr, cfg.Name)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Username: cfg.Options.StringOr(optionUsername, ""),
		Password: cfg.Options.StringOr(optionPassword, ""),
		DB:       cfg.Options.Int(optionDB, 0),
	})

	subs := make(map[string]broker.SubscriptionConfig, len(cfg.Subscriptions))
	for _, sub := range cfg.Subscriptions {
		subs[sub.SubscriptionID] = sub
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "grayrelay"
	}

	return &Transport{
		friendly: Protocol + "/" + cfg.Name,
		client:   client,
		maxLen:   int64(cfg.Options.Int(optionStreamMaxLen, 0)),
		subs:     subs,
		consumer: fmt.Sprintf("%s-%s-%d", defaultGroup, hostname, os.Getpid()),
		log:      log,
		cancels:  make(map[string]context.CancelFunc),
	}, nil
}

// FriendlyName returns the diagnostic identity, e.g. "redis/events".
func (t *Transport) FriendlyName() string {
	return t.friendly
}

// Start verifies the server is reachable and activates every configured
// subscription's consumer loop.
func (t *Transport) Start(inbound broker.InboundFunc) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := t.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%s: ping: %w", t.friendly, err)
	}

	t.mu.Lock()
	t.inbound = inbound
	t.started = true
	t.mu.Unlock()

	for id := range t.subs {
		if err := t.Subscribe(id); err != nil {
			_ = t.Close()
			return fmt.Errorf("%s: activating subscription %q: %w", t.friendly, id, err)
		}
	}

	return nil
}

// Publish appends the message to the stream in its resolved options via
// XADD. When stream_max_len is configured the stream is trimmed
// approximately to that length.
func (t *Transport) Publish(msg *broker.Message) error {
	stream, err := msg.RequireOption(messageOptionStream)
	if err != nil {
		return err
	}

	values := map[string]any{
		fieldMessageID: msg.MessageID,
		fieldPayloadID: msg.Payload.ID(),
		fieldBody:      msg.Payload.Serialize(),
		fieldCreatedAt: msg.Payload.CreatedAt().UnixNano(),
	}
	if cid := msg.Payload.CorrelationID(); cid != "" {
		values[fieldCorrelationID] = cid
	}

	args := &goredis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: values,
	}
	if t.maxLen > 0 {
		args.MaxLen = t.maxLen
		args.Approx = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := t.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: xadd to %q: %w", stream, err)
	}
	return nil
}

// Subscribe activates the configured subscription with the given id: the
// consumer group is created if absent and a reader goroutine bridges
// entries into the broker.
func (t *Transport) Subscribe(subscriptionID string) error {
	sub, ok := t.subs[subscriptionID]
	if !ok {
		return fmt.Errorf("%w: %q", broker.ErrSubscriptionNotFound, subscriptionID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return ErrNotStarted
	}
	if _, active := t.cancels[subscriptionID]; active {
		return nil
	}

	group := sub.Group
	if group == "" {
		group = defaultGroup
	}

	// Create the consumer group, tolerating an existing one.
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	err := t.client.XGroupCreateMkStream(ctx, sub.Topic, group, "$").Err()
	cancel()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("redis: creating group %q on %q: %w", group, sub.Topic, err)
	}

	readCtx, readCancel := context.WithCancel(context.Background())
	t.cancels[subscriptionID] = readCancel
	t.readers.Add(1)
	go t.readLoop(readCtx, sub, group)

	return nil
}

// Unsubscribe stops the reader loop for the given subscription id.
func (t *Transport) Unsubscribe(subscriptionID string) error {
	if _, ok := t.subs[subscriptionID]; !ok {
		return fmt.Errorf("%w: %q", broker.ErrSubscriptionNotFound, subscriptionID)
	}

	t.mu.Lock()
	cancel, active := t.cancels[subscriptionID]
	delete(t.cancels, subscriptionID)
	t.mu.Unlock()

	if active {
		cancel()
	}
	return nil
}

// Reconnect verifies the server is reachable. go-redis pools and redials
// connections itself, so there is no session to rebuild.
func (t *Transport) Reconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := t.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%s: %w", t.friendly, err)
	}
	return nil
}

// Close stops every reader loop and releases the connection pool.
func (t *Transport) Close() error {
	t.mu.Lock()
	for id, cancel := range t.cancels {
		cancel()
		delete(t.cancels, id)
	}
	t.started = false
	t.mu.Unlock()

	t.readers.Wait()
	return t.client.Close()
}

// readLoop consumes one subscription's stream through its consumer group
// and bridges each entry into the broker.
func (t *Transport) readLoop(ctx context.Context, sub broker.SubscriptionConfig, group string) {
	defer t.readers.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := t.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    group,
			Consumer: t.consumer,
			Streams:  []string{sub.Topic, ">"},
			Count:    readBatch,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, goredis.Nil) {
				continue // block timeout, nothing pending
			}
			if t.log != nil {
				t.log.Warn("redis read failed",
					"stream", sub.Topic,
					"subscription_id", sub.SubscriptionID,
					"error", err,
				)
			}
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, entry := range stream.Messages {
				t.bridge(ctx, sub, group, stream.Stream, entry)
			}
		}
	}
}

// bridge converts one stream entry into a payload, hands it to the broker
// and acknowledges it. Entries are acknowledged regardless of downstream
// delivery outcome; the broker owns error reporting from there.
func (t *Transport) bridge(ctx context.Context, sub broker.SubscriptionConfig, group, stream string, entry goredis.XMessage) {
	t.mu.Lock()
	inbound := t.inbound
	t.mu.Unlock()

	if inbound != nil {
		var body []byte
		if raw, ok := entry.Values[fieldBody].(string); ok {
			body = []byte(raw)
		}
		opts := broker.PayloadOptions{}
		if id, ok := entry.Values[fieldPayloadID].(string); ok {
			opts.ID = id
		}
		if cid, ok := entry.Values[fieldCorrelationID].(string); ok {
			opts.CorrelationID = cid
		}

		inbound(sub.SubscriptionID, broker.NewPayloadWithOptions(body, opts))
	}

	if err := t.client.XAck(ctx, stream, group, entry.ID).Err(); err != nil && ctx.Err() == nil {
		if t.log != nil {
			t.log.Warn("redis ack failed", "stream", stream, "entry", entry.ID, "error", err)
		}
	}
}
