package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nerrad567/gray-relay/internal/broker"
)

// Protocol is the registry key for this transport.
const Protocol = "objectstore"

// Target option keys from the routing document's objectstore_options.
const (
	optionEndpoint     = "endpoint"
	optionAccessKey    = "access_key"
	optionSecretKey    = "secret_key"
	optionBucket       = "bucket"
	optionUseSSL       = "use_ssl"
	optionRegion       = "region"
	optionCreateBucket = "create_bucket"
)

// Per-message option keys. "bucket" may override the target default.
const (
	messageOptionBucket = "bucket"
	messageOptionKey    = "key"
)

// Operation timeouts.
const (
	uploadTimeout = 60 * time.Second
	probeTimeout  = 10 * time.Second
)

// Domain-specific errors for object-store deliveries.
var (
	// ErrMissingEndpoint is returned when no endpoint is configured.
	ErrMissingEndpoint = errors.New("objectstore: endpoint is required")

	// ErrMissingBucket is returned when neither the target nor the
	// message names a bucket.
	ErrMissingBucket = errors.New("objectstore: bucket is required")

	// ErrUploadFailed is returned when an object upload fails.
	ErrUploadFailed = errors.New("objectstore: upload failed")
)

// Transport uploads payloads to an S3-compatible object store.
type Transport struct {
	friendly      string
	client        *minio.Client
	defaultBucket string
	createBucket  bool
	log           broker.Logger
}

// New constructs an objectstore transport from a target's configuration.
// It is the broker.TransportFactory for the "objectstore" protocol.
//
// Required options: endpoint, access_key, secret_key. A target-level
// bucket is optional when every destination supplies its own.
func New(cfg broker.TargetConfig, log broker.Logger) (broker.Transport, error) {
	endpoint, ok := cfg.Options.String(optionEndpoint)
	if !ok || endpoint == "" {
		return nil, fmt.Errorf("%w (target %q)", ErrMissingEndpoint, cfg.Name)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4(
			cfg.Options.StringOr(optionAccessKey, ""),
			cfg.Options.StringOr(optionSecretKey, ""),
			"",
		),
		Secure: cfg.Options.Bool(optionUseSSL, false),
		Region: cfg.Options.StringOr(optionRegion, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: creating client for target %q: %w", cfg.Name, err)
	}

	return &Transport{
		friendly:      Protocol + "/" + cfg.Name,
		client:        client,
		defaultBucket: cfg.Options.StringOr(optionBucket, ""),
		createBucket:  cfg.Options.Bool(optionCreateBucket, false),
		log:           log,
	}, nil
}

// FriendlyName returns the diagnostic identity, e.g. "objectstore/archive".
func (t *Transport) FriendlyName() string {
	return t.friendly
}

// Start verifies the default bucket is reachable, creating it first when
// create_bucket is set. Targets without a default bucket skip the probe.
func (t *Transport) Start(_ broker.InboundFunc) error {
	if t.defaultBucket == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	exists, err := t.client.BucketExists(ctx, t.defaultBucket)
	if err != nil {
		return fmt.Errorf("%s: probing bucket %q: %w", t.friendly, t.defaultBucket, err)
	}
	if exists {
		return nil
	}
	if !t.createBucket {
		return fmt.Errorf("%s: %w: bucket %q does not exist", t.friendly, ErrMissingBucket, t.defaultBucket)
	}

	if err := t.client.MakeBucket(ctx, t.defaultBucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("%s: creating bucket %q: %w", t.friendly, t.defaultBucket, err)
	}
	return nil
}

// Publish uploads the message's serialized payload as one object. The SDK
// handles chunked multipart upload transparently for large payloads.
func (t *Transport) Publish(msg *broker.Message) error {
	bucket := msg.Option(messageOptionBucket)
	if bucket == "" {
		bucket = t.defaultBucket
	}
	if bucket == "" {
		return ErrMissingBucket
	}

	key, err := msg.RequireOption(messageOptionKey)
	if err != nil {
		return err
	}

	data := msg.Payload.Serialize()

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	_, err = t.client.PutObject(ctx, bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"},
	)
	if err != nil {
		return fmt.Errorf("%w: %s/%s: %w", ErrUploadFailed, bucket, key, err)
	}

	return nil
}

// Subscribe always fails; object stores have no inbound side.
func (t *Transport) Subscribe(_ string) error {
	return broker.ErrSubscriptionsNotSupported
}

// Unsubscribe always fails; object stores have no inbound side.
func (t *Transport) Unsubscribe(_ string) error {
	return broker.ErrSubscriptionsNotSupported
}

// Reconnect re-verifies the store is reachable. The underlying transport
// is plain HTTP, so there is no session to rebuild.
func (t *Transport) Reconnect() error {
	if t.defaultBucket == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	if _, err := t.client.BucketExists(ctx, t.defaultBucket); err != nil {
		return fmt.Errorf("%s: %w", t.friendly, err)
	}
	return nil
}

// Close is a no-op; the SDK's HTTP client needs no explicit shutdown.
func (t *Transport) Close() error {
	return nil
}
