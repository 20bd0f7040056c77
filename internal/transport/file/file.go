package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nerrad567/gray-relay/internal/broker"
)

// Protocol is the registry key for this transport.
const Protocol = "file"

// Filesystem permission modes, matching the rest of the Gray Relay stack.
const (
	dirPermissions  = 0750
	filePermissions = 0640
)

// Delivery option keys.
const (
	optionDirectory = "directory"
	optionFilename  = "filename"
)

// Domain-specific errors for file deliveries.
var (
	// ErrCreateDirectory is returned when the destination directory
	// cannot be created.
	ErrCreateDirectory = errors.New("file: creating directory failed")

	// ErrWriteFailed is returned when writing the payload fails.
	ErrWriteFailed = errors.New("file: write failed")
)

// Transport writes payloads to the local filesystem.
type Transport struct {
	friendly string
	log      broker.Logger
}

// New constructs a file transport for the given target. It is the
// broker.TransportFactory for the "file" protocol.
//
// The file transport takes no target-level options; directory and filename
// arrive per message, already macro-expanded.
func New(cfg broker.TargetConfig, log broker.Logger) (broker.Transport, error) {
	if log == nil {
		log = nopLogger{}
	}
	return &Transport{
		friendly: Protocol + "/" + cfg.Name,
		log:      log,
	}, nil
}

// FriendlyName returns the diagnostic identity, e.g. "file/archive".
func (t *Transport) FriendlyName() string {
	return t.friendly
}

// Start is a no-op; the file transport has no session to establish.
func (t *Transport) Start(_ broker.InboundFunc) error {
	return nil
}

// Publish writes the message's serialized payload to directory/filename.
//
// Failure to create the directory or to write the file fails the publish.
// A close error after a fully successful write is logged as a warning but
// does not fail the publish, since the data reached the file.
func (t *Transport) Publish(msg *broker.Message) error {
	dir, err := msg.RequireOption(optionDirectory)
	if err != nil {
		return err
	}
	name, err := msg.RequireOption(optionFilename)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrCreateDirectory, dir, err)
	}

	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return fmt.Errorf("%w: opening %q: %w", ErrWriteFailed, path, err)
	}

	if _, err := f.Write(msg.Payload.Serialize()); err != nil {
		// Close error is irrelevant once the write has failed.
		_ = f.Close()
		return fmt.Errorf("%w: writing %q: %w", ErrWriteFailed, path, err)
	}

	if err := f.Close(); err != nil {
		t.log.Warn("close after successful write failed",
			"path", path,
			"error", err,
		)
	}

	return nil
}

// Subscribe always fails; the file transport has no inbound side.
func (t *Transport) Subscribe(_ string) error {
	return broker.ErrSubscriptionsNotSupported
}

// Unsubscribe always fails; the file transport has no inbound side.
func (t *Transport) Unsubscribe(_ string) error {
	return broker.ErrSubscriptionsNotSupported
}

// Reconnect is a no-op success; the file transport is connectionless.
func (t *Transport) Reconnect() error {
	return nil
}

// Close is a no-op; every publish opens and closes its own file.
func (t *Transport) Close() error {
	return nil
}

// nopLogger keeps the transport usable without a configured logger.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
