package mqtt

import (
	"crypto/tls"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// defaultReconnectInitial is the first retry delay after a lost connection.
	defaultReconnectInitial = 1 * time.Second

	// defaultReconnectMax caps the exponential backoff between retries.
	defaultReconnectMax = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Config contains the connection settings for one MQTT session. It maps
// from a target's mqtt_options in the routing document.
type Config struct {
	// Endpoint is the broker address, either "host:port" or a full URL
	// ("tcp://host:port", "ssl://host:port"). Required.
	Endpoint string

	// Region is recorded for diagnostics only; some managed brokers are
	// addressed per region but the session itself is endpoint-driven.
	Region string

	// ClientID identifies this session to the broker. Required (the
	// transport layer generates one when the routing document omits it).
	ClientID string

	// TLS enables a TLS session when Endpoint carries no explicit scheme.
	TLS bool

	// Username and Password are optional broker credentials.
	Username string
	Password string

	// QoS is the default quality-of-service level (0, 1 or 2).
	QoS int

	// ReconnectInitial and ReconnectMax bound the reconnect backoff.
	// Zero values use the package defaults.
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
}

// brokerURL derives the full broker URL from the endpoint and TLS flag.
func (c Config) brokerURL() string {
	if strings.Contains(c.Endpoint, "://") {
		return c.Endpoint
	}
	scheme := "tcp"
	if c.TLS {
		scheme = "ssl"
	}
	return scheme + "://" + c.Endpoint
}

// buildClientOptions creates paho MQTT options from the session config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Auto-reconnect with exponential backoff
//   - TLS configuration (if enabled)
//   - Clean session mode
func buildClientOptions(cfg Config) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.brokerURL())
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	// Clean session - start fresh on connect (no persistent session on broker)
	opts.SetCleanSession(true)

	// Auto-reconnect with exponential backoff
	initial := cfg.ReconnectInitial
	if initial <= 0 {
		initial = defaultReconnectInitial
	}
	maxDelay := cfg.ReconnectMax
	if maxDelay <= 0 {
		maxDelay = defaultReconnectMax
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(initial)
	opts.SetMaxReconnectInterval(maxDelay)

	opts.SetConnectTimeout(defaultConnectTimeout)

	// Keepalive - broker sends PINGs to detect dead connections
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.TLS || strings.HasPrefix(cfg.brokerURL(), "ssl://") {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}
