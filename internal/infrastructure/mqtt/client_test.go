package mqtt

import (
	"errors"
	"testing"
	"time"
)

// ============================================================================
// Config Tests
// ============================================================================

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"bare host", Config{Endpoint: "broker.example:1883"}, "tcp://broker.example:1883"},
		{"bare host with tls", Config{Endpoint: "broker.example:8883", TLS: true}, "ssl://broker.example:8883"},
		{"explicit tcp scheme", Config{Endpoint: "tcp://broker.example:1883"}, "tcp://broker.example:1883"},
		{"explicit ssl scheme", Config{Endpoint: "ssl://broker.example:8883"}, "ssl://broker.example:8883"},
		{"scheme wins over tls flag", Config{Endpoint: "tcp://broker.example:1883", TLS: true}, "tcp://broker.example:1883"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.brokerURL(); got != tt.want {
				t.Errorf("brokerURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	opts := buildClientOptions(Config{
		Endpoint: "broker.example:1883",
		ClientID: "relay-test",
		Username: "user",
		Password: "secret",
	})

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://broker.example:1883" {
		t.Errorf("Servers = %v, want [tcp://broker.example:1883]", opts.Servers)
	}
	if opts.ClientID != "relay-test" {
		t.Errorf("ClientID = %q, want relay-test", opts.ClientID)
	}
	if opts.Username != "user" {
		t.Errorf("Username = %q, want user", opts.Username)
	}
	if !opts.CleanSession {
		t.Error("CleanSession should be enabled")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect should be enabled")
	}
	if opts.MaxReconnectInterval != defaultReconnectMax {
		t.Errorf("MaxReconnectInterval = %v, want %v", opts.MaxReconnectInterval, defaultReconnectMax)
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig should be nil without TLS")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	opts := buildClientOptions(Config{
		Endpoint: "broker.example:8883",
		ClientID: "relay-test",
		TLS:      true,
	})

	if opts.TLSConfig == nil {
		t.Fatal("TLSConfig should be set when TLS is enabled")
	}
	if opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("MinVersion = %d, want %d", opts.TLSConfig.MinVersion, tlsMinVersion)
	}
}

func TestBuildClientOptions_ReconnectOverrides(t *testing.T) {
	opts := buildClientOptions(Config{
		Endpoint:         "broker.example:1883",
		ClientID:         "relay-test",
		ReconnectInitial: 2 * time.Second,
		ReconnectMax:     30 * time.Second,
	})

	if opts.ConnectRetryInterval != 2*time.Second {
		t.Errorf("ConnectRetryInterval = %v, want 2s", opts.ConnectRetryInterval)
	}
	if opts.MaxReconnectInterval != 30*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 30s", opts.MaxReconnectInterval)
	}
}

// ============================================================================
// Connect Validation Tests
// ============================================================================

func TestConnect_Validation(t *testing.T) {
	if _, err := Connect(Config{}); !errors.Is(err, ErrMissingEndpoint) {
		t.Errorf("Connect(no endpoint) = %v, want ErrMissingEndpoint", err)
	}
	if _, err := Connect(Config{Endpoint: "x:1883", QoS: 3}); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Connect(qos 3) = %v, want ErrInvalidQoS", err)
	}
}

// ============================================================================
// Disconnected Client Tests
// ============================================================================

func disconnectedClient() *Client {
	return &Client{subscriptions: make(map[string]subscription)}
}

func TestPublish_Validation(t *testing.T) {
	c := disconnectedClient()

	if err := c.Publish("", []byte("x"), 0, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish(empty topic) = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("t", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish(qos 3) = %v, want ErrInvalidQoS", err)
	}

	oversized := make([]byte, maxPayloadSize+1)
	if err := c.Publish("t", oversized, 0, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish(oversized) = %v, want ErrPublishFailed", err)
	}

	if err := c.Publish("t", []byte("x"), 0, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish(disconnected) = %v, want ErrNotConnected", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := disconnectedClient()
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 0, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty topic) = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("t", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("t", 0, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("t", 0, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) = %v, want ErrNotConnected", err)
	}
}

func TestSubscriptionTracking(t *testing.T) {
	c := disconnectedClient()

	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
	if c.HasSubscription("t") {
		t.Error("HasSubscription should be false for untracked topic")
	}
}

func TestIsConnected_Default(t *testing.T) {
	c := disconnectedClient()
	if c.IsConnected() {
		t.Error("new client should report disconnected")
	}
}
