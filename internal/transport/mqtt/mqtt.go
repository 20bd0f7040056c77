package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-relay/internal/broker"
	mqttclient "github.com/nerrad567/gray-relay/internal/infrastructure/mqtt"
)

// Protocol is the registry key for this transport.
const Protocol = "mqtt"

// Target option keys from the routing document's mqtt_options.
const (
	optionEndpoint         = "endpoint"
	optionRegion           = "region"
	optionClientID         = "client_id"
	optionTLS              = "tls"
	optionUsername         = "username"
	optionPassword         = "password"
	optionQoS              = "qos"
	optionReconnectInitial = "reconnect_initial"
	optionReconnectMax     = "reconnect_max"
)

// Per-message option keys.
const (
	messageOptionTopic    = "topic"
	messageOptionRetained = "retained"
)

// defaultQoS is used when the target options carry no qos.
const defaultQoS = 1

// ErrNotStarted is returned for operations before Start has connected the
// wire session.
var ErrNotStarted = errors.New("mqtt transport: not started")

// Transport publishes to and subscribes from an MQTT broker.
type Transport struct {
	friendly string
	cfg      mqttclient.Config
	qos      byte
	subs     map[string]broker.SubscriptionConfig
	log      broker.Logger

	mu      sync.RWMutex
	client  *mqttclient.Client
	inbound broker.InboundFunc
	active  map[string]bool
}

// New constructs an mqtt transport from a target's configuration. It is
// the broker.TransportFactory for the "mqtt" protocol.
//
// Required option: endpoint. A client_id is generated when absent.
// The wire session is not established until Start.
func New(cfg broker.TargetConfig, log broker.Logger) (broker.Transport, error) {
	endpoint, ok := cfg.Options.String(optionEndpoint)
	if !ok || endpoint == "" {
		return nil, fmt.Errorf("%w (target %q)", mqttclient.ErrMissingEndpoint, cfg.Name)
	}

	clientID := cfg.Options.StringOr(optionClientID, "")
	if clientID == "" {
		clientID = "grayrelay-" + uuid.NewString()[:8]
	}

	qos := cfg.Options.Int(optionQoS, defaultQoS)
	if qos < 0 || qos > 2 {
		return nil, fmt.Errorf("%w (target %q)", mqttclient.ErrInvalidQoS, cfg.Name)
	}

	subs := make(map[string]broker.SubscriptionConfig, len(cfg.Subscriptions))
	for _, sub := range cfg.Subscriptions {
		subs[sub.SubscriptionID] = sub
	}

	return &Transport{
		friendly: Protocol + "/" + cfg.Name,
		cfg: mqttclient.Config{
			Endpoint:         endpoint,
			Region:           cfg.Options.StringOr(optionRegion, ""),
			ClientID:         clientID,
			TLS:              cfg.Options.Bool(optionTLS, false),
			Username:         cfg.Options.StringOr(optionUsername, ""),
			Password:         cfg.Options.StringOr(optionPassword, ""),
			QoS:              qos,
			ReconnectInitial: time.Duration(cfg.Options.Int(optionReconnectInitial, 0)) * time.Second,
			ReconnectMax:     time.Duration(cfg.Options.Int(optionReconnectMax, 0)) * time.Second,
		},
		qos:    byte(qos),
		subs:   subs,
		log:    log,
		active: make(map[string]bool, len(cfg.Subscriptions)),
	}, nil
}

// FriendlyName returns the diagnostic identity, e.g. "mqtt/cloud".
func (t *Transport) FriendlyName() string {
	return t.friendly
}

// Start connects the wire session and activates every configured inbound
// subscription. Received wire messages re-enter the broker through
// inbound under their subscription id.
func (t *Transport) Start(inbound broker.InboundFunc) error {
	client, err := mqttclient.Connect(t.cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", t.friendly, err)
	}
	if t.log != nil {
		client.SetLogger(t.log)
	}

	t.mu.Lock()
	t.client = client
	t.inbound = inbound
	t.mu.Unlock()

	for id := range t.subs {
		if err := t.Subscribe(id); err != nil {
			_ = client.Close()
			return fmt.Errorf("%s: activating subscription %q: %w", t.friendly, id, err)
		}
	}

	return nil
}

// Publish delivers one message to the topic in its resolved options.
// The optional "retained" option ("true"/"false") marks the message as
// retained on the broker; "qos" overrides the target default.
func (t *Transport) Publish(msg *broker.Message) error {
	client := t.getClient()
	if client == nil {
		return ErrNotStarted
	}

	topic, err := msg.RequireOption(messageOptionTopic)
	if err != nil {
		return err
	}

	qos := t.qos
	if override := msg.Option(optionQoS); override != "" {
		switch override {
		case "0":
			qos = 0
		case "1":
			qos = 1
		case "2":
			qos = 2
		default:
			return fmt.Errorf("%w: %q", mqttclient.ErrInvalidQoS, override)
		}
	}
	retained := msg.Option(messageOptionRetained) == "true"

	return client.Publish(topic, msg.Payload.Serialize(), qos, retained)
}

// Subscribe activates the configured subscription with the given id,
// bridging matching inbound messages into the broker.
func (t *Transport) Subscribe(subscriptionID string) error {
	sub, ok := t.subs[subscriptionID]
	if !ok {
		return fmt.Errorf("%w: %q", broker.ErrSubscriptionNotFound, subscriptionID)
	}

	t.mu.RLock()
	client := t.client
	inbound := t.inbound
	t.mu.RUnlock()
	if client == nil {
		return ErrNotStarted
	}

	err := client.Subscribe(sub.Topic, t.qos, func(_ string, payload []byte) error {
		if inbound != nil {
			inbound(sub.SubscriptionID, broker.NewPayload(payload))
		}
		return nil
	})
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.active[subscriptionID] = true
	t.mu.Unlock()
	return nil
}

// Unsubscribe deactivates the configured subscription with the given id.
func (t *Transport) Unsubscribe(subscriptionID string) error {
	sub, ok := t.subs[subscriptionID]
	if !ok {
		return fmt.Errorf("%w: %q", broker.ErrSubscriptionNotFound, subscriptionID)
	}

	client := t.getClient()
	if client == nil {
		return ErrNotStarted
	}

	if err := client.Unsubscribe(sub.Topic); err != nil {
		return err
	}

	t.mu.Lock()
	delete(t.active, subscriptionID)
	t.mu.Unlock()
	return nil
}

// Reconnect re-establishes the wire session. Paho's auto-reconnect makes
// this a no-op while the session is healthy.
func (t *Transport) Reconnect() error {
	client := t.getClient()
	if client == nil {
		return ErrNotStarted
	}
	return client.Reconnect()
}

// Close disconnects the wire session. Safe to call before Start.
func (t *Transport) Close() error {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

func (t *Transport) getClient() *mqttclient.Client {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.client
}
