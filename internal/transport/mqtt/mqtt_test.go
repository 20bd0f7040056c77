package mqtt

import (
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/gray-relay/internal/broker"
	mqttclient "github.com/nerrad567/gray-relay/internal/infrastructure/mqtt"
)

func targetConfig(options broker.OptionMap, subs ...broker.SubscriptionConfig) broker.TargetConfig {
	return broker.TargetConfig{
		Protocol:      Protocol,
		Name:          "cloud",
		Options:       options,
		Subscriptions: subs,
	}
}

// ============================================================================
// Factory Tests
// ============================================================================

func TestNew_RequiresEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		options broker.OptionMap
	}{
		{"no options", broker.OptionMap{}},
		{"empty endpoint", broker.OptionMap{"endpoint": ""}},
		{"non-string endpoint", broker.OptionMap{"endpoint": float64(1883)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(targetConfig(tt.options), nil)
			if !errors.Is(err, mqttclient.ErrMissingEndpoint) {
				t.Errorf("New = %v, want ErrMissingEndpoint", err)
			}
		})
	}
}

func TestNew_ValidatesQoS(t *testing.T) {
	_, err := New(targetConfig(broker.OptionMap{
		"endpoint": "broker.example:1883",
		"qos":      float64(3),
	}), nil)
	if !errors.Is(err, mqttclient.ErrInvalidQoS) {
		t.Errorf("New = %v, want ErrInvalidQoS", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	tr, err := New(targetConfig(broker.OptionMap{
		"endpoint": "broker.example:1883",
	}), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	mt, ok := tr.(*Transport)
	if !ok {
		t.Fatalf("New returned %T, want *Transport", tr)
	}
	if mt.qos != defaultQoS {
		t.Errorf("qos = %d, want default %d", mt.qos, defaultQoS)
	}
	if !strings.HasPrefix(mt.cfg.ClientID, "grayrelay-") {
		t.Errorf("generated ClientID = %q, want grayrelay- prefix", mt.cfg.ClientID)
	}
	if got := tr.FriendlyName(); got != "mqtt/cloud" {
		t.Errorf("FriendlyName() = %q, want mqtt/cloud", got)
	}
}

func TestNew_ExplicitOptions(t *testing.T) {
	tr, err := New(targetConfig(broker.OptionMap{
		"endpoint":  "ssl://broker.example:8883",
		"client_id": "relay-01",
		"tls":       true,
		"username":  "user",
		"password":  "secret",
		"qos":       float64(2),
	}), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	mt := tr.(*Transport)
	if mt.cfg.ClientID != "relay-01" {
		t.Errorf("ClientID = %q, want relay-01", mt.cfg.ClientID)
	}
	if !mt.cfg.TLS {
		t.Error("TLS should be enabled")
	}
	if mt.cfg.Username != "user" || mt.cfg.Password != "secret" {
		t.Error("credentials not carried through")
	}
	if mt.qos != 2 {
		t.Errorf("qos = %d, want 2", mt.qos)
	}
}

func TestNew_IndexesSubscriptions(t *testing.T) {
	tr, err := New(targetConfig(
		broker.OptionMap{"endpoint": "broker.example:1883"},
		broker.SubscriptionConfig{SubscriptionID: "cmd", Topic: "dev/1/cmd"},
		broker.SubscriptionConfig{SubscriptionID: "cfg", Topic: "dev/1/cfg"},
	), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	mt := tr.(*Transport)
	if len(mt.subs) != 2 {
		t.Fatalf("len(subs) = %d, want 2", len(mt.subs))
	}
	if mt.subs["cmd"].Topic != "dev/1/cmd" {
		t.Errorf("subs[cmd].Topic = %q, want dev/1/cmd", mt.subs["cmd"].Topic)
	}
}

// ============================================================================
// Pre-Start Behaviour Tests
// ============================================================================

func TestOperations_BeforeStart(t *testing.T) {
	tr, err := New(targetConfig(
		broker.OptionMap{"endpoint": "broker.example:1883"},
		broker.SubscriptionConfig{SubscriptionID: "cmd", Topic: "dev/1/cmd"},
	), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	msg := &broker.Message{
		Payload: broker.NewPayload([]byte("x")),
		Options: map[string]string{"topic": "a/b"},
	}
	if err := tr.Publish(msg); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Publish before Start = %v, want ErrNotStarted", err)
	}
	if err := tr.Subscribe("cmd"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Subscribe before Start = %v, want ErrNotStarted", err)
	}
	if err := tr.Unsubscribe("cmd"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Unsubscribe before Start = %v, want ErrNotStarted", err)
	}
	if err := tr.Reconnect(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Reconnect before Start = %v, want ErrNotStarted", err)
	}

	// Close must be safe before Start (failed-initialize cleanup path).
	if err := tr.Close(); err != nil {
		t.Errorf("Close before Start = %v, want nil", err)
	}
}

func TestSubscribe_UnknownID(t *testing.T) {
	tr, err := New(targetConfig(broker.OptionMap{"endpoint": "broker.example:1883"}), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := tr.Subscribe("never-configured"); !errors.Is(err, broker.ErrSubscriptionNotFound) {
		t.Errorf("Subscribe = %v, want ErrSubscriptionNotFound", err)
	}
	if err := tr.Unsubscribe("never-configured"); !errors.Is(err, broker.ErrSubscriptionNotFound) {
		t.Errorf("Unsubscribe = %v, want ErrSubscriptionNotFound", err)
	}
}
