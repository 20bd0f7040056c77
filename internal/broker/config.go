package broker

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Suffixes for the protocol-prefixed keys in the routing document
// ("file_options", "mqtt_subscriptions", "mqtt_message_options", ...).
const (
	optionsSuffix        = "_options"
	subscriptionsSuffix  = "_subscriptions"
	messageOptionsSuffix = "_message_options"
)

// Document is the parsed routing document: the targets the broker owns and
// the pipes that route message ids to them.
type Document struct {
	Targets []TargetConfig `json:"targets"`
	Pipes   []PipeConfig   `json:"pipes"`
}

// TargetConfig describes one named transport instance.
//
// In the JSON document the protocol-specific option bag and subscription
// list live under protocol-prefixed keys:
//
//	{ "protocol": "mqtt", "name": "cloud",
//	  "mqtt_options": { "endpoint": "broker.example:1883" },
//	  "mqtt_subscriptions": [ {"subscription_id": "cmd", "topic": "dev/1/cmd"} ] }
type TargetConfig struct {
	Protocol      string
	Name          string
	Options       OptionMap
	Subscriptions []SubscriptionConfig
}

// SubscriptionConfig maps an inbound wire topic to an internal message id.
// Receiving a matching inbound message causes the broker to publish the
// bridged payload under SubscriptionID as if it originated locally.
type SubscriptionConfig struct {
	SubscriptionID string `json:"subscription_id"`
	Topic          string `json:"topic"`

	// Group is the consumer group for stream-based transports (redis).
	// Ignored by transports without consumer-group semantics.
	Group string `json:"group,omitempty"`
}

// PipeConfig routes one message id to an ordered list of destinations.
type PipeConfig struct {
	MessageID    string              `json:"message_id"`
	Destinations []DestinationConfig `json:"destinations"`
}

// DestinationConfig names a target plus the per-message delivery options
// for that target's protocol. OptionsProtocol records which protocol
// prefix the options were found under ("file" for "file_message_options");
// Initialize rejects destinations whose prefix does not match the target.
type DestinationConfig struct {
	TargetName      string
	OptionsProtocol string
	Options         OptionMap
}

// UnmarshalJSON decodes a target entry, locating the option bag and
// subscription list under the keys prefixed with the target's protocol.
func (t *TargetConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding target: %w", err)
	}

	if v, ok := raw["protocol"]; ok {
		if err := json.Unmarshal(v, &t.Protocol); err != nil {
			return fmt.Errorf("decoding target protocol: %w", err)
		}
	}
	if v, ok := raw["name"]; ok {
		if err := json.Unmarshal(v, &t.Name); err != nil {
			return fmt.Errorf("decoding target name: %w", err)
		}
	}
	if t.Protocol == "" {
		return fmt.Errorf("%w: target %q has no protocol", ErrInvalidDocument, t.Name)
	}

	if v, ok := raw[t.Protocol+optionsSuffix]; ok {
		if err := json.Unmarshal(v, &t.Options); err != nil {
			return fmt.Errorf("decoding %s%s: %w", t.Protocol, optionsSuffix, err)
		}
	}
	if t.Options == nil {
		t.Options = OptionMap{}
	}

	if v, ok := raw[t.Protocol+subscriptionsSuffix]; ok {
		if err := json.Unmarshal(v, &t.Subscriptions); err != nil {
			return fmt.Errorf("decoding %s%s: %w", t.Protocol, subscriptionsSuffix, err)
		}
	}

	return nil
}

// UnmarshalJSON decodes a destination entry. The per-message option bag is
// found under the single key ending in "_message_options"; its prefix is
// recorded for protocol validation at Initialize.
func (d *DestinationConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding destination: %w", err)
	}

	if v, ok := raw["target_name"]; ok {
		if err := json.Unmarshal(v, &d.TargetName); err != nil {
			return fmt.Errorf("decoding destination target_name: %w", err)
		}
	}

	for key, v := range raw {
		if !strings.HasSuffix(key, messageOptionsSuffix) {
			continue
		}
		if d.OptionsProtocol != "" {
			return fmt.Errorf("%w: destination %q has multiple message option bags",
				ErrInvalidDocument, d.TargetName)
		}
		d.OptionsProtocol = strings.TrimSuffix(key, messageOptionsSuffix)
		if err := json.Unmarshal(v, &d.Options); err != nil {
			return fmt.Errorf("decoding %s: %w", key, err)
		}
	}
	if d.Options == nil {
		d.Options = OptionMap{}
	}

	return nil
}

// ParseDocument parses and structurally validates a JSON routing document.
//
// Structural validation covers what can be checked without the transport
// registry: non-empty names, protocols and message ids, and well-formed
// subscriptions. Cross-references (duplicate target names, dangling
// destinations, unknown protocols) are validated by Initialize.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	for i, target := range doc.Targets {
		if target.Name == "" {
			return nil, fmt.Errorf("%w: target %d has no name", ErrInvalidDocument, i)
		}
		for _, sub := range target.Subscriptions {
			if sub.SubscriptionID == "" {
				return nil, fmt.Errorf("%w: target %q has a subscription without subscription_id",
					ErrInvalidDocument, target.Name)
			}
			if sub.Topic == "" {
				return nil, fmt.Errorf("%w: subscription %q on target %q has no topic",
					ErrInvalidDocument, sub.SubscriptionID, target.Name)
			}
		}
	}

	for i, pipe := range doc.Pipes {
		if pipe.MessageID == "" {
			return nil, fmt.Errorf("%w: pipe %d has no message_id", ErrInvalidDocument, i)
		}
		for j, dest := range pipe.Destinations {
			if dest.TargetName == "" {
				return nil, fmt.Errorf("%w: pipe %q destination %d has no target_name",
					ErrInvalidDocument, pipe.MessageID, j)
			}
		}
	}

	return &doc, nil
}

// OptionMap is a protocol-specific option bag from the routing document.
// Values are the JSON scalar types (string, float64, bool).
type OptionMap map[string]any

// String returns a string option and whether it was present.
func (m OptionMap) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StringOr returns a string option, or fallback if absent.
func (m OptionMap) StringOr(key, fallback string) string {
	if s, ok := m.String(key); ok {
		return s
	}
	return fallback
}

// Int returns an integer option, accepting JSON numbers and numeric
// strings, or fallback if absent or malformed.
func (m OptionMap) Int(key string, fallback int) int {
	v, ok := m[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed
		}
	}
	return fallback
}

// Bool returns a boolean option, or fallback if absent or malformed.
func (m OptionMap) Bool(key string, fallback bool) bool {
	v, ok := m[key]
	if !ok {
		return fallback
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	}
	return fallback
}
