// Package mqtt implements the MQTT transport plugin.
//
// Outbound messages are published to the topic carried in the message's
// resolved delivery options. Inbound subscriptions configured on the
// target ("mqtt_subscriptions") bridge received wire messages back into
// the broker as a publish under the subscription id.
//
// The wire session itself (connection, TLS, reconnection backoff) is
// handled by internal/infrastructure/mqtt on top of paho.mqtt.golang.
package mqtt
