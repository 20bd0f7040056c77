// Package mqtt wraps paho.mqtt.golang for the Gray Relay mqtt transport.
//
// This package manages:
//   - Connection establishment with timeout and optional TLS
//   - Automatic reconnection with exponential backoff
//   - Publishing with per-operation timeouts
//   - Subscription handling with restore-on-reconnect
//
// # Usage
//
//	client, err := mqtt.Connect(mqtt.Config{
//	    Endpoint: "broker.example.com:1883",
//	    ClientID: "grayrelay-01",
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Publish("events/capture", payload, 1, false)
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are automatically restored on reconnection.
package mqtt
