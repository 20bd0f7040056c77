package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Delivery outcome tag values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// WriteDeliveryMetric writes a single delivery measurement to InfluxDB.
//
// This is the primary method for recording delivery telemetry. The write
// is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - target: The delivering target's name (e.g. "archive")
//   - protocol: The target's protocol (e.g. "file", "mqtt")
//   - messageID: The logical message id that was routed
//   - outcome: OutcomeSuccess or OutcomeFailure
//   - durationMS: Transport I/O time in milliseconds
//
// Example:
//
//	client.WriteDeliveryMetric("archive", "file", "capture", influxdb.OutcomeSuccess, 1.8)
func (c *Client) WriteDeliveryMetric(target, protocol, messageID, outcome string, durationMS float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"delivery",
		map[string]string{
			"target":     target,
			"protocol":   protocol,
			"message_id": messageID,
			"outcome":    outcome,
		},
		map[string]interface{}{
			"duration_ms": durationMS,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
