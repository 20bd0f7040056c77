package metrics

import (
	"github.com/nerrad567/gray-relay/internal/broker"
	"github.com/nerrad567/gray-relay/internal/infrastructure/influxdb"
)

// DeliveryWriter is the subset of the InfluxDB client the observer needs.
// Satisfied by *influxdb.Client.
type DeliveryWriter interface {
	WriteDeliveryMetric(target, protocol, messageID, outcome string, durationMS float64)
}

// Observer adapts a DeliveryWriter to the broker's DeliveryObserver
// interface. Writes are non-blocking; a slow metrics backend never stalls
// a delivery worker.
type Observer struct {
	writer DeliveryWriter
}

// NewObserver creates a delivery observer that emits one point per
// completed delivery attempt.
func NewObserver(writer DeliveryWriter) *Observer {
	return &Observer{writer: writer}
}

// DeliveryCompleted implements broker.DeliveryObserver.
func (o *Observer) DeliveryCompleted(rec broker.DeliveryRecord) {
	outcome := influxdb.OutcomeSuccess
	if !rec.Success {
		outcome = influxdb.OutcomeFailure
	}

	o.writer.WriteDeliveryMetric(
		rec.TargetName,
		rec.Protocol,
		rec.MessageID,
		outcome,
		float64(rec.Duration.Milliseconds()),
	)
}
