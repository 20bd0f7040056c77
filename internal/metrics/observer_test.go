package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-relay/internal/broker"
	"github.com/nerrad567/gray-relay/internal/infrastructure/influxdb"
)

type capturedMetric struct {
	target     string
	protocol   string
	messageID  string
	outcome    string
	durationMS float64
}

type fakeWriter struct {
	metrics []capturedMetric
}

func (w *fakeWriter) WriteDeliveryMetric(target, protocol, messageID, outcome string, durationMS float64) {
	w.metrics = append(w.metrics, capturedMetric{target, protocol, messageID, outcome, durationMS})
}

func TestObserver_Success(t *testing.T) {
	writer := &fakeWriter{}
	obs := NewObserver(writer)

	obs.DeliveryCompleted(broker.DeliveryRecord{
		TargetName: "archive",
		Protocol:   "file",
		MessageID:  "capture",
		Success:    true,
		Duration:   250 * time.Millisecond,
	})

	if len(writer.metrics) != 1 {
		t.Fatalf("wrote %d metrics, want 1", len(writer.metrics))
	}
	m := writer.metrics[0]
	if m.target != "archive" || m.protocol != "file" || m.messageID != "capture" {
		t.Errorf("metric = %+v", m)
	}
	if m.outcome != influxdb.OutcomeSuccess {
		t.Errorf("outcome = %q, want %q", m.outcome, influxdb.OutcomeSuccess)
	}
	if m.durationMS != 250 {
		t.Errorf("durationMS = %v, want 250", m.durationMS)
	}
}

func TestObserver_Failure(t *testing.T) {
	writer := &fakeWriter{}
	obs := NewObserver(writer)

	obs.DeliveryCompleted(broker.DeliveryRecord{
		TargetName: "cloud",
		Protocol:   "mqtt",
		MessageID:  "alert",
		Success:    false,
		Err:        errors.New("broker unreachable"),
		Duration:   5 * time.Second,
	})

	if len(writer.metrics) != 1 {
		t.Fatalf("wrote %d metrics, want 1", len(writer.metrics))
	}
	if got := writer.metrics[0].outcome; got != influxdb.OutcomeFailure {
		t.Errorf("outcome = %q, want %q", got, influxdb.OutcomeFailure)
	}
}
