package audit

import (
	"context"
	"time"

	"github.com/nerrad567/gray-relay/internal/broker"
)

// recordTimeout bounds the insert for one delivery record so a slow disk
// cannot stall a delivery worker indefinitely.
const recordTimeout = 5 * time.Second

// Recorder adapts a Repository to the broker's DeliveryObserver interface.
//
// Recording failures are logged and dropped; the audit trail never affects
// delivery outcomes.
type Recorder struct {
	repo Repository
	log  broker.Logger
}

// NewRecorder creates a delivery observer that persists every completed
// delivery attempt through repo.
func NewRecorder(repo Repository, log broker.Logger) *Recorder {
	return &Recorder{repo: repo, log: log}
}

// DeliveryCompleted implements broker.DeliveryObserver.
func (r *Recorder) DeliveryCompleted(rec broker.DeliveryRecord) {
	entry := &DeliveryLog{
		TargetName: rec.TargetName,
		Protocol:   rec.Protocol,
		MessageID:  rec.MessageID,
		PayloadID:  rec.PayloadID,
		Async:      rec.Async,
		Success:    rec.Success,
		DurationMS: rec.Duration.Milliseconds(),
		CreatedAt:  rec.CompletedAt,
	}
	if rec.Err != nil {
		entry.Error = rec.Err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.repo.Record(ctx, entry); err != nil && r.log != nil {
		r.log.Error("recording delivery failed",
			"target", rec.TargetName,
			"message_id", rec.MessageID,
			"error", err,
		)
	}
}
