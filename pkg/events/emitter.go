// Package events publishes record change notifications for downstream
// consumers (search indexing, data wells).
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/kafka"
	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// RecordChangeEvent is emitted every time a record is enqueued for
// downstream processing.
type RecordChangeEvent struct {
	BibliographicRecordID string    `json:"bibliographic_record_id"`
	AgencyID              int       `json:"agency_id"`
	Provider              string    `json:"provider"`
	Priority              int       `json:"priority"`
	Deleted               bool      `json:"deleted"`
	Timestamp             time.Time `json:"timestamp"`
}

// Emitter publishes record change events to Kafka.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{producer: producer, logger: logger}
}

// EmitRecordChange publishes one change event, keyed by record id so
// changes to the same record stay ordered.
func (e *Emitter) EmitRecordChange(ctx context.Context, id models.RecordID, provider string, priority int, deleted bool) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRecordChange")
	defer span.End()

	event := RecordChangeEvent{
		BibliographicRecordID: id.BibliographicRecordID,
		AgencyID:              id.AgencyID,
		Provider:              provider,
		Priority:              priority,
		Deleted:               deleted,
		Timestamp:             time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	headers := map[string]string{
		"provider": provider,
		"priority": strconv.Itoa(priority),
		"agency":   strconv.Itoa(id.AgencyID),
	}

	if err := e.producer.Publish(ctx, id.String(), payload, headers); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"recordId": id.String(),
			"provider": provider,
		}).Error("Failed to emit record change event")
		return err
	}

	metrics.EnqueuedRecordsTotal.WithLabelValues(provider).Inc()
	return nil
}
