// Package processor feeds asynchronously submitted updates into the
// update pipeline. Batch tools publish to the input topic instead of
// calling the HTTP endpoint; outcomes are logged and counted, not
// returned.
package processor

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"
	segmentio "github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/bramble/pkg/actions"
	bramblecontext "github.com/Ramsey-B/bramble/pkg/context"
	"github.com/Ramsey-B/bramble/pkg/marc"
	"github.com/Ramsey-B/bramble/pkg/tracing"
	"github.com/Ramsey-B/bramble/pkg/update"
)

// UpdateMessage is the payload batch producers publish.
type UpdateMessage struct {
	Record          *marc.Record `json:"record"`
	AgencyID        int          `json:"agencyId"`
	Template        string       `json:"template"`
	DoubleRecordKey string       `json:"doubleRecordKey,omitempty"`
	Provider        string       `json:"provider,omitempty"`
	Priority        int          `json:"priority,omitempty"`
	TrackingID      string       `json:"trackingId,omitempty"`
}

// Processor turns consumed messages into updates.
type Processor struct {
	updater *update.Updater
	logger  ectologger.Logger
}

func NewProcessor(updater *update.Updater, logger ectologger.Logger) *Processor {
	return &Processor{updater: updater, logger: logger}
}

// HandleMessage processes one consumed update message. A message that
// cannot be decoded is logged and dropped; retrying it would fail the
// same way forever.
func (p *Processor) HandleMessage(ctx context.Context, msg segmentio.Message) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.HandleMessage")
	defer span.End()

	var payload UpdateMessage
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		p.logger.WithContext(ctx).WithError(err).Errorf("dropping undecodable update message at offset %d", msg.Offset)
		return nil
	}
	if payload.TrackingID != "" {
		ctx = bramblecontext.SetTrackingID(ctx, payload.TrackingID)
	}

	result, err := p.updater.Update(ctx, update.Request{
		Record:          payload.Record,
		AgencyID:        payload.AgencyID,
		Template:        payload.Template,
		DoubleRecordKey: payload.DoubleRecordKey,
		Provider:        payload.Provider,
		Priority:        payload.Priority,
	})
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Errorf("async update failed")
		return err
	}

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"status":      result.Status,
		"entries":     len(result.Entries),
		"tracking_id": payload.TrackingID,
	})
	if result.Status == actions.StatusOK {
		log.Infof("async update processed")
	} else {
		log.Warnf("async update did not apply")
	}
	return nil
}
