// Package events turns committed Identify calls into contact events
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	clovercontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/identity"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	EventTypeContactCreated = "contact.created"
	EventTypeContactMerged  = "contact.merged"
)

// Publisher is the part of kafka.Producer the emitter needs
type Publisher interface {
	PublishContactEvents(ctx context.Context, events []*kafka.ContactEvent) error
}

// Emitter publishes a contact.created event for every inserted contact and a
// contact.merged event for every call that merged clusters
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

var _ identity.Listener = (*Emitter)(nil)

// OnIdentify implements identity.Listener
func (e *Emitter) OnIdentify(ctx context.Context, outcome *models.IdentifyOutcome) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.OnIdentify")
	defer span.End()

	events := Build(outcome, clovercontext.GetRequestID(ctx))
	if len(events) == 0 {
		return nil
	}

	if err := e.publisher.PublishContactEvents(ctx, events); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("primary_id", outcome.Response.PrimaryID).Error("Failed to emit contact events")
		return err
	}
	return nil
}

// Build returns the events describing outcome, created before merged
func Build(outcome *models.IdentifyOutcome, correlationID string) []*kafka.ContactEvent {
	if outcome == nil || outcome.Response == nil {
		return nil
	}

	var events []*kafka.ContactEvent
	secondaryIDs := outcome.Response.SecondaryIDs

	if created := outcome.Created; created != nil {
		events = append(events, &kafka.ContactEvent{
			EventType:      EventTypeContactCreated,
			PrimaryID:      outcome.Response.PrimaryID,
			ContactID:      created.ID,
			LinkPrecedence: string(created.LinkPrecedence),
			Email:          created.Email,
			PhoneNumber:    created.PhoneNumber,
			SecondaryIDs:   secondaryIDs,
			CorrelationID:  correlationID,
		})
	}

	if outcome.Merged() {
		events = append(events, &kafka.ContactEvent{
			EventType:     EventTypeContactMerged,
			PrimaryID:     outcome.Response.PrimaryID,
			Demoted:       outcome.Demoted,
			Relinked:      outcome.Relinked,
			SecondaryIDs:  secondaryIDs,
			CorrelationID: correlationID,
		})
	}

	return events
}
