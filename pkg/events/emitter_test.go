package events

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clovercontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
)

type recordingPublisher struct {
	batches [][]*kafka.ContactEvent
	err     error
}

func (p *recordingPublisher) PublishContactEvents(_ context.Context, events []*kafka.ContactEvent) error {
	p.batches = append(p.batches, events)
	return p.err
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestBuild(t *testing.T) {
	created := &models.Contact{ID: 5, Email: models.StringPtr("a@x.com"), LinkPrecedence: models.LinkPrecedenceSecondary}

	tests := []struct {
		name     string
		outcome  *models.IdentifyOutcome
		expected []string
	}{
		{
			name:     "nothing changed",
			outcome:  &models.IdentifyOutcome{Response: &models.IdentifyResponse{PrimaryID: 1}},
			expected: nil,
		},
		{
			name:     "created",
			outcome:  &models.IdentifyOutcome{Response: &models.IdentifyResponse{PrimaryID: 1}, Created: created},
			expected: []string{EventTypeContactCreated},
		},
		{
			name:     "merged",
			outcome:  &models.IdentifyOutcome{Response: &models.IdentifyResponse{PrimaryID: 1}, Demoted: []int64{2}, Relinked: []int64{2, 3}},
			expected: []string{EventTypeContactMerged},
		},
		{
			name:     "created and merged",
			outcome:  &models.IdentifyOutcome{Response: &models.IdentifyResponse{PrimaryID: 1}, Created: created, Demoted: []int64{2}},
			expected: []string{EventTypeContactCreated, EventTypeContactMerged},
		},
		{
			name:     "nil outcome",
			outcome:  nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var types []string
			for _, e := range Build(tt.outcome, "req-1") {
				types = append(types, e.EventType)
				assert.Equal(t, "req-1", e.CorrelationID)
			}
			assert.Equal(t, tt.expected, types)
		})
	}
}

func TestEmitter_OnIdentify(t *testing.T) {
	publisher := &recordingPublisher{}
	emitter := NewEmitter(publisher, testLogger())
	ctx := clovercontext.SetRequestID(context.Background(), "req-42")

	outcome := &models.IdentifyOutcome{
		Response: &models.IdentifyResponse{PrimaryID: 3, SecondaryIDs: []int64{4}},
		Demoted:  []int64{4},
		Relinked: []int64{4},
	}
	require.NoError(t, emitter.OnIdentify(ctx, outcome))
	require.Len(t, publisher.batches, 1)

	merged := publisher.batches[0][0]
	assert.Equal(t, EventTypeContactMerged, merged.EventType)
	assert.Equal(t, int64(3), merged.PrimaryID)
	assert.Equal(t, []int64{4}, merged.Demoted)
	assert.Equal(t, "req-42", merged.CorrelationID)

	t.Run("no events means no publish", func(t *testing.T) {
		publisher := &recordingPublisher{}
		require.NoError(t, NewEmitter(publisher, testLogger()).OnIdentify(ctx, &models.IdentifyOutcome{Response: &models.IdentifyResponse{PrimaryID: 1}}))
		assert.Empty(t, publisher.batches)
	})

	t.Run("publish errors are returned", func(t *testing.T) {
		publisher := &recordingPublisher{err: errors.New("broker down")}
		err := NewEmitter(publisher, testLogger()).OnIdentify(ctx, outcome)
		assert.EqualError(t, err, "broker down")
	})
}
