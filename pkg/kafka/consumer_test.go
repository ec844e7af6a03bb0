package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/identity"
	"github.com/Ramsey-B/clover/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeReader struct {
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeIdentifier struct {
	requests []models.IdentifyRequest
	err      error
}

func (f *fakeIdentifier) Identify(_ context.Context, req models.IdentifyRequest) (*models.IdentifyResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &models.IdentifyResponse{PrimaryID: 1}, nil
}

func TestIncomingMessage_ParseObservation(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		email     *string
		phone     *string
		expectErr bool
	}{
		{name: "strings", value: `{"email":"a@x.com","phoneNumber":"123"}`, email: models.StringPtr("a@x.com"), phone: models.StringPtr("123")},
		{name: "numeric phone", value: `{"phoneNumber":123456}`, phone: models.StringPtr("123456")},
		{name: "nulls", value: `{"email":null,"phoneNumber":null}`},
		{name: "not json", value: `email=a@x.com`, expectErr: true},
		{name: "wrong type", value: `{"email":{"nested":true}}`, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &IncomingMessage{Value: []byte(tt.value)}
			err := msg.ParseObservation()
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.email, msg.Observation.Email)
			assert.Equal(t, tt.phone, msg.Observation.PhoneNumber)
		})
	}
}

func TestConsumer_ProcessMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("processed observations are committed", func(t *testing.T) {
		reader := &fakeReader{}
		identifier := &fakeIdentifier{}
		consumer := newConsumer(reader, "observations", testLogger(), NewObservationHandler(identifier, testLogger()))

		committed := consumer.processMessage(ctx, kafka.Message{Offset: 7, Value: []byte(`{"email":"a@x.com"}`)})
		assert.True(t, committed)
		assert.Equal(t, []int64{7}, reader.committed)
		require.Len(t, identifier.requests, 1)
		assert.Equal(t, "a@x.com", *identifier.requests[0].Email)
	})

	t.Run("unparseable messages are committed and skipped", func(t *testing.T) {
		reader := &fakeReader{}
		identifier := &fakeIdentifier{}
		consumer := newConsumer(reader, "observations", testLogger(), NewObservationHandler(identifier, testLogger()))

		assert.True(t, consumer.processMessage(ctx, kafka.Message{Offset: 1, Value: []byte(`nope`)}))
		assert.Equal(t, []int64{1}, reader.committed)
		assert.Empty(t, identifier.requests)
	})

	t.Run("invalid observations are committed and skipped", func(t *testing.T) {
		reader := &fakeReader{}
		identifier := &fakeIdentifier{err: identity.ErrInvalidRequest}
		consumer := newConsumer(reader, "observations", testLogger(), NewObservationHandler(identifier, testLogger()))

		assert.True(t, consumer.processMessage(ctx, kafka.Message{Offset: 2, Value: []byte(`{}`)}))
		assert.Equal(t, []int64{2}, reader.committed)
	})

	t.Run("storage failures are not committed", func(t *testing.T) {
		reader := &fakeReader{}
		identifier := &fakeIdentifier{err: identity.StorageError(errors.New("db down"), "Insert")}
		consumer := newConsumer(reader, "observations", testLogger(), NewObservationHandler(identifier, testLogger()))

		assert.False(t, consumer.processMessage(ctx, kafka.Message{Offset: 3, Value: []byte(`{"email":"a@x.com"}`)}))
		assert.Empty(t, reader.committed)
	})
}

func TestConsumer_StartStop(t *testing.T) {
	reader := &fakeReader{}
	consumer := newConsumer(reader, "observations", testLogger(), func(context.Context, *IncomingMessage) error { return nil })

	require.NoError(t, consumer.Start(context.Background()))
	require.NoError(t, consumer.Stop())
}
