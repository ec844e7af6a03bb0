package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// trace context from the producer
	TraceParent string

	Observation *models.IdentifyRequest
}

type observationPayload struct {
	Email       models.OptionalString `json:"email"`
	PhoneNumber models.OptionalString `json:"phoneNumber"`
}

// ParseObservation parses the message value as {"email": ..., "phoneNumber": ...}
func (m *IncomingMessage) ParseObservation() error {
	var payload observationPayload
	if err := json.Unmarshal(m.Value, &payload); err != nil {
		return fmt.Errorf("invalid observation payload: %w", err)
	}
	m.Observation = &models.IdentifyRequest{
		Email:       payload.Email.Ptr(),
		PhoneNumber: payload.PhoneNumber.Ptr(),
	}
	return nil
}
