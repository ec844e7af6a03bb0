package kafka

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/identity"
	"github.com/Ramsey-B/clover/pkg/models"
)

// Identifier is the engine operation observations are fed to
type Identifier interface {
	Identify(ctx context.Context, request models.IdentifyRequest) (*models.IdentifyResponse, error)
}

// NewObservationHandler passes each observation to Identify. Invalid observations are skipped;
// storage failures are returned so the message is retried.
func NewObservationHandler(identifier Identifier, logger ectologger.Logger) MessageHandler {
	return func(ctx context.Context, msg *IncomingMessage) error {
		resp, err := identifier.Identify(ctx, *msg.Observation)
		if identity.IsInvalidRequest(err) {
			return fmt.Errorf("%w: %v", ErrSkip, err)
		}
		if err != nil {
			return err
		}

		logger.WithContext(ctx).WithFields(map[string]any{
			"offset":     msg.Offset,
			"primary_id": resp.PrimaryID,
		}).Debug("Processed observation")
		return nil
	}
}
