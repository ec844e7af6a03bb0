package identity

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// SeedContacts returns the demo dataset: one primary and one secondary sharing a phone number
func SeedContacts() []models.Contact {
	lorraineCreated := time.Date(2023, time.April, 1, 0, 0, 0, 374*int(time.Millisecond), time.UTC)
	mcflyCreated := time.Date(2023, time.April, 20, 5, 30, 0, 110*int(time.Millisecond), time.UTC)

	return []models.Contact{
		{
			ID:             1,
			PhoneNumber:    models.StringPtr("123456"),
			Email:          models.StringPtr("lorraine@hillvalley.edu"),
			LinkPrecedence: models.LinkPrecedencePrimary,
			CreatedAt:      lorraineCreated,
			UpdatedAt:      lorraineCreated,
		},
		{
			ID:             23,
			PhoneNumber:    models.StringPtr("123456"),
			Email:          models.StringPtr("mcfly@hillvalley.edu"),
			LinkedID:       models.Int64Ptr(1),
			LinkPrecedence: models.LinkPrecedenceSecondary,
			CreatedAt:      mcflyCreated,
			UpdatedAt:      mcflyCreated,
		},
	}
}
