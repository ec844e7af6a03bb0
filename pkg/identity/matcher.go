package identity

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Matcher finds the contacts sharing an email or phone number with an observation
type Matcher struct {
	store Store
}

func NewMatcher(store Store) *Matcher {
	return &Matcher{store: store}
}

// Match returns the union of email and phone matches, deduplicated by id in first-seen order.
// Absent values match nothing.
func (m *Matcher) Match(ctx context.Context, email, phone *string) ([]models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Matcher.Match")
	defer span.End()

	var byEmail, byPhone []models.Contact
	var err error

	if email != nil {
		byEmail, err = m.store.FindByEmail(ctx, *email)
		if err != nil {
			return nil, err
		}
	}
	if phone != nil {
		byPhone, err = m.store.FindByPhoneNumber(ctx, *phone)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[int64]struct{}, len(byEmail)+len(byPhone))
	matches := make([]models.Contact, 0, len(byEmail)+len(byPhone))
	for _, group := range [][]models.Contact{byEmail, byPhone} {
		for _, contact := range group {
			if _, ok := seen[contact.ID]; ok {
				continue
			}
			seen[contact.ID] = struct{}{}
			matches = append(matches, contact)
		}
	}
	return matches, nil
}
