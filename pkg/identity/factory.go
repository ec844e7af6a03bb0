package identity

import (
	"context"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Factory decides whether an observation adds information to a cluster and inserts the contact that records it
type Factory struct {
	store Store
}

func NewFactory(store Store) *Factory {
	return &Factory{store: store}
}

// CreatePrimary inserts a new canonical contact for an observation that matched nothing
func (f *Factory) CreatePrimary(ctx context.Context, email, phone *string) (models.Contact, error) {
	return f.store.Insert(ctx, models.NewPrimaryDraft(email, phone))
}

// NeedsSecondary reports whether the observation should be recorded as a new secondary of cluster.
// An observation is recorded only when it carries both an email and a phone number, the pair is not
// already on a single contact, and at least one of the two values is new to the cluster.
// An email-only or phone-only observation never adds a contact to an existing cluster.
func NeedsSecondary(cluster []models.Contact, email, phone *string) bool {
	exact := anyContact(cluster, func(c models.Contact) bool {
		return c.HasEmail(email) && c.HasPhoneNumber(phone)
	})
	if exact {
		return false
	}
	if email == nil || phone == nil {
		return false
	}

	emailKnown := anyContact(cluster, func(c models.Contact) bool { return c.HasEmail(email) })
	phoneKnown := anyContact(cluster, func(c models.Contact) bool { return c.HasPhoneNumber(phone) })
	return !emailKnown || !phoneKnown
}

// Extend inserts a secondary of primary when NeedsSecondary holds. Returns nil when nothing was inserted.
func (f *Factory) Extend(ctx context.Context, primary models.Contact, cluster []models.Contact, email, phone *string) (*models.Contact, error) {
	if !NeedsSecondary(cluster, email, phone) {
		return nil, nil
	}
	created, err := f.store.Insert(ctx, models.NewSecondaryDraft(email, phone, primary.ID))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func anyContact(cluster []models.Contact, predicate func(models.Contact) bool) bool {
	return len(ectolinq.Filter(cluster, predicate)) > 0
}
