package identity

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Store holds contact records. Every lookup excludes tombstoned contacts.
type Store interface {
	FindByEmail(ctx context.Context, email string) ([]models.Contact, error)
	FindByPhoneNumber(ctx context.Context, phone string) ([]models.Contact, error)
	// FindByID returns ErrNotFound for unknown or tombstoned ids
	FindByID(ctx context.Context, id int64) (models.Contact, error)
	// FindByLinkedID returns the contacts linked to the given id, ordered by id
	FindByLinkedID(ctx context.Context, linkedID int64) ([]models.Contact, error)
	// Insert assigns the next id and both timestamps
	Insert(ctx context.Context, draft models.ContactDraft) (models.Contact, error)
	// Reparent links id to linkedID, marks it secondary and bumps updatedAt. Unknown ids are a no-op.
	Reparent(ctx context.Context, id, linkedID int64) error
	// ListAll returns every live contact ordered by id
	ListAll(ctx context.Context) ([]models.Contact, error)
	// Reset removes every contact and restarts id assignment at 1
	Reset(ctx context.Context) error
	// Load replaces the store contents with the given contacts, keeping their ids and timestamps.
	// The next assigned id is one past the largest loaded id.
	Load(ctx context.Context, contacts []models.Contact) error
	// RunInTx runs fn atomically. If fn returns an error none of its writes are kept.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker provides the serialization boundary around engine mutations
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned context is derived from ctx and is
	// cancelled with ErrLockLost if the lock is lost before unlock; work done under the lock must use it.
	// The returned func releases the lock.
	Lock(ctx context.Context, key string) (held context.Context, unlock func(), err error)
}

// Listener observes committed Identify calls
type Listener interface {
	OnIdentify(ctx context.Context, outcome *models.IdentifyOutcome) error
}

// ResetListener is implemented by listeners that mirror store contents.
// OnReset runs after Reset and Seed replace the store.
type ResetListener interface {
	OnReset(ctx context.Context) error
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(ctx context.Context, outcome *models.IdentifyOutcome) error

func (f ListenerFunc) OnIdentify(ctx context.Context, outcome *models.IdentifyOutcome) error {
	return f(ctx, outcome)
}
