package contact

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/identity"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// MemoryRepository is an in-process identity.Store
type MemoryRepository struct {
	mu       sync.RWMutex
	contacts map[int64]models.Contact
	nextID   int64
	now      func() time.Time
	logger   ectologger.Logger
}

type MemoryOption func(*MemoryRepository)

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) MemoryOption {
	return func(r *MemoryRepository) {
		r.now = now
	}
}

func NewMemoryRepository(logger ectologger.Logger, opts ...MemoryOption) *MemoryRepository {
	r := &MemoryRepository{
		contacts: make(map[int64]models.Contact),
		nextID:   1,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ identity.Store = (*MemoryRepository)(nil)

func (r *MemoryRepository) filter(predicate func(models.Contact) bool) []models.Contact {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]models.Contact, 0)
	for _, c := range r.contacts {
		if c.IsDeleted() || !predicate(c) {
			continue
		}
		result = append(result, copyContact(c))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) ([]models.Contact, error) {
	return r.filter(func(c models.Contact) bool { return c.Email != nil && *c.Email == email }), nil
}

func (r *MemoryRepository) FindByPhoneNumber(ctx context.Context, phone string) ([]models.Contact, error) {
	return r.filter(func(c models.Contact) bool { return c.PhoneNumber != nil && *c.PhoneNumber == phone }), nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id int64) (models.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contacts[id]
	if !ok || c.IsDeleted() {
		return models.Contact{}, identity.ErrNotFound
	}
	return copyContact(c), nil
}

func (r *MemoryRepository) FindByLinkedID(ctx context.Context, linkedID int64) ([]models.Contact, error) {
	return r.filter(func(c models.Contact) bool { return c.LinkedID != nil && *c.LinkedID == linkedID }), nil
}

func (r *MemoryRepository) Insert(ctx context.Context, draft models.ContactDraft) (models.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	c := models.Contact{
		ID:             r.nextID,
		Email:          cloneString(draft.Email),
		PhoneNumber:    cloneString(draft.PhoneNumber),
		LinkedID:       cloneInt64(draft.LinkedID),
		LinkPrecedence: draft.LinkPrecedence,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.contacts[c.ID] = c
	r.nextID++

	return copyContact(c), nil
}

func (r *MemoryRepository) Reparent(ctx context.Context, id, linkedID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contacts[id]
	if !ok || c.IsDeleted() {
		r.logger.WithContext(ctx).WithField("contact_id", id).Debug("Reparent target not found")
		return nil
	}
	c.LinkedID = &linkedID
	c.LinkPrecedence = models.LinkPrecedenceSecondary
	c.UpdatedAt = r.now()
	r.contacts[id] = c
	return nil
}

func (r *MemoryRepository) ListAll(ctx context.Context) ([]models.Contact, error) {
	return r.filter(func(models.Contact) bool { return true }), nil
}

func (r *MemoryRepository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.contacts = make(map[int64]models.Contact)
	r.nextID = 1
	return nil
}

func (r *MemoryRepository) Load(ctx context.Context, contacts []models.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.contacts = make(map[int64]models.Contact, len(contacts))
	var maxID int64
	for _, c := range contacts {
		r.contacts[c.ID] = copyContact(c)
		if c.ID > maxID {
			maxID = c.ID
		}
	}
	r.nextID = maxID + 1
	return nil
}

// RunInTx snapshots the contents and restores them when fn fails.
// Callers serialize writers through the engine lock; RunInTx does not isolate concurrent writers.
func (r *MemoryRepository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartSpan(ctx, "contact.MemoryRepository.RunInTx")
	defer span.End()

	r.mu.RLock()
	snapshot := make(map[int64]models.Contact, len(r.contacts))
	for id, c := range r.contacts {
		snapshot[id] = c
	}
	nextID := r.nextID
	r.mu.RUnlock()

	if err := fn(ctx); err != nil {
		r.mu.Lock()
		r.contacts = snapshot
		r.nextID = nextID
		r.mu.Unlock()
		return err
	}
	return nil
}

func copyContact(c models.Contact) models.Contact {
	c.Email = cloneString(c.Email)
	c.PhoneNumber = cloneString(c.PhoneNumber)
	c.LinkedID = cloneInt64(c.LinkedID)
	if c.DeletedAt != nil {
		deletedAt := *c.DeletedAt
		c.DeletedAt = &deletedAt
	}
	return c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt64(i *int64) *int64 {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
