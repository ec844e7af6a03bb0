package contact

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/identity"
	"github.com/Ramsey-B/clover/pkg/models"
)

func TestMemoryRepository_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) identity.Store {
		current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		return NewMemoryRepository(testLogger(), WithClock(func() time.Time {
			current = current.Add(time.Millisecond)
			return current
		}))
	})
}

func TestMemoryRepository_ExcludesTombstones(t *testing.T) {
	store := NewMemoryRepository(testLogger())
	ctx := context.Background()
	deletedAt := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Load(ctx, []models.Contact{
		{ID: 1, Email: models.StringPtr("a@x.com"), LinkPrecedence: models.LinkPrecedencePrimary},
		{ID: 2, Email: models.StringPtr("a@x.com"), LinkPrecedence: models.LinkPrecedencePrimary, DeletedAt: &deletedAt},
	}))

	byEmail, err := store.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(byEmail))

	_, err = store.FindByID(ctx, 2)
	assert.True(t, identity.IsNotFound(err))

	require.NoError(t, store.Reparent(ctx, 2, 1))
	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(all))
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	store := NewMemoryRepository(testLogger())
	ctx := context.Background()

	created, err := store.Insert(ctx, models.NewPrimaryDraft(models.StringPtr("a@x.com"), nil))
	require.NoError(t, err)
	*created.Email = "mutated@x.com"

	got, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", *got.Email)
}
