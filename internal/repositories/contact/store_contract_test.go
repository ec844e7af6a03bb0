package contact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/identity"
	"github.com/Ramsey-B/clover/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// runStoreContract exercises the identity.Store contract. newStore must return an empty store.
func runStoreContract(t *testing.T, newStore func(t *testing.T) identity.Store) {
	ctx := context.Background()

	t.Run("insert assigns ids and timestamps", func(t *testing.T) {
		store := newStore(t)

		first, err := store.Insert(ctx, models.NewPrimaryDraft(models.StringPtr("a@x.com"), models.StringPtr("1")))
		require.NoError(t, err)
		assert.Equal(t, int64(1), first.ID)
		assert.True(t, first.IsPrimary())
		assert.Nil(t, first.LinkedID)
		assert.False(t, first.CreatedAt.IsZero())
		assert.Equal(t, first.CreatedAt, first.UpdatedAt)

		second, err := store.Insert(ctx, models.NewSecondaryDraft(models.StringPtr("b@x.com"), nil, first.ID))
		require.NoError(t, err)
		assert.Equal(t, int64(2), second.ID)
		assert.Equal(t, models.LinkPrecedenceSecondary, second.LinkPrecedence)
		require.NotNil(t, second.LinkedID)
		assert.Equal(t, first.ID, *second.LinkedID)
		assert.Nil(t, second.PhoneNumber)
	})

	t.Run("lookups by attribute", func(t *testing.T) {
		store := newStore(t)
		a, _ := store.Insert(ctx, models.NewPrimaryDraft(models.StringPtr("a@x.com"), models.StringPtr("1")))
		b, _ := store.Insert(ctx, models.NewSecondaryDraft(models.StringPtr("a@x.com"), models.StringPtr("2"), a.ID))
		_, _ = store.Insert(ctx, models.NewPrimaryDraft(nil, models.StringPtr("2")))

		byEmail, err := store.FindByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, []int64{a.ID, b.ID}, ids(byEmail))

		byPhone, err := store.FindByPhoneNumber(ctx, "2")
		require.NoError(t, err)
		assert.Equal(t, []int64{b.ID, 3}, ids(byPhone))

		none, err := store.FindByEmail(ctx, "missing@x.com")
		require.NoError(t, err)
		assert.Empty(t, none)

		linked, err := store.FindByLinkedID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{b.ID}, ids(linked))
	})

	t.Run("find by id", func(t *testing.T) {
		store := newStore(t)
		a, _ := store.Insert(ctx, models.NewPrimaryDraft(models.StringPtr("a@x.com"), nil))

		got, err := store.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", *got.Email)

		_, err = store.FindByID(ctx, 404)
		assert.True(t, identity.IsNotFound(err))
	})

	t.Run("reparent demotes and bumps updatedAt", func(t *testing.T) {
		store := newStore(t)
		a, _ := store.Insert(ctx, models.NewPrimaryDraft(models.StringPtr("a@x.com"), nil))
		b, _ := store.Insert(ctx, models.NewPrimaryDraft(models.StringPtr("b@x.com"), nil))

		require.NoError(t, store.Reparent(ctx, b.ID, a.ID))

		got, err := store.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.LinkPrecedenceSecondary, got.LinkPrecedence)
		assert.Equal(t, a.ID, *got.LinkedID)
		assert.True(t, got.UpdatedAt.After(b.UpdatedAt))
		assert.True(t, got.CreatedAt.Equal(b.CreatedAt))

		assert.NoError(t, store.Reparent(ctx, 404, a.ID), "unknown ids are a no-op")
	})

	t.Run("reset restarts ids", func(t *testing.T) {
		store := newStore(t)
		_, _ = store.Insert(ctx, models.NewPrimaryDraft(models.StringPtr("a@x.com"), nil))
		_, _ = store.Insert(ctx, models.NewPrimaryDraft(models.StringPtr("b@x.com"), nil))

		require.NoError(t, store.Reset(ctx))
		all, err := store.ListAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		c, err := store.Insert(ctx, models.NewPrimaryDraft(models.StringPtr("c@x.com"), nil))
		require.NoError(t, err)
		assert.Equal(t, int64(1), c.ID)
	})

	t.Run("load keeps ids and continues after the largest", func(t *testing.T) {
		store := newStore(t)
		_, _ = store.Insert(ctx, models.NewPrimaryDraft(models.StringPtr("stale@x.com"), nil))

		require.NoError(t, store.Load(ctx, identity.SeedContacts()))

		all, err := store.ListAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 23}, ids(all))
		assert.Equal(t, "lorraine@hillvalley.edu", *all[0].Email)
		assert.True(t, all[0].CreatedAt.Equal(time.Date(2023, 4, 1, 0, 0, 0, 374000000, time.UTC)))

		next, err := store.Insert(ctx, models.NewSecondaryDraft(models.StringPtr("doc@hillvalley.edu"), nil, 1))
		require.NoError(t, err)
		assert.Equal(t, int64(24), next.ID)
	})

	t.Run("run in tx discards writes on error", func(t *testing.T) {
		store := newStore(t)
		a, _ := store.Insert(ctx, models.NewPrimaryDraft(models.StringPtr("a@x.com"), nil))
		b, _ := store.Insert(ctx, models.NewPrimaryDraft(models.StringPtr("b@x.com"), nil))

		boom := errors.New("boom")
		err := store.RunInTx(ctx, func(ctx context.Context) error {
			if err := store.Reparent(ctx, b.ID, a.ID); err != nil {
				return err
			}
			if _, err := store.Insert(ctx, models.NewPrimaryDraft(models.StringPtr("c@x.com"), nil)); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		all, err := store.ListAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{a.ID, b.ID}, ids(all))
		assert.True(t, all[1].IsPrimary())

		err = store.RunInTx(ctx, func(ctx context.Context) error {
			return store.Reparent(ctx, b.ID, a.ID)
		})
		require.NoError(t, err)
		got, err := store.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.False(t, got.IsPrimary())
	})
}

func identifyRequest(email, phone string) models.IdentifyRequest {
	return models.IdentifyRequest{Email: models.StringPtr(email), PhoneNumber: models.StringPtr(phone)}
}

func ids(contacts []models.Contact) []int64 {
	result := make([]int64, 0, len(contacts))
	for _, c := range contacts {
		result = append(result, c.ID)
	}
	return result
}
