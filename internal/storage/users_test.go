package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/model"
)

func TestUsers_LinkAndLookup(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	ana := &model.User{DisplayName: "Ana", LinkedChannelIdentity: "+51999888777"}
	bob := &model.User{DisplayName: "Bob"}
	require.NoError(t, store.CreateUser(ctx, ana))
	require.NoError(t, store.CreateUser(ctx, bob))

	got, err := store.GetUserByChannelIdentity(ctx, "+51999888777")
	require.NoError(t, err)
	assert.Equal(t, ana.ID, got.ID)
	assert.Equal(t, "Ana", got.DisplayName)
	require.NotNil(t, got.LinkedAt)

	_, err = store.GetUserByChannelIdentity(ctx, "+100")
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = store.LinkChannelIdentity(ctx, bob.ID, "+51999888777")
	require.ErrorIs(t, err, common.ErrDuplicateEntry)

	require.NoError(t, store.UnlinkChannelIdentity(ctx, ana.ID))
	require.NoError(t, store.LinkChannelIdentity(ctx, bob.ID, "+51999888777"))

	got, err = store.GetUserByChannelIdentity(ctx, "+51999888777")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.ID)

	unlinked, err := store.GetUser(ctx, ana.ID)
	require.NoError(t, err)
	assert.Empty(t, unlinked.LinkedChannelIdentity)
	assert.Nil(t, unlinked.LinkedAt)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	assert.ErrorIs(t, store.LinkChannelIdentity(ctx, "ghost", "+2"), common.ErrNotFound)
}

func TestTaxonomy_RoundTrip(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	user := &model.User{DisplayName: "Ana"}
	require.NoError(t, store.CreateUser(ctx, user))

	empty, err := store.GetTaxonomy(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	tax := model.Taxonomy{
		Categories: []model.Category{
			{ID: "transporte", Name: "Transporte", Subcategories: []model.Subcategory{
				{ID: "taxi", Name: "Taxi", Keywords: []string{"uber", "cabify"}},
				{ID: "bus", Name: "Bus"},
			}},
			{ID: "comida", Name: "Comida"},
		},
		PaymentMethods: []model.PaymentMethod{{ID: "pm1", Name: "BBVA"}},
	}
	require.NoError(t, store.SaveTaxonomy(ctx, user.ID, tax))

	got, err := store.GetTaxonomy(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, got.Categories, 2)
	assert.Equal(t, "transporte", got.Categories[0].ID, "order preserved")
	require.Len(t, got.Categories[0].Subcategories, 2)
	assert.Equal(t, []string{"uber", "cabify"}, got.Categories[0].Subcategories[0].Keywords)
	assert.Empty(t, got.Categories[0].Subcategories[1].Keywords)
	assert.Empty(t, got.Categories[1].Subcategories)
	assert.Equal(t, tax.PaymentMethods, got.PaymentMethods)

	// Replacing drops the old entries.
	require.NoError(t, store.SaveTaxonomy(ctx, user.ID, model.Taxonomy{
		Categories: []model.Category{{ID: "salud", Name: "Salud"}},
	}))
	got, err = store.GetTaxonomy(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, got.Categories, 1)
	assert.Empty(t, got.PaymentMethods)

	err = store.SaveTaxonomy(ctx, user.ID, model.Taxonomy{
		Categories: []model.Category{{ID: "x", Name: "X"}, {ID: "x", Name: "Y"}},
	})
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}
