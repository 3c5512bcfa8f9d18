package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaujye/ocean-shopping-center/pkg/enums"
)

func TestMergeGuestCartSumsQuantitiesAndKeepsUserPrice(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	sessionID := "guest-merge-1"
	productID := uuid.New()

	env.inventory.add(productID, "10.00", 100)
	_, err := env.svc.AddItem(context.Background(), UserOwner(userID), AddItemInput{ProductID: productID, Quantity: 2})
	require.NoError(t, err)

	// Guest added the same product later at a higher catalog price.
	env.inventory.setPrice(productID, "15.00")
	_, err = env.svc.AddItem(context.Background(), GuestOwner(sessionID), AddItemInput{ProductID: productID, Quantity: 3})
	require.NoError(t, err)

	merged, err := env.svc.MergeGuestCart(context.Background(), userID, sessionID)
	require.NoError(t, err)

	require.Len(t, merged.Items, 1)
	assert.Equal(t, 5, merged.Items[0].Quantity)
	// The user cart's snapshot wins on collision.
	assert.True(t, merged.Items[0].UnitPrice.Equal(dec(t, "10.00")))
	assert.True(t, merged.Subtotal.Equal(dec(t, "50.00")))
}

func TestMergeGuestCartMovesDistinctLines(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	sessionID := "guest-merge-2"
	userProduct := uuid.New()
	guestProduct := uuid.New()

	env.inventory.add(userProduct, "10.00", 100)
	env.inventory.add(guestProduct, "25.00", 100)

	_, err := env.svc.AddItem(context.Background(), UserOwner(userID), AddItemInput{ProductID: userProduct, Quantity: 1})
	require.NoError(t, err)
	_, err = env.svc.AddItem(context.Background(), GuestOwner(sessionID), AddItemInput{ProductID: guestProduct, Quantity: 2})
	require.NoError(t, err)

	merged, err := env.svc.MergeGuestCart(context.Background(), userID, sessionID)
	require.NoError(t, err)

	require.Len(t, merged.Items, 2)
	assert.True(t, merged.Subtotal.Equal(dec(t, "60.00")))
}

func TestMergeGuestCartRetiresGuestCartWithBackReference(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	sessionID := "guest-merge-3"
	productID := uuid.New()
	env.inventory.add(productID, "10.00", 100)

	guestCart, err := env.svc.AddItem(context.Background(), GuestOwner(sessionID), AddItemInput{ProductID: productID, Quantity: 1})
	require.NoError(t, err)

	_, err = env.svc.MergeGuestCart(context.Background(), userID, sessionID)
	require.NoError(t, err)

	retired, err := env.repo.FindByID(context.Background(), guestCart.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CartStatusMerged, retired.Status)
	require.NotNil(t, retired.MergedFromSession)
	assert.Equal(t, sessionID, *retired.MergedFromSession)
	assert.Empty(t, retired.Items)
	assert.True(t, retired.Subtotal.IsZero())

	events := env.outbox.byType(enums.EventCartMerged)
	require.Len(t, events, 1)
	assert.Equal(t, guestCart.ID, events[0].AggregateID)
}

func TestMergeWithoutGuestCartIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	productID := uuid.New()
	env.inventory.add(productID, "10.00", 100)

	_, err := env.svc.AddItem(context.Background(), UserOwner(userID), AddItemInput{ProductID: productID, Quantity: 1})
	require.NoError(t, err)

	merged, err := env.svc.MergeGuestCart(context.Background(), userID, "never-seen-session")
	require.NoError(t, err)
	require.Len(t, merged.Items, 1)
	assert.Empty(t, env.outbox.byType(enums.EventCartMerged))
}
