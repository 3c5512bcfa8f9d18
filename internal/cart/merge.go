package cart

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jaujye/ocean-shopping-center/pkg/db/models"
	"github.com/jaujye/ocean-shopping-center/pkg/enums"
	pkgerrors "github.com/jaujye/ocean-shopping-center/pkg/errors"
	"github.com/jaujye/ocean-shopping-center/pkg/outbox"
	"github.com/jaujye/ocean-shopping-center/pkg/outbox/payloads"
)

// MergeGuestCart folds a guest session's cart into the user's cart at login.
// Lines for the same (product, variant) sum their quantities on the user's
// line, keeping the user cart's price snapshot; other guest lines move over
// with their own snapshot. The guest cart ends MERGED with a back-reference
// to its session. Merging is idempotent: a missing or already-merged guest
// cart is a no-op.
func (s *service) MergeGuestCart(ctx context.Context, userID uuid.UUID, sessionID string) (*models.Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if userID == uuid.Nil || sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and session id are required to merge")
	}

	userCart, err := s.GetOrCreateCart(ctx, UserOwner(userID))
	if err != nil {
		return nil, err
	}

	var merged *models.Cart
	err = s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		// Lock both carts; user cart first so merges for the same user
		// acquire locks in a stable order.
		userCart, err = s.repo.FindByIDForUpdate(tx, userCart.ID)
		if err != nil {
			return err
		}

		guestCart, err := s.repo.FindActiveByOwnerForUpdate(tx, GuestOwner(sessionID))
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				merged = userCart
				return nil
			}
			return err
		}
		if guestCart.ID == userCart.ID {
			merged = userCart
			return nil
		}

		for i := range guestCart.Items {
			guestItem := guestCart.Items[i]
			if guestItem.SavedForLater {
				continue
			}

			if existing := userCart.FindItem(guestItem.ProductID, guestItem.VariantID); existing != nil {
				existing.Quantity += guestItem.Quantity
				existing.RecalculateLineTotal()
				if err := s.repo.SaveItem(tx, existing); err != nil {
					return err
				}
				if err := s.repo.DeleteItem(tx, guestItem.ID); err != nil {
					return err
				}
				continue
			}

			moved := models.CartItem{
				CartID:          userCart.ID,
				ProductID:       guestItem.ProductID,
				VariantID:       guestItem.VariantID,
				Quantity:        guestItem.Quantity,
				UnitPrice:       guestItem.UnitPrice,
				ItemDiscount:    guestItem.ItemDiscount,
				IsGift:          guestItem.IsGift,
				SelectedOptions: guestItem.SelectedOptions,
			}
			moved.RecalculateLineTotal()
			if err := s.repo.CreateItem(tx, &moved); err != nil {
				return err
			}
			userCart.Items = append(userCart.Items, moved)
			if err := s.repo.DeleteItem(tx, guestItem.ID); err != nil {
				return err
			}
		}

		// Saved-for-later guest lines travel too; they do not affect totals.
		for i := range guestCart.Items {
			guestItem := guestCart.Items[i]
			if !guestItem.SavedForLater {
				continue
			}
			guestItem.ID = uuid.Nil
			guestItem.CartID = userCart.ID
			if err := s.repo.CreateItem(tx, &guestItem); err != nil {
				return err
			}
			userCart.Items = append(userCart.Items, guestItem)
		}
		if err := s.repo.DeleteItems(tx, guestCart.ID); err != nil {
			return err
		}

		if err := guestCart.MarkAsMerged(sessionID); err != nil {
			return err
		}
		guestCart.Items = nil
		guestCart.RecalculateTotals()
		if err := s.repo.Save(tx, guestCart); err != nil {
			return err
		}

		userCart.RecalculateTotals()
		if err := s.repo.Save(tx, userCart); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventCartMerged,
			AggregateType: enums.AggregateCart,
			AggregateID:   guestCart.ID,
			Version:       1,
			Data: payloads.CartLifecycleEvent{
				CartID:    guestCart.ID,
				SessionID: guestCart.SessionID,
				Status:    guestCart.Status.String(),
				ChangedAt: s.now().UTC(),
			},
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return err
		}

		merged = userCart
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":    userID.String(),
		"session_id": sessionID,
		"cart_id":    merged.ID.String(),
	})
	s.logg.Info(logCtx, "guest cart merged")
	return merged, nil
}
