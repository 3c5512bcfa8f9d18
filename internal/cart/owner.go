package cart

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Owner identifies who a cart belongs to. Exactly one of UserID or SessionID
// is set: authenticated buyers own carts by user id, guests by session id.
type Owner struct {
	UserID    *uuid.UUID
	SessionID *string
}

// UserOwner builds an Owner for an authenticated buyer.
func UserOwner(userID uuid.UUID) Owner {
	return Owner{UserID: &userID}
}

// GuestOwner builds an Owner for a guest session.
func GuestOwner(sessionID string) Owner {
	trimmed := strings.TrimSpace(sessionID)
	return Owner{SessionID: &trimmed}
}

// IsGuest reports whether the owner is a guest session.
func (o Owner) IsGuest() bool {
	return o.UserID == nil
}

// Validate enforces the exactly-one-owner rule.
func (o Owner) Validate() error {
	hasUser := o.UserID != nil && *o.UserID != uuid.Nil
	hasSession := o.SessionID != nil && strings.TrimSpace(*o.SessionID) != ""
	if hasUser == hasSession {
		return errors.New("exactly one of user id or session id must identify the cart owner")
	}
	return nil
}

// LogFields returns the owner's identity for structured log attachment.
func (o Owner) LogFields() map[string]any {
	fields := make(map[string]any, 1)
	if o.UserID != nil {
		fields["user_id"] = o.UserID.String()
	}
	if o.SessionID != nil {
		fields["session_id"] = *o.SessionID
	}
	return fields
}
