package types

import "github.com/jaujye/ocean-shopping-center/pkg/enums"

// ItemOptions stores per-line custom option selections (size, engraving...)
// as a flat key/value map serialized to jsonb.
type ItemOptions map[string]string

// CartItemWarning describes one problem detected for a cart line.
type CartItemWarning struct {
	Type    enums.CartItemWarningType `json:"type"`
	Message string                    `json:"message"`
}

// CartItemWarnings is the jsonb-serialized warning list on a cart item.
type CartItemWarnings []CartItemWarning

// Has reports whether a warning of the given type is present.
func (w CartItemWarnings) Has(kind enums.CartItemWarningType) bool {
	for _, warning := range w {
		if warning.Type == kind {
			return true
		}
	}
	return false
}
