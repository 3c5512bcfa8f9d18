package enums

// CartItemWarningType flags an item-level problem detected against live
// inventory data. Warnings never mutate the stored price snapshot.
type CartItemWarningType string

const (
	CartItemWarningProductInactive   CartItemWarningType = "PRODUCT_INACTIVE"
	CartItemWarningInsufficientStock CartItemWarningType = "INSUFFICIENT_STOCK"
	CartItemWarningPriceChanged      CartItemWarningType = "PRICE_CHANGED"
)

// String implements fmt.Stringer.
func (c CartItemWarningType) String() string {
	return string(c)
}
