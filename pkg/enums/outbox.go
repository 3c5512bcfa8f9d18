package enums

// OutboxEventType names a domain event written to the outbox table.
type OutboxEventType string

const (
	EventCartAbandoned  OutboxEventType = "cart.abandoned"
	EventCartExpired    OutboxEventType = "cart.expired"
	EventCartMerged     OutboxEventType = "cart.merged"
	EventCartConverted  OutboxEventType = "cart.converted"
	EventCouponRedeemed OutboxEventType = "coupon.redeemed"
)

// String implements fmt.Stringer.
func (o OutboxEventType) String() string {
	return string(o)
}

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateCart   OutboxAggregateType = "cart"
	AggregateOrder  OutboxAggregateType = "order"
	AggregateCoupon OutboxAggregateType = "coupon"
)

// String implements fmt.Stringer.
func (o OutboxAggregateType) String() string {
	return string(o)
}

// OutboxStatus tracks publication state for an outbox row.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusPublished OutboxStatus = "PUBLISHED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// String implements fmt.Stringer.
func (o OutboxStatus) String() string {
	return string(o)
}
