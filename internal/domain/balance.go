package domain

import "github.com/shopspring/decimal"

// BalanceBucket selects which sub-balance an adjustment applies to.
type BalanceBucket string

const (
	BucketFree   BalanceBucket = "free"
	BucketLocked BalanceBucket = "locked"
)

// Balance represents one asset's simulated holdings, split between the
// free (spendable) and locked (reserved against open orders) buckets.
// Total is derived and kept equal to Free + Locked on every mutation.
type Balance struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
	Total  decimal.Decimal `json:"total"`
}

// NewBalance returns a zero-baseline balance for an asset.
func NewBalance(asset string) Balance {
	return Balance{
		Asset:  asset,
		Free:   decimal.Zero,
		Locked: decimal.Zero,
		Total:  decimal.Zero,
	}
}

// Adjust adds delta to the chosen bucket and recomputes Total.
// Bounds are deliberately unchecked: a negative result means a caller
// spent or released more than it validated, and hiding that would mask
// the bug. Validation belongs to the order-entry path.
func (b *Balance) Adjust(delta decimal.Decimal, bucket BalanceBucket) {
	switch bucket {
	case BucketLocked:
		b.Locked = b.Locked.Add(delta)
	default:
		b.Free = b.Free.Add(delta)
	}
	b.Total = b.Free.Add(b.Locked)
}
