package features

import "wallet-risk-lab/internal/domain"

// Side selects which leg of a position a value estimate is for.
type Side int

const (
	SideSupply Side = iota
	SideBorrow
)

// Valuer estimates the USD value of a transaction.
type Valuer interface {
	EstimateUSD(tx domain.Transaction, side Side) float64
}

// Flat per-event values used by FlatValuer.
const (
	FlatSupplyUSD = 1000.0
	FlatBorrowUSD = 500.0
)

// FlatValuer values every supply-side event at a fixed amount.
// It inspects neither amounts nor prices.
type FlatValuer struct {
	SupplyUSD float64
	BorrowUSD float64
}

// NewFlatValuer returns a FlatValuer with the default 1000/500 amounts.
func NewFlatValuer() FlatValuer {
	return FlatValuer{SupplyUSD: FlatSupplyUSD, BorrowUSD: FlatBorrowUSD}
}

// EstimateUSD implements Valuer.
func (v FlatValuer) EstimateUSD(_ domain.Transaction, side Side) float64 {
	if side == SideBorrow {
		return v.BorrowUSD
	}
	return v.SupplyUSD
}

var _ Valuer = FlatValuer{}
