package allocation

import (
	"github.com/shopspring/decimal"

	"rentsplit/internal/core"
	"rentsplit/internal/household"
)

// Share is one occupant's portion of the monthly total.
type Share struct {
	OccupantID string
	Amount     core.Money

	// RoomSize is set under ByRoomSize.
	RoomSize float64
	// Percentage is derived from the room size under ByRoomSize and is the
	// stated percentage under ByPercentage. Zero under Equal.
	Percentage decimal.Decimal
}

// Result is a complete allocation of one snapshot.
type Result struct {
	Policy             core.Policy
	Total              core.Money
	Shares             []Share
	DepositPerOccupant core.Money
}

// SharesTotal sums the rounded shares. Under Equal it can differ from Total
// by the accepted rounding drift.
func (r Result) SharesTotal() core.Money {
	var sum core.Money
	for _, s := range r.Shares {
		sum = sum.Add(s.Amount)
	}
	return sum
}

// Allocate divides total among occupants according to policy. Shares come
// back in the order of occupants.
func Allocate(total core.Money, policy core.Policy, occupants []core.Occupant) ([]Share, error) {
	if len(occupants) == 0 {
		return nil, core.ErrNoOccupants
	}
	splitter, err := SplitterFor(policy)
	if err != nil {
		return nil, err
	}
	return splitter.Split(total.Decimal(), occupants)
}

// SplitDeposit divides the security deposit equally among n occupants,
// whatever the allocation policy.
func SplitDeposit(deposit core.Money, n int) (core.Money, error) {
	if n <= 0 {
		return core.Money{}, core.ErrNoOccupants
	}
	return core.NewMoney(deposit.Decimal().Div(decimal.NewFromInt(int64(n)))), nil
}

// Compute allocates the monthly total of s (rent + maintenance + charges)
// under the snapshot policy and splits the deposit equally. s is not modified.
func Compute(s household.Snapshot) (Result, error) {
	occupants := s.Occupants.All()
	total := s.MonthlyTotal()

	shares, err := Allocate(total, s.Policy, occupants)
	if err != nil {
		return Result{}, err
	}
	deposit, err := SplitDeposit(s.SecurityDeposit, len(occupants))
	if err != nil {
		return Result{}, err
	}

	return Result{
		Policy:             s.Policy,
		Total:              total,
		Shares:             shares,
		DepositPerOccupant: deposit,
	}, nil
}
