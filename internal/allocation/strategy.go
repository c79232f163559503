// Package allocation divides a monthly total among occupants.
//
// This file implements the Strategy Pattern for the allocation policies. Each
// policy has its own Splitter that encapsulates the precondition checks and
// the share computation.
package allocation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"rentsplit/internal/core"
)

var (
	hundred = decimal.NewFromInt(100)

	// PercentageTolerance is how far the stated percentages may sum away from 100.
	PercentageTolerance = decimal.New(1, -1)
)

// Splitter is the strategy interface for one allocation policy.
type Splitter interface {
	// Split returns one share per occupant, in the same order. occupants is
	// never empty.
	Split(total decimal.Decimal, occupants []core.Occupant) ([]Share, error)
}

// EqualSplitter gives every occupant total/N. Each share is rounded to the
// cent on its own and the rounding remainder is not redistributed, so the
// shares may differ from the total by up to half a cent per occupant.
type EqualSplitter struct{}

func (EqualSplitter) Split(total decimal.Decimal, occupants []core.Occupant) ([]Share, error) {
	amount := core.NewMoney(total.Div(decimal.NewFromInt(int64(len(occupants)))))
	shares := make([]Share, len(occupants))
	for i, o := range occupants {
		shares[i] = Share{OccupantID: o.ID, Amount: amount}
	}
	return shares, nil
}

// RoomSizeSplitter divides proportionally to room size.
type RoomSizeSplitter struct{}

func (RoomSizeSplitter) Split(total decimal.Decimal, occupants []core.Occupant) ([]Share, error) {
	sizes := make([]decimal.Decimal, len(occupants))
	sum := decimal.Zero
	for i, o := range occupants {
		sizes[i] = decimal.NewFromFloat(o.RoomSize)
		sum = sum.Add(sizes[i])
	}
	if !sum.IsPositive() {
		return nil, &core.InvalidAllocationError{
			Policy: core.PolicyByRoomSize,
			Sum:    sum,
			Reason: "no room sizes provided",
		}
	}

	shares := make([]Share, len(occupants))
	for i, o := range occupants {
		shares[i] = Share{
			OccupantID: o.ID,
			Amount:     core.NewMoney(total.Mul(sizes[i]).Div(sum)),
			RoomSize:   o.RoomSize,
			Percentage: sizes[i].Mul(hundred).Div(sum),
		}
	}
	return shares, nil
}

// PercentageSplitter applies the percentage stated for each occupant. The
// percentages must sum to 100 within PercentageTolerance.
type PercentageSplitter struct{}

func (PercentageSplitter) Split(total decimal.Decimal, occupants []core.Occupant) ([]Share, error) {
	pcts := make([]decimal.Decimal, len(occupants))
	sum := decimal.Zero
	for i, o := range occupants {
		pcts[i] = decimal.NewFromFloat(o.Percentage)
		sum = sum.Add(pcts[i])
	}
	if sum.Sub(hundred).Abs().GreaterThan(PercentageTolerance) {
		return nil, &core.InvalidAllocationError{
			Policy: core.PolicyByPercentage,
			Sum:    sum,
			Reason: "total percentage must be 100%",
		}
	}

	shares := make([]Share, len(occupants))
	for i, o := range occupants {
		shares[i] = Share{
			OccupantID: o.ID,
			Amount:     core.NewMoney(total.Mul(pcts[i]).Div(hundred)),
			Percentage: pcts[i],
		}
	}
	return shares, nil
}

var splitters = map[core.Policy]Splitter{
	core.PolicyEqual:        EqualSplitter{},
	core.PolicyByRoomSize:   RoomSizeSplitter{},
	core.PolicyByPercentage: PercentageSplitter{},
}

// SplitterFor returns the strategy for policy.
func SplitterFor(policy core.Policy) (Splitter, error) {
	s, ok := splitters[policy]
	if !ok {
		return nil, fmt.Errorf("unknown policy %q: %w", policy, core.ErrInvalidPolicy)
	}
	return s, nil
}
