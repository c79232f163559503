package household

import (
	"slices"

	"rentsplit/internal/core"
)

// Snapshot is the complete state of a rent split: the basic amounts, the
// charges, the occupants and the active policy.
type Snapshot struct {
	Rent            core.Money
	SecurityDeposit core.Money
	Maintenance     core.Money
	Policy          core.Policy
	Occupants       Registry
	Charges         Ledger
}

// Default returns the cold-start snapshot: zero amounts, no occupants, no
// charges and the Equal policy.
func Default() Snapshot {
	return Snapshot{Policy: core.PolicyEqual}
}

// MonthlyTotal is rent + maintenance + the sum of all charges.
func (s Snapshot) MonthlyTotal() core.Money {
	return s.Rent.Add(s.Maintenance).Add(s.Charges.Total())
}

// AddOccupant validates o against the snapshot policy.
func (s *Snapshot) AddOccupant(o core.Occupant) error {
	return s.Occupants.Add(o, s.Policy)
}

// Clone returns a deep copy so the caller can mutate it independently.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Occupants = Registry{occupants: slices.Clone(s.Occupants.occupants)}
	c.Charges = Ledger{charges: slices.Clone(s.Charges.charges)}
	return c
}

// Equal compares two snapshots field by field. Empty and nil collections are
// considered equal.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.Rent == o.Rent &&
		s.SecurityDeposit == o.SecurityDeposit &&
		s.Maintenance == o.Maintenance &&
		s.Policy == o.Policy &&
		slices.Equal(s.Occupants.occupants, o.Occupants.occupants) &&
		slices.Equal(s.Charges.charges, o.Charges.charges)
}
