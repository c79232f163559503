package household

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentsplit/internal/core"
)

func TestRegistryAddPreservesOrder(t *testing.T) {
	var r Registry
	require.NoError(t, r.Add(core.Occupant{ID: "Alice"}, core.PolicyEqual))
	require.NoError(t, r.Add(core.Occupant{ID: "Bob"}, core.PolicyEqual))
	require.NoError(t, r.Add(core.Occupant{ID: "Carol"}, core.PolicyEqual))

	ids := make([]string, 0, r.Len())
	for _, o := range r.All() {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, ids)
}

func TestRegistryAddValidatesForPolicy(t *testing.T) {
	var r Registry
	assert.ErrorIs(t, r.Add(core.Occupant{ID: ""}, core.PolicyEqual), core.ErrEmptyName)
	assert.ErrorIs(t, r.Add(core.Occupant{ID: "A"}, core.PolicyByRoomSize), core.ErrInvalidRoomSize)
	assert.ErrorIs(t, r.Add(core.Occupant{ID: "A", Percentage: 0}, core.PolicyByPercentage), core.ErrInvalidPercentage)
	assert.ErrorIs(t, r.Add(core.Occupant{ID: "A", Percentage: 101}, core.PolicyByPercentage), core.ErrInvalidPercentage)
	assert.Zero(t, r.Len())

	require.NoError(t, r.Add(core.Occupant{ID: "A", RoomSize: 120, Percentage: 30}, core.PolicyByRoomSize))
	assert.Equal(t, []core.Occupant{{ID: "A", RoomSize: 120}}, r.All())
}

func TestRegistryRemove(t *testing.T) {
	var r Registry
	require.NoError(t, r.Add(core.Occupant{ID: "Alice"}, core.PolicyEqual))
	require.NoError(t, r.Add(core.Occupant{ID: "Bob"}, core.PolicyEqual))
	require.NoError(t, r.Add(core.Occupant{ID: "Alice"}, core.PolicyEqual))

	assert.Equal(t, 2, r.Remove("Alice"))
	assert.Equal(t, []core.Occupant{{ID: "Bob"}}, r.All())
	assert.Equal(t, 0, r.Remove("Nobody"))
	assert.True(t, r.Contains("Bob"))
	assert.False(t, r.Contains("Alice"))
}

func TestRegistryAllReturnsCopy(t *testing.T) {
	var r Registry
	require.NoError(t, r.Add(core.Occupant{ID: "Alice"}, core.PolicyEqual))
	all := r.All()
	all[0].ID = "Mallory"
	assert.Equal(t, "Alice", r.All()[0].ID)
}

func TestRegistryRestoreKeepsBothAttributes(t *testing.T) {
	var r Registry
	require.NoError(t, r.Restore(core.Occupant{ID: "A", RoomSize: 100, Percentage: 40}))
	assert.Equal(t, []core.Occupant{{ID: "A", RoomSize: 100, Percentage: 40}}, r.All())
	assert.Error(t, r.Restore(core.Occupant{ID: "B", RoomSize: -1}))
	assert.Error(t, r.Restore(core.Occupant{ID: ""}))
	assert.ErrorIs(t, r.Restore(core.Occupant{ID: "C", RoomSize: math.Inf(1)}), core.ErrInvalidRoomSize)
	assert.ErrorIs(t, r.Restore(core.Occupant{ID: "D", RoomSize: math.NaN()}), core.ErrInvalidRoomSize)
	assert.ErrorIs(t, r.Restore(core.Occupant{ID: "E", Percentage: math.Inf(1)}), core.ErrInvalidPercentage)
	assert.Len(t, r.All(), 1)
}

func TestLedgerAddReplaceRemove(t *testing.T) {
	var l Ledger
	require.NoError(t, l.Add(core.Charge{Name: "Electricity", Amount: core.Money{Cents: 150000}}))
	require.NoError(t, l.Add(core.Charge{Name: "Water", Amount: core.Money{Cents: 50000}, SplitMethod: core.SplitByUsage}))
	assert.Equal(t, core.Money{Cents: 200000}, l.Total())

	// replacement keeps position
	require.NoError(t, l.Add(core.Charge{Name: "Electricity", Amount: core.Money{Cents: 180000}, Note: "summer"}))
	all := l.All()
	require.Len(t, all, 2)
	assert.Equal(t, "Electricity", all[0].Name)
	assert.Equal(t, "summer", all[0].Note)
	assert.Equal(t, core.SplitEqual, all[0].SplitMethod)
	assert.Equal(t, core.Money{Cents: 230000}, l.Total())

	assert.True(t, l.Remove("Electricity"))
	assert.False(t, l.Remove("Electricity"))
	assert.Equal(t, core.Money{Cents: 50000}, l.Total())

	c, ok := l.Get("Water")
	require.True(t, ok)
	assert.Equal(t, core.SplitByUsage, c.SplitMethod)
}

func TestLedgerAddValidation(t *testing.T) {
	var l Ledger
	assert.ErrorIs(t, l.Add(core.Charge{Name: " ", Amount: core.Money{Cents: 1}}), core.ErrEmptyName)
	assert.ErrorIs(t, l.Add(core.Charge{Name: "Gas"}), core.ErrInvalidAmount)
	assert.Zero(t, l.Len())
	assert.True(t, l.Total().IsZero())
}

func TestSnapshotMonthlyTotalAndClone(t *testing.T) {
	s := Default()
	s.Rent = core.MustParseMoney("20000")
	s.Maintenance = core.MustParseMoney("1000")
	require.NoError(t, s.Charges.Add(core.Charge{Name: "Electricity", Amount: core.MustParseMoney("1500")}))
	require.NoError(t, s.Charges.Add(core.Charge{Name: "Water", Amount: core.MustParseMoney("500")}))
	require.NoError(t, s.AddOccupant(core.Occupant{ID: "Alice"}))

	assert.Equal(t, core.MustParseMoney("23000"), s.MonthlyTotal())

	c := s.Clone()
	assert.True(t, c.Equal(s))
	require.NoError(t, c.AddOccupant(core.Occupant{ID: "Bob"}))
	c.Charges.Remove("Water")
	assert.Equal(t, 1, s.Occupants.Len())
	assert.Equal(t, 2, s.Charges.Len())
	assert.False(t, c.Equal(s))
}

func TestSnapshotEqualTreatsEmptyAsNil(t *testing.T) {
	a := Default()
	b := Default()
	require.NoError(t, b.AddOccupant(core.Occupant{ID: "X"}))
	b.Occupants.Remove("X")
	assert.True(t, a.Equal(b))
}
