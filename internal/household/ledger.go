package household

import (
	"slices"
	"strings"

	"rentsplit/internal/core"
)

// Ledger maps charge names to charges. Names are unique; iteration follows the
// order in which names were first added.
type Ledger struct {
	charges []core.Charge
}

// Add validates c and stores it. Re-adding an existing name replaces that
// entry and keeps its position.
func (l *Ledger) Add(c core.Charge) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Note = strings.TrimSpace(c.Note)
	if err := c.Validate(); err != nil {
		return err
	}
	if c.SplitMethod == "" {
		c.SplitMethod = core.SplitEqual
	}
	if i := l.index(c.Name); i >= 0 {
		l.charges[i] = c
		return nil
	}
	l.charges = append(l.charges, c)
	return nil
}

// Remove deletes the named charge and reports whether it was present.
func (l *Ledger) Remove(name string) bool {
	i := l.index(strings.TrimSpace(name))
	if i < 0 {
		return false
	}
	l.charges = slices.Delete(l.charges, i, i+1)
	return true
}

func (l Ledger) Get(name string) (core.Charge, bool) {
	if i := l.index(strings.TrimSpace(name)); i >= 0 {
		return l.charges[i], true
	}
	return core.Charge{}, false
}

// All returns a copy of the charges in ledger order.
func (l Ledger) All() []core.Charge {
	return slices.Clone(l.charges)
}

func (l Ledger) Len() int {
	return len(l.charges)
}

// Total sums every charge. It is computed on each call.
func (l Ledger) Total() core.Money {
	var total core.Money
	for _, c := range l.charges {
		total = total.Add(c.Amount)
	}
	return total
}

func (l Ledger) index(name string) int {
	return slices.IndexFunc(l.charges, func(c core.Charge) bool {
		return c.Name == name
	})
}
