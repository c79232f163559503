// Package household holds the mutable collections of a rent split: the
// ordered occupant registry, the charge ledger and the snapshot aggregating
// them with the basic amounts.
package household

import (
	"slices"
	"strings"

	"rentsplit/internal/core"
)

// Registry is the ordered sequence of occupants. Insertion order is the order
// shares are reported in. The zero value is empty and ready to use.
type Registry struct {
	occupants []core.Occupant
}

// Add validates o against policy and appends it. The attribute the policy does
// not use is stored as zero. Ids are not deduplicated here.
func (r *Registry) Add(o core.Occupant, policy core.Policy) error {
	if err := o.Validate(policy); err != nil {
		return err
	}
	r.occupants = append(r.occupants, o.Normalize(policy))
	return nil
}

// Restore appends a previously persisted occupant as is. Both attributes are
// kept because the policy may change after the occupant was added.
func (r *Registry) Restore(o core.Occupant) error {
	if err := o.Validate(core.PolicyEqual); err != nil {
		return err
	}
	if err := o.ValidAttributes(); err != nil {
		return err
	}
	o.ID = strings.TrimSpace(o.ID)
	r.occupants = append(r.occupants, o)
	return nil
}

// Remove deletes every occupant with the given id and returns how many were
// removed. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) int {
	id = strings.TrimSpace(id)
	before := len(r.occupants)
	r.occupants = slices.DeleteFunc(r.occupants, func(o core.Occupant) bool {
		return o.ID == id
	})
	return before - len(r.occupants)
}

// All returns a copy of the occupants in insertion order.
func (r Registry) All() []core.Occupant {
	return slices.Clone(r.occupants)
}

func (r Registry) Len() int {
	return len(r.occupants)
}

func (r Registry) Contains(id string) bool {
	id = strings.TrimSpace(id)
	return slices.ContainsFunc(r.occupants, func(o core.Occupant) bool {
		return o.ID == id
	})
}
