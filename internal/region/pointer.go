package region

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/memento/internal/graph"
	"github.com/roach88/memento/internal/ir"
)

// Pointer is the serializable state of a region: everything a region is,
// minus the store it points into.
type Pointer struct {
	Name  string            `json:"name" yaml:"name"`
	Meta  map[string]string `json:"meta" yaml:"meta"`
	Heads []string          `json:"heads" yaml:"heads"`
}

// Pointer snapshots the region's state.
func (r *Region) Pointer() Pointer {
	return Pointer{
		Name:  r.name,
		Meta:  r.Meta(),
		Heads: r.Heads(),
	}
}

// FromPointer rebuilds a region on store from persisted pointer state.
// The pointer is validated first; see Pointer.Validate.
func FromPointer(store *graph.Store, p Pointer) (*Region, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return New(store, p.Name, p.Meta, p.Heads...), nil
}

// Validate checks the structural invariants of persisted pointer state:
// a non-empty name and well-formed head ids. It does not require the heads
// to exist in any store.
func (p Pointer) Validate() error {
	if p.Name == "" {
		return ir.NewCorruptStateError("region", "missing name")
	}
	for i, h := range p.Heads {
		if !ir.ValidID(h) {
			return ir.NewCorruptStateError(p.Name, "heads[%d]: invalid id %q", i, h)
		}
	}
	return nil
}

// Equal reports whether two pointers describe the same region. Head order is
// insignificant; nil and empty meta are equal.
func (p Pointer) Equal(o Pointer) bool {
	return p.Name == o.Name &&
		maps.Equal(p.Meta, o.Meta) &&
		slices.Equal(ir.NormalizeParents(p.Heads), ir.NormalizeParents(o.Heads))
}

// String renders the pointer for diagnostics.
func (p Pointer) String() string {
	return fmt.Sprintf("%s%v", p.Name, p.Heads)
}
