// Package metadata keeps, for each object (matrix), the directory of all copies of its data across memory spaces.
//
// Each copy is an Entry: a memory space (a device.Descriptor holding the allocation) and an optional region of the
// object. The Registry of an object indexes its entries by allocation type, tracks which of them hold the latest
// version of the data (fresh), and counts references to the object. Objects are released with Destroy.
package metadata

import (
	"fmt"
	"sync/atomic"

	"github.com/gomlx/devmem/device"
)

// ID of an Entry, unique in the process. IDs are never reused.
type ID uint64

var lastID atomic.Uint64

func nextID() ID {
	return ID(lastID.Add(1))
}

// Entry describes one copy of (a region of) an object in one memory space.
//
// Entries are created by Registry.Register, and their identity never changes.
type Entry struct {
	id         ID
	allocation device.Descriptor
	rng        *device.Range
}

// ID of the entry.
func (e *Entry) ID() ID { return e.id }

// Allocation returns the descriptor owning the allocation of this copy.
func (e *Entry) Allocation() device.Descriptor { return e.allocation }

// Type of the memory space of the entry.
func (e *Entry) Type() device.AllocationType { return e.allocation.Type() }

// Range of the object held by this copy, nil if it holds the whole object.
// The returned value must not be modified.
func (e *Entry) Range() *device.Range { return e.rng }

// Matches returns whether the entry is for the memory space desc and region rng.
func (e *Entry) Matches(desc device.Descriptor, rng *device.Range) bool {
	return e.allocation.Equal(desc) && e.rng.Equal(rng)
}

// String implements fmt.Stringer.
func (e *Entry) String() string {
	return fmt.Sprintf("#%d(%s%s)", e.id, e.allocation, e.rng)
}
