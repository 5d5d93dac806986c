// Package device defines the capability every memory back-end implements, so matrices can keep copies of their
// data in many memory spaces (host, GPUs, FPGAs, remote workers) without knowing how each one works.
//
// A Descriptor identifies one memory space (e.g. "CUDA device 1") and, once CreateAllocation is called, owns one
// allocation in it. Data moves synchronously, and only between an allocation and host memory: device to device
// copies always go through the host.
package device

import "fmt"

// Descriptor is implemented by each memory back-end.
//
// Identity (Type and Equal) never considers the content or the allocation: two descriptors for the same device
// are equal even if only one of them holds an allocation.
type Descriptor interface {
	fmt.Stringer

	// Type of the memory space.
	Type() AllocationType

	// CreateAllocation reserves size bytes in the memory space, zero-filled if requested.
	// It fails with an *AllocationError.
	CreateAllocation(size int, zero bool) error

	// Data returns the bytes of the allocation as seen by the device, or nil if nothing was allocated.
	Data() []byte

	// FromHost copies len(src) bytes from host memory into the start of the allocation.
	// It fails with a *TransferError.
	FromHost(src []byte) error

	// ToHost copies len(dst) bytes from the start of the allocation into host memory.
	// It fails with a *TransferError.
	ToHost(dst []byte) error

	// Clone returns a descriptor with the same identity but without an allocation.
	Clone() Descriptor

	// Equal returns whether other refers to the same memory space (type and device parameters).
	Equal(other Descriptor) bool

	// Free releases the allocation. It is idempotent.
	Free() error
}

// Equal compares two possibly nil descriptors: two nil descriptors are equal.
func Equal(a, b Descriptor) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// Ordinal is implemented by descriptors of memory spaces that have several instances, like multiple GPUs.
type Ordinal interface {
	DeviceNum() int
}

// DeviceNum returns the device number of d, or 0 if d doesn't implement Ordinal.
func DeviceNum(d Descriptor) int {
	if o, ok := d.(Ordinal); ok {
		return o.DeviceNum()
	}
	return 0
}
