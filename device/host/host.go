// Package host implements the device.Descriptor of main memory.
//
// The host descriptor of a matrix is degenerate: it is attached to the matrix canonical storage, so pushing and
// pulling through it are no-ops.
package host

import (
	"unsafe"

	"github.com/gomlx/devmem/device"
	"github.com/pkg/errors"
)

// Descriptor of host memory. There is only one host memory space, so all host descriptors are equal.
type Descriptor struct {
	data []byte
}

var _ device.Descriptor = (*Descriptor)(nil)

// New returns a host descriptor without an allocation.
func New() *Descriptor {
	return &Descriptor{}
}

// Attach binds existing host memory (typically the canonical storage of a matrix) as the allocation.
func (d *Descriptor) Attach(data []byte) {
	d.data = data
}

// Type implements device.Descriptor.
func (d *Descriptor) Type() device.AllocationType { return device.Host }

// String implements fmt.Stringer.
func (d *Descriptor) String() string { return "Host" }

// CreateAllocation implements device.Descriptor.
// If memory is already attached and large enough it is reused.
func (d *Descriptor) CreateAllocation(size int, zero bool) error {
	if size < 0 {
		return &device.AllocationError{Type: device.Host, Size: size, Err: errors.Errorf("negative size")}
	}
	if d.data != nil && len(d.data) >= size {
		if zero {
			clear(d.data[:size])
		}
		return nil
	}
	d.data = AlignedAlloc(size, Alignment())
	return nil
}

// Data implements device.Descriptor.
func (d *Descriptor) Data() []byte { return d.data }

// FromHost implements device.Descriptor.
func (d *Descriptor) FromHost(src []byte) error {
	if len(src) > len(d.data) {
		return &device.TransferError{Type: device.Host, Direction: device.ToDevice, Size: len(src),
			Err: errors.Errorf("allocation has only %d bytes", len(d.data))}
	}
	if !sameStart(src, d.data) {
		copy(d.data, src)
	}
	return nil
}

// ToHost implements device.Descriptor.
func (d *Descriptor) ToHost(dst []byte) error {
	if len(dst) > len(d.data) {
		return &device.TransferError{Type: device.Host, Direction: device.ToHost, Size: len(dst),
			Err: errors.Errorf("allocation has only %d bytes", len(d.data))}
	}
	if !sameStart(dst, d.data) {
		copy(dst, d.data)
	}
	return nil
}

// Clone implements device.Descriptor.
func (d *Descriptor) Clone() device.Descriptor { return New() }

// Equal implements device.Descriptor.
func (d *Descriptor) Equal(other device.Descriptor) bool {
	_, ok := other.(*Descriptor)
	return ok
}

// Free implements device.Descriptor. It only drops the reference: host memory is garbage collected.
func (d *Descriptor) Free() error {
	d.data = nil
	return nil
}

func sameStart(a, b []byte) bool {
	return len(a) > 0 && len(b) > 0 && unsafe.SliceData(a) == unsafe.SliceData(b)
}
