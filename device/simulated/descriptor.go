package simulated

import (
	"github.com/gomlx/devmem/device"
	"github.com/pkg/errors"
)

// Descriptor of one allocation on a simulated Memory.
type Descriptor struct {
	mem  *Memory
	data []byte
}

var (
	_ device.Descriptor = (*Descriptor)(nil)
	_ device.Ordinal    = (*Descriptor)(nil)
)

// New returns a descriptor for the memory space mem, without an allocation.
func New(mem *Memory) *Descriptor {
	return &Descriptor{mem: mem}
}

// Memory where the allocation lives.
func (d *Descriptor) Memory() *Memory { return d.mem }

// Type implements device.Descriptor.
func (d *Descriptor) Type() device.AllocationType { return d.mem.allocType }

// DeviceNum implements device.Ordinal.
func (d *Descriptor) DeviceNum() int { return d.mem.deviceNum }

// String implements fmt.Stringer.
func (d *Descriptor) String() string { return d.mem.String() }

// CreateAllocation implements device.Descriptor.
// An existing allocation of the same size is reused, one of a different size is released first.
func (d *Descriptor) CreateAllocation(size int, zero bool) error {
	if size < 0 {
		return d.mem.allocationError(size, errors.Errorf("negative size"))
	}
	if d.data != nil {
		if len(d.data) == size {
			if zero {
				clear(d.data)
			}
			return nil
		}
		_ = d.Free()
	}
	data, err := d.mem.allocate(size)
	if err != nil {
		return err
	}
	d.data = data
	return nil
}

// Data implements device.Descriptor.
// The returned bytes are the device memory itself: writing to them simulates a kernel running on the device.
func (d *Descriptor) Data() []byte { return d.data }

// FromHost implements device.Descriptor.
func (d *Descriptor) FromHost(src []byte) error {
	if err := d.checkTransfer(device.ToDevice, len(src)); err != nil {
		return err
	}
	copy(d.data, src)
	return nil
}

// ToHost implements device.Descriptor.
func (d *Descriptor) ToHost(dst []byte) error {
	if err := d.checkTransfer(device.ToHost, len(dst)); err != nil {
		return err
	}
	copy(dst, d.data)
	return nil
}

func (d *Descriptor) checkTransfer(direction device.Direction, size int) error {
	if err := d.mem.takeTransferFailure(); err != nil {
		return d.mem.transferError(direction, size, err)
	}
	if d.data == nil {
		return d.mem.transferError(direction, size, errors.New("no allocation"))
	}
	if size > len(d.data) {
		return d.mem.transferError(direction, size, errors.Errorf("allocation has only %d bytes", len(d.data)))
	}
	return nil
}

// Clone implements device.Descriptor.
func (d *Descriptor) Clone() device.Descriptor { return New(d.mem) }

// Equal implements device.Descriptor: descriptors are equal if they have the same type and device number.
func (d *Descriptor) Equal(other device.Descriptor) bool {
	if other == nil || other.Type() != d.Type() {
		return false
	}
	o, ok := other.(device.Ordinal)
	return ok && o.DeviceNum() == d.DeviceNum()
}

// Free implements device.Descriptor.
func (d *Descriptor) Free() error {
	if d.data == nil {
		return nil
	}
	d.mem.release(len(d.data))
	d.data = nil
	return nil
}
