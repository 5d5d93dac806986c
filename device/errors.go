package device

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// Direction of a transfer, always relative to host memory.
type Direction int

const (
	ToDevice Direction = iota
	ToHost
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case ToDevice:
		return "to_device"
	case ToHost:
		return "to_host"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// AllocationError is returned when a memory space cannot reserve an allocation.
type AllocationError struct {
	Type   AllocationType
	Device int
	Size   int
	Err    error
}

// Error implements error.
func (e *AllocationError) Error() string {
	return fmt.Sprintf("failed to allocate %s on %s:%d: %v", humanize.Bytes(uint64(e.Size)), e.Type, e.Device, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AllocationError) Unwrap() error { return e.Err }

// TransferError is returned when copying between host memory and an allocation fails.
type TransferError struct {
	Type      AllocationType
	Device    int
	Direction Direction
	Size      int
	Err       error
}

// Error implements error.
func (e *TransferError) Error() string {
	return fmt.Sprintf("failed to transfer %s %s (%s:%d): %v", humanize.Bytes(uint64(e.Size)), e.Direction,
		e.Type, e.Device, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransferError) Unwrap() error { return e.Err }

// IsAllocationError returns whether err is or wraps an *AllocationError.
func IsAllocationError(err error) bool {
	var allocErr *AllocationError
	return errors.As(err, &allocErr)
}

// IsTransferError returns whether err is or wraps a *TransferError.
func IsTransferError(err error) bool {
	var transferErr *TransferError
	return errors.As(err, &transferErr)
}
