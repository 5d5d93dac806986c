// Package simulated implements accelerator and remote memory spaces backed by Go memory.
//
// Each Memory models one device (e.g. "GPUCUDA:1") with a fixed capacity. Transfers are plain copies, and
// failures can be injected to exercise the error paths of the coherence protocol.
package simulated

import (
	"fmt"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/devmem/device"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CapacityEnv is the environment variable with the default capacity of simulated devices.
// Human-readable sizes are accepted, e.g. "64MiB" or "2GB".
const CapacityEnv = "DEVMEM_SIM_CAPACITY"

var defaultCapacity uint64 = 1 << 30

func init() {
	value, found := os.LookupEnv(CapacityEnv)
	if !found {
		return
	}
	capacity, err := humanize.ParseBytes(value)
	if err != nil {
		klog.Errorf("Invalid $%s=%q, using %s: %v", CapacityEnv, value, humanize.IBytes(defaultCapacity), err)
		return
	}
	defaultCapacity = capacity
}

// DefaultCapacity of simulated devices in bytes, see CapacityEnv.
func DefaultCapacity() int {
	return int(defaultCapacity)
}

// Memory is one simulated memory space. It is safe for concurrent use.
type Memory struct {
	allocType device.AllocationType
	deviceNum int
	capacity  int

	mu               sync.Mutex
	inUse            int
	numAllocations   int
	failNextAlloc    error
	failNextTransfer error
}

// NewMemory creates a simulated memory space of the given type, device number and capacity in bytes.
// If capacity <= 0, DefaultCapacity is used.
func NewMemory(allocType device.AllocationType, deviceNum int, capacity int) *Memory {
	if !allocType.IsAAllocationType() {
		exceptions.Panicf("simulated.NewMemory: invalid allocation type %s", allocType)
	}
	if allocType == device.Host {
		exceptions.Panicf("simulated.NewMemory: host memory is not simulated, use package host")
	}
	if capacity <= 0 {
		capacity = DefaultCapacity()
	}
	return &Memory{allocType: allocType, deviceNum: deviceNum, capacity: capacity}
}

// Type of the memory space.
func (m *Memory) Type() device.AllocationType { return m.allocType }

// DeviceNum of the memory space.
func (m *Memory) DeviceNum() int { return m.deviceNum }

// Capacity in bytes.
func (m *Memory) Capacity() int { return m.capacity }

// InUse returns the number of bytes currently allocated.
func (m *Memory) InUse() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inUse
}

// NumAllocations returns the number of live allocations.
func (m *Memory) NumAllocations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.numAllocations
}

// FailNextAllocation makes the next allocation on this memory fail with err.
func (m *Memory) FailNextAllocation(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextAlloc = err
}

// FailNextTransfer makes the next transfer (in either direction) on this memory fail with err.
func (m *Memory) FailNextTransfer(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextTransfer = err
}

// String implements fmt.Stringer.
func (m *Memory) String() string {
	return fmt.Sprintf("%s:%d", m.allocType, m.deviceNum)
}

// allocate reserves size bytes. Go memory is always zero-filled.
func (m *Memory) allocate(size int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNextAlloc; err != nil {
		m.failNextAlloc = nil
		return nil, m.allocationError(size, err)
	}
	if m.inUse+size > m.capacity {
		return nil, m.allocationError(size, errors.Errorf("out of memory: %s of %s in use",
			humanize.IBytes(uint64(m.inUse)), humanize.IBytes(uint64(m.capacity))))
	}
	m.inUse += size
	m.numAllocations++
	return make([]byte, size), nil
}

func (m *Memory) release(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inUse -= size
	m.numAllocations--
}

// takeTransferFailure returns the injected transfer failure, if any, and resets it.
func (m *Memory) takeTransferFailure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.failNextTransfer
	m.failNextTransfer = nil
	return err
}

func (m *Memory) allocationError(size int, err error) error {
	return &device.AllocationError{Type: m.allocType, Device: m.deviceNum, Size: size, Err: err}
}

func (m *Memory) transferError(direction device.Direction, size int, err error) error {
	return &device.TransferError{Type: m.allocType, Device: m.deviceNum, Direction: direction, Size: size, Err: err}
}
