package matrix

import (
	"unsafe"

	"github.com/gomlx/devmem/device"
	"github.com/gomlx/devmem/device/host"
	"github.com/gomlx/devmem/internal/bufpool"
	"github.com/gomlx/devmem/metadata"
	"github.com/gomlx/exceptions"
)

// storageLen is the number of elements spanned by canonical storage.
func (m *Dense[T]) storageLen() int {
	return (m.rows-1)*m.rowSkip + m.cols
}

// materialize allocates canonical storage if not yet allocated.
func (m *Dense[T]) materialize() {
	if m.values != nil {
		return
	}
	n := m.storageLen()
	raw := host.AlignedAlloc(n*m.elemSize(), host.Alignment())
	m.values = unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(raw))), n)
}

// rawBytes returns canonical storage as bytes.
func (m *Dense[T]) rawBytes() []byte {
	return bytesOf(m.values)
}

func bytesOf[T any](values []T) []byte {
	if len(values) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(values))), len(values)*int(unsafe.Sizeof(zero)))
}

// hostEntry returns the entry of the canonical storage, registering it if needed. Canonical storage must be
// materialized.
func (m *Dense[T]) hostEntry() *metadata.Entry {
	e := m.registry.Register(host.New(), nil)
	if hostDesc, ok := e.Allocation().(*host.Descriptor); ok && hostDesc.Data() == nil {
		hostDesc.Attach(m.rawBytes())
	}
	return e
}

// assertRange panics if rng is not a non-empty region within the matrix. A nil range is always valid.
func (m *Dense[T]) assertRange(rng *device.Range) {
	if rng == nil {
		return
	}
	if rng.RowLen <= 0 || rng.ColLen <= 0 || !rng.Contains(m.rows, m.cols) {
		exceptions.Panicf("%s: range %s out of bounds", m, rng)
	}
}

// region returns the explicit region for rng, the whole matrix if rng is nil.
func (m *Dense[T]) region(rng *device.Range) device.Range {
	if rng == nil {
		return device.Range{RowLen: m.rows, ColLen: m.cols}
	}
	return *rng
}

// regionBytes is the size of a packed copy of the region.
func (m *Dense[T]) regionBytes(rng *device.Range) int {
	r := m.region(rng)
	return r.NumItems() * m.elemSize()
}

// hostRegion returns the bytes of canonical storage from the first to the last element of the region, and whether
// they are contiguous (no gaps between rows).
func (m *Dense[T]) hostRegion(rng *device.Range) (data []byte, contiguous bool) {
	r := m.region(rng)
	elemSize := m.elemSize()
	start := (r.RowStart*m.rowSkip + r.ColStart) * elemSize
	end := ((r.RowStart+r.RowLen-1)*m.rowSkip + r.ColStart + r.ColLen) * elemSize
	contiguous = r.RowLen == 1 || r.ColLen == m.rowSkip
	return m.rawBytes()[start:end], contiguous
}

// gather copies the region from canonical storage into packed.
func (m *Dense[T]) gather(rng *device.Range, packed []byte) {
	r := m.region(rng)
	elemSize := m.elemSize()
	raw := m.rawBytes()
	rowBytes := r.ColLen * elemSize
	for row := range r.RowLen {
		src := ((r.RowStart+row)*m.rowSkip + r.ColStart) * elemSize
		copy(packed[row*rowBytes:(row+1)*rowBytes], raw[src:src+rowBytes])
	}
}

// scatter copies packed into the region of canonical storage.
func (m *Dense[T]) scatter(rng *device.Range, packed []byte) {
	r := m.region(rng)
	elemSize := m.elemSize()
	raw := m.rawBytes()
	rowBytes := r.ColLen * elemSize
	for row := range r.RowLen {
		dst := ((r.RowStart+row)*m.rowSkip + r.ColStart) * elemSize
		copy(raw[dst:dst+rowBytes], packed[row*rowBytes:(row+1)*rowBytes])
	}
}

// stagingPools are used when transferring regions that are not contiguous in canonical storage.
var stagingPools = bufpool.Default

// elemSize is the size in bytes of one element.
func (m *Dense[T]) elemSize() int {
	return m.DType().Size()
}
