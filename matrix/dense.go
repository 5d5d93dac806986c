// Package matrix implements Dense, a row-major matrix whose data may have copies in several memory spaces
// (host, GPUs, FPGAs, remote workers).
//
// The host copy (canonical storage) is the single source every device copy is refreshed from: data never moves
// directly between two devices. Each matrix keeps the directory of its copies in a metadata.Registry, and Obtain
// returns the bytes of an up-to-date copy on the requested memory space, allocating and transferring as needed.
//
// Writes must be declared (see Dense.ObtainMutable and Dense.MarkWritten): the written copy becomes the only
// fresh one, and the others are refreshed from it, through the host, when next obtained.
//
// Matrices are released with Destroy, which frees every device allocation once the last reference is released.
package matrix

import (
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/devmem/device"
	"github.com/gomlx/devmem/dtypes"
	"github.com/gomlx/devmem/metadata"
	"github.com/gomlx/devmem/metrics"
	"github.com/gomlx/exceptions"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Dense is a rows x cols matrix of values of type T, stored row-major.
//
// Rows are rowSkip elements apart in canonical storage: rowSkip is larger than cols for views of a sub-range of
// columns of another matrix.
//
// Coherence operations are serialized for all matrices sharing canonical storage (a matrix and its views), but
// callers are expected to use a matrix from one owner at a time: the protocol doesn't protect a device copy being
// written by one goroutine while another reads it.
type Dense[T dtypes.Supported] struct {
	// family of matrices sharing canonical storage with this one. Its mutex serializes the coherence protocol.
	// Dimensions are immutable.
	family *family[T]

	rows, cols, rowSkip int

	// values is the canonical storage, starting at element (0, 0), and spanning (rows-1)*rowSkip+cols elements.
	// It is shared with views. It is nil until first host access for matrices created on a device.
	values []T

	registry *metadata.Registry

	// appendNext is the linear (row-major, not considering rowSkip) index of the next cell to be zeroed by the
	// append cursor, or -1 if not appending.
	appendNext int

	finalized bool
}

// family is the set of live matrices sharing canonical storage: a matrix and its views, including views of views.
//
// Each member keeps its own registry, and at most one member has a stale host copy at any time: the last one
// written on a device. See Dense.ensureHostFresh and Dense.declareWritten.
type family[T dtypes.Supported] struct {
	mu      sync.Mutex
	members []*Dense[T]
}

func (f *family[T]) remove(m *Dense[T]) {
	f.members = slices.DeleteFunc(f.members, func(member *Dense[T]) bool { return member == m })
}

var (
	_ metadata.Object = (*Dense[float32])(nil)
	_ fmt.Stringer    = (*Dense[float32])(nil)
)

// newDense creates a matrix that joins fam, or a new family if fam is nil. When joining fam, its lock must be held.
func newDense[T dtypes.Supported](rows, cols, rowSkip int, fam *family[T]) *Dense[T] {
	if fam == nil {
		fam = &family[T]{}
	}
	m := &Dense[T]{
		family:     fam,
		rows:       rows,
		cols:       cols,
		rowSkip:    rowSkip,
		registry:   metadata.NewRegistry(),
		appendNext: -1,
	}
	fam.members = append(fam.members, m)
	runtime.AddCleanup(m, warnLeakedAllocations, m.registry)
	return m
}

// warnLeakedAllocations is called when a matrix is garbage collected. It never frees device memory: it only reports
// device allocations that were never released with Destroy.
func warnLeakedAllocations(registry *metadata.Registry) {
	if registry.Destroyed() {
		return
	}
	var leaked int
	for _, e := range registry.Snapshot().Entries {
		if e.Type != device.Host {
			leaked += e.Allocated
		}
	}
	if leaked > 0 {
		klog.Warningf("Matrix %s garbage collected without being destroyed (references=%d): %s of device memory leaked",
			registry.ObjectID(), registry.RefCount(), humanize.IBytes(uint64(leaked)))
	}
}

// Config for the creation of a Dense matrix, see New.
type Config[T dtypes.Supported] struct {
	rows, cols int
	zero       bool
	flat       []T
	desc       device.Descriptor

	err error
}

// New starts the configuration of a new rows x cols matrix. Call Config.Done to create it.
//
// By default, the matrix is created with canonical storage on the host. Use OnDevice to create it directly
// on a device instead, in which case host storage is only allocated when first needed.
//
// It panics if rows or cols are not positive.
func New[T dtypes.Supported](rows, cols int) *Config[T] {
	if rows <= 0 || cols <= 0 {
		exceptions.Panicf("matrix.New[%s](%d, %d): dimensions must be positive", dtypes.FromGenericsType[T](), rows, cols)
	}
	return &Config[T]{rows: rows, cols: cols}
}

// Zero fills the new matrix with zeros.
// Host storage is always zero-filled: this only matters for matrices created on a device.
func (c *Config[T]) Zero() *Config[T] {
	c.zero = true
	return c
}

// FromFlat sets the initial values of the matrix, in row-major order. They are copied.
func (c *Config[T]) FromFlat(flat []T) *Config[T] {
	if c.err != nil {
		return c
	}
	if len(flat) != c.rows*c.cols {
		c.err = errors.Errorf("matrix.New(%d, %d).FromFlat() requires %d values, got %d", c.rows, c.cols,
			c.rows*c.cols, len(flat))
		return c
	}
	c.flat = flat
	return c
}

// OnDevice creates the matrix directly on the memory space of desc. The descriptor is cloned.
func (c *Config[T]) OnDevice(desc device.Descriptor) *Config[T] {
	if c.err != nil {
		return c
	}
	if desc == nil {
		c.err = errors.New("matrix.New().OnDevice() given a nil descriptor")
		return c
	}
	c.desc = desc
	return c
}

// Done creates the matrix, or returns the first error of the configuration or of the device allocation.
func (c *Config[T]) Done() (*Dense[T], error) {
	if c.err != nil {
		return nil, c.err
	}
	m := newDense[T](c.rows, c.cols, c.cols, nil)
	onDevice := c.desc != nil && c.desc.Type() != device.Host
	if klog.V(1).Enabled() {
		where := "host"
		if onDevice {
			where = c.desc.String()
		}
		klog.Infof("Creating %s on %s, required memory %s", m, where, humanize.IBytes(uint64(m.BufferSize())))
	}

	if !onDevice || c.flat != nil {
		// Canonical storage on host.
		m.materialize()
		copy(m.values, c.flat)
		m.registry.MarkFresh(m.hostEntry().ID())
		if !onDevice {
			return m, nil
		}
		if _, err := m.obtainDevice(c.desc, nil); err != nil {
			return nil, m.abandon(err)
		}
		return m, nil
	}

	// Created on device: host storage is only allocated when needed.
	e := m.registry.Register(c.desc, nil)
	err := e.Allocation().CreateAllocation(m.BufferSize(), c.zero)
	metrics.ObserveAllocation(e.Type(), err)
	if err != nil {
		return nil, m.abandon(errors.WithMessagef(err, "creating %s on %s", m, c.desc))
	}
	m.registry.MarkFresh(e.ID())
	return m, nil
}

// abandon destroys a matrix that failed to be created, and returns err plus any teardown errors.
func (m *Dense[T]) abandon(err error) error {
	if destroyErr := metadata.Destroy(m); destroyErr != nil {
		return multierror.Append(err, destroyErr)
	}
	return err
}

// Zeros returns a new rows x cols matrix on host, filled with zeros.
func Zeros[T dtypes.Supported](rows, cols int) *Dense[T] {
	m, err := New[T](rows, cols).Done()
	if err != nil {
		panic(err) // Host creation doesn't fail.
	}
	return m
}

// FromFlat returns a new rows x cols matrix on host with a copy of flat, in row-major order.
// It panics if len(flat) != rows*cols.
func FromFlat[T dtypes.Supported](rows, cols int, flat []T) *Dense[T] {
	m, err := New[T](rows, cols).FromFlat(flat).Done()
	if err != nil {
		exceptions.Panicf("matrix.FromFlat: %v", err)
	}
	return m
}

// Rows returns the number of rows.
func (m *Dense[T]) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Dense[T]) Cols() int { return m.cols }

// RowSkip returns the distance, in elements, between the start of consecutive rows in canonical storage.
func (m *Dense[T]) RowSkip() int { return m.rowSkip }

// NumItems returns rows*cols.
func (m *Dense[T]) NumItems() int { return m.rows * m.cols }

// DType of the elements.
func (m *Dense[T]) DType() dtypes.DType { return dtypes.FromGenericsType[T]() }

// BufferSize is the size in bytes of a packed (contiguous) copy of the whole matrix, as allocated on devices.
func (m *Dense[T]) BufferSize() int {
	return m.DType().SizeForDimensions(m.rows, m.cols)
}

// Metadata implements metadata.Object.
func (m *Dense[T]) Metadata() *metadata.Registry { return m.registry }

// Retain adds a reference to the matrix: one more Destroy is needed to release it.
func (m *Dense[T]) Retain() {
	m.registry.Retain()
}

// Finalize implements metadata.Object. It is called by metadata.Destroy when the last reference is released.
//
// If other matrices share its canonical storage, and the latest values are only on a device, they are pulled
// to the host first.
func (m *Dense[T]) Finalize() error {
	m.family.mu.Lock()
	defer m.family.mu.Unlock()
	var err error
	if len(m.family.members) > 1 && m.values != nil {
		if err = m.refreshHost(); err != nil {
			err = errors.WithMessagef(err, "destroying %s, shared storage may be stale", m)
		}
	}
	m.family.remove(m)
	m.finalized = true
	m.values = nil
	m.appendNext = -1
	return err
}

// Destroy releases one reference to m. When the last reference is released, the host storage is dropped
// and every device allocation is freed.
func Destroy[T dtypes.Supported](m *Dense[T]) error {
	return metadata.Destroy(m)
}

func (m *Dense[T]) assertAlive() {
	if m.finalized {
		exceptions.Panicf("%s used after it was destroyed", m)
	}
}

// String implements fmt.Stringer. It doesn't include the values, see Print.
func (m *Dense[T]) String() string {
	return fmt.Sprintf("Dense[%s](%dx%d)", m.DType(), m.rows, m.cols)
}
