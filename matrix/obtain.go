package matrix

import (
	"github.com/gomlx/devmem/device"
	"github.com/gomlx/devmem/device/host"
	"github.com/gomlx/devmem/metadata"
	"github.com/gomlx/devmem/metrics"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// isHost returns whether desc refers to the canonical storage: a nil descriptor or a host one.
func isHost(desc device.Descriptor) bool {
	return desc == nil || desc.Type() == device.Host
}

// Obtain returns the bytes of an up-to-date copy of the region rng (nil for the whole matrix) on the memory space
// desc (nil for host), transferring data if needed.
//
//   - Host (desc == nil): if the canonical storage is stale, it is first refreshed from a fresh device copy.
//     The returned bytes are the canonical storage from the first to the last element of the region, with rows
//     RowSkip elements apart.
//   - Device: the host is made fresh first (copies are always refreshed from the host). If there is no copy for
//     (desc, rng) one is registered, allocated and filled. A stale copy is refreshed, and a fresh one is returned
//     without any transfer. Device copies are packed: rows are contiguous.
//
// On error (see device.AllocationError and device.TransferError) the copy is not marked fresh, so a new call
// retries the allocation or transfer.
//
// The returned copy must not be written, unless the write is declared with MarkWritten, see also ObtainMutable.
// It panics if rng is not within the matrix.
func (m *Dense[T]) Obtain(desc device.Descriptor, rng *device.Range) ([]byte, error) {
	m.assertRange(rng)
	m.family.mu.Lock()
	defer m.family.mu.Unlock()
	m.assertAlive()
	if isHost(desc) {
		return m.obtainHost(rng)
	}
	return m.obtainDevice(desc, rng)
}

// ObtainMutable is like Obtain, and it also declares the copy written (see MarkWritten): it becomes the only
// fresh copy.
func (m *Dense[T]) ObtainMutable(desc device.Descriptor, rng *device.Range) ([]byte, error) {
	m.assertRange(rng)
	m.family.mu.Lock()
	defer m.family.mu.Unlock()
	m.assertAlive()
	var data []byte
	var err error
	if isHost(desc) {
		data, err = m.obtainHost(rng)
	} else {
		data, err = m.obtainDevice(desc, rng)
	}
	if err != nil {
		return nil, err
	}
	if err = m.markWritten(desc, rng); err != nil {
		return nil, err
	}
	return data, nil
}

// MarkWritten declares that the copy for (desc, rng) was modified: it becomes the only fresh copy, and every other
// copy (including the host's) will be refreshed from it when next obtained.
//
// For the host (desc == nil) rng is ignored: canonical storage is always the whole matrix.
// It returns an error if there is no fresh copy for (desc, rng): a copy must be obtained before it is written.
func (m *Dense[T]) MarkWritten(desc device.Descriptor, rng *device.Range) error {
	m.assertRange(rng)
	m.family.mu.Lock()
	defer m.family.mu.Unlock()
	m.assertAlive()
	return m.markWritten(desc, rng)
}

func (m *Dense[T]) markWritten(desc device.Descriptor, rng *device.Range) error {
	var e *metadata.Entry
	if isHost(desc) {
		e = m.registry.Find(host.New(), nil)
	} else {
		e = m.registry.Find(desc, rng)
	}
	if e == nil {
		return errors.Errorf("%s has no copy on %s%s to mark as written", m, describe(desc), rng)
	}
	if !m.registry.IsFresh(e.ID()) {
		return errors.Errorf("%s: copy %s is stale, it must be obtained before it is written", m, e)
	}
	return m.declareWritten(e)
}

func describe(desc device.Descriptor) string {
	if desc == nil {
		return "Host"
	}
	return desc.String()
}

func (m *Dense[T]) obtainHost(rng *device.Range) ([]byte, error) {
	if err := m.ensureHostFresh(); err != nil {
		return nil, err
	}
	data, _ := m.hostRegion(rng)
	return data, nil
}

// ensureHostFresh materializes canonical storage and brings it up to date: every matrix sharing it (m and its views,
// or its parent and siblings if m is a view) refreshes its stale host copy from its fresh device copies.
func (m *Dense[T]) ensureHostFresh() error {
	m.materialize()
	for _, member := range m.family.members {
		if err := member.refreshHost(); err != nil {
			return err
		}
	}
	return nil
}

// refreshHost refreshes the host copy of m from its own fresh device copies, if it is stale.
// Canonical storage must be materialized.
func (m *Dense[T]) refreshHost() error {
	hostEntry := m.hostEntry()
	if m.registry.IsFresh(hostEntry.ID()) {
		return nil
	}
	if err := m.reconcileHost(); err != nil {
		return err
	}
	m.registry.MarkFresh(hostEntry.ID())
	return nil
}

// reconcileHost pulls the fresh device copies into canonical storage: a whole-matrix copy if there is one,
// otherwise every fresh region.
func (m *Dense[T]) reconcileHost() error {
	var sources []*metadata.Entry
	for _, e := range m.registry.FreshEntries() {
		if e.Type() == device.Host {
			continue
		}
		if e.Range().Covers(m.rows, m.cols) {
			sources = []*metadata.Entry{e}
			break
		}
		sources = append(sources, e)
	}
	if len(sources) == 0 {
		return errors.Errorf("%s: host copy is stale but there are no fresh copies to refresh it from", m)
	}
	for _, e := range sources {
		if err := m.pull(e); err != nil {
			return errors.WithMessagef(err, "refreshing host copy of %s", m)
		}
	}
	metrics.Reconciliations.Inc()
	return nil
}

// declareWritten makes e the only fresh copy of m.
//
// Writes through m change the storage shared with the rest of its family: every other member is first refreshed
// (so the latest values of a previous device write are not lost) and then its device copies become stale.
func (m *Dense[T]) declareWritten(e *metadata.Entry) error {
	for _, member := range m.family.members {
		if member == m {
			continue
		}
		if err := member.refreshHost(); err != nil {
			return errors.WithMessagef(err, "writing %s", m)
		}
		member.registry.MarkSoleFresh(member.hostEntry().ID())
	}
	m.registry.MarkSoleFresh(e.ID())
	return nil
}

func (m *Dense[T]) obtainDevice(desc device.Descriptor, rng *device.Range) ([]byte, error) {
	e := m.registry.Find(desc, rng)
	if e != nil && m.registry.IsFresh(e.ID()) {
		return e.Allocation().Data(), nil
	}

	// Copies are always refreshed from the host.
	if err := m.ensureHostFresh(); err != nil {
		return nil, err
	}
	if e == nil {
		e = m.registry.Register(desc, rng)
	}
	alloc := e.Allocation()
	if size := m.regionBytes(rng); len(alloc.Data()) != size {
		err := alloc.CreateAllocation(size, false)
		metrics.ObserveAllocation(e.Type(), err)
		if err != nil {
			return nil, errors.WithMessagef(err, "obtaining %s%s on %s", m, rng, desc)
		}
	}
	if err := m.push(e); err != nil {
		return nil, errors.WithMessagef(err, "obtaining %s%s on %s", m, rng, desc)
	}
	m.registry.MarkFresh(e.ID())
	return alloc.Data(), nil
}

// push copies the region of entry e from canonical storage to its allocation.
func (m *Dense[T]) push(e *metadata.Entry) error {
	rng := e.Range()
	size := m.regionBytes(rng)
	data, contiguous := m.hostRegion(rng)
	var err error
	if contiguous {
		err = e.Allocation().FromHost(data)
	} else {
		staging := stagingPools.Get(size)
		m.gather(rng, staging.Bytes)
		err = e.Allocation().FromHost(staging.Bytes)
		stagingPools.Return(staging)
	}
	metrics.ObserveTransfer(e.Type(), device.ToDevice, size, err)
	if err == nil && klog.V(2).Enabled() {
		klog.Infof("%s: pushed %d bytes to entry %s", m, size, e)
	}
	return err
}

// pull copies the allocation of entry e into its region of canonical storage.
func (m *Dense[T]) pull(e *metadata.Entry) error {
	rng := e.Range()
	size := m.regionBytes(rng)
	data, contiguous := m.hostRegion(rng)
	var err error
	if contiguous {
		err = e.Allocation().ToHost(data)
	} else {
		staging := stagingPools.Get(size)
		err = e.Allocation().ToHost(staging.Bytes)
		if err == nil {
			m.scatter(rng, staging.Bytes)
		}
		stagingPools.Return(staging)
	}
	metrics.ObserveTransfer(e.Type(), device.ToHost, size, err)
	if err == nil && klog.V(2).Enabled() {
		klog.Infof("%s: pulled %d bytes from entry %s", m, size, e)
	}
	return err
}

// Values returns the canonical storage, refreshed if needed. Row r starts at r*RowSkip().
// The values must not be modified, see MutableValues.
func (m *Dense[T]) Values() ([]T, error) {
	m.family.mu.Lock()
	defer m.family.mu.Unlock()
	m.assertAlive()
	if err := m.ensureHostFresh(); err != nil {
		return nil, err
	}
	return m.values, nil
}

// MutableValues is like Values, but the host copy is declared written: every device copy becomes stale.
func (m *Dense[T]) MutableValues() ([]T, error) {
	m.family.mu.Lock()
	defer m.family.mu.Unlock()
	m.assertAlive()
	if err := m.ensureHostFresh(); err != nil {
		return nil, err
	}
	if err := m.declareWritten(m.hostEntry()); err != nil {
		return nil, err
	}
	return m.values, nil
}

func (m *Dense[T]) assertIndex(row, col int) {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		exceptions.Panicf("%s: index (%d, %d) out of bounds", m, row, col)
	}
}

// Get returns the value at (row, col), refreshing the host copy if needed.
func (m *Dense[T]) Get(row, col int) (T, error) {
	m.assertIndex(row, col)
	values, err := m.Values()
	if err != nil {
		var zero T
		return zero, err
	}
	return values[row*m.rowSkip+col], nil
}

// Set the value at (row, col) in the host copy. Every device copy becomes stale.
func (m *Dense[T]) Set(row, col int, value T) error {
	m.assertIndex(row, col)
	values, err := m.MutableValues()
	if err != nil {
		return err
	}
	values[row*m.rowSkip+col] = value
	return nil
}
