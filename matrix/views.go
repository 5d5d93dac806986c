package matrix

import (
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// Slice returns a view of rows [rowStart, rowEnd) and columns [colStart, colEnd) of m.
//
// The view shares canonical storage with m, without copying. The view starts with its own registry holding only
// its (fresh) host copy: device copies of m are not shared with the view. Coherence is kept across the shared
// storage: a write declared on the view makes the device copies of m stale, and a host read of the view first
// refreshes the storage from a device copy of m written later (and vice versa). The view must be destroyed
// separately.
//
// It panics if the region is empty or out of bounds.
func (m *Dense[T]) Slice(rowStart, rowEnd, colStart, colEnd int) (*Dense[T], error) {
	if rowStart < 0 || rowStart >= rowEnd || rowEnd > m.rows || colStart < 0 || colStart >= colEnd || colEnd > m.cols {
		exceptions.Panicf("%s.Slice(%d, %d, %d, %d): invalid or out of bounds region", m,
			rowStart, rowEnd, colStart, colEnd)
	}
	m.family.mu.Lock()
	defer m.family.mu.Unlock()
	m.assertAlive()
	if err := m.ensureHostFresh(); err != nil {
		return nil, err
	}

	view := newDense[T](rowEnd-rowStart, colEnd-colStart, m.rowSkip, m.family)
	offset := rowStart*m.rowSkip + colStart
	view.values = m.values[offset : offset+view.storageLen() : offset+view.storageLen()]
	view.registry.MarkFresh(view.hostEntry().ID())
	klog.V(1).Infof("%s: created view %s at offset %d", m, view, offset)
	return view, nil
}

// SliceRow returns a view of rows [rowStart, rowEnd) of m, see Slice.
func (m *Dense[T]) SliceRow(rowStart, rowEnd int) (*Dense[T], error) {
	return m.Slice(rowStart, rowEnd, 0, m.cols)
}

// SliceCol returns a view of columns [colStart, colEnd) of m, see Slice.
func (m *Dense[T]) SliceCol(colStart, colEnd int) (*Dense[T], error) {
	return m.Slice(0, m.rows, colStart, colEnd)
}

// VectorTranspose returns a transposed view of a vector (a matrix with one row or one column), sharing
// canonical storage. Like Slice, the view has its own registry.
//
// It panics if m is not a vector, or if it is a column vector whose elements are not contiguous (a column view
// of a larger matrix), since it can't be represented as a row.
func (m *Dense[T]) VectorTranspose() (*Dense[T], error) {
	var rowSkip int
	switch {
	case m.rows == 1:
		// Row vector to column vector: consecutive elements are consecutive rows.
		rowSkip = 1
	case m.cols == 1:
		if m.rowSkip != 1 {
			exceptions.Panicf("%s.VectorTranspose(): column vector with row skip %d can't be transposed to a row",
				m, m.rowSkip)
		}
		rowSkip = m.rows
	default:
		exceptions.Panicf("%s.VectorTranspose(): only vectors can be transposed", m)
	}
	m.family.mu.Lock()
	defer m.family.mu.Unlock()
	m.assertAlive()
	if err := m.ensureHostFresh(); err != nil {
		return nil, err
	}
	transposed := newDense[T](m.cols, m.rows, rowSkip, m.family)
	transposed.values = m.values[:transposed.storageLen():transposed.storageLen()]
	transposed.registry.MarkFresh(transposed.hostEntry().ID())
	return transposed, nil
}
