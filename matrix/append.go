package matrix

import (
	"github.com/gomlx/exceptions"
)

// PrepareAppend starts building the matrix incrementally on host with Append: cells must be appended in
// row-major order, cells skipped are set to zero, and FinishAppend zeroes the remaining ones.
//
// Every device copy becomes stale, including those of matrices sharing storage with m.
func (m *Dense[T]) PrepareAppend() error {
	m.family.mu.Lock()
	defer m.family.mu.Unlock()
	m.assertAlive()
	// Every cell of m is overwritten, so there is no need to refresh its own host copy.
	m.materialize()
	if err := m.declareWritten(m.hostEntry()); err != nil {
		return err
	}
	m.appendNext = 0
	return nil
}

// Append sets the cell (row, col) to value, and zeroes the cells since the last appended one.
//
// It panics if PrepareAppend wasn't called, if (row, col) is out of bounds, or if it doesn't come after the
// last appended cell in row-major order.
func (m *Dense[T]) Append(row, col int, value T) {
	m.assertIndex(row, col)
	m.family.mu.Lock()
	defer m.family.mu.Unlock()
	m.assertAlive()
	if m.appendNext < 0 {
		exceptions.Panicf("%s.Append(%d, %d): PrepareAppend was not called", m, row, col)
	}
	pos := row*m.cols + col
	if pos < m.appendNext {
		exceptions.Panicf("%s.Append(%d, %d): cells must be appended in row-major order", m, row, col)
	}
	m.zeroCells(m.appendNext, pos)
	m.values[row*m.rowSkip+col] = value
	m.appendNext = pos + 1
}

// FinishAppend zeroes the cells after the last appended one, and ends the incremental construction.
func (m *Dense[T]) FinishAppend() error {
	m.family.mu.Lock()
	defer m.family.mu.Unlock()
	m.assertAlive()
	if m.appendNext < 0 {
		exceptions.Panicf("%s.FinishAppend(): PrepareAppend was not called", m)
	}
	m.zeroCells(m.appendNext, m.NumItems())
	m.appendNext = -1
	return m.declareWritten(m.hostEntry())
}

// zeroCells zeroes the cells with row-major linear index in [from, to).
func (m *Dense[T]) zeroCells(from, to int) {
	for from < to {
		row, col := from/m.cols, from%m.cols
		n := min(m.cols-col, to-from)
		start := row*m.rowSkip + col
		clear(m.values[start : start+n])
		from += n
	}
}
