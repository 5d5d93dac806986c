package device

import "fmt"

// Range is a rectangular region of a matrix: rows [RowStart, RowStart+RowLen) and columns
// [ColStart, ColStart+ColLen).
//
// A nil *Range means the whole matrix.
type Range struct {
	RowStart, ColStart int
	RowLen, ColLen     int
}

// NewRange returns a *Range for rows [rowStart, rowEnd) and columns [colStart, colEnd).
func NewRange(rowStart, rowEnd, colStart, colEnd int) *Range {
	return &Range{RowStart: rowStart, ColStart: colStart, RowLen: rowEnd - rowStart, ColLen: colEnd - colStart}
}

// Equal returns whether both ranges describe the same region. Two nil ranges are equal, and a nil range is
// different from any non-nil one.
func (r *Range) Equal(other *Range) bool {
	if r == nil || other == nil {
		return r == nil && other == nil
	}
	return *r == *other
}

// Clone returns an independent copy, nil for a nil range.
func (r *Range) Clone() *Range {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Contains returns whether the region lies within a rows x cols matrix. A nil range is always contained.
func (r *Range) Contains(rows, cols int) bool {
	if r == nil {
		return true
	}
	return r.RowStart >= 0 && r.ColStart >= 0 && r.RowLen >= 0 && r.ColLen >= 0 &&
		r.RowStart+r.RowLen <= rows && r.ColStart+r.ColLen <= cols
}

// NumItems in the region.
func (r *Range) NumItems() int {
	return r.RowLen * r.ColLen
}

// Covers returns whether the region is the whole of a rows x cols matrix. A nil range covers everything.
func (r *Range) Covers(rows, cols int) bool {
	if r == nil {
		return true
	}
	return r.RowStart == 0 && r.ColStart == 0 && r.RowLen == rows && r.ColLen == cols
}

// String implements fmt.Stringer.
func (r *Range) String() string {
	if r == nil {
		return "[all]"
	}
	return fmt.Sprintf("[%d:%d, %d:%d]", r.RowStart, r.RowStart+r.RowLen, r.ColStart, r.ColStart+r.ColLen)
}
