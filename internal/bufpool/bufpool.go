// Package bufpool keeps pools of byte buffers with power-of-2 sizes.
//
// They are used as staging buffers when the region of a matrix that is transferred is not contiguous in host
// memory: rows are gathered into a pooled buffer before pushing and scattered from it after pulling.
package bufpool

import (
	"math/bits"
	"sync"
)

const (
	// MinPooledSize is the minimum size of pooled buffers. Smaller requests get a buffer of this size.
	MinPooledSize = 256
	// MaxPooledSize is the maximum size of pooled buffers (64MB). Larger requests are allocated directly.
	MaxPooledSize = 64 * 1024 * 1024
)

// Buffer is a staging buffer obtained from a Pools.
type Buffer struct {
	// Bytes has exactly the length requested in Pools.Get.
	Bytes []byte

	full      []byte
	poolIndex int // index in Pools.pools, -1 if not from pool.
}

// Pools manages pools of Buffer objects with power-of-2 sizes.
// It is safe for concurrent use.
type Pools struct {
	// pools[i] contains buffers of size 2^(i+minShift).
	pools              []sync.Pool
	minShift, maxShift int
}

// New creates a new Pools manager.
func New() *Pools {
	minShift := bits.TrailingZeros(uint(MinPooledSize))
	maxShift := bits.TrailingZeros(uint(MaxPooledSize))
	return &Pools{
		pools:    make([]sync.Pool, maxShift-minShift+1),
		minShift: minShift,
		maxShift: maxShift,
	}
}

// Default pools, shared by all matrices.
var Default = New()

// Get returns a Buffer whose Bytes has length size.
// The underlying storage is the next power-of-2 >= size. Contents are not zeroed.
func (p *Pools) Get(size int) *Buffer {
	if size < 0 {
		size = 0
	}
	shift := bits.Len(uint(max(size, 1) - 1))
	if shift < p.minShift {
		shift = p.minShift
	}

	// Larger than the max pooled size: allocate directly.
	if shift > p.maxShift {
		full := make([]byte, size)
		return &Buffer{Bytes: full, full: full, poolIndex: -1}
	}

	poolIndex := shift - p.minShift
	if obj := p.pools[poolIndex].Get(); obj != nil {
		buf := obj.(*Buffer)
		buf.Bytes = buf.full[:size]
		return buf
	}
	full := make([]byte, 1<<shift)
	return &Buffer{Bytes: full[:size], full: full, poolIndex: poolIndex}
}

// Return a Buffer to its pool for reuse. Buffers not from a pool are left to the garbage collector.
// The buffer must not be used after it is returned.
func (p *Pools) Return(buf *Buffer) {
	if buf == nil || buf.poolIndex < 0 || buf.poolIndex >= len(p.pools) {
		return
	}
	buf.Bytes = nil
	p.pools[buf.poolIndex].Put(buf)
}
