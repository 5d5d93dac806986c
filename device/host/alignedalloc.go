package host

import (
	"os"
	"strconv"
	"unsafe"

	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// DefaultAlignment of canonical host storage, in bytes. Enough for any element type and for SIMD loads.
const DefaultAlignment = 64

// AlignmentEnv is the environment variable that overrides DefaultAlignment. It must be a multiple of 8.
const AlignmentEnv = "DEVMEM_HOST_ALIGNMENT"

var alignment = DefaultAlignment

func init() {
	value, found := os.LookupEnv(AlignmentEnv)
	if !found {
		return
	}
	a, err := strconv.Atoi(value)
	if err != nil || a < 8 || a%8 != 0 {
		klog.Errorf("Invalid $%s=%q: must be a positive multiple of 8, using %d", AlignmentEnv, value, DefaultAlignment)
		return
	}
	alignment = a
}

// Alignment used for canonical host storage, see AlignmentEnv.
func Alignment() int {
	return alignment
}

// AlignedAlloc returns a zero-filled slice of size bytes whose first element is aligned to alignment bytes.
//
// It over-allocates by alignment bytes and slices at the first aligned offset. The slice capacity is clipped to
// size, so appending to it reallocates instead of writing past the aligned region.
// The memory is managed by Go: there is nothing to free.
func AlignedAlloc(size, alignment int) []byte {
	if alignment < 8 || alignment%8 != 0 {
		exceptions.Panicf("AlignedAlloc: alignment must be a multiple of 8, got %d", alignment)
	}
	if size < 0 {
		exceptions.Panicf("AlignedAlloc: negative size %d", size)
	}
	buf := make([]byte, size+alignment)
	offset := 0
	if misalignment := int(uintptr(unsafe.Pointer(&buf[0])) % uintptr(alignment)); misalignment != 0 {
		offset = alignment - misalignment
	}
	return buf[offset : offset+size : offset+size]
}
