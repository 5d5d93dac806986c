package matrix

import (
	"fmt"
	"testing"

	"github.com/gomlx/devmem/device"
	"github.com/gomlx/devmem/device/simulated"
	"github.com/janpfeifer/must"
)

var benchDims = [][2]int{{1, 1}, {10, 10}, {100, 100}, {1000, 1000}}

func benchMatrices() []*Dense[float32] {
	matrices := make([]*Dense[float32], len(benchDims))
	for ii, dims := range benchDims {
		matrices[ii] = Zeros[float32](dims[0], dims[1])
	}
	return matrices
}

func destroyAll(matrices []*Dense[float32]) {
	for _, m := range matrices {
		must.M(Destroy(m))
	}
}

// runBenchmark warms up each matrix and then runs benchFn for each of them in a sub-benchmark.
func runBenchmark(b *testing.B, matrices []*Dense[float32], benchFn func(m *Dense[float32], i int)) {
	for _, m := range matrices {
		for i := range 10 {
			benchFn(m, i)
		}
	}
	b.ResetTimer()
	for _, m := range matrices {
		b.Run(fmt.Sprintf("%dx%d", m.Rows(), m.Cols()), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				benchFn(m, i)
			}
		})
	}
}

// BenchmarkDense_Push measures a host write followed by a read on the device.
func BenchmarkDense_Push(b *testing.B) {
	gpu := simulated.New(simulated.NewMemory(device.GPUCUDA, 0, 0))
	matrices := benchMatrices()
	defer destroyAll(matrices)
	runBenchmark(b, matrices, func(m *Dense[float32], i int) {
		must.M(m.Set(0, 0, float32(i)))
		_ = must.M1(m.Obtain(gpu, nil))
	})
}

// BenchmarkDense_Pull measures a device write followed by a read on host.
func BenchmarkDense_Pull(b *testing.B) {
	gpu := simulated.New(simulated.NewMemory(device.GPUCUDA, 0, 0))
	matrices := benchMatrices()
	defer destroyAll(matrices)
	runBenchmark(b, matrices, func(m *Dense[float32], _ int) {
		_ = must.M1(m.ObtainMutable(gpu, nil))
		_ = must.M1(m.Values())
	})
}

// BenchmarkDense_RangedPull measures the strided scatter of a ranged device copy back into host storage.
func BenchmarkDense_RangedPull(b *testing.B) {
	gpu := simulated.New(simulated.NewMemory(device.GPUCUDA, 0, 0))
	matrices := benchMatrices()
	defer destroyAll(matrices)
	runBenchmark(b, matrices, func(m *Dense[float32], _ int) {
		rng := device.NewRange(0, m.Rows(), 0, (m.Cols()+1)/2)
		_ = must.M1(m.ObtainMutable(gpu, rng))
		_ = must.M1(m.Values())
	})
}
