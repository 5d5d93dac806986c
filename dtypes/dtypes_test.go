package dtypes

import (
	"reflect"
	"testing"

	"github.com/gomlx/devmem/dtypes/bfloat16"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestMapOfNames(t *testing.T) {
	require.Equal(t, Float16, MapOfNames["Float16"])
	require.Equal(t, Float16, MapOfNames["float16"])
	require.Equal(t, Float16, MapOfNames["F16"])
	require.Equal(t, Float16, MapOfNames["f16"])

	require.Equal(t, BFloat16, MapOfNames["BFloat16"])
	require.Equal(t, BFloat16, MapOfNames["bfloat16"])
	require.Equal(t, BFloat16, MapOfNames["BF16"])
	require.Equal(t, BFloat16, MapOfNames["bf16"])

	require.Equal(t, Int32, MapOfNames["int32"])
}

func TestFromGenericsType(t *testing.T) {
	require.Equal(t, Float64, FromGenericsType[float64]())
	require.Equal(t, Float16, FromGenericsType[float16.Float16]())
	require.Equal(t, BFloat16, FromGenericsType[bfloat16.BFloat16]())
	require.Equal(t, Uint8, FromGenericsType[uint8]())
	require.Equal(t, Bool, FromGenericsType[bool]())
}

func TestSizes(t *testing.T) {
	require.Equal(t, 8, Float64.Size())
	require.Equal(t, 2, Float16.Size())
	require.Equal(t, 2, BFloat16.Size())
	require.Equal(t, 1, Bool.Size())
	require.Equal(t, 3*3*4, Int32.SizeForDimensions(3, 3))
	require.Equal(t, 4, Float32.SizeForDimensions())
	require.Panics(t, func() { _ = Float32.SizeForDimensions(-1, 2) })
}

func TestGoType(t *testing.T) {
	for dtype := range dtypeNames {
		if dtype == InvalidDType {
			require.Panics(t, func() { _ = dtype.GoType() })
			continue
		}
		require.NotPanicsf(t, func() { _ = dtype.GoType() }, "GoType of %s", dtype)
	}
	require.Equal(t, reflect.TypeOf(float16.Float16(0)), Float16.GoType())
	require.True(t, Float16.IsFloat())
	require.True(t, BFloat16.IsFloat())
	require.False(t, Int8.IsFloat())
	require.Equal(t, "Float32", Float32.String())
	require.Equal(t, "DType(99)", DType(99).String())
}

func TestBFloat16(t *testing.T) {
	v := bfloat16.FromFloat32(1.5)
	require.Equal(t, float32(1.5), v.Float32())
	require.Equal(t, "1.5", v.String())
}
