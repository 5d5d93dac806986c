package bufpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPools(t *testing.T) {
	p := New()
	for _, tc := range []struct{ size, wantCap int }{
		{0, MinPooledSize},
		{1, MinPooledSize},
		{MinPooledSize, MinPooledSize},
		{MinPooledSize + 1, 2 * MinPooledSize},
		{3000, 4096},
		{MaxPooledSize, MaxPooledSize},
		{MaxPooledSize + 1, MaxPooledSize + 1},
	} {
		buf := p.Get(tc.size)
		require.Len(t, buf.Bytes, tc.size)
		require.Equal(t, tc.wantCap, cap(buf.Bytes), "size=%d", tc.size)
		p.Return(buf)
	}
	p.Return(nil)
}

func TestReuse(t *testing.T) {
	p := New()
	buf := p.Get(1000)
	buf.Bytes[0] = 17
	p.Return(buf)
	require.Nil(t, buf.Bytes)

	buf2 := p.Get(600)
	require.Len(t, buf2.Bytes, 600)
	require.Equal(t, 1024, cap(buf2.Bytes))
	p.Return(buf2)
}
