package sets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	s := Make[uint64](10)
	require.Empty(t, s)
	s.Insert(7, 3, 7)
	require.Len(t, s, 2)
	require.True(t, s.Has(3))
	require.False(t, s.Has(4))
	require.Equal(t, []uint64{3, 7}, Sorted(s))

	s = MakeWith[uint64](5)
	require.Len(t, s, 1)
	require.True(t, s.Has(5))
}
