package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPaginate(t *testing.T) {
	offset, limit := Paginate(1, 20)
	require.Equal(t, 0, offset)
	require.Equal(t, 20, limit)

	offset, limit = Paginate(3, 10)
	require.Equal(t, 20, offset)
	require.Equal(t, 10, limit)

	// Out-of-range inputs fall back to defaults.
	offset, limit = Paginate(0, 0)
	require.Equal(t, 0, offset)
	require.Equal(t, 20, limit)

	offset, limit = Paginate(-5, 1000)
	require.Equal(t, 0, offset)
	require.Equal(t, 20, limit)
}
