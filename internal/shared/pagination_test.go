package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPaginationDefaults(t *testing.T) {
	page := NewPagination(0, 0, 45)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 20, page.PerPage)
	require.Equal(t, 45, page.Total)
	require.Equal(t, 3, page.TotalPages)
	require.Equal(t, 0, page.Offset())
}

func TestPaginationOffset(t *testing.T) {
	page := NewPagination(3, 25, 100)
	require.Equal(t, 50, page.Offset())
	require.Equal(t, 4, page.TotalPages)
}
