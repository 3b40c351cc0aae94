package ssapool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateAcrossPageBoundary(t *testing.T) {
	p := New[int]()
	var ptrs []*int
	for i := 0; i < pageSize+5; i++ {
		ptr := p.Allocate()
		*ptr = i
		ptrs = append(ptrs, ptr)
	}
	require.Equal(t, pageSize+5, p.Allocated())
	for i, ptr := range ptrs {
		require.Equal(t, i, *ptr)
	}
}

func TestViewMatchesAllocate(t *testing.T) {
	p := New[string]()
	p.Allocate()
	second := p.Allocate()
	*second = "hello"
	require.Equal(t, second, p.View(1))
}

func TestResetReclaimsPages(t *testing.T) {
	p := New[int]()
	for i := 0; i < pageSize+1; i++ {
		p.Allocate()
	}
	p.Reset()
	require.Equal(t, 0, p.Allocated())
	ptr := p.Allocate()
	require.Equal(t, 0, *ptr)
}
