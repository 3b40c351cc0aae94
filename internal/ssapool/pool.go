// Package ssapool provides a generic slab allocator used by the IR
// builder to avoid a GC allocation per instruction and per block during
// construction, adapted from wazero's own wazevoapi.Pool[T].
package ssapool

const pageSize = 128

// Pool hands out *T values from fixed-size backing pages instead of one
// allocation per item, and can reclaim every page at once via Reset.
type Pool[T any] struct {
	pages            []*[pageSize]T
	allocated, index int
}

// New returns a ready-to-use Pool.
func New[T any]() Pool[T] {
	var p Pool[T]
	p.Reset()
	return p
}

// Allocated reports how many T the pool has handed out since the last
// Reset.
func (p *Pool[T]) Allocated() int { return p.allocated }

// Allocate returns a pointer to a fresh, zero-valued T.
func (p *Pool[T]) Allocate() *T {
	if p.index == pageSize {
		if len(p.pages) == cap(p.pages) {
			p.pages = append(p.pages, new([pageSize]T))
		} else {
			i := len(p.pages)
			p.pages = p.pages[:i+1]
			if p.pages[i] == nil {
				p.pages[i] = new([pageSize]T)
			}
		}
		p.index = 0
	}
	ret := &p.pages[len(p.pages)-1][p.index]
	p.index++
	p.allocated++
	return ret
}

// View returns the pointer to the i-th item allocated since the pool was
// created or last reset.
func (p *Pool[T]) View(i int) *T {
	page, index := i/pageSize, i%pageSize
	return &p.pages[page][index]
}

// Reset returns every page's slots to their zero value and makes the
// pool's pages available for reuse by the next round of Allocate calls.
func (p *Pool[T]) Reset() {
	for _, page := range p.pages {
		var zero T
		for i := range page {
			page[i] = zero
		}
	}
	p.pages = p.pages[:0]
	p.index = pageSize
	p.allocated = 0
}
