// Package cfg computes control-flow and call-graph analyses over an
// internal/ir Module: successors/predecessors, reverse post-order,
// dominance, topological order, and (in callgraph.go) the direct-call
// graph's strongly connected components (spec component C5).
//
// The dominance computation follows the Cooper/Harvey/Kennedy "a simple,
// fast dominance algorithm" iterative fixed point, the same algorithm and
// general code shape used for this purpose in SSA-based compiler
// intermediate representations generally (reverse post-order numbering,
// then repeated intersection of predecessors' dominator sets until no
// change).
package cfg

import "github.com/splanck/viper-sub016/internal/ir"

// Context holds the precomputed successor/predecessor edges for one
// function. It is built once per function and is invalidated by any pass
// that changes the function's block structure; the pass manager rebuilds
// it as needed rather than trying to incrementally patch it.
type Context struct {
	fn *ir.Function

	succ map[*ir.Block][]*ir.Block
	pred map[*ir.Block][]*ir.Block

	rpo   []*ir.Block
	rpoIx map[*ir.Block]int

	idom map[*ir.Block]*ir.Block
}

// Build computes the CFG context for fn.
func Build(fn *ir.Function) *Context {
	c := &Context{
		fn:   fn,
		succ: make(map[*ir.Block][]*ir.Block, len(fn.Blocks)),
		pred: make(map[*ir.Block][]*ir.Block, len(fn.Blocks)),
	}
	for _, b := range fn.Blocks {
		c.succ[b] = successorsOf(fn, b)
	}
	for _, b := range fn.Blocks {
		for _, s := range c.succ[b] {
			c.pred[s] = append(c.pred[s], b)
		}
	}
	c.computeRPO()
	c.computeDominators()
	return c
}

// successorsOf derives a block's successors from its terminator's target
// labels, in declaration order — for SwitchI32 that is the default
// followed by its cases, per spec §4.E.
func successorsOf(fn *ir.Function, b *ir.Block) []*ir.Block {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	out := make([]*ir.Block, 0, len(term.Labels))
	for _, label := range term.Labels {
		if tgt := fn.BlockByLabel(label); tgt != nil {
			out = append(out, tgt)
		}
	}
	return out
}

// Successors returns b's successor blocks in declaration order.
func (c *Context) Successors(b *ir.Block) []*ir.Block { return c.succ[b] }

// Predecessors returns b's predecessor blocks. Duplicates are preserved
// (not de-duplicated per predecessor), so that a block with two edges
// from the same predecessor (e.g. both arms of a CBr targeting the same
// label) reports that predecessor twice, preserving predicate counts per
// spec §4.E.
func (c *Context) Predecessors(b *ir.Block) []*ir.Block { return c.pred[b] }

func (c *Context) computeRPO() {
	entry := c.fn.Entry()
	if entry == nil {
		return
	}
	visited := make(map[*ir.Block]bool, len(c.fn.Blocks))
	var postOrder []*ir.Block

	type frame struct {
		b    *ir.Block
		next int
	}
	stack := []frame{{b: entry}}
	visited[entry] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succs := c.succ[top.b]
		if top.next < len(succs) {
			nxt := succs[top.next]
			top.next++
			if !visited[nxt] {
				visited[nxt] = true
				stack = append(stack, frame{b: nxt})
			}
			continue
		}
		postOrder = append(postOrder, top.b)
		stack = stack[:len(stack)-1]
	}

	c.rpo = make([]*ir.Block, len(postOrder))
	for i, b := range postOrder {
		c.rpo[len(postOrder)-1-i] = b
	}
	c.rpoIx = make(map[*ir.Block]int, len(c.rpo))
	for i, b := range c.rpo {
		c.rpoIx[b] = i
	}
}

// ReversePostOrder returns fn's blocks reachable from the entry, ordered
// by reverse post-order DFS numbering. Unreachable blocks are omitted.
func (c *Context) ReversePostOrder() []*ir.Block { return c.rpo }

// PostOrder returns the reverse of ReversePostOrder.
func (c *Context) PostOrder() []*ir.Block {
	out := make([]*ir.Block, len(c.rpo))
	for i, b := range c.rpo {
		out[len(out)-1-i] = b
	}
	return out
}

func (c *Context) computeDominators() {
	if len(c.rpo) == 0 {
		return
	}
	entry := c.rpo[0]
	idom := make(map[*ir.Block]*ir.Block, len(c.rpo))
	idom[entry] = entry

	changed := true
	for changed {
		changed = false
		for _, b := range c.rpo[1:] {
			var newIdom *ir.Block
			for _, p := range c.pred[b] {
				if idom[p] == nil {
					continue // predecessor not yet processed or unreachable
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = c.intersect(newIdom, p, idom)
			}
			if newIdom != nil && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	c.idom = idom
}

func (c *Context) intersect(a, b *ir.Block, idom map[*ir.Block]*ir.Block) *ir.Block {
	for a != b {
		for c.rpoIx[a] > c.rpoIx[b] {
			a = idom[a]
		}
		for c.rpoIx[b] > c.rpoIx[a] {
			b = idom[b]
		}
	}
	return a
}

// Dominates reports whether a dominates b (every path from the entry to
// b passes through a); a block always dominates itself.
func (c *Context) Dominates(a, b *ir.Block) bool {
	if a == b {
		return true
	}
	cur, ok := c.idom[b]
	if !ok {
		return false // b unreachable
	}
	for cur != c.idom[cur] { // stop once we reach the entry (idom[entry]==entry)
		if cur == a {
			return true
		}
		cur = c.idom[cur]
	}
	return cur == a
}

// IDom returns b's immediate dominator, or nil if b is unreachable or is
// the entry block.
func (c *Context) IDom(b *ir.Block) *ir.Block {
	if d, ok := c.idom[b]; ok && d != b {
		return d
	}
	return nil
}

// IsLoopHeader reports whether b is the target of a back edge: some
// predecessor of b is dominated by b.
func (c *Context) IsLoopHeader(b *ir.Block) bool {
	for _, p := range c.pred[b] {
		if c.Dominates(b, p) {
			return true
		}
	}
	return false
}

// TopologicalOrder returns fn's blocks in a topological order via Kahn's
// algorithm, considering only reachable blocks; a nil (not empty,
// matching "empty result signals a cycle" only once a cycle is actually
// detected — an empty function with zero reachable blocks aside from an
// unreached entry is handled by callers checking ReversePostOrder first)
// slice is returned when a cycle is detected among reachable blocks.
func (c *Context) TopologicalOrder() []*ir.Block {
	indeg := make(map[*ir.Block]int, len(c.rpo))
	for _, b := range c.rpo {
		indeg[b] = 0
	}
	for _, b := range c.rpo {
		for _, s := range c.succ[b] {
			if _, ok := indeg[s]; ok {
				indeg[s]++
			}
		}
	}
	var ready []*ir.Block
	for _, b := range c.rpo {
		if indeg[b] == 0 {
			ready = append(ready, b)
		}
	}
	var out []*ir.Block
	for len(ready) > 0 {
		b := ready[0]
		ready = ready[1:]
		out = append(out, b)
		for _, s := range c.succ[b] {
			if _, ok := indeg[s]; !ok {
				continue
			}
			indeg[s]--
			if indeg[s] == 0 {
				ready = append(ready, s)
			}
		}
	}
	if len(out) != len(c.rpo) {
		return nil // cycle among reachable blocks
	}
	return out
}

// IsAcyclic reports whether fn's reachable subgraph has no cycles.
func (c *Context) IsAcyclic() bool {
	return c.TopologicalOrder() != nil
}
