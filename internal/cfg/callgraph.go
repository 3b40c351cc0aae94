package cfg

import "github.com/splanck/viper-sub016/internal/ir"

// Edge records one direct call site: a caller function name calling a
// callee function name. Duplicates are preserved to encode call-site
// multiplicity, per spec §4.E.
type Edge struct {
	Caller string
	Callee string
}

// CallGraph is the module's direct-call graph: per-caller ordered edge
// lists, per-callee call counts, and the graph's strongly connected
// components. Indirect calls (CallIndirect) are ignored by construction,
// since their callee is not statically known.
type CallGraph struct {
	edges      map[string][]Edge // caller -> edges, in declaration order
	calleeHits map[string]int    // callee -> direct-call count

	sccOf   map[string]int // function name -> SCC index
	sccList [][]string     // SCC index -> member names, reverse topological (callees before callers)
}

// BuildCallGraph constructs the call graph for m.
func BuildCallGraph(m *ir.Module) *CallGraph {
	g := &CallGraph{
		edges:      make(map[string][]Edge),
		calleeHits: make(map[string]int),
	}
	for _, fn := range m.Funcs {
		for _, b := range fn.Blocks {
			for _, in := range b.Instrs {
				if in.Op != ir.OpCall {
					continue
				}
				g.edges[fn.Name] = append(g.edges[fn.Name], Edge{Caller: fn.Name, Callee: in.Callee})
				g.calleeHits[in.Callee]++
			}
		}
	}
	g.computeSCCs(m)
	return g
}

// Edges returns caller's outgoing direct-call edges in declaration order,
// including duplicates for repeated call sites to the same callee.
func (g *CallGraph) Edges(caller string) []Edge { return g.edges[caller] }

// CallCount returns the number of direct call sites targeting callee
// across the whole module.
func (g *CallGraph) CallCount(callee string) int { return g.calleeHits[callee] }

// SCCIndex returns the strongly-connected-component index containing
// name, or -1 if name is not a function in the module.
func (g *CallGraph) SCCIndex(name string) int {
	if idx, ok := g.sccOf[name]; ok {
		return idx
	}
	return -1
}

// IsRecursive reports whether name's SCC has more than one member or
// contains a self-edge (a function that calls itself directly).
func (g *CallGraph) IsRecursive(name string) bool {
	idx := g.SCCIndex(name)
	if idx < 0 {
		return false
	}
	if len(g.sccList[idx]) > 1 {
		return true
	}
	for _, e := range g.edges[name] {
		if e.Callee == name {
			return true
		}
	}
	return false
}

// tarjanState is the per-run bookkeeping for Tarjan's SCC algorithm,
// implemented iteratively (an explicit work stack) to avoid recursion
// depth limits on deep call chains.
type tarjanState struct {
	index   map[string]int
	low     map[string]int
	onStack map[string]bool
	isFunc  map[string]bool
	stack   []string
	counter int
	sccs    [][]string
}

func (g *CallGraph) computeSCCs(m *ir.Module) {
	names := make([]string, 0, len(m.Funcs))
	isFunc := make(map[string]bool, len(m.Funcs))
	for _, fn := range m.Funcs {
		names = append(names, fn.Name)
		isFunc[fn.Name] = true
	}

	st := &tarjanState{
		index:   make(map[string]int),
		low:     make(map[string]int),
		onStack: make(map[string]bool),
		isFunc:  isFunc,
	}
	for _, n := range names {
		if _, visited := st.index[n]; !visited {
			g.tarjanVisit(st, n)
		}
	}

	g.sccOf = make(map[string]int, len(names))
	// Tarjan emits SCCs in reverse topological order (callees finish,
	// i.e. are popped, before their callers) as a side effect of DFS
	// postorder, matching the "callees before callers" requirement
	// directly with no extra reversal.
	g.sccList = st.sccs
	for i, members := range g.sccList {
		for _, n := range members {
			g.sccOf[n] = i
		}
	}
}

// tarjanVisit runs one DFS from root using an explicit stack of
// (node, nextEdgeIndex) frames so that deep, non-recursive call chains
// (a style this kind of worklist-based analysis favors throughout) don't
// risk Go call-stack exhaustion.
func (g *CallGraph) tarjanVisit(st *tarjanState, root string) {
	type frame struct {
		name string
		i    int
	}
	push := func(n string) {
		st.index[n] = st.counter
		st.low[n] = st.counter
		st.counter++
		st.stack = append(st.stack, n)
		st.onStack[n] = true
	}

	work := []frame{{name: root}}
	push(root)

	for len(work) > 0 {
		top := &work[len(work)-1]
		edges := g.edges[top.name]
		advanced := false
		for top.i < len(edges) {
			callee := edges[top.i].Callee
			top.i++
			if !st.isFunc[callee] {
				continue // callee is an extern/runtime helper, not a module function
			}
			if _, ok := st.index[callee]; !ok {
				push(callee)
				work = append(work, frame{name: callee})
				advanced = true
				break
			} else if st.onStack[callee] {
				if st.index[callee] < st.low[top.name] {
					st.low[top.name] = st.index[callee]
				}
			}
		}
		if advanced {
			continue
		}
		// all edges processed; pop and propagate low-link to parent
		work = work[:len(work)-1]
		if len(work) > 0 {
			parent := &work[len(work)-1]
			if st.low[top.name] < st.low[parent.name] {
				st.low[parent.name] = st.low[top.name]
			}
		}
		if st.low[top.name] == st.index[top.name] {
			var members []string
			for {
				n := st.stack[len(st.stack)-1]
				st.stack = st.stack[:len(st.stack)-1]
				st.onStack[n] = false
				members = append(members, n)
				if n == top.name {
					break
				}
			}
			st.sccs = append(st.sccs, members)
		}
	}
}
