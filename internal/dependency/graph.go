package dependency

import (
	"sort"

	"warden/internal/api"
)

// NodeID is the unique identifier for a node inside a dependency graph: the
// service or target name.
type NodeID string

// Node represents a service or virtual target together with its declared
// dependencies.
type Node struct {
	ID       NodeID
	Virtual  bool
	Requires []NodeID
	After    []NodeID
	Wants    []NodeID
}

// Graph answers dependency queries over a set of nodes. It is *not*
// thread-safe; the orchestrator loop is its only user.
type Graph struct {
	nodes map[NodeID]*Node
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[NodeID]*Node)}
}

// FromDefinitions builds a graph from service definitions. Names ending in
// ".target" that are referenced through requires/after/wants but not defined
// are added as implicit virtual targets. The graph is validated before it is
// returned.
func FromDefinitions(defs []api.ServiceDefinition) (*Graph, error) {
	g := New()
	for _, def := range defs {
		g.AddNode(Node{
			ID:       NodeID(def.Name),
			Virtual:  def.IsVirtual(),
			Requires: toIDs(def.Requires),
			After:    toIDs(def.After),
			Wants:    toIDs(def.Wants),
		})
	}
	for _, def := range defs {
		for _, list := range [][]string{def.Requires, def.After, def.Wants} {
			for _, dep := range list {
				if api.IsTargetName(dep) && g.Get(NodeID(dep)) == nil {
					g.AddNode(Node{ID: NodeID(dep), Virtual: true})
				}
			}
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func toIDs(names []string) []NodeID {
	if len(names) == 0 {
		return nil
	}
	ids := make([]NodeID, len(names))
	for i, n := range names {
		ids[i] = NodeID(n)
	}
	return ids
}

// AddNode adds (or replaces) a node in the graph.
func (g *Graph) AddNode(n Node) {
	if g.nodes == nil {
		g.nodes = make(map[NodeID]*Node)
	}
	// Copy to avoid external mutations
	copied := n
	g.nodes[n.ID] = &copied
}

// Get returns a pointer to the stored node or nil if it does not exist.
func (g *Graph) Get(id NodeID) *Node {
	return g.nodes[id]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// IDs returns all node IDs in lexical order.
func (g *Graph) IDs() []NodeID {
	ids := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Dependencies returns the ordering dependencies of a node: the union of its
// requires and after sets that exist in the graph. wants never orders.
func (g *Graph) Dependencies(id NodeID) []NodeID {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	seen := make(map[NodeID]bool)
	var deps []NodeID
	for _, list := range [][]NodeID{n.Requires, n.After} {
		for _, dep := range list {
			if seen[dep] || g.nodes[dep] == nil {
				continue
			}
			seen[dep] = true
			deps = append(deps, dep)
		}
	}
	return deps
}

// RequiredBy returns the nodes that hard-require the given node.
func (g *Graph) RequiredBy(id NodeID) []NodeID {
	var res []NodeID
	for _, n := range g.nodes {
		for _, dep := range n.Requires {
			if dep == id {
				res = append(res, n.ID)
				break
			}
		}
	}
	sortIDs(res)
	return res
}

// Validate checks that every requires/after reference resolves and that the
// ordering relation is acyclic. Unknown wants references are allowed.
func (g *Graph) Validate() error {
	for _, id := range g.IDs() {
		n := g.nodes[id]
		for _, dep := range n.Requires {
			if g.nodes[dep] == nil {
				return &api.UnknownDependencyError{Service: string(id), Dependency: string(dep), Kind: api.DependencyRequires}
			}
		}
		for _, dep := range n.After {
			if g.nodes[dep] == nil {
				return &api.UnknownDependencyError{Service: string(id), Dependency: string(dep), Kind: api.DependencyAfter}
			}
		}
	}
	if cycle := g.FindCycle(); cycle != nil {
		path := make([]string, len(cycle))
		for i, id := range cycle {
			path[i] = string(id)
		}
		return &api.CycleError{Path: path}
	}
	return nil
}

// FindCycle runs a depth-first traversal over ordering edges and returns the
// first cycle found as a closed path (first and last element equal), or nil.
func (g *Graph) FindCycle() []NodeID {
	const (
		white = iota
		grey
		black
	)
	color := make(map[NodeID]int, len(g.nodes))
	var stack []NodeID

	var visit func(id NodeID) []NodeID
	visit = func(id NodeID) []NodeID {
		color[id] = grey
		stack = append(stack, id)
		for _, dep := range g.Dependencies(id) {
			switch color[dep] {
			case grey:
				// dep is on the stack: the cycle runs from dep to the top.
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == dep {
						cycle := append([]NodeID(nil), stack[i:]...)
						return append(cycle, dep)
					}
				}
			case white:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for _, id := range g.IDs() {
		if color[id] == white {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Levels computes topological levels with Kahn's algorithm. Every node of a
// level depends only on nodes of earlier levels, so a level may be started
// concurrently. Nodes inside a level are sorted by name.
func (g *Graph) Levels() ([][]NodeID, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	indegree := make(map[NodeID]int, len(g.nodes))
	dependents := make(map[NodeID][]NodeID, len(g.nodes))
	for id := range g.nodes {
		deps := g.Dependencies(id)
		indegree[id] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var current []NodeID
	for id, d := range indegree {
		if d == 0 {
			current = append(current, id)
		}
	}

	var levels [][]NodeID
	placed := 0
	for len(current) > 0 {
		sortIDs(current)
		levels = append(levels, current)
		placed += len(current)

		var next []NodeID
		for _, id := range current {
			for _, dependent := range dependents[id] {
				indegree[dependent]--
				if indegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		current = next
	}

	if placed != len(g.nodes) {
		// Validate already rejected cycles; this guards against a broken invariant.
		return nil, &api.CycleError{Path: []string{"<unresolved>"}}
	}
	return levels, nil
}

func sortIDs(ids []NodeID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
