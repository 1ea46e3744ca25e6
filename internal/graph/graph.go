package graph

import (
	"sort"

	"github.com/partforge/partforge/internal/parts"
	partforgeerrors "github.com/partforge/partforge/pkg/errors"
)

// Graph holds the validated dependency relationships among parts. Parts live
// in an indexed arena and edges are indices into it, so traversals never
// chase pointer cycles. A constructed graph is immutable.
type Graph struct {
	parts []*parts.Part
	index map[string]int
	deps  [][]int // deps[i] lists the arena indices part i builds after
}

// New validates the declared dependencies and builds the graph. Dependency
// names must refer to declared parts, a part cannot depend on itself, and
// cycles are rejected before any execution can happen.
func New(list []*parts.Part) (*Graph, error) {
	sorted := parts.Sort(list)

	g := &Graph{
		parts: sorted,
		index: make(map[string]int, len(sorted)),
		deps:  make([][]int, len(sorted)),
	}

	for i, part := range sorted {
		if _, exists := g.index[part.Name]; exists {
			return nil, partforgeerrors.NewInvalidPartDefinitionError(part.Name, "duplicate part name", nil)
		}
		g.index[part.Name] = i
	}

	for i, part := range sorted {
		for _, dep := range part.Dependencies() {
			j, ok := g.index[dep]
			if !ok {
				return nil, partforgeerrors.NewUnknownPartError(dep)
			}
			if j == i {
				return nil, partforgeerrors.NewInvalidPartDefinitionError(part.Name, "part depends on itself", nil)
			}
			g.deps[i] = append(g.deps[i], j)
		}
	}

	if cycle := g.findCycle(); len(cycle) > 0 {
		return nil, partforgeerrors.NewDependencyCycleError(cycle)
	}

	return g, nil
}

// Parts returns all parts in deterministic name order.
func (g *Graph) Parts() []*parts.Part {
	return append([]*parts.Part(nil), g.parts...)
}

// Part returns the named part.
func (g *Graph) Part(name string) (*parts.Part, error) {
	i, ok := g.index[name]
	if !ok {
		return nil, partforgeerrors.NewUnknownPartError(name)
	}
	return g.parts[i], nil
}

// DependenciesOf returns the transitive dependencies of the named part in
// dependency-first order: every part appears after all of its own
// dependencies.
func (g *Graph) DependenciesOf(name string) ([]string, error) {
	i, ok := g.index[name]
	if !ok {
		return nil, partforgeerrors.NewUnknownPartError(name)
	}

	visited := make([]bool, len(g.parts))
	var order []string

	var visit func(int)
	visit = func(n int) {
		for _, dep := range g.deps[n] {
			if !visited[dep] {
				visited[dep] = true
				visit(dep)
				order = append(order, g.parts[dep].Name)
			}
		}
	}
	visit(i)

	return order, nil
}

// Order returns a topological ordering of the named parts. Independent parts
// are ordered by name so repeated runs produce identical sequences. Passing
// no names orders every part.
func (g *Graph) Order(names []string) ([]string, error) {
	selected, err := g.selection(names)
	if err != nil {
		return nil, err
	}

	var order []string
	for _, level := range g.levels(selected) {
		order = append(order, level...)
	}
	return order, nil
}

// Levels groups the named parts into dependency levels: parts in the same
// level have no ordering relationship and may run concurrently. Levels are
// returned in execution order.
func (g *Graph) Levels(names []string) ([][]string, error) {
	selected, err := g.selection(names)
	if err != nil {
		return nil, err
	}
	return g.levels(selected), nil
}

func (g *Graph) selection(names []string) ([]bool, error) {
	selected := make([]bool, len(g.parts))
	if len(names) == 0 {
		for i := range selected {
			selected[i] = true
		}
		return selected, nil
	}
	for _, name := range names {
		i, ok := g.index[name]
		if !ok {
			return nil, partforgeerrors.NewUnknownPartError(name)
		}
		selected[i] = true
	}
	return selected, nil
}

// levels runs Kahn's algorithm over the selected subgraph, considering only
// edges between selected parts.
func (g *Graph) levels(selected []bool) [][]string {
	indegree := make([]int, len(g.parts))
	dependents := make([][]int, len(g.parts))

	for i := range g.parts {
		if !selected[i] {
			continue
		}
		for _, dep := range g.deps[i] {
			if !selected[dep] {
				continue
			}
			indegree[i]++
			dependents[dep] = append(dependents[dep], i)
		}
	}

	var queue []int
	for i := range g.parts {
		if selected[i] && indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	var levels [][]string
	for len(queue) > 0 {
		level := make([]string, 0, len(queue))
		var next []int
		for _, i := range queue {
			level = append(level, g.parts[i].Name)
			for _, dep := range dependents[i] {
				indegree[dep]--
				if indegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		sort.Strings(level)
		sort.Ints(next)
		levels = append(levels, level)
		queue = next
	}
	return levels
}

// findCycle looks for a dependency cycle with a depth-first search, coloring
// nodes on the recursion stack. It returns the participating part names.
func (g *Graph) findCycle() []string {
	const (
		white = iota // unvisited
		gray         // on the recursion stack
		black        // fully explored
	)

	color := make([]int, len(g.parts))
	var stack []int
	var cycle []string

	var dfs func(int) bool
	dfs = func(n int) bool {
		color[n] = gray
		stack = append(stack, n)

		for _, dep := range g.deps[n] {
			switch color[dep] {
			case gray:
				for i, s := range stack {
					if s == dep {
						for _, member := range stack[i:] {
							cycle = append(cycle, g.parts[member].Name)
						}
						break
					}
				}
				return true
			case white:
				if dfs(dep) {
					return true
				}
			}
		}

		color[n] = black
		stack = stack[:len(stack)-1]
		return false
	}

	for i := range g.parts {
		if color[i] == white && dfs(i) {
			return cycle
		}
	}
	return nil
}
