// Package graph holds the static dependency table between resource kinds and
// derives ordered create and delete plans from it.
package graph

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/resource"
	"github.com/savaki/gox/slicex"
)

// Edge means "To depends on From": From must be Active before To is created,
// and To must be gone before From is deleted.
type Edge struct {
	From resource.Kind `json:"from"`
	To   resource.Kind `json:"to"`
}

// Edges is the dependency table of the backend.
var Edges = []Edge{
	{From: resource.Build, To: resource.Fleet},
	{From: resource.UserPool, To: resource.LoginFunction},
	{From: resource.Fleet, To: resource.LoginFunction},
	{From: resource.UserPool, To: resource.StartSessionFunction},
	{From: resource.Fleet, To: resource.StartSessionFunction},
	{From: resource.LoginFunction, To: resource.RestApi},
	{From: resource.StartSessionFunction, To: resource.RestApi},
}

// Graph is an immutable, validated dependency graph.
type Graph struct {
	kinds         []resource.Kind
	edges         []Edge
	prerequisites map[resource.Kind][]resource.Kind
	dependents    map[resource.Kind][]resource.Kind
	topo          []resource.Kind
	position      map[resource.Kind]int
}

// New validates edges over kinds and computes the topological order. Ties are
// broken by the order of kinds.
func New(kinds []resource.Kind, edges []Edge) (*Graph, error) {
	g := &Graph{
		kinds:         append([]resource.Kind(nil), kinds...),
		edges:         append([]Edge(nil), edges...),
		prerequisites: make(map[resource.Kind][]resource.Kind, len(kinds)),
		dependents:    make(map[resource.Kind][]resource.Kind, len(kinds)),
		position:      make(map[resource.Kind]int, len(kinds)),
	}

	known := make(map[resource.Kind]bool, len(kinds))
	for _, k := range kinds {
		known[k] = true
	}
	for _, e := range edges {
		if !known[e.From] || !known[e.To] {
			return nil, fmt.Errorf("%w: edge %s -> %s", errors.ErrUnknownKind, e.From, e.To)
		}
		g.prerequisites[e.To] = append(g.prerequisites[e.To], e.From)
		g.dependents[e.From] = append(g.dependents[e.From], e.To)
	}
	g.sortAdjacency()

	topo, err := g.topoSort()
	if err != nil {
		return nil, err
	}
	g.topo = topo
	for i, k := range topo {
		g.position[k] = i
	}

	return g, nil
}

// Default returns the graph of the six backend kinds.
func Default() *Graph {
	g, err := New(resource.Kinds, Edges)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Graph) sortAdjacency() {
	index := make(map[resource.Kind]int, len(g.kinds))
	for i, k := range g.kinds {
		index[k] = i
	}
	byIndex := func(a, b resource.Kind) int {
		return cmp.Compare(index[a], index[b])
	}
	for _, kinds := range g.prerequisites {
		slices.SortFunc(kinds, byIndex)
	}
	for _, kinds := range g.dependents {
		slices.SortFunc(kinds, byIndex)
	}
}

func (g *Graph) topoSort() ([]resource.Kind, error) {
	const (
		stateNew uint8 = iota
		stateVisiting
		stateDone
	)

	state := make(map[resource.Kind]uint8, len(g.kinds))
	stack := make([]resource.Kind, 0, len(g.kinds))
	stackPos := make(map[resource.Kind]int, len(g.kinds))
	topo := make([]resource.Kind, 0, len(g.kinds))

	var dfs func(k resource.Kind) error
	dfs = func(k resource.Kind) error {
		switch state[k] {
		case stateDone:
			return nil
		case stateVisiting:
			cycle := append([]resource.Kind(nil), stack[stackPos[k]:]...)
			cycle = append(cycle, k)
			return &errors.CycleDetectedError{Path: slicex.Map(cycle, resource.Kind.String)}
		}

		state[k] = stateVisiting
		stackPos[k] = len(stack)
		stack = append(stack, k)

		for _, dep := range g.prerequisites[k] {
			if err := dfs(dep); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		delete(stackPos, k)
		state[k] = stateDone
		topo = append(topo, k)
		return nil
	}

	for _, k := range g.kinds {
		if err := dfs(k); err != nil {
			return nil, err
		}
	}
	return topo, nil
}

// TopoOrder returns every kind with prerequisites before dependents.
func (g *Graph) TopoOrder() []resource.Kind {
	return append([]resource.Kind(nil), g.topo...)
}

// Edges returns a copy of the edge table.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Prerequisites returns the direct prerequisites of k.
func (g *Graph) Prerequisites(k resource.Kind) []resource.Kind {
	return append([]resource.Kind(nil), g.prerequisites[k]...)
}

// Dependents returns the kinds that directly depend on k.
func (g *Graph) Dependents(k resource.Kind) []resource.Kind {
	return append([]resource.Kind(nil), g.dependents[k]...)
}

// Ancestors returns every transitive prerequisite of k in topological order.
func (g *Graph) Ancestors(k resource.Kind) []resource.Kind {
	return g.closure(k, g.prerequisites)
}

// Descendants returns every transitive dependent of k in topological order.
func (g *Graph) Descendants(k resource.Kind) []resource.Kind {
	return g.closure(k, g.dependents)
}

func (g *Graph) closure(k resource.Kind, adjacency map[resource.Kind][]resource.Kind) []resource.Kind {
	seen := map[resource.Kind]bool{}
	var walk func(resource.Kind)
	walk = func(k resource.Kind) {
		for _, next := range adjacency[k] {
			if !seen[next] {
				seen[next] = true
				walk(next)
			}
		}
	}
	walk(k)
	return g.inTopoOrder(seen)
}

func (g *Graph) inTopoOrder(set map[resource.Kind]bool) []resource.Kind {
	var out []resource.Kind
	for _, k := range g.topo {
		if set[k] {
			out = append(out, k)
		}
	}
	return out
}

// Contains reports whether k is a node of the graph.
func (g *Graph) Contains(k resource.Kind) bool {
	_, ok := g.position[k]
	return ok
}
