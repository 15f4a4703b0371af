// Package network builds the small-world contact graph agents live on.
//
// Builders are deterministic given a seed. The graph itself is held in a
// gonum undirected simple graph while it is being generated; callers receive
// a flat, sorted adjacency list that is read-only for the rest of the run.
package network

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/nvandessel/hybridsim/internal/seed"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Generator kinds.
const (
	KindNewmanWattsStrogatz = "newman-watts-strogatz"
	KindWattsStrogatz       = "watts-strogatz"
)

// ErrInvalidParams is returned when n, k or p are out of range.
var ErrInvalidParams = errors.New("invalid network parameters")

// Neighbors maps an agent index to the sorted indices of its neighbors.
// The relation is symmetric.
type Neighbors [][]int

// Degree returns the number of neighbors of node i.
func (nb Neighbors) Degree(i int) int { return len(nb[i]) }

// Edges returns the number of undirected edges.
func (nb Neighbors) Edges() int {
	total := 0
	for _, ns := range nb {
		total += len(ns)
	}
	return total / 2
}

// Builder constructs a neighbor structure for n nodes.
type Builder interface {
	Build(n, k int, p float64, seed uint64) (Neighbors, error)
}

// NewBuilder returns the builder for kind. An empty kind selects
// Newman-Watts-Strogatz.
func NewBuilder(kind string) (Builder, error) {
	switch kind {
	case "", KindNewmanWattsStrogatz:
		return NewmanWattsStrogatz{}, nil
	case KindWattsStrogatz:
		return WattsStrogatz{}, nil
	default:
		return nil, fmt.Errorf("unsupported network kind %q (valid: %s, %s)", kind, KindNewmanWattsStrogatz, KindWattsStrogatz)
	}
}

// ValidateParams checks n, k and p for either generator.
func ValidateParams(n, k int, p float64) error {
	if n < 1 {
		return fmt.Errorf("%w: n must be positive, got %d", ErrInvalidParams, n)
	}
	if k < 0 || k%2 != 0 {
		return fmt.Errorf("%w: k must be a non-negative even number, got %d", ErrInvalidParams, k)
	}
	if k >= n && k > 0 {
		return fmt.Errorf("%w: k must be less than n, got k=%d n=%d", ErrInvalidParams, k, n)
	}
	if p < 0 || p > 1 {
		return fmt.Errorf("%w: p must be in [0, 1], got %f", ErrInvalidParams, p)
	}
	return nil
}

// NewmanWattsStrogatz builds a ring lattice where every node links to its k
// nearest neighbors, then for every lattice edge (u, v) adds a shortcut from
// u to a uniformly chosen node with probability p. Lattice edges are never
// removed, so the graph stays connected.
type NewmanWattsStrogatz struct{}

// Build implements Builder.
func (NewmanWattsStrogatz) Build(n, k int, p float64, s uint64) (Neighbors, error) {
	if err := ValidateParams(n, k, p); err != nil {
		return nil, err
	}
	rng := seed.NewRand(s)
	g := ringLattice(n, k)

	for j := 1; j <= k/2; j++ {
		for u := 0; u < n; u++ {
			if rng.Float64() >= p {
				continue
			}
			if w, ok := pickTarget(g, rng, u, n); ok {
				g.SetEdge(simple.Edge{F: simple.Node(u), T: simple.Node(w)})
			}
		}
	}
	return adjacency(g, n), nil
}

// WattsStrogatz builds the same ring lattice and then rewires each lattice
// edge (u, u+j) to (u, w) with probability p. Rewiring can disconnect the
// graph; Components reports how many pieces remain.
type WattsStrogatz struct{}

// Build implements Builder.
func (WattsStrogatz) Build(n, k int, p float64, s uint64) (Neighbors, error) {
	if err := ValidateParams(n, k, p); err != nil {
		return nil, err
	}
	rng := seed.NewRand(s)
	g := ringLattice(n, k)

	for j := 1; j <= k/2; j++ {
		for u := 0; u < n; u++ {
			if rng.Float64() >= p {
				continue
			}
			v := (u + j) % n
			if !g.HasEdgeBetween(int64(u), int64(v)) {
				continue
			}
			w, ok := pickTarget(g, rng, u, n)
			if !ok {
				continue
			}
			g.RemoveEdge(int64(u), int64(v))
			g.SetEdge(simple.Edge{F: simple.Node(u), T: simple.Node(w)})
		}
	}
	return adjacency(g, n), nil
}

// Components returns the number of connected components of nb.
func Components(nb Neighbors) int {
	g := simple.NewUndirectedGraph()
	for i := range nb {
		g.AddNode(simple.Node(i))
	}
	for u, ns := range nb {
		for _, v := range ns {
			if u < v {
				g.SetEdge(simple.Edge{F: simple.Node(u), T: simple.Node(v)})
			}
		}
	}
	return len(topo.ConnectedComponents(g))
}

func ringLattice(n, k int) *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for j := 1; j <= k/2; j++ {
		for u := 0; u < n; u++ {
			v := (u + j) % n
			if u != v {
				g.SetEdge(simple.Edge{F: simple.Node(u), T: simple.Node(v)})
			}
		}
	}
	return g
}

// pickTarget draws a node that is neither u nor already adjacent to u.
// It gives up when u is adjacent to every other node.
func pickTarget(g *simple.UndirectedGraph, rng *rand.Rand, u, n int) (int, bool) {
	if g.From(int64(u)).Len() >= n-1 {
		return 0, false
	}
	for {
		w := rng.IntN(n)
		if w != u && !g.HasEdgeBetween(int64(u), int64(w)) {
			return w, true
		}
	}
}

// adjacency flattens g into sorted neighbor lists. gonum iterates node
// sets in map order, so sorting is what makes the output deterministic.
func adjacency(g graph.Undirected, n int) Neighbors {
	nb := make(Neighbors, n)
	for i := 0; i < n; i++ {
		it := g.From(int64(i))
		ids := make([]int, 0, it.Len())
		for it.Next() {
			ids = append(ids, int(it.Node().ID()))
		}
		sort.Ints(ids)
		nb[i] = ids
	}
	return nb
}
