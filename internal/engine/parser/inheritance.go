// # internal/engine/parser/inheritance.go
package parser

import (
	"fmt"
	"slices"

	"github.com/dominikbraun/graph"
)

type classVertex struct {
	id    string
	class *Class
}

// inheritanceGraph links classes of one file to the earlier classes their
// bases name. Edges point from subclass to base.
type inheritanceGraph struct {
	g      graph.Graph[string, classVertex]
	ids    map[*Class]string
	latest map[string]*Class
	order  map[string]int
}

func newInheritanceGraph() *inheritanceGraph {
	return &inheritanceGraph{
		g:      graph.New(func(v classVertex) string { return v.id }, graph.Directed()),
		ids:    make(map[*Class]string),
		latest: make(map[string]*Class),
		order:  make(map[string]int),
	}
}

// add links c's bases and registers c for the classes declared after it.
// Classes must be added in declaration order.
func (ig *inheritanceGraph) add(c *Class, node *classNode, diags *diagnostics) {
	id := fmt.Sprintf("%d:%s", len(ig.ids), c.Name)
	ig.ids[c] = id
	ig.order[id] = len(ig.order)
	_ = ig.g.AddVertex(classVertex{id: id, class: c})

	seen := make(map[string]bool)
	for i, base := range c.Bases {
		link := BaseLink{Name: base}
		span := node.bases[i].span
		switch {
		case base == c.Name:
			link.SelfReference = true
			diags.add(DiagSelfReferentialBase, span, "class %q lists itself as a base", c.Name)
		case ig.latest[base] != nil:
			link.Local = ig.latest[base]
			_ = ig.g.AddEdge(id, ig.ids[link.Local])
		}
		if seen[base] {
			diags.add(DiagDuplicateBase, span, "class %q lists base %q more than once", c.Name, base)
		}
		seen[base] = true
		c.BaseLinks = append(c.BaseLinks, link)
	}

	c.Diamonds = ig.sharedAncestors(c)
	ig.latest[c.Name] = c
}

// sharedAncestors returns, in declaration order, the names of same-file
// classes reachable from more than one of c's distinct local bases. A base
// counts as reachable from itself.
func (ig *inheritanceGraph) sharedAncestors(c *Class) []string {
	var starts []string
	for _, link := range c.BaseLinks {
		if link.Local == nil {
			continue
		}
		if id := ig.ids[link.Local]; !slices.Contains(starts, id) {
			starts = append(starts, id)
		}
	}
	if len(starts) < 2 {
		return nil
	}

	hits := make(map[string]int)
	for _, start := range starts {
		_ = graph.DFS(ig.g, start, func(id string) bool {
			hits[id]++
			return false
		})
	}

	var shared []string
	for id, n := range hits {
		if n > 1 {
			shared = append(shared, id)
		}
	}
	slices.SortFunc(shared, func(a, b string) int { return ig.order[a] - ig.order[b] })

	names := make([]string, 0, len(shared))
	for _, id := range shared {
		v, err := ig.g.Vertex(id)
		if err != nil {
			continue
		}
		names = append(names, v.class.Name)
	}
	return names
}
