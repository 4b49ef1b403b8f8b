// Package impact computes failure impact over a system dependency graph:
// the full deduplicated graph, the set of systems reachable from a failed
// system within a hop bound, and the subgraph visited on the way.
//
// Traversal always runs forward, from a failed system along its outgoing
// AFFECTS edges to the systems it affects. All functions are pure and safe
// to call concurrently on a shared read-only store.
package impact

import (
	"sort"

	"github.com/efebarandurmaz/impactgraph/internal/graph"
)

// DefaultMaxDepth is the hop bound used when callers do not supply one.
const DefaultMaxDepth = 5

// FullGraph returns every edge of the store once per (from, to) pair,
// ordered by (from, to), together with the nodes those edges reference.
func FullGraph(store graph.Store) *graph.Graph {
	g := &graph.Graph{Nodes: []graph.Node{}, Edges: []graph.Edge{}}
	nodes := make(map[string]bool)

	for _, from := range store.AllSystemIdentifiers() {
		for _, link := range outgoing(store, from) {
			g.Edges = append(g.Edges, graph.Edge{From: from, To: link.Target, Protocol: link.Protocol})
			nodes[from] = true
			nodes[link.Target] = true
		}
	}

	g.Nodes = sortedNodes(nodes)
	sortEdges(g.Edges)
	return g
}

// ReachableSet returns the distinct systems reachable from start within
// maxDepth hops, sorted ascending. start itself is never included.
func ReachableSet(store graph.Store, start string, maxDepth int) []string {
	visited := bfs(store, start, maxDepth, nil)
	delete(visited, start)

	out := make([]string, 0, len(visited))
	for id := range visited {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ReachableSubgraph runs the same traversal as ReachableSet and also returns
// every edge leaving an expanded node. start is always present in the node
// set, even when it has no edges or is unknown to the store.
func ReachableSubgraph(store graph.Store, start string, maxDepth int) *graph.Graph {
	edges := make(map[edgeKey]graph.Edge)
	visited := bfs(store, start, maxDepth, func(e graph.Edge) {
		k := edgeKey{e.From, e.To}
		if _, ok := edges[k]; !ok {
			edges[k] = e
		}
	})

	g := &graph.Graph{
		Nodes: sortedNodes(visited),
		Edges: make([]graph.Edge, 0, len(edges)),
	}
	for _, e := range edges {
		g.Edges = append(g.Edges, e)
	}
	sortEdges(g.Edges)
	return g
}

type edgeKey struct{ from, to string }

// bfs walks forward from start level by level, expanding each node at most
// once and at most maxDepth hops away. onEdge, if set, sees every edge that
// leaves an expanded node. The returned set always contains start.
func bfs(store graph.Store, start string, maxDepth int, onEdge func(graph.Edge)) map[string]bool {
	visited := map[string]bool{start: true}
	frontier := []string{start}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, from := range frontier {
			for _, link := range outgoing(store, from) {
				if onEdge != nil {
					onEdge(graph.Edge{From: from, To: link.Target, Protocol: link.Protocol})
				}
				if visited[link.Target] {
					continue
				}
				visited[link.Target] = true
				next = append(next, link.Target)
			}
		}
		sort.Strings(next)
		frontier = next
	}
	return visited
}

// outgoing returns the links leaving id with one entry per target. Links are
// ordered by (target, protocol) first, so the surviving protocol for a
// duplicated pair is the lexicographically smallest one regardless of the
// order the store reported them in.
func outgoing(store graph.Store, id string) []graph.Link {
	reported := store.OutgoingEdges(id)
	if len(reported) == 0 {
		return nil
	}
	links := make([]graph.Link, len(reported))
	copy(links, reported)
	sort.Slice(links, func(i, j int) bool {
		if links[i].Target != links[j].Target {
			return links[i].Target < links[j].Target
		}
		return links[i].Protocol < links[j].Protocol
	})

	out := links[:1]
	for _, l := range links[1:] {
		if l.Target != out[len(out)-1].Target {
			out = append(out, l)
		}
	}
	return out
}

func sortedNodes(set map[string]bool) []graph.Node {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodes := make([]graph.Node, len(ids))
	for i, id := range ids {
		nodes[i] = graph.Node{ID: id}
	}
	return nodes
}

func sortEdges(edges []graph.Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
}
