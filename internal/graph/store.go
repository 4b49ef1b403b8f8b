package graph

import "sort"

// Store is the read contract traversal runs against. Reads never fail: an
// unknown system behaves like a system with no edges.
type Store interface {
	// AllSystemIdentifiers returns every distinct system id, sorted ascending.
	AllSystemIdentifiers() []string
	// OutgoingEdges returns the edges leaving id in the forward direction.
	OutgoingEdges(id string) []Link
}

// MemoryStore is an immutable adjacency-list snapshot of the system graph.
// It is safe for concurrent readers.
type MemoryStore struct {
	ids []string
	out map[string][]Link
}

// NewMemoryStore builds a snapshot from standalone systems and edges.
// Endpoints referenced only by edges become systems. Edges with an empty
// endpoint are ignored.
func NewMemoryStore(systems []string, edges []Edge) *MemoryStore {
	seen := make(map[string]bool, len(systems))
	s := &MemoryStore{out: make(map[string][]Link)}

	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		s.ids = append(s.ids, id)
	}

	for _, id := range systems {
		add(id)
	}
	for _, e := range edges {
		if e.From == "" || e.To == "" {
			continue
		}
		add(e.From)
		add(e.To)
		protocol := e.Protocol
		if protocol == "" {
			protocol = DefaultProtocol
		}
		s.out[e.From] = append(s.out[e.From], Link{Target: e.To, Protocol: protocol})
	}

	sort.Strings(s.ids)
	return s
}

// AllSystemIdentifiers implements Store.
func (s *MemoryStore) AllSystemIdentifiers() []string {
	ids := make([]string, len(s.ids))
	copy(ids, s.ids)
	return ids
}

// OutgoingEdges implements Store.
func (s *MemoryStore) OutgoingEdges(id string) []Link {
	links := s.out[id]
	if len(links) == 0 {
		return nil
	}
	cp := make([]Link, len(links))
	copy(cp, links)
	return cp
}

// Len returns the number of systems and edges in the snapshot.
func (s *MemoryStore) Len() (systems, edges int) {
	for _, links := range s.out {
		edges += len(links)
	}
	return len(s.ids), edges
}

var _ Store = (*MemoryStore)(nil)
