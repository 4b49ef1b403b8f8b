package graph

import "strings"

// DefaultProtocol labels an AFFECTS edge that carries no protocol property.
const DefaultProtocol = "AFFECTS"

// Node is a System as it appears in a result graph.
type Node struct {
	ID string `json:"id"`
}

// Edge is a directed AFFECTS relationship between two systems.
type Edge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Protocol string `json:"protocol"`
}

// Link is one outgoing edge of a system as seen from that system.
type Link struct {
	Target   string
	Protocol string
}

// Graph is the node and edge set returned to callers for visualization.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NormalizeProtocol picks the edge label from the primary property, then the
// legacy misspelled alias, then DefaultProtocol. Non-string and blank values
// count as absent.
func NormalizeProtocol(primary, alias any) string {
	if s, ok := primary.(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	if s, ok := alias.(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return DefaultProtocol
}
