package impact

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/efebarandurmaz/impactgraph/internal/graph"
)

// Format names a rendering of a result graph.
type Format string

const (
	FormatJSON    Format = "json"
	FormatDOT     Format = "dot"
	FormatMermaid Format = "mermaid"
)

// ParseFormat accepts json, dot or mermaid (case-insensitive). Empty means json.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatDOT, FormatMermaid:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

// Render writes g in the given format. root, if non-empty, is drawn as the
// failed system.
func Render(g *graph.Graph, f Format, root string) ([]byte, error) {
	switch f {
	case FormatDOT:
		return []byte(ExportDOT(g, root)), nil
	case FormatMermaid:
		return []byte(ExportMermaid(g, root)), nil
	case FormatJSON, "":
		data, err := json.MarshalIndent(g, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unknown format %q", f)
	}
}

// ExportDOT generates a Graphviz DOT representation of the graph.
func ExportDOT(g *graph.Graph, root string) string {
	var b strings.Builder
	b.WriteString("digraph impact {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [fontname=\"Helvetica\" shape=box style=filled fillcolor=\"#238636\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\" fontsize=10];\n\n")

	for _, n := range g.Nodes {
		if n.ID == root {
			b.WriteString(fmt.Sprintf("  %s [fillcolor=\"#f85149\" shape=doubleoctagon];\n", quoteDOT(n.ID)))
			continue
		}
		b.WriteString(fmt.Sprintf("  %s;\n", quoteDOT(n.ID)))
	}
	if len(g.Edges) > 0 {
		b.WriteString("\n")
	}
	for _, e := range g.Edges {
		b.WriteString(fmt.Sprintf("  %s -> %s [label=%s];\n",
			quoteDOT(e.From), quoteDOT(e.To), quoteDOT(e.Protocol)))
	}

	b.WriteString("}\n")
	return b.String()
}

// ExportMermaid generates a Mermaid flowchart of the graph. Node ids are
// positional so distinct system ids never collide after sanitizing.
func ExportMermaid(g *graph.Graph, root string) string {
	var b strings.Builder
	b.WriteString("graph LR\n")

	ids := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[n.ID] = fmt.Sprintf("n%d", i)
		b.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", ids[n.ID], escapeMermaid(n.ID)))
	}
	for _, e := range g.Edges {
		b.WriteString(fmt.Sprintf("  %s -->|%s| %s\n", ids[e.From], escapeMermaid(e.Protocol), ids[e.To]))
	}
	if id, ok := ids[root]; ok {
		b.WriteString("  classDef failed fill:#f85149,color:#fff\n")
		b.WriteString(fmt.Sprintf("  class %s failed\n", id))
	}

	return b.String()
}

// Summary holds counts describing a result graph.
type Summary struct {
	Nodes       int            `json:"nodes"`
	Edges       int            `json:"edges"`
	Protocols   map[string]int `json:"protocols"`
	MaxFanOut   int            `json:"max_fan_out"`
	HotspotNode string         `json:"hotspot_node,omitempty"`
}

// Summarize counts nodes, edges, edges per protocol and the node with the
// most outgoing edges (ties go to the smallest id).
func Summarize(g *graph.Graph) Summary {
	s := Summary{
		Nodes:     len(g.Nodes),
		Edges:     len(g.Edges),
		Protocols: make(map[string]int),
	}
	fanOut := make(map[string]int)
	for _, e := range g.Edges {
		s.Protocols[e.Protocol]++
		fanOut[e.From]++
	}

	ids := make([]string, 0, len(fanOut))
	for id := range fanOut {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if fanOut[id] > s.MaxFanOut {
			s.MaxFanOut = fanOut[id]
			s.HotspotNode = id
		}
	}
	return s
}

// FormatSummary returns a human-readable summary of s.
func FormatSummary(s Summary) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Systems:     %d\n", s.Nodes))
	b.WriteString(fmt.Sprintf("Edges:       %d\n", s.Edges))
	if s.HotspotNode != "" {
		b.WriteString(fmt.Sprintf("Max Fan-Out: %d (%s)\n", s.MaxFanOut, s.HotspotNode))
	}

	protocols := make([]string, 0, len(s.Protocols))
	for p := range s.Protocols {
		protocols = append(protocols, p)
	}
	sort.Strings(protocols)
	if len(protocols) > 0 {
		b.WriteString("Protocols:\n")
		for _, p := range protocols {
			b.WriteString(fmt.Sprintf("  %s: %d\n", p, s.Protocols[p]))
		}
	}
	return b.String()
}

func quoteDOT(s string) string {
	return "\"" + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + "\""
}

var mermaidEscaper = strings.NewReplacer(`"`, "#quot;", "|", "#124;")

func escapeMermaid(s string) string {
	return mermaidEscaper.Replace(s)
}
