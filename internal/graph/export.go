package graph

import (
	"fmt"
	"strings"

	"github.com/savaki/gamelift-backend/internal/resource"
)

// DOT exports the graph as Graphviz text, edges pointing from prerequisite to
// dependent. When snapshot is non-nil each node is labelled with its status.
func (g *Graph) DOT(snapshot resource.Snapshot) string {
	var b strings.Builder
	b.WriteString("digraph backend {\n")
	b.WriteString("  rankdir=LR;\n")
	for _, k := range g.topo {
		b.WriteString(fmt.Sprintf("  %s [label=\"%s\"];\n", k, escape(label(k, snapshot, "\\n"))))
	}
	for _, e := range g.edges {
		b.WriteString(fmt.Sprintf("  %s -> %s;\n", e.From, e.To))
	}
	b.WriteString("}\n")
	return b.String()
}

// Mermaid exports the graph as Mermaid flowchart text.
func (g *Graph) Mermaid(snapshot resource.Snapshot) string {
	var b strings.Builder
	b.WriteString("graph LR\n")
	for _, k := range g.topo {
		b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", k, escape(label(k, snapshot, "<br/>"))))
	}
	for _, e := range g.edges {
		b.WriteString(fmt.Sprintf("    %s --> %s\n", e.From, e.To))
	}
	return b.String()
}

func label(k resource.Kind, snapshot resource.Snapshot, sep string) string {
	if snapshot == nil {
		return k.String()
	}
	status := snapshot.Status(k).String()
	if status == "" {
		status = "ABSENT"
	}
	return k.String() + sep + "(" + status + ")"
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
