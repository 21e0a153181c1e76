package graph

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/fam/internal/ir"
)

// WriteDOT renders the arena as a Graphviz digraph. Leaves are ellipses,
// combinators are boxes, edges carry "L:<op>" / "R:<op>", and roots are
// ranked as sources.
func WriteDOT(w io.Writer, a *Arena, roots []ir.NodeID) error {
	var b strings.Builder
	b.WriteString("digraph AST {\n")
	b.WriteString("  rankdir=LR;\n")
	for _, n := range a.nodes {
		shape := "box"
		if n.Kind == ir.NodeLeaf {
			shape = "ellipse"
		}
		label := quoteDOT(n.Label + `\n(` + string(n.ID) + ")")
		fmt.Fprintf(&b, "  %q [label=\"%s\", shape=%s];\n", n.ID, label, shape)
	}
	for _, n := range a.nodes {
		if n.Left != "" {
			fmt.Fprintf(&b, "  %q -> %q [label=\"L:%s\"];\n", n.ID, n.Left, n.Op)
		}
		if n.Right != "" {
			fmt.Fprintf(&b, "  %q -> %q [label=\"R:%s\"];\n", n.ID, n.Right, n.Op)
		}
	}
	if len(roots) > 0 {
		quoted := make([]string, len(roots))
		for i, r := range roots {
			quoted[i] = fmt.Sprintf("%q", r)
		}
		fmt.Fprintf(&b, "  { rank=source; %s }\n", strings.Join(quoted, ", "))
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// DOT returns WriteDOT output as a string.
func DOT(a *Arena, roots []ir.NodeID) string {
	var b strings.Builder
	_ = WriteDOT(&b, a, roots)
	return b.String()
}

func quoteDOT(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
