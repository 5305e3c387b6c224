// Package graph renders synthesized stacks as DOT or Mermaid dependency
// graphs, and the construct tree as a hierarchy.
package graph

import (
	"io"
	"sort"
	"strings"

	"github.com/emicklei/dot"

	cdkexample "github.com/lex00/cdk-example-go"
	"github.com/lex00/cdk-example-go/construct"
)

// Format specifies the output format for the graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for GitHub/markdown rendering.
	FormatMermaid Format = "mermaid"
)

// EdgeKind classifies a dependency between two resources.
type EdgeKind string

const (
	EdgeRef       EdgeKind = "Ref"
	EdgeGetAtt    EdgeKind = "GetAtt"
	EdgeSub       EdgeKind = "Sub"
	EdgeDependsOn EdgeKind = "DependsOn"
)

// Edge is a dependency of From on To within one template.
type Edge struct {
	From string
	To   string
	Kind EdgeKind
}

// Generator creates dependency graphs from synthesized stacks.
type Generator struct {
	// Format specifies the output format (dot or mermaid). Defaults to dot.
	Format Format

	// ClusterByStack groups resources into one subgraph per stack.
	ClusterByStack bool
}

// Generate writes the resource dependency graph of stacks to w.
func (g *Generator) Generate(stacks []*construct.StackArtifact, w io.Writer) error {
	return g.write(g.buildGraph(stacks), w)
}

// GenerateString is a convenience method that returns the graph as a string.
func (g *Generator) GenerateString(stacks []*construct.StackArtifact) (string, error) {
	var sb strings.Builder
	if err := g.Generate(stacks, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// GenerateTree writes the construct hierarchy of tree to w.
func (g *Generator) GenerateTree(tree *construct.TreeDocument, w io.Writer) error {
	graph := newGraph()
	if tree != nil && tree.Tree != nil {
		addTreeNode(graph, nil, tree.Tree)
	}
	return g.write(graph, w)
}

func (g *Generator) write(graph *dot.Graph, w io.Writer) error {
	var output string
	if g.Format == FormatMermaid {
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	} else {
		output = graph.String()
	}
	_, err := io.WriteString(w, output)
	return err
}

func newGraph() *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "TB")
	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})
	graph.EdgeInitializer(func(e dot.Edge) {
		e.Attr("fontname", "Arial")
		e.Attr("fontsize", "10")
	})
	return graph
}

func (g *Generator) buildGraph(stacks []*construct.StackArtifact) *dot.Graph {
	graph := newGraph()

	for _, st := range stacks {
		if st.Template == nil {
			continue
		}
		target := graph
		if g.ClusterByStack {
			target = graph.Subgraph("cluster_"+nodeID(st.StackName, ""), dot.ClusterOption{})
			target.Attr("label", st.StackName)
			target.Attr("style", "rounded")
			target.Attr("bgcolor", "lightyellow")
		}

		// Edges must join the nodes declared in the cluster, not root copies.
		nodes := make(map[string]dot.Node, len(st.Template.Resources))
		for _, id := range sortedKeys(st.Template.Resources) {
			n := target.Node(nodeID(st.StackName, id))
			n.Label(id + "\\n[" + st.Template.Resources[id].Type + "]")
			nodes[id] = n
		}

		for _, e := range Edges(st.Template) {
			edge := target.Edge(nodes[e.From], nodes[e.To])
			switch e.Kind {
			case EdgeGetAtt:
				edge.Attr("color", "blue")
			case EdgeDependsOn:
				edge.Attr("style", "dashed")
			}
		}
	}
	return graph
}

func addTreeNode(graph *dot.Graph, parent *dot.Node, node *construct.TreeNode) {
	id := node.Path
	if id == "" {
		id = node.ID
	}
	n := graph.Node(nodeID(id, ""))
	n.Label(node.ID + "\\n(" + node.Kind + ")")
	if node.Kind == "Stack" || node.Kind == "Stage" || node.Kind == "App" {
		n.Attr("style", "bold")
	}
	if parent != nil {
		graph.Edge(*parent, n)
	}
	for _, child := range sortedChildren(node.Children) {
		addTreeNode(graph, &n, child)
	}
}

// Edges returns the dependencies between resources of tmpl: references in
// properties and explicit DependsOn. A pair linked several ways is reported
// once, with the strongest kind (GetAtt, Ref, Sub, DependsOn).
func Edges(tmpl *cdkexample.Template) []Edge {
	kinds := map[[2]string]EdgeKind{}
	add := func(from, to string, kind EdgeKind) {
		if from == to {
			return
		}
		if _, ok := tmpl.Resources[to]; !ok {
			return
		}
		key := [2]string{from, to}
		if prev, ok := kinds[key]; !ok || rank(kind) < rank(prev) {
			kinds[key] = kind
		}
	}

	for id, r := range tmpl.Resources {
		collect(r.Properties, func(target string, kind EdgeKind) { add(id, target, kind) })
		for _, dep := range r.DependsOn {
			add(id, dep, EdgeDependsOn)
		}
	}

	out := make([]Edge, 0, len(kinds))
	for key, kind := range kinds {
		out = append(out, Edge{From: key[0], To: key[1], Kind: kind})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

func rank(k EdgeKind) int {
	switch k {
	case EdgeGetAtt:
		return 0
	case EdgeRef:
		return 1
	case EdgeSub:
		return 2
	}
	return 3
}

// collect walks a resolved property value and reports every referenced name.
func collect(value any, found func(string, EdgeKind)) {
	switch v := value.(type) {
	case map[string]any:
		if target, ok := v["Ref"].(string); ok && len(v) == 1 {
			found(target, EdgeRef)
			return
		}
		if args, ok := v["Fn::GetAtt"].([]any); ok && len(v) == 1 && len(args) == 2 {
			if target, ok := args[0].(string); ok {
				found(target, EdgeGetAtt)
			}
			return
		}
		if s, ok := v["Fn::Sub"].(string); ok && len(v) == 1 {
			for _, name := range subVariables(s) {
				found(name, EdgeSub)
			}
			return
		}
		for _, val := range v {
			collect(val, found)
		}
	case []any:
		for _, elem := range v {
			collect(elem, found)
		}
	}
}

// subVariables returns the names of ${Name} and ${Name.Attr} variables in s.
func subVariables(s string) []string {
	var names []string
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			return names
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			return names
		}
		name := s[start+2 : start+end]
		if i := strings.Index(name, "."); i >= 0 {
			name = name[:i]
		}
		if name != "" && !strings.HasPrefix(name, "!") {
			names = append(names, name)
		}
		s = s[start+end+1:]
	}
}

// nodeID builds a graph node ID that is valid in both DOT and Mermaid.
func nodeID(scope, name string) string {
	raw := scope
	if name != "" {
		raw += "_" + name
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, raw)
}

func sortedKeys(m map[string]cdkexample.ResourceDef) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedChildren(children map[string]*construct.TreeNode) []*construct.TreeNode {
	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*construct.TreeNode, 0, len(keys))
	for _, k := range keys {
		out = append(out, children[k])
	}
	return out
}
