package construct

import (
	"fmt"
	"strings"
)

// TreeVersion is the schema version of tree.json.
const TreeVersion = "tree-0.1"

// TreeDocument is the content of tree.json: the whole construct tree.
type TreeDocument struct {
	Version string    `json:"version"`
	Tree    *TreeNode `json:"tree"`
}

// TreeNode is one construct in tree.json.
type TreeNode struct {
	ID         string               `json:"id"`
	Path       string               `json:"path"`
	Kind       string               `json:"kind"`
	Attributes map[string]any       `json:"attributes,omitempty"`
	Children   map[string]*TreeNode `json:"children,omitempty"`
}

func buildTree(root *Node) *TreeDocument {
	var rec func(*Node) *TreeNode
	rec = func(n *Node) *TreeNode {
		t := &TreeNode{
			ID:         n.id,
			Path:       n.Path(),
			Kind:       Kind(n.host),
			Attributes: n.attributes,
		}
		if n.scope == nil {
			t.ID = "App"
		}
		if len(n.children) > 0 {
			t.Children = make(map[string]*TreeNode, len(n.children))
			for _, c := range n.children {
				t.Children[c.id] = rec(c)
			}
		}
		return t
	}
	return &TreeDocument{Version: TreeVersion, Tree: rec(root)}
}

// Kind names the construct type of c, e.g. "Stack" or "awss3.Bucket".
func Kind(c Construct) string {
	switch c.(type) {
	case *App:
		return "App"
	case *Stage:
		return "Stage"
	case *Stack:
		return "Stack"
	case *CfnResource:
		return "CfnResource"
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", c), "*")
}
