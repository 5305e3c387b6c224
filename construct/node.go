// Package construct implements the composition tree that cdk-example
// infrastructure is declared in.
//
// An App is the root. Stacks hold CloudFormation resources; Stages group
// stacks that deploy together and are synthesized into nested cloud
// assemblies:
//
//	app := construct.NewApp(construct.AppProps{Outdir: "cdk.out"})
//	stack := construct.NewStack(app, "CdkExampleStack", construct.StackProps{Env: env})
//	stage := construct.NewStage(stack, "test", construct.StageProps{Env: env})
//	construct.NewStack(stage, "LambdaStack", construct.StackProps{})
//	assembly, err := app.Synth()
//
// Errors found while the tree is declared are recorded on the offending node
// and reported together by App.Synth.
package construct

import (
	"errors"
	"fmt"
	"strings"
)

// PathSeparator separates construct IDs in a construct path.
const PathSeparator = "/"

var (
	// ErrDuplicateID is recorded when two children of one scope share an ID.
	ErrDuplicateID = errors.New("duplicate construct ID")
	// ErrInvalidID is recorded for empty IDs or IDs containing the path separator.
	ErrInvalidID = errors.New("invalid construct ID")
	// ErrNoStack is recorded when a resource is declared outside any stack.
	ErrNoStack = errors.New("construct is not inside a stack")
)

// Construct is any node of the composition tree.
type Construct interface {
	Node() *Node
}

// Node holds the tree bookkeeping of a construct.
type Node struct {
	id       string
	scope    *Node
	host     Construct
	children []*Node
	byID     map[string]*Node

	context     map[string]any
	attributes  map[string]any
	errs        []error
	validations []func() error
}

func newRootNode(host Construct) *Node {
	return &Node{
		host:    host,
		byID:    make(map[string]*Node),
		context: make(map[string]any),
	}
}

// NewNode attaches a node for host under scope. Higher-level constructs call
// it from their constructors. Invalid or duplicate IDs are recorded as errors
// on the scope and the node is left detached.
func NewNode(scope Construct, id string, host Construct) *Node {
	parent := scope.Node()
	n := &Node{
		id:      id,
		scope:   parent,
		host:    host,
		byID:    make(map[string]*Node),
		context: make(map[string]any),
	}

	switch {
	case id == "" || strings.Contains(id, PathSeparator):
		parent.AddError(fmt.Errorf("%w: %q under %q", ErrInvalidID, id, parent.Path()))
	case parent.byID[id] != nil:
		parent.AddError(fmt.Errorf("%w: %q under %q", ErrDuplicateID, id, parent.Path()))
	default:
		parent.byID[id] = n
		parent.children = append(parent.children, n)
	}
	return n
}

// ID returns the construct ID, unique among its siblings.
func (n *Node) ID() string { return n.id }

// Path returns the IDs from the root to this node joined by "/".
// The root's path is empty.
func (n *Node) Path() string {
	return strings.Join(n.Scopes(), PathSeparator)
}

// Scopes returns the IDs from the root (exclusive) to this node (inclusive).
func (n *Node) Scopes() []string {
	var ids []string
	for cur := n; cur != nil && cur.scope != nil; cur = cur.scope {
		ids = append(ids, cur.id)
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

// Host returns the construct that owns this node.
func (n *Node) Host() Construct { return n.host }

// Scope returns the parent construct, or nil for the root.
func (n *Node) Scope() Construct {
	if n.scope == nil {
		return nil
	}
	return n.scope.host
}

// Root returns the root node of the tree.
func (n *Node) Root() *Node {
	cur := n
	for cur.scope != nil {
		cur = cur.scope
	}
	return cur
}

// Children returns the direct children in declaration order.
func (n *Node) Children() []Construct {
	out := make([]Construct, len(n.children))
	for i, c := range n.children {
		out[i] = c.host
	}
	return out
}

// FindChild returns the child with the given ID.
func (n *Node) FindChild(id string) (Construct, bool) {
	c, ok := n.byID[id]
	if !ok {
		return nil, false
	}
	return c.host, true
}

// FindAll returns this node and all its descendants in pre-order.
func (n *Node) FindAll() []Construct {
	var out []Construct
	var walk func(*Node)
	walk = func(cur *Node) {
		out = append(out, cur.host)
		for _, c := range cur.children {
			walk(c)
		}
	}
	walk(n)
	return out
}

// SetContext sets a context value visible to this node and its descendants.
func (n *Node) SetContext(key string, value any) {
	n.context[key] = value
}

// TryGetContext looks a context key up from this node towards the root.
func (n *Node) TryGetContext(key string) any {
	for cur := n; cur != nil; cur = cur.scope {
		if v, ok := cur.context[key]; ok {
			return v
		}
	}
	return nil
}

// SetAttribute records a value shown for this node in tree.json.
func (n *Node) SetAttribute(key string, value any) {
	if n.attributes == nil {
		n.attributes = make(map[string]any)
	}
	n.attributes[key] = value
}

// AddError records a declaration error to be reported at synthesis.
func (n *Node) AddError(err error) {
	if err != nil {
		n.errs = append(n.errs, err)
	}
}

// AddValidation registers a check run at synthesis time.
func (n *Node) AddValidation(fn func() error) {
	n.validations = append(n.validations, fn)
}

// Validate returns recorded errors and validation failures of this node
// and all its descendants.
func (n *Node) Validate() []error {
	var errs []error
	var walk func(*Node)
	walk = func(cur *Node) {
		errs = append(errs, cur.errs...)
		for _, v := range cur.validations {
			if err := v(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", displayPath(cur), err))
			}
		}
		for _, c := range cur.children {
			walk(c)
		}
	}
	walk(n)
	return errs
}

func displayPath(n *Node) string {
	if p := n.Path(); p != "" {
		return p
	}
	return "App"
}
