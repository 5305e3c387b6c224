package construct

import (
	"strings"

	cdkexample "github.com/lex00/cdk-example-go"
)

// StageProps configures a Stage.
type StageProps struct {
	// Env is the default environment of the stage's stacks. Empty fields are
	// inherited from the enclosing stage.
	Env cdkexample.Environment
}

// Stage groups stacks that are deployed together. Each stage is synthesized
// into its own nested cloud assembly.
type Stage struct {
	node *Node
	env  cdkexample.Environment
}

type stageHost interface {
	Construct
	stage() *Stage
}

// NewStage declares a stage under scope.
func NewStage(scope Construct, id string, props StageProps) *Stage {
	s := &Stage{}
	s.node = NewNode(scope, id, s)
	s.env = inheritEnv(props.Env, StageOf(scope).Environment())
	return s
}

func (s *Stage) stage() *Stage { return s }

// Node returns the construct node.
func (s *Stage) Node() *Node { return s.node }

// Environment returns the stage's default environment.
func (s *Stage) Environment() cdkexample.Environment { return s.env }

// StageName returns the stage IDs from the outermost stage to this one
// joined by "-". The app's stage name is empty.
func (s *Stage) StageName() string {
	if s.node.scope == nil {
		return ""
	}
	parent := StageOf(s.node.Scope()).StageName()
	if parent == "" {
		return s.node.id
	}
	return parent + "-" + s.node.id
}

// AssemblyDirectory returns the directory name of the stage's nested
// assembly, relative to its parent assembly. It is empty for the app.
func (s *Stage) AssemblyDirectory() string {
	if s.node.scope == nil {
		return ""
	}
	return "assembly-" + strings.Join(s.node.Scopes(), "-")
}

// Stacks returns the stacks synthesized into this stage's assembly, in
// declaration order. Stacks of nested stages are excluded.
func (s *Stage) Stacks() []*Stack {
	var out []*Stack
	s.walk(func(c Construct) {
		if st, ok := c.(*Stack); ok {
			out = append(out, st)
		}
	}, nil)
	return out
}

// Stages returns the stages directly nested in this stage.
func (s *Stage) Stages() []*Stage {
	var out []*Stage
	s.walk(nil, func(st *Stage) {
		out = append(out, st)
	})
	return out
}

// walk visits the descendants of s without entering nested stages.
func (s *Stage) walk(visit func(Construct), nested func(*Stage)) {
	var rec func(*Node)
	rec = func(n *Node) {
		for _, c := range n.children {
			if st, ok := c.host.(stageHost); ok {
				if nested != nil {
					nested(st.stage())
				}
				continue
			}
			if visit != nil {
				visit(c.host)
			}
			rec(c)
		}
	}
	rec(s.node)
}

// StageOf returns the nearest stage enclosing c (c itself included). The app
// is the outermost stage.
func StageOf(c Construct) *Stage {
	for n := c.Node(); n != nil; n = n.scope {
		if st, ok := n.host.(stageHost); ok {
			return st.stage()
		}
	}
	return nil
}
