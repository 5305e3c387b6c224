package construct

import (
	"errors"
	"fmt"
	"strings"

	cdkexample "github.com/lex00/cdk-example-go"
	"github.com/lex00/cdk-example-go/internal/template"
)

// Template errors surfaced by Stack.Template and App.Synth.
var (
	ErrCrossStackReference = template.ErrCrossStackReference
	ErrDanglingReference   = template.ErrDanglingReference
	ErrDuplicateLogicalID  = template.ErrDuplicateLogicalID
	ErrCircularDependency  = template.ErrCircularDependency

	// ErrNestedStack is recorded when a stack is declared directly inside another stack.
	ErrNestedStack = errors.New("stacks cannot be nested in stacks")
)

// StackProps configures a Stack.
type StackProps struct {
	// Env is the target account/region. Empty fields are inherited from the
	// enclosing stage, then from the app.
	Env cdkexample.Environment
	// StackName defaults to the stack ID, prefixed by the stage name inside a stage.
	StackName   string
	Description string
}

// Stack is a unit of deployment: one CloudFormation template.
type Stack struct {
	node        *Node
	stackName   string
	description string
	env         cdkexample.Environment

	resources   []*CfnResource
	parameters  map[string]cdkexample.Parameter
	outputNames []string
	outputs     map[string]cdkexample.Output
}

// NewStack declares a stack under scope.
func NewStack(scope Construct, id string, props StackProps) *Stack {
	s := &Stack{
		description: props.Description,
		parameters:  make(map[string]cdkexample.Parameter),
		outputs:     make(map[string]cdkexample.Output),
	}
	s.node = NewNode(scope, id, s)

	if _, err := StackOf(scope); err == nil {
		s.node.AddError(fmt.Errorf("%w: %s", ErrNestedStack, s.node.Path()))
	}

	stage := StageOf(scope)
	s.env = inheritEnv(props.Env, stage.Environment())

	s.stackName = props.StackName
	if s.stackName == "" {
		s.stackName = deriveStackName(stage, s.node)
	}
	return s
}

// StackOf returns the nearest stack enclosing c (c itself included).
func StackOf(c Construct) (*Stack, error) {
	for n := c.Node(); n != nil; n = n.scope {
		switch h := n.host.(type) {
		case *Stack:
			return h, nil
		case stageHost:
			return nil, fmt.Errorf("%w: %s", ErrNoStack, displayPath(c.Node()))
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoStack, displayPath(c.Node()))
}

// Node returns the construct node.
func (s *Stack) Node() *Node { return s.node }

// StackName returns the CloudFormation stack name.
func (s *Stack) StackName() string { return s.stackName }

// Environment returns the resolved target account/region.
func (s *Stack) Environment() cdkexample.Environment { return s.env }

// Stage returns the stage (or app) the stack is synthesized with.
func (s *Stack) Stage() *Stage { return StageOf(s.node.Scope()) }

// TemplateFile returns the template file name inside the cloud assembly.
func (s *Stack) TemplateFile() string { return s.stackName + ".template.json" }

// Resources returns the stack's resources in declaration order.
func (s *Stack) Resources() []*CfnResource {
	return append([]*CfnResource(nil), s.resources...)
}

// AddParameter declares a template parameter.
func (s *Stack) AddParameter(name string, p cdkexample.Parameter) {
	s.parameters[name] = p
}

// AddOutput declares a template output. The value may reference resources of
// this stack.
func (s *Stack) AddOutput(name string, o cdkexample.Output) {
	if _, exists := s.outputs[name]; !exists {
		s.outputNames = append(s.outputNames, name)
	}
	s.outputs[name] = o
}

// Builder returns a template builder populated with the stack's resources.
func (s *Stack) Builder() (*template.Builder, error) {
	b := template.NewBuilder(s.node.Path())
	b.SetDescription(s.description)

	for _, r := range s.resources {
		entry := template.Entry{
			LogicalID:      r.logicalID,
			Properties:     r.props,
			DeletionPolicy: r.deletionPolicy,
			Metadata:       map[string]any{"aws:cdk:path": r.node.Path()},
		}
		for k, v := range r.metadata {
			entry.Metadata[k] = v
		}
		for _, d := range r.dependsOn {
			entry.DependsOn = append(entry.DependsOn, d.logicalID)
		}
		if err := b.AddResource(entry); err != nil {
			return nil, err
		}
	}
	for name, p := range s.parameters {
		b.AddParameter(name, p)
	}
	for _, name := range s.outputNames {
		b.AddOutput(name, s.outputs[name])
	}
	return b, nil
}

// Template synthesizes the stack's CloudFormation template.
func (s *Stack) Template() (*cdkexample.Template, error) {
	b, err := s.Builder()
	if err != nil {
		return nil, err
	}
	return b.Build()
}

// allocateLogicalID derives the logical ID of a resource node from its path
// relative to this stack.
func (s *Stack) allocateLogicalID(n *Node) string {
	own := len(s.node.Scopes())
	return LogicalID(n.Scopes()[own:])
}

func deriveStackName(stage *Stage, n *Node) string {
	rel := n.Scopes()[len(stage.node.Scopes()):]
	name := strings.Join(rel, "-")
	if prefix := stage.StageName(); prefix != "" {
		name = prefix + "-" + name
	}
	return name
}

func inheritEnv(own, parent cdkexample.Environment) cdkexample.Environment {
	if own.Account == "" {
		own.Account = parent.Account
	}
	if own.Region == "" {
		own.Region = parent.Region
	}
	return own
}
