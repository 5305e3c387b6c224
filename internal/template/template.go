// Package template builds CloudFormation templates from the resources of one stack.
//
// Resource properties are normalized through JSON, construct reference tokens
// are resolved back into logical IDs, and the implied dependencies are checked
// for dangling targets, cross-stack references and cycles.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"
	"gopkg.in/yaml.v3"

	cdkexample "github.com/lex00/cdk-example-go"
	"github.com/lex00/cdk-example-go/intrinsics"
)

var (
	// ErrDuplicateLogicalID is returned when two resources share a logical ID.
	ErrDuplicateLogicalID = errors.New("duplicate logical ID")
	// ErrDanglingReference is returned for a Ref/GetAtt/DependsOn whose target is not in the stack.
	ErrDanglingReference = errors.New("reference to undeclared resource")
	// ErrCrossStackReference is returned when a reference token belongs to another stack.
	ErrCrossStackReference = errors.New("cross-stack reference")
	// ErrCircularDependency is returned when resource dependencies form a cycle.
	ErrCircularDependency = errors.New("circular dependency detected")
)

// Entry is one resource to place in the template.
type Entry struct {
	LogicalID      string
	Properties     cdkexample.Resource
	DependsOn      []string
	DeletionPolicy string
	Metadata       map[string]any
}

// Builder constructs the CloudFormation template of a single stack.
type Builder struct {
	stackPath   string
	description string
	order       []string
	entries     map[string]Entry
	parameters  map[string]cdkexample.Parameter
	outputs     map[string]cdkexample.Output

	resolved map[string]map[string]any
	deps     map[string][]string
}

// NewBuilder creates a template builder for the stack at the given construct path.
func NewBuilder(stackPath string) *Builder {
	return &Builder{
		stackPath:  stackPath,
		entries:    make(map[string]Entry),
		parameters: make(map[string]cdkexample.Parameter),
		outputs:    make(map[string]cdkexample.Output),
	}
}

// SetDescription sets the template description.
func (b *Builder) SetDescription(description string) {
	b.description = description
}

// AddResource registers a resource under its logical ID.
func (b *Builder) AddResource(e Entry) error {
	if _, exists := b.entries[e.LogicalID]; exists {
		return fmt.Errorf("%w: %s in %s", ErrDuplicateLogicalID, e.LogicalID, b.stackPath)
	}
	b.entries[e.LogicalID] = e
	b.order = append(b.order, e.LogicalID)
	b.resolved = nil
	return nil
}

// AddParameter registers a template parameter.
func (b *Builder) AddParameter(name string, p cdkexample.Parameter) {
	b.parameters[name] = p
}

// AddOutput registers a template output. Its value may reference resources.
func (b *Builder) AddOutput(name string, o cdkexample.Output) {
	b.outputs[name] = o
}

// Build constructs the CloudFormation template.
func (b *Builder) Build() (*cdkexample.Template, error) {
	if err := b.resolve(); err != nil {
		return nil, err
	}
	if _, err := b.topologicalSort(); err != nil {
		return nil, err
	}

	tmpl := &cdkexample.Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Description:              b.description,
		Resources:                make(map[string]cdkexample.ResourceDef, len(b.entries)),
	}

	if len(b.parameters) > 0 {
		tmpl.Parameters = make(map[string]cdkexample.Parameter, len(b.parameters))
		for name, p := range b.parameters {
			tmpl.Parameters[name] = p
		}
	}

	for _, name := range b.order {
		e := b.entries[name]
		def := cdkexample.ResourceDef{
			Type:           e.Properties.ResourceType(),
			Properties:     b.resolved[name],
			DeletionPolicy: e.DeletionPolicy,
			Metadata:       e.Metadata,
		}
		if len(e.DependsOn) > 0 {
			def.DependsOn = append([]string(nil), e.DependsOn...)
			sort.Strings(def.DependsOn)
		}
		if def.DeletionPolicy != "" {
			def.UpdateReplacePolicy = def.DeletionPolicy
		}
		tmpl.Resources[name] = def
	}

	if len(b.outputs) > 0 {
		tmpl.Outputs = make(map[string]cdkexample.Output, len(b.outputs))
		for name, o := range b.outputs {
			value, err := b.normalize(o.Value)
			if err != nil {
				return nil, fmt.Errorf("serializing output %s: %w", name, err)
			}
			value, err = b.transformValue(name, value, nil)
			if err != nil {
				return nil, err
			}
			o.Value = value
			tmpl.Outputs[name] = o
		}
	}

	return tmpl, nil
}

// DependencyOrder returns the logical IDs in an order where every resource
// follows the resources it depends on. Ties are broken alphabetically.
func (b *Builder) DependencyOrder() ([]string, error) {
	if err := b.resolve(); err != nil {
		return nil, err
	}
	return b.topologicalSort()
}

// Dependencies returns, per logical ID, the resources it references or
// explicitly depends on.
func (b *Builder) Dependencies() (map[string][]string, error) {
	if err := b.resolve(); err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(b.deps))
	for name, deps := range b.deps {
		out[name] = append([]string(nil), deps...)
	}
	return out, nil
}

// resolve serializes every resource and rewrites reference tokens.
func (b *Builder) resolve() error {
	if b.resolved != nil {
		return nil
	}

	resolved := make(map[string]map[string]any, len(b.entries))
	b.deps = make(map[string][]string, len(b.entries))

	for _, name := range b.order {
		e := b.entries[name]
		raw, err := b.normalize(e.Properties)
		if err != nil {
			return fmt.Errorf("serializing %s: %w", name, err)
		}

		found := make(map[string]bool)
		value, err := b.transformValue(name, raw, found)
		if err != nil {
			return err
		}

		props, _ := value.(map[string]any)
		if len(props) == 0 {
			props = nil
		}
		resolved[name] = props

		for _, dep := range e.DependsOn {
			if _, ok := b.entries[dep]; !ok {
				return fmt.Errorf("%w: %s depends on %s in %s", ErrDanglingReference, name, dep, b.stackPath)
			}
			found[dep] = true
		}
		delete(found, name)

		deps := make([]string, 0, len(found))
		for dep := range found {
			deps = append(deps, dep)
		}
		sort.Strings(deps)
		b.deps[name] = deps
	}

	b.resolved = resolved
	return nil
}

// normalize converts a Go value to its generic JSON form.
func (b *Builder) normalize(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var subVariable = regexp.MustCompile(`\$\{([A-Za-z0-9]+)(?:\.[A-Za-z0-9.]+)?\}`)

// transformValue resolves reference tokens inside value, recording the
// logical IDs it finds into deps (when deps is non-nil).
func (b *Builder) transformValue(owner string, value any, deps map[string]bool) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		if target, ok := v["Ref"].(string); ok && len(v) == 1 {
			id, err := b.resolveTarget(owner, target, true)
			if err != nil {
				return nil, err
			}
			b.record(deps, id)
			return map[string]any{"Ref": id}, nil
		}

		if args, ok := v["Fn::GetAtt"].([]any); ok && len(v) == 1 && len(args) == 2 {
			target, _ := args[0].(string)
			id, err := b.resolveTarget(owner, target, false)
			if err != nil {
				return nil, err
			}
			b.record(deps, id)
			return map[string]any{"Fn::GetAtt": []any{id, args[1]}}, nil
		}

		if s, ok := v["Fn::Sub"].(string); ok && len(v) == 1 {
			for _, m := range subVariable.FindAllStringSubmatch(s, -1) {
				if b.isResource(m[1]) {
					b.record(deps, m[1])
				}
			}
			return v, nil
		}

		result := make(map[string]any, len(v))
		for key, val := range v {
			transformed, err := b.transformValue(owner, val, deps)
			if err != nil {
				return nil, err
			}
			result[key] = transformed
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, elem := range v {
			transformed, err := b.transformValue(owner, elem, deps)
			if err != nil {
				return nil, err
			}
			result[i] = transformed
		}
		return result, nil

	default:
		return value, nil
	}
}

// resolveTarget maps a Ref/GetAtt target (token or plain name) to a logical ID.
func (b *Builder) resolveTarget(owner, target string, allowParams bool) (string, error) {
	if stackPath, id, ok := cdkexample.ParseToken(target); ok {
		if stackPath != b.stackPath {
			return "", fmt.Errorf("%w: %s in %s references %s in %s", ErrCrossStackReference, owner, b.stackPath, id, stackPath)
		}
		target = id
	}

	if b.isResource(target) {
		return target, nil
	}
	if allowParams {
		if intrinsics.IsPseudoParameter(target) {
			return target, nil
		}
		if _, ok := b.parameters[target]; ok {
			return target, nil
		}
	}
	return "", fmt.Errorf("%w: %s references %s in %s", ErrDanglingReference, owner, target, b.stackPath)
}

func (b *Builder) isResource(name string) bool {
	_, ok := b.entries[name]
	return ok
}

func (b *Builder) record(deps map[string]bool, id string) {
	if deps != nil && b.isResource(id) {
		deps[id] = true
	}
}

// topologicalSort returns resources in dependency order.
func (b *Builder) topologicalSort() ([]string, error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	names := append([]string(nil), b.order...)
	sort.Strings(names)
	for _, name := range names {
		if err := g.AddVertex(name); err != nil {
			return nil, err
		}
	}

	for _, name := range names {
		for _, dep := range b.deps[name] {
			err := g.AddEdge(dep, name)
			switch {
			case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				return nil, b.cycleError(g, dep, name)
			default:
				return nil, err
			}
		}
	}

	return graph.StableTopologicalSort(g, func(a, b string) bool { return a < b })
}

// cycleError reports the path that the edge dep → name would close.
func (b *Builder) cycleError(g graph.Graph[string, string], dep, name string) error {
	path, err := graph.ShortestPath(g, name, dep)
	if err != nil || len(path) == 0 {
		return fmt.Errorf("%w: %s ↔ %s in %s", ErrCircularDependency, name, dep, b.stackPath)
	}
	path = append(path, name)
	return fmt.Errorf("%w in %s:\n  %s", ErrCircularDependency, b.stackPath, strings.Join(path, "\n    → "))
}

// ToJSON serializes the template to JSON.
func ToJSON(t *cdkexample.Template) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// ToYAML serializes the template to YAML.
func ToYAML(t *cdkexample.Template) ([]byte, error) {
	return yaml.Marshal(t)
}
