package construct

import (
	"fmt"

	cdkexample "github.com/lex00/cdk-example-go"
)

// CfnResource is a single CloudFormation resource placed in a stack.
//
// Properties are kept by reference: higher-level constructs may keep a
// pointer to their properties struct and keep editing it until synthesis.
type CfnResource struct {
	node           *Node
	stack          *Stack
	logicalID      string
	props          cdkexample.Resource
	dependsOn      []*CfnResource
	deletionPolicy string
	metadata       map[string]any
}

// NewCfnResource declares a resource under scope. The resource belongs to the
// nearest enclosing stack.
func NewCfnResource(scope Construct, id string, props cdkexample.Resource) *CfnResource {
	r := &CfnResource{props: props}
	r.node = NewNode(scope, id, r)
	r.node.SetAttribute("aws:cdk:cloudformation:type", props.ResourceType())

	stack, err := StackOf(scope)
	if err != nil {
		r.node.AddError(err)
		return r
	}
	r.stack = stack
	r.logicalID = stack.allocateLogicalID(r.node)
	stack.resources = append(stack.resources, r)
	return r
}

// Node returns the construct node.
func (r *CfnResource) Node() *Node { return r.node }

// Stack returns the owning stack, or nil if the resource is outside any stack.
func (r *CfnResource) Stack() *Stack { return r.stack }

// LogicalID returns the resource's logical ID in its stack template.
func (r *CfnResource) LogicalID() string { return r.logicalID }

// ResourceType returns the CloudFormation type, e.g. AWS::S3::Bucket.
func (r *CfnResource) ResourceType() string { return r.props.ResourceType() }

// Properties returns the properties struct the resource was declared with.
func (r *CfnResource) Properties() cdkexample.Resource { return r.props }

// Ref returns a Ref handle usable in properties of resources of the same stack.
func (r *CfnResource) Ref() cdkexample.ResourceRef {
	return cdkexample.ResourceRef{Stack: r.stackPath(), Resource: r.logicalID}
}

// GetAtt returns a Fn::GetAtt handle for an attribute of this resource.
func (r *CfnResource) GetAtt(attribute string) cdkexample.AttrRef {
	return cdkexample.AttrRef{Stack: r.stackPath(), Resource: r.logicalID, Attribute: attribute}
}

// AddDependsOn makes this resource depend on other. Both must be in the same stack.
func (r *CfnResource) AddDependsOn(other *CfnResource) {
	if other == nil || other == r {
		return
	}
	if other.stack != r.stack {
		r.node.AddError(fmt.Errorf("%w: %s depends on %s", ErrCrossStackReference, r.node.Path(), other.node.Path()))
		return
	}
	for _, d := range r.dependsOn {
		if d == other {
			return
		}
	}
	r.dependsOn = append(r.dependsOn, other)
}

// DependsOn returns the explicit dependencies of the resource.
func (r *CfnResource) DependsOn() []*CfnResource {
	return append([]*CfnResource(nil), r.dependsOn...)
}

// SetDeletionPolicy sets DeletionPolicy and UpdateReplacePolicy (Delete, Retain, Snapshot).
func (r *CfnResource) SetDeletionPolicy(policy string) {
	r.deletionPolicy = policy
}

// AddMetadata attaches a template metadata entry to the resource.
func (r *CfnResource) AddMetadata(key string, value any) {
	if r.metadata == nil {
		r.metadata = make(map[string]any)
	}
	r.metadata[key] = value
}

func (r *CfnResource) stackPath() string {
	if r.stack == nil {
		return ""
	}
	return r.stack.node.Path()
}
