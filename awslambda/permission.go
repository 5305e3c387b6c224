package awslambda

import (
	"errors"

	"github.com/lex00/cdk-example-go/construct"
	"github.com/lex00/cdk-example-go/resources/lambda"
)

// ActionInvokeFunction is the default permission action.
const ActionInvokeFunction = "lambda:InvokeFunction"

// ErrPermissionWithoutFunction is recorded for a permission with no target function.
var ErrPermissionWithoutFunction = errors.New("permission has no target function")

// PermissionProps configures a Permission.
type PermissionProps struct {
	// Function is the function being granted. Required.
	Function *Function
	// Action defaults to lambda:InvokeFunction.
	Action string
	// Principal is the service or account allowed to invoke, e.g. s3.amazonaws.com.
	Principal string
	// SourceArn restricts the grant to one source resource.
	SourceArn any
	// SourceAccount restricts the grant to sources owned by one account.
	SourceAccount any
}

// Permission is an AWS::Lambda::Permission resource-based policy statement.
type Permission struct {
	node     *construct.Node
	resource *construct.CfnResource
	props    *lambda.Permission
	function *Function
}

// NewPermission declares an invoke permission on props.Function.
func NewPermission(scope construct.Construct, id string, props PermissionProps) *Permission {
	p := &Permission{function: props.Function}
	action := props.Action
	if action == "" {
		action = ActionInvokeFunction
	}
	p.props = &lambda.Permission{
		Action:        action,
		Principal:     props.Principal,
		SourceArn:     props.SourceArn,
		SourceAccount: props.SourceAccount,
	}
	if props.Function != nil {
		p.props.FunctionName = props.Function.FunctionName()
	}

	p.resource = construct.NewCfnResource(scope, id, p.props)
	p.node = p.resource.Node()

	if props.Function == nil {
		p.node.AddError(ErrPermissionWithoutFunction)
		return p
	}
	props.Function.permissions = append(props.Function.permissions, p)
	return p
}

// Node returns the construct node.
func (p *Permission) Node() *construct.Node { return p.node }

// Resource returns the AWS::Lambda::Permission resource.
func (p *Permission) Resource() *construct.CfnResource { return p.resource }

// Function returns the function the permission is attached to.
func (p *Permission) Function() *Function { return p.function }

// Properties returns the permission's CloudFormation properties.
func (p *Permission) Properties() *lambda.Permission { return p.props }
