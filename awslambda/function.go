// Package awslambda declares Lambda functions and their invoke permissions.
package awslambda

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/lithammer/dedent"

	cdkexample "github.com/lex00/cdk-example-go"
	"github.com/lex00/cdk-example-go/construct"
	"github.com/lex00/cdk-example-go/intrinsics"
	"github.com/lex00/cdk-example-go/resources/iam"
	"github.com/lex00/cdk-example-go/resources/lambda"
)

// Runtime is a Lambda runtime identifier.
type Runtime string

const (
	RuntimeNodejs18X      Runtime = "nodejs18.x"
	RuntimeNodejs20X      Runtime = "nodejs20.x"
	RuntimePython312      Runtime = "python3.12"
	RuntimeProvidedAL2023 Runtime = "provided.al2023"
)

// BasicExecutionPolicy is the managed policy attached to every function role.
const BasicExecutionPolicy = "service-role/AWSLambdaBasicExecutionRole"

// Code is a function's deployment package.
type Code struct {
	inline   string
	s3Bucket any
	s3Key    any
}

// InlineCode embeds source code in the template. Common leading indentation
// and surrounding blank lines are removed, so the source can be written as an
// indented Go raw string.
func InlineCode(source string) Code {
	return Code{inline: strings.TrimSpace(dedent.Dedent(source)) + "\n"}
}

// S3Code points the function at a zip archive in S3.
func S3Code(bucket, key any) Code {
	return Code{s3Bucket: bucket, s3Key: key}
}

// Inline returns the inline source, or "" for S3 code.
func (c Code) Inline() string { return c.inline }

func (c Code) properties() lambda.Function_Code {
	return lambda.Function_Code{ZipFile: c.inline, S3Bucket: c.s3Bucket, S3Key: c.s3Key}
}

// FunctionProps configures a Function.
type FunctionProps struct {
	// FunctionName is the physical name. Generated by CloudFormation when empty.
	FunctionName string
	Description  string
	Runtime      Runtime
	Handler      string
	Code         Code
	// Timeout in seconds.
	Timeout    int
	MemorySize int
	// ManagedPolicies are extra managed policy names for the execution role.
	ManagedPolicies []string
}

// Function is a Lambda function together with its execution role.
type Function struct {
	node        *construct.Node
	resource    *construct.CfnResource
	role        *construct.CfnResource
	props       *lambda.Function
	name        string
	permissions []*Permission
}

// NewFunction declares a function. An execution role trusted by
// lambda.amazonaws.com is created as the "ServiceRole" child.
func NewFunction(scope construct.Construct, id string, props FunctionProps) *Function {
	f := &Function{name: props.FunctionName}
	f.node = construct.NewNode(scope, id, f)

	policies := []any{intrinsics.ManagedPolicyARN(BasicExecutionPolicy)}
	for _, p := range props.ManagedPolicies {
		policies = append(policies, intrinsics.ManagedPolicyARN(p))
	}
	f.role = construct.NewCfnResource(f, "ServiceRole", &iam.Role{
		AssumeRolePolicyDocument: intrinsics.NewPolicyDocument(intrinsics.AssumeRoleStatement("lambda.amazonaws.com")),
		ManagedPolicyArns:        policies,
	})

	f.props = &lambda.Function{
		Description: props.Description,
		Runtime:     string(props.Runtime),
		Handler:     props.Handler,
		Code:        props.Code.properties(),
		Role:        f.role.GetAtt("Arn"),
		Timeout:     props.Timeout,
		MemorySize:  props.MemorySize,
	}
	if props.FunctionName != "" {
		f.props.FunctionName = props.FunctionName
	}
	f.resource = construct.NewCfnResource(f, "Resource", f.props)
	f.resource.AddDependsOn(f.role)
	return f
}

// Node returns the construct node.
func (f *Function) Node() *construct.Node { return f.node }

// Resource returns the AWS::Lambda::Function resource.
func (f *Function) Resource() *construct.CfnResource { return f.resource }

// Role returns the execution role resource.
func (f *Function) Role() *construct.CfnResource { return f.role }

// Properties returns the function's CloudFormation properties.
func (f *Function) Properties() *lambda.Function { return f.props }

// PhysicalName returns the configured function name, or "" if generated.
func (f *Function) PhysicalName() string { return f.name }

// FunctionName returns a Ref resolving to the function name.
func (f *Function) FunctionName() cdkexample.ResourceRef { return f.resource.Ref() }

// FunctionArn returns a GetAtt resolving to the function ARN.
func (f *Function) FunctionArn() cdkexample.AttrRef { return f.resource.GetAtt("Arn") }

// AddPermission grants a principal the right to invoke the function. The
// permission is declared as a child of the function.
func (f *Function) AddPermission(id string, props PermissionProps) *Permission {
	props.Function = f
	return NewPermission(f, id, props)
}

// Permissions returns the invoke permissions declared for this function.
func (f *Function) Permissions() []*Permission {
	return append([]*Permission(nil), f.permissions...)
}

// FindPermission returns a permission already granting principal invoke
// rights for sourceArn, or nil.
func (f *Function) FindPermission(principal string, sourceArn any) *Permission {
	for _, p := range f.permissions {
		if p.props.Principal == principal && sameValue(p.props.SourceArn, sourceArn) {
			return p
		}
	}
	return nil
}

// sameValue compares two property values by their JSON form.
func sameValue(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}
