// Package stacks declares the cdk-example deployment topology: a pipeline
// stack that deploys one application stage holding the Lambda stack.
package stacks

import (
	cdkexample "github.com/lex00/cdk-example-go"
	"github.com/lex00/cdk-example-go/awslambda"
	"github.com/lex00/cdk-example-go/awss3"
	"github.com/lex00/cdk-example-go/construct"
	"github.com/lex00/cdk-example-go/intrinsics"
)

const (
	DefaultFunctionName = "CdkExampleLambdaFunction"
	DefaultBucketName   = "cdkexamplebucket"
)

// HandlerSource is the inline body of the notification handler.
const HandlerSource = `
	exports.handler = async (event) => {
	    console.log('Object created in Bucket');
	    return "Object created in Bucket";
	};
`

// LambdaStackProps configures a LambdaStack.
type LambdaStackProps struct {
	construct.StackProps

	// FunctionName defaults to DefaultFunctionName.
	FunctionName string
	// BucketName defaults to DefaultBucketName.
	BucketName string
	// SourceAccount restricts the invoke grant. Defaults to the stack's account.
	SourceAccount string
}

// LambdaStack holds a function invoked for every object created in a bucket.
type LambdaStack struct {
	*construct.Stack

	Function   *awslambda.Function
	Bucket     *awss3.Bucket
	Permission *awslambda.Permission
}

// NewLambdaStack declares the function, the bucket, the invoke grant for S3
// and the bucket's ObjectCreated subscription.
func NewLambdaStack(scope construct.Construct, id string, props LambdaStackProps) *LambdaStack {
	if props.FunctionName == "" {
		props.FunctionName = DefaultFunctionName
	}
	if props.BucketName == "" {
		props.BucketName = DefaultBucketName
	}

	s := &LambdaStack{Stack: construct.NewStack(scope, id, props.StackProps)}

	s.Function = awslambda.NewFunction(s.Stack, "LambdaFunction", awslambda.FunctionProps{
		FunctionName: props.FunctionName,
		Runtime:      awslambda.RuntimeNodejs18X,
		Handler:      "index.handler",
		Code:         awslambda.InlineCode(HandlerSource),
	})

	s.Bucket = awss3.NewBucket(s.Stack, "S3Bucket", awss3.BucketProps{
		BucketName: props.BucketName,
	})

	var account any = intrinsics.AWS_ACCOUNT_ID
	switch {
	case props.SourceAccount != "":
		account = props.SourceAccount
	case s.Environment().Account != "":
		account = s.Environment().Account
	}
	s.Permission = awslambda.NewPermission(s.Stack, "LambdaPermission", awslambda.PermissionProps{
		Function:      s.Function,
		Action:        awslambda.ActionInvokeFunction,
		Principal:     awss3.S3ServicePrincipal,
		SourceArn:     s.Bucket.BucketArn(),
		SourceAccount: account,
	})

	// Reuses LambdaPermission as the notification's grant.
	s.Bucket.AddEventNotification(awss3.EventTypeObjectCreated, awss3.LambdaDestination(s.Function))

	s.AddOutput("FunctionArn", cdkexample.Output{
		Description: "ARN of the bucket notification handler",
		Value:       s.Function.FunctionArn(),
	})
	s.AddOutput("BucketName", cdkexample.Output{Value: s.Bucket.BucketName()})
	return s
}
