// Package lambda contains CloudFormation resource types for AWS Lambda.
package lambda

// Function represents AWS::Lambda::Function.
type Function struct {
	FunctionName any           `json:"FunctionName,omitempty"`
	Description  string        `json:"Description,omitempty"`
	Runtime      string        `json:"Runtime,omitempty"`
	Handler      string        `json:"Handler,omitempty"`
	Code         Function_Code `json:"Code"`
	Role         any           `json:"Role"`
	Timeout      int           `json:"Timeout,omitempty"`
	MemorySize   int           `json:"MemorySize,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (r Function) ResourceType() string {
	return "AWS::Lambda::Function"
}

// Function_Code is the deployment package of a function.
type Function_Code struct {
	ZipFile  string `json:"ZipFile,omitempty"`
	S3Bucket any    `json:"S3Bucket,omitempty"`
	S3Key    any    `json:"S3Key,omitempty"`
}

// Permission represents AWS::Lambda::Permission.
type Permission struct {
	Action        string `json:"Action"`
	FunctionName  any    `json:"FunctionName"`
	Principal     string `json:"Principal"`
	SourceAccount any    `json:"SourceAccount,omitempty"`
	SourceArn     any    `json:"SourceArn,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (r Permission) ResourceType() string {
	return "AWS::Lambda::Permission"
}
