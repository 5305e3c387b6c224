// Package iam contains CloudFormation resource types for AWS IAM.
package iam

// Role represents AWS::IAM::Role.
type Role struct {
	RoleName                 any      `json:"RoleName,omitempty"`
	AssumeRolePolicyDocument any      `json:"AssumeRolePolicyDocument"`
	ManagedPolicyArns        []any    `json:"ManagedPolicyArns,omitempty"`
	Policies                 []Policy `json:"Policies,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (r Role) ResourceType() string {
	return "AWS::IAM::Role"
}

// Policy is an inline policy embedded in a role.
type Policy struct {
	PolicyName     string `json:"PolicyName"`
	PolicyDocument any    `json:"PolicyDocument"`
}
