// Package intrinsics provides the CloudFormation intrinsic functions used by
// the cdk-example constructs.
//
// The core types are re-exported from cloudformation-schema-go:
//
//	Ref{LogicalName: "MyBucket"} → {"Ref": "MyBucket"}
//	Sub{String: "${AWS::Region}-bucket"} → {"Fn::Sub": "${AWS::Region}-bucket"}
//	Join{Delimiter: ",", Values: []any{"a", "b"}} → {"Fn::Join": [",", ["a", "b"]]}
//
// References between constructs should use the handles returned by the
// construct package (Ref/GetAtt on a CfnResource) so synthesis can check that
// they stay inside one stack.
package intrinsics

import (
	"github.com/lex00/cloudformation-schema-go/intrinsics"
)

type (
	// Ref represents a CloudFormation Ref intrinsic function.
	Ref = intrinsics.Ref

	// Sub represents a CloudFormation Fn::Sub intrinsic function.
	Sub = intrinsics.Sub

	// Join represents a CloudFormation Fn::Join intrinsic function.
	Join = intrinsics.Join
)

// PartitionARN builds an ARN in the current partition, account and region
// placeholders left to the caller:
//
//	PartitionARN("s3", "", "", "cdkexamplebucket")
//	→ {"Fn::Sub": "arn:${AWS::Partition}:s3:::cdkexamplebucket"}
func PartitionARN(service, region, account, resource string) Sub {
	return Sub{String: "arn:${AWS::Partition}:" + service + ":" + region + ":" + account + ":" + resource}
}

// ManagedPolicyARN returns the ARN of an AWS managed IAM policy.
func ManagedPolicyARN(name string) Sub {
	return PartitionARN("iam", "", "aws", "policy/"+name)
}
