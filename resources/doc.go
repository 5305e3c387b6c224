// Package resources holds the CloudFormation property types used by the
// cdk-example constructs, one package per AWS service.
//
// Each type maps one-to-one onto a CloudFormation resource and implements
// cdkexample.Resource:
//
//	var bucket = s3.Bucket{BucketName: "cdkexamplebucket"}
//	bucket.ResourceType() // "AWS::S3::Bucket"
//
// Fields typed as any accept literals as well as intrinsic functions and
// construct references.
package resources
