package awss3

import (
	"fmt"

	"github.com/lex00/cdk-example-go/awslambda"
	"github.com/lex00/cdk-example-go/construct"
	"github.com/lex00/cdk-example-go/intrinsics"
)

// S3ServicePrincipal is the principal S3 uses to invoke notification targets.
const S3ServicePrincipal = "s3.amazonaws.com"

// DestinationType names the kind of a notification target.
type DestinationType string

const (
	DestinationTypeLambda DestinationType = "Lambda"
)

// NotificationDestinationConfig is the result of binding a destination to a bucket.
type NotificationDestinationConfig struct {
	Type DestinationType
	Arn  any
	// Dependencies must be created before the bucket's notification configuration.
	Dependencies []*construct.CfnResource
}

// NotificationDestination is a target of bucket event notifications.
type NotificationDestination interface {
	Bind(bucket *Bucket) (NotificationDestinationConfig, error)
}

type lambdaDestination struct {
	fn *awslambda.Function
}

// LambdaDestination delivers bucket notifications to fn.
//
// Binding reuses an invoke permission of fn for s3.amazonaws.com with the
// bucket's ARN as source, or declares one under fn when none exists.
func LambdaDestination(fn *awslambda.Function) NotificationDestination {
	return lambdaDestination{fn: fn}
}

func (d lambdaDestination) Bind(bucket *Bucket) (NotificationDestinationConfig, error) {
	if bucket.name == "" {
		return NotificationDestinationConfig{}, fmt.Errorf("%w: %s", ErrUnnamedBucketNotification, bucket.node.Path())
	}

	arn := bucket.BucketArn()
	perm := d.fn.FindPermission(S3ServicePrincipal, arn)
	if perm == nil {
		var account any = intrinsics.AWS_ACCOUNT_ID
		if stack := bucket.resource.Stack(); stack != nil && stack.Environment().Account != "" {
			account = stack.Environment().Account
		}
		perm = d.fn.AddPermission("AllowBucketNotificationsTo"+bucket.node.ID(), awslambda.PermissionProps{
			Principal:     S3ServicePrincipal,
			SourceArn:     arn,
			SourceAccount: account,
		})
	}

	return NotificationDestinationConfig{
		Type:         DestinationTypeLambda,
		Arn:          d.fn.FunctionArn(),
		Dependencies: []*construct.CfnResource{perm.Resource()},
	}, nil
}
