// Package awss3 declares S3 buckets and their event notifications.
package awss3

import (
	"errors"
	"fmt"

	"github.com/lex00/cdk-example-go/construct"
	"github.com/lex00/cdk-example-go/intrinsics"
	"github.com/lex00/cdk-example-go/resources/s3"
)

// EventType is an S3 event notification type.
type EventType string

const (
	EventTypeObjectCreated     EventType = "s3:ObjectCreated:*"
	EventTypeObjectCreatedPut  EventType = "s3:ObjectCreated:Put"
	EventTypeObjectRemoved     EventType = "s3:ObjectRemoved:*"
	EventTypeObjectRestorePost EventType = "s3:ObjectRestore:Post"
)

// RemovalPolicy controls what happens to the bucket when it leaves the stack.
type RemovalPolicy string

const (
	RemovalPolicyDestroy RemovalPolicy = "Delete"
	RemovalPolicyRetain  RemovalPolicy = "Retain"
)

// ErrUnnamedBucketNotification is recorded when a Lambda notification is added
// to a bucket without a literal name. The permission would need the bucket's
// ARN while the bucket waits for the permission, which cannot be ordered.
var ErrUnnamedBucketNotification = errors.New("lambda notifications require a named bucket")

// BucketProps configures a Bucket.
type BucketProps struct {
	// BucketName is the physical name. Generated by CloudFormation when empty.
	BucketName        string
	Versioned         bool
	BlockPublicAccess bool
	// Encryption is the default SSE algorithm, e.g. AES256.
	Encryption    string
	RemovalPolicy RemovalPolicy
}

// Bucket is an S3 bucket.
type Bucket struct {
	node     *construct.Node
	resource *construct.CfnResource
	props    *s3.Bucket
	name     string
}

// NewBucket declares a bucket.
func NewBucket(scope construct.Construct, id string, props BucketProps) *Bucket {
	b := &Bucket{name: props.BucketName}
	b.node = construct.NewNode(scope, id, b)

	b.props = &s3.Bucket{}
	if props.BucketName != "" {
		b.props.BucketName = props.BucketName
	}
	if props.Versioned {
		b.props.VersioningConfiguration = &s3.Bucket_VersioningConfiguration{Status: "Enabled"}
	}
	if props.BlockPublicAccess {
		b.props.PublicAccessBlockConfiguration = &s3.Bucket_PublicAccessBlockConfiguration{
			BlockPublicAcls:       true,
			BlockPublicPolicy:     true,
			IgnorePublicAcls:      true,
			RestrictPublicBuckets: true,
		}
	}
	if props.Encryption != "" {
		b.props.BucketEncryption = &s3.Bucket_BucketEncryption{
			ServerSideEncryptionConfiguration: []s3.Bucket_ServerSideEncryptionRule{{
				ServerSideEncryptionByDefault: s3.Bucket_ServerSideEncryptionByDefault{SSEAlgorithm: props.Encryption},
			}},
		}
	}

	b.resource = construct.NewCfnResource(b, "Resource", b.props)
	if props.RemovalPolicy != "" {
		b.resource.SetDeletionPolicy(string(props.RemovalPolicy))
	}
	return b
}

// Node returns the construct node.
func (b *Bucket) Node() *construct.Node { return b.node }

// Resource returns the AWS::S3::Bucket resource.
func (b *Bucket) Resource() *construct.CfnResource { return b.resource }

// Properties returns the bucket's CloudFormation properties.
func (b *Bucket) Properties() *s3.Bucket { return b.props }

// PhysicalName returns the configured bucket name, or "" if generated.
func (b *Bucket) PhysicalName() string { return b.name }

// BucketName returns the literal name when set, otherwise a Ref.
func (b *Bucket) BucketName() any {
	if b.name != "" {
		return b.name
	}
	return b.resource.Ref()
}

// BucketArn returns the bucket ARN. For a named bucket it is derived from the
// name, so it does not depend on the bucket resource.
func (b *Bucket) BucketArn() any {
	if b.name != "" {
		return intrinsics.PartitionARN("s3", "", "", b.name)
	}
	return b.resource.GetAtt("Arn")
}

// ArnForObjects returns the ARN pattern of keys matching keyPattern.
func (b *Bucket) ArnForObjects(keyPattern string) any {
	if b.name != "" {
		return intrinsics.PartitionARN("s3", "", "", b.name+"/"+keyPattern)
	}
	return intrinsics.Join{Delimiter: "", Values: []any{b.resource.GetAtt("Arn"), "/" + keyPattern}}
}

// NotificationKeyFilter restricts notifications to keys with a prefix and/or suffix.
type NotificationKeyFilter struct {
	Prefix string
	Suffix string
}

// AddEventNotification subscribes dest to events of the given type.
func (b *Bucket) AddEventNotification(event EventType, dest NotificationDestination, filters ...NotificationKeyFilter) {
	cfg, err := dest.Bind(b)
	if err != nil {
		b.node.AddError(fmt.Errorf("adding %s notification: %w", event, err))
		return
	}

	if b.props.NotificationConfiguration == nil {
		b.props.NotificationConfiguration = &s3.Bucket_NotificationConfiguration{}
	}
	switch cfg.Type {
	case DestinationTypeLambda:
		b.props.NotificationConfiguration.LambdaConfigurations = append(
			b.props.NotificationConfiguration.LambdaConfigurations,
			s3.Bucket_LambdaConfiguration{
				Event:    string(event),
				Function: cfg.Arn,
				Filter:   keyFilter(filters),
			},
		)
	default:
		b.node.AddError(fmt.Errorf("unsupported notification destination %q", cfg.Type))
		return
	}

	for _, dep := range cfg.Dependencies {
		b.resource.AddDependsOn(dep)
	}
}

// LambdaNotifications returns the function notifications configured so far.
func (b *Bucket) LambdaNotifications() []s3.Bucket_LambdaConfiguration {
	if b.props.NotificationConfiguration == nil {
		return nil
	}
	return append([]s3.Bucket_LambdaConfiguration(nil), b.props.NotificationConfiguration.LambdaConfigurations...)
}

func keyFilter(filters []NotificationKeyFilter) *s3.Bucket_NotificationFilter {
	var rules []s3.Bucket_FilterRule
	for _, f := range filters {
		if f.Prefix != "" {
			rules = append(rules, s3.Bucket_FilterRule{Name: "prefix", Value: f.Prefix})
		}
		if f.Suffix != "" {
			rules = append(rules, s3.Bucket_FilterRule{Name: "suffix", Value: f.Suffix})
		}
	}
	if len(rules) == 0 {
		return nil
	}
	return &s3.Bucket_NotificationFilter{S3Key: s3.Bucket_S3KeyFilter{Rules: rules}}
}
