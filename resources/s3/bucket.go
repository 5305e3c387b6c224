// Package s3 contains CloudFormation resource types for Amazon S3.
package s3

// Bucket represents AWS::S3::Bucket.
type Bucket struct {
	BucketName                     any                                    `json:"BucketName,omitempty"`
	NotificationConfiguration      *Bucket_NotificationConfiguration      `json:"NotificationConfiguration,omitempty"`
	PublicAccessBlockConfiguration *Bucket_PublicAccessBlockConfiguration `json:"PublicAccessBlockConfiguration,omitempty"`
	BucketEncryption               *Bucket_BucketEncryption               `json:"BucketEncryption,omitempty"`
	VersioningConfiguration        *Bucket_VersioningConfiguration        `json:"VersioningConfiguration,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (r Bucket) ResourceType() string {
	return "AWS::S3::Bucket"
}

// Bucket_NotificationConfiguration lists the event destinations of a bucket.
type Bucket_NotificationConfiguration struct {
	LambdaConfigurations []Bucket_LambdaConfiguration `json:"LambdaConfigurations,omitempty"`
}

// Bucket_LambdaConfiguration sends bucket events to a Lambda function.
type Bucket_LambdaConfiguration struct {
	Event    string                     `json:"Event"`
	Function any                        `json:"Function"`
	Filter   *Bucket_NotificationFilter `json:"Filter,omitempty"`
}

// Bucket_NotificationFilter restricts notifications by object key.
type Bucket_NotificationFilter struct {
	S3Key Bucket_S3KeyFilter `json:"S3Key"`
}

// Bucket_S3KeyFilter holds prefix/suffix key rules.
type Bucket_S3KeyFilter struct {
	Rules []Bucket_FilterRule `json:"Rules"`
}

// Bucket_FilterRule is a single prefix or suffix rule.
type Bucket_FilterRule struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// Bucket_PublicAccessBlockConfiguration blocks public access to a bucket.
type Bucket_PublicAccessBlockConfiguration struct {
	BlockPublicAcls       bool `json:"BlockPublicAcls,omitempty"`
	BlockPublicPolicy     bool `json:"BlockPublicPolicy,omitempty"`
	IgnorePublicAcls      bool `json:"IgnorePublicAcls,omitempty"`
	RestrictPublicBuckets bool `json:"RestrictPublicBuckets,omitempty"`
}

// Bucket_BucketEncryption configures default encryption.
type Bucket_BucketEncryption struct {
	ServerSideEncryptionConfiguration []Bucket_ServerSideEncryptionRule `json:"ServerSideEncryptionConfiguration"`
}

// Bucket_ServerSideEncryptionRule wraps the default encryption settings.
type Bucket_ServerSideEncryptionRule struct {
	ServerSideEncryptionByDefault Bucket_ServerSideEncryptionByDefault `json:"ServerSideEncryptionByDefault"`
}

// Bucket_ServerSideEncryptionByDefault selects the SSE algorithm.
type Bucket_ServerSideEncryptionByDefault struct {
	SSEAlgorithm string `json:"SSEAlgorithm"`
}

// Bucket_VersioningConfiguration enables or suspends versioning.
type Bucket_VersioningConfiguration struct {
	Status string `json:"Status"`
}

// BucketPolicy represents AWS::S3::BucketPolicy.
type BucketPolicy struct {
	Bucket         any `json:"Bucket"`
	PolicyDocument any `json:"PolicyDocument"`
}

// ResourceType returns the CloudFormation resource type.
func (r BucketPolicy) ResourceType() string {
	return "AWS::S3::BucketPolicy"
}
