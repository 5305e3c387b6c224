// Package codecommit contains CloudFormation resource types for AWS CodeCommit.
package codecommit

// Repository represents AWS::CodeCommit::Repository.
type Repository struct {
	RepositoryName        string `json:"RepositoryName"`
	RepositoryDescription string `json:"RepositoryDescription,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (r Repository) ResourceType() string {
	return "AWS::CodeCommit::Repository"
}
