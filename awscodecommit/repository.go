// Package awscodecommit declares CodeCommit repositories.
package awscodecommit

import (
	cdkexample "github.com/lex00/cdk-example-go"
	"github.com/lex00/cdk-example-go/construct"
	"github.com/lex00/cdk-example-go/intrinsics"
	"github.com/lex00/cdk-example-go/resources/codecommit"
)

// RepositoryProps configures a Repository.
type RepositoryProps struct {
	RepositoryName string
	Description    string
}

// Repository is a CodeCommit git repository.
type Repository struct {
	node     *construct.Node
	resource *construct.CfnResource
	name     string
}

// NewRepository declares a repository.
func NewRepository(scope construct.Construct, id string, props RepositoryProps) *Repository {
	r := &Repository{name: props.RepositoryName}
	r.node = construct.NewNode(scope, id, r)
	r.resource = construct.NewCfnResource(r, "Resource", &codecommit.Repository{
		RepositoryName:        props.RepositoryName,
		RepositoryDescription: props.Description,
	})
	return r
}

// Node returns the construct node.
func (r *Repository) Node() *construct.Node { return r.node }

// Resource returns the AWS::CodeCommit::Repository resource.
func (r *Repository) Resource() *construct.CfnResource { return r.resource }

// RepositoryName returns the repository name.
func (r *Repository) RepositoryName() string { return r.name }

// RepositoryArn returns a GetAtt resolving to the repository ARN.
func (r *Repository) RepositoryArn() cdkexample.AttrRef { return r.resource.GetAtt("Arn") }

// CloneURLHTTP returns a GetAtt resolving to the HTTPS clone URL.
func (r *Repository) CloneURLHTTP() cdkexample.AttrRef { return r.resource.GetAtt("CloneUrlHttp") }

// ArnForPolicies returns the repository ARN built from its name, for use in
// IAM policies and event patterns without a resource dependency.
func (r *Repository) ArnForPolicies() intrinsics.Sub {
	return intrinsics.Sub{String: "arn:${AWS::Partition}:codecommit:${AWS::Region}:${AWS::AccountId}:" + r.name}
}
