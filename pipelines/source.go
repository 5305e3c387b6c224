package pipelines

import (
	"regexp"

	"github.com/lex00/cdk-example-go/awscodecommit"
)

// CodePipelineSource is the source action feeding the pipeline.
type CodePipelineSource struct {
	Repository *awscodecommit.Repository
	Branch     string
}

// CodeCommit uses a CodeCommit repository branch as the pipeline source.
// Pushes to the branch start the pipeline through an EventBridge rule.
func CodeCommit(repo *awscodecommit.Repository, branch string) *CodePipelineSource {
	if branch == "" {
		branch = "main"
	}
	return &CodePipelineSource{Repository: repo, Branch: branch}
}

var artifactNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// ActionName is the name of the source action, the repository name.
func (s *CodePipelineSource) ActionName() string {
	return artifactNameChars.ReplaceAllString(s.Repository.RepositoryName(), "_")
}

// ArtifactName is the name of the artifact holding the checked-out source.
func (s *CodePipelineSource) ArtifactName() string {
	return s.ActionName() + "_Source"
}
