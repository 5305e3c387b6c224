// Package codepipeline contains CloudFormation resource types for AWS CodePipeline.
package codepipeline

// Pipeline represents AWS::CodePipeline::Pipeline.
type Pipeline struct {
	Name                     any                    `json:"Name,omitempty"`
	RoleArn                  any                    `json:"RoleArn"`
	ArtifactStore            Pipeline_ArtifactStore `json:"ArtifactStore"`
	Stages                   []Pipeline_Stage       `json:"Stages"`
	RestartExecutionOnUpdate bool                   `json:"RestartExecutionOnUpdate,omitempty"`
	PipelineType             string                 `json:"PipelineType,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (r Pipeline) ResourceType() string {
	return "AWS::CodePipeline::Pipeline"
}

// Pipeline_ArtifactStore is the S3 location for pipeline artifacts.
type Pipeline_ArtifactStore struct {
	Type     string `json:"Type"`
	Location any    `json:"Location"`
}

// Pipeline_Stage is one stage of a pipeline.
type Pipeline_Stage struct {
	Name    string            `json:"Name"`
	Actions []Pipeline_Action `json:"Actions"`
}

// Pipeline_Action is one action inside a stage.
type Pipeline_Action struct {
	Name            string                    `json:"Name"`
	ActionTypeId    Pipeline_ActionTypeId     `json:"ActionTypeId"`
	Configuration   map[string]any            `json:"Configuration,omitempty"`
	InputArtifacts  []Pipeline_InputArtifact  `json:"InputArtifacts,omitempty"`
	OutputArtifacts []Pipeline_OutputArtifact `json:"OutputArtifacts,omitempty"`
	RoleArn         any                       `json:"RoleArn,omitempty"`
	RunOrder        int                       `json:"RunOrder,omitempty"`
}

// Pipeline_ActionTypeId identifies an action provider.
type Pipeline_ActionTypeId struct {
	Category string `json:"Category"`
	Owner    string `json:"Owner"`
	Provider string `json:"Provider"`
	Version  string `json:"Version"`
}

// Pipeline_InputArtifact names an artifact consumed by an action.
type Pipeline_InputArtifact struct {
	Name string `json:"Name"`
}

// Pipeline_OutputArtifact names an artifact produced by an action.
type Pipeline_OutputArtifact struct {
	Name string `json:"Name"`
}
