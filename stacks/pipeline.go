package stacks

import (
	cdkexample "github.com/lex00/cdk-example-go"
	"github.com/lex00/cdk-example-go/awscodecommit"
	"github.com/lex00/cdk-example-go/construct"
	"github.com/lex00/cdk-example-go/pipelines"
)

const (
	DefaultRepositoryName = "CDK-repo"
	DefaultPipelineName   = "MyPipeline"
	DefaultBranch         = "main"
	DefaultStageName      = "test"
	DefaultSynthOutput    = "cdk.out"
)

// SynthInstallCommands install the CLI that synthesizes the app.
var SynthInstallCommands = []string{
	"go install ./cmd/cdk-example",
}

// SynthCommands fetch dependencies, build and synthesize, in that order.
var SynthCommands = []string{
	"go mod download",
	"go build ./...",
	"cdk-example synth --output " + DefaultSynthOutput,
}

// PipelineStackProps configures a PipelineStack.
type PipelineStackProps struct {
	construct.StackProps

	RepositoryName string
	PipelineName   string
	Branch         string

	// StageName defaults to DefaultStageName.
	StageName string
	// StageEnv is the application stage target.
	StageEnv cdkexample.Environment
	Lambda   LambdaStackProps
}

// PipelineStack holds the source repository and the pipeline deploying the
// application stage.
type PipelineStack struct {
	*construct.Stack

	Repository *awscodecommit.Repository
	Synth      *pipelines.ShellStep
	Pipeline   *pipelines.CodePipeline
	AppStage   *AppStage
}

// NewPipelineStack declares the repository, the pipeline and its application
// stage.
func NewPipelineStack(scope construct.Construct, id string, props PipelineStackProps) *PipelineStack {
	if props.RepositoryName == "" {
		props.RepositoryName = DefaultRepositoryName
	}
	if props.PipelineName == "" {
		props.PipelineName = DefaultPipelineName
	}
	if props.Branch == "" {
		props.Branch = DefaultBranch
	}
	if props.StageName == "" {
		props.StageName = DefaultStageName
	}

	s := &PipelineStack{Stack: construct.NewStack(scope, id, props.StackProps)}

	s.Repository = awscodecommit.NewRepository(s.Stack, props.RepositoryName, awscodecommit.RepositoryProps{
		RepositoryName: props.RepositoryName,
	})

	s.Synth = pipelines.NewShellStep("Synth", pipelines.ShellStepProps{
		Input:                  pipelines.CodeCommit(s.Repository, props.Branch),
		InstallCommands:        SynthInstallCommands,
		Commands:               SynthCommands,
		PrimaryOutputDirectory: DefaultSynthOutput,
	})

	s.Pipeline = pipelines.NewCodePipeline(s.Stack, "Pipeline", pipelines.CodePipelineProps{
		PipelineName: props.PipelineName,
		Synth:        s.Synth,
	})

	s.AppStage = NewAppStage(s.Stack, props.StageName, AppStageProps{
		StageProps: construct.StageProps{Env: props.StageEnv},
		Lambda:     props.Lambda,
	})
	s.Pipeline.AddStage(s.AppStage.Stage)
	return s
}
