package pipelines_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	cdkexample "github.com/lex00/cdk-example-go"
	"github.com/lex00/cdk-example-go/awscodecommit"
	"github.com/lex00/cdk-example-go/awss3"
	"github.com/lex00/cdk-example-go/construct"
	"github.com/lex00/cdk-example-go/pipelines"
)

var env = cdkexample.Environment{Account: "500737756044", Region: "us-east-1"}

type fixture struct {
	app      *construct.App
	stack    *construct.Stack
	repo     *awscodecommit.Repository
	synth    *pipelines.ShellStep
	pipeline *pipelines.CodePipeline
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	app := construct.NewApp(construct.AppProps{Outdir: "-"})
	stack := construct.NewStack(app, "CdkExampleStack", construct.StackProps{Env: env})
	repo := awscodecommit.NewRepository(stack, "CDK-repo", awscodecommit.RepositoryProps{RepositoryName: "CDK-repo"})
	synth := pipelines.NewShellStep("Synth", pipelines.ShellStepProps{
		Input:                  pipelines.CodeCommit(repo, "main"),
		InstallCommands:        []string{"go install ./cmd/cdk-example"},
		Commands:               []string{"go mod download", "go build ./...", "cdk-example synth --output cdk.out"},
		PrimaryOutputDirectory: "cdk.out",
	})
	pipeline := pipelines.NewCodePipeline(stack, "Pipeline", pipelines.CodePipelineProps{
		PipelineName: "MyPipeline",
		Synth:        synth,
	})
	return fixture{app: app, stack: stack, repo: repo, synth: synth, pipeline: pipeline}
}

func addStage(f fixture, id string, stageEnv cdkexample.Environment) *construct.Stage {
	stage := construct.NewStage(f.stack, id, construct.StageProps{Env: stageEnv})
	awss3.NewBucket(construct.NewStack(stage, "LambdaStack", construct.StackProps{}), "S3Bucket", awss3.BucketProps{BucketName: "cdkexamplebucket"})
	f.pipeline.AddStage(stage)
	return stage
}

func TestShellStep_AllCommandsOrder(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{
		"go install ./cmd/cdk-example",
		"go mod download",
		"go build ./...",
		"cdk-example synth --output cdk.out",
	}, f.synth.AllCommands())
}

func TestShellStep_BuildSpec(t *testing.T) {
	step := pipelines.NewShellStep("Synth", pipelines.ShellStepProps{
		InstallCommands:        []string{"go install ./cmd/cdk-example"},
		Commands:               []string{"go mod download", "go build ./...", "cdk-example synth --output cdk.out"},
		PrimaryOutputDirectory: "cdk.out",
		Env:                    map[string]string{"GOFLAGS": "-mod=mod"},
	})

	spec, err := step.BuildSpec()
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(spec), &parsed))
	assert.Equal(t, "0.2", parsed["version"])

	phases := parsed["phases"].(map[string]any)
	assert.Equal(t, []any{"go install ./cmd/cdk-example"}, phases["install"].(map[string]any)["commands"])
	assert.Equal(t, []any{"go mod download", "go build ./...", "cdk-example synth --output cdk.out"}, phases["build"].(map[string]any)["commands"])

	artifacts := parsed["artifacts"].(map[string]any)
	assert.Equal(t, "cdk.out", artifacts["base-directory"])
	assert.Equal(t, []any{"**/*"}, artifacts["files"])
	assert.Equal(t, map[string]any{"GOFLAGS": "-mod=mod"}, parsed["env"].(map[string]any)["variables"])
}

func TestCodeCommitSource(t *testing.T) {
	f := newFixture(t)
	src := pipelines.CodeCommit(f.repo, "")
	assert.Equal(t, "main", src.Branch)
	assert.Equal(t, "CDK-repo", src.ActionName())
	assert.Equal(t, "CDK-repo_Source", src.ArtifactName())
}

func TestCodePipeline_Stages(t *testing.T) {
	f := newFixture(t)
	addStage(f, "test", env)

	def := f.pipeline.Definition()
	assert.Equal(t, "MyPipeline", def.Name)
	require.Len(t, def.Stages, 4)

	names := make([]string, len(def.Stages))
	for i, s := range def.Stages {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"Source", "Build", "UpdatePipeline", "test"}, names)

	source := def.Stages[0].Actions[0]
	assert.Equal(t, "CodeCommit", source.ActionTypeId.Provider)
	assert.Equal(t, "main", source.Configuration["BranchName"])
	assert.Equal(t, "CDK-repo", source.Configuration["RepositoryName"])

	deploy := def.Stages[3].Actions
	require.Len(t, deploy, 2)
	assert.Equal(t, "test-LambdaStack.Prepare", deploy[0].Name)
	assert.Equal(t, "CHANGE_SET_REPLACE", deploy[0].Configuration["ActionMode"])
	assert.Equal(t, "Synth_Output::assembly-CdkExampleStack-test/test-LambdaStack.template.json", deploy[0].Configuration["TemplatePath"])
	assert.Equal(t, 1, deploy[0].RunOrder)
	assert.Equal(t, "CHANGE_SET_EXECUTE", deploy[1].Configuration["ActionMode"])
	assert.Equal(t, 2, deploy[1].RunOrder)
}

func TestCodePipeline_DisableSelfMutation(t *testing.T) {
	app := construct.NewApp(construct.AppProps{Outdir: "-"})
	stack := construct.NewStack(app, "CdkExampleStack", construct.StackProps{Env: env})
	repo := awscodecommit.NewRepository(stack, "Repo", awscodecommit.RepositoryProps{RepositoryName: "CDK-repo"})
	p := pipelines.NewCodePipeline(stack, "Pipeline", pipelines.CodePipelineProps{
		Synth:               pipelines.NewShellStep("Synth", pipelines.ShellStepProps{Input: pipelines.CodeCommit(repo, "main")}),
		DisableSelfMutation: true,
	})

	def := p.Definition()
	require.Len(t, def.Stages, 2)
	assert.Nil(t, def.Name)
}

func TestCodePipeline_Template(t *testing.T) {
	f := newFixture(t)
	addStage(f, "test", env)

	asm, err := f.app.Synth()
	require.NoError(t, err)

	stack, ok := asm.FindStack("CdkExampleStack")
	require.True(t, ok)

	counts := map[string]int{}
	for _, r := range stack.Template.Resources {
		counts[r.Type]++
	}
	assert.Equal(t, 1, counts["AWS::CodePipeline::Pipeline"])
	assert.Equal(t, 1, counts["AWS::CodeCommit::Repository"])
	assert.Equal(t, 2, counts["AWS::CodeBuild::Project"])
	assert.Equal(t, 1, counts["AWS::Events::Rule"])
	assert.Equal(t, 1, counts["AWS::S3::Bucket"])
	assert.Equal(t, 4, counts["AWS::IAM::Role"])

	pipeline := stack.Template.Resources[f.pipeline.Resource().LogicalID()]
	data, err := json.Marshal(pipeline.Properties)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Ref":"`+f.pipeline.SynthProject().LogicalID()+`"`)
	assert.NotContains(t, string(data), "${Token[")

	_, ok = asm.FindStack("test-LambdaStack")
	assert.True(t, ok)
}

func TestCodePipeline_SelfMutationUsesDeployRole(t *testing.T) {
	f := newFixture(t)
	addStage(f, "test", env)

	asm, err := f.app.Synth()
	require.NoError(t, err)
	stack, ok := asm.FindStack("CdkExampleStack")
	require.True(t, ok)

	project := stack.Template.Resources[f.pipeline.SelfMutationProject().LogicalID()]
	data, err := json.Marshal(project.Properties)
	require.NoError(t, err)
	var props struct {
		Source struct {
			BuildSpec string
		}
		Environment struct {
			EnvironmentVariables []struct {
				Name  string
				Value any
			}
		}
	}
	require.NoError(t, json.Unmarshal(data, &props))

	require.Len(t, props.Environment.EnvironmentVariables, 1)
	variable := props.Environment.EnvironmentVariables[0]
	assert.Equal(t, pipelines.DeployRoleEnv, variable.Name)
	assert.Equal(t, map[string]any{"Fn::GetAtt": []any{f.pipeline.DeployRole().LogicalID(), "Arn"}}, variable.Value)
	assert.Contains(t, props.Source.BuildSpec, "--role-arn")
	assert.Contains(t, props.Source.BuildSpec, "$"+pipelines.DeployRoleEnv)
}

func TestCodePipeline_CrossEnvironmentStage(t *testing.T) {
	f := newFixture(t)
	addStage(f, "prod", cdkexample.Environment{Account: "111111111111", Region: "us-east-1"})

	_, err := f.app.Synth()
	assert.ErrorIs(t, err, pipelines.ErrCrossEnvironmentStage)
}

func TestCodePipeline_EmptyStage(t *testing.T) {
	f := newFixture(t)
	f.pipeline.AddStage(construct.NewStage(f.stack, "empty", construct.StageProps{Env: env}))

	_, err := f.app.Synth()
	assert.ErrorIs(t, err, pipelines.ErrEmptyStage)
}

func TestCodePipeline_MissingSynth(t *testing.T) {
	app := construct.NewApp(construct.AppProps{Outdir: "-"})
	stack := construct.NewStack(app, "CdkExampleStack", construct.StackProps{Env: env})
	pipelines.NewCodePipeline(stack, "Pipeline", pipelines.CodePipelineProps{})

	_, err := app.Synth()
	assert.ErrorIs(t, err, pipelines.ErrMissingSynth)
}
