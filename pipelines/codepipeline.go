// Package pipelines declares a self-updating CodePipeline that synthesizes the
// app from source and deploys application stages with CloudFormation.
package pipelines

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	cdkexample "github.com/lex00/cdk-example-go"
	"github.com/lex00/cdk-example-go/awss3"
	"github.com/lex00/cdk-example-go/construct"
	"github.com/lex00/cdk-example-go/intrinsics"
	"github.com/lex00/cdk-example-go/resources/codebuild"
	"github.com/lex00/cdk-example-go/resources/codepipeline"
	"github.com/lex00/cdk-example-go/resources/events"
	"github.com/lex00/cdk-example-go/resources/iam"
)

const (
	// DefaultBuildImage is the CodeBuild image used for synth and self-mutation.
	DefaultBuildImage = "aws/codebuild/standard:7.0"
	// DefaultCLIPackage is installed by the self-mutation step.
	DefaultCLIPackage = "github.com/lex00/cdk-example-go/cmd/cdk-example@latest"

	// DeployRoleEnv carries the CloudFormation deploy role ARN into the
	// self-mutation build.
	DeployRoleEnv = "CDK_EXAMPLE_DEPLOY_ROLE_ARN"

	synthOutputArtifact = "Synth_Output"
	changeSetName       = "PipelineChange"
	deployCapabilities  = "CAPABILITY_NAMED_IAM,CAPABILITY_AUTO_EXPAND"
)

var (
	// ErrCrossEnvironmentStage is recorded when a stage targets another account or region than the pipeline.
	ErrCrossEnvironmentStage = errors.New("stage environment differs from pipeline environment")
	// ErrMissingSynth is recorded when the pipeline has no synth step or the synth step has no input.
	ErrMissingSynth = errors.New("pipeline requires a synth step with an input source")
	// ErrStageOutsidePipelineAssembly is recorded for stages whose assembly the synth output does not contain.
	ErrStageOutsidePipelineAssembly = errors.New("stage is not synthesized below the pipeline's assembly")
	// ErrEmptyStage is recorded for stages without stacks.
	ErrEmptyStage = errors.New("stage has no stacks")
)

// CodePipelineProps configures a CodePipeline.
type CodePipelineProps struct {
	PipelineName string
	// Synth produces the cloud assembly. Its primary output directory is the
	// artifact every deploy action reads templates from.
	Synth *ShellStep
	// DisableSelfMutation removes the UpdatePipeline stage.
	DisableSelfMutation bool
	// BuildImage overrides DefaultBuildImage.
	BuildImage string
	// CLIPackage overrides DefaultCLIPackage for the self-mutation step.
	CLIPackage string
}

// StageDeployment is an application stage added to the pipeline.
type StageDeployment struct {
	Stage *construct.Stage
}

// Stacks returns the stacks deployed by the stage.
func (d *StageDeployment) Stacks() []*construct.Stack {
	return d.Stage.Stacks()
}

// CodePipeline is a CodePipeline with Source, Build, UpdatePipeline and one
// deploy stage per added application stage.
type CodePipeline struct {
	node  *construct.Node
	stack *construct.Stack
	props CodePipelineProps

	artifacts    *awss3.Bucket
	role         *construct.CfnResource
	buildRole    *construct.CfnResource
	deployRole   *construct.CfnResource
	eventsRole   *construct.CfnResource
	synthProject *construct.CfnResource
	selfMutation *construct.CfnResource
	rule         *construct.CfnResource
	resource     *construct.CfnResource

	stages []*StageDeployment
}

// NewCodePipeline declares the pipeline and its supporting resources in the
// stack enclosing scope.
func NewCodePipeline(scope construct.Construct, id string, props CodePipelineProps) *CodePipeline {
	if props.BuildImage == "" {
		props.BuildImage = DefaultBuildImage
	}
	if props.CLIPackage == "" {
		props.CLIPackage = DefaultCLIPackage
	}

	p := &CodePipeline{props: props}
	p.node = construct.NewNode(scope, id, p)

	stack, err := construct.StackOf(scope)
	if err != nil {
		p.node.AddError(err)
		return p
	}
	p.stack = stack

	if props.Synth == nil || props.Synth.Input == nil || props.Synth.Input.Repository == nil {
		p.node.AddError(ErrMissingSynth)
		return p
	}

	p.artifacts = awss3.NewBucket(p, "ArtifactsBucket", awss3.BucketProps{
		BlockPublicAccess: true,
		Encryption:        "AES256",
		RemovalPolicy:     awss3.RemovalPolicyRetain,
	})

	p.deployRole = construct.NewCfnResource(p, "CloudFormationDeployRole", &iam.Role{
		AssumeRolePolicyDocument: intrinsics.NewPolicyDocument(intrinsics.AssumeRoleStatement("cloudformation.amazonaws.com")),
		ManagedPolicyArns:        []any{intrinsics.ManagedPolicyARN("AdministratorAccess")},
	})

	p.buildRole = construct.NewCfnResource(p, "CodeBuildRole", &iam.Role{
		AssumeRolePolicyDocument: intrinsics.NewPolicyDocument(intrinsics.AssumeRoleStatement("codebuild.amazonaws.com")),
		Policies: []iam.Policy{{
			PolicyName:     "CodeBuild",
			PolicyDocument: p.buildPolicy(),
		}},
	})

	buildspec, err := props.Synth.BuildSpec()
	if err != nil {
		p.node.AddError(err)
	}
	p.synthProject = construct.NewCfnResource(p, "SynthProject", &codebuild.Project{
		Description: "Synthesizes the cloud assembly for " + p.pipelineName(),
		ServiceRole: p.buildRole.GetAtt("Arn"),
		Source:      codebuild.Project_Source{Type: "CODEPIPELINE", BuildSpec: buildspec},
		Artifacts:   codebuild.Project_Artifacts{Type: "CODEPIPELINE"},
		Environment: p.buildEnvironment(props.Synth.Env),
	})

	if !props.DisableSelfMutation {
		mutate := NewShellStep("SelfMutate", ShellStepProps{
			InstallCommands: []string{"go install " + props.CLIPackage},
			Commands: []string{fmt.Sprintf("cdk-example deploy %s --assembly . --require-approval never --role-arn \"$%s\"",
				stack.StackName(), DeployRoleEnv)},
		})
		spec, err := mutate.BuildSpec()
		if err != nil {
			p.node.AddError(err)
		}
		env := p.buildEnvironment(nil)
		env.EnvironmentVariables = append(env.EnvironmentVariables, codebuild.Project_EnvironmentVariable{
			Name: DeployRoleEnv, Value: p.deployRole.GetAtt("Arn"), Type: "PLAINTEXT",
		})
		p.selfMutation = construct.NewCfnResource(p, "SelfMutationProject", &codebuild.Project{
			Description: "Updates " + p.pipelineName() + " from the synthesized assembly",
			ServiceRole: p.buildRole.GetAtt("Arn"),
			Source:      codebuild.Project_Source{Type: "CODEPIPELINE", BuildSpec: spec},
			Artifacts:   codebuild.Project_Artifacts{Type: "CODEPIPELINE"},
			Environment: env,
		})
	}

	p.role = construct.NewCfnResource(p, "Role", &iam.Role{
		AssumeRolePolicyDocument: intrinsics.NewPolicyDocument(intrinsics.AssumeRoleStatement("codepipeline.amazonaws.com")),
		Policies: []iam.Policy{{
			PolicyName:     "Pipeline",
			PolicyDocument: p.pipelinePolicy(),
		}},
	})

	p.resource = construct.NewCfnResource(p, "Resource", pipelineResource{p: p})

	p.eventsRole = construct.NewCfnResource(p, "EventsRole", &iam.Role{
		AssumeRolePolicyDocument: intrinsics.NewPolicyDocument(intrinsics.AssumeRoleStatement("events.amazonaws.com")),
		Policies: []iam.Policy{{
			PolicyName: "StartPipeline",
			PolicyDocument: intrinsics.NewPolicyDocument(
				intrinsics.Allow([]string{"codepipeline:StartPipelineExecution"}, p.PipelineArn()),
			),
		}},
	})

	source := props.Synth.Input
	p.rule = construct.NewCfnResource(p, "SourceEventRule", &events.Rule{
		Description: "Starts " + p.pipelineName() + " on pushes to " + source.Branch,
		EventPattern: map[string]any{
			"source":      []string{"aws.codecommit"},
			"detail-type": []string{"CodeCommit Repository State Change"},
			"resources":   []any{source.Repository.RepositoryArn()},
			"detail": map[string]any{
				"event":         []string{"referenceCreated", "referenceUpdated"},
				"referenceName": []string{source.Branch},
			},
		},
		State: "ENABLED",
		Targets: []events.Rule_Target{{
			Id:      "Target0",
			Arn:     p.PipelineArn(),
			RoleArn: p.eventsRole.GetAtt("Arn"),
		}},
	})

	p.node.AddValidation(p.validateStages)
	return p
}

// Node returns the construct node.
func (p *CodePipeline) Node() *construct.Node { return p.node }

// Resource returns the AWS::CodePipeline::Pipeline resource.
func (p *CodePipeline) Resource() *construct.CfnResource { return p.resource }

// SynthProject returns the CodeBuild project running the synth step.
func (p *CodePipeline) SynthProject() *construct.CfnResource { return p.synthProject }

// SelfMutationProject returns the CodeBuild project updating the pipeline
// stack, or nil when self-mutation is disabled.
func (p *CodePipeline) SelfMutationProject() *construct.CfnResource { return p.selfMutation }

// DeployRole returns the role CloudFormation assumes to apply change sets.
func (p *CodePipeline) DeployRole() *construct.CfnResource { return p.deployRole }

// ArtifactsBucket returns the pipeline artifact bucket.
func (p *CodePipeline) ArtifactsBucket() *awss3.Bucket { return p.artifacts }

// Synth returns the synth step.
func (p *CodePipeline) Synth() *ShellStep { return p.props.Synth }

// Stages returns the application stages added so far.
func (p *CodePipeline) Stages() []*StageDeployment {
	return append([]*StageDeployment(nil), p.stages...)
}

// PipelineArn returns the pipeline ARN built from its logical ID.
func (p *CodePipeline) PipelineArn() intrinsics.Sub {
	return intrinsics.Sub{String: "arn:${AWS::Partition}:codepipeline:${AWS::Region}:${AWS::AccountId}:${" + p.resource.LogicalID() + "}"}
}

// AddStage deploys every stack of stage, in declaration order, after the
// pipeline has updated itself.
func (p *CodePipeline) AddStage(stage *construct.Stage) *StageDeployment {
	d := &StageDeployment{Stage: stage}
	p.stages = append(p.stages, d)
	return d
}

// Definition returns the pipeline resource properties as they are
// synthesized, including stages added so far.
func (p *CodePipeline) Definition() codepipeline.Pipeline {
	source := p.props.Synth.Input
	sourceArtifact := source.ArtifactName()

	def := codepipeline.Pipeline{
		Name:                     p.props.PipelineName,
		RoleArn:                  p.role.GetAtt("Arn"),
		ArtifactStore:            codepipeline.Pipeline_ArtifactStore{Type: "S3", Location: p.artifacts.BucketName()},
		RestartExecutionOnUpdate: true,
		PipelineType:             "V2",
	}
	if p.props.PipelineName == "" {
		def.Name = nil
	}

	def.Stages = append(def.Stages,
		codepipeline.Pipeline_Stage{
			Name: "Source",
			Actions: []codepipeline.Pipeline_Action{{
				Name:         source.ActionName(),
				ActionTypeId: actionType("Source", "CodeCommit"),
				Configuration: map[string]any{
					"RepositoryName":       source.Repository.RepositoryName(),
					"BranchName":           source.Branch,
					"PollForSourceChanges": false,
				},
				OutputArtifacts: []codepipeline.Pipeline_OutputArtifact{{Name: sourceArtifact}},
				RunOrder:        1,
			}},
		},
		codepipeline.Pipeline_Stage{
			Name: "Build",
			Actions: []codepipeline.Pipeline_Action{{
				Name:            p.props.Synth.ID,
				ActionTypeId:    actionType("Build", "CodeBuild"),
				Configuration:   map[string]any{"ProjectName": p.synthProject.Ref()},
				InputArtifacts:  []codepipeline.Pipeline_InputArtifact{{Name: sourceArtifact}},
				OutputArtifacts: []codepipeline.Pipeline_OutputArtifact{{Name: synthOutputArtifact}},
				RunOrder:        1,
			}},
		},
	)

	if p.selfMutation != nil {
		def.Stages = append(def.Stages, codepipeline.Pipeline_Stage{
			Name: "UpdatePipeline",
			Actions: []codepipeline.Pipeline_Action{{
				Name:           "SelfMutate",
				ActionTypeId:   actionType("Build", "CodeBuild"),
				Configuration:  map[string]any{"ProjectName": p.selfMutation.Ref()},
				InputArtifacts: []codepipeline.Pipeline_InputArtifact{{Name: synthOutputArtifact}},
				RunOrder:       1,
			}},
		})
	}

	for _, d := range p.stages {
		def.Stages = append(def.Stages, p.deployStage(d))
	}
	return def
}

func (p *CodePipeline) deployStage(d *StageDeployment) codepipeline.Pipeline_Stage {
	stage := codepipeline.Pipeline_Stage{Name: d.Stage.Node().ID()}
	prefix, _ := p.assemblyPrefix(d.Stage)

	for i, st := range d.Stacks() {
		order := 2*i + 1
		templatePath := synthOutputArtifact + "::" + prefix + st.TemplateFile()
		stage.Actions = append(stage.Actions,
			codepipeline.Pipeline_Action{
				Name:         st.StackName() + ".Prepare",
				ActionTypeId: actionType("Deploy", "CloudFormation"),
				Configuration: map[string]any{
					"StackName":     st.StackName(),
					"ChangeSetName": changeSetName,
					"ActionMode":    "CHANGE_SET_REPLACE",
					"TemplatePath":  templatePath,
					"Capabilities":  deployCapabilities,
					"RoleArn":       p.deployRole.GetAtt("Arn"),
				},
				InputArtifacts: []codepipeline.Pipeline_InputArtifact{{Name: synthOutputArtifact}},
				RunOrder:       order,
			},
			codepipeline.Pipeline_Action{
				Name:         st.StackName() + ".Deploy",
				ActionTypeId: actionType("Deploy", "CloudFormation"),
				Configuration: map[string]any{
					"StackName":     st.StackName(),
					"ChangeSetName": changeSetName,
					"ActionMode":    "CHANGE_SET_EXECUTE",
				},
				RunOrder: order + 1,
			},
		)
	}
	return stage
}

// assemblyPrefix returns the path of stage's nested assembly relative to the
// assembly holding the pipeline stack, with a trailing slash.
func (p *CodePipeline) assemblyPrefix(stage *construct.Stage) (string, error) {
	home := p.stack.Stage()
	var dirs []string
	for cur := stage; cur != nil && cur != home; {
		dirs = append([]string{cur.AssemblyDirectory()}, dirs...)
		scope := cur.Node().Scope()
		if scope == nil {
			return "", ErrStageOutsidePipelineAssembly
		}
		cur = construct.StageOf(scope)
		if cur == nil {
			return "", ErrStageOutsidePipelineAssembly
		}
	}
	if len(dirs) == 0 {
		return "", ErrStageOutsidePipelineAssembly
	}
	return strings.Join(dirs, "/") + "/", nil
}

func (p *CodePipeline) validateStages() error {
	var errs []error
	home := p.stack.Environment()
	for _, d := range p.stages {
		if _, err := p.assemblyPrefix(d.Stage); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s", err, d.Stage.Node().Path()))
		}
		stacks := d.Stacks()
		if len(stacks) == 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrEmptyStage, d.Stage.Node().Path()))
		}
		for _, st := range stacks {
			if !sameEnvironment(home, st.Environment()) {
				errs = append(errs, fmt.Errorf("%w: %s targets %s, pipeline is in %s",
					ErrCrossEnvironmentStage, st.Node().Path(), st.Environment(), home))
			}
		}
	}
	return errors.Join(errs...)
}

// sameEnvironment treats an unset field on either side as matching.
func sameEnvironment(a, b cdkexample.Environment) bool {
	match := func(x, y string) bool { return x == "" || y == "" || x == y }
	return match(a.Account, b.Account) && match(a.Region, b.Region)
}

func (p *CodePipeline) pipelineName() string {
	if p.props.PipelineName != "" {
		return p.props.PipelineName
	}
	return p.node.Path()
}

func (p *CodePipeline) buildEnvironment(env map[string]string) codebuild.Project_Environment {
	out := codebuild.Project_Environment{
		Type:        "LINUX_CONTAINER",
		ComputeType: "BUILD_GENERAL1_SMALL",
		Image:       p.props.BuildImage,
	}
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := env[name]
		out.EnvironmentVariables = append(out.EnvironmentVariables, codebuild.Project_EnvironmentVariable{
			Name: name, Value: value, Type: "PLAINTEXT",
		})
	}
	return out
}

func (p *CodePipeline) buildPolicy() intrinsics.PolicyDocument {
	return intrinsics.NewPolicyDocument(
		intrinsics.Allow([]string{"logs:CreateLogGroup", "logs:CreateLogStream", "logs:PutLogEvents"}, "*"),
		intrinsics.Allow([]string{"s3:GetObject*", "s3:GetBucket*", "s3:List*", "s3:PutObject", "s3:DeleteObject*"},
			p.artifacts.BucketArn(), p.artifacts.ArnForObjects("*")),
		intrinsics.Allow([]string{"cloudformation:*"}, "*"),
		intrinsics.Allow([]string{"sts:GetCallerIdentity"}, "*"),
		intrinsics.Allow([]string{"iam:PassRole"}, p.deployRole.GetAtt("Arn")),
	)
}

func (p *CodePipeline) pipelinePolicy() intrinsics.PolicyDocument {
	projects := []any{p.synthProject.GetAtt("Arn")}
	if p.selfMutation != nil {
		projects = append(projects, p.selfMutation.GetAtt("Arn"))
	}
	return intrinsics.NewPolicyDocument(
		intrinsics.Allow([]string{"s3:GetObject*", "s3:GetBucket*", "s3:List*", "s3:PutObject", "s3:DeleteObject*"},
			p.artifacts.BucketArn(), p.artifacts.ArnForObjects("*")),
		intrinsics.Allow([]string{
			"codecommit:GetBranch", "codecommit:GetCommit", "codecommit:UploadArchive",
			"codecommit:GetUploadArchiveStatus", "codecommit:CancelUploadArchive",
		}, p.props.Synth.Input.Repository.RepositoryArn()),
		intrinsics.Allow([]string{"codebuild:BatchGetBuilds", "codebuild:StartBuild", "codebuild:StopBuild"}, projects...),
		intrinsics.Allow([]string{
			"cloudformation:CreateChangeSet", "cloudformation:DeleteChangeSet", "cloudformation:DescribeChangeSet",
			"cloudformation:DescribeStacks", "cloudformation:ExecuteChangeSet",
		}, "*"),
		intrinsics.Allow([]string{"iam:PassRole"}, p.deployRole.GetAtt("Arn")),
	)
}

func actionType(category, provider string) codepipeline.Pipeline_ActionTypeId {
	return codepipeline.Pipeline_ActionTypeId{Category: category, Owner: "AWS", Provider: provider, Version: "1"}
}

// pipelineResource renders the pipeline lazily so stages added after
// construction are included.
type pipelineResource struct {
	p *CodePipeline
}

func (r pipelineResource) ResourceType() string {
	return codepipeline.Pipeline{}.ResourceType()
}

func (r pipelineResource) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.p.Definition())
}
