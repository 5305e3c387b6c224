package construct

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cdkexample "github.com/lex00/cdk-example-go"
	"github.com/lex00/cdk-example-go/resources/lambda"
	"github.com/lex00/cdk-example-go/resources/s3"
)

var testEnv = cdkexample.Environment{Account: "500737756044", Region: "us-east-1"}

func hashOf(path string) string {
	sum := md5.Sum([]byte(path))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:8]
}

func TestLogicalID(t *testing.T) {
	tests := []struct {
		name       string
		components []string
		expected   string
	}{
		{"single component", []string{"LambdaPermission"}, "LambdaPermission"},
		{"single component strips punctuation", []string{"CDK-repo"}, "CDKrepo"},
		{"resource child", []string{"LambdaFunction", "Resource"}, "LambdaFunction" + hashOf("LambdaFunction/Resource")},
		{"nested resource", []string{"LambdaFunction", "ServiceRole", "Resource"}, "LambdaFunctionServiceRole" + hashOf("LambdaFunction/ServiceRole/Resource")},
		{"default hidden", []string{"Bucket", "Default"}, "Bucket"},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LogicalID(tt.components))
		})
	}
}

func TestLogicalID_Deterministic(t *testing.T) {
	a := LogicalID([]string{"Pipeline", "ArtifactsBucket", "Resource"})
	b := LogicalID([]string{"Pipeline", "ArtifactsBucket", "Resource"})
	c := LogicalID([]string{"Pipeline", "Role", "Resource"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestNode_Paths(t *testing.T) {
	app := NewApp(AppProps{Outdir: "-"})
	stack := NewStack(app, "CdkExampleStack", StackProps{Env: testEnv})
	stage := NewStage(stack, "test", StageProps{Env: testEnv})
	inner := NewStack(stage, "LambdaStack", StackProps{})

	assert.Equal(t, "", app.Node().Path())
	assert.Equal(t, "CdkExampleStack", stack.Node().Path())
	assert.Equal(t, "CdkExampleStack/test", stage.Node().Path())
	assert.Equal(t, "CdkExampleStack/test/LambdaStack", inner.Node().Path())
	assert.Equal(t, []string{"CdkExampleStack", "test", "LambdaStack"}, inner.Node().Scopes())

	child, ok := stage.Node().FindChild("LambdaStack")
	require.True(t, ok)
	assert.Same(t, inner, child)
	assert.Len(t, app.Node().FindAll(), 4)
}

func TestNode_TryGetContext(t *testing.T) {
	app := NewApp(AppProps{Outdir: "-", Context: map[string]any{"branch": "main"}})
	stack := NewStack(app, "Stack", StackProps{})
	stack.Node().SetContext("local", 42)

	assert.Equal(t, "main", stack.Node().TryGetContext("branch"))
	assert.Equal(t, 42, stack.Node().TryGetContext("local"))
	assert.Nil(t, app.Node().TryGetContext("local"))
	assert.Nil(t, stack.Node().TryGetContext("missing"))
}

func TestStack_NameAndEnvironment(t *testing.T) {
	app := NewApp(AppProps{Outdir: "-", DefaultEnv: cdkexample.Environment{Region: "eu-west-1"}})
	top := NewStack(app, "CdkExampleStack", StackProps{Env: testEnv})
	stage := NewStage(top, "test", StageProps{Env: testEnv})
	inner := NewStack(stage, "LambdaStack", StackProps{})
	named := NewStack(stage, "Other", StackProps{StackName: "custom"})
	bare := NewStack(app, "Bare", StackProps{})

	assert.Equal(t, "CdkExampleStack", top.StackName())
	assert.Equal(t, "test-LambdaStack", inner.StackName())
	assert.Equal(t, "custom", named.StackName())
	assert.Equal(t, "test-LambdaStack.template.json", inner.TemplateFile())

	assert.Equal(t, testEnv, inner.Environment())
	assert.Equal(t, cdkexample.Environment{Region: "eu-west-1"}, bare.Environment())

	assert.Same(t, stage, inner.Stage())
	assert.Equal(t, "test", stage.StageName())
	assert.Equal(t, "assembly-CdkExampleStack-test", stage.AssemblyDirectory())
	assert.Equal(t, []*Stack{top, bare}, app.Stacks())
	assert.Equal(t, []*Stage{stage}, app.Stages())
	assert.Equal(t, []*Stack{inner, named}, stage.Stacks())
}

func TestCfnResource_Handles(t *testing.T) {
	app := NewApp(AppProps{Outdir: "-"})
	stack := NewStack(app, "LambdaStack", StackProps{})
	bucket := NewCfnResource(stack, "S3Bucket", &s3.Bucket{BucketName: "cdkexamplebucket"})

	assert.Equal(t, "S3Bucket", bucket.LogicalID())
	assert.Equal(t, "AWS::S3::Bucket", bucket.ResourceType())
	assert.Same(t, stack, bucket.Stack())
	assert.Equal(t, cdkexample.ResourceRef{Stack: "LambdaStack", Resource: "S3Bucket"}, bucket.Ref())
	assert.Equal(t, cdkexample.AttrRef{Stack: "LambdaStack", Resource: "S3Bucket", Attribute: "Arn"}, bucket.GetAtt("Arn"))
}

func TestStack_Template(t *testing.T) {
	app := NewApp(AppProps{Outdir: "-"})
	stack := NewStack(app, "LambdaStack", StackProps{Description: "lambda"})
	fn := NewCfnResource(stack, "LambdaFunction", &lambda.Function{Runtime: "nodejs18.x", Handler: "index.handler"})
	perm := NewCfnResource(stack, "LambdaPermission", &lambda.Permission{
		Action:       "lambda:InvokeFunction",
		FunctionName: fn.Ref(),
		Principal:    "s3.amazonaws.com",
	})
	bucket := NewCfnResource(stack, "S3Bucket", &s3.Bucket{})
	bucket.AddDependsOn(perm)
	bucket.SetDeletionPolicy("Retain")
	stack.AddOutput("FunctionArn", cdkexample.Output{Value: fn.GetAtt("Arn")})

	tmpl, err := stack.Template()
	require.NoError(t, err)

	assert.Equal(t, "lambda", tmpl.Description)
	assert.Len(t, tmpl.Resources, 3)
	assert.Equal(t, map[string]any{"Ref": "LambdaFunction"}, tmpl.Resources["LambdaPermission"].Properties["FunctionName"])
	assert.Equal(t, []string{"LambdaPermission"}, tmpl.Resources["S3Bucket"].DependsOn)
	assert.Equal(t, "Retain", tmpl.Resources["S3Bucket"].DeletionPolicy)
	assert.Equal(t, "LambdaStack/S3Bucket", tmpl.Resources["S3Bucket"].Metadata["aws:cdk:path"])
	assert.Equal(t, map[string]any{"Fn::GetAtt": []any{"LambdaFunction", "Arn"}}, tmpl.Outputs["FunctionArn"].Value)
}

func TestSynth_CrossStackReference(t *testing.T) {
	app := NewApp(AppProps{Outdir: "-"})
	producer := NewStack(app, "Producer", StackProps{})
	consumer := NewStack(app, "Consumer", StackProps{})

	fn := NewCfnResource(producer, "Function", &lambda.Function{})
	NewCfnResource(consumer, "Permission", &lambda.Permission{FunctionName: fn.Ref()})

	_, err := app.Synth()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCrossStackReference)
	assert.Contains(t, err.Error(), "Consumer")
}

func TestCfnResource_AddDependsOnAcrossStacks(t *testing.T) {
	app := NewApp(AppProps{Outdir: "-"})
	a := NewCfnResource(NewStack(app, "A", StackProps{}), "Bucket", &s3.Bucket{})
	b := NewCfnResource(NewStack(app, "B", StackProps{}), "Bucket", &s3.Bucket{})
	a.AddDependsOn(b)

	_, err := app.Synth()
	assert.ErrorIs(t, err, ErrCrossStackReference)
}

func TestSynth_DeclarationErrors(t *testing.T) {
	tests := []struct {
		name    string
		declare func(app *App)
		want    error
	}{
		{
			name: "duplicate id",
			declare: func(app *App) {
				NewStack(app, "Stack", StackProps{})
				NewStack(app, "Stack", StackProps{})
			},
			want: ErrDuplicateID,
		},
		{
			name: "invalid id",
			declare: func(app *App) {
				NewStack(app, "a/b", StackProps{})
			},
			want: ErrInvalidID,
		},
		{
			name: "resource outside stack",
			declare: func(app *App) {
				NewCfnResource(app, "Bucket", &s3.Bucket{})
			},
			want: ErrNoStack,
		},
		{
			name: "nested stack",
			declare: func(app *App) {
				NewStack(NewStack(app, "Outer", StackProps{}), "Inner", StackProps{})
			},
			want: ErrNestedStack,
		},
		{
			name: "duplicate stack name",
			declare: func(app *App) {
				NewStack(app, "One", StackProps{StackName: "same"})
				NewStack(app, "Two", StackProps{StackName: "same"})
			},
			want: ErrDuplicateStackName,
		},
		{
			name: "validation",
			declare: func(app *App) {
				stack := NewStack(app, "Stack", StackProps{})
				stack.Node().AddValidation(func() error { return errBoom })
			},
			want: errBoom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := NewApp(AppProps{Outdir: "-"})
			tt.declare(app)
			asm, err := app.Synth()
			assert.Nil(t, asm)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

var errBoom = errors.New("boom")

func TestSynth_ReportsAllErrors(t *testing.T) {
	app := NewApp(AppProps{Outdir: "-"})
	NewStack(app, "Stack", StackProps{})
	NewStack(app, "Stack", StackProps{})
	NewCfnResource(app, "Bucket", &s3.Bucket{})

	_, err := app.Synth()
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.ErrorIs(t, err, ErrNoStack)
}

func TestSynth_WritesAssembly(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cdk.out")
	app := NewApp(AppProps{Outdir: dir})
	top := NewStack(app, "CdkExampleStack", StackProps{Env: testEnv})
	NewCfnResource(top, "CDK-repo", &s3.Bucket{})
	stage := NewStage(top, "test", StageProps{Env: testEnv})
	inner := NewStack(stage, "LambdaStack", StackProps{})
	NewCfnResource(inner, "S3Bucket", &s3.Bucket{BucketName: "cdkexamplebucket"})

	asm, err := app.Synth()
	require.NoError(t, err)

	assert.Equal(t, dir, asm.Directory)
	require.Len(t, asm.Stacks, 1)
	require.Len(t, asm.Nested, 1)
	assert.Len(t, asm.AllStacks(), 2)

	for _, f := range []string{
		ManifestFile,
		TreeFile,
		"CdkExampleStack.template.json",
		filepath.Join("assembly-CdkExampleStack-test", ManifestFile),
		filepath.Join("assembly-CdkExampleStack-test", "test-LambdaStack.template.json"),
	} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, f)
	}

	art := asm.Manifest.Artifacts["CdkExampleStack"]
	assert.Equal(t, ArtifactTypeStack, art.Type)
	assert.Equal(t, "aws://500737756044/us-east-1", art.Environment)
	nested := asm.Manifest.Artifacts["assembly-CdkExampleStack-test"]
	assert.Equal(t, ArtifactTypeNestedAssembly, nested.Type)
	assert.Equal(t, "CdkExampleStack/test", nested.Properties.DisplayName)

	path, ok := asm.TemplatePath("test-LambdaStack")
	require.True(t, ok)
	assert.Equal(t, "assembly-CdkExampleStack-test/test-LambdaStack.template.json", path)

	loaded, err := ReadAssembly(dir)
	require.NoError(t, err)
	stack, ok := loaded.FindStack("test-LambdaStack")
	require.True(t, ok)
	assert.Equal(t, "CdkExampleStack/test/LambdaStack", stack.Path)
	assert.Equal(t, testEnv, stack.Environment)
	assert.Equal(t, "cdkexamplebucket", stack.Template.Resources["S3Bucket"].Properties["BucketName"])
	require.NotNil(t, loaded.Tree)
	assert.Equal(t, TreeVersion, loaded.Tree.Version)
}

func TestSynth_InMemory(t *testing.T) {
	app := NewApp(AppProps{Outdir: "-"})
	NewCfnResource(NewStack(app, "Stack", StackProps{}), "Bucket", &s3.Bucket{})

	asm, err := app.Synth()
	require.NoError(t, err)
	assert.Empty(t, asm.Directory)
	require.NotNil(t, asm.Tree)
	assert.Equal(t, "App", asm.Tree.Tree.ID)
	bucket := asm.Tree.Tree.Children["Stack"].Children["Bucket"]
	assert.Equal(t, "CfnResource", bucket.Kind)
	assert.Equal(t, "AWS::S3::Bucket", bucket.Attributes["aws:cdk:cloudformation:type"])
}

func TestParseEnvironment(t *testing.T) {
	env, err := ParseEnvironment("aws://500737756044/us-east-1")
	require.NoError(t, err)
	assert.Equal(t, testEnv, env)

	env, err = ParseEnvironment("aws://unknown-account/unknown-region")
	require.NoError(t, err)
	assert.True(t, env.IsZero())

	for _, bad := range []string{"", "500737756044/us-east-1", "aws://only"} {
		_, err := ParseEnvironment(bad)
		assert.Error(t, err, bad)
	}
}
