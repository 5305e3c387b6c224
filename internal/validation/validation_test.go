package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lex00/cfn-lint-go/pkg/lint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cdkexample "github.com/lex00/cdk-example-go"
	"github.com/lex00/cdk-example-go/construct"
	"github.com/lex00/cdk-example-go/stacks"
)

func TestCfnLintResult_TotalIssues(t *testing.T) {
	tests := []struct {
		name     string
		result   CfnLintResult
		expected int
	}{
		{
			name:     "empty result",
			result:   CfnLintResult{},
			expected: 0,
		},
		{
			name: "errors only",
			result: CfnLintResult{
				Errors: []string{"error1", "error2"},
			},
			expected: 2,
		},
		{
			name: "warnings only",
			result: CfnLintResult{
				Warnings: []string{"warning1"},
			},
			expected: 1,
		},
		{
			name: "mixed issues",
			result: CfnLintResult{
				Errors:        []string{"error1"},
				Warnings:      []string{"warning1", "warning2"},
				Informational: []string{"info1"},
			},
			expected: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.TotalIssues())
		})
	}
}

func TestFormatMatch(t *testing.T) {
	tests := []struct {
		name     string
		match    lint.Match
		expected string
	}{
		{
			name: "simple match",
			match: lint.Match{
				Rule:    lint.MatchRule{ID: "E1234"},
				Message: "Something is wrong",
			},
			expected: "E1234: Something is wrong",
		},
		{
			name: "match with path",
			match: lint.Match{
				Rule:    lint.MatchRule{ID: "W5678"},
				Message: "Warning message",
				Location: lint.MatchLocation{
					Path: []any{"Resources", "MyBucket", "Properties"},
				},
			},
			expected: "W5678: Warning message (at Resources/MyBucket/Properties)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatMatch(tt.match)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRunCfnLint_FileNotFound(t *testing.T) {
	_, err := RunCfnLint("/nonexistent/template.json")
	assert.ErrorContains(t, err, "template file not found")
}

func TestRunCfnLint_ValidTemplate(t *testing.T) {
	templatePath := filepath.Join(t.TempDir(), "template.yaml")
	require.NoError(t, os.WriteFile(templatePath, []byte(`AWSTemplateFormatVersion: '2010-09-09'
Description: Test template
Resources:
  MyBucket:
    Type: AWS::S3::Bucket
    Properties:
      BucketName: test-bucket
`), 0644))

	result, err := RunCfnLint(templatePath)
	require.NoError(t, err)
	assert.Equal(t, templatePath, result.Template)
	assert.True(t, result.Passed, "errors: %v", result.Errors)
}

func synthesize(t *testing.T, outdir string) *construct.Assembly {
	t.Helper()
	env := cdkexample.Environment{Account: "500737756044", Region: "us-east-1"}
	app := construct.NewApp(construct.AppProps{Outdir: outdir})
	stacks.NewPipelineStack(app, "CdkExampleStack", stacks.PipelineStackProps{
		StackProps: construct.StackProps{Env: env},
		StageEnv:   env,
	})
	asm, err := app.Synth()
	require.NoError(t, err)
	return asm
}

func TestValidateAssembly_Structural(t *testing.T) {
	report, err := ValidateAssembly(synthesize(t, "-"), Options{SkipLint: true})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Stacks)
	assert.Greater(t, report.Resources, 10)
	assert.Empty(t, report.Issues)
	assert.True(t, report.Passed())
	assert.Empty(t, report.Lint)
}

func TestValidateAssembly_Lint(t *testing.T) {
	asm := synthesize(t, filepath.Join(t.TempDir(), "cdk.out"))

	report, err := ValidateAssembly(asm, Options{})
	require.NoError(t, err)
	require.Len(t, report.Lint, 2)
	for _, res := range report.Lint {
		_, statErr := os.Stat(res.Template)
		assert.NoError(t, statErr)
	}
}

func TestValidateAssembly_InMemoryLint(t *testing.T) {
	report, err := ValidateAssembly(synthesize(t, "-"), Options{})
	require.NoError(t, err)
	require.Len(t, report.Lint, 2)
	for _, res := range report.Lint {
		_, statErr := os.Stat(res.Template)
		assert.True(t, os.IsNotExist(statErr), "temporary templates are removed")
	}
}

func notificationTemplate() *cdkexample.Template {
	return &cdkexample.Template{Resources: map[string]cdkexample.ResourceDef{
		"Fn": {Type: "AWS::Lambda::Function"},
		"Bucket": {
			Type: "AWS::S3::Bucket",
			Properties: map[string]any{
				"BucketName": "cdkexamplebucket",
				"NotificationConfiguration": map[string]any{
					"LambdaConfigurations": []any{map[string]any{
						"Event":    "s3:ObjectCreated:*",
						"Function": map[string]any{"Fn::GetAtt": []any{"Fn", "Arn"}},
					}},
				},
			},
			DependsOn: []string{"Grant"},
		},
		"Grant": {
			Type: "AWS::Lambda::Permission",
			Properties: map[string]any{
				"Action":       "lambda:InvokeFunction",
				"FunctionName": map[string]any{"Ref": "Fn"},
				"Principal":    "s3.amazonaws.com",
				"SourceArn":    map[string]any{"Fn::Sub": "arn:${AWS::Partition}:s3:::cdkexamplebucket"},
			},
		},
	}}
}

func TestCheckTemplate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*cdkexample.Template)
		want   []string
	}{
		{
			name:   "consistent",
			mutate: func(*cdkexample.Template) {},
		},
		{
			name: "grant for another bucket",
			mutate: func(tmpl *cdkexample.Template) {
				tmpl.Resources["Grant"].Properties["SourceArn"] = map[string]any{"Fn::Sub": "arn:${AWS::Partition}:s3:::elsewhere"}
			},
			want: []string{
				"T/Bucket: [notifications] no invoke permission lets s3.amazonaws.com call Fn",
				`T/Grant: [grants] SourceArn {"Fn::Sub":"arn:${AWS::Partition}:s3:::elsewhere"} matches no bucket of this stack`,
			},
		},
		{
			name: "bucket does not wait for grant",
			mutate: func(tmpl *cdkexample.Template) {
				b := tmpl.Resources["Bucket"]
				b.DependsOn = nil
				tmpl.Resources["Bucket"] = b
			},
			want: []string{"T/Bucket: [notifications] bucket does not depend on permission Grant; notification setup may race the grant"},
		},
		{
			name: "dangling reference",
			mutate: func(tmpl *cdkexample.Template) {
				tmpl.Resources["Grant"].Properties["FunctionName"] = map[string]any{"Ref": "Missing"}
			},
			want: []string{
				"T/Bucket: [notifications] no invoke permission lets s3.amazonaws.com call Fn",
				`T/Grant: [references] references undefined "Missing"`,
			},
		},
		{
			name: "target is not a function",
			mutate: func(tmpl *cdkexample.Template) {
				tmpl.Resources["Fn"] = cdkexample.ResourceDef{Type: "AWS::SQS::Queue"}
			},
			want: []string{`T/Bucket: [notifications] notification target {"Fn::GetAtt":["Fn","Arn"]} is not a function of this stack`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := notificationTemplate()
			tt.mutate(tmpl)

			var got []string
			for _, issue := range CheckTemplate("T", tmpl) {
				got = append(got, issue.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckTemplate_GetAttSourceArn(t *testing.T) {
	tmpl := notificationTemplate()
	tmpl.Resources["Grant"].Properties["SourceArn"] = map[string]any{"Fn::GetAtt": []any{"Bucket", "Arn"}}
	tmpl.Resources["Grant"].Properties["FunctionName"] = map[string]any{"Fn::GetAtt": []any{"Fn", "Arn"}}
	assert.Empty(t, CheckTemplate("T", tmpl))
}

func TestValidateManifest(t *testing.T) {
	valid := construct.Manifest{
		Version: construct.ManifestVersion,
		Artifacts: map[string]construct.Artifact{
			"CdkExampleStack": {
				Type:        construct.ArtifactTypeStack,
				Environment: "aws://500737756044/us-east-1",
				Properties:  construct.ArtifactProperties{TemplateFile: "CdkExampleStack.template.json", StackName: "CdkExampleStack"},
			},
			"Tree": {Type: construct.ArtifactTypeTree, Properties: construct.ArtifactProperties{File: construct.TreeFile}},
		},
	}
	assert.NoError(t, ValidateManifest(valid))

	tests := map[string]func(m *construct.Manifest){
		"bad version": func(m *construct.Manifest) { m.Version = "latest" },
		"unknown type": func(m *construct.Manifest) {
			m.Artifacts["X"] = construct.Artifact{Type: "aws:ecr:image"}
		},
		"stack without environment": func(m *construct.Manifest) {
			a := m.Artifacts["CdkExampleStack"]
			a.Environment = ""
			m.Artifacts["CdkExampleStack"] = a
		},
		"invalid stack name": func(m *construct.Manifest) {
			a := m.Artifacts["CdkExampleStack"]
			a.Properties.StackName = "has spaces"
			m.Artifacts["CdkExampleStack"] = a
		},
		"nested assembly without directory": func(m *construct.Manifest) {
			m.Artifacts["assembly-x"] = construct.Artifact{Type: construct.ArtifactTypeNestedAssembly}
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			m := construct.Manifest{Version: valid.Version, Artifacts: map[string]construct.Artifact{}}
			for k, v := range valid.Artifacts {
				m.Artifacts[k] = v
			}
			mutate(&m)
			assert.Error(t, ValidateManifest(m))
		})
	}
}

func TestIssue_String(t *testing.T) {
	assert.Equal(t, "[manifest] bad", Issue{Check: "manifest", Message: "bad"}.String())
	assert.Equal(t, "S: [grants] x", Issue{Stack: "S", Check: "grants", Message: "x"}.String())
}

func TestCheckProperties(t *testing.T) {
	tests := []struct {
		name     string
		resource cdkexample.ResourceDef
		want     []string
	}{
		{
			name: "valid function",
			resource: cdkexample.ResourceDef{Type: "AWS::Lambda::Function", Properties: map[string]any{
				"Code":    map[string]any{"ZipFile": "exports.handler = async () => {}"},
				"Role":    map[string]any{"Fn::GetAtt": []any{"Role", "Arn"}},
				"Runtime": "nodejs18.x",
			}},
		},
		{
			name:     "missing required",
			resource: cdkexample.ResourceDef{Type: "AWS::Lambda::Permission", Properties: map[string]any{"Action": "lambda:InvokeFunction"}},
			want:     []string{"missing required property: FunctionName", "missing required property: Principal"},
		},
		{
			name: "disallowed runtime",
			resource: cdkexample.ResourceDef{Type: "AWS::Lambda::Function", Properties: map[string]any{
				"Code": map[string]any{}, "Role": "arn", "Runtime": "nodejs8.10",
			}},
			want: []string{`Runtime: value "nodejs8.10" not in allowed values`},
		},
		{
			name:     "wrong type",
			resource: cdkexample.ResourceDef{Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": 42.0}},
			want:     []string{"BucketName: expected type String"},
		},
		{
			name:     "intrinsic accepted",
			resource: cdkexample.ResourceDef{Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": map[string]any{"Ref": "Name"}}},
		},
		{
			name:     "invalid type format",
			resource: cdkexample.ResourceDef{Type: "S3Bucket"},
			want:     []string{"invalid resource type format: S3Bucket"},
		},
		{
			name:     "unknown type skipped",
			resource: cdkexample.ResourceDef{Type: "AWS::SQS::Queue", Properties: map[string]any{"Anything": 1}},
		},
		{
			name:     "custom type",
			resource: cdkexample.ResourceDef{Type: "Custom::Thing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := &cdkexample.Template{Resources: map[string]cdkexample.ResourceDef{"R": tt.resource}}
			issues := CheckProperties("S", tmpl)
			require.Len(t, issues, len(tt.want), "%v", issues)
			for i, want := range tt.want {
				assert.Contains(t, issues[i].Message, want)
				assert.Equal(t, SeverityError, issues[i].Severity)
				assert.Equal(t, "properties", issues[i].Check)
			}
		})
	}
}
