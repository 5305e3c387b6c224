package differ

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cdkexample "github.com/lex00/cdk-example-go"
	"github.com/lex00/cdk-example-go/construct"
)

func bucketTemplate(name string) *cdkexample.Template {
	return &cdkexample.Template{
		Resources: map[string]cdkexample.ResourceDef{
			"S3Bucket07682993": {Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": name}},
		},
	}
}

func TestCompare(t *testing.T) {
	before := &cdkexample.Template{
		Resources: map[string]cdkexample.ResourceDef{
			"Bucket1": {Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": "bucket1"}},
			"Bucket2": {Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": "bucket2"}},
		},
	}
	after := &cdkexample.Template{
		Resources: map[string]cdkexample.ResourceDef{
			"Bucket1": {Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": "bucket1-modified"}},
			"Bucket3": {Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": "bucket3"}},
		},
	}

	result := Compare(before, after, Options{})

	require.Len(t, result.Diff.Removed, 1)
	assert.Equal(t, "Bucket2", result.Diff.Removed[0].Resource)
	require.Len(t, result.Diff.Added, 1)
	assert.Equal(t, "Bucket3", result.Diff.Added[0].Resource)
	require.Len(t, result.Diff.Modified, 1)
	assert.Equal(t, "Bucket1", result.Diff.Modified[0].Resource)
	assert.Equal(t, []string{"BucketName modified"}, result.Diff.Modified[0].Changes)
	assert.Equal(t, cdkexample.DiffSummary{Added: 1, Removed: 1, Modified: 1, Total: 3}, result.Summary)
}

func TestCompare_Identical(t *testing.T) {
	tmpl := bucketTemplate("cdkexamplebucket")
	result := Compare(tmpl, tmpl, Options{})
	assert.True(t, result.Empty())
}

func TestCompare_NestedProperties(t *testing.T) {
	before := &cdkexample.Template{Resources: map[string]cdkexample.ResourceDef{
		"Bucket": {Type: "AWS::S3::Bucket", Properties: map[string]any{
			"NotificationConfiguration": map[string]any{
				"LambdaConfigurations": []any{map[string]any{"Event": "s3:ObjectCreated:*"}},
			},
			"Arn": map[string]any{"Fn::GetAtt": []any{"Fn", "Arn"}},
		}},
	}}
	after := &cdkexample.Template{Resources: map[string]cdkexample.ResourceDef{
		"Bucket": {Type: "AWS::S3::Bucket", Properties: map[string]any{
			"NotificationConfiguration": map[string]any{
				"LambdaConfigurations": []any{map[string]any{"Event": "s3:ObjectRemoved:*"}},
				"TopicConfigurations":  []any{},
			},
			"Arn": map[string]any{"Fn::GetAtt": []any{"Other", "Arn"}},
		}},
	}}

	result := Compare(before, after, Options{})
	require.Len(t, result.Diff.Modified, 1)
	assert.Equal(t, []string{
		"Arn modified",
		"NotificationConfiguration.LambdaConfigurations modified",
		"NotificationConfiguration.TopicConfigurations added",
	}, result.Diff.Modified[0].Changes)
}

func TestCompare_IgnoreOrder(t *testing.T) {
	before := &cdkexample.Template{Resources: map[string]cdkexample.ResourceDef{
		"Role": {Type: "AWS::IAM::Role", Properties: map[string]any{"ManagedPolicyArns": []any{"a", "b"}}},
	}}
	after := &cdkexample.Template{Resources: map[string]cdkexample.ResourceDef{
		"Role": {Type: "AWS::IAM::Role", Properties: map[string]any{"ManagedPolicyArns": []any{"b", "a"}}},
	}}

	assert.False(t, Compare(before, after, Options{}).Empty())
	assert.True(t, Compare(before, after, Options{IgnoreOrder: true}).Empty())
}

func TestCompare_DependsOnAndPolicies(t *testing.T) {
	before := &cdkexample.Template{Resources: map[string]cdkexample.ResourceDef{
		"Bucket": {Type: "AWS::S3::Bucket", DependsOn: []string{"A", "B"}, Metadata: map[string]any{"aws:cdk:path": "x"}},
	}}
	after := &cdkexample.Template{Resources: map[string]cdkexample.ResourceDef{
		"Bucket": {Type: "AWS::S3::Bucket", DependsOn: []string{"B"}, DeletionPolicy: "Retain", Metadata: map[string]any{"aws:cdk:path": "y"}},
	}}

	changes := Compare(before, after, Options{}).Diff.Modified[0].Changes
	assert.Contains(t, changes, "DependsOn changed")
	assert.Contains(t, changes, `DeletionPolicy changed: "" -> "Retain"`)
	assert.NotContains(t, changes, "Metadata changed")

	changes = Compare(before, after, Options{IncludeMetadata: true}).Diff.Modified[0].Changes
	assert.Contains(t, changes, "Metadata changed")
}

func TestCompare_Outputs(t *testing.T) {
	before := &cdkexample.Template{Outputs: map[string]cdkexample.Output{
		"BucketName": {Value: "cdkexamplebucket"},
		"Old":        {Value: "x"},
	}}
	after := &cdkexample.Template{Outputs: map[string]cdkexample.Output{
		"BucketName":  {Value: "renamed"},
		"FunctionArn": {Value: map[string]any{"Fn::GetAtt": []any{"Fn", "Arn"}}},
	}}

	result := Compare(before, after, Options{})
	assert.Equal(t, []string{"BucketName modified", "FunctionArn added", "Old removed"}, result.Outputs)
	assert.False(t, result.Empty())
}

func TestCompareFiles(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "a.template.json")
	yamlPath := filepath.Join(dir, "b.yaml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"Resources":{"S3Bucket07682993":{"Type":"AWS::S3::Bucket","Properties":{"BucketName":"cdkexamplebucket"}}}}`), 0644))
	require.NoError(t, os.WriteFile(yamlPath, []byte("Resources:\n  S3Bucket07682993:\n    Type: AWS::S3::Bucket\n    Properties:\n      BucketName: other\n"), 0644))

	result, err := CompareFiles(jsonPath, yamlPath, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Modified)

	_, err = CompareFiles(filepath.Join(dir, "missing.json"), yamlPath, Options{})
	assert.Error(t, err)
}

func assembly(stacks map[string]*cdkexample.Template) *construct.Assembly {
	asm := &construct.Assembly{}
	for name, tmpl := range stacks {
		asm.Stacks = append(asm.Stacks, &construct.StackArtifact{StackName: name, Template: tmpl})
	}
	return asm
}

func TestCompareAssemblies(t *testing.T) {
	before := assembly(map[string]*cdkexample.Template{
		"CdkExampleStack":  bucketTemplate("artifacts"),
		"test-LambdaStack": bucketTemplate("cdkexamplebucket"),
		"Gone":             bucketTemplate("gone"),
	})
	after := assembly(map[string]*cdkexample.Template{
		"CdkExampleStack":  bucketTemplate("artifacts"),
		"test-LambdaStack": bucketTemplate("renamed"),
		"New":              bucketTemplate("new"),
	})

	diffs := CompareAssemblies(before, after, Options{})
	require.Len(t, diffs, 4)

	status := map[string]StackStatus{}
	for _, d := range diffs {
		status[d.StackName] = d.Status
	}
	assert.Equal(t, map[string]StackStatus{
		"CdkExampleStack":  StackUnchanged,
		"Gone":             StackRemoved,
		"New":              StackAdded,
		"test-LambdaStack": StackModified,
	}, status)
	assert.True(t, HasChanges(diffs))
	assert.Equal(t, "CdkExampleStack", diffs[0].StackName)
}

func TestCompareAssemblies_NilBefore(t *testing.T) {
	diffs := CompareAssemblies(nil, assembly(map[string]*cdkexample.Template{"A": bucketTemplate("a")}), Options{})
	require.Len(t, diffs, 1)
	assert.Equal(t, StackAdded, diffs[0].Status)
	assert.Equal(t, 1, diffs[0].Result.Summary.Added)
}

func TestPrinter(t *testing.T) {
	diffs := CompareAssemblies(
		assembly(map[string]*cdkexample.Template{"test-LambdaStack": bucketTemplate("cdkexamplebucket")}),
		assembly(map[string]*cdkexample.Template{"test-LambdaStack": bucketTemplate("renamed")}),
		Options{},
	)

	var buf bytes.Buffer
	p := &Printer{NoColor: true}
	p.PrintStacks(&buf, diffs)

	assert.Equal(t, "Stack test-LambdaStack (modified)\n"+
		"[~] AWS::S3::Bucket S3Bucket07682993\n"+
		"    BucketName modified\n\n", buf.String())
}

func TestPrinter_NoDifferences(t *testing.T) {
	var buf bytes.Buffer
	(&Printer{NoColor: true}).PrintStacks(&buf, nil)
	assert.Equal(t, "There were no differences\n", buf.String())
}
