package intrinsics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRef_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Ref{LogicalName: "MyBucket"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Ref": "MyBucket"}`, string(data))
}

func TestJoin_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Join{Delimiter: ",", Values: []any{"a", "b", "c"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Fn::Join": [",", ["a", "b", "c"]]}`, string(data))
}

func TestPartitionARN(t *testing.T) {
	tests := []struct {
		name     string
		sub      Sub
		expected string
	}{
		{
			name:     "bucket",
			sub:      PartitionARN("s3", "", "", "cdkexamplebucket"),
			expected: `{"Fn::Sub": "arn:${AWS::Partition}:s3:::cdkexamplebucket"}`,
		},
		{
			name:     "codecommit repository",
			sub:      PartitionARN("codecommit", "us-east-1", "500737756044", "CDK-repo"),
			expected: `{"Fn::Sub": "arn:${AWS::Partition}:codecommit:us-east-1:500737756044:CDK-repo"}`,
		},
		{
			name:     "managed policy",
			sub:      ManagedPolicyARN("service-role/AWSLambdaBasicExecutionRole"),
			expected: `{"Fn::Sub": "arn:${AWS::Partition}:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.sub)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
		})
	}
}

func TestPseudoParameters(t *testing.T) {
	tests := []struct {
		name     string
		param    Ref
		expected string
	}{
		{"AWS_REGION", AWS_REGION, `{"Ref": "AWS::Region"}`},
		{"AWS_ACCOUNT_ID", AWS_ACCOUNT_ID, `{"Ref": "AWS::AccountId"}`},
		{"AWS_STACK_NAME", AWS_STACK_NAME, `{"Ref": "AWS::StackName"}`},
		{"AWS_PARTITION", AWS_PARTITION, `{"Ref": "AWS::Partition"}`},
		{"AWS_URL_SUFFIX", AWS_URL_SUFFIX, `{"Ref": "AWS::URLSuffix"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.param)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
			assert.True(t, IsPseudoParameter(tt.param.LogicalName))
		})
	}

	assert.True(t, IsPseudoParameter("AWS::NoValue"))
	assert.False(t, IsPseudoParameter("AWS::Unknown"))
	assert.False(t, IsPseudoParameter("LambdaFunction"))
}

func TestAssumeRoleStatement_MarshalJSON(t *testing.T) {
	doc := NewPolicyDocument(AssumeRoleStatement("lambda.amazonaws.com"))
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"Version": "2012-10-17",
		"Statement": [{
			"Effect": "Allow",
			"Principal": {"Service": "lambda.amazonaws.com"},
			"Action": "sts:AssumeRole"
		}]
	}`, string(data))
}

func TestPrincipals_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(ServicePrincipal{"codebuild.amazonaws.com", "codepipeline.amazonaws.com"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Service": ["codebuild.amazonaws.com", "codepipeline.amazonaws.com"]}`, string(data))

	data, err = json.Marshal(ServicePrincipal{"s3.amazonaws.com"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Service": "s3.amazonaws.com"}`, string(data))
}

func TestAllow(t *testing.T) {
	stmt := Allow([]string{"s3:GetObject*"}, "arn:aws:s3:::bucket/*")
	assert.Equal(t, "Allow", stmt.Effect)
	assert.Equal(t, []string{"s3:GetObject*"}, stmt.Action)
	assert.Equal(t, []any{"arn:aws:s3:::bucket/*"}, stmt.Resource)
}
