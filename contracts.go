// Package cdkexample provides the shared types of the cdk-example deployment
// topology: CloudFormation template shapes, cross-resource references and the
// JSON results printed by the cdk-example CLI.
//
// The topology itself is declared as a construct tree:
//
//	app := construct.NewApp(construct.AppProps{Outdir: "cdk.out"})
//	stacks.NewPipelineStack(app, "CdkExampleStack", stacks.PipelineStackProps{...})
//	assembly, err := app.Synth()
//
// Synthesis turns every stack into a CloudFormation template and writes a
// cloud assembly directory.
package cdkexample

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Resource represents a CloudFormation resource.
// All resource property types (s3.Bucket, lambda.Function, etc.) implement this interface.
type Resource interface {
	// ResourceType returns the CloudFormation type (e.g., "AWS::S3::Bucket")
	ResourceType() string
}

const (
	tokenPrefix = "${Token["
	tokenSuffix = "]}"
	tokenSep    = "#"
)

// Token encodes a reference to a resource owned by a specific stack.
//
// Tokens survive JSON marshaling as plain strings and are resolved back into
// logical IDs when the owning stack is synthesized. A token that reaches a
// different stack is reported as a cross-stack reference.
func Token(stackPath, logicalID string) string {
	return tokenPrefix + stackPath + tokenSep + logicalID + tokenSuffix
}

// ParseToken decodes a string produced by Token.
func ParseToken(s string) (stackPath, logicalID string, ok bool) {
	if !strings.HasPrefix(s, tokenPrefix) || !strings.HasSuffix(s, tokenSuffix) {
		return "", "", false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(s, tokenPrefix), tokenSuffix)
	idx := strings.LastIndex(body, tokenSep)
	if idx < 0 {
		return "", "", false
	}
	return body[:idx], body[idx+1:], true
}

// AttrRef represents a GetAtt reference to a resource attribute.
//
// Example:
//
//	role := iam.NewRole(stack, "Role", ...)
//	fn := lambda.Function{Role: role.GetAtt("Arn")}
//
// When serialized to CloudFormation JSON, AttrRef becomes:
//
//	{"Fn::GetAtt": ["<token>", "Arn"]}
//
// and the token is rewritten to the logical ID during synthesis.
type AttrRef struct {
	// Stack is the construct path of the stack that owns the resource
	Stack string
	// Resource is the logical name of the referenced resource
	Resource string
	// Attribute is the attribute name (e.g., "Arn", "DomainName")
	Attribute string
}

// MarshalJSON serializes AttrRef to CloudFormation GetAtt syntax.
func (a AttrRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]string{
		"Fn::GetAtt": {a.target(), a.Attribute},
	})
}

func (a AttrRef) target() string {
	if a.Stack == "" {
		return a.Resource
	}
	return Token(a.Stack, a.Resource)
}

// IsZero returns true if the AttrRef has not been populated.
func (a AttrRef) IsZero() bool {
	return a.Resource == "" && a.Attribute == ""
}

// ResourceRef represents a Ref to a resource owned by a stack.
type ResourceRef struct {
	Stack    string
	Resource string
}

// MarshalJSON serializes ResourceRef to CloudFormation Ref syntax.
func (r ResourceRef) MarshalJSON() ([]byte, error) {
	target := r.Resource
	if r.Stack != "" {
		target = Token(r.Stack, r.Resource)
	}
	return json.Marshal(map[string]string{"Ref": target})
}

// IsZero returns true if the ResourceRef has not been populated.
func (r ResourceRef) IsZero() bool {
	return r.Resource == ""
}

// Environment is the account/region pair a stack or stage deploys to.
type Environment struct {
	Account string `json:"account" yaml:"account"`
	Region  string `json:"region" yaml:"region"`
}

// String renders the environment the way cloud assembly manifests do.
func (e Environment) String() string {
	account := e.Account
	if account == "" {
		account = "unknown-account"
	}
	region := e.Region
	if region == "" {
		region = "unknown-region"
	}
	return fmt.Sprintf("aws://%s/%s", account, region)
}

// IsZero returns true if neither account nor region is set.
func (e Environment) IsZero() bool {
	return e.Account == "" && e.Region == ""
}

// Template represents a CloudFormation template.
type Template struct {
	AWSTemplateFormatVersion string                 `json:"AWSTemplateFormatVersion" yaml:"AWSTemplateFormatVersion"`
	Description              string                 `json:"Description,omitempty" yaml:"Description,omitempty"`
	Parameters               map[string]Parameter   `json:"Parameters,omitempty" yaml:"Parameters,omitempty"`
	Resources                map[string]ResourceDef `json:"Resources" yaml:"Resources"`
	Outputs                  map[string]Output      `json:"Outputs,omitempty" yaml:"Outputs,omitempty"`
}

// ResourceDef is a single resource in the CloudFormation template.
type ResourceDef struct {
	Type                string         `json:"Type" yaml:"Type"`
	Properties          map[string]any `json:"Properties,omitempty" yaml:"Properties,omitempty"`
	DependsOn           []string       `json:"DependsOn,omitempty" yaml:"DependsOn,omitempty"`
	DeletionPolicy      string         `json:"DeletionPolicy,omitempty" yaml:"DeletionPolicy,omitempty"`
	UpdateReplacePolicy string         `json:"UpdateReplacePolicy,omitempty" yaml:"UpdateReplacePolicy,omitempty"`
	Metadata            map[string]any `json:"Metadata,omitempty" yaml:"Metadata,omitempty"`
}

// Parameter is a CloudFormation template parameter.
type Parameter struct {
	Type          string   `json:"Type" yaml:"Type"`
	Description   string   `json:"Description,omitempty" yaml:"Description,omitempty"`
	Default       any      `json:"Default,omitempty" yaml:"Default,omitempty"`
	AllowedValues []string `json:"AllowedValues,omitempty" yaml:"AllowedValues,omitempty"`
}

// Output is a CloudFormation template output.
type Output struct {
	Description string        `json:"Description,omitempty" yaml:"Description,omitempty"`
	Value       any           `json:"Value" yaml:"Value"`
	Export      *OutputExport `json:"Export,omitempty" yaml:"Export,omitempty"`
}

// OutputExport names a cross-stack export.
type OutputExport struct {
	Name string `json:"Name" yaml:"Name"`
}

// SynthResult is the JSON output from `cdk-example synth --format json`.
type SynthResult struct {
	Success   bool     `json:"success"`
	Directory string   `json:"directory,omitempty"`
	Stacks    []string `json:"stacks,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// ValidateResult is the JSON output from `cdk-example validate`.
type ValidateResult struct {
	Success   bool     `json:"success"`
	Stacks    int      `json:"stacks"`
	Resources int      `json:"resources"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// ListResult is the JSON output from `cdk-example list`.
type ListResult struct {
	Stacks []ListStack `json:"stacks"`
}

// ListStack is a single stack in the list output.
type ListStack struct {
	Path        string `json:"path"`
	StackName   string `json:"stackName"`
	Environment string `json:"environment"`
	Resources   int    `json:"resources"`
}

// DiffEntry describes one added, removed or modified resource.
type DiffEntry struct {
	Resource string   `json:"resource"`
	Type     string   `json:"type"`
	Changes  []string `json:"changes,omitempty"`
}

// TemplateDiff groups resource differences between two templates.
type TemplateDiff struct {
	Added    []DiffEntry `json:"added,omitempty"`
	Removed  []DiffEntry `json:"removed,omitempty"`
	Modified []DiffEntry `json:"modified,omitempty"`
}

// DiffSummary counts the entries of a TemplateDiff.
type DiffSummary struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
	Total    int `json:"total"`
}
