// Package codebuild contains CloudFormation resource types for AWS CodeBuild.
package codebuild

// Project represents AWS::CodeBuild::Project.
type Project struct {
	Name        any                 `json:"Name,omitempty"`
	Description string              `json:"Description,omitempty"`
	ServiceRole any                 `json:"ServiceRole"`
	Source      Project_Source      `json:"Source"`
	Artifacts   Project_Artifacts   `json:"Artifacts"`
	Environment Project_Environment `json:"Environment"`
}

// ResourceType returns the CloudFormation resource type.
func (r Project) ResourceType() string {
	return "AWS::CodeBuild::Project"
}

// Project_Source describes where the build input comes from.
type Project_Source struct {
	Type      string `json:"Type"`
	BuildSpec string `json:"BuildSpec,omitempty"`
}

// Project_Artifacts describes the build output.
type Project_Artifacts struct {
	Type string `json:"Type"`
}

// Project_Environment is the build container configuration.
type Project_Environment struct {
	Type                     string                        `json:"Type"`
	ComputeType              string                        `json:"ComputeType"`
	Image                    string                        `json:"Image"`
	PrivilegedMode           bool                          `json:"PrivilegedMode,omitempty"`
	ImagePullCredentialsType string                        `json:"ImagePullCredentialsType,omitempty"`
	EnvironmentVariables     []Project_EnvironmentVariable `json:"EnvironmentVariables,omitempty"`
}

// Project_EnvironmentVariable is a plaintext build environment variable.
type Project_EnvironmentVariable struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
	Type  string `json:"Type,omitempty"`
}
