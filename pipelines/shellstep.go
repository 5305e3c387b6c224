package pipelines

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// BuildSpecVersion is the CodeBuild buildspec format version.
const BuildSpecVersion = "0.2"

// ShellStepProps configures a ShellStep.
type ShellStepProps struct {
	// Input is the source checked out into the build directory.
	Input *CodePipelineSource
	// InstallCommands run first, to set up tooling.
	InstallCommands []string
	// Commands run after the install phase, in order.
	Commands []string
	// PrimaryOutputDirectory is published as the step's output artifact.
	PrimaryOutputDirectory string
	// Env sets plaintext environment variables for all commands.
	Env map[string]string
}

// ShellStep runs shell commands in a CodeBuild project.
type ShellStep struct {
	ID                     string
	Input                  *CodePipelineSource
	InstallCommands        []string
	Commands               []string
	PrimaryOutputDirectory string
	Env                    map[string]string
}

// NewShellStep creates a shell step.
func NewShellStep(id string, props ShellStepProps) *ShellStep {
	return &ShellStep{
		ID:                     id,
		Input:                  props.Input,
		InstallCommands:        append([]string(nil), props.InstallCommands...),
		Commands:               append([]string(nil), props.Commands...),
		PrimaryOutputDirectory: props.PrimaryOutputDirectory,
		Env:                    props.Env,
	}
}

// AllCommands returns the install commands followed by the commands, which
// is the order CodeBuild runs them in.
func (s *ShellStep) AllCommands() []string {
	out := append([]string(nil), s.InstallCommands...)
	return append(out, s.Commands...)
}

type buildSpec struct {
	Version   string              `yaml:"version"`
	Env       *buildSpecEnv       `yaml:"env,omitempty"`
	Phases    buildSpecPhases     `yaml:"phases"`
	Artifacts *buildSpecArtifacts `yaml:"artifacts,omitempty"`
}

type buildSpecEnv struct {
	Variables map[string]string `yaml:"variables"`
}

type buildSpecPhases struct {
	Install *buildSpecPhase `yaml:"install,omitempty"`
	Build   *buildSpecPhase `yaml:"build,omitempty"`
}

type buildSpecPhase struct {
	Commands []string `yaml:"commands"`
}

type buildSpecArtifacts struct {
	BaseDirectory string   `yaml:"base-directory"`
	Files         []string `yaml:"files"`
}

// BuildSpec renders the step as a CodeBuild buildspec document.
func (s *ShellStep) BuildSpec() (string, error) {
	spec := buildSpec{Version: BuildSpecVersion}
	if len(s.Env) > 0 {
		spec.Env = &buildSpecEnv{Variables: s.Env}
	}
	if len(s.InstallCommands) > 0 {
		spec.Phases.Install = &buildSpecPhase{Commands: s.InstallCommands}
	}
	if len(s.Commands) > 0 {
		spec.Phases.Build = &buildSpecPhase{Commands: s.Commands}
	}
	if s.PrimaryOutputDirectory != "" {
		spec.Artifacts = &buildSpecArtifacts{
			BaseDirectory: s.PrimaryOutputDirectory,
			Files:         []string{"**/*"},
		}
	}

	data, err := yaml.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("rendering buildspec for %s: %w", s.ID, err)
	}
	return string(data), nil
}
