package construct

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	cdkexample "github.com/lex00/cdk-example-go"
	"github.com/lex00/cdk-example-go/internal/template"
)

// Cloud assembly manifest constants.
const (
	ManifestFile    = "manifest.json"
	TreeFile        = "tree.json"
	ManifestVersion = "36.0.0"

	ArtifactTypeStack          = "aws:cloudformation:stack"
	ArtifactTypeNestedAssembly = "cdk:cloud-assembly"
	ArtifactTypeTree           = "cdk:tree"
)

// ErrDuplicateStackName is returned when two stacks of one assembly share a name.
var ErrDuplicateStackName = errors.New("duplicate stack name")

// Manifest is the manifest.json of a cloud assembly.
type Manifest struct {
	Version   string              `json:"version"`
	Artifacts map[string]Artifact `json:"artifacts,omitempty"`
}

// Artifact is one entry of a manifest.
type Artifact struct {
	Type         string             `json:"type"`
	Environment  string             `json:"environment,omitempty"`
	Properties   ArtifactProperties `json:"properties"`
	DisplayName  string             `json:"displayName,omitempty"`
	Dependencies []string           `json:"dependencies,omitempty"`
}

// ArtifactProperties holds the type-specific fields of an artifact.
type ArtifactProperties struct {
	TemplateFile  string `json:"templateFile,omitempty"`
	StackName     string `json:"stackName,omitempty"`
	DirectoryName string `json:"directoryName,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
	File          string `json:"file,omitempty"`
}

// StackArtifact is a synthesized stack.
type StackArtifact struct {
	ID           string
	Path         string
	StackName    string
	Environment  cdkexample.Environment
	TemplateFile string
	Template     *cdkexample.Template
}

// Assembly is a synthesized cloud assembly. Stages produce nested assemblies.
type Assembly struct {
	// Directory is where the assembly is (or will be) written; empty in memory.
	Directory string
	// DirectoryName is the nested assembly directory relative to its parent.
	DirectoryName string
	// DisplayName is the construct path of the stage, empty for the app.
	DisplayName string

	Manifest Manifest
	Stacks   []*StackArtifact
	Nested   []*Assembly
	Tree     *TreeDocument
}

// AllStacks returns the stacks of this assembly followed by those of nested
// assemblies, depth first.
func (a *Assembly) AllStacks() []*StackArtifact {
	out := append([]*StackArtifact(nil), a.Stacks...)
	for _, n := range a.Nested {
		out = append(out, n.AllStacks()...)
	}
	return out
}

// FindStack looks a stack up by stack name or construct path.
func (a *Assembly) FindStack(name string) (*StackArtifact, bool) {
	for _, s := range a.AllStacks() {
		if s.StackName == name || s.Path == name {
			return s, true
		}
	}
	return nil, false
}

// TemplatePath returns the path of a stack template relative to the root
// assembly directory.
func (a *Assembly) TemplatePath(stackName string) (string, bool) {
	for _, s := range a.Stacks {
		if s.StackName == stackName {
			return s.TemplateFile, true
		}
	}
	for _, n := range a.Nested {
		if p, ok := n.TemplatePath(stackName); ok {
			return n.DirectoryName + "/" + p, true
		}
	}
	return "", false
}

func synthesizeStage(stage *Stage, dir string) (*Assembly, []error) {
	asm := &Assembly{
		Directory:     dir,
		DirectoryName: stage.AssemblyDirectory(),
		DisplayName:   stage.node.Path(),
		Manifest: Manifest{
			Version:   ManifestVersion,
			Artifacts: make(map[string]Artifact),
		},
	}

	var errs []error
	names := make(map[string]string)
	for _, st := range stage.Stacks() {
		path := st.node.Path()
		if prev, dup := names[st.stackName]; dup {
			errs = append(errs, fmt.Errorf("%w: %s used by %s and %s", ErrDuplicateStackName, st.stackName, prev, path))
			continue
		}
		names[st.stackName] = path

		tmpl, err := st.Template()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}

		artifact := &StackArtifact{
			ID:           st.stackName,
			Path:         path,
			StackName:    st.stackName,
			Environment:  st.env,
			TemplateFile: st.TemplateFile(),
			Template:     tmpl,
		}
		asm.Stacks = append(asm.Stacks, artifact)
		asm.Manifest.Artifacts[artifact.ID] = Artifact{
			Type:        ArtifactTypeStack,
			Environment: st.env.String(),
			Properties: ArtifactProperties{
				TemplateFile: artifact.TemplateFile,
				StackName:    artifact.StackName,
			},
			DisplayName: path,
		}
	}

	for _, nested := range stage.Stages() {
		sub := ""
		if dir != "" {
			sub = filepath.Join(dir, nested.AssemblyDirectory())
		}
		child, childErrs := synthesizeStage(nested, sub)
		errs = append(errs, childErrs...)
		asm.Nested = append(asm.Nested, child)
		asm.Manifest.Artifacts[child.DirectoryName] = Artifact{
			Type: ArtifactTypeNestedAssembly,
			Properties: ArtifactProperties{
				DirectoryName: child.DirectoryName,
				DisplayName:   child.DisplayName,
			},
			DisplayName: child.DisplayName,
		}
	}

	if stage.node.scope == nil {
		asm.Manifest.Artifacts["Tree"] = Artifact{
			Type:       ArtifactTypeTree,
			Properties: ArtifactProperties{File: TreeFile},
		}
	}
	return asm, errs
}

// Write writes the assembly and its nested assemblies to Directory.
func (a *Assembly) Write() error {
	if a.Directory == "" {
		return errors.New("assembly has no directory")
	}
	if err := os.MkdirAll(a.Directory, 0755); err != nil {
		return err
	}

	for _, s := range a.Stacks {
		data, err := template.ToJSON(s.Template)
		if err != nil {
			return fmt.Errorf("serializing %s: %w", s.StackName, err)
		}
		if err := os.WriteFile(filepath.Join(a.Directory, s.TemplateFile), append(data, '\n'), 0644); err != nil {
			return err
		}
	}

	if err := writeJSON(filepath.Join(a.Directory, ManifestFile), a.Manifest); err != nil {
		return err
	}
	if a.Tree != nil {
		if err := writeJSON(filepath.Join(a.Directory, TreeFile), a.Tree); err != nil {
			return err
		}
	}

	for _, n := range a.Nested {
		if n.Directory == "" {
			n.Directory = filepath.Join(a.Directory, n.DirectoryName)
		}
		if err := n.Write(); err != nil {
			return err
		}
	}
	return nil
}

// ReadAssembly loads a cloud assembly previously written by Synth.
func ReadAssembly(dir string) (*Assembly, error) {
	var manifest Manifest
	if err := readJSON(filepath.Join(dir, ManifestFile), &manifest); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	asm := &Assembly{Directory: dir, Manifest: manifest}

	ids := make([]string, 0, len(manifest.Artifacts))
	for id := range manifest.Artifacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		art := manifest.Artifacts[id]
		switch art.Type {
		case ArtifactTypeStack:
			var tmpl cdkexample.Template
			if err := readJSON(filepath.Join(dir, art.Properties.TemplateFile), &tmpl); err != nil {
				return nil, fmt.Errorf("reading template of %s: %w", id, err)
			}
			env, err := ParseEnvironment(art.Environment)
			if err != nil {
				return nil, fmt.Errorf("artifact %s: %w", id, err)
			}
			asm.Stacks = append(asm.Stacks, &StackArtifact{
				ID:           id,
				Path:         art.DisplayName,
				StackName:    art.Properties.StackName,
				Environment:  env,
				TemplateFile: art.Properties.TemplateFile,
				Template:     &tmpl,
			})
		case ArtifactTypeNestedAssembly:
			nested, err := ReadAssembly(filepath.Join(dir, art.Properties.DirectoryName))
			if err != nil {
				return nil, err
			}
			nested.DirectoryName = art.Properties.DirectoryName
			nested.DisplayName = art.Properties.DisplayName
			asm.Nested = append(asm.Nested, nested)
		case ArtifactTypeTree:
			var tree TreeDocument
			if err := readJSON(filepath.Join(dir, art.Properties.File), &tree); err != nil {
				return nil, fmt.Errorf("reading tree: %w", err)
			}
			asm.Tree = &tree
		}
	}
	return asm, nil
}

// ParseEnvironment parses an "aws://account/region" environment string.
func ParseEnvironment(s string) (cdkexample.Environment, error) {
	rest, ok := strings.CutPrefix(s, "aws://")
	if !ok {
		return cdkexample.Environment{}, fmt.Errorf("invalid environment %q", s)
	}
	account, region, ok := strings.Cut(rest, "/")
	if !ok || account == "" || region == "" {
		return cdkexample.Environment{}, fmt.Errorf("invalid environment %q", s)
	}
	env := cdkexample.Environment{Account: account, Region: region}
	if env.Account == "unknown-account" {
		env.Account = ""
	}
	if env.Region == "unknown-region" {
		env.Region = ""
	}
	return env, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
