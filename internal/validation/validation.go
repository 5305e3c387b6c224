// Package validation checks a synthesized cloud assembly before deployment.
//
// Every stack template gets structural checks (references, notification
// grants), offline property checks for the resource types the app declares,
// and cfn-lint-go. Every manifest is checked against the cloud assembly
// JSON schema.
package validation

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lex00/cdk-example-go/construct"
	"github.com/lex00/cdk-example-go/internal/template"
)

// Severity of an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Stack    string   `json:"stack,omitempty"`
	Resource string   `json:"resource,omitempty"`
	Check    string   `json:"check"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	where := i.Stack
	if i.Resource != "" {
		where += "/" + i.Resource
	}
	if where == "" {
		return fmt.Sprintf("[%s] %s", i.Check, i.Message)
	}
	return fmt.Sprintf("%s: [%s] %s", where, i.Check, i.Message)
}

// Options configures ValidateAssembly.
type Options struct {
	// SkipLint disables cfn-lint-go.
	SkipLint bool
}

// Report is the result of ValidateAssembly.
type Report struct {
	Stacks    int
	Resources int
	Issues    []Issue
	Lint      []*CfnLintResult
}

// Errors returns the error-level issues.
func (r *Report) Errors() []Issue { return r.filter(SeverityError) }

// Warnings returns the warning-level issues.
func (r *Report) Warnings() []Issue { return r.filter(SeverityWarning) }

// Passed reports whether no error-level issue was found.
func (r *Report) Passed() bool { return len(r.Errors()) == 0 }

func (r *Report) filter(sev Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

// ValidateAssembly runs all checks over asm. Templates of an in-memory
// assembly are written to a temporary directory for linting.
func ValidateAssembly(asm *construct.Assembly, opts Options) (*Report, error) {
	report := &Report{}

	stacks := asm.AllStacks()
	report.Stacks = len(stacks)
	for _, st := range stacks {
		report.Resources += len(st.Template.Resources)
		report.Issues = append(report.Issues, CheckTemplate(st.StackName, st.Template)...)
		report.Issues = append(report.Issues, CheckProperties(st.StackName, st.Template)...)
	}

	report.Issues = append(report.Issues, ValidateManifests(asm)...)

	if opts.SkipLint {
		return report, nil
	}

	paths, cleanup, err := templateFiles(asm)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	for _, st := range stacks {
		res, err := RunCfnLint(paths[st.StackName])
		if err != nil {
			return nil, err
		}
		report.Lint = append(report.Lint, res)
		for _, msg := range res.Errors {
			report.Issues = append(report.Issues, Issue{Severity: SeverityError, Stack: st.StackName, Check: "cfn-lint", Message: msg})
		}
		for _, msg := range res.Warnings {
			report.Issues = append(report.Issues, Issue{Severity: SeverityWarning, Stack: st.StackName, Check: "cfn-lint", Message: msg})
		}
	}
	return report, nil
}

// templateFiles maps stack names to template files on disk.
func templateFiles(asm *construct.Assembly) (map[string]string, func(), error) {
	paths := make(map[string]string)
	if asm.Directory != "" {
		for _, st := range asm.AllStacks() {
			rel, ok := asm.TemplatePath(st.StackName)
			if !ok {
				return nil, nil, fmt.Errorf("no template path for %s", st.StackName)
			}
			paths[st.StackName] = filepath.Join(asm.Directory, rel)
		}
		return paths, func() {}, nil
	}

	dir, err := os.MkdirTemp("", "cdk-example-validate-")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	for _, st := range asm.AllStacks() {
		data, err := template.ToJSON(st.Template)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("serializing %s: %w", st.StackName, err)
		}
		path := filepath.Join(dir, st.TemplateFile)
		if err := os.WriteFile(path, data, 0644); err != nil {
			cleanup()
			return nil, nil, err
		}
		paths[st.StackName] = path
	}
	return paths, cleanup, nil
}
