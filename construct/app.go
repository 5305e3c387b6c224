package construct

import (
	"errors"
	"fmt"

	cdkexample "github.com/lex00/cdk-example-go"
)

// DefaultOutdir is the cloud assembly directory used when AppProps.Outdir is empty.
const DefaultOutdir = "cdk.out"

// AppProps configures an App.
type AppProps struct {
	// Outdir is where Synth writes the cloud assembly. Use "-" to synthesize
	// in memory only.
	Outdir string
	// Context seeds values readable through Node.TryGetContext.
	Context map[string]any
	// DefaultEnv is inherited by stages and stacks that leave Env unset.
	DefaultEnv cdkexample.Environment
}

// App is the root of the construct tree.
type App struct {
	Stage
	outdir string
}

// NewApp creates an empty app.
func NewApp(props AppProps) *App {
	a := &App{outdir: props.Outdir}
	if a.outdir == "" {
		a.outdir = DefaultOutdir
	}
	a.node = newRootNode(a)
	a.env = props.DefaultEnv
	for k, v := range props.Context {
		a.node.SetContext(k, v)
	}
	return a
}

// Outdir returns the cloud assembly directory, or "" when synthesizing in memory.
func (a *App) Outdir() string {
	if a.outdir == "-" {
		return ""
	}
	return a.outdir
}

// Synth validates the construct tree, builds every stack template and writes
// the cloud assembly. All declaration and template errors are returned
// together.
func (a *App) Synth() (*Assembly, error) {
	errs := a.node.Validate()

	asm, synthErrs := synthesizeStage(&a.Stage, a.Outdir())
	errs = append(errs, synthErrs...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	asm.Tree = buildTree(a.node)
	if asm.Directory != "" {
		if err := asm.Write(); err != nil {
			return nil, fmt.Errorf("writing cloud assembly: %w", err)
		}
	}
	return asm, nil
}
