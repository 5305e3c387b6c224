package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	cdkexample "github.com/lex00/cdk-example-go"
	"github.com/lex00/cdk-example-go/construct"
	"github.com/lex00/cdk-example-go/internal/app"
	"github.com/lex00/cdk-example-go/internal/template"
)

type synthOptions struct {
	outdir      string
	format      string
	stdoutStack string
	json        bool
}

func newSynthCmd() *cobra.Command {
	var opts synthOptions

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize the cloud assembly",
		Long: `Synth builds the construct tree and writes the cloud assembly: one manifest
and template per stack, plus a nested assembly per pipeline stage.

Examples:
    cdk-example synth
    cdk-example synth --output build/cdk.out
    cdk-example synth --stdout test-LambdaStack --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynth(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outdir, "output", "o", "", "Cloud assembly directory (default from config, cdk.out)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "Template format for --stdout: json or yaml")
	cmd.Flags().StringVar(&opts.stdoutStack, "stdout", "", "Print the template of this stack instead of writing the assembly")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the result as JSON")

	return cmd
}

func runSynth(stdout, stderr io.Writer, opts synthOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.outdir != "" {
		cfg.Outdir = opts.outdir
	}
	if opts.stdoutStack != "" {
		cfg.Outdir = "-"
	}

	asm, err := app.Synth(cfg)
	if err != nil {
		result := cdkexample.SynthResult{Success: false, Errors: errorStrings(err)}
		if opts.json {
			if err := printJSON(stdout, result); err != nil {
				return err
			}
		} else {
			for _, e := range result.Errors {
				fmt.Fprintln(stderr, e)
			}
		}
		return fmt.Errorf("synthesis failed")
	}

	if opts.stdoutStack != "" {
		return printTemplate(stdout, asm, opts.stdoutStack, opts.format)
	}

	result := cdkexample.SynthResult{Success: true, Directory: asm.Directory}
	for _, st := range asm.AllStacks() {
		result.Stacks = append(result.Stacks, st.StackName)
	}

	if opts.json {
		return printJSON(stdout, result)
	}
	fmt.Fprintf(stdout, "Synthesized %d stacks to %s\n", len(result.Stacks), result.Directory)
	for _, name := range result.Stacks {
		path, _ := asm.TemplatePath(name)
		fmt.Fprintf(stdout, "  %s: %s\n", name, path)
	}
	return nil
}

func printTemplate(w io.Writer, asm *construct.Assembly, stackName, format string) error {
	st, ok := asm.FindStack(stackName)
	if !ok {
		return fmt.Errorf("stack %q not found in assembly", stackName)
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case "json":
		data, err = template.ToJSON(st.Template)
	case "yaml":
		data, err = template.ToYAML(st.Template)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// errorStrings flattens errors joined with errors.Join.
func errorStrings(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, errorStrings(e)...)
		}
		return out
	}
	return []string{err.Error()}
}
