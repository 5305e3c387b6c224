package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	cdkexample "github.com/lex00/cdk-example-go"
)

func newListCmd() *cobra.Command {
	var (
		outputFormat string
		assemblyDir  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the stacks of the app",
		Long: `List synthesizes the app in memory and shows every stack: the pipeline
stack first, then the stacks of each pipeline stage.

Examples:
    cdk-example list
    cdk-example list --format json
    cdk-example list --assembly cdk.out`,
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.OutOrStdout(), assemblyDir, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().StringVar(&assemblyDir, "assembly", "", "Read an existing cloud assembly instead of synthesizing")

	return cmd
}

func runList(w io.Writer, assemblyDir, format string) error {
	asm, err := loadAssembly(assemblyDir)
	if err != nil {
		return err
	}

	result := cdkexample.ListResult{Stacks: []cdkexample.ListStack{}}
	for _, st := range asm.AllStacks() {
		result.Stacks = append(result.Stacks, cdkexample.ListStack{
			Path:        st.Path,
			StackName:   st.StackName,
			Environment: st.Environment.String(),
			Resources:   len(st.Template.Resources),
		})
	}

	switch format {
	case "json":
		return printJSON(w, result)
	case "text":
		if len(result.Stacks) == 0 {
			fmt.Fprintln(w, "No stacks found.")
			return nil
		}
		fmt.Fprintf(w, "Stacks (%d):\n\n", len(result.Stacks))
		for _, st := range result.Stacks {
			fmt.Fprintf(w, "  %s (%s) %s: %d resources\n", st.StackName, st.Path, st.Environment, st.Resources)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}
