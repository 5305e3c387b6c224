package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lex00/cdk-example-go/internal/graph"
)

type graphOptions struct {
	format      string
	stacks      []string
	tree        bool
	cluster     bool
	assemblyDir string
}

func newGraphCmd() *cobra.Command {
	var opts graphOptions

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Generate a graph of resource dependencies or the construct tree",
		Long: `Generate a DOT or Mermaid graph of the synthesized app.

By default the graph shows resource dependencies (Ref, GetAtt, Sub and
DependsOn) of every stack. With --tree it shows the construct tree instead.

The output can be rendered with Graphviz:
    cdk-example graph | dot -Tpng -o deps.png

Examples:
    cdk-example graph --stack test-LambdaStack
    cdk-example graph --cluster
    cdk-example graph --tree -f mermaid`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "dot", "Output format: dot or mermaid")
	cmd.Flags().StringSliceVarP(&opts.stacks, "stack", "s", nil, "Only graph these stacks (default: all)")
	cmd.Flags().BoolVarP(&opts.tree, "tree", "t", false, "Graph the construct tree instead of resource dependencies")
	cmd.Flags().BoolVarP(&opts.cluster, "cluster", "c", false, "Cluster resources by stack")
	cmd.Flags().StringVar(&opts.assemblyDir, "assembly", "", "Read an existing cloud assembly instead of synthesizing")

	return cmd
}

func runGraph(w io.Writer, opts graphOptions) error {
	var format graph.Format
	switch opts.format {
	case "dot":
		format = graph.FormatDOT
	case "mermaid":
		format = graph.FormatMermaid
	default:
		return fmt.Errorf("unknown format: %s (use 'dot' or 'mermaid')", opts.format)
	}

	asm, err := loadAssembly(opts.assemblyDir)
	if err != nil {
		return err
	}

	gen := &graph.Generator{Format: format, ClusterByStack: opts.cluster}

	if opts.tree {
		if asm.Tree == nil {
			return errors.New("assembly has no construct tree")
		}
		return gen.GenerateTree(asm.Tree, w)
	}

	stacks := asm.AllStacks()
	if len(opts.stacks) > 0 {
		if stacks, err = selectStacks(asm, opts.stacks); err != nil {
			return err
		}
	}
	return gen.Generate(stacks, w)
}
