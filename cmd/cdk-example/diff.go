package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lex00/cdk-example-go/construct"
	"github.com/lex00/cdk-example-go/internal/differ"
)

type diffOptions struct {
	assemblyDir     string
	ignoreOrder     bool
	includeMetadata bool
	noColor         bool
	fail            bool
}

var errDifferences = errors.New("differences found")

func newDiffCmd() *cobra.Command {
	var opts diffOptions

	cmd := &cobra.Command{
		Use:   "diff [before.json after.json]",
		Short: "Compare synthesized templates",
		Long: `Diff compares the app as synthesized now with a previously written cloud
assembly, stack by stack. Given two template files it compares those instead.

Examples:
    cdk-example diff
    cdk-example diff --assembly build/cdk.out --fail
    cdk-example diff old.template.json new.template.json`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected no arguments or two template files, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd.OutOrStdout(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.assemblyDir, "assembly", "", "Previous cloud assembly (default from config, cdk.out)")
	cmd.Flags().BoolVar(&opts.ignoreOrder, "ignore-order", false, "Ignore the order of list elements")
	cmd.Flags().BoolVar(&opts.includeMetadata, "include-metadata", false, "Report Metadata changes")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&opts.fail, "fail", false, "Exit with an error when differences are found")

	return cmd
}

func runDiff(w io.Writer, files []string, opts diffOptions) error {
	diffOpts := differ.Options{IgnoreOrder: opts.ignoreOrder, IncludeMetadata: opts.includeMetadata}
	printer := &differ.Printer{NoColor: opts.noColor}

	var changed bool
	if len(files) == 2 {
		result, err := differ.CompareFiles(files[0], files[1], diffOpts)
		if err != nil {
			return err
		}
		if result.Empty() {
			fmt.Fprintln(w, "There were no differences")
		} else {
			printer.PrintResult(w, result)
			changed = true
		}
	} else {
		before, err := loadPreviousAssembly(opts.assemblyDir)
		if err != nil {
			return err
		}
		after, err := loadAssembly("")
		if err != nil {
			return err
		}
		diffs := differ.CompareAssemblies(before, after, diffOpts)
		printer.PrintStacks(w, diffs)
		changed = differ.HasChanges(diffs)
	}

	if changed && opts.fail {
		return errDifferences
	}
	return nil
}

// loadPreviousAssembly returns nil when nothing was synthesized to dir yet.
func loadPreviousAssembly(dir string) (*construct.Assembly, error) {
	if dir == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		dir = cfg.Outdir
	}
	if _, err := os.Stat(filepath.Join(dir, construct.ManifestFile)); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return loadAssembly(dir)
}
