package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	cdkexample "github.com/lex00/cdk-example-go"
	"github.com/lex00/cdk-example-go/internal/validation"
)

// newValidateCmd creates the "validate" subcommand.
func newValidateCmd() *cobra.Command {
	var (
		outputFormat string
		assemblyDir  string
		skipLint     bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate templates and manifests",
		Long: `Validate synthesizes the app and checks the result.

Checks performed:
  - References: every Ref, GetAtt, Sub and DependsOn target exists
  - Notifications: each bucket notification targets a function that grants
    s3.amazonaws.com invoke permission, and the bucket waits for the grant
  - Manifests: every manifest.json matches the cloud assembly schema
  - cfn-lint: every template passes cfn-lint-go (unless --skip-lint)

Examples:
    cdk-example validate
    cdk-example validate --format json
    cdk-example validate --assembly cdk.out --skip-lint`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), assemblyDir, outputFormat, skipLint)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().StringVar(&assemblyDir, "assembly", "", "Validate an existing cloud assembly instead of synthesizing")
	cmd.Flags().BoolVar(&skipLint, "skip-lint", false, "Skip cfn-lint-go")

	return cmd
}

var errValidationFailed = errors.New("validation failed")

func runValidate(w io.Writer, assemblyDir, format string, skipLint bool) error {
	asm, err := loadAssembly(assemblyDir)
	if err != nil {
		return err
	}

	report, err := validation.ValidateAssembly(asm, validation.Options{SkipLint: skipLint})
	if err != nil {
		return fmt.Errorf("validation could not run: %w", err)
	}

	result := cdkexample.ValidateResult{
		Success:   report.Passed(),
		Stacks:    report.Stacks,
		Resources: report.Resources,
	}
	for _, issue := range report.Errors() {
		result.Errors = append(result.Errors, issue.String())
	}
	for _, issue := range report.Warnings() {
		result.Warnings = append(result.Warnings, issue.String())
	}

	switch format {
	case "json":
		if err := printJSON(w, result); err != nil {
			return err
		}
	case "text":
		if result.Success {
			fmt.Fprintf(w, "Validation passed: %d stacks, %d resources OK\n", result.Stacks, result.Resources)
		} else {
			fmt.Fprintln(w, "Validation FAILED:")
		}
		for _, msg := range result.Errors {
			fmt.Fprintf(w, "  ERROR: %s\n", msg)
		}
		for _, msg := range result.Warnings {
			fmt.Fprintf(w, "  WARNING: %s\n", msg)
		}
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if !result.Success {
		return errValidationFailed
	}
	return nil
}
