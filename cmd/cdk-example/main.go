// Command cdk-example synthesizes and deploys the cdk-example pipeline.
//
// Usage:
//
//	cdk-example synth                 Write the cloud assembly to cdk.out
//	cdk-example list                  List stacks
//	cdk-example validate              Check templates and manifests
//	cdk-example diff                  Compare against the last assembly
//	cdk-example deploy                Deploy the pipeline stack
//	cdk-example version               Show version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lex00/cdk-example-go/construct"
	"github.com/lex00/cdk-example-go/internal/app"
	"github.com/lex00/cdk-example-go/internal/config"
	"github.com/lex00/cdk-example-go/internal/logging"
)

// globals are the persistent flags shared by every subcommand.
var globals struct {
	configPath string
	logLevel   string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cdk-example",
		Short: "Synthesize and deploy the cdk-example pipeline",
		Long: `cdk-example declares a self-updating CodePipeline that deploys a Lambda
function subscribed to object creation in an S3 bucket.

Synthesize the cloud assembly:

    cdk-example synth

Then deploy the pipeline stack once; later pushes to CDK-repo deploy
themselves:

    cdk-example deploy`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := logging.New(logging.Options{
				Level:   globals.logLevel,
				Verbose: globals.verbose,
				Out:     cmd.ErrOrStderr(),
			})
			cmd.SetContext(logger.WithContext(cmd.Context()))
		},
	}

	rootCmd.PersistentFlags().StringVar(&globals.configPath, "config", config.DefaultFile, "Configuration file")
	rootCmd.PersistentFlags().StringVar(&globals.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVarP(&globals.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newSynthCmd(),
		newListCmd(),
		newGraphCmd(),
		newValidateCmd(),
		newDiffCmd(),
		newDeployCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cdk-example %s\n", getVersion())
		},
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(globals.configPath)
}

// loadAssembly reads the assembly in dir, or synthesizes one in memory when
// dir is empty.
func loadAssembly(dir string) (*construct.Assembly, error) {
	if dir != "" {
		asm, err := construct.ReadAssembly(dir)
		if err != nil {
			return nil, fmt.Errorf("reading assembly %s: %w", dir, err)
		}
		return asm, nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Outdir = "-"
	asm, err := app.Synth(cfg)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}
	return asm, nil
}

// selectStacks returns the named stacks, or the top-level stacks of asm
// when names is empty.
func selectStacks(asm *construct.Assembly, names []string) ([]*construct.StackArtifact, error) {
	if len(names) == 0 {
		return asm.Stacks, nil
	}
	out := make([]*construct.StackArtifact, 0, len(names))
	for _, name := range names {
		st, ok := asm.FindStack(name)
		if !ok {
			return nil, fmt.Errorf("stack %q not found in assembly", name)
		}
		out = append(out, st)
	}
	return out, nil
}
