// Package app assembles the cdk-example construct tree from configuration.
package app

import (
	"github.com/lex00/cdk-example-go/construct"
	"github.com/lex00/cdk-example-go/internal/config"
	"github.com/lex00/cdk-example-go/stacks"
)

// PipelineStackID is the construct ID, and stack name, of the single
// top-level stack.
const PipelineStackID = "CdkExampleStack"

// App is the synthesizable construct tree.
type App struct {
	*construct.App

	Pipeline *stacks.PipelineStack
}

// Build declares the app. Outdir "-" synthesizes in memory.
func Build(cfg config.Config) *App {
	a := &App{App: construct.NewApp(construct.AppProps{
		Outdir:  cfg.Outdir,
		Context: cfg.Context,
	})}

	a.Pipeline = stacks.NewPipelineStack(a.App, PipelineStackID, stacks.PipelineStackProps{
		StackProps: construct.StackProps{Env: cfg.Env()},
		Branch:     cfg.Branch,
		StageName:  cfg.Stage.Name,
		StageEnv:   cfg.StageEnv(),
		Lambda: stacks.LambdaStackProps{
			FunctionName:  cfg.FunctionName,
			BucketName:    cfg.BucketName,
			SourceAccount: cfg.Stage.Account,
		},
	})
	return a
}

// Synth builds the app from cfg and synthesizes it.
func Synth(cfg config.Config) (*construct.Assembly, error) {
	return Build(cfg).Synth()
}
