package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// newWatchCmd creates the "watch" subcommand for re-synthesizing on file changes.
func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch [dirs...]",
		Short: "Re-synthesize on source file changes",
		Long: `Watch monitors .go files and re-runs synth when they change.

Synthesis runs in a fresh process ("go run ./cmd/cdk-example synth") so that
edits to the stacks are compiled in. Rapid changes are debounced.

Examples:
    cdk-example watch
    cdk-example watch ./stacks --validate
    cdk-example watch --debounce 1s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			if opts.outdir == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				opts.outdir = cfg.Outdir
			}
			return runWatch(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "Debounce duration for rapid changes")
	cmd.Flags().StringVarP(&opts.outdir, "output", "o", "", "Cloud assembly directory (default from config, cdk.out)")
	cmd.Flags().StringVar(&opts.pkg, "package", "./cmd/cdk-example", "Package run to synthesize")
	cmd.Flags().BoolVar(&opts.validate, "validate", false, "Validate the assembly after each synth")

	return cmd
}

type watchOptions struct {
	debounce time.Duration
	outdir   string
	pkg      string
	validate bool
}

// runWatch monitors source directories and re-synthesizes on changes until
// ctx is canceled.
func runWatch(ctx context.Context, dirs []string, opts watchOptions) error {
	logger := zerolog.Ctx(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	outdir, err := filepath.Abs(opts.outdir)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		abs, err := filepath.Abs(strings.TrimSuffix(dir, "/..."))
		if err != nil {
			return err
		}
		if err := addDirRecursive(watcher, abs, outdir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		logger.Info().Str("dir", abs).Msg("Watching")
	}

	runWatchSynth(ctx, opts)

	var debounceTimer *time.Timer
	rebuild := make(chan struct{}, 1)

	logger.Info().Msg("Watching for changes (Ctrl+C to stop)")
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isSourceChange(event) {
				continue
			}
			logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Change")

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(opts.debounce, func() {
				select {
				case rebuild <- struct{}{}:
				default:
				}
			})

		case <-rebuild:
			logger.Info().Msg("Change detected, synthesizing")
			runWatchSynth(ctx, opts)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Msg("Watch error")

		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			logger.Info().Msg("Stopping watch")
			return nil
		}
	}
}

func isSourceChange(event fsnotify.Event) bool {
	if !strings.HasSuffix(event.Name, ".go") || strings.HasSuffix(event.Name, "_test.go") {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}

// addDirRecursive adds dir and its subdirectories to the watcher, skipping
// hidden, underscore, vendor and output directories.
func addDirRecursive(watcher *fsnotify.Watcher, dir, outdir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipDir(d.Name()) || path == outdir {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
		name == "vendor" || name == "testdata"
}

// synthCommand returns the go invocation used to synthesize into outdir.
func synthCommand(opts watchOptions) []string {
	args := []string{"run", opts.pkg, "synth", "--output", opts.outdir}
	if globals.configPath != "" {
		args = append(args, "--config", globals.configPath)
	}
	return args
}

func runWatchSynth(ctx context.Context, opts watchOptions) {
	logger := zerolog.Ctx(ctx)
	begin := time.Now()

	if err := runGo(ctx, synthCommand(opts)); err != nil {
		logger.Error().Err(err).Msg("Synth failed")
		return
	}
	logger.Info().Dur("elapsed", time.Since(begin)).Str("outdir", opts.outdir).Msg("Synth successful")

	if !opts.validate {
		return
	}
	if err := runValidate(os.Stdout, opts.outdir, "text", true); err != nil {
		logger.Warn().Err(err).Msg("Validation failed")
	}
}

func runGo(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
