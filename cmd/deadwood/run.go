package main

import (
	"fmt"
	"os"
	"time"

	"github.com/deadwoodlabs/deadwood/internal/analyzer"
	"github.com/deadwoodlabs/deadwood/internal/output"
	"github.com/deadwoodlabs/deadwood/internal/progress"
	"github.com/deadwoodlabs/deadwood/pkg/config"
	"github.com/urfave/cli/v2"
)

// runAnalysis executes the full pipeline with a progress bar when the
// terminal output allows one.
func runAnalysis(c *cli.Context, cfg *config.Config) (*analyzer.Analysis, error) {
	root := getRoot(c, cfg)

	showProgress := !c.Bool("no-progress") &&
		output.ParseFormat(cfg.Format) == output.FormatText &&
		c.String("output") == ""

	var tracker *progress.Tracker
	onFiles := func(n int) {
		if showProgress {
			tracker = progress.NewTracker("Analyzing modules...", n)
		}
	}
	onProgress := func() {
		if tracker != nil {
			tracker.Tick()
		}
	}

	result, err := analyzer.New(cfg).AnalyzeProjectTracked(root, onFiles, onProgress)
	if tracker != nil {
		if err != nil {
			tracker.FinishError(err)
		} else {
			tracker.FinishSuccess()
		}
	}
	if err != nil {
		return nil, err
	}

	if result.FileErrors != nil && result.FileErrors.HasErrors() {
		for _, fe := range result.FileErrors.Errors {
			fmt.Fprintf(os.Stderr, "warning: skipped %s: %v\n", fe.Path, fe.Err)
		}
	}
	printDiagnostics(result.Diagnostics)

	if cfg.Verbose {
		fmt.Fprintf(os.Stderr, "Parsed %d modules in %s, resolved in %s\n",
			result.ModuleCount, result.ParseDuration.Round(time.Millisecond),
			result.ResolveDuration.Round(time.Millisecond))
	}

	return result, nil
}

// newFormatter builds the output formatter from the global flags.
func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	return output.NewFormatter(output.ParseFormat(cfg.Format), c.String("output"), true)
}
