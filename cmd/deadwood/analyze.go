package main

import (
	"github.com/deadwoodlabs/deadwood/internal/output"
	"github.com/urfave/cli/v2"
)

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Aliases:   []string{"a"},
		Usage:     "Report unused exports and unused dependencies together",
		ArgsUsage: "[path]",
		Action:    runAnalyze,
	}
}

func runAnalyze(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	result, err := runAnalysis(c, cfg)
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	// JSON carries the whole analysis in one document.
	if formatter.Format() == output.FormatJSON {
		return formatter.Output(result)
	}

	if err := renderExports(formatter, result, cfg.Target); err != nil {
		return err
	}
	return renderDeps(formatter, result)
}
