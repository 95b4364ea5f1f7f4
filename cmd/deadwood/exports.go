package main

import (
	"fmt"

	"github.com/deadwoodlabs/deadwood/internal/analyzer"
	"github.com/deadwoodlabs/deadwood/internal/output"
	"github.com/urfave/cli/v2"
)

func exportsCmd() *cli.Command {
	return &cli.Command{
		Name:      "exports",
		Aliases:   []string{"x"},
		Usage:     "Report exports no other module imports",
		ArgsUsage: "[path]",
		Action:    runExports,
	}
}

func runExports(c *cli.Context) error {
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

	return renderExports(formatter, result, cfg.Target)
}

func renderExports(formatter *output.Formatter, result *analyzer.Analysis, target string) error {
	if len(result.UnusedExports) == 0 && formatter.Format() == output.FormatText {
		formatter.Success("No unused exports!")
		return nil
	}

	rows := make([][]string, 0, len(result.UnusedExports))
	for _, e := range result.UnusedExports {
		rows = append(rows, []string{
			e.Name,
			string(e.Kind),
			e.Path,
			fmt.Sprintf("%d", e.Line),
		})
	}

	footer := []string{
		fmt.Sprintf("Unused exports: %d", len(result.UnusedExports)),
		fmt.Sprintf("Modules: %d", result.ModuleCount),
	}
	if result.IndeterminateKind > 0 {
		footer = append(footer,
			fmt.Sprintf("Skipped (%s filter, kind unknown): %d", target, result.IndeterminateKind))
	}

	table := output.NewTable(
		"Unused Exports",
		[]string{"Export", "Kind", "File", "Line"},
		rows,
		footer,
		result,
	)
	return formatter.Output(table)
}
