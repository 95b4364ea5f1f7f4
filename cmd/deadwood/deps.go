package main

import (
	"github.com/deadwoodlabs/deadwood/internal/analyzer"
	"github.com/deadwoodlabs/deadwood/internal/output"
	"github.com/urfave/cli/v2"
)

func depsCmd() *cli.Command {
	return &cli.Command{
		Name:      "deps",
		Aliases:   []string{"d"},
		Usage:     "Report package.json dependencies no module imports",
		ArgsUsage: "[path]",
		Action:    runDeps,
	}
}

func runDeps(c *cli.Context) error {
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

	return renderDeps(formatter, result)
}

func renderDeps(formatter *output.Formatter, result *analyzer.Analysis) error {
	if !result.PackageJSONFound {
		if formatter.Format() == output.FormatText {
			formatter.Warning("No package.json found; dependency check skipped")
			return nil
		}
		return formatter.Output(result)
	}

	if len(result.UnusedDependencies) == 0 && formatter.Format() == output.FormatText {
		formatter.Success("No unused dependencies!")
		return nil
	}

	rows := make([][]string, 0, len(result.UnusedDependencies))
	for _, name := range result.UnusedDependencies {
		rows = append(rows, []string{name})
	}

	table := output.NewTable(
		"Unused Dependencies",
		[]string{"Package"},
		rows,
		nil,
		result,
	)
	return formatter.Output(table)
}
