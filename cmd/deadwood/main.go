package main

import (
	"fmt"
	"os"

	"github.com/deadwoodlabs/deadwood/pkg/config"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

// getRoot returns the scan root from the positional args, defaulting to
// the configured root.
func getRoot(c *cli.Context, cfg *config.Config) string {
	if c.Args().Len() > 0 {
		return c.Args().First()
	}
	if cfg.Root != "" {
		return cfg.Root
	}
	return "."
}

// loadConfig resolves the effective config: an explicit --config file,
// otherwise the standard locations, with command-line flags on top.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.LoadOrDefault()
	}

	if c.IsSet("format") {
		cfg.Format = c.String("format")
	}
	if c.IsSet("target") {
		cfg.Target = c.String("target")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.Bool("dev") {
		cfg.Dev = true
	}
	if c.Bool("verbose") {
		cfg.Verbose = true
	}

	if _, err := config.ParseTarget(cfg.Target); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	app := &cli.App{
		Name:    "deadwood",
		Usage:   "Find unused exports and dependencies in TypeScript projects",
		Version: version,
		Description: `Deadwood parses every TypeScript module under a directory, resolves
which exports are actually imported elsewhere, and reports the ones
nothing uses. It also compares package.json dependencies against the
packages the code imports.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"DEADWOOD_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "text",
				Usage:   "Output format: text, json, markdown",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Export kinds to report: types, values, all",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Parse worker count (0 = 2x CPU count)",
			},
			&cli.BoolFlag{
				Name:  "dev",
				Usage: "Also check devDependencies for unused packages",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Disable the progress bar",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output",
			},
		},
		Commands: []*cli.Command{
			exportsCmd(),
			depsCmd(),
			analyzeCmd(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

// printDiagnostics writes non-fatal findings to stderr so piped output
// stays clean.
func printDiagnostics(diags []string) {
	if len(diags) == 0 {
		return
	}
	color.New(color.FgYellow).Fprintf(os.Stderr, "Diagnostics (%d):\n", len(diags))
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "  - %s\n", d)
	}
}
