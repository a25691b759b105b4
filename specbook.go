package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/specbook/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "specbook",
		Usage:   "Generate API documentation workbooks and migrate review discussions between versions",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"SPECBOOK_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			cmd.GenerateCommand(),
			cmd.MigrateCommand(),
			cmd.InspectCommand(),
			cmd.HistoryCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
