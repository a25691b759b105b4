package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/specbook/internal/history"
)

// HistoryCommand returns the history command
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List recorded migration runs",
		ArgsUsage: "[RUN_ID]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "db",
				Usage: "History database `FILE`",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Runs to list",
				Value:   20,
			},
		},
		Action: runHistory,
	}
}

func runHistory(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	store, err := history.Open(firstNonEmpty(c.String("db"), cfg.History.Path))
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer store.Close()

	if c.NArg() > 0 {
		return printRunThreads(store, c.Args().Get(0))
	}
	return printRecentRuns(store, c.Int("limit"))
}

func printRecentRuns(store *history.Store, limit int) error {
	runs, err := store.RecentRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No migration runs recorded yet")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  placed=%d/%d lost=%d  %s -> %s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04"),
			r.Placed, r.Threads, r.Lost, r.SourcePath, r.DestPath)
	}
	return nil
}

func printRunThreads(store *history.Store, runID string) error {
	threads, err := store.RunThreads(runID)
	if err != nil {
		return fmt.Errorf("failed to list run threads: %w", err)
	}
	if len(threads) == 0 {
		fmt.Printf("No threads recorded for run %s\n", runID)
		return nil
	}
	for _, t := range threads {
		if t.Migrated() {
			fmt.Printf("PLACED %s!%s -> %s!%s (%s, %d messages)\n",
				t.OriginSheet, t.OriginRef, t.DestSheet, t.DestRef, t.Strategy, t.MessageCount)
		} else {
			fmt.Printf("LOST   %s!%s (%s, %d messages)\n",
				t.OriginSheet, t.OriginRef, t.Failure, t.MessageCount)
		}
		if len(t.SecretHints) > 0 {
			fmt.Printf("       possible secrets: %s\n", strings.Join(t.SecretHints, ", "))
		}
	}
	return nil
}
