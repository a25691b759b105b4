package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/specbook/internal/apispec"
	"github.com/specbook/internal/config"
	"github.com/specbook/internal/generate"
	"github.com/specbook/internal/history"
	"github.com/specbook/internal/logging"
	"github.com/specbook/internal/mapping"
	"github.com/specbook/internal/migrate"
	"github.com/specbook/internal/notify"
	"github.com/specbook/internal/xlsxpkg"
	"github.com/specbook/pkg/models"
)

// MigrateCommand returns the migrate command
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Regenerate a workbook and carry unresolved discussions over from a previous one",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "from",
				Aliases:  []string{"f"},
				Usage:    "Previous workbook `FILE` holding the discussions",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "description",
				Aliases: []string{"d"},
				Usage:   "API description `FILE` to regenerate the workbook from",
			},
			&cli.StringFlag{
				Name:  "into",
				Usage: "Existing regenerated workbook `FILE` to migrate onto",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Workbook `FILE` to write (defaults to --into)",
			},
			&cli.IntFlag{
				Name:  "probe-rows",
				Usage: "Rows to probe below an occupied landing cell",
			},
			&cli.BoolFlag{
				Name:  "no-overflow",
				Usage: "Fail unplaceable threads instead of collecting them on the overflow sheet",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Run the migration without writing the workbook",
			},
		},
		Action: runMigrate,
	}
}

func runMigrate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	fromPath := c.String("from")
	descPath := firstNonEmpty(c.String("description"), cfg.Generate.Description)
	intoPath := c.String("into")
	if intoPath != "" && c.String("description") != "" {
		return fmt.Errorf("--into and --description are mutually exclusive")
	}
	if intoPath == "" && descPath == "" {
		return fmt.Errorf("missing destination: pass --description to regenerate or --into for an existing workbook")
	}

	outPath := firstNonEmpty(c.String("output"), intoPath, cfg.Generate.Output)
	if outPath == "" {
		return fmt.Errorf("missing output path: pass --output or set generate.output")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	src, err := xlsxpkg.Open(fromPath)
	if err != nil {
		return fmt.Errorf("failed to open previous workbook: %w", err)
	}

	dest, maps, err := destinationPackage(ctx, descPath, intoPath)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	var runLog *logging.RunLogger
	if cfg.Log.Dir != "" {
		runLog, err = logging.StartRunLogging(cfg.Log.Dir, runID)
		if err != nil {
			log.Warn().Err(err).Msg("failed to start run log file")
		}
	}
	defer runLog.Close()

	engine := migrate.Engine{
		ProbeRows:       cfg.Migrate.ProbeRows,
		DisableOverflow: !cfg.Migrate.OverflowEnabled || c.Bool("no-overflow"),
	}
	if c.IsSet("probe-rows") {
		engine.ProbeRows = c.Int("probe-rows")
	}
	if cfg.Migrate.ScanSecrets {
		scanner, err := migrate.NewSecretScanner()
		if err != nil {
			log.Warn().Err(err).Msg("failed to load secret detection rules, scanning disabled")
		} else {
			engine.Scanner = scanner
		}
	}

	runLog.LogSection("MIGRATION RUN " + runID)
	runLog.Log("source=%s destination=%s", fromPath, outPath)

	started := time.Now()
	sum, err := engine.Migrate(src, dest, maps)
	if err != nil {
		runLog.LogError("migration", err)
		return fmt.Errorf("migration failed: %w", err)
	}
	for _, out := range sum.Outcomes {
		runLog.LogOutcome(out)
	}
	runLog.LogSection("SUMMARY")
	runLog.Log("threads=%d messages=%d placed=%d lost=%d", sum.Threads, sum.Messages, sum.Placed, sum.Lost)

	if c.Bool("dry-run") {
		printSummary(sum, outPath, true)
		return nil
	}

	if err := dest.Save(outPath); err != nil {
		runLog.LogError("save", err)
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	recordHistory(cfg, history.RunInfo{
		ID:         runID,
		StartedAt:  started,
		FinishedAt: time.Now(),
		SourcePath: fromPath,
		DestPath:   outPath,
	}, sum)

	notifyLost(ctx, cfg, sum)

	printSummary(sum, outPath, false)
	return nil
}

// destinationPackage builds the workbook discussions migrate onto: a fresh
// render of the description, or an already generated package whose anchor
// maps ride in its own parts.
func destinationPackage(ctx context.Context, descPath, intoPath string) (*xlsxpkg.Package, *mapping.Context, error) {
	if intoPath != "" {
		pkg, err := xlsxpkg.Open(intoPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open destination workbook: %w", err)
		}
		return pkg, nil, nil
	}

	desc, err := apispec.Load(ctx, descPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load API description: %w", err)
	}
	result, err := generate.Build(desc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build workbook: %w", err)
	}
	return result.Package, result.Mapping, nil
}

// recordHistory stores the run in the sidecar database. Failures are logged
// and swallowed.
func recordHistory(cfg *config.Config, run history.RunInfo, sum *migrate.Summary) {
	if !cfg.History.Enabled {
		return
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		log.Warn().Err(err).Msg("failed to open history database")
		return
	}
	defer store.Close()
	if err := store.RecordRun(run, sum); err != nil {
		log.Warn().Err(err).Msg("failed to record run history")
	}
}

// notifyLost posts the lost-discussion note to the configured merge request.
// Failures are logged and swallowed.
func notifyLost(ctx context.Context, cfg *config.Config, sum *migrate.Summary) {
	if !cfg.Notify.Enabled() || sum.Lost == 0 {
		return
	}
	notifier, err := notify.New(cfg.Notify)
	if err != nil {
		log.Warn().Err(err).Msg("failed to build notifier")
		return
	}
	if err := notifier.PostLostDiscussions(ctx, sum); err != nil {
		log.Warn().Err(err).Msg("failed to post lost-discussion note")
	}
}

func printSummary(sum *migrate.Summary, outPath string, dryRun bool) {
	fmt.Printf("Migrated %d of %d discussion threads (%d messages)\n", sum.Placed, sum.Threads, sum.Messages)
	if sum.Placed > 0 {
		fmt.Printf("  anchored=%d same-sheet=%d overflow=%d\n",
			sum.ByStrategy[models.StrategyAnchored],
			sum.ByStrategy[models.StrategySameSheet],
			sum.ByStrategy[models.StrategyOverflow])
	}
	if sum.Lost > 0 {
		fmt.Printf("  %d thread(s) lost; see the %s sheet\n", sum.Lost, migrate.LostSheetName)
	}
	if dryRun {
		fmt.Println("Dry run: workbook not written")
		return
	}
	fmt.Printf("Wrote %s\n", outPath)
}
