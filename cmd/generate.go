package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/specbook/internal/apispec"
	"github.com/specbook/internal/generate"
)

// GenerateCommand returns the generate command
func GenerateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Render an API description into a workbook",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "description",
				Aliases: []string{"d"},
				Usage:   "API description `FILE` (OpenAPI, YAML or JSON)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Workbook `FILE` to write",
			},
		},
		Action: runGenerate,
	}
}

func runGenerate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	descPath := firstNonEmpty(c.String("description"), cfg.Generate.Description)
	outPath := firstNonEmpty(c.String("output"), cfg.Generate.Output)
	if descPath == "" {
		return fmt.Errorf("missing API description: pass --description or set generate.description")
	}
	if outPath == "" {
		return fmt.Errorf("missing output path: pass --output or set generate.output")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	desc, err := apispec.Load(ctx, descPath)
	if err != nil {
		return fmt.Errorf("failed to load API description: %w", err)
	}

	result, err := generate.Build(desc)
	if err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}

	if err := result.Package.Save(outPath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	fmt.Printf("Wrote %s (%d sheets)\n", outPath, len(result.Package.SheetNames()))
	return nil
}
