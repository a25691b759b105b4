package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/specbook/internal/xlsxpkg"
)

// InspectCommand returns the inspect command
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the sheets, discussions, and parts of a workbook",
		ArgsUsage: "WORKBOOK",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "threads",
				Aliases: []string{"t"},
				Usage:   "List every discussion thread",
			},
			&cli.BoolFlag{
				Name:  "parts",
				Usage: "List the raw package part names",
			},
			&cli.StringFlag{
				Name:  "dump-mappings",
				Usage: "Write the anchor maps as YAML to `FILE`",
			},
		},
		Action: runInspect,
	}
}

func runInspect(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: workbook path")
	}
	path := c.Args().Get(0)

	pkg, err := xlsxpkg.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}

	fmt.Printf("Workbook: %s\n", path)
	if err := pkg.Validate(); err != nil {
		fmt.Printf("Warning: package is inconsistent: %v\n", err)
	}

	fmt.Println("\nSheets:")
	for _, ws := range pkg.Sheets() {
		comments := pkg.ThreadedComments(ws.Name)
		roots := 0
		for _, tc := range comments {
			if tc.IsRoot() {
				roots++
			}
		}
		_, mapped := pkg.AnchorMap(ws.Name)
		fmt.Printf("  %-28s rows=%-5d threads=%-4d messages=%-4d mapped=%v\n",
			ws.Name, ws.MaxRow(), roots, len(comments), mapped)
	}
	fmt.Printf("\nParticipants: %d\n", len(pkg.Persons()))

	if c.Bool("threads") {
		printThreads(pkg)
	}
	if c.Bool("parts") {
		fmt.Println("\nParts:")
		for _, name := range pkg.PartNames() {
			fmt.Printf("  %s\n", name)
		}
	}
	if out := c.String("dump-mappings"); out != "" {
		if err := dumpMappings(pkg, out); err != nil {
			return err
		}
	}
	return nil
}

func dumpMappings(pkg *xlsxpkg.Package, path string) error {
	data, err := yaml.Marshal(pkg.AnchorMaps())
	if err != nil {
		return fmt.Errorf("failed to marshal anchor maps: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write anchor maps: %w", err)
	}
	fmt.Printf("Wrote anchor maps to %s\n", path)
	return nil
}

func printThreads(pkg *xlsxpkg.Package) {
	names := make(map[string]string)
	for _, p := range pkg.Persons() {
		names[p.ID] = p.DisplayName
	}

	fmt.Println("\nThreads:")
	for _, ws := range pkg.Sheets() {
		comments := pkg.ThreadedComments(ws.Name)
		replies := make(map[string]int)
		for _, tc := range comments {
			if !tc.IsRoot() {
				replies[tc.ParentID]++
			}
		}
		for _, tc := range comments {
			if !tc.IsRoot() {
				continue
			}
			author := names[tc.PersonID]
			if author == "" {
				author = tc.PersonID
			}
			status := ""
			if tc.Done {
				status = " [resolved]"
			}
			fmt.Printf("  %s!%-6s %-24s %s  %d replies%s\n    %s\n",
				ws.Name, tc.Ref, author, tc.Time.Format("2006-01-02 15:04"),
				replies[tc.ID], status, oneLine(tc.Text, 100))
		}
	}
}

// oneLine collapses a body to a single bounded line.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
