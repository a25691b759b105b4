// Package migrate moves unresolved review discussions from a previous
// workbook package onto a freshly regenerated one. The run is synchronous
// and single-threaded: extraction completes before any placement, every
// thread is placed (in extraction order) before assembly writes anything,
// and the destination package is only mutated in memory. Saving belongs to
// the caller, which is what keeps a failed run off the disk entirely.
package migrate

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/specbook/internal/mapping"
	"github.com/specbook/internal/xlsxpkg"
	"github.com/specbook/pkg/models"
)

// Engine holds the knobs of a migration run. The zero value migrates with
// defaults: bounded probing, overflow catch-all on, no secret scanning,
// random comment identifiers.
type Engine struct {
	// ProbeRows bounds the same-sheet collision probe. Zero means
	// DefaultProbeRows.
	ProbeRows int
	// DisableOverflow switches the overflow catch-all off; threads that
	// would have overflowed then fail with their typed reason.
	DisableOverflow bool
	// Scanner, when set, flags message bodies that look like credentials.
	Scanner *SecretScanner
	// NewID mints destination identifiers. Nil means NewCommentID.
	NewID func() string
}

// Summary is the whole-run result handed back to the caller.
type Summary struct {
	Threads      int
	Messages     int
	Placed       int
	Lost         int
	ByStrategy   map[models.Strategy]int
	Outcomes     []*models.MigrationOutcome
	Participants map[string]models.Participant
}

// Failures returns the outcomes that could not be placed.
func (s *Summary) Failures() []*models.MigrationOutcome {
	var out []*models.MigrationOutcome
	for _, o := range s.Outcomes {
		if !o.Migrated() {
			out = append(out, o)
		}
	}
	return out
}

// Migrate moves every unresolved discussion from src onto dest. maps carries
// the destination's anchor mappings; nil means read them from dest's own
// anchor-map parts. Per-thread failures are collected on the summary, never
// returned as errors: one bad thread does not block the rest. dest is
// mutated in place and left unsaved.
func (e *Engine) Migrate(src, dest *xlsxpkg.Package, maps *mapping.Context) (*Summary, error) {
	if src == nil || dest == nil {
		return nil, fmt.Errorf("migration needs both a source and a destination package")
	}
	if maps == nil {
		maps = mapping.FromSheets(dest.AnchorMaps())
	}

	ex, err := Extract(src)
	if err != nil {
		return nil, fmt.Errorf("failed to extract discussions: %w", err)
	}

	resolver := NewResolver(dest, maps, e.ProbeRows, !e.DisableOverflow)
	summary := &Summary{
		Threads:      len(ex.Threads),
		ByStrategy:   make(map[models.Strategy]int),
		Participants: ex.Participants,
	}
	for _, th := range ex.Threads {
		out := resolver.Place(th)
		out.SecretHints = e.Scanner.ScanThread(th)
		summary.Messages += th.Size()
		if out.Migrated() {
			summary.Placed++
			summary.ByStrategy[out.Strategy]++
		} else {
			summary.Lost++
		}
		summary.Outcomes = append(summary.Outcomes, out)
	}

	if err := Assemble(dest, summary.Outcomes, ex.Participants, e.NewID); err != nil {
		return nil, fmt.Errorf("failed to assemble migrated discussions: %w", err)
	}
	if err := WriteLostReport(dest, summary.Outcomes); err != nil {
		return nil, fmt.Errorf("failed to write lost discussions report: %w", err)
	}

	log.Info().
		Int("threads", summary.Threads).
		Int("messages", summary.Messages).
		Int("placed", summary.Placed).
		Int("lost", summary.Lost).
		Msg("discussion migration finished")
	return summary, nil
}
