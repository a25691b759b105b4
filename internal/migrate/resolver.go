package migrate

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/specbook/internal/generate"
	"github.com/specbook/internal/mapping"
	"github.com/specbook/internal/xlsxpkg"
	"github.com/specbook/pkg/models"
)

// DefaultProbeRows bounds the same-sheet collision probe. Five rows is enough
// to slide past a header block without drifting a discussion out of its
// section.
const DefaultProbeRows = 5

// Resolver runs the placement strategy chain against one destination package.
// It owns the per-run claim set, so threads resolved by the same Resolver
// never collide with each other.
type Resolver struct {
	dest      *xlsxpkg.Package
	maps      *mapping.Context
	claims    *ClaimSet
	probeRows int
	overflow  bool
}

// NewResolver prepares placement against dest using its anchor mappings.
// Cells already rooting a thread in dest are claimed up front, so resolving
// into a part-populated workbook stacks politely instead of doubling up.
func NewResolver(dest *xlsxpkg.Package, maps *mapping.Context, probeRows int, overflowEnabled bool) *Resolver {
	if probeRows <= 0 {
		probeRows = DefaultProbeRows
	}
	r := &Resolver{
		dest:      dest,
		maps:      maps,
		claims:    NewClaimSet(),
		probeRows: probeRows,
		overflow:  overflowEnabled,
	}
	for _, name := range dest.SheetNames() {
		for _, tc := range dest.ThreadedComments(name) {
			r.claims.Claim(name, tc.Ref)
		}
	}
	return r
}

// Place runs the strategy chain for one thread and returns its outcome. On
// success every message of the thread receives the same override destination
// and the cell is claimed; on failure the outcome carries the typed reason
// and the thread is left untouched.
//
// The chain is fixed: an anchored thread goes exactly where its anchor
// resolves, with no collision probing, so threads sharing an anchor stack on
// one cell. An unanchored thread whose sheet survived regeneration keeps its
// column and slides up to the nearest heading row, dodging collisions.
// Everything else goes to the overflow sheet.
func (r *Resolver) Place(th *models.DiscussionThread) *models.MigrationOutcome {
	out := &models.MigrationOutcome{Thread: th}
	root := th.Root

	if root.Anchor != "" {
		sheet, entry, ok := r.maps.Find(root.Anchor)
		if !ok {
			r.placeOverflow(out, models.FailureAnchorNotFound)
			return out
		}
		if _, exists := r.dest.Sheet(sheet); !exists {
			r.placeOverflow(out, models.FailureSheetMissing)
			return out
		}
		ref, err := anchoredRef(entry, root.Ref)
		if err != nil {
			out.Failure = models.FailureUnexpected
			out.Err = err
			return out
		}
		r.commit(out, sheet, ref, models.StrategyAnchored)
		return out
	}

	if ws, ok := r.dest.Sheet(root.Sheet); ok {
		col := mapping.ColOf(root.Ref)
		if col == 0 {
			out.Failure = models.FailureUnexpected
			out.Err = fmt.Errorf("malformed source reference %q on sheet %q", root.Ref, root.Sheet)
			return out
		}
		target := mapping.Ref(col, r.headingRowAbove(root.Sheet, mapping.RowOf(root.Ref)))
		r.commit(out, root.Sheet, r.avoidCollision(ws, root.Sheet, target), models.StrategySameSheet)
		return out
	}

	r.placeOverflow(out, models.FailureNoAnchorUnmigratable)
	return out
}

// anchoredRef turns a resolved mapping entry into a concrete cell. Row
// entries compose the mapped row with the message's original column.
func anchoredRef(entry mapping.Entry, srcRef string) (string, error) {
	if entry.Kind == mapping.KindCell {
		return entry.Ref, nil
	}
	ref, err := mapping.WithRow(srcRef, entry.Row)
	if err != nil {
		return "", fmt.Errorf("failed to compose row-level placement: %w", err)
	}
	return ref, nil
}

// headingRowAbove returns the closest heading row at or above the given row
// on the destination sheet, or row 1 when no heading sits above it.
func (r *Resolver) headingRowAbove(sheet string, row int) int {
	best := 1
	am, ok := r.dest.AnchorMap(sheet)
	if !ok {
		return best
	}
	for _, hr := range am.HeadingRows() {
		if hr <= row && hr > best {
			best = hr
		}
	}
	return best
}

// placeOverflow redirects a thread to the overflow sheet. When overflow is
// disabled or the sheet is absent, the thread fails with the reason of the
// branch that routed it here.
func (r *Resolver) placeOverflow(out *models.MigrationOutcome, whenUnavailable models.FailureReason) {
	if !r.overflow {
		out.Failure = whenUnavailable
		return
	}
	ws, ok := r.dest.Sheet(generate.OverflowSheetName)
	if !ok {
		out.Failure = whenUnavailable
		return
	}
	ref := mapping.Ref(generate.OverflowColumn, r.overflowRow(ws))
	r.commit(out, generate.OverflowSheetName, ref, models.StrategyOverflow)
}

func (r *Resolver) commit(out *models.MigrationOutcome, sheet, ref string, strategy models.Strategy) {
	for _, m := range out.Thread.Messages() {
		m.OverrideSheet = sheet
		m.OverrideRef = ref
	}
	r.claims.Claim(sheet, ref)
	out.Sheet = sheet
	out.Ref = ref
	out.Strategy = strategy
	log.Debug().
		Str("sheet", sheet).
		Str("ref", ref).
		Str("strategy", string(strategy)).
		Str("root", out.Thread.Root.ID).
		Int("messages", out.Thread.Size()).
		Msg("placed discussion thread")
}
