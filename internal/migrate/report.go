package migrate

import (
	"fmt"
	"strings"

	"github.com/specbook/internal/xlsxpkg"
	"github.com/specbook/pkg/models"
)

// LostSheetName is the report sheet listing every discussion the run could
// not migrate, for manual review.
const LostSheetName = "Lost_Discussions"

const lostExcerptLen = 120

// WriteLostReport appends one row per unmigrated message to the lost report
// sheet, creating the sheet on first use. Nothing is written, and no sheet is
// created, when every thread migrated.
func WriteLostReport(dest *xlsxpkg.Package, outcomes []*models.MigrationOutcome) error {
	var failed []*models.MigrationOutcome
	for _, out := range outcomes {
		if !out.Migrated() {
			failed = append(failed, out)
		}
	}
	if len(failed) == 0 {
		return nil
	}

	ws, ok := dest.Sheet(LostSheetName)
	var row int
	if ok {
		row = ws.MaxRow()
	} else {
		var err error
		ws, err = dest.AddSheet(LostSheetName)
		if err != nil {
			return fmt.Errorf("failed to create lost discussions sheet: %w", err)
		}
		for col, header := range []string{"Sheet", "Cell", "Anchor", "Author", "Written", "Reason", "Message"} {
			ws.SetCellRC(col+1, 1, header)
		}
		row = 1
	}

	for _, out := range failed {
		reason := string(out.Failure)
		if out.Err != nil {
			reason = fmt.Sprintf("%s: %v", out.Failure, out.Err)
		}
		if len(out.SecretHints) > 0 {
			reason += " (possible secrets: " + strings.Join(out.SecretHints, ", ") + ")"
		}
		for _, m := range out.Thread.Messages() {
			row++
			ws.SetCellRC(1, row, m.Sheet)
			ws.SetCellRC(2, row, m.Ref)
			ws.SetCellRC(3, row, m.Anchor)
			ws.SetCellRC(4, row, m.Author)
			ws.SetCellRC(5, row, formatLostTime(m))
			ws.SetCellRC(6, row, reason)
			ws.SetCellRC(7, row, excerpt(m.Body, lostExcerptLen))
		}
	}
	return nil
}

func formatLostTime(m *models.DiscussionMessage) string {
	if m.CreatedAt.IsZero() {
		return ""
	}
	return m.CreatedAt.UTC().Format("2006-01-02 15:04")
}

// excerpt collapses whitespace and bounds the body to a single report cell.
func excerpt(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
