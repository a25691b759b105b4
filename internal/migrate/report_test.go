package migrate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/specbook/internal/xlsxpkg"
	"github.com/specbook/pkg/models"
)

func lostCell(t *testing.T, ws *xlsxpkg.Worksheet, ref string) string {
	t.Helper()
	v, ok := ws.Cell(ref)
	require.True(t, ok, "expected content at %s", ref)
	return v
}

func TestLostReportSkippedWhenEverythingMigrated(t *testing.T) {
	dest := xlsxpkg.New()
	_, err := dest.AddSheet("S")
	require.NoError(t, err)

	th := testThread("", "S", "B2", 0)
	require.NoError(t, WriteLostReport(dest, []*models.MigrationOutcome{
		placedOutcome(th, "S", "B2", models.StrategySameSheet),
	}))

	_, ok := dest.Sheet(LostSheetName)
	require.False(t, ok)
}

func TestLostReportListsEveryMessage(t *testing.T) {
	dest := xlsxpkg.New()
	_, err := dest.AddSheet("S")
	require.NoError(t, err)

	at := time.Date(2026, 4, 2, 14, 30, 0, 0, time.UTC)
	th := &models.DiscussionThread{
		Root: &models.DiscussionMessage{
			ID: "{A-1}", PersonID: "{P-1}", Author: "Alice Reviewer", CreatedAt: at,
			Body:   "Root body that should appear in the report.",
			Sheet:  "Removed_Op", Ref: "C3",
			Anchor: "paths./gone.delete",
		},
		Replies: []*models.DiscussionMessage{
			{ID: "{A-2}", ParentID: "{A-1}", Author: "Bob Author", Body: strings.Repeat("x", 200), Sheet: "Removed_Op", Ref: "C3"},
		},
	}
	out := &models.MigrationOutcome{
		Thread:      th,
		Failure:     models.FailureAnchorNotFound,
		SecretHints: []string{"github-pat"},
	}
	require.NoError(t, WriteLostReport(dest, []*models.MigrationOutcome{out}))

	ws, ok := dest.Sheet(LostSheetName)
	require.True(t, ok)
	require.Equal(t, "Sheet", lostCell(t, ws, "A1"))
	require.Equal(t, "Message", lostCell(t, ws, "G1"))

	require.Equal(t, "Removed_Op", lostCell(t, ws, "A2"))
	require.Equal(t, "C3", lostCell(t, ws, "B2"))
	require.Equal(t, "paths./gone.delete", lostCell(t, ws, "C2"))
	require.Equal(t, "Alice Reviewer", lostCell(t, ws, "D2"))
	require.Equal(t, "2026-04-02 14:30", lostCell(t, ws, "E2"))
	reason := lostCell(t, ws, "F2")
	require.Contains(t, reason, "anchor-not-found-in-destination")
	require.Contains(t, reason, "github-pat")
	require.Equal(t, "Root body that should appear in the report.", lostCell(t, ws, "G2"))

	require.Equal(t, "Bob Author", lostCell(t, ws, "D3"))
	require.Equal(t, strings.Repeat("x", 120)+"...", lostCell(t, ws, "G3"),
		"long bodies are excerpted")
}

func TestLostReportAppendsAcrossRuns(t *testing.T) {
	dest := xlsxpkg.New()
	_, err := dest.AddSheet("S")
	require.NoError(t, err)

	failed := func(id string) *models.MigrationOutcome {
		return &models.MigrationOutcome{
			Thread: &models.DiscussionThread{
				Root: &models.DiscussionMessage{ID: id, Author: "Alice", Body: "lost", Sheet: "Gone", Ref: "A1"},
			},
			Failure: models.FailureSheetMissing,
		}
	}
	require.NoError(t, WriteLostReport(dest, []*models.MigrationOutcome{failed("{A-1}")}))
	require.NoError(t, WriteLostReport(dest, []*models.MigrationOutcome{failed("{B-1}")}))

	ws, ok := dest.Sheet(LostSheetName)
	require.True(t, ok)
	require.Equal(t, 3, ws.MaxRow(), "header plus one row per run")
	require.Equal(t, "Gone", lostCell(t, ws, "A3"))
}

func TestExcerptBounds(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"multi\nline\tbody", 20, "multi line body"},
		{strings.Repeat("ab", 20), 10, "ababababab..."},
		{"", 5, ""},
	}
	for i, tc := range tests {
		got := excerpt(tc.in, tc.max)
		if got != tc.want {
			t.Fatalf("case %d: excerpt(%q, %d) = %q, want %q", i, tc.in, tc.max, got, tc.want)
		}
	}
}
