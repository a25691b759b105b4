package migrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/specbook/internal/mapping"
	"github.com/specbook/internal/xlsxpkg"
)

func sourceWorkbook(t *testing.T) *xlsxpkg.Package {
	t.Helper()
	p := xlsxpkg.New()
	_, err := p.AddSheet("Pets_get")
	require.NoError(t, err)
	require.NoError(t, p.SetAnchorMap("Pets_get", &mapping.Sheet{
		Name: "Pets_get",
		Entries: []mapping.Entry{
			{Anchor: "paths./pets.get/TitleRow", Kind: mapping.KindRow, Row: 1},
			{Anchor: "paths./pets.get.responses.200", Kind: mapping.KindRow, Row: 12},
			{Anchor: "paths./pets.get.responses.200.description", Kind: mapping.KindCell, Ref: "B12"},
		},
	}))
	p.SetPersons([]xlsxpkg.Person{
		{ID: "{P-1}", DisplayName: "Alice Reviewer", UserID: "alice@example.com", ProviderID: "None"},
	})

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, p.SetThreadedComments("Pets_get", []xlsxpkg.ThreadedComment{
		{Ref: "B12", ID: "{T-1}", PersonID: "{P-1}", Time: base, Text: "Is the page size bounded?"},
		{Ref: "B12", ID: "{T-2}", ParentID: "{T-1}", PersonID: "{P-1}", Time: base.Add(2 * time.Hour), Text: "later reply"},
		{Ref: "B12", ID: "{T-3}", ParentID: "{T-1}", PersonID: "{P-9}", Time: base.Add(time.Hour), Text: "earlier reply"},
		{Ref: "A1", ID: "{T-4}", PersonID: "{P-1}", Time: base, Done: true, Text: "resolved question"},
		{Ref: "A1", ID: "{T-5}", ParentID: "{T-4}", PersonID: "{P-1}", Time: base.Add(time.Minute), Text: "reply on resolved"},
		{Ref: "C3", ID: "{T-6}", ParentID: "{T-404}", PersonID: "{P-1}", Time: base, Text: "orphaned reply"},
		{Ref: "D12", ID: "{T-7}", PersonID: "{P-1}", Time: base, Text: "row-covered cell"},
		{Ref: "E2", ID: "{T-8}", ParentID: "{T-8}", PersonID: "{P-1}", Time: base, Text: "self-parented root"},
	}))
	return p
}

func TestExtractCollectsUnresolvedThreads(t *testing.T) {
	ex, err := Extract(sourceWorkbook(t))
	require.NoError(t, err)

	// The done thread {T-4} and its reply are gone; {T-6} and {T-8} became
	// roots of their own.
	require.Len(t, ex.Threads, 4)

	first := ex.Threads[0]
	require.Equal(t, "{T-1}", first.Root.ID)
	require.Equal(t, 3, first.Size())
	require.Equal(t, "paths./pets.get.responses.200.description", first.Root.Anchor)
	require.Equal(t, "Pets_get", first.Root.Sheet)
	require.Equal(t, "B12", first.Root.Ref)
	require.Equal(t, "Alice Reviewer", first.Root.Author)

	// Replies come back chronological, not in part order.
	require.Equal(t, "{T-3}", first.Replies[0].ID)
	require.Equal(t, "{T-2}", first.Replies[1].ID)
	require.Equal(t, "Unknown participant", first.Replies[0].Author)

	rowCovered := ex.Threads[1]
	require.Equal(t, "{T-7}", rowCovered.Root.ID)
	require.Equal(t, "paths./pets.get.responses.200", rowCovered.Root.Anchor,
		"a cell without its own entry inherits the row-level anchor")

	orphan := ex.Threads[2]
	require.Equal(t, "{T-6}", orphan.Root.ID)
	require.True(t, orphan.Root.IsRoot())
	require.Empty(t, orphan.Root.Anchor, "row 3 is not covered by any mapping")

	selfParented := ex.Threads[3]
	require.Equal(t, "{T-8}", selfParented.Root.ID)
	require.True(t, selfParented.Root.IsRoot())
	require.Empty(t, selfParented.Root.ParentID)

	require.Contains(t, ex.Participants, "{P-1}")
	require.Equal(t, "Alice Reviewer", ex.Participants["{P-1}"].DisplayName)
}

func TestExtractLeavesSourceUntouched(t *testing.T) {
	src := sourceWorkbook(t)
	_, err := Extract(src)
	require.NoError(t, err)

	require.Len(t, src.ThreadedComments("Pets_get"), 8)
	require.Equal(t, "{T-2}", src.ThreadedComments("Pets_get")[1].ID)
}

func TestExtractEmptyPackage(t *testing.T) {
	p := xlsxpkg.New()
	_, err := p.AddSheet("Index")
	require.NoError(t, err)

	ex, err := Extract(p)
	require.NoError(t, err)
	require.Empty(t, ex.Threads)

	_, err = Extract(nil)
	require.Error(t, err)
}
