package xlsxpkg

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/specbook/internal/mapping"
)

func buildCommentedPackage(t *testing.T) *Package {
	t.Helper()
	p := New()

	idx, err := p.AddSheet("Index")
	require.NoError(t, err)
	require.NoError(t, idx.SetCell("A1", "Pet store API - 1.0.0"))

	ops, err := p.AddSheet("Pets_get")
	require.NoError(t, err)
	require.NoError(t, ops.SetCell("A1", "GET /pets"))
	require.NoError(t, ops.SetCell("A12", "200"))
	require.NoError(t, ops.SetCell("B12", "A paged list of pets"))

	require.NoError(t, p.SetAnchorMap("Pets_get", &mapping.Sheet{
		Name: "Pets_get",
		Entries: []mapping.Entry{
			{Anchor: "paths./pets.get/TitleRow", Kind: mapping.KindRow, Row: 1},
			{Anchor: "paths./pets.get.responses.200", Kind: mapping.KindRow, Row: 12},
			{Anchor: "paths./pets.get.responses.200.description", Kind: mapping.KindCell, Ref: "B12"},
		},
	}))

	p.SetPersons([]Person{
		{ID: "{P-1}", DisplayName: "Alice Reviewer", UserID: "alice@example.com", ProviderID: "None"},
		{ID: "{P-2}", DisplayName: "Bob Author", UserID: "bob@example.com", ProviderID: "None"},
	})

	at := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	require.NoError(t, p.SetThreadedComments("Pets_get", []ThreadedComment{
		{Ref: "B12", ID: "{T-1}", PersonID: "{P-1}", Time: at, Done: true, Text: "Is the page size bounded?"},
		{Ref: "B12", ID: "{T-2}", ParentID: "{T-1}", PersonID: "{P-2}", Time: at.Add(time.Hour), Text: "Capped at 100."},
		{Ref: "A1", ID: "{T-3}", PersonID: "{P-2}", Time: at.Add(2 * time.Hour), Text: "Rename this operation?"},
	}))
	require.NoError(t, p.SetLegacyComments("Pets_get", []LegacyComment{
		{Ref: "B12", Author: LegacyAuthor("{T-1}"), Text: "This cell holds a threaded discussion."},
		{Ref: "A1", Author: LegacyAuthor("{T-3}"), Text: "This cell holds a threaded discussion."},
	}))
	return p
}

func TestSaveOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, buildCommentedPackage(t).Save(path))

	got, err := Open(path)
	require.NoError(t, err)

	require.Equal(t, []string{"Index", "Pets_get"}, got.SheetNames())

	ws, ok := got.Sheet("Pets_get")
	require.True(t, ok)
	v, ok := ws.Cell("B12")
	require.True(t, ok)
	require.Equal(t, "A paged list of pets", v)
	require.True(t, ws.RowOccupied(12))
	require.False(t, ws.RowOccupied(13))

	am, ok := got.AnchorMap("Pets_get")
	require.True(t, ok)
	require.Len(t, am.Entries, 3)
	cell, ok := am.Cell("paths./pets.get.responses.200.description")
	require.True(t, ok)
	require.Equal(t, "B12", cell.Ref)
	row, ok := am.RowFor("paths./pets.get.responses.200")
	require.True(t, ok)
	require.Equal(t, 12, row.Row)

	threads := got.ThreadedComments("Pets_get")
	require.Len(t, threads, 3)
	require.Equal(t, "{T-1}", threads[0].ID)
	require.True(t, threads[0].IsRoot())
	require.True(t, threads[0].Done)
	require.Equal(t, "{T-1}", threads[1].ParentID)
	require.False(t, threads[1].Done)
	wantTime := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	require.True(t, threads[0].Time.Equal(wantTime), "got %v", threads[0].Time)

	legacy := got.LegacyComments("Pets_get")
	require.Len(t, legacy, 2)
	require.Equal(t, LegacyAuthor("{T-1}"), legacy[0].Author)
	require.Equal(t, "This cell holds a threaded discussion.", legacy[0].Text)

	persons := got.Persons()
	require.Len(t, persons, 2)
	require.Equal(t, "Alice Reviewer", persons[0].DisplayName)
	require.Equal(t, "alice@example.com", persons[0].UserID)
}

func TestSaveRejectsIncoherentPackages(t *testing.T) {
	at := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	person := Person{ID: "{P-1}", DisplayName: "Alice"}
	root := ThreadedComment{Ref: "B2", ID: "{T-1}", PersonID: "{P-1}", Time: at, Text: "root"}
	shadow := LegacyComment{Ref: "B2", Author: LegacyAuthor("{T-1}"), Text: "placeholder"}

	tests := []struct {
		name  string
		build func(p *Package)
	}{
		{"unknown person", func(p *Package) {
			p.SetPersons(nil)
			_ = p.SetThreadedComments("S", []ThreadedComment{root})
			_ = p.SetLegacyComments("S", []LegacyComment{shadow})
		}},
		{"reply before its root", func(p *Package) {
			p.SetPersons([]Person{person})
			_ = p.SetThreadedComments("S", []ThreadedComment{
				{Ref: "B2", ID: "{T-2}", ParentID: "{T-1}", PersonID: "{P-1}", Time: at, Text: "reply"},
				root,
			})
			_ = p.SetLegacyComments("S", []LegacyComment{shadow})
		}},
		{"reply on a different cell than its root", func(p *Package) {
			p.SetPersons([]Person{person})
			_ = p.SetThreadedComments("S", []ThreadedComment{
				root,
				{Ref: "C9", ID: "{T-2}", ParentID: "{T-1}", PersonID: "{P-1}", Time: at, Text: "reply"},
			})
			_ = p.SetLegacyComments("S", []LegacyComment{shadow})
		}},
		{"thread without legacy shadow", func(p *Package) {
			p.SetPersons([]Person{person})
			_ = p.SetThreadedComments("S", []ThreadedComment{root})
		}},
		{"legacy author not tied to root", func(p *Package) {
			p.SetPersons([]Person{person})
			_ = p.SetThreadedComments("S", []ThreadedComment{root})
			_ = p.SetLegacyComments("S", []LegacyComment{{Ref: "B2", Author: "Alice", Text: "placeholder"}})
		}},
		{"legacy comment shadowing nothing", func(p *Package) {
			p.SetPersons([]Person{person})
			_ = p.SetLegacyComments("S", []LegacyComment{shadow})
		}},
		{"legacy tied to the second root of a stacked cell", func(p *Package) {
			p.SetPersons([]Person{person})
			_ = p.SetThreadedComments("S", []ThreadedComment{
				root,
				{Ref: "B2", ID: "{T-9}", PersonID: "{P-1}", Time: at, Text: "second root"},
			})
			_ = p.SetLegacyComments("S", []LegacyComment{{Ref: "B2", Author: LegacyAuthor("{T-9}"), Text: "placeholder"}})
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := New()
			_, err := p.AddSheet("S")
			require.NoError(t, err)
			tc.build(p)
			err = p.Save(filepath.Join(t.TempDir(), "bad.xlsx"))
			require.Error(t, err)
		})
	}
}

func TestStackedRootsShareOneShadow(t *testing.T) {
	at := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	p := New()
	_, err := p.AddSheet("S")
	require.NoError(t, err)
	p.SetPersons([]Person{{ID: "{P-1}", DisplayName: "Alice"}})
	require.NoError(t, p.SetThreadedComments("S", []ThreadedComment{
		{Ref: "B2", ID: "{T-1}", PersonID: "{P-1}", Time: at, Text: "first thread"},
		{Ref: "B2", ID: "{T-2}", PersonID: "{P-1}", Time: at.Add(time.Minute), Text: "second thread"},
		{Ref: "B2", ID: "{T-3}", ParentID: "{T-2}", PersonID: "{P-1}", Time: at.Add(2 * time.Minute), Text: "reply"},
	}))
	require.NoError(t, p.SetLegacyComments("S", []LegacyComment{
		{Ref: "B2", Author: LegacyAuthor("{T-1}"), Text: "placeholder"},
	}))

	path := filepath.Join(t.TempDir(), "stacked.xlsx")
	require.NoError(t, p.Save(path))

	got, err := Open(path)
	require.NoError(t, err)
	require.Len(t, got.ThreadedComments("S"), 3)
	legacy := got.LegacyComments("S")
	require.Len(t, legacy, 1)
	require.Equal(t, LegacyAuthor("{T-1}"), legacy[0].Author)
}

func TestCommentPartsOmittedWithoutThreads(t *testing.T) {
	p := New()
	ws, err := p.AddSheet("Index")
	require.NoError(t, err)
	require.NoError(t, ws.SetCell("A1", "title"))

	path := filepath.Join(t.TempDir(), "plain.xlsx")
	require.NoError(t, p.Save(path))

	got, err := Open(path)
	require.NoError(t, err)
	require.Empty(t, got.Persons())
	for _, name := range got.PartNames() {
		switch {
		case name == "xl/persons/person.xml":
			t.Fatalf("person directory written for a workbook without threads")
		case filepath.Dir(name) == "xl/threadedComments":
			t.Fatalf("threaded comment part %s written for a workbook without threads", name)
		}
	}
}

func TestContentTypesDeclareEveryPart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, buildCommentedPackage(t).Save(path))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	var ct *contentTypes
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
		if f.Name != "[Content_Types].xml" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		ct, err = parseContentTypes(data)
		require.NoError(t, err)
	}
	require.NotNil(t, ct, "[Content_Types].xml missing from archive")

	wantOverrides := map[string]string{
		"/xl/workbook.xml":                           ctWorkbook,
		"/xl/worksheets/sheet1.xml":                  ctWorksheet,
		"/xl/worksheets/sheet2.xml":                  ctWorksheet,
		"/xl/styles.xml":                             ctStyles,
		"/xl/comments2.xml":                          ctComments,
		"/xl/threadedComments/threadedComment2.xml":  ctThreadedComments,
		"/xl/anchorMaps/anchorMap2.xml":              ctAnchorMap,
		"/xl/persons/person.xml":                     ctPerson,
	}
	for part, want := range wantOverrides {
		require.Equalf(t, want, ct.override(part), "content type of %s", part)
		require.Truef(t, names[part[1:]], "declared part %s missing from archive", part)
	}
	require.True(t, names["xl/drawings/vmlDrawing2.vml"], "VML drawing missing from archive")
}

func TestSaveIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.xlsx")
	b := filepath.Join(dir, "b.xlsx")
	require.NoError(t, buildCommentedPackage(t).Save(a))
	require.NoError(t, buildCommentedPackage(t).Save(b))

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	require.Equal(t, da, db, "two saves of the same content differ")
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, buildCommentedPackage(t).Save(filepath.Join(dir, "book.xlsx")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "book.xlsx", entries[0].Name())
}

func TestLegacyAuthorRoundTrip(t *testing.T) {
	author := LegacyAuthor("{ABC-123}")
	if author != "tc={ABC-123}" {
		t.Fatalf("LegacyAuthor = %q", author)
	}
	id, ok := RootIDFromLegacyAuthor(author)
	if !ok || id != "{ABC-123}" {
		t.Fatalf("RootIDFromLegacyAuthor = (%q, %v)", id, ok)
	}
	if _, ok := RootIDFromLegacyAuthor("Alice"); ok {
		t.Fatal("plain author string parsed as a root id")
	}
	if _, ok := RootIDFromLegacyAuthor("tc="); ok {
		t.Fatal("empty root id accepted")
	}
}

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		base, target, want string
	}{
		{"xl/worksheets/sheet1.xml", "../comments1.xml", "xl/comments1.xml"},
		{"xl/worksheets/sheet1.xml", "../threadedComments/threadedComment1.xml", "xl/threadedComments/threadedComment1.xml"},
		{"xl/workbook.xml", "worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"xl/workbook.xml", "/xl/styles.xml", "xl/styles.xml"},
		{"", "xl/workbook.xml", "xl/workbook.xml"},
	}
	for _, tc := range tests {
		if got := resolveTarget(tc.base, tc.target); got != tc.want {
			t.Errorf("resolveTarget(%q, %q) = %q, want %q", tc.base, tc.target, got, tc.want)
		}
	}
}

func TestCommentTimeLayouts(t *testing.T) {
	for _, s := range []string{
		"2026-01-15T10:30:00.00",
		"2026-01-15T10:30:00",
		"2026-01-15T10:30:00Z",
		"2026-01-15T10:30:00.000",
	} {
		got, err := parseCommentTime(s)
		if err != nil {
			t.Fatalf("parseCommentTime(%q): %v", s, err)
		}
		want := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Fatalf("parseCommentTime(%q) = %v, want %v", s, got, want)
		}
	}
	if _, err := parseCommentTime("yesterday"); err == nil {
		t.Fatal("malformed timestamp accepted")
	}
}
