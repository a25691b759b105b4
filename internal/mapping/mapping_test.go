package mapping

import (
	"testing"

	"github.com/specbook/internal/anchor"
)

func buildContext() *Context {
	c := NewContext()
	c.AddCell("Index", "A1", anchor.InfoTitle())
	c.AddRow("Index", 3, anchor.Heading(anchor.Paths()))
	c.AddRow("Index", 4, anchor.Operation("/pets", "get"))
	c.AddRow("Pets_get", 1, anchor.Heading(anchor.Operation("/pets", "get")))
	c.AddRow("Pets_get", 10, anchor.Heading(anchor.Responses("/pets", "get")))
	c.AddRow("Pets_get", 12, anchor.Response("/pets", "get", "200"))
	c.AddCell("Pets_get", "B12", anchor.ResponseDescription("/pets", "get", "200"))
	return c
}

func TestAnchorAt(t *testing.T) {
	c := buildContext()
	s, ok := c.Sheet("Pets_get")
	if !ok {
		t.Fatal("sheet Pets_get not registered")
	}
	if got := s.AnchorAt("B12"); got != "paths./pets.get.responses.200.description" {
		t.Fatalf("AnchorAt(B12) = %q, want cell-level anchor", got)
	}
	if got := s.AnchorAt("A12"); got != "paths./pets.get.responses.200" {
		t.Fatalf("AnchorAt(A12) = %q, want row-level anchor", got)
	}
	if got := s.AnchorAt("D99"); got != "" {
		t.Fatalf("AnchorAt(D99) = %q, want empty", got)
	}
}

func TestFindPrefersCellEntries(t *testing.T) {
	c := buildContext()
	sheet, e, ok := c.Find("paths./pets.get.responses.200.description")
	if !ok || sheet != "Pets_get" || e.Kind != KindCell || e.Ref != "B12" {
		t.Fatalf("Find cell entry = (%q, %+v, %v)", sheet, e, ok)
	}
	sheet, e, ok = c.Find("paths./pets.get.responses.200")
	if !ok || sheet != "Pets_get" || e.Kind != KindRow || e.Row != 12 {
		t.Fatalf("Find row entry = (%q, %+v, %v)", sheet, e, ok)
	}
	if _, _, ok := c.Find("paths./gone.get"); ok {
		t.Fatal("Find located an unregistered anchor")
	}
}

func TestDuplicateAnchorKeepsFirstLocation(t *testing.T) {
	c := NewContext()
	c.AddRow("S", 5, "paths./pets.get")
	c.AddRow("S", 9, "paths./pets.get")
	c.AddCell("S", "C3", "paths./pets.get")
	s, _ := c.Sheet("S")
	if len(s.Entries) != 1 {
		t.Fatalf("duplicate anchor produced %d entries, want 1", len(s.Entries))
	}
	if e := s.Entries[0]; e.Kind != KindRow || e.Row != 5 {
		t.Fatalf("first registration lost: %+v", e)
	}
}

func TestHeadingRows(t *testing.T) {
	c := buildContext()
	s, _ := c.Sheet("Pets_get")
	rows := s.HeadingRows()
	if len(rows) != 2 || rows[0] != 1 || rows[1] != 10 {
		t.Fatalf("HeadingRows = %v, want [1 10]", rows)
	}
}

func TestFromSheetsRoundTrip(t *testing.T) {
	c := buildContext()
	rebuilt := FromSheets(c.Sheets())
	want := c.Sheets()
	got := rebuilt.Sheets()
	if len(got) != len(want) {
		t.Fatalf("sheet count %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Name != want[i].Name {
			t.Fatalf("sheet order changed: %q vs %q", got[i].Name, want[i].Name)
		}
		if len(got[i].Entries) != len(want[i].Entries) {
			t.Fatalf("sheet %s entry count %d, want %d", want[i].Name, len(got[i].Entries), len(want[i].Entries))
		}
		for j := range want[i].Entries {
			if got[i].Entries[j] != want[i].Entries[j] {
				t.Fatalf("entry %d on %s = %+v, want %+v", j, want[i].Name, got[i].Entries[j], want[i].Entries[j])
			}
		}
	}
}
