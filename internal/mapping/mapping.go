// Package mapping records where each semantic anchor landed on the generated
// workbook. The generator registers entries while it writes cells; the
// migration engine reads them back (from the workbook's anchor-map parts) to
// re-locate discussions after a regeneration.
package mapping

import (
	"sort"

	"github.com/specbook/internal/anchor"
)

// Kind distinguishes the two shapes a mapping entry can take.
type Kind string

const (
	// KindCell maps an anchor to a single cell.
	KindCell Kind = "cell"
	// KindRow maps an anchor to an entire row; placements against it keep
	// the original column of the message being moved.
	KindRow Kind = "row"
)

// Entry ties one anchor to one location on a sheet. Cell entries carry Ref;
// row entries carry Row.
type Entry struct {
	Anchor string
	Kind   Kind
	Ref    string // A1 reference, cell entries only
	Row    int    // 1-based, row entries only
}

// Sheet holds every mapping registered for one worksheet, in registration
// order.
type Sheet struct {
	Name    string
	Entries []Entry
}

// Cell returns the cell entry for an anchor, if one exists.
func (s *Sheet) Cell(a string) (Entry, bool) {
	for _, e := range s.Entries {
		if e.Kind == KindCell && e.Anchor == a {
			return e, true
		}
	}
	return Entry{}, false
}

// RowFor returns the row entry for an anchor, if one exists.
func (s *Sheet) RowFor(a string) (Entry, bool) {
	for _, e := range s.Entries {
		if e.Kind == KindRow && e.Anchor == a {
			return e, true
		}
	}
	return Entry{}, false
}

// AnchorAt resolves the anchor covering a cell: an exact cell entry wins,
// otherwise a row entry for the cell's row. Returns "" when nothing covers it.
func (s *Sheet) AnchorAt(ref string) string {
	for _, e := range s.Entries {
		if e.Kind == KindCell && e.Ref == ref {
			return e.Anchor
		}
	}
	row := RowOf(ref)
	if row == 0 {
		return ""
	}
	for _, e := range s.Entries {
		if e.Kind == KindRow && e.Row == row {
			return e.Anchor
		}
	}
	return ""
}

// HeadingRows returns the rows of every heading entry, ascending.
func (s *Sheet) HeadingRows() []int {
	var rows []int
	for _, e := range s.Entries {
		if e.Kind != KindRow || !anchor.IsHeading(e.Anchor) {
			continue
		}
		rows = append(rows, e.Row)
	}
	sort.Ints(rows)
	return rows
}

// Context accumulates mappings across every sheet of one generation run.
// An anchor maps to at most one location per sheet; later registrations of
// an already-registered anchor are dropped so the first placement stays
// authoritative.
type Context struct {
	sheets map[string]*Sheet
	order  []string
	seen   map[string]map[string]bool // sheet -> anchor -> registered
}

// NewContext returns an empty mapping context.
func NewContext() *Context {
	return &Context{
		sheets: make(map[string]*Sheet),
		seen:   make(map[string]map[string]bool),
	}
}

func (c *Context) sheet(name string) *Sheet {
	s, ok := c.sheets[name]
	if !ok {
		s = &Sheet{Name: name}
		c.sheets[name] = s
		c.order = append(c.order, name)
		c.seen[name] = make(map[string]bool)
	}
	return s
}

// AddCell registers a cell-level mapping on a sheet.
func (c *Context) AddCell(sheetName, ref, a string) {
	if a == "" || ref == "" {
		return
	}
	s := c.sheet(sheetName)
	if c.seen[sheetName][a] {
		return
	}
	c.seen[sheetName][a] = true
	s.Entries = append(s.Entries, Entry{Anchor: a, Kind: KindCell, Ref: ref})
}

// AddRow registers a row-level mapping on a sheet.
func (c *Context) AddRow(sheetName string, row int, a string) {
	if a == "" || row < 1 {
		return
	}
	s := c.sheet(sheetName)
	if c.seen[sheetName][a] {
		return
	}
	c.seen[sheetName][a] = true
	s.Entries = append(s.Entries, Entry{Anchor: a, Kind: KindRow, Row: row})
}

// Sheet returns the mapping for one sheet, if any was registered.
func (c *Context) Sheet(name string) (*Sheet, bool) {
	s, ok := c.sheets[name]
	return s, ok
}

// Sheets returns every sheet mapping in registration order.
func (c *Context) Sheets() []*Sheet {
	out := make([]*Sheet, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.sheets[name])
	}
	return out
}

// Find locates an anchor anywhere in the context. Cell entries take
// precedence over row entries; within each kind, sheets are scanned in
// registration order so resolution stays deterministic.
func (c *Context) Find(a string) (sheetName string, e Entry, ok bool) {
	for _, name := range c.order {
		if found, hit := c.sheets[name].Cell(a); hit {
			return name, found, true
		}
	}
	for _, name := range c.order {
		if found, hit := c.sheets[name].RowFor(a); hit {
			return name, found, true
		}
	}
	return "", Entry{}, false
}

// FromSheets rebuilds a context from parsed sheet mappings, preserving their
// order. Used when the mappings come from a workbook's anchor-map parts
// rather than a live generation run.
func FromSheets(sheets []*Sheet) *Context {
	c := NewContext()
	for _, s := range sheets {
		for _, e := range s.Entries {
			switch e.Kind {
			case KindCell:
				c.AddCell(s.Name, e.Ref, e.Anchor)
			case KindRow:
				c.AddRow(s.Name, e.Row, e.Anchor)
			}
		}
	}
	return c
}
