package xlsxpkg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"

	"github.com/specbook/internal/mapping"
)

// Worksheet is the cell grid of one sheet. All values are strings; the
// writer emits them as inline strings so the package needs no shared-string
// table of its own.
type Worksheet struct {
	// Name is the sheet's display name, unique within the workbook.
	Name string

	rows map[int]map[int]string // row -> col -> value
}

func newWorksheet(name string) *Worksheet {
	return &Worksheet{Name: name, rows: make(map[int]map[int]string)}
}

// SetCell writes a string value at an A1 reference.
func (w *Worksheet) SetCell(ref, value string) error {
	col, row, err := mapping.ParseRef(ref)
	if err != nil {
		return err
	}
	w.SetCellRC(col, row, value)
	return nil
}

// SetCellRC writes a string value at a 1-based column and row.
func (w *Worksheet) SetCellRC(col, row int, value string) {
	if w.rows[row] == nil {
		w.rows[row] = make(map[int]string)
	}
	w.rows[row][col] = value
}

// Cell returns the value at an A1 reference and whether the cell holds one.
func (w *Worksheet) Cell(ref string) (string, bool) {
	col, row, err := mapping.ParseRef(ref)
	if err != nil {
		return "", false
	}
	v, ok := w.rows[row][col]
	return v, ok
}

// Occupied reports whether the cell at an A1 reference holds content.
func (w *Worksheet) Occupied(ref string) bool {
	_, ok := w.Cell(ref)
	return ok
}

// RowOccupied reports whether any cell of a 1-based row holds content.
func (w *Worksheet) RowOccupied(row int) bool {
	return len(w.rows[row]) > 0
}

// MaxRow returns the highest 1-based row holding content, 0 for an empty
// sheet.
func (w *Worksheet) MaxRow() int {
	max := 0
	for row := range w.rows {
		if row > max {
			max = row
		}
	}
	return max
}

// CellCount returns the number of cells holding content.
func (w *Worksheet) CellCount() int {
	n := 0
	for _, cols := range w.rows {
		n += len(cols)
	}
	return n
}

// marshal writes the worksheet part. legacyRID, when non-empty, is the
// relationship id of the sheet's VML drawing; the legacyDrawing element is
// what makes Excel render note indicators for the legacy comments.
func (w *Worksheet) marshal(legacyRID string) []byte {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">`)
	buf.WriteString(`<sheetData>`)

	rowNums := make([]int, 0, len(w.rows))
	for row := range w.rows {
		rowNums = append(rowNums, row)
	}
	sort.Ints(rowNums)
	for _, row := range rowNums {
		cols := make([]int, 0, len(w.rows[row]))
		for col := range w.rows[row] {
			cols = append(cols, col)
		}
		sort.Ints(cols)
		fmt.Fprintf(&buf, `<row r="%d">`, row)
		for _, col := range cols {
			ref := mapping.Ref(col, row)
			fmt.Fprintf(&buf, `<c r="%s" t="inlineStr"><is><t xml:space="preserve">%s</t></is></c>`, ref, escape(w.rows[row][col]))
		}
		buf.WriteString(`</row>`)
	}
	buf.WriteString(`</sheetData>`)
	if legacyRID != "" {
		fmt.Fprintf(&buf, `<legacyDrawing r:id="%s"/>`, legacyRID)
	}
	buf.WriteString(`</worksheet>`)
	return buf.Bytes()
}

// Parsing structures. Cells written by Excel itself may use the shared-string
// table (t="s"), so the parser takes the resolved table alongside the part.
type xmlWorksheet struct {
	XMLName   xml.Name     `xml:"worksheet"`
	SheetData xmlSheetData `xml:"sheetData"`
}

type xmlSheetData struct {
	Rows []xmlRow `xml:"row"`
}

type xmlRow struct {
	R     int       `xml:"r,attr"`
	Cells []xmlCell `xml:"c"`
}

type xmlCell struct {
	R  string        `xml:"r,attr"`
	T  string        `xml:"t,attr"`
	V  string        `xml:"v"`
	IS *xmlInlineStr `xml:"is"`
}

type xmlInlineStr struct {
	T    string   `xml:"t"`
	Runs []xmlRun `xml:"r"`
}

type xmlRun struct {
	T string `xml:"t"`
}

func parseWorksheet(name string, data []byte, shared []string) (*Worksheet, error) {
	var doc xmlWorksheet
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse worksheet %q: %w", name, err)
	}
	w := newWorksheet(name)
	for _, row := range doc.SheetData.Rows {
		for _, cell := range row.Cells {
			col, r, err := mapping.ParseRef(cell.R)
			if err != nil {
				return nil, fmt.Errorf("worksheet %q holds bad cell reference %q: %w", name, cell.R, err)
			}
			value, ok := cellValue(cell, shared)
			if !ok {
				continue
			}
			w.SetCellRC(col, r, value)
		}
	}
	return w, nil
}

func cellValue(cell xmlCell, shared []string) (string, bool) {
	switch cell.T {
	case "inlineStr":
		if cell.IS == nil {
			return "", false
		}
		if len(cell.IS.Runs) > 0 {
			var out string
			for _, run := range cell.IS.Runs {
				out += run.T
			}
			return out, true
		}
		return cell.IS.T, true
	case "s":
		idx, err := strconv.Atoi(cell.V)
		if err != nil || idx < 0 || idx >= len(shared) {
			return "", false
		}
		return shared[idx], true
	default:
		// Numbers, booleans and formula results all surface through v.
		if cell.V == "" {
			return "", false
		}
		return cell.V, true
	}
}

// parseSharedStrings resolves the workbook's shared-string table; foreign
// packages edited by Excel carry one even though ours never do.
func parseSharedStrings(data []byte) ([]string, error) {
	var doc struct {
		XMLName xml.Name `xml:"sst"`
		Items   []struct {
			T    string   `xml:"t"`
			Runs []xmlRun `xml:"r"`
		} `xml:"si"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse shared strings: %w", err)
	}
	out := make([]string, 0, len(doc.Items))
	for _, item := range doc.Items {
		s := item.T
		for _, run := range item.Runs {
			s += run.T
		}
		out = append(out, s)
	}
	return out, nil
}
