package xlsxpkg

import (
	"encoding/xml"
	"fmt"

	"github.com/specbook/internal/mapping"
)

// Anchor-map parts record which semantic anchor each generated cell or row
// came from. They ride inside the package so a later migration run can read
// the placement of the workbook it regenerates against.

type xmlAnchorEntry struct {
	Anchor string `xml:"anchor,attr"`
	Ref    string `xml:"ref,attr,omitempty"`
	Row    int    `xml:"row,attr,omitempty"`
}

type xmlAnchorMap struct {
	XMLName xml.Name         `xml:"http://specbook.dev/anchormap anchorMap"`
	Sheet   string           `xml:"sheet,attr"`
	Entries []xmlAnchorEntry `xml:"map"`
}

func marshalAnchorMap(sheet *mapping.Sheet) ([]byte, error) {
	doc := xmlAnchorMap{Sheet: sheet.Name}
	for _, e := range sheet.Entries {
		entry := xmlAnchorEntry{Anchor: e.Anchor}
		switch e.Kind {
		case mapping.KindCell:
			entry.Ref = e.Ref
		case mapping.KindRow:
			entry.Row = e.Row
		default:
			return nil, fmt.Errorf("anchor map for %q holds entry of unknown kind %q", sheet.Name, e.Kind)
		}
		doc.Entries = append(doc.Entries, entry)
	}
	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal anchor map for %q: %w", sheet.Name, err)
	}
	return append([]byte(xml.Header), body...), nil
}

func parseAnchorMap(data []byte) (*mapping.Sheet, error) {
	var doc xmlAnchorMap
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse anchor map part: %w", err)
	}
	sheet := &mapping.Sheet{Name: doc.Sheet}
	for _, entry := range doc.Entries {
		switch {
		case entry.Ref != "":
			sheet.Entries = append(sheet.Entries, mapping.Entry{
				Anchor: entry.Anchor,
				Kind:   mapping.KindCell,
				Ref:    entry.Ref,
			})
		case entry.Row > 0:
			sheet.Entries = append(sheet.Entries, mapping.Entry{
				Anchor: entry.Anchor,
				Kind:   mapping.KindRow,
				Row:    entry.Row,
			})
		default:
			return nil, fmt.Errorf("anchor map for %q holds entry %q with neither ref nor row", doc.Sheet, entry.Anchor)
		}
	}
	return sheet, nil
}
