package xlsxpkg

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// Relationship types wired between parts. Threaded comments and the person
// directory use the 2017 Microsoft extension namespace; the anchor-map parts
// use our own.
const (
	relOfficeDocument  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relWorksheet       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet"
	relStyles          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	relSharedStrings   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/sharedStrings"
	relComments        = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/comments"
	relVMLDrawing      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/vmlDrawing"
	relThreadedComment = "http://schemas.microsoft.com/office/2017/10/relationships/threadedComment"
	relPerson          = "http://schemas.microsoft.com/office/2017/10/relationships/person"
	relAnchorMap       = "http://specbook.dev/relationships/anchorMap"
)

// relationship is one entry of a .rels part.
type relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

type relationshipsXML struct {
	XMLName xml.Name       `xml:"http://schemas.openxmlformats.org/package/2006/relationships Relationships"`
	Rels    []relationship `xml:"Relationship"`
}

// relationships manages one part's outgoing relationships and hands out
// sequential rId identifiers.
type relationships struct {
	rels []relationship
}

func newRelationships() *relationships {
	return &relationships{}
}

// add appends a relationship and returns its assigned identifier.
func (r *relationships) add(relType, target string) string {
	id := r.nextID()
	r.rels = append(r.rels, relationship{ID: id, Type: relType, Target: target})
	return id
}

func (r *relationships) nextID() string {
	max := 0
	for _, rel := range r.rels {
		n, err := strconv.Atoi(strings.TrimPrefix(rel.ID, "rId"))
		if err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("rId%d", max+1)
}

// byType returns every relationship of the given type, in declaration order.
func (r *relationships) byType(relType string) []relationship {
	var out []relationship
	for _, rel := range r.rels {
		if rel.Type == relType {
			out = append(out, rel)
		}
	}
	return out
}

// byID returns the relationship with the given identifier.
func (r *relationships) byID(id string) (relationship, bool) {
	for _, rel := range r.rels {
		if rel.ID == id {
			return rel, true
		}
	}
	return relationship{}, false
}

func (r *relationships) empty() bool {
	return len(r.rels) == 0
}

func (r *relationships) marshal() ([]byte, error) {
	doc := relationshipsXML{Rels: r.rels}
	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal relationships: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func parseRelationships(data []byte) (*relationships, error) {
	var doc relationshipsXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse relationships part: %w", err)
	}
	return &relationships{rels: doc.Rels}, nil
}

// resolveTarget turns a relationship target relative to a base part into a
// package-absolute part name without the leading slash, e.g. base
// "xl/worksheets/sheet1.xml" with target "../comments1.xml" resolves to
// "xl/comments1.xml".
func resolveTarget(basePart, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	dir := ""
	if i := strings.LastIndex(basePart, "/"); i >= 0 {
		dir = basePart[:i]
	}
	segs := []string{}
	if dir != "" {
		segs = strings.Split(dir, "/")
	}
	for _, part := range strings.Split(target, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(segs) > 0 {
				segs = segs[:len(segs)-1]
			}
		default:
			segs = append(segs, part)
		}
	}
	return strings.Join(segs, "/")
}
