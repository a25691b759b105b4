package xlsxpkg

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// LegacyComment is one entry of the classic comments part, the shadow store
// old spreadsheet clients read. Modern clients key the matching thread off
// the author string, which carries the root comment's identifier.
type LegacyComment struct {
	Ref    string
	Author string
	Text   string
}

func marshalLegacyComments(comments []LegacyComment) []byte {
	authors := make([]string, 0, len(comments))
	authorIdx := make(map[string]int)
	for _, c := range comments {
		if _, ok := authorIdx[c.Author]; !ok {
			authorIdx[c.Author] = len(authors)
			authors = append(authors, c.Author)
		}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<comments xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">`)
	buf.WriteString(`<authors>`)
	for _, a := range authors {
		fmt.Fprintf(&buf, `<author>%s</author>`, escape(a))
	}
	buf.WriteString(`</authors>`)
	buf.WriteString(`<commentList>`)
	for _, c := range comments {
		fmt.Fprintf(&buf, `<comment ref="%s" authorId="%d" shapeId="0">`, escape(c.Ref), authorIdx[c.Author])
		fmt.Fprintf(&buf, `<text><r><t xml:space="preserve">%s</t></r></text>`, escape(c.Text))
		buf.WriteString(`</comment>`)
	}
	buf.WriteString(`</commentList>`)
	buf.WriteString(`</comments>`)
	return buf.Bytes()
}

type xmlComments struct {
	XMLName xml.Name `xml:"comments"`
	Authors []string `xml:"authors>author"`
	List    []struct {
		Ref      string `xml:"ref,attr"`
		AuthorID int    `xml:"authorId,attr"`
		Text     struct {
			T    string   `xml:"t"`
			Runs []string `xml:"r>t"`
		} `xml:"text"`
	} `xml:"commentList>comment"`
}

func parseLegacyComments(data []byte) ([]LegacyComment, error) {
	var doc xmlComments
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse comments part: %w", err)
	}
	out := make([]LegacyComment, 0, len(doc.List))
	for _, entry := range doc.List {
		c := LegacyComment{Ref: entry.Ref}
		if entry.AuthorID >= 0 && entry.AuthorID < len(doc.Authors) {
			c.Author = doc.Authors[entry.AuthorID]
		}
		c.Text = entry.Text.T
		for _, run := range entry.Text.Runs {
			c.Text += run
		}
		out = append(out, c)
	}
	return out, nil
}
