package xlsxpkg

import (
	"encoding/xml"
	"fmt"
	"time"
)

// ThreadedComment is one message of the rich comment store. Roots carry an
// empty ParentID; replies point at their root. Done is only meaningful on
// roots.
type ThreadedComment struct {
	Ref      string
	ID       string
	ParentID string
	PersonID string
	Time     time.Time
	Done     bool
	Text     string
}

// IsRoot reports whether the comment starts a thread.
func (tc ThreadedComment) IsRoot() bool {
	return tc.ParentID == ""
}

const threadedCommentTimeLayout = "2006-01-02T15:04:05.00"

// threadedCommentTimeLayouts covers the timestamp spellings Excel and other
// producers emit.
var threadedCommentTimeLayouts = []string{
	threadedCommentTimeLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05.000",
}

func formatCommentTime(t time.Time) string {
	return t.UTC().Format(threadedCommentTimeLayout)
}

func parseCommentTime(s string) (time.Time, error) {
	for _, layout := range threadedCommentTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized comment timestamp %q", s)
}

type xmlThreadedComment struct {
	Ref      string `xml:"ref,attr"`
	DT       string `xml:"dT,attr"`
	PersonID string `xml:"personId,attr"`
	ID       string `xml:"id,attr"`
	ParentID string `xml:"parentId,attr,omitempty"`
	Done     string `xml:"done,attr,omitempty"`
	Text     string `xml:"text"`
}

type xmlThreadedComments struct {
	XMLName  xml.Name             `xml:"http://schemas.microsoft.com/office/spreadsheetml/2018/threadedcomments ThreadedComments"`
	Comments []xmlThreadedComment `xml:"threadedComment"`
}

func marshalThreadedComments(comments []ThreadedComment) ([]byte, error) {
	doc := xmlThreadedComments{}
	for _, tc := range comments {
		entry := xmlThreadedComment{
			Ref:      tc.Ref,
			DT:       formatCommentTime(tc.Time),
			PersonID: tc.PersonID,
			ID:       tc.ID,
			ParentID: tc.ParentID,
			Text:     tc.Text,
		}
		if tc.Done && tc.IsRoot() {
			entry.Done = "1"
		}
		doc.Comments = append(doc.Comments, entry)
	}
	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal threaded comments: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func parseThreadedComments(data []byte) ([]ThreadedComment, error) {
	var doc xmlThreadedComments
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse threaded comments part: %w", err)
	}
	out := make([]ThreadedComment, 0, len(doc.Comments))
	for _, entry := range doc.Comments {
		tc := ThreadedComment{
			Ref:      entry.Ref,
			ID:       entry.ID,
			ParentID: entry.ParentID,
			PersonID: entry.PersonID,
			Done:     entry.Done == "1",
			Text:     entry.Text,
		}
		if entry.DT != "" {
			t, err := parseCommentTime(entry.DT)
			if err != nil {
				return nil, fmt.Errorf("threaded comment %s: %w", entry.ID, err)
			}
			tc.Time = t
		}
		out = append(out, tc)
	}
	return out, nil
}
