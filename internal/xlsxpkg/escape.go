package xlsxpkg

import (
	"bytes"
	"encoding/xml"
)

// escape returns s with XML special characters replaced, safe for both
// element text and attribute values.
func escape(s string) string {
	var buf bytes.Buffer
	// EscapeText only fails on a failing writer; bytes.Buffer never does.
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
