package xlsxpkg

import (
	"bytes"
	"fmt"

	"github.com/specbook/internal/mapping"
)

// VML drawing parts carry one hidden note shape per commented cell; without
// them Excel shows no comment indicator at all. The markup predates OOXML,
// so it is assembled textually rather than through encoding/xml.

const vmlHeader = `<xml xmlns:v="urn:schemas-microsoft-com:vml" xmlns:o="urn:schemas-microsoft-com:office:office" xmlns:x="urn:schemas-microsoft-com:office:excel">` +
	`<o:shapelayout v:ext="edit"><o:idmap v:ext="edit" data="1"/></o:shapelayout>` +
	`<v:shapetype id="_x0000_t202" coordsize="21600,21600" o:spt="202" path="m,l,21600r21600,l21600,xe">` +
	`<v:stroke joinstyle="miter"/><v:path gradientshapeok="t" o:connecttype="rect"/></v:shapetype>`

// marshalVMLDrawing renders note shapes for the given cell references.
// Shape ids start at idBase+1 and increase monotonically in ref order.
func marshalVMLDrawing(refs []string, idBase int) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(vmlHeader)
	for i, ref := range refs {
		col, row, err := mapping.ParseRef(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to render note shape for %q: %w", ref, err)
		}
		// ClientData rows and columns are zero-based; the anchor box sits
		// one column to the right of the commented cell.
		fmt.Fprintf(&buf, `<v:shape id="_x0000_s%d" type="#_x0000_t202" style="position:absolute;margin-left:59.25pt;margin-top:1.5pt;width:108pt;height:59.25pt;z-index:%d;visibility:hidden" fillcolor="#ffffe1" o:insetmode="auto">`,
			idBase+i+1, i+1)
		buf.WriteString(`<v:fill color2="#ffffe1"/><v:shadow color="black" obscured="t"/><v:path o:connecttype="none"/>`)
		buf.WriteString(`<v:textbox style="mso-direction-alt:auto"/>`)
		buf.WriteString(`<x:ClientData ObjectType="Note"><x:MoveWithCells/><x:SizeWithCells/>`)
		fmt.Fprintf(&buf, `<x:Anchor>%d, 15, %d, 10, %d, 15, %d, 4</x:Anchor>`, col, row-1, col+2, row+3)
		buf.WriteString(`<x:AutoFill>False</x:AutoFill>`)
		fmt.Fprintf(&buf, `<x:Row>%d</x:Row><x:Column>%d</x:Column>`, row-1, col-1)
		buf.WriteString(`</x:ClientData></v:shape>`)
	}
	buf.WriteString(`</xml>`)
	return buf.Bytes(), nil
}
