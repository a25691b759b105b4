package xlsxpkg

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
)

// Content types declared in [Content_Types].xml. Excel refuses to open a
// package whose parts are not declared here, so every writer in this package
// registers its part before Save.
const (
	ctRelationships    = "application/vnd.openxmlformats-package.relationships+xml"
	ctXML              = "application/xml"
	ctVMLDrawing       = "application/vnd.openxmlformats-officedocument.vmlDrawing"
	ctWorkbook         = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"
	ctWorksheet        = "application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"
	ctStyles           = "application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml"
	ctComments         = "application/vnd.openxmlformats-officedocument.spreadsheetml.comments+xml"
	ctThreadedComments = "application/vnd.ms-excel.threadedcomments+xml"
	ctPerson           = "application/vnd.ms-excel.person+xml"
	ctAnchorMap        = "application/vnd.specbook.anchormap+xml"
)

type ctDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type ctOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type ctTypes struct {
	XMLName   xml.Name     `xml:"http://schemas.openxmlformats.org/package/2006/content-types Types"`
	Defaults  []ctDefault  `xml:"Default"`
	Overrides []ctOverride `xml:"Override"`
}

// contentTypes tracks the extension defaults and per-part overrides of one
// package.
type contentTypes struct {
	defaults  map[string]string // extension -> content type
	overrides map[string]string // part name (leading slash) -> content type
}

func newContentTypes() *contentTypes {
	ct := &contentTypes{
		defaults:  make(map[string]string),
		overrides: make(map[string]string),
	}
	ct.setDefault("rels", ctRelationships)
	ct.setDefault("xml", ctXML)
	return ct
}

func (ct *contentTypes) setDefault(ext, contentType string) {
	ct.defaults[strings.ToLower(ext)] = contentType
}

// setOverride declares the content type of one part. partName must carry the
// leading slash OPC requires.
func (ct *contentTypes) setOverride(partName, contentType string) {
	ct.overrides[partName] = contentType
}

func (ct *contentTypes) override(partName string) string {
	return ct.overrides[partName]
}

func (ct *contentTypes) marshal() ([]byte, error) {
	doc := ctTypes{}
	exts := make([]string, 0, len(ct.defaults))
	for ext := range ct.defaults {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		doc.Defaults = append(doc.Defaults, ctDefault{Extension: ext, ContentType: ct.defaults[ext]})
	}
	parts := make([]string, 0, len(ct.overrides))
	for part := range ct.overrides {
		parts = append(parts, part)
	}
	sort.Strings(parts)
	for _, part := range parts {
		doc.Overrides = append(doc.Overrides, ctOverride{PartName: part, ContentType: ct.overrides[part]})
	}
	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal content types: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func parseContentTypes(data []byte) (*contentTypes, error) {
	var doc ctTypes
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse [Content_Types].xml: %w", err)
	}
	ct := &contentTypes{
		defaults:  make(map[string]string),
		overrides: make(map[string]string),
	}
	for _, d := range doc.Defaults {
		ct.setDefault(d.Extension, d.ContentType)
	}
	for _, o := range doc.Overrides {
		ct.setOverride(o.PartName, o.ContentType)
	}
	return ct, nil
}
