// Package xlsxpkg reads and writes the workbook packages the generator and
// the migration engine exchange: zip archives of XML parts in the OPC layout
// spreadsheet clients expect. Alongside the standard worksheet, comment and
// person parts it carries the anchor-map parts that record where each
// semantic anchor landed, which is what makes discussion migration possible
// after a regeneration.
//
// The package is deliberately whole-in-memory: a workbook is opened or built,
// mutated, validated, and written in a single Save. There is no streaming
// mode and no partial flush, so a failed run never leaves a half-written
// workbook behind.
package xlsxpkg

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/specbook/internal/mapping"
)

// maxSheetNameLen is the sheet name limit spreadsheet clients enforce.
const maxSheetNameLen = 31

const stylesPart = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<styleSheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">` +
	`<fonts count="1"><font><sz val="11"/><name val="Calibri"/></font></fonts>` +
	`<fills count="2"><fill><patternFill patternType="none"/></fill><fill><patternFill patternType="gray125"/></fill></fills>` +
	`<borders count="1"><border><left/><right/><top/><bottom/><diagonal/></border></borders>` +
	`<cellStyleXfs count="1"><xf numFmtId="0" fontId="0" fillId="0" borderId="0"/></cellStyleXfs>` +
	`<cellXfs count="1"><xf numFmtId="0" fontId="0" fillId="0" borderId="0" xfId="0"/></cellXfs>` +
	`</styleSheet>`

// sheetDoc bundles one worksheet with the per-sheet stores that hang off it.
type sheetDoc struct {
	ws        *Worksheet
	anchorMap *mapping.Sheet
	threaded  []ThreadedComment
	legacy    []LegacyComment
}

// Package is one workbook package held fully in memory.
type Package struct {
	sheets  []*sheetDoc
	persons []Person

	// partNames lists the archive entries seen at Open time, for inspection.
	partNames []string
}

// New returns an empty package with no sheets.
func New() *Package {
	return &Package{}
}

// AddSheet appends a worksheet. Sheet names must be non-empty, unique and
// within the length spreadsheet clients accept.
func (p *Package) AddSheet(name string) (*Worksheet, error) {
	if name == "" {
		return nil, fmt.Errorf("sheet name must not be empty")
	}
	if len(name) > maxSheetNameLen {
		return nil, fmt.Errorf("sheet name %q exceeds %d characters", name, maxSheetNameLen)
	}
	if strings.ContainsAny(name, `[]:*?/\`) {
		return nil, fmt.Errorf("sheet name %q holds characters spreadsheet clients reject", name)
	}
	if _, ok := p.Sheet(name); ok {
		return nil, fmt.Errorf("sheet %q already exists", name)
	}
	ws := newWorksheet(name)
	p.sheets = append(p.sheets, &sheetDoc{ws: ws})
	return ws, nil
}

// Sheet returns the worksheet with the given name.
func (p *Package) Sheet(name string) (*Worksheet, bool) {
	for _, sd := range p.sheets {
		if sd.ws.Name == name {
			return sd.ws, true
		}
	}
	return nil, false
}

// Sheets returns every worksheet in workbook order.
func (p *Package) Sheets() []*Worksheet {
	out := make([]*Worksheet, 0, len(p.sheets))
	for _, sd := range p.sheets {
		out = append(out, sd.ws)
	}
	return out
}

// SheetNames returns the sheet names in workbook order.
func (p *Package) SheetNames() []string {
	out := make([]string, 0, len(p.sheets))
	for _, sd := range p.sheets {
		out = append(out, sd.ws.Name)
	}
	return out
}

func (p *Package) doc(sheetName string) (*sheetDoc, error) {
	for _, sd := range p.sheets {
		if sd.ws.Name == sheetName {
			return sd, nil
		}
	}
	return nil, fmt.Errorf("sheet %q not found", sheetName)
}

// SetAnchorMap attaches a sheet's anchor map, replacing any previous one.
func (p *Package) SetAnchorMap(sheetName string, m *mapping.Sheet) error {
	sd, err := p.doc(sheetName)
	if err != nil {
		return fmt.Errorf("failed to attach anchor map: %w", err)
	}
	sd.anchorMap = m
	return nil
}

// AnchorMap returns a sheet's anchor map, if it carries one.
func (p *Package) AnchorMap(sheetName string) (*mapping.Sheet, bool) {
	sd, err := p.doc(sheetName)
	if err != nil || sd.anchorMap == nil {
		return nil, false
	}
	return sd.anchorMap, true
}

// AnchorMaps returns every sheet's anchor map in workbook order, skipping
// sheets without one.
func (p *Package) AnchorMaps() []*mapping.Sheet {
	var out []*mapping.Sheet
	for _, sd := range p.sheets {
		if sd.anchorMap != nil {
			out = append(out, sd.anchorMap)
		}
	}
	return out
}

// SetThreadedComments attaches a sheet's threaded comments in the given
// order. Save enforces that roots precede their replies.
func (p *Package) SetThreadedComments(sheetName string, comments []ThreadedComment) error {
	sd, err := p.doc(sheetName)
	if err != nil {
		return fmt.Errorf("failed to attach threaded comments: %w", err)
	}
	sd.threaded = comments
	return nil
}

// ThreadedComments returns a sheet's threaded comments in stored order.
func (p *Package) ThreadedComments(sheetName string) []ThreadedComment {
	sd, err := p.doc(sheetName)
	if err != nil {
		return nil
	}
	return sd.threaded
}

// SetLegacyComments attaches a sheet's legacy shadow comments.
func (p *Package) SetLegacyComments(sheetName string, comments []LegacyComment) error {
	sd, err := p.doc(sheetName)
	if err != nil {
		return fmt.Errorf("failed to attach legacy comments: %w", err)
	}
	sd.legacy = comments
	return nil
}

// LegacyComments returns a sheet's legacy shadow comments.
func (p *Package) LegacyComments(sheetName string) []LegacyComment {
	sd, err := p.doc(sheetName)
	if err != nil {
		return nil
	}
	return sd.legacy
}

// SetPersons replaces the workbook's participant directory.
func (p *Package) SetPersons(persons []Person) {
	p.persons = persons
}

// Persons returns the workbook's participant directory.
func (p *Package) Persons() []Person {
	return p.persons
}

// PartNames returns the archive entries seen when the package was opened,
// sorted. Empty for packages built in memory.
func (p *Package) PartNames() []string {
	return p.partNames
}

// Validate checks the cross-part invariants a coherent comment package must
// hold. Save refuses to write a package that fails it.
func (p *Package) Validate() error {
	personIDs := make(map[string]bool, len(p.persons))
	for _, person := range p.persons {
		if person.ID == "" {
			return fmt.Errorf("person %q has an empty id", person.DisplayName)
		}
		if personIDs[person.ID] {
			return fmt.Errorf("person id %s appears twice in the directory", person.ID)
		}
		personIDs[person.ID] = true
	}

	for _, sd := range p.sheets {
		rootByRef := make(map[string]ThreadedComment)
		seen := make(map[string]ThreadedComment)
		for _, tc := range sd.threaded {
			if tc.ID == "" {
				return fmt.Errorf("sheet %q: threaded comment at %s has an empty id", sd.ws.Name, tc.Ref)
			}
			if _, dup := seen[tc.ID]; dup {
				return fmt.Errorf("sheet %q: threaded comment id %s appears twice", sd.ws.Name, tc.ID)
			}
			if _, _, err := mapping.ParseRef(tc.Ref); err != nil {
				return fmt.Errorf("sheet %q: threaded comment %s: %w", sd.ws.Name, tc.ID, err)
			}
			if !personIDs[tc.PersonID] {
				return fmt.Errorf("sheet %q: threaded comment %s references unknown person %s", sd.ws.Name, tc.ID, tc.PersonID)
			}
			if tc.IsRoot() {
				// A cell may root several threads when collision fallback
				// stacked them. The legacy shadow ties to the first.
				if _, taken := rootByRef[tc.Ref]; !taken {
					rootByRef[tc.Ref] = tc
				}
			} else {
				parent, ok := seen[tc.ParentID]
				if !ok {
					return fmt.Errorf("sheet %q: reply %s precedes or misses its root %s", sd.ws.Name, tc.ID, tc.ParentID)
				}
				if !parent.IsRoot() {
					return fmt.Errorf("sheet %q: reply %s points at %s, which is not a thread root", sd.ws.Name, tc.ID, tc.ParentID)
				}
				if parent.Ref != tc.Ref {
					return fmt.Errorf("sheet %q: reply %s sits at %s but its root sits at %s", sd.ws.Name, tc.ID, tc.Ref, parent.Ref)
				}
			}
			seen[tc.ID] = tc
		}

		legacyByRef := make(map[string]LegacyComment, len(sd.legacy))
		for _, lc := range sd.legacy {
			if _, dup := legacyByRef[lc.Ref]; dup {
				return fmt.Errorf("sheet %q: cell %s carries two legacy comments", sd.ws.Name, lc.Ref)
			}
			legacyByRef[lc.Ref] = lc
		}
		for ref, root := range rootByRef {
			lc, ok := legacyByRef[ref]
			if !ok {
				return fmt.Errorf("sheet %q: thread at %s has no legacy shadow comment", sd.ws.Name, ref)
			}
			if want := LegacyAuthor(root.ID); lc.Author != want {
				return fmt.Errorf("sheet %q: legacy comment at %s names author %q, want %q", sd.ws.Name, ref, lc.Author, want)
			}
		}
		for ref := range legacyByRef {
			if _, ok := rootByRef[ref]; !ok {
				return fmt.Errorf("sheet %q: legacy comment at %s shadows no thread", sd.ws.Name, ref)
			}
		}

		if sd.anchorMap != nil && sd.anchorMap.Name != sd.ws.Name {
			return fmt.Errorf("sheet %q carries an anchor map named %q", sd.ws.Name, sd.anchorMap.Name)
		}
	}
	return nil
}

// LegacyAuthor returns the author string that ties a legacy shadow comment to
// its thread root.
func LegacyAuthor(rootID string) string {
	return "tc=" + rootID
}

// RootIDFromLegacyAuthor extracts the thread-root identifier a legacy author
// string encodes, if it encodes one.
func RootIDFromLegacyAuthor(author string) (string, bool) {
	if !strings.HasPrefix(author, "tc=") {
		return "", false
	}
	id := strings.TrimPrefix(author, "tc=")
	if id == "" {
		return "", false
	}
	return id, true
}

type partEntry struct {
	name string
	data []byte
}

// buildParts lays the package out as ordered archive entries.
func (p *Package) buildParts() ([]partEntry, error) {
	if len(p.sheets) == 0 {
		return nil, fmt.Errorf("package holds no sheets")
	}

	ct := newContentTypes()
	ct.setOverride("/xl/workbook.xml", ctWorkbook)
	ct.setOverride("/xl/styles.xml", ctStyles)

	rootRels := newRelationships()
	rootRels.add(relOfficeDocument, "xl/workbook.xml")

	wbRels := newRelationships()

	var parts []partEntry
	var sheetParts []partEntry

	var wb bytes.Buffer
	wb.WriteString(xml.Header)
	wb.WriteString(`<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><sheets>`)

	anyVML := false
	for i, sd := range p.sheets {
		n := i + 1
		sheetPart := fmt.Sprintf("xl/worksheets/sheet%d.xml", n)
		rid := wbRels.add(relWorksheet, fmt.Sprintf("worksheets/sheet%d.xml", n))
		fmt.Fprintf(&wb, `<sheet name="%s" sheetId="%d" r:id="%s"/>`, escape(sd.ws.Name), n, rid)
		ct.setOverride("/"+sheetPart, ctWorksheet)

		sheetRels := newRelationships()
		legacyRID := ""

		if len(sd.legacy) > 0 {
			commentsPart := fmt.Sprintf("xl/comments%d.xml", n)
			sheetRels.add(relComments, fmt.Sprintf("../comments%d.xml", n))
			ct.setOverride("/"+commentsPart, ctComments)
			sheetParts = append(sheetParts, partEntry{commentsPart, marshalLegacyComments(sd.legacy)})

			refs := make([]string, 0, len(sd.legacy))
			for _, lc := range sd.legacy {
				refs = append(refs, lc.Ref)
			}
			sortRefs(refs)
			vml, err := marshalVMLDrawing(refs, 1024*n)
			if err != nil {
				return nil, fmt.Errorf("sheet %q: %w", sd.ws.Name, err)
			}
			vmlPart := fmt.Sprintf("xl/drawings/vmlDrawing%d.vml", n)
			legacyRID = sheetRels.add(relVMLDrawing, fmt.Sprintf("../drawings/vmlDrawing%d.vml", n))
			sheetParts = append(sheetParts, partEntry{vmlPart, vml})
			anyVML = true
		}

		if len(sd.threaded) > 0 {
			tcPart := fmt.Sprintf("xl/threadedComments/threadedComment%d.xml", n)
			sheetRels.add(relThreadedComment, fmt.Sprintf("../threadedComments/threadedComment%d.xml", n))
			ct.setOverride("/"+tcPart, ctThreadedComments)
			data, err := marshalThreadedComments(sd.threaded)
			if err != nil {
				return nil, fmt.Errorf("sheet %q: %w", sd.ws.Name, err)
			}
			sheetParts = append(sheetParts, partEntry{tcPart, data})
		}

		if sd.anchorMap != nil && len(sd.anchorMap.Entries) > 0 {
			amPart := fmt.Sprintf("xl/anchorMaps/anchorMap%d.xml", n)
			sheetRels.add(relAnchorMap, fmt.Sprintf("../anchorMaps/anchorMap%d.xml", n))
			ct.setOverride("/"+amPart, ctAnchorMap)
			data, err := marshalAnchorMap(sd.anchorMap)
			if err != nil {
				return nil, err
			}
			sheetParts = append(sheetParts, partEntry{amPart, data})
		}

		sheetParts = append(sheetParts, partEntry{sheetPart, sd.ws.marshal(legacyRID)})
		if !sheetRels.empty() {
			data, err := sheetRels.marshal()
			if err != nil {
				return nil, err
			}
			sheetParts = append(sheetParts, partEntry{fmt.Sprintf("xl/worksheets/_rels/sheet%d.xml.rels", n), data})
		}
	}
	wb.WriteString(`</sheets></workbook>`)

	wbRels.add(relStyles, "styles.xml")
	if len(p.persons) > 0 {
		wbRels.add(relPerson, "persons/person.xml")
		ct.setOverride("/xl/persons/person.xml", ctPerson)
		data, err := marshalPersons(p.persons)
		if err != nil {
			return nil, err
		}
		sheetParts = append(sheetParts, partEntry{"xl/persons/person.xml", data})
	}
	if anyVML {
		ct.setDefault("vml", ctVMLDrawing)
	}

	ctData, err := ct.marshal()
	if err != nil {
		return nil, err
	}
	rootRelsData, err := rootRels.marshal()
	if err != nil {
		return nil, err
	}
	wbRelsData, err := wbRels.marshal()
	if err != nil {
		return nil, err
	}

	parts = append(parts,
		partEntry{"[Content_Types].xml", ctData},
		partEntry{"_rels/.rels", rootRelsData},
		partEntry{"xl/workbook.xml", wb.Bytes()},
		partEntry{"xl/_rels/workbook.xml.rels", wbRelsData},
		partEntry{"xl/styles.xml", []byte(stylesPart)},
	)
	parts = append(parts, sheetParts...)
	return parts, nil
}

// Save validates the package and writes it to path atomically: the archive
// is assembled in a temp file beside the target and renamed into place, so
// readers never observe a half-written workbook.
func (p *Package) Save(path string) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("refusing to save incoherent package: %w", err)
	}
	parts, err := p.buildParts()
	if err != nil {
		return fmt.Errorf("failed to assemble package: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".specbook-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	zw := zip.NewWriter(tmp)
	for _, part := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: part.name, Method: zip.Deflate})
		if err != nil {
			cleanup()
			return fmt.Errorf("failed to create archive entry %s: %w", part.name, err)
		}
		if _, err := w.Write(part.data); err != nil {
			cleanup()
			return fmt.Errorf("failed to write archive entry %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move package into place: %w", err)
	}
	return nil
}

// sortRefs orders A1 references by row, then column.
func sortRefs(refs []string) {
	sort.Slice(refs, func(i, j int) bool {
		ci, ri, _ := mapping.ParseRef(refs[i])
		cj, rj, _ := mapping.ParseRef(refs[j])
		if ri != rj {
			return ri < rj
		}
		return ci < cj
	})
}

type xmlWorkbook struct {
	XMLName xml.Name `xml:"workbook"`
	Sheets  []struct {
		Name string `xml:"name,attr"`
		RID  string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sheets>sheet"`
}

// Open reads a workbook package from disk.
func Open(path string) (*Package, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open package %s: %w", path, err)
	}
	defer zr.Close()

	raw := make(map[string][]byte, len(zr.File))
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read archive entry %s: %w", f.Name, err)
		}
		name := strings.TrimPrefix(f.Name, "/")
		raw[name] = data
		names = append(names, name)
	}
	sort.Strings(names)

	p := &Package{partNames: names}

	workbookPart := "xl/workbook.xml"
	if relsData, ok := raw["_rels/.rels"]; ok {
		rels, err := parseRelationships(relsData)
		if err != nil {
			return nil, err
		}
		if docs := rels.byType(relOfficeDocument); len(docs) > 0 {
			workbookPart = resolveTarget("", docs[0].Target)
		}
	}
	wbData, ok := raw[workbookPart]
	if !ok {
		return nil, fmt.Errorf("package %s holds no workbook part", path)
	}
	var wb xmlWorkbook
	if err := xml.Unmarshal(wbData, &wb); err != nil {
		return nil, fmt.Errorf("failed to parse workbook part: %w", err)
	}

	wbRels := newRelationships()
	if data, ok := raw[relsPartFor(workbookPart)]; ok {
		wbRels, err = parseRelationships(data)
		if err != nil {
			return nil, err
		}
	}

	var shared []string
	for _, rel := range wbRels.byType(relSharedStrings) {
		data, ok := raw[resolveTarget(workbookPart, rel.Target)]
		if !ok {
			continue
		}
		shared, err = parseSharedStrings(data)
		if err != nil {
			return nil, err
		}
	}

	for _, sheetEntry := range wb.Sheets {
		rel, ok := wbRels.byID(sheetEntry.RID)
		if !ok {
			return nil, fmt.Errorf("workbook sheet %q references missing relationship %s", sheetEntry.Name, sheetEntry.RID)
		}
		sheetPart := resolveTarget(workbookPart, rel.Target)
		sheetData, ok := raw[sheetPart]
		if !ok {
			return nil, fmt.Errorf("sheet part %s is missing from the archive", sheetPart)
		}
		ws, err := parseWorksheet(sheetEntry.Name, sheetData, shared)
		if err != nil {
			return nil, err
		}
		sd := &sheetDoc{ws: ws}

		if relsData, ok := raw[relsPartFor(sheetPart)]; ok {
			sheetRels, err := parseRelationships(relsData)
			if err != nil {
				return nil, err
			}
			if err := loadSheetStores(sd, sheetRels, sheetPart, raw); err != nil {
				return nil, fmt.Errorf("sheet %q: %w", sheetEntry.Name, err)
			}
		}
		p.sheets = append(p.sheets, sd)
	}

	for _, rel := range wbRels.byType(relPerson) {
		data, ok := raw[resolveTarget(workbookPart, rel.Target)]
		if !ok {
			continue
		}
		persons, err := parsePersons(data)
		if err != nil {
			return nil, err
		}
		p.persons = append(p.persons, persons...)
	}
	return p, nil
}

func loadSheetStores(sd *sheetDoc, rels *relationships, sheetPart string, raw map[string][]byte) error {
	for _, rel := range rels.byType(relComments) {
		data, ok := raw[resolveTarget(sheetPart, rel.Target)]
		if !ok {
			return fmt.Errorf("comments part %s is missing", rel.Target)
		}
		legacy, err := parseLegacyComments(data)
		if err != nil {
			return err
		}
		sd.legacy = append(sd.legacy, legacy...)
	}
	for _, rel := range rels.byType(relThreadedComment) {
		data, ok := raw[resolveTarget(sheetPart, rel.Target)]
		if !ok {
			return fmt.Errorf("threaded comments part %s is missing", rel.Target)
		}
		threaded, err := parseThreadedComments(data)
		if err != nil {
			return err
		}
		sd.threaded = append(sd.threaded, threaded...)
	}
	for _, rel := range rels.byType(relAnchorMap) {
		data, ok := raw[resolveTarget(sheetPart, rel.Target)]
		if !ok {
			return fmt.Errorf("anchor map part %s is missing", rel.Target)
		}
		am, err := parseAnchorMap(data)
		if err != nil {
			return err
		}
		sd.anchorMap = am
	}
	return nil
}

// relsPartFor returns the name of the .rels part describing a given part.
func relsPartFor(part string) string {
	dir, base := "", part
	if i := strings.LastIndex(part, "/"); i >= 0 {
		dir, base = part[:i+1], part[i+1:]
	}
	return dir + "_rels/" + base + ".rels"
}
