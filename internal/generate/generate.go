// Package generate renders an API description into a workbook package. Every
// row and cell written here is registered against its semantic anchor, and
// those mappings ride along inside the package; they are what a later
// migration run resolves discussions against.
package generate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/rs/zerolog/log"

	"github.com/specbook/internal/anchor"
	"github.com/specbook/internal/apispec"
	"github.com/specbook/internal/mapping"
	"github.com/specbook/internal/xlsxpkg"
)

const (
	// IndexSheetName heads the workbook with one row per operation.
	IndexSheetName = "Index"
	// SchemasSheetName lists component schemas and their properties.
	SchemasSheetName = "Schemas"
	// OverflowSheetName receives discussions that cannot be placed anywhere
	// else. Kept last in the workbook.
	OverflowSheetName = "_Overflow"

	// OverflowColumn is the 1-based column overflow discussions attach to.
	OverflowColumn = 2

	overflowTitle = "Unplaced review discussions"
)

// Result bundles the generated package with the mappings registered while
// building it.
type Result struct {
	Package *xlsxpkg.Package
	Mapping *mapping.Context
	// OperationSheets maps each operation anchor to the sheet it landed on.
	OperationSheets map[string]string
}

type operationEntry struct {
	path   string
	method string
	op     *openapi3.Operation
	item   *openapi3.PathItem
	sheet  string
}

// Build renders a description into a fresh workbook package.
func Build(desc *apispec.Description) (*Result, error) {
	pkg := xlsxpkg.New()
	ctx := mapping.NewContext()

	entries := collectOperations(desc.Doc)
	log.Debug().
		Int("operations", len(entries)).
		Str("source", desc.Source).
		Msg("laying out workbook")

	if err := buildIndexSheet(pkg, ctx, desc.Doc, entries); err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if err := buildOperationSheet(pkg, ctx, entry); err != nil {
			return nil, err
		}
	}
	if err := buildSchemasSheet(pkg, ctx, desc.Doc); err != nil {
		return nil, err
	}
	if err := buildOverflowSheet(pkg); err != nil {
		return nil, err
	}

	for _, sheet := range ctx.Sheets() {
		if err := pkg.SetAnchorMap(sheet.Name, sheet); err != nil {
			return nil, fmt.Errorf("failed to attach mappings: %w", err)
		}
	}

	sheets := make(map[string]string, len(entries))
	for _, entry := range entries {
		sheets[anchor.Operation(entry.path, entry.method)] = entry.sheet
	}
	return &Result{Package: pkg, Mapping: ctx, OperationSheets: sheets}, nil
}

// collectOperations walks the description in deterministic order and assigns
// each operation its sheet name.
func collectOperations(doc *openapi3.T) []operationEntry {
	taken := map[string]bool{
		IndexSheetName:    true,
		SchemasSheetName:  true,
		OverflowSheetName: true,
	}
	var entries []operationEntry
	for _, path := range apispec.PathsInOrder(doc) {
		item := doc.Paths.Find(path)
		if item == nil {
			continue
		}
		for _, op := range apispec.OperationsInOrder(item) {
			entries = append(entries, operationEntry{
				path:   path,
				method: op.Method,
				op:     op.Op,
				item:   item,
				sheet:  sheetNameFor(taken, path, op.Method),
			})
		}
	}
	return entries
}

// sheetNameFor slugs a path+method pair into a sheet name spreadsheet
// clients accept, deduplicating collisions with a numeric suffix.
func sheetNameFor(taken map[string]bool, path, method string) string {
	slug := strings.Trim(path, "/")
	slug = strings.NewReplacer("{", "", "}", "", "/", "_").Replace(slug)
	var b strings.Builder
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	slug = b.String()
	if slug == "" {
		slug = "Root"
	} else if slug[0] >= 'a' && slug[0] <= 'z' {
		slug = strings.ToUpper(slug[:1]) + slug[1:]
	}

	name := truncate(slug+"_"+strings.ToLower(method), 31)
	for n := 2; taken[name]; n++ {
		suffix := fmt.Sprintf("_%d", n)
		name = truncate(slug+"_"+strings.ToLower(method), 31-len(suffix)) + suffix
	}
	taken[name] = true
	return name
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func buildIndexSheet(pkg *xlsxpkg.Package, ctx *mapping.Context, doc *openapi3.T, entries []operationEntry) error {
	ws, err := pkg.AddSheet(IndexSheetName)
	if err != nil {
		return fmt.Errorf("failed to build index sheet: %w", err)
	}
	title := doc.Info.Title
	if doc.Info.Version != "" {
		title += " - " + doc.Info.Version
	}
	ws.SetCellRC(1, 1, title)
	ctx.AddCell(IndexSheetName, "A1", anchor.InfoTitle())

	ws.SetCellRC(1, 3, "Path")
	ws.SetCellRC(2, 3, "Method")
	ws.SetCellRC(3, 3, "Summary")
	ws.SetCellRC(4, 3, "Sheet")
	ctx.AddRow(IndexSheetName, 3, anchor.Heading(anchor.Paths()))

	row := 4
	for _, entry := range entries {
		ws.SetCellRC(1, row, entry.path)
		ws.SetCellRC(2, row, entry.method)
		ws.SetCellRC(3, row, entry.op.Summary)
		ws.SetCellRC(4, row, entry.sheet)
		ctx.AddRow(IndexSheetName, row, anchor.Operation(entry.path, entry.method))
		row++
	}
	return nil
}

func buildOperationSheet(pkg *xlsxpkg.Package, ctx *mapping.Context, entry operationEntry) error {
	ws, err := pkg.AddSheet(entry.sheet)
	if err != nil {
		return fmt.Errorf("failed to build sheet for %s %s: %w", entry.method, entry.path, err)
	}
	opAnchor := anchor.Operation(entry.path, entry.method)

	ws.SetCellRC(1, 1, entry.method+" "+entry.path)
	ctx.AddCell(entry.sheet, "A1", opAnchor)
	ctx.AddRow(entry.sheet, 1, anchor.Heading(opAnchor))

	row := 2
	if entry.op.Summary != "" {
		ws.SetCellRC(1, row, "Summary")
		ws.SetCellRC(2, row, entry.op.Summary)
		ctx.AddCell(entry.sheet, mapping.Ref(2, row), anchor.Summary(entry.path, entry.method))
		row++
	}
	if entry.op.Description != "" {
		ws.SetCellRC(1, row, "Description")
		ws.SetCellRC(2, row, entry.op.Description)
		ctx.AddCell(entry.sheet, mapping.Ref(2, row), anchor.Description(entry.path, entry.method))
		row++
	}

	params := mergedParameters(entry.item, entry.op)
	if len(params) > 0 {
		row++ // spacer
		ws.SetCellRC(1, row, "Parameters")
		ctx.AddRow(entry.sheet, row, anchor.Heading(anchor.Parameters(entry.path, entry.method)))
		row++
		ws.SetCellRC(1, row, "Name")
		ws.SetCellRC(2, row, "In")
		ws.SetCellRC(3, row, "Type")
		ws.SetCellRC(4, row, "Required")
		ws.SetCellRC(5, row, "Description")
		row++
		for _, p := range params {
			ws.SetCellRC(1, row, p.Name)
			ws.SetCellRC(2, row, p.In)
			ws.SetCellRC(3, row, apispec.TypeString(p.Schema))
			ws.SetCellRC(4, row, yesNo(p.Required))
			ws.SetCellRC(5, row, p.Description)
			ctx.AddRow(entry.sheet, row, anchor.Parameter(entry.path, entry.method, p.Name))
			ctx.AddCell(entry.sheet, mapping.Ref(5, row), anchor.ParameterDescription(entry.path, entry.method, p.Name))
			row++
		}
	}

	if entry.op.RequestBody != nil && entry.op.RequestBody.Value != nil {
		body := entry.op.RequestBody.Value
		row++ // spacer
		ws.SetCellRC(1, row, "Request body")
		ws.SetCellRC(2, row, contentTypes(body.Content))
		ws.SetCellRC(3, row, body.Description)
		ctx.AddRow(entry.sheet, row, anchor.RequestBody(entry.path, entry.method))
		row++
	}

	statuses := apispec.StatusesInOrder(entry.op)
	if len(statuses) > 0 {
		row++ // spacer
		ws.SetCellRC(1, row, "Responses")
		ctx.AddRow(entry.sheet, row, anchor.Heading(anchor.Responses(entry.path, entry.method)))
		row++
		ws.SetCellRC(1, row, "Status")
		ws.SetCellRC(2, row, "Description")
		row++
		responses := entry.op.Responses.Map()
		for _, status := range statuses {
			ws.SetCellRC(1, row, status)
			ws.SetCellRC(2, row, apispec.ResponseDescription(responses[status]))
			ctx.AddRow(entry.sheet, row, anchor.Response(entry.path, entry.method, status))
			ctx.AddCell(entry.sheet, mapping.Ref(2, row), anchor.ResponseDescription(entry.path, entry.method, status))
			row++
		}
	}
	return nil
}

func buildSchemasSheet(pkg *xlsxpkg.Package, ctx *mapping.Context, doc *openapi3.T) error {
	names := apispec.SchemasInOrder(doc)
	if len(names) == 0 {
		return nil
	}
	ws, err := pkg.AddSheet(SchemasSheetName)
	if err != nil {
		return fmt.Errorf("failed to build schemas sheet: %w", err)
	}
	ws.SetCellRC(1, 1, "Schemas")
	ctx.AddRow(SchemasSheetName, 1, anchor.Heading(anchor.Schemas()))

	row := 3
	for _, name := range names {
		ref := doc.Components.Schemas[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		ws.SetCellRC(1, row, name)
		ws.SetCellRC(2, row, ref.Value.Description)
		ctx.AddCell(SchemasSheetName, mapping.Ref(1, row), anchor.Schema(name))
		ctx.AddRow(SchemasSheetName, row, anchor.Heading(anchor.Schema(name)))
		row++

		ws.SetCellRC(1, row, "Property")
		ws.SetCellRC(2, row, "Type")
		ws.SetCellRC(3, row, "Required")
		ws.SetCellRC(4, row, "Description")
		row++

		required := make(map[string]bool, len(ref.Value.Required))
		for _, r := range ref.Value.Required {
			required[r] = true
		}
		for _, prop := range apispec.PropertiesInOrder(ref.Value) {
			propRef := ref.Value.Properties[prop]
			ws.SetCellRC(1, row, prop)
			ws.SetCellRC(2, row, apispec.TypeString(propRef))
			ws.SetCellRC(3, row, yesNo(required[prop]))
			if propRef != nil && propRef.Value != nil {
				ws.SetCellRC(4, row, propRef.Value.Description)
			}
			ctx.AddRow(SchemasSheetName, row, anchor.SchemaProperty(name, prop))
			ctx.AddCell(SchemasSheetName, mapping.Ref(4, row), anchor.SchemaPropertyDescription(name, prop))
			row++
		}
		row++ // spacer between schemas
	}
	return nil
}

func buildOverflowSheet(pkg *xlsxpkg.Package) error {
	ws, err := pkg.AddSheet(OverflowSheetName)
	if err != nil {
		return fmt.Errorf("failed to build overflow sheet: %w", err)
	}
	// Only A1 is filled; overflow placements claim empty rows below and
	// attach to their column-B cells without writing content.
	ws.SetCellRC(1, 1, overflowTitle)
	return nil
}

// mergedParameter is a parameter with path-item and operation levels merged.
type mergedParameter struct {
	Name        string
	In          string
	Required    bool
	Description string
	Schema      *openapi3.SchemaRef
}

// mergedParameters folds path-item parameters under the operation's own;
// the operation wins when both declare the same name and location.
func mergedParameters(item *openapi3.PathItem, op *openapi3.Operation) []mergedParameter {
	type key struct{ name, in string }
	index := make(map[key]int)
	var out []mergedParameter
	add := func(refs openapi3.Parameters) {
		for _, ref := range refs {
			if ref == nil || ref.Value == nil {
				continue
			}
			p := ref.Value
			mp := mergedParameter{
				Name:        p.Name,
				In:          p.In,
				Required:    p.Required,
				Description: p.Description,
				Schema:      p.Schema,
			}
			k := key{p.Name, p.In}
			if i, ok := index[k]; ok {
				out[i] = mp
				continue
			}
			index[k] = len(out)
			out = append(out, mp)
		}
	}
	add(item.Parameters)
	add(op.Parameters)
	return out
}

func contentTypes(content openapi3.Content) string {
	if len(content) == 0 {
		return ""
	}
	types := make([]string, 0, len(content))
	for ct := range content {
		types = append(types, ct)
	}
	sort.Strings(types)
	return strings.Join(types, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
