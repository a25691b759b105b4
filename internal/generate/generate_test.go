package generate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specbook/internal/anchor"
	"github.com/specbook/internal/apispec"
	"github.com/specbook/internal/mapping"
)

const descJSON = `{
  "openapi": "3.0.3",
  "info": {"title": "Pet store", "version": "1.0.0"},
  "paths": {
    "/pets": {
      "get": {
        "summary": "List pets",
        "description": "Returns every pet, paged.",
        "parameters": [
          {"name": "limit", "in": "query", "schema": {"type": "integer"}, "description": "Page size"}
        ],
        "responses": {
          "200": {"description": "A paged list of pets"},
          "default": {"description": "Unexpected error"}
        }
      },
      "post": {
        "summary": "Create a pet",
        "requestBody": {
          "description": "The pet to add",
          "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Pet"}}}
        },
        "responses": {"201": {"description": "Created"}}
      }
    },
    "/pets/{petId}": {
      "parameters": [
        {"name": "petId", "in": "path", "required": true, "schema": {"type": "string"}}
      ],
      "get": {
        "summary": "Fetch one pet",
        "responses": {"200": {"description": "A single pet"}, "404": {"description": "Not found"}}
      }
    }
  },
  "components": {
    "schemas": {
      "Pet": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "description": "Display name"},
          "tags": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

func loadDesc(t *testing.T) *apispec.Description {
	t.Helper()
	path := filepath.Join(t.TempDir(), "desc.json")
	require.NoError(t, os.WriteFile(path, []byte(descJSON), 0o644))
	desc, err := apispec.Load(context.Background(), path)
	require.NoError(t, err)
	return desc
}

func TestBuildLaysOutWorkbook(t *testing.T) {
	res, err := Build(loadDesc(t))
	require.NoError(t, err)

	require.Equal(t,
		[]string{"Index", "Pets_get", "Pets_post", "Pets_petId_get", "Schemas", "_Overflow"},
		res.Package.SheetNames())

	idx, ok := res.Package.Sheet(IndexSheetName)
	require.True(t, ok)
	title, ok := idx.Cell("A1")
	require.True(t, ok)
	require.Contains(t, title, "Pet store")

	// The operation's own anchor resolves to the title cell of its sheet.
	sheet, e, ok := res.Mapping.Find(anchor.Operation("/pets", "get"))
	require.True(t, ok)
	require.Equal(t, "Pets_get", sheet)
	require.Equal(t, mapping.KindCell, e.Kind)
	require.Equal(t, "A1", e.Ref)

	// Response rows register row-level mappings with a description cell
	// mapping beside them.
	sheet, e, ok = res.Mapping.Find(anchor.Response("/pets", "get", "200"))
	require.True(t, ok)
	require.Equal(t, "Pets_get", sheet)
	require.Equal(t, mapping.KindRow, e.Kind)

	ws, _ := res.Package.Sheet("Pets_get")
	status, ok := ws.Cell(mapping.Ref(1, e.Row))
	require.True(t, ok)
	require.Equal(t, "200", status)
	desc, ok := ws.Cell(mapping.Ref(2, e.Row))
	require.True(t, ok)
	require.Equal(t, "A paged list of pets", desc)

	_, cellEntry, ok := res.Mapping.Find(anchor.ResponseDescription("/pets", "get", "200"))
	require.True(t, ok)
	require.Equal(t, mapping.KindCell, cellEntry.Kind)
	require.Equal(t, mapping.Ref(2, e.Row), cellEntry.Ref)

	// Path-level parameters fold into the operation sheet.
	sheet, _, ok = res.Mapping.Find(anchor.Parameter("/pets/{petId}", "get", "petId"))
	require.True(t, ok)
	require.Equal(t, "Pets_petId_get", sheet)

	// Schema properties land on the schemas sheet.
	sheet, propEntry, ok := res.Mapping.Find(anchor.SchemaProperty("Pet", "name"))
	require.True(t, ok)
	require.Equal(t, SchemasSheetName, sheet)
	require.Equal(t, mapping.KindRow, propEntry.Kind)
}

func TestHeadingRowsRegistered(t *testing.T) {
	res, err := Build(loadDesc(t))
	require.NoError(t, err)

	sm, ok := res.Mapping.Sheet("Pets_get")
	require.True(t, ok)
	rows := sm.HeadingRows()
	require.NotEmpty(t, rows)
	require.Equal(t, 1, rows[0], "operation title row must be a heading")
	for i := 1; i < len(rows); i++ {
		require.Greater(t, rows[i], rows[i-1])
	}
}

func TestOverflowSheetShape(t *testing.T) {
	res, err := Build(loadDesc(t))
	require.NoError(t, err)

	ws, ok := res.Package.Sheet(OverflowSheetName)
	require.True(t, ok)
	v, ok := ws.Cell("A1")
	require.True(t, ok)
	require.Equal(t, overflowTitle, v)
	require.True(t, ws.RowOccupied(1))
	require.False(t, ws.RowOccupied(2))

	_, hasMap := res.Package.AnchorMap(OverflowSheetName)
	require.False(t, hasMap, "overflow sheet must carry no mappings")
}

func TestIndexListsEveryOperation(t *testing.T) {
	res, err := Build(loadDesc(t))
	require.NoError(t, err)

	idx, _ := res.Package.Sheet(IndexSheetName)
	wantRows := []struct {
		path, method string
	}{
		{"/pets", "GET"},
		{"/pets", "POST"},
		{"/pets/{petId}", "GET"},
	}
	for i, want := range wantRows {
		row := 4 + i
		p, _ := idx.Cell(mapping.Ref(1, row))
		m, _ := idx.Cell(mapping.Ref(2, row))
		s, _ := idx.Cell(mapping.Ref(4, row))
		require.Equal(t, want.path, p)
		require.Equal(t, want.method, m)
		require.Equal(t, res.OperationSheets[anchor.Operation(want.path, want.method)], s)
	}
}

func TestSheetNameFor(t *testing.T) {
	taken := map[string]bool{}
	tests := []struct {
		path, method, want string
	}{
		{"/pets", "GET", "Pets_get"},
		{"/pets/{petId}", "GET", "Pets_petId_get"},
		{"/a-b", "GET", "A_b_get"},
		{"/a_b", "GET", "A_b_get_2"},
		{"/", "GET", "Root_get"},
		{"/really/long/nested/resource/path/segments", "GET", "Really_long_nested_resource_pat"},
	}
	for _, tc := range tests {
		if got := sheetNameFor(taken, tc.path, tc.method); got != tc.want {
			t.Errorf("sheetNameFor(%q, %q) = %q, want %q", tc.path, tc.method, got, tc.want)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	desc := loadDesc(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.xlsx")
	b := filepath.Join(dir, "b.xlsx")

	resA, err := Build(desc)
	require.NoError(t, err)
	require.NoError(t, resA.Package.Save(a))

	resB, err := Build(desc)
	require.NoError(t, err)
	require.NoError(t, resB.Package.Save(b))

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	require.Equal(t, da, db, "regeneration from the same description must be byte-stable")
}
