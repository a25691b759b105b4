package apispec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/require"
)

const petstoreJSON = `{
  "openapi": "3.0.3",
  "info": {"title": "Pet store", "version": "1.0.0"},
  "paths": {
    "/pets": {
      "get": {
        "summary": "List pets",
        "responses": {"200": {"description": "A paged list of pets"}}
      },
      "post": {
        "summary": "Create a pet",
        "responses": {"201": {"description": "Created"}}
      }
    },
    "/pets/{petId}": {
      "get": {
        "summary": "Fetch one pet",
        "parameters": [
          {"name": "petId", "in": "path", "required": true, "schema": {"type": "string"}}
        ],
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

func writeDesc(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write description: %v", err)
	}
	return path
}

func TestLoadValidJSON(t *testing.T) {
	desc, err := Load(context.Background(), writeDesc(t, "petstore.json", petstoreJSON))
	require.NoError(t, err)
	require.Equal(t, "Pet store", desc.Doc.Info.Title)
	require.Len(t, desc.Digest, 64)

	require.Equal(t, []string{"/pets", "/pets/{petId}"}, PathsInOrder(desc.Doc))

	ops := OperationsInOrder(desc.Doc.Paths.Find("/pets"))
	require.Len(t, ops, 2)
	require.Equal(t, "GET", ops[0].Method)
	require.Equal(t, "POST", ops[1].Method)

	one := OperationsInOrder(desc.Doc.Paths.Find("/pets/{petId}"))[0]
	require.Equal(t, []string{"200", "404"}, StatusesInOrder(one.Op))
	require.Equal(t, "A single pet", ResponseDescription(one.Op.Responses.Map()["200"]))

	require.Equal(t, []string{"Pet"}, SchemasInOrder(desc.Doc))
	pet := desc.Doc.Components.Schemas["Pet"].Value
	require.Equal(t, []string{"name", "tags"}, PropertiesInOrder(pet))
}

func TestLoadYAMLNormalizesKeys(t *testing.T) {
	// The 200 key is intentionally unquoted; YAML parses it as an integer.
	body := `openapi: 3.0.3
info:
  title: Pet store
  version: 1.0.0
paths:
  /pets:
    get:
      summary: List pets
      responses:
        200:
          description: A paged list of pets
`
	desc, err := Load(context.Background(), writeDesc(t, "petstore.yaml", body))
	require.NoError(t, err)
	ops := OperationsInOrder(desc.Doc.Paths.Find("/pets"))
	require.Len(t, ops, 1)
	require.Equal(t, []string{"200"}, StatusesInOrder(ops[0].Op))
}

func TestLoadRepairsMalformedJSON(t *testing.T) {
	broken := `{
  "openapi": "3.0.3",
  "info": {"title": "Pet store", "version": "1.0.0",},
  "paths": {
    "/pets": {
      "get": {"responses": {"200": {"description": "ok"},}},
    },
  },
}`
	desc, err := Load(context.Background(), writeDesc(t, "broken.json", broken))
	require.NoError(t, err)
	require.Equal(t, "Pet store", desc.Doc.Info.Title)
}

func TestLoadRejectsHopelessInput(t *testing.T) {
	_, err := Load(context.Background(), writeDesc(t, "hopeless.json", "this was never JSON"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestTypeString(t *testing.T) {
	str := openapi3.NewSchemaRef("", openapi3.NewStringSchema())
	if got := TypeString(str); got != "string" {
		t.Fatalf("TypeString(string schema) = %q", got)
	}

	arr := openapi3.NewArraySchema()
	arr.Items = openapi3.NewSchemaRef("", openapi3.NewStringSchema())
	if got := TypeString(openapi3.NewSchemaRef("", arr)); got != "array of string" {
		t.Fatalf("TypeString(array schema) = %q", got)
	}

	named := openapi3.NewSchemaRef("#/components/schemas/Pet", &openapi3.Schema{})
	if got := TypeString(named); got != "Pet" {
		t.Fatalf("TypeString(named ref) = %q", got)
	}

	if got := TypeString(nil); got != "" {
		t.Fatalf("TypeString(nil) = %q", got)
	}
}
