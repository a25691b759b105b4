// Package apispec loads the machine-readable API description the workbook is
// generated from. Descriptions arrive as OpenAPI documents in JSON or YAML;
// JSON documents that were hand-edited or exported by sloppy tooling get a
// repair pass before loading fails outright.
package apispec

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Description is a loaded and validated API description.
type Description struct {
	Doc *openapi3.T
	// Digest is the sha256 of the file as read, before any normalization.
	// Runs are recorded against it so a changed document is visible in
	// history.
	Digest string
	Source string
}

// Load reads, parses and validates an API description document.
func Load(ctx context.Context, path string) (*Description, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read API description: %w", err)
	}
	sum := sha256.Sum256(raw)

	data := raw
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		data, err = yamlToJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to read YAML description %s: %w", path, err)
		}
	}

	doc, err := parse(ctx, data)
	if err != nil && ext != ".yaml" && ext != ".yml" {
		repaired, stats, repairErr := RepairJSON(string(data))
		if repairErr == nil && stats.WasRepaired {
			log.Debug().
				Str("source", path).
				Strs("strategies", stats.RepairStrategies).
				Int("errors_fixed", stats.ErrorsFixed).
				Msg("repaired malformed description document")
			doc, err = parse(ctx, []byte(repaired))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load API description %s: %w", path, err)
	}

	return &Description{
		Doc:    doc,
		Digest: hex.EncodeToString(sum[:]),
		Source: path,
	}, nil
}

func parse(ctx context.Context, data []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("description failed validation: %w", err)
	}
	return doc, nil
}

// yamlToJSON normalizes a YAML document to JSON so the rest of the pipeline
// handles a single syntax.
func yamlToJSON(raw []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeKeys(v))
}

// normalizeKeys rewrites YAML's permissive map keys (status codes parse as
// integers) into strings so the value marshals as JSON.
func normalizeKeys(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[k] = normalizeKeys(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[fmt.Sprint(k)] = normalizeKeys(val)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, val := range vv {
			out[i] = normalizeKeys(val)
		}
		return out
	default:
		return v
	}
}

// methodOrder fixes the order operations appear in, so regeneration is
// byte-stable regardless of map iteration.
var methodOrder = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS", "TRACE"}

// PathsInOrder returns the description's paths sorted lexicographically.
func PathsInOrder(doc *openapi3.T) []string {
	if doc.Paths == nil {
		return nil
	}
	paths := make([]string, 0, doc.Paths.Len())
	for p := range doc.Paths.Map() {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Operation pairs a method with its operation object.
type Operation struct {
	Method string
	Op     *openapi3.Operation
}

// OperationsInOrder returns a path item's operations in fixed method order.
func OperationsInOrder(item *openapi3.PathItem) []Operation {
	ops := item.Operations()
	out := make([]Operation, 0, len(ops))
	for _, m := range methodOrder {
		if op, ok := ops[m]; ok {
			out = append(out, Operation{Method: m, Op: op})
		}
	}
	return out
}

// StatusesInOrder returns an operation's response statuses sorted
// lexicographically, which keeps numeric codes ascending and sorts "default"
// after them.
func StatusesInOrder(op *openapi3.Operation) []string {
	if op.Responses == nil {
		return nil
	}
	statuses := make([]string, 0, op.Responses.Len())
	for s := range op.Responses.Map() {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	return statuses
}

// SchemasInOrder returns component schema names sorted lexicographically.
func SchemasInOrder(doc *openapi3.T) []string {
	if doc.Components == nil {
		return nil
	}
	names := make([]string, 0, len(doc.Components.Schemas))
	for name := range doc.Components.Schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PropertiesInOrder returns a schema's property names sorted
// lexicographically.
func PropertiesInOrder(schema *openapi3.Schema) []string {
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TypeString renders a schema reference's type for display.
func TypeString(ref *openapi3.SchemaRef) string {
	if ref == nil || ref.Value == nil {
		return ""
	}
	s := ref.Value
	if s.Type != nil && len(s.Type.Slice()) > 0 {
		t := strings.Join(s.Type.Slice(), "|")
		if t == "array" && s.Items != nil {
			if inner := TypeString(s.Items); inner != "" {
				return "array of " + inner
			}
		}
		return t
	}
	if ref.Ref != "" {
		return refName(ref.Ref)
	}
	return ""
}

func refName(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// ResponseDescription unwraps a response's description, which the OpenAPI
// model keeps behind a pointer.
func ResponseDescription(ref *openapi3.ResponseRef) string {
	if ref == nil || ref.Value == nil || ref.Value.Description == nil {
		return ""
	}
	return *ref.Value.Description
}
