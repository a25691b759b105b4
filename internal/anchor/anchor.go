// Package anchor builds the semantic addresses that tie workbook cells back to
// elements of the API description. Anchors mirror the description's own
// traversal (paths, operations, parameters, responses, schema properties), so
// regenerating from an unchanged description always yields identical anchors;
// that stability is what lets review discussions survive a regeneration.
package anchor

import (
	"strings"
)

// HeadingSuffix marks a mapping entry as a structural heading row rather than
// a content cell. Heading rows are the landmark the same-sheet fallback
// relocates unanchored comments to.
const HeadingSuffix = "/TitleRow"

// Operation returns the anchor of a path+method operation,
// e.g. Operation("/pets", "GET") == "paths./pets.get".
func Operation(path, method string) string {
	return "paths." + path + "." + strings.ToLower(method)
}

// Summary returns the anchor of an operation's summary cell.
func Summary(path, method string) string {
	return Operation(path, method) + ".summary"
}

// Description returns the anchor of an operation's description cell.
func Description(path, method string) string {
	return Operation(path, method) + ".description"
}

// Parameters returns the anchor of an operation's parameter section.
func Parameters(path, method string) string {
	return Operation(path, method) + ".parameters"
}

// Parameter returns the anchor of one named parameter row.
func Parameter(path, method, name string) string {
	return Parameters(path, method) + "." + name
}

// ParameterDescription returns the anchor of a parameter's description cell.
func ParameterDescription(path, method, name string) string {
	return Parameter(path, method, name) + ".description"
}

// RequestBody returns the anchor of an operation's request body row.
func RequestBody(path, method string) string {
	return Operation(path, method) + ".requestBody"
}

// Responses returns the anchor of an operation's response section.
func Responses(path, method string) string {
	return Operation(path, method) + ".responses"
}

// Response returns the anchor of one response row,
// e.g. Response("/pets", "GET", "200") == "paths./pets.get.responses.200".
func Response(path, method, status string) string {
	return Responses(path, method) + "." + status
}

// ResponseDescription returns the anchor of a response's description cell.
func ResponseDescription(path, method, status string) string {
	return Response(path, method, status) + ".description"
}

// Paths returns the anchor of the top-level path listing.
func Paths() string {
	return "paths"
}

// InfoTitle returns the anchor of the description's title cell.
func InfoTitle() string {
	return "info.title"
}

// Schemas returns the anchor of the component schema section.
func Schemas() string {
	return "components.schemas"
}

// Schema returns the anchor of one named component schema.
func Schema(name string) string {
	return Schemas() + "." + name
}

// SchemaProperty returns the anchor of one schema property row,
// e.g. SchemaProperty("Pet", "name") == "components.schemas.Pet.properties.name".
func SchemaProperty(schema, property string) string {
	return Schema(schema) + ".properties." + property
}

// SchemaPropertyDescription returns the anchor of a property's description cell.
func SchemaPropertyDescription(schema, property string) string {
	return SchemaProperty(schema, property) + ".description"
}

// Heading converts a section anchor into its heading-row form.
func Heading(base string) string {
	return base + HeadingSuffix
}

// IsHeading reports whether the anchor denotes a structural heading row.
func IsHeading(a string) bool {
	return strings.HasSuffix(a, HeadingSuffix)
}

// TrimHeading strips the heading suffix, returning the section anchor.
func TrimHeading(a string) string {
	return strings.TrimSuffix(a, HeadingSuffix)
}
