package mapping

import (
	"fmt"
	"strings"
)

// ColumnName converts a 1-based column number to its letter form
// (1 -> "A", 26 -> "Z", 27 -> "AA").
func ColumnName(col int) string {
	if col < 1 {
		return ""
	}
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

// ColumnNumber converts a column letter form back to its 1-based number.
// Returns 0 for an empty or malformed name.
func ColumnNumber(name string) int {
	col := 0
	for _, r := range strings.ToUpper(name) {
		if r < 'A' || r > 'Z' {
			return 0
		}
		col = col*26 + int(r-'A') + 1
	}
	return col
}

// Ref formats a 1-based column and row pair as an A1 reference.
func Ref(col, row int) string {
	return fmt.Sprintf("%s%d", ColumnName(col), row)
}

// ParseRef splits an A1 reference into its 1-based column and row.
func ParseRef(ref string) (col, row int, err error) {
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(ref) {
		return 0, 0, fmt.Errorf("malformed cell reference %q", ref)
	}
	col = ColumnNumber(ref[:i])
	for _, c := range ref[i:] {
		if c < '0' || c > '9' {
			return 0, 0, fmt.Errorf("malformed cell reference %q", ref)
		}
		row = row*10 + int(c-'0')
	}
	if row == 0 {
		return 0, 0, fmt.Errorf("malformed cell reference %q", ref)
	}
	return col, row, nil
}

// RowOf returns the 1-based row of an A1 reference, or 0 if malformed.
func RowOf(ref string) int {
	_, row, err := ParseRef(ref)
	if err != nil {
		return 0
	}
	return row
}

// ColOf returns the 1-based column of an A1 reference, or 0 if malformed.
func ColOf(ref string) int {
	col, _, err := ParseRef(ref)
	if err != nil {
		return 0
	}
	return col
}

// WithRow keeps the column of ref and replaces its row, so a row-level
// placement can preserve the original column of a message.
func WithRow(ref string, row int) (string, error) {
	col, _, err := ParseRef(ref)
	if err != nil {
		return "", err
	}
	return Ref(col, row), nil
}
