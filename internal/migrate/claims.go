package migrate

import (
	"github.com/specbook/internal/mapping"
)

// ClaimSet tracks the cells placements have taken during one run. Collision
// checks consult it alongside the document's own state, so two threads placed
// in the same pass never land on top of each other. It is per-run state:
// construct a fresh one for every migration.
type ClaimSet struct {
	cells map[string]map[string]bool // sheet -> ref -> claimed
	rows  map[string]map[int]bool    // sheet -> row -> claimed
}

// NewClaimSet returns an empty claim set.
func NewClaimSet() *ClaimSet {
	return &ClaimSet{
		cells: make(map[string]map[string]bool),
		rows:  make(map[string]map[int]bool),
	}
}

// Claim marks a cell (and its row) as taken.
func (c *ClaimSet) Claim(sheet, ref string) {
	if c.cells[sheet] == nil {
		c.cells[sheet] = make(map[string]bool)
	}
	c.cells[sheet][ref] = true
	if row := mapping.RowOf(ref); row > 0 {
		if c.rows[sheet] == nil {
			c.rows[sheet] = make(map[int]bool)
		}
		c.rows[sheet][row] = true
	}
}

// CellClaimed reports whether a cell was taken earlier in this run.
func (c *ClaimSet) CellClaimed(sheet, ref string) bool {
	return c.cells[sheet][ref]
}

// RowClaimed reports whether any cell of a row was taken earlier in this run.
func (c *ClaimSet) RowClaimed(sheet string, row int) bool {
	return c.rows[sheet][row]
}
