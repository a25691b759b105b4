package migrate

import (
	"github.com/specbook/internal/mapping"
	"github.com/specbook/internal/xlsxpkg"
)

// avoidCollision returns the target cell when it is free, otherwise probes a
// bounded number of rows below it in the same column and returns the first
// free one. When every probe is taken too, it falls back to the occupied
// target: collision handling degrades placement, it never fails it.
func (r *Resolver) avoidCollision(ws *xlsxpkg.Worksheet, sheet, target string) string {
	if r.free(ws, sheet, target) {
		return target
	}
	col, row, err := mapping.ParseRef(target)
	if err != nil {
		return target
	}
	for i := 1; i <= r.probeRows; i++ {
		probe := mapping.Ref(col, row+i)
		if r.free(ws, sheet, probe) {
			return probe
		}
	}
	return target
}

// free reports whether a cell neither holds content nor was claimed earlier
// in this run.
func (r *Resolver) free(ws *xlsxpkg.Worksheet, sheet, ref string) bool {
	return !ws.Occupied(ref) && !r.claims.CellClaimed(sheet, ref)
}

// overflowRow scans the overflow sheet from row 1 downward without bound and
// returns the first row that neither holds content nor was claimed in this
// run. The title row counts as occupied, so stacking starts below it.
func (r *Resolver) overflowRow(ws *xlsxpkg.Worksheet) int {
	row := 1
	for ws.RowOccupied(row) || r.claims.RowClaimed(ws.Name, row) {
		row++
	}
	return row
}
