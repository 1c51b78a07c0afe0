package batch

import (
	"strings"

	"github.com/standardbeagle/pnpmatch/internal/config"
	"github.com/standardbeagle/pnpmatch/internal/debug"
	"github.com/standardbeagle/pnpmatch/internal/grid"
	"github.com/standardbeagle/pnpmatch/internal/session"
	"github.com/standardbeagle/pnpmatch/internal/types"
)

// ErrMalformedItem is wrapped by the ParseError returned for a saved item
// that does not split into exactly three segments.
var ErrMalformedItem = session.ErrMalformedItem

// RowSource is one row to resolve, from a PnP grid or a saved session.
type RowSource interface {
	ExtractFootprintComment() (id, footprint, comment string, err error)
	Rotation() string
}

// restorer is implemented by rows that carry an earlier operator decision.
type restorer interface {
	Restore(rec *types.MatchRecord)
}

// GridRow reads its fields from the configured columns of a PnP grid row.
type GridRow struct {
	Cells   []string
	Columns config.Columns
}

func (r GridRow) cell(col int) string {
	if col < 0 || col >= len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[col])
}

// ExtractFootprintComment implements RowSource. Missing cells read as "".
func (r GridRow) ExtractFootprintComment() (string, string, string, error) {
	return r.cell(r.Columns.ID), r.cell(r.Columns.Footprint), r.cell(r.Columns.Comment), nil
}

// Rotation implements RowSource
func (r GridRow) Rotation() string {
	return r.cell(r.Columns.Rotation)
}

// ResumedRow is a row restored from a saved session.
type ResumedRow struct {
	Record session.Record
}

// ExtractFootprintComment implements RowSource by parsing the saved item.
func (r ResumedRow) ExtractFootprintComment() (string, string, string, error) {
	return ParseItem(r.Record.Item)
}

// Rotation implements RowSource
func (r ResumedRow) Rotation() string {
	return r.Record.Rotation
}

// Restore re-applies a saved MANUAL or REMOVED decision on top of the fresh
// match. Automatic markers are recomputed, not restored.
func (r ResumedRow) Restore(rec *types.MatchRecord) {
	marker, err := types.ParseClassification(r.Record.Marker)
	if err != nil {
		debug.LogBatch("row %d: ignoring saved marker: %v\n", rec.RowIndex, err)
		return
	}
	switch marker {
	case types.ClassManual:
		rec.Choose(r.Record.Selection)
	case types.ClassRemoved:
		rec.Selection = r.Record.Selection
		rec.Remove()
	}
}

// ParseItem splits a saved "<id> | <footprint> | <comment>" item. Segments
// are trimmed; anything but three segments is a ParseError.
func ParseItem(item string) (id, footprint, comment string, err error) {
	return session.ParseItem(item)
}

// FromGrid wraps the grid rows after the configured header rows.
func FromGrid(g grid.Grid, cols config.Columns) []RowSource {
	body := g.SkipHeader(cols.HeaderRows)
	rows := make([]RowSource, len(body))
	for i, cells := range body {
		rows[i] = GridRow{Cells: cells, Columns: cols}
	}
	return rows
}

// FromSession wraps the records of a saved session.
func FromSession(f *session.File) []RowSource {
	rows := make([]RowSource, len(f.Records))
	for i, rec := range f.Records {
		rows[i] = ResumedRow{Record: rec}
	}
	return rows
}
