// Package grid reduces delimited PnP exports to a rectangular grid of
// strings.
package grid

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	pnperrors "github.com/standardbeagle/pnpmatch/internal/errors"
)

// Grid is a PnP file as rows of cells.
type Grid [][]string

// Read parses delimited text. Rows may have differing lengths; Normalize pads
// them. A UTF-8 byte order mark on the first cell is dropped.
func Read(r io.Reader, delim rune) (Grid, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var g Grid
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		g = append(g, row)
	}
	if len(g) > 0 && len(g[0]) > 0 {
		g[0][0] = strings.TrimPrefix(g[0][0], "\ufeff")
	}
	return g, nil
}

// ReadFile reads a grid from path, choosing the delimiter from the extension
// unless delim is non-zero.
func ReadFile(path string, delim rune) (Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pnperrors.NewFileError("open", path, err)
	}
	defer f.Close()

	if delim == 0 {
		delim = DelimiterFor(path)
	}
	g, err := Read(f, delim)
	if err != nil {
		return nil, pnperrors.NewFileError("parse", path, err)
	}
	return g, nil
}

// DelimiterFor returns tab for .tsv and .txt files and comma otherwise.
func DelimiterFor(path string) rune {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".txt":
		return '\t'
	default:
		return ','
	}
}

// SkipHeader drops the first n rows.
func (g Grid) SkipHeader(n int) Grid {
	if n <= 0 {
		return g
	}
	if n >= len(g) {
		return Grid{}
	}
	return g[n:]
}

// Width returns the length of the longest row.
func (g Grid) Width() int {
	w := 0
	for _, row := range g {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

// Normalize pads every row to the grid width so column lookups never go out
// of range.
func (g Grid) Normalize() Grid {
	w := g.Width()
	out := make(Grid, len(g))
	for i, row := range g {
		if len(row) == w {
			out[i] = row
			continue
		}
		padded := make([]string, w)
		copy(padded, row)
		out[i] = padded
	}
	return out
}

// Cell returns the trimmed cell at row i, column col, or "" when absent.
func (g Grid) Cell(i, col int) string {
	if i < 0 || i >= len(g) || col < 0 || col >= len(g[i]) {
		return ""
	}
	return strings.TrimSpace(g[i][col])
}
