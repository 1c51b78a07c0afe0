package testhelpers

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Component is a database line for WriteDatabase.
type Component struct {
	Name   string
	Hidden bool
}

// Visible builds visible components from names.
func Visible(names ...string) []Component {
	out := make([]Component, len(names))
	for i, n := range names {
		out[i] = Component{Name: n}
	}
	return out
}

// WriteDatabase writes a component database file named file inside dir in
// the tab-delimited "name<TAB>flag" format and returns its path.
func WriteDatabase(t testing.TB, dir, file string, components []Component) string {
	t.Helper()
	var b strings.Builder
	for _, c := range components {
		b.WriteString(c.Name)
		b.WriteByte('\t')
		if c.Hidden {
			b.WriteByte('x')
		}
		b.WriteByte('\n')
	}
	return writeFile(t, dir, file, b.String())
}

// PnPRow is one placement line: designator, footprint, comment, rotation.
type PnPRow [4]string

// WritePnP writes a comma separated PnP file with a header row and returns
// its path.
func WritePnP(t testing.TB, dir, file string, rows ...PnPRow) string {
	t.Helper()
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write([]string{"Designator", "Footprint", "Comment", "Rotation"}); err != nil {
		t.Fatalf("writing PnP header: %v", err)
	}
	for _, r := range rows {
		if err := w.Write(r[:]); err != nil {
			t.Fatalf("writing PnP row: %v", err)
		}
	}
	w.Flush()
	return writeFile(t, dir, file, b.String())
}

func writeFile(t testing.TB, dir, file, content string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture %s: %v", path, err)
	}
	return path
}
