package types

import (
	"fmt"
	"strings"
)

// Classification records how a PnP row was resolved to a component name.
type Classification uint8

const (
	ClassNoMatch   Classification = iota // nothing matched, full list offered
	ClassAutoExact                       // footprint_comment found verbatim
	ClassFiltered                        // glob filter produced candidates
	ClassManual                          // chosen by the operator
	ClassRemoved                         // excluded from export
)

func (c Classification) String() string {
	switch c {
	case ClassAutoExact:
		return "AUTO_EXACT"
	case ClassFiltered:
		return "FILTERED"
	case ClassNoMatch:
		return "NO_MATCH"
	case ClassManual:
		return "MANUAL"
	case ClassRemoved:
		return "REMOVED"
	default:
		return fmt.Sprintf("Classification(%d)", uint8(c))
	}
}

// ParseClassification converts a marker string back into a Classification.
// Matching is case-insensitive; unknown markers are an error.
func ParseClassification(s string) (Classification, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AUTO_EXACT":
		return ClassAutoExact, nil
	case "FILTERED":
		return ClassFiltered, nil
	case "NO_MATCH", "":
		return ClassNoMatch, nil
	case "MANUAL":
		return ClassManual, nil
	case "REMOVED":
		return ClassRemoved, nil
	}
	return ClassNoMatch, fmt.Errorf("unknown classification %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Classification) UnmarshalText(text []byte) error {
	parsed, err := ParseClassification(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ComponentName is one canonical name from the parts database.
type ComponentName struct {
	Name   string
	Hidden bool
}

// Result is the row-independent outcome of matching one (footprint, comment)
// pair. It is what the match cache stores.
type Result struct {
	Classification Classification
	Selection      string
	Candidates     []string
}

// MatchRecord is the per-row output of a batch run.
type MatchRecord struct {
	RowIndex       int            `json:"row"`
	ID             string         `json:"id"`
	Footprint      string         `json:"footprint"`
	Comment        string         `json:"comment"`
	Rotation       string         `json:"rotation,omitempty"`
	Classification Classification `json:"classification"`
	Selection      string         `json:"selection"`
	Candidates     []string       `json:"candidates,omitempty"`
	Display        string         `json:"display"`
}

// Apply copies a match result into the record. Candidates are copied so
// records never share backing arrays with cached results.
func (m *MatchRecord) Apply(r Result) {
	m.Classification = r.Classification
	m.Selection = r.Selection
	m.Candidates = append([]string(nil), r.Candidates...)
}

// Choose records an operator's explicit pick.
func (m *MatchRecord) Choose(name string) {
	m.Classification = ClassManual
	m.Selection = name
}

// Remove marks the row as excluded from export. The selection is kept so the
// row can be restored later.
func (m *MatchRecord) Remove() {
	m.Classification = ClassRemoved
}

// Exportable reports whether the row carries a committed component name.
// Filtered rows hold a search string rather than a name, so they are not.
func (m *MatchRecord) Exportable() bool {
	switch m.Classification {
	case ClassAutoExact, ClassManual:
		return m.Selection != ""
	default:
		return false
	}
}
