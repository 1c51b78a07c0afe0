// Package session saves and restores work-in-progress match decisions so an
// operator can stop editing a PnP file and pick it up later.
package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	pnperrors "github.com/standardbeagle/pnpmatch/internal/errors"
	"github.com/standardbeagle/pnpmatch/internal/types"
)

// Record is one saved row. Item is the "<id> | <footprint> | <comment>"
// display string the row was shown with.
type Record struct {
	Item      string `toml:"item"`
	Marker    string `toml:"marker"`
	Selection string `toml:"selection"`
	Rotation  string `toml:"rotation,omitempty"`
}

// File is a saved session.
type File struct {
	Source  string    `toml:"source"`
	SavedAt time.Time `toml:"saved_at"`
	Records []Record  `toml:"record"`
}

// FromRecords builds a session from batch output, keeping row order.
func FromRecords(source string, records []types.MatchRecord, now time.Time) *File {
	f := &File{
		Source:  source,
		SavedAt: now,
		Records: make([]Record, 0, len(records)),
	}
	for _, r := range records {
		item := r.Display
		if item == "" {
			item = FormatItem(r.ID, r.Footprint, r.Comment)
		}
		f.Records = append(f.Records, Record{
			Item:      item,
			Marker:    r.Classification.String(),
			Selection: r.Selection,
			Rotation:  r.Rotation,
		})
	}
	return f
}

// ErrMalformedItem is wrapped by the ParseError for an item that does not
// split into exactly three segments.
var ErrMalformedItem = errors.New(`item is not "<id> | <footprint> | <comment>"`)

// FormatItem joins the three item fields without padding.
func FormatItem(id, footprint, comment string) string {
	return id + " | " + footprint + " | " + comment
}

// ParseItem splits an item back into its fields. Segments are trimmed;
// anything but three segments is a ParseError (row index -1).
func ParseItem(item string) (id, footprint, comment string, err error) {
	parts := strings.Split(item, "|")
	if len(parts) != 3 {
		return "", "", "", pnperrors.NewParseError(-1, item, len(parts), ErrMalformedItem)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2]), nil
}

// Validate reports every record whose item ParseItem cannot read back, for
// example a comment containing '|'. The result is a MultiError of
// ParseErrors carrying the record index, or nil.
func (f *File) Validate() error {
	var errs []error
	for i, r := range f.Records {
		if _, _, _, err := ParseItem(r.Item); err != nil {
			var parseErr *pnperrors.ParseError
			if errors.As(err, &parseErr) {
				parseErr.RowIndex = i
			}
			errs = append(errs, err)
		}
	}
	return pnperrors.NewMultiError(errs).ErrorOrNil()
}

// Read decodes a session from TOML.
func Read(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &f, nil
}

// Write encodes the session as TOML.
func (f *File) Write(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(f)
}

// Load reads a session file.
func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, pnperrors.NewFileError("open", path, err)
	}
	defer fh.Close()
	return Read(fh)
}

// Save writes the session to path through a temporary file in the same
// directory, so a crash never leaves a half-written session behind.
func (f *File) Save(path string) error {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".session-*.toml")
	if err != nil {
		return pnperrors.NewFileError("create", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return pnperrors.NewFileError("write", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return pnperrors.NewFileError("close", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return pnperrors.NewFileError("rename", path, err)
	}
	return nil
}
