package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/pnpmatch/internal/debug"
	pnperrors "github.com/standardbeagle/pnpmatch/internal/errors"
	"github.com/standardbeagle/pnpmatch/internal/types"
)

// ErrNoDatabase is wrapped in a StoreLoadError when no file matches the
// database pattern.
var ErrNoDatabase = errors.New("no component database found")

// Read parses tab-delimited "name<TAB>flag" lines. A flag of "x" marks the
// name hidden; anything else, including a missing flag, means visible.
func Read(r io.Reader) (*Store, error) {
	var names []types.ComponentName
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		name, flag, _ := strings.Cut(line, "\t")
		if name == "" {
			continue
		}
		names = append(names, types.ComponentName{
			Name:   name,
			Hidden: strings.TrimSpace(flag) == HiddenFlag,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return New(names), nil
}

// Load reads the database file at path. Failures are StoreLoadErrors.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pnperrors.NewStoreLoadError(path, err)
	}
	defer f.Close()

	s, err := Read(f)
	if err != nil {
		return nil, pnperrors.NewStoreLoadError(path, err)
	}
	s.source = path
	debug.LogStore("loaded %d names from %s\n", s.Len(), path)
	return s, nil
}

// LatestFile returns the lexicographically greatest file in dir matching the
// doublestar pattern. With a fixed-width timestamp in the name this is the
// most recent database.
func LatestFile(dir, pattern string) (string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return "", pnperrors.NewStoreLoadError(dir, err)
	}
	if len(matches) == 0 {
		return "", pnperrors.NewStoreLoadError(filepath.Join(dir, pattern), ErrNoDatabase)
	}
	sort.Strings(matches)
	return filepath.Join(dir, filepath.FromSlash(matches[len(matches)-1])), nil
}

// LoadLatest loads the most recent database in dir.
func LoadLatest(dir, pattern string) (*Store, error) {
	path, err := LatestFile(dir, pattern)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// LoadLatestOrEmpty loads the most recent database, falling back to an empty
// store. The load error, if any, is returned alongside for diagnostics.
func LoadLatestOrEmpty(dir, pattern string) (*Store, error) {
	s, err := LoadLatest(dir, pattern)
	if err != nil {
		debug.LogStore("continuing with empty store: %v\n", err)
		return Empty(), err
	}
	return s, nil
}

// WriteTo writes the store in the tab-delimited database format.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	for _, n := range s.names {
		flag := ""
		if n.Hidden {
			flag = HiddenFlag
		}
		c, err := fmt.Fprintf(bw, "%s\t%s\n", n.Name, flag)
		written += int64(c)
		if err != nil {
			return written, err
		}
	}
	return written, bw.Flush()
}

// Save writes the store to a new file named prefix + now.Format(layout) +
// ".txt" inside dir and returns its path. Existing files are never
// overwritten.
func (s *Store) Save(dir, prefix, layout string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", pnperrors.NewFileError("mkdir", dir, err)
	}
	path := filepath.Join(dir, prefix+now.Format(layout)+".txt")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", pnperrors.NewFileError("create", path, err)
	}
	if _, err := s.WriteTo(f); err != nil {
		f.Close()
		return "", pnperrors.NewFileError("write", path, err)
	}
	if err := f.Close(); err != nil {
		return "", pnperrors.NewFileError("close", path, err)
	}

	debug.LogStore("saved %d names to %s\n", s.Len(), path)
	return path, nil
}

// ReadNames reads one name per line, as produced by a library scan.
// Blank lines are skipped; a trailing tab-delimited flag column is ignored.
func ReadNames(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		name, _, _ := strings.Cut(strings.TrimRight(scanner.Text(), "\r\n"), "\t")
		if name != "" {
			names = append(names, name)
		}
	}
	return names, scanner.Err()
}
