package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/standardbeagle/pnpmatch/internal/matcher"
)

// ConfigFileName is looked up in the project directory and the home directory.
const ConfigFileName = ".pnpmatch.kdl"

// Store defaults
const (
	DefaultStorePattern    = "components_*.txt"
	DefaultStoreFilePrefix = "components_"
	// DefaultTimestampLayout is fixed-width and zero-padded so lexicographic
	// filename order equals chronological order.
	DefaultTimestampLayout = "20060102-150405"
)

// Config is the complete pnpmatch configuration.
type Config struct {
	Version int
	Project Project
	Columns Columns
	Store   Store
	Match   Match
	Batch   Batch
	Watch   Watch
	Output  Output
}

type Project struct {
	Root string
	Name string
}

// Columns locates the fields of a PnP grid row. Indexes are zero-based.
type Columns struct {
	ID         int
	Footprint  int
	Comment    int
	Rotation   int
	HeaderRows int    // Leading rows to skip (column titles)
	Delimiter  string // "" = pick from file extension
}

// DelimiterRune returns the configured delimiter, or 0 when it should be
// picked from the file extension.
func (c Columns) DelimiterRune() rune {
	for _, r := range c.Delimiter {
		return r
	}
	return 0
}

type Store struct {
	Dir             string // Directory holding timestamped component DB files
	Pattern         string // doublestar pattern selecting DB files inside Dir
	FilePrefix      string // Prefix for newly saved DB files
	TimestampLayout string // time layout appended to FilePrefix on save
}

type Match struct {
	SizeCodes []string // Package codes substituted into the footprint prefix, priority order
}

type Batch struct {
	Parallel  bool // Use the worker pool strategy
	Workers   int  // 0 = auto-detect (NumCPU-1)
	ChunkSize int  // Rows handed to a worker at a time (0 = auto)
}

type Watch struct {
	Enabled    bool
	DebounceMs int
}

type Output struct {
	Format        string // "table" or "json"
	MaxCandidates int    // Candidates printed per row in table output (0 = all)
}

// Default returns the built-in configuration rooted at root.
func Default(root string) *Config {
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	return &Config{
		Version: 1,
		Project: Project{
			Root: root,
			Name: filepath.Base(root),
		},
		Columns: Columns{
			ID:         0,
			Footprint:  1,
			Comment:    2,
			Rotation:   3,
			HeaderRows: 1,
		},
		Store: Store{
			Dir:             root,
			Pattern:         DefaultStorePattern,
			FilePrefix:      DefaultStoreFilePrefix,
			TimestampLayout: DefaultTimestampLayout,
		},
		Match: Match{
			SizeCodes: append([]string(nil), matcher.DefaultSizeCodes...),
		},
		Batch: Batch{
			Parallel:  false,
			Workers:   0,
			ChunkSize: 0,
		},
		Watch: Watch{
			Enabled:    true,
			DebounceMs: 300,
		},
		Output: Output{
			Format:        "table",
			MaxCandidates: 10,
		},
	}
}

func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

// LoadWithRoot layers ~/.pnpmatch.kdl, then the project config, over the
// built-in defaults. path may name a config file or a directory containing one.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}

	projectFile := filepath.Join(searchDir, ConfigFileName)
	if path != "" {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			projectFile = filepath.Join(path, ConfigFileName)
		} else {
			projectFile = path
			if rootDir == "" {
				searchDir = filepath.Dir(path)
			}
		}
	}

	cfg := Default(searchDir)

	// Step 1: global base config
	if homeDir, err := os.UserHomeDir(); err == nil {
		globalFile := filepath.Join(homeDir, ConfigFileName)
		if globalFile != projectFile {
			if _, err := LoadKDLFile(globalFile, cfg); err != nil {
				return nil, err
			}
		}
	}

	// Step 2: project config overrides the global one
	if _, err := LoadKDLFile(projectFile, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// WorkerCount resolves the configured worker count, never below 1.
func (b Batch) WorkerCount() int {
	if b.Workers > 0 {
		return b.Workers
	}
	return max(1, runtime.NumCPU()-1)
}
